package viewer

import (
	"fmt"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var sideBarStyle = lipgloss.NewStyle()

type sidebarModel struct {
	Viewport      viewport.Model
	Data          *Item
	Height        int
	ScrollEnabled bool
}

func NewSidebarModel(initialData *Item) sidebarModel {
	return sidebarModel{
		Viewport: viewport.Model{},
		Data:     initialData,
	}
}

func (m *sidebarModel) Init() tea.Cmd {
	m.Viewport.SetContent(m.getSidebarContents())
	return nil
}

type UpdateItem *Item

func (m *sidebarModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case UpdateItem:
		m.Data = msg
		m.Viewport.SetContent(m.getSidebarContents())
	case tea.WindowSizeMsg:
		cmds = append(cmds, viewport.Sync(m.Viewport))
	}
	return m, tea.Batch(cmds...)
}

func (m *sidebarModel) View() string {
	borderColor := mauve
	if m.ScrollEnabled {
		borderColor = green
	}
	style := sideBarStyle.
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor)
	return lipgloss.NewStyle().Render(style.Render(m.Viewport.View()))
}

// getSidebarContents renders the full feature breakdown for the currently
// selected host.
func (m *sidebarModel) getSidebarContents() string {
	if m.Data == nil || m.Data.Host == "" {
		return lipgloss.NewStyle().Foreground(overlay0).Render("No result found.")
	}

	headerPadding := 2
	headerLabelStyle := lipgloss.NewStyle().Padding(0, headerPadding).Background(overlay0).Foreground(defaultTextColor).Bold(true)
	headerValueStyle := lipgloss.NewStyle().Padding(0, headerPadding).Background(mauve).Foreground(base).Bold(true)

	hostLabel := "HOST"
	hostStyle := lipgloss.NewStyle().Width(m.Viewport.Width - len(hostLabel) - (headerPadding * 4))
	hostValue := headerValueStyle.Render(Truncate(m.Data.GetDisplayHost(), &hostStyle))
	heading := lipgloss.NewStyle().MarginBottom(2).Render(
		lipgloss.JoinHorizontal(lipgloss.Left, headerLabelStyle.Render(hostLabel), hostValue),
	)

	sectionStyle := lipgloss.NewStyle().
		Foreground(overlay2).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(surface0).
		Width(m.Viewport.Width)
	featuresLabel := sectionStyle.Render("「 Periodicity Features 」")
	features := m.renderFeatures()

	dataStyle := lipgloss.NewStyle().Foreground(defaultTextColor)

	metaHeaderStyle := lipgloss.NewStyle().Background(overlay2).Foreground(base).Bold(true).Padding(0, 2)
	passHeader := metaHeaderStyle.Render("Last Pass")
	passValue := dataStyle.Render(lipgloss.JoinVertical(lipgloss.Top, passHeader, m.Data.GetAnalyzedAt(), m.Data.PassID))

	samplesHeader := metaHeaderStyle.Render("Samples")
	samplesValue := dataStyle.Render(lipgloss.JoinVertical(lipgloss.Top, samplesHeader, fmt.Sprintf("%d", m.Data.SampleCount)))

	return lipgloss.JoinVertical(lipgloss.Top, heading, featuresLabel, features, passValue, samplesValue)
}

// renderFeatures renders the three fused features plus the resulting score
// for the currently selected item.
func (m *sidebarModel) renderFeatures() string {
	entries := []struct {
		label string
		value string
	}{
		{"p_score", m.Data.GetScore()},
		{"fft_peak", m.Data.GetFFTPeak()},
		{"autocorr_max", m.Data.GetAutocorrMax()},
		{"entropy_norm", m.Data.GetEntropyNorm()},
		{"detected", m.Data.GetDetected()},
	}

	var rendered []string
	for _, e := range entries {
		header := lipgloss.NewStyle().Background(overlay2).Foreground(base).Bold(true).Padding(0, 2).Render(e.label)
		value := lipgloss.NewStyle().Foreground(defaultTextColor).Render(e.value)
		rendered = append(rendered, lipgloss.JoinVertical(lipgloss.Top, header, value))
	}

	return lipgloss.NewStyle().MarginBottom(1).Render(lipgloss.JoinVertical(lipgloss.Top, rendered...))
}
