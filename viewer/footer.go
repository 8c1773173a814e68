package viewer

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// flashNormalInterval/flashRedInterval/flashDebounceInterval/flashResetInterval
// stage the footer's error flash: normal -> red -> normal -> (debounce before
// allowing another flash to start), with the reset stage held longer so
// repeated errors (e.g. the user paging past the end of results) don't make
// the bar strobe.
const (
	flashNormalInterval   = 100 * time.Millisecond
	flashRedInterval      = 100 * time.Millisecond
	flashDebounceInterval = 100 * time.Millisecond
	flashResetInterval    = 700 * time.Millisecond
)

type footerModel struct {
	spinner  spinner.Model
	loading  bool
	dbName   string
	width    int
	flashRed bool
	flashing bool
	ErrMsg   string
}

// FooterFlash drives the footer's error-flash state machine; its string
// value names the stage (normal/red/debounce/reset).
type FooterFlash string

func NewFooterModel(storeName string) footerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(red)
	return footerModel{spinner: s, dbName: storeName}
}

func (m *footerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func flashAfter(stage string, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(_ time.Time) tea.Msg {
		return FooterFlash(stage)
	})
}

func (m *footerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StillLoadingResults:
		// ignore if a flash cycle is already running, else it looks like a strobe
		if m.flashing {
			return m, nil
		}
		m.flashing = true
		m.flashRed = true
		return m, flashAfter("normal", flashNormalInterval)
	case FooterFlash:
		switch msg {
		case "normal":
			m.flashRed = false
			return m, flashAfter("red", flashRedInterval)
		case "red":
			m.flashRed = true
			return m, flashAfter("debounce", flashDebounceInterval)
		case "debounce":
			m.flashRed = false
			return m, flashAfter("reset", flashResetInterval)
		case "reset":
			m.flashing = false
		}
		return m, nil
	case tea.KeyMsg:
		return m, nil
	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

func (m *footerModel) View() string {
	barColor := surface0
	if m.ErrMsg != "" || m.flashRed {
		barColor = pink
	}

	status := "Loading detections"
	if m.ErrMsg != "" {
		status = m.ErrMsg
	}

	bar := mainStyle.Copy().Padding(0, 2).Background(lavender).Foreground(base).AlignVertical(lipgloss.Bottom).Bold(true).Render("Flow Store")

	statusStyle := mainStyle.Copy().Background(barColor).Foreground(defaultTextColor)
	bar += statusStyle.PaddingLeft(1).Render(m.dbName)

	spinnerWidth := m.width - 12 - 10 - 2 - len(m.dbName) - len(status) - 1
	if m.loading {
		bar += statusStyle.Copy().Width(spinnerWidth).AlignHorizontal(lipgloss.Right).Render(m.spinner.View())
		bar += statusStyle.PaddingRight(1).Render(status)
	} else {
		bar += statusStyle.Copy().Width(spinnerWidth + len(status) + 2).Render()
	}

	bar += mainStyle.Copy().Background(overlay2).Padding(0, 2).Render("? help")
	return bar
}
