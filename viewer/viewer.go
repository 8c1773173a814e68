// Package viewer implements a scrollable terminal UI over the latest
// detection_results row per host, browsable with a small search syntax.
// It does not read the alerts.json file.
package viewer

import (
	"fmt"
	"math"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/activecm/beaconwatch/database"
	"github.com/activecm/beaconwatch/enrich"
)

var DebugMode bool
var mainStyle = lipgloss.NewStyle().Margin(0, 0)

type Model struct {
	SearchBar      *searchModel
	SideBar        sidebarModel
	List           listModel
	searchValue    string
	Footer         footerModel
	title          string
	db             *database.DB
	resolver       enrich.NeighborResolver
	serverPageSize int
	serverPage     int

	keys           keyMap
	width          int
	ViewSearchHelp bool
	ViewHelp       bool
}

type keyMap struct {
	base           list.KeyMap
	enter          key.Binding
	filter         key.Binding
	clearFilter    key.Binding
	clearSearchBar key.Binding
	unfocusFilter  key.Binding
	toggleScroll   key.Binding
	quit           key.Binding
}

type column struct {
	name  string
	width int
}

// CreateUI starts the terminal UI over db's detection_results, resolving
// display addresses through resolver.
func CreateUI(db *database.DB, resolver enrich.NeighborResolver) error {
	m, err := NewModel(db, resolver)
	if err != nil {
		return err
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}

	return nil
}

func NewModel(db *database.DB, resolver enrich.NeighborResolver) (*Model, error) {
	pageSize := 100
	rows, _, err := GetResults(db, resolver, Filter{}, 0, pageSize)
	if err != nil {
		return nil, err
	}

	columns := []column{
		{"Host", 18}, {"Display Host", 24}, {"P-Score", 10}, {"FFT Peak", 10},
		{"Autocorr", 10}, {"Entropy", 10}, {"Analyzed At", 20},
	}

	width := getTableWidth(columns)
	height := 20

	dataList := MakeList(rows, columns, width, height)
	searchBar := NewSearchModel("", width)

	sideBar := NewSidebarModel(&Item{})
	if len(dataList.Rows.Items()) > 0 {
		data, ok := dataList.Rows.Items()[dataList.Rows.Index()].(Item)
		if !ok {
			return nil, fmt.Errorf("error setting sidebar data")
		}
		sideBar.Data = &data
	}

	footer := NewFooterModel(db.GetSelectedDB())

	m := &Model{
		List:           dataList,
		SearchBar:      &searchBar,
		SideBar:        sideBar,
		serverPageSize: pageSize,
		Footer:         footer,
		db:             db,
		resolver:       resolver,
		width:          width,
	}

	m.Init()
	m.SideBar.Init()

	return m, nil
}

func (m *Model) Init() tea.Cmd {
	m.title = getTitle()

	m.keys.base = list.DefaultKeyMap()
	m.keys.enter = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply filter"))
	m.keys.filter = key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter"))
	m.keys.clearFilter = key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "clear filter"))
	m.keys.clearSearchBar = key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "clear filter"))
	m.keys.unfocusFilter = key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel search"))
	m.keys.toggleScroll = key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "toggle sidebar scrolling"))
	m.keys.quit = key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q | ctrl+c", "quit"))

	return m.Footer.spinner.Tick
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Footer.width = msg.Width
		m.List.SetHeight(msg.Height - int(math.Max(float64(lipgloss.Height(m.SearchBar.View())), float64(lipgloss.Height(m.title)))))
		m.SideBar.Viewport.Height = m.List.totalHeight
		m.SideBar.Viewport.Width = msg.Width - lipgloss.Width(m.List.View()) - 4
		m.SearchBar.width = m.List.width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.base.ShowFullHelp):
			if m.SearchBar.TextInput.Focused() && !m.ViewHelp {
				m.ViewSearchHelp = !m.ViewSearchHelp
			} else {
				m.ViewHelp = !m.ViewHelp
			}
		case key.Matches(msg, m.keys.filter):
			m.SearchBar.Focus()
		case key.Matches(msg, m.keys.toggleScroll):
			m.SideBar.ScrollEnabled = !m.SideBar.ScrollEnabled
		case m.SearchBar.TextInput.Focused():
			cmd = m.handleFiltering(msg)
		case key.Matches(msg, m.keys.clearFilter):
			m.resetFiltering()
		case key.Matches(msg, m.keys.quit):
			cmd = tea.Quit
		default:
			cmd = m.handleBrowsing(msg)
		}
	case StillLoadingResults, FooterFlash:
		_, cmd = m.Footer.Update(msg)
	case FinishedLoadingResults:
	case spinner.TickMsg:
		m.Footer.spinner, cmd = m.Footer.spinner.Update(msg)
	}

	if len(m.List.Rows.Items()) > 0 {
		if m.List.Rows.Index() >= len(m.List.Rows.Items()) {
			m.List.Rows.Select(len(m.List.Rows.Items()) - 1)
		}
		if m.List.Rows.Cursor() >= m.List.Rows.Paginator.ItemsOnPage(len(m.List.Rows.Items())) {
			index := (m.List.Rows.Paginator.Page * m.List.Rows.Paginator.PerPage) + m.List.Rows.Paginator.ItemsOnPage(len(m.List.Rows.Items())) - 1
			m.List.Rows.Select(index)
		}
		if data, ok := m.List.Rows.Items()[m.List.Rows.Index()].(Item); ok {
			m.SideBar.Data = &data
		}
	} else {
		m.SideBar.Data = &Item{}
	}

	return m, cmd
}

func (m *Model) View() string {
	var mainContent string
	switch {
	case m.ViewSearchHelp:
		mainContent = helpPanel(m.SideBar.Viewport.Height, m.List.width, searchHelpText())
	case m.ViewHelp:
		mainContent = helpPanel(m.SideBar.Viewport.Height, m.List.width, mainHelpText())
	default:
		mainContent = lipgloss.JoinHorizontal(
			lipgloss.Left,
			mainStyle.Render(m.List.View()),
			mainStyle.Render(m.SideBar.View()),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Top,
		lipgloss.JoinHorizontal(lipgloss.Left, mainStyle.Render(m.SearchBar.View()), m.title),
		mainContent,
		m.Footer.View(),
	)
}

type FinishedLoadingResults string
type StillLoadingResults string

func (m *Model) handleFiltering(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	switch {
	case key.Matches(msg, m.keys.unfocusFilter):
		if m.ViewSearchHelp {
			m.ViewSearchHelp = false
		}
		m.SearchBar.Blur()

	case key.Matches(msg, m.keys.enter):
		if m.SearchBar.searchErr == "" {
			m.SearchBar.Blur()
			return func() tea.Msg {
				m.requestResults(false)
				return FinishedLoadingResults("success")
			}
		}

	case key.Matches(msg, m.keys.clearSearchBar):
		m.SearchBar.TextInput.Reset()

	default:
		m.SearchBar, cmd = m.SearchBar.Update(msg)
		m.searchValue = m.SearchBar.Value()
		m.SearchBar.ValidateSearchInput()
	}

	return cmd
}

func (m *Model) handleBrowsing(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	if m.SideBar.ScrollEnabled {
		m.SideBar.Viewport, cmd = m.SideBar.Viewport.Update(msg)
	} else {
		switch {
		case key.Matches(msg, m.keys.base.CursorUp):
			m.List.Rows.CursorUp()
		case key.Matches(msg, m.keys.base.CursorDown):
			m.List.Rows.CursorDown()
		case key.Matches(msg, m.keys.base.PrevPage):
			m.List.Rows.Paginator.PrevPage()
		case key.Matches(msg, m.keys.base.NextPage):
			if m.List.Rows.Paginator.Page == m.List.Rows.Paginator.TotalPages-1 {
				if !m.Footer.loading {
					m.Footer.loading = true
					return func() tea.Msg {
						m.serverPage++
						m.requestResults(true)
						return FinishedLoadingResults("success")
					}
				}
				return func() tea.Msg { return StillLoadingResults("yeah") }
			}
			m.List.Rows.Paginator.NextPage()
			if m.List.Rows.Cursor() >= m.List.Rows.Paginator.ItemsOnPage(len(m.List.Rows.Items())) {
				index := (m.List.Rows.Paginator.Page * m.List.Rows.Paginator.PerPage) + m.List.Rows.Paginator.ItemsOnPage(len(m.List.Rows.Items())) - 1
				m.List.Rows.Select(index)
			}
		case key.Matches(msg, m.keys.base.GoToStart):
			m.List.Rows.Paginator.Page = 0
		case key.Matches(msg, m.keys.base.GoToEnd):
			m.List.Rows.Paginator.Page = m.List.Rows.Paginator.TotalPages - 1
			if m.List.Rows.Cursor() >= m.List.Rows.Paginator.ItemsOnPage(len(m.List.Rows.Items())) {
				m.List.Rows.Select(len(m.List.Rows.Items()) - 1)
			}
		}
	}
	return cmd
}

func (m *Model) requestResults(appendResults bool) {
	filter := m.SearchBar.Filter()

	if m.SearchBar.searchErr == "" {
		m.Footer.loading = true

		items, appliedFilter, err := GetResults(m.db, m.resolver, filter, m.serverPage, m.serverPageSize)
		if err != nil {
			m.List.Rows.SetItems([]list.Item{})
			m.Footer.ErrMsg = "Error fetching results: " + err.Error()
		}

		m.Footer.loading = false

		if appliedFilter {
			m.List.Rows.Select(0)
		}

		if appendResults {
			m.List.Rows.SetItems(append(m.List.Rows.Items(), items...))
		} else {
			m.List.Rows.SetItems(items)
		}
	}
}

func (m *Model) resetFiltering() {
	m.SearchBar.TextInput.Reset()
	m.SearchBar.searchErr = ""
	m.requestResults(false)
}

func getTitle() string {
	return mainStyle.
		MarginLeft(1).MarginTop(3).
		// DO NOT INDENT THE FOLLOWING CODE BLOCK!
		Render(`
█▄▄ █▀▀ ▄▀█ █▀▀ █▀█ █▄░█ █░█░█ ▄▀█ ▀█▀ █▀▀ █░█
█▄█ ██▄ █▀█ █▄▄ █▄█ █░▀█ ▀▄▀▄▀ █▀█ ░█░ █▄▄ █▀█
`)
}

func searchHelpText() string {
	subtitleStyle := lipgloss.NewStyle().Foreground(overlay2)
	helpStyle := lipgloss.NewStyle().Foreground(surface0)
	helpText := lipgloss.NewStyle().Foreground(overlay2).Render("Search Examples")
	helpText = lipgloss.JoinVertical(lipgloss.Top, helpText, "", subtitleStyle.Render("Filter by column:"))
	helpText = lipgloss.JoinVertical(lipgloss.Top, helpText, helpStyle.Render("host:10.0.0.5"))
	helpText = lipgloss.JoinVertical(lipgloss.Top, helpText, helpStyle.Render("score:>0.6"))
	helpText = lipgloss.JoinVertical(lipgloss.Top, helpText, helpStyle.Render("detected:true"))

	helpText = lipgloss.JoinVertical(lipgloss.Top, helpText, "", subtitleStyle.Render("Sort by column:"))
	helpText = lipgloss.JoinVertical(lipgloss.Top, helpText, helpStyle.Render("sort:score-desc"))
	helpText = lipgloss.JoinVertical(lipgloss.Top, helpText, helpStyle.Render("sort:host-asc"))

	helpText = lipgloss.JoinVertical(lipgloss.Top, helpText, "",
		lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(surface0).Render("host:10.0.0.5 score:>=0.8 sort:score-desc"),
	)

	return lipgloss.NewStyle().Margin(1, 0, 0, 2).Render(helpText)
}

func mainHelpText() string {
	helpStyle := lipgloss.NewStyle().Foreground(overlay2)
	subduedHelpStyle := lipgloss.NewStyle().Foreground(surface0)
	sectionStyle := lipgloss.NewStyle().Foreground(lavender).Bold(true)
	subSectionStyle := lipgloss.NewStyle().Foreground(overlay2)

	helpText := lipgloss.JoinVertical(lipgloss.Top,
		sectionStyle.Render("Navigation"), "", subSectionStyle.Render("Table"),
	)
	helpText = lipgloss.JoinVertical(lipgloss.Top, helpText, helpStyle.Render(
		helpStyle.Render("↑/k"), subduedHelpStyle.Render("previous row"),
		subduedHelpStyle.Render(bullet),
		helpStyle.Render("↓/j"), subduedHelpStyle.Render("next row")))
	helpText = lipgloss.JoinVertical(lipgloss.Top, helpText, helpStyle.Render(
		helpStyle.Render("←/h"), subduedHelpStyle.Render("previous page"),
		subduedHelpStyle.Render(bullet),
		helpStyle.Render("→/l"), subduedHelpStyle.Render("next page")))

	helpText = lipgloss.JoinVertical(lipgloss.Top, helpText, sectionStyle.Render("\n\nShortcuts"))
	helpText = lipgloss.JoinVertical(lipgloss.Top, helpText, helpStyle.Render(
		helpStyle.Render("q/ctrl+c"), subduedHelpStyle.Render("quit"),
		subduedHelpStyle.Render(bullet),
		helpStyle.Render("?"), subduedHelpStyle.Render("toggle help")))
	helpText = lipgloss.JoinVertical(lipgloss.Top, helpText, helpStyle.Render(
		helpStyle.Render("ctrl+x"), subduedHelpStyle.Render("clear filter")))
	helpText = lipgloss.JoinVertical(lipgloss.Top, helpText, helpStyle.Render(
		helpStyle.Render("tab"), subduedHelpStyle.Render("toggle sidebar scrolling")))

	return lipgloss.NewStyle().Margin(1, 0, 0, 2).Render(helpText)
}

func helpPanel(height int, width int, contents string) string {
	return mainStyle.Height(height).Width(width).
		Border(lipgloss.RoundedBorder()).BorderForeground(surface0).
		Render(contents)
}

func getTableWidth(columns []column) int {
	width := 0
	for _, column := range columns {
		width += column.width
	}
	return width
}
