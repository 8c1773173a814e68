package viewer

import (
	"fmt"
	"net/netip"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	operatorRegex = regexp.MustCompile(`^(?P<operator>[><]=?)?(?P<value>[\d.]+)$`)

	allowedSortColumns = []string{"score", "host"}

	numericalColumns = []string{"score"}

	stringColumns = []string{"host", "detected", "sort"}
)

var searchStyle = lipgloss.NewStyle().MarginTop(3)

// OperatorFilter pairs a comparison operator with its operand, e.g. {">", "0.6"}.
type OperatorFilter struct {
	Operator string
	Value    string
}

// Filter holds the parsed criteria from the search bar.
type Filter struct {
	Host      string
	Detected  *bool
	Score     OperatorFilter
	SortScore string
	SortHost  string
}

type searchModel struct {
	initialValue string
	TextInput    textinput.Model
	width        int
	searchErr    string
}

func NewSearchModel(initialValue string, width int) searchModel {
	ti := textinput.New()
	ti.Placeholder = ""
	ti.Focus()
	ti.PromptStyle = ti.PromptStyle.Copy().Foreground(mauve)
	ti.TextStyle = ti.TextStyle.Copy().Faint(true)
	ti.Blur()
	ti.SetValue(initialValue)
	ti.CursorStart()

	return searchModel{
		TextInput:    ti,
		initialValue: initialValue,
		width:        width,
	}
}

func (m searchModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m searchModel) Update(msg tea.Msg) (searchModel, tea.Cmd) {
	var cmd tea.Cmd
	m.TextInput, cmd = m.TextInput.Update(msg)
	return m, cmd
}

func (m searchModel) View() string {
	helpStyle := lipgloss.NewStyle().Foreground(overlay0)
	subduedHelpStyle := lipgloss.NewStyle().Foreground(surface0)
	var label string
	switch {
	case m.searchErr != "":
		m.TextInput.Prompt = ""
		label = lipgloss.NewStyle().Foreground(red).Render(m.searchErr)
	case m.TextInput.Focused():
		m.TextInput.Prompt = ""
		label = lipgloss.JoinHorizontal(lipgloss.Left,
			helpStyle.Render("enter"), " ", subduedHelpStyle.Render("submit"), " ",
			subduedHelpStyle.Render(bullet), " ",
			helpStyle.Render("esc"), " ", subduedHelpStyle.Render("cancel search"), " ",
			subduedHelpStyle.Render(bullet), " ",
			helpStyle.Render("ctrl+x"), " ", subduedHelpStyle.Render("clear"), " ",
			subduedHelpStyle.Render(bullet), " ",
			helpStyle.Render("?"), " ", subduedHelpStyle.Render("toggle help"),
		)
	default:
		label = helpStyle.Render("press / to begin search")
		if m.TextInput.Value() == "" {
			m.TextInput.Prompt = "Search: "
		} else {
			label = lipgloss.JoinHorizontal(lipgloss.Left,
				label, " ", subduedHelpStyle.Render("edit"), " ",
				subduedHelpStyle.Render(bullet), " ",
				helpStyle.Render("ctrl+x"), " ", subduedHelpStyle.Render("clear filter"),
			)
			m.TextInput.Prompt = ""
		}
	}
	help := lipgloss.NewStyle().MarginLeft(1).Foreground(helpTextColor).Render(label)
	input := lipgloss.NewStyle().Width(m.width).Border(lipgloss.RoundedBorder()).BorderForeground(overlay0).Render(m.TextInput.View())

	return searchStyle.Render(lipgloss.JoinVertical(lipgloss.Top, help, input))
}

func (m *searchModel) Focus() {
	m.TextInput.TextStyle = m.TextInput.TextStyle.Copy().Faint(false)
	m.TextInput.CursorEnd()
	m.TextInput.Focus()
}

func (m *searchModel) Blur() {
	m.TextInput.TextStyle = m.TextInput.TextStyle.Copy().Faint(true)
	m.TextInput.Blur()
}

func (m searchModel) HasError() bool {
	return m.searchErr != ""
}

func (m *searchModel) SetValue(val string) {
	m.TextInput.SetValue(val)
}

func (m *searchModel) Value() string {
	return m.TextInput.Value()
}

func (m *searchModel) ValidateSearchInput() {
	switch {
	case strings.Contains(m.Value(), ","):
		m.searchErr = "commas are not supported"
	default:
		m.searchErr = ""
	}

	split := strings.Split(m.Value(), " ")
	if len(split) > 1 {
		if _, err := ParseSearchInput(m.Value()); err != "" {
			m.searchErr = err
		}
	}
}

func (m *searchModel) Filter() Filter {
	filter, err := ParseSearchInput(m.TextInput.Value())
	if err != "" {
		m.searchErr = err
	}
	return filter
}

// ParseSearchInput parses a search string like "host:10.0.0.5 score:>0.6
// detected:true sort:score-desc" into a Filter.
func ParseSearchInput(input string) (Filter, string) {
	criteria := Filter{}

	if input == "" {
		return Filter{}, ""
	}
	if strings.Contains(input, ",") {
		return Filter{}, "commas are not supported"
	}

	for _, pair := range strings.Fields(input) {
		if pair == "" {
			continue
		}
		if !strings.Contains(pair, ":") {
			return Filter{}, "column name and value must be separated by a colon"
		}

		split := strings.SplitN(pair, ":", 2)
		field, value := split[0], split[1]

		switch {
		case slices.Contains(numericalColumns, field):
			operator, number, parseErr := parseSearchOperator(field, value)
			if parseErr != "" {
				return Filter{}, parseErr
			}
			if _, err := strconv.ParseFloat(number, 64); err != nil {
				return Filter{}, field + " must be a valid number"
			}
			if operator == "" {
				operator = "="
			}
			criteria.Score = OperatorFilter{Operator: operator, Value: number}

		case slices.Contains(stringColumns, field):
			switch field {
			case "host":
				if _, err := netip.ParseAddr(value); err != nil {
					return Filter{}, "host must be a valid IP address"
				}
				criteria.Host = value
			case "detected":
				parsed, err := strconv.ParseBool(value)
				if err != nil {
					return Filter{}, "detected must be true or false"
				}
				criteria.Detected = &parsed
			case "sort":
				sortSplit := strings.Split(value, "-")
				if len(sortSplit) != 2 {
					return Filter{}, "sort value must contain one hyphen, in the format sort:<column>-<direction>"
				}
				column, direction := sortSplit[0], sortSplit[1]
				if !slices.Contains(allowedSortColumns, column) {
					return Filter{}, "invalid sort column"
				}
				if direction != "asc" && direction != "desc" {
					return Filter{}, "sort direction must be either asc or desc"
				}
				switch column {
				case "score":
					criteria.SortScore = direction
				case "host":
					criteria.SortHost = direction
				}
			}
		default:
			return Filter{}, "please reference a valid search column"
		}
	}

	return criteria, ""
}

func parseSearchOperator(field string, value string) (string, string, string) {
	var operator, number, err string

	if !operatorRegex.MatchString(value) {
		err = fmt.Sprintf("%s value must be %s:<value> or %s:<operator><value>, where <operator> is one of >, <, >=, <=", field, field, field)
		return operator, number, err
	}

	matches := operatorRegex.FindStringSubmatch(value)
	operator = matches[operatorRegex.SubexpIndex("operator")]
	number = matches[operatorRegex.SubexpIndex("value")]

	return operator, number, err
}
