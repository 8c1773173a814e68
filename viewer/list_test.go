package viewer_test

import (
	"github.com/activecm/beaconwatch/enrich"
	"github.com/activecm/beaconwatch/viewer"
	"github.com/stretchr/testify/require"

	tea "github.com/charmbracelet/bubbletea"
)

func (s *ViewerTestSuite) TestListScrolling() {
	t := s.T()

	m, err := viewer.NewModel(s.db, enrich.NoopResolver{})
	require.NoError(t, err)

	initialSelectedIndex := m.List.Rows.Index()

	for i := 0; i < 2; i++ {
		m.Update(tea.KeyMsg(
			tea.Key{
				Type: tea.KeyDown,
			},
		))
	}

	require.Equal(t, initialSelectedIndex+2, m.List.Rows.Index())

	m.Update(tea.KeyMsg(
		tea.Key{
			Type: tea.KeyUp,
		},
	))

	require.Equal(t, initialSelectedIndex+1, m.List.Rows.Index())
}

func (s *ViewerTestSuite) TestListHomeEnd() {
	t := s.T()

	m, err := viewer.NewModel(s.db, enrich.NoopResolver{})
	require.NoError(t, err)

	m.Update(tea.KeyMsg(
		tea.Key{
			Type: tea.KeyEnd,
		},
	))
	require.Equal(t, m.List.Rows.Paginator.TotalPages-1, m.List.Rows.Paginator.Page)

	m.Update(tea.KeyMsg(
		tea.Key{
			Type: tea.KeyHome,
		},
	))
	require.Equal(t, 0, m.List.Rows.Paginator.Page)
}
