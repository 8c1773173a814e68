package viewer_test

import (
	"github.com/activecm/beaconwatch/enrich"
	"github.com/activecm/beaconwatch/viewer"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

func (s *ViewerTestSuite) TestSidebarScrolling() {
	t := s.T()

	m, err := viewer.NewModel(s.db, enrich.NoopResolver{})
	require.NoError(t, err)

	m.Update(tea.WindowSizeMsg{
		Height: 20, // this must be small enough to trigger scrolling
		Width:  100,
	})

	initialSelectedIndex := m.List.Rows.Index()

	initialScroll := m.SideBar.Viewport.YOffset
	require.EqualValues(t, 0, initialScroll, "initial scroll offset should be 0, got %d", initialScroll)

	// tab key switches focus to the sidebar
	m.Update(tea.KeyMsg(
		tea.Key{
			Type: tea.KeyTab,
		},
	))

	// pgdown scrolls a page down the sidebar
	m.Update(tea.KeyMsg(
		tea.Key{
			Type: tea.KeyPgDown,
		},
	))
	require.True(t, m.SideBar.Viewport.AtBottom(), "scroll offset should be at the bottom after paging down once")

	// pgup scrolls a page up the sidebar
	m.Update(tea.KeyMsg(
		tea.Key{
			Type: tea.KeyPgUp,
		},
	))
	require.True(t, m.SideBar.Viewport.AtTop(), "scroll offset should be at the top after paging up once")

	// verify that list was not scrolled instead of sidebar
	require.Equal(t, initialSelectedIndex, m.List.Rows.Index())

	// switch focus off of sidebar
	m.Update(tea.KeyMsg(
		tea.Key{
			Type: tea.KeyTab,
		},
	))

	// down key should scroll the list, not the sidebar
	m.Update(tea.KeyMsg(
		tea.Key{
			Type: tea.KeyDown,
		},
	))

	require.EqualValues(t, initialScroll+1, m.List.Rows.Index(), "list index should have scrolled down one from the initial index (0), got %d", m.List.Rows.Index())
	require.True(t, m.SideBar.Viewport.AtTop(), "scroll offset should still be at the top after scrolling down the list")
}

func (s *ViewerTestSuite) TestSidebarUpdating() {
	t := s.T()

	m, err := viewer.NewModel(s.db, enrich.NoopResolver{})
	require.NoError(t, err)

	m.Update(tea.WindowSizeMsg{Width: 150, Height: 50})

	selectedIndex := m.List.Rows.Index()
	items := m.List.Rows.Items()

	selectedRow, ok := items[selectedIndex].(viewer.Item)
	require.True(t, ok, "casting item to Item should not return an error")
	require.Equal(t, selectedRow, *m.SideBar.Data, "expected sidebar data to be %v, got %v", selectedRow, m.SideBar.Data)

	// scroll down the list once
	m.Update(tea.KeyMsg(
		tea.Key{
			Type: tea.KeyDown,
		},
	))

	selectedRow, ok = items[m.List.Rows.Index()].(viewer.Item)
	require.True(t, ok, "casting item to Item should not return an error")
	require.Equal(t, selectedRow, *m.SideBar.Data, "expected sidebar data to be %v, got %v", selectedRow, m.SideBar.Data)
}
