package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/gallery/internal/gallery"
	"github.com/pders01/gallery/internal/source"
)

func startApp(t *testing.T, src *fakeSource) (*App, *gallery.Store, *fakeOpener) {
	t.Helper()
	a, store, opener := newTestApp(t, src)
	msgs := run(a.startup())
	require.Len(t, msgs, 1)
	press(t, a, msgs[0])
	pump(a)
	return a, store, opener
}

func TestNewAppDefaults(t *testing.T) {
	a, store, _ := newTestApp(t, &fakeSource{})

	assert.Equal(t, ViewGallery, a.view)
	assert.Equal(t, "ctrl+", a.keyHandler.modifierKey)
	assert.True(t, a.scroll.HasMore)
	assert.Empty(t, a.list.Items())
	assert.Equal(t, source.Ranking, a.state.Word)
	assert.Same(t, store, a.store)
}

func TestStartupLoadsFirstPageAndTags(t *testing.T) {
	src := &fakeSource{
		pages: [][]source.Item{page("rank", 5)},
		tags:  []source.Tag{{Tag: "cats"}, {Tag: "dogs", TranslatedName: "Dogs"}},
	}
	a, _, _ := startApp(t, src)

	assert.Len(t, a.list.Items(), 5)
	assert.False(t, a.starting)

	// A short first page leaves the viewport unfilled, so the next page is
	// requested right away; it comes back empty.
	queries := src.queries()
	require.Len(t, queries, 2)
	assert.Equal(t, 1, queries[0].Page)
	assert.Equal(t, 2, queries[1].Page)
	assert.False(t, a.scroll.HasMore)
	assert.Equal(t, MsgNoMore, a.status)

	tags := a.tagList.Items()
	require.Len(t, tags, 3)
	assert.Equal(t, gallery.RankingLabel, tags[0].(keywordItem).kw.Label)
	assert.Equal(t, "Dogs", tags[2].(keywordItem).kw.Label)
}

func TestScrollToEndLoadsNextPage(t *testing.T) {
	src := &fakeSource{pages: [][]source.Item{page("a", 30), page("b", 30)}}
	a, _, _ := startApp(t, src)

	require.Len(t, a.list.Items(), 30)
	require.Len(t, src.queries(), 1, "a full first page should not load more")

	run(press(t, a, keyRunes("G")))
	pump(a)

	assert.Len(t, a.list.Items(), 60)
	queries := src.queries()
	require.GreaterOrEqual(t, len(queries), 2)
	assert.Equal(t, 2, queries[1].Page)
}

func TestScrollContinuesPastFilteredPage(t *testing.T) {
	src := &fakeSource{
		pages:   [][]source.Item{page("a", 30), {}, page("c", 30)},
		dropped: map[int]int{2: 6},
	}
	a, _, _ := startApp(t, src)
	require.Len(t, a.list.Items(), 30)

	run(press(t, a, keyRunes("G")))
	pump(a)

	queries := src.queries()
	require.GreaterOrEqual(t, len(queries), 3, "a page with only filtered entries is not the end")
	assert.Equal(t, 2, queries[1].Page)
	assert.Equal(t, 3, queries[2].Page)
	assert.Len(t, a.list.Items(), 60)
	assert.Equal(t, "c-0", a.list.Items()[30].(galleryItem).item.ID)
}

func TestEmptyPageEndsScroll(t *testing.T) {
	src := &fakeSource{pages: [][]source.Item{page("a", 30)}}
	a, _, _ := startApp(t, src)

	run(press(t, a, keyRunes("G")))
	pump(a)
	require.Len(t, src.queries(), 2)
	assert.False(t, a.scroll.HasMore)

	run(press(t, a, keyRunes("k")))
	run(press(t, a, keyRunes("G")))
	pump(a)
	assert.Len(t, src.queries(), 2, "no requests after the catalog is exhausted")
}

func TestSearchSwitchesFeed(t *testing.T) {
	src := &fakeSource{pages: [][]source.Item{page("rank", 30), page("cats", 30)}}
	a, store, _ := startApp(t, src)

	press(t, a, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.Equal(t, ViewSearch, a.view)

	press(t, a, keyRunes("cats"))
	cmd := press(t, a, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	assert.Equal(t, ViewGallery, a.view)
	assert.Equal(t, "cats", store.Snapshot().Word)

	run(cmd)
	pump(a)

	require.Len(t, a.list.Items(), 30)
	first := a.list.Items()[0].(galleryItem)
	assert.Equal(t, "cats-0", first.item.ID)
	assert.Contains(t, a.list.Title, "#cats")
	assert.Equal(t, 0, a.list.Index())
}

func TestSearchBlankIsIgnored(t *testing.T) {
	a, store, _ := newTestApp(t, &fakeSource{})

	press(t, a, tea.KeyMsg{Type: tea.KeyCtrlS})
	press(t, a, keyRunes("   "))
	cmd := press(t, a, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.Equal(t, ViewSearch, a.view)
	assert.Equal(t, source.Ranking, store.Snapshot().Word)
}

func TestSearchNumberOpensItemAndResearchesOnReturn(t *testing.T) {
	src := &fakeSource{pages: [][]source.Item{page("rank", 30), page("rank2", 30)}}
	a, store, _ := startApp(t, src)

	press(t, a, tea.KeyMsg{Type: tea.KeyCtrlS})
	press(t, a, keyRunes("123"))
	cmd := press(t, a, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, ViewDetail, a.view)
	assert.True(t, store.Snapshot().FromIllust)
	assert.True(t, a.loadingDetail)

	msgs := run(cmd)
	require.Len(t, msgs, 1)
	msgs = run(press(t, a, msgs[0]))
	require.Len(t, msgs, 1)
	press(t, a, msgs[0])

	assert.False(t, a.loadingDetail)
	require.NotNil(t, a.detail)
	assert.Equal(t, "123", a.detail.ID)
	assert.Contains(t, a.viewport.View(), "123")

	cmd = press(t, a, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewGallery, a.view)
	require.NotNil(t, cmd)

	msgs = run(cmd)
	require.Len(t, msgs, 1)
	assert.IsType(t, startupDoneMsg{}, msgs[0])
	assert.False(t, store.Snapshot().FromIllust)

	pump(a)
	first := a.list.Items()[0].(galleryItem)
	assert.Equal(t, "rank2-0", first.item.ID, "returning from the item re-runs the search")
}

func TestDetailLoadFailure(t *testing.T) {
	a, _, _ := newTestApp(t, &fakeSource{})

	press(t, a, tea.KeyMsg{Type: tea.KeyCtrlS})
	press(t, a, keyRunes("404"))
	msgs := run(press(t, a, tea.KeyMsg{Type: tea.KeyEnter}))
	require.Len(t, msgs, 1)
	press(t, a, msgs[0])

	assert.False(t, a.loadingDetail)
	require.Error(t, a.err)
	assert.Contains(t, a.View(), "not found")
}

func TestDetailOfSelectedItem(t *testing.T) {
	a, _, _ := startApp(t, &fakeSource{pages: [][]source.Item{page("rank", 30)}})

	msgs := run(press(t, a, tea.KeyMsg{Type: tea.KeyCtrlE}))
	require.Len(t, msgs, 1)
	press(t, a, msgs[0])

	assert.Equal(t, ViewDetail, a.view)
	assert.Contains(t, a.viewport.View(), "rank 0")

	cmd := press(t, a, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, cmd, "leaving a plain detail view does not refetch")
	assert.Equal(t, ViewGallery, a.view)
}

func TestViewerNavigation(t *testing.T) {
	a, _, _ := startApp(t, &fakeSource{pages: [][]source.Item{page("a", 30)}})

	press(t, a, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, ViewViewer, a.view)
	require.NotNil(t, a.viewer)
	assert.Equal(t, "1 / 3", a.viewer.Indicator())

	press(t, a, keyRunes("j"))
	assert.Equal(t, 1, a.viewer.Index())

	press(t, a, tea.KeyMsg{Type: tea.KeyUp})
	press(t, a, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 2, a.viewer.Index(), "navigation wraps around")

	press(t, a, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewGallery, a.view)
	assert.Nil(t, a.viewer)
}

func TestViewerClickZones(t *testing.T) {
	a, _, _ := startApp(t, &fakeSource{pages: [][]source.Item{page("a", 30)}})
	press(t, a, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, a.viewer)

	click := func(y int) {
		press(t, a, tea.MouseMsg{X: 10, Y: y, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	}

	click(0)
	assert.Equal(t, 2, a.viewer.Index())

	click(a.contentHeight() - 1)
	assert.Equal(t, 0, a.viewer.Index())

	click(a.contentHeight() / 2)
	assert.Equal(t, ViewGallery, a.view)
}

func TestViewerFromItemWithoutImages(t *testing.T) {
	items := page("a", 30)
	items[0].Images = nil
	a, _, _ := startApp(t, &fakeSource{pages: [][]source.Item{items}})

	press(t, a, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, ViewGallery, a.view)
	assert.Equal(t, MsgNoImages, a.status)
}

func TestToggleRestrict(t *testing.T) {
	a, store, _ := newTestApp(t, &fakeSource{})

	press(t, a, tea.KeyMsg{Type: tea.KeyCtrlX})
	pump(a)
	assert.True(t, store.XRestrict())
	assert.Equal(t, MsgFilterOn, a.status)

	press(t, a, tea.KeyMsg{Type: tea.KeyCtrlX})
	pump(a)
	assert.False(t, store.XRestrict())
	assert.Equal(t, MsgFilterOff, a.status)
}

func TestOpenImage(t *testing.T) {
	a, _, opener := startApp(t, &fakeSource{pages: [][]source.Item{page("a", 30)}})

	msgs := run(press(t, a, tea.KeyMsg{Type: tea.KeyCtrlO}))
	require.Len(t, msgs, 1)
	press(t, a, msgs[0])

	require.Len(t, opener.opened, 1)
	assert.Equal(t, "https://img.example.com/a/0_p0.jpg", opener.opened[0])
	assert.Equal(t, StatusSuccess, a.statusKind)
	assert.True(t, strings.HasPrefix(a.status, "Opened"))
}

func TestOpenImageFromViewer(t *testing.T) {
	a, _, opener := startApp(t, &fakeSource{pages: [][]source.Item{page("a", 30)}})

	press(t, a, tea.KeyMsg{Type: tea.KeyEnter})
	press(t, a, keyRunes("l"))
	msgs := run(press(t, a, tea.KeyMsg{Type: tea.KeyCtrlO}))
	require.Len(t, msgs, 1)

	assert.Equal(t, []string{"https://img.example.com/a/0_p1.jpg"}, opener.opened)
}

func TestFirstPageFailureAndRetry(t *testing.T) {
	src := &fakeSource{pages: [][]source.Item{nil, page("a", 30)}}
	a, store, _ := startApp(t, src)

	require.True(t, a.state.IsError)
	assert.Equal(t, 1, a.state.ErrorTimes)
	view := a.View()
	assert.Contains(t, view, "server unavailable")
	assert.Contains(t, view, "ctrl+r: retry")
	require.Len(t, src.queries(), 1, "a failed page must not retrigger by itself")

	cmd := press(t, a, tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, cmd)
	run(cmd)
	pump(a)

	assert.False(t, a.state.IsError)
	assert.Len(t, a.list.Items(), 30)
	assert.Equal(t, 0, store.Snapshot().ErrorTimes)
}

func TestFailedNextPageKeepsItems(t *testing.T) {
	src := &fakeSource{pages: [][]source.Item{page("a", 30), nil}}
	a, _, _ := startApp(t, src)

	run(press(t, a, keyRunes("G")))
	pump(a)

	assert.True(t, a.state.IsError)
	assert.Len(t, a.list.Items(), 30)
	assert.Contains(t, a.View(), "server unavailable")
}

func TestFilterLoadedItems(t *testing.T) {
	items := []source.Item{
		{ID: "1", Title: "Mountain lake"},
		{ID: "2", Title: "Sleeping cat"},
		{ID: "3", Title: "Cat on a roof"},
		{ID: "4", Title: "City lights"},
	}
	a, _, _ := startApp(t, &fakeSource{pages: [][]source.Item{items}})
	require.Len(t, a.list.Items(), 4)

	press(t, a, keyRunes("/"))
	require.True(t, a.filter.active)

	press(t, a, keyRunes("cat"))
	assert.Len(t, a.list.Items(), 2)
	for _, it := range a.list.Items() {
		assert.Contains(t, strings.ToLower(it.(galleryItem).item.Title), "cat")
	}

	press(t, a, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, a.filterInput.Focused())
	assert.True(t, a.filter.active)

	press(t, a, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, a.filter.active)
	assert.Len(t, a.list.Items(), 4)
}

func TestResetRestoresLoading(t *testing.T) {
	a, store, _ := startApp(t, &fakeSource{pages: [][]source.Item{page("a", 3)}})
	require.False(t, a.scroll.HasMore)

	_, ok := store.BeginSwitch("dogs")
	require.True(t, ok)
	a.applyEvents(a.events.drain())

	assert.True(t, a.scroll.HasMore)
	assert.Empty(t, a.list.Items())
	assert.True(t, a.state.IsFetching)
}

func TestTagsView(t *testing.T) {
	src := &fakeSource{
		pages: [][]source.Item{page("rank", 30)},
		tags:  []source.Tag{{Tag: "cats"}, {Tag: "dogs"}},
	}
	a, store, _ := startApp(t, src)

	press(t, a, tea.KeyMsg{Type: tea.KeyCtrlT})
	require.Equal(t, ViewTags, a.view)

	press(t, a, tea.KeyMsg{Type: tea.KeyDown})
	cmd := press(t, a, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	assert.Equal(t, ViewGallery, a.view)
	assert.Equal(t, "cats", store.Snapshot().Word)
}

func TestEscapeReturnsFromOverlays(t *testing.T) {
	a, _, _ := newTestApp(t, &fakeSource{})

	press(t, a, tea.KeyMsg{Type: tea.KeyCtrlS})
	press(t, a, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewGallery, a.view)

	press(t, a, tea.KeyMsg{Type: tea.KeyCtrlT})
	press(t, a, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewGallery, a.view)
}

func TestQuit(t *testing.T) {
	a, _, _ := newTestApp(t, &fakeSource{})

	cmd := press(t, a, keyRunes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	press(t, a, tea.KeyMsg{Type: tea.KeyCtrlS})
	press(t, a, keyRunes("q"))
	assert.Equal(t, ViewSearch, a.view)
	assert.Equal(t, "q", a.searchInput.Value(), "q types into the search box")
}

func TestViewRendersEveryView(t *testing.T) {
	a, _, _ := startApp(t, &fakeSource{pages: [][]source.Item{page("a", 30)}})

	for _, v := range []View{ViewGallery, ViewSearch, ViewTags, ViewDetail} {
		a.view = v
		assert.NotEmpty(t, a.View(), v.String())
	}

	a.view = ViewGallery
	a.openViewerOn([]string{"https://img.example.com/x.jpg"}, 0)
	assert.Contains(t, a.View(), "1 / 1")
}

func TestGalleryItemRendering(t *testing.T) {
	it := galleryItem{item: source.Item{
		ID:         "7",
		Title:      "Night sky",
		Author:     "mika",
		Images:     []string{"a", "b"},
		Tags:       []string{"sky", "night"},
		Restricted: true,
	}}

	assert.Contains(t, it.Title(), "Night sky")
	assert.Contains(t, it.Title(), "[R]")
	assert.Contains(t, it.Description(), "by mika")
	assert.Contains(t, it.Description(), "2 images")
	assert.Contains(t, it.Description(), "#sky #night")
	assert.Equal(t, "Night sky", it.FilterValue())

	untitled := galleryItem{item: source.Item{ID: "8", Images: []string{"a"}}}
	assert.Equal(t, "8", untitled.Title())
	assert.Contains(t, untitled.Description(), "1 image")
}
