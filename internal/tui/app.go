package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wrap"

	"github.com/pders01/gallery/internal/config"
	"github.com/pders01/gallery/internal/debuglog"
	"github.com/pders01/gallery/internal/gallery"
	"github.com/pders01/gallery/internal/media"
	"github.com/pders01/gallery/internal/scroll"
	"github.com/pders01/gallery/internal/search"
	"github.com/pders01/gallery/internal/source"
	"github.com/pders01/gallery/internal/viewer"
)

// ImageOpener hands an image reference to an external program.
type ImageOpener interface {
	Open(ref string) error
}

// Options are the optional collaborators of an App. Zero values are
// replaced with the real implementations.
type Options struct {
	Entry    string
	Launcher ImageOpener
	Searcher search.Searcher
}

type filterState struct {
	active bool
	query  string
}

type App struct {
	config      *config.Config
	store       *gallery.Store
	launcher    ImageOpener
	searcher    search.Searcher
	scroll      *scroll.Controller
	keyHandler  *KeyHandler
	events      *eventQueue
	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc
	entry       string

	list        list.Model
	tagList     list.Model
	searchInput textinput.Model
	filterInput textinput.Model
	viewport    viewport.Model
	spinner     spinner.Model
	help        help.Model
	viewer      *viewer.Viewer

	view         View
	previousView View
	viewerReturn View

	state         gallery.State
	filter        filterState
	detail        *source.Item
	loadingDetail bool
	starting      bool

	status     string
	statusKind StatusKind
	err        error

	width  int
	height int

	glamourRenderer *glamour.TermRenderer
	rendererWidth   int

	// commands queued by callbacks that run inside Update
	pending []tea.Cmd
}

func NewApp(store *gallery.Store, cfg *config.Config, opts Options) *App {
	feedList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	feedList.SetShowStatusBar(false)
	feedList.SetFilteringEnabled(false)
	feedList.SetShowHelp(false)
	feedList.KeyMap.Quit.SetEnabled(false)
	feedList.KeyMap.ForceQuit.SetEnabled(false)

	tagList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	tagList.Title = "› tags"
	tagList.SetShowStatusBar(false)
	tagList.SetFilteringEnabled(true)
	tagList.SetShowHelp(false)
	tagList.KeyMap.Quit.SetEnabled(false)
	tagList.KeyMap.ForceQuit.SetEnabled(false)

	si := textinput.New()
	si.Placeholder = "Tag to search, or an item id…"

	fi := textinput.New()
	fi.Placeholder = "Filter loaded items…"
	fi.Prompt = "/ "

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(AccentColor)

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		config:       cfg,
		store:        store,
		launcher:     opts.Launcher,
		searcher:     opts.Searcher,
		events:       newEventQueue(),
		ctx:          ctx,
		cancel:       cancel,
		entry:        opts.Entry,
		list:         feedList,
		tagList:      tagList,
		searchInput:  si,
		filterInput:  fi,
		viewport:     viewport.New(0, 0),
		spinner:      sp,
		help:         help.New(),
		view:         ViewGallery,
		previousView: ViewGallery,
		viewerReturn: ViewGallery,
	}
	if app.launcher == nil {
		app.launcher = media.NewLauncher(&cfg.Media)
	}
	if app.searcher == nil {
		app.searcher = search.New()
	}

	app.keyHandler = NewKeyHandler(app, cfg)
	app.scroll = scroll.New(cfg.Scroll.Distance, cfg.Scroll.RetryCeiling, app.loadMore)
	app.unsubscribe = store.Subscribe(app.events.push)

	app.state = store.Snapshot()
	if len(app.state.Items) > 0 {
		if err := app.searcher.Index(app.state.Items); err != nil {
			debuglog.Warnf("indexing items: %v", err)
		}
	}
	app.syncList()
	app.refreshTags()

	return app
}

// Close stops outstanding requests and detaches from the store.
func (a *App) Close() {
	a.cancel()
	a.unsubscribe()
	a.events.close()
}

func (a *App) getRenderer() (*glamour.TermRenderer, error) {
	wordWrapWidth := (a.width * 9) / 10
	if wordWrapWidth > 120 {
		wordWrapWidth = 120
	}
	if wordWrapWidth < 40 {
		wordWrapWidth = 40
	}

	if a.glamourRenderer == nil || abs(a.rendererWidth-wordWrapWidth) > 10 {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wordWrapWidth),
		)
		if err != nil {
			return nil, err
		}
		a.glamourRenderer = r
		a.rendererWidth = wordWrapWidth
	}

	return a.glamourRenderer, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (a *App) Init() tea.Cmd {
	a.starting = true
	return tea.Batch(
		a.events.wait(),
		a.startup(),
		a.spinner.Tick,
	)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.layout()

	case tea.KeyMsg:
		a.status = ""
		a.err = nil
		return a.keyHandler.HandleKey(msg)

	case tea.MouseMsg:
		return a.handleMouse(msg)

	case storeEventsMsg:
		a.applyEvents(msg.events)
		cmds = append(cmds, a.events.wait(), a.flushPending())

	case startupDoneMsg:
		a.starting = false
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) && !a.state.IsError {
			a.setStatus(describeErr("startup", msg.err), StatusError)
		}

	case detailLoadedMsg:
		if msg.err == nil && msg.item == nil {
			msg.err = source.ErrUnsupported
		}
		if msg.err != nil {
			a.loadingDetail = false
			a.err = errors.New(describeErr("loading item", msg.err))
			break
		}
		a.detail = msg.item
		cmds = append(cmds, a.renderDetail(*msg.item))

	case detailRenderedMsg:
		if a.view == ViewDetail {
			a.viewport.SetContent(msg.content)
			a.viewport.GotoTop()
			a.loadingDetail = false
		}

	case imageOpenedMsg:
		if msg.err != nil {
			a.setStatus(msg.err.Error(), StatusError)
		} else {
			a.setStatus(MsgOpened(msg.ref), StatusSuccess)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return a, tea.Batch(cmds...)
}

func (a *App) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch a.view {
	case ViewViewer:
		if a.viewer != nil && msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			a.viewer.HandleClick(msg.Y, a.contentHeight())
		}
	case ViewGallery:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			a.list.CursorUp()
		case tea.MouseButtonWheelDown:
			a.list.CursorDown()
			a.checkScroll()
		}
		return a, a.flushPending()
	case ViewDetail:
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}
	return a, nil
}

// applyEvents folds a batch of store events into the view.
func (a *App) applyEvents(events []gallery.Event) {
	if len(events) == 0 {
		return
	}

	loaded := false
	for _, ev := range events {
		switch ev.Kind {
		case gallery.EventReset:
			a.scroll.HasMore = true
			a.filter = filterState{}
			a.filterInput.Blur()
			a.filterInput.Reset()
			if err := a.searcher.Reset(); err != nil {
				debuglog.Warnf("resetting search index: %v", err)
			}
			a.list.Select(0)

		case gallery.EventPageLoaded:
			items := ev.State.Items
			added := items[len(items)-ev.Added:]
			if err := a.searcher.Index(added); err != nil {
				debuglog.Warnf("indexing items: %v", err)
			}
			if ev.Fetched == 0 {
				a.scroll.HasMore = false
				a.setStatus(MsgNoMore, StatusInfo)
			} else {
				a.setStatus(MsgPageLoaded(ev.State.Word, ev.State.Page-1, ev.Added, len(items)), StatusSuccess)
			}
			loaded = true

		case gallery.EventPageFailed:
			a.setStatus(ev.State.ErrorMsg, StatusError)

		case gallery.EventFilterChanged:
			if a.store.XRestrict() {
				a.setStatus(MsgFilterOn, StatusWarn)
			} else {
				a.setStatus(MsgFilterOff, StatusInfo)
			}

		case gallery.EventTagsFailed:
			a.setStatus(describeErr("loading tags", ev.Err), StatusWarn)
		}
	}

	a.state = events[len(events)-1].State
	a.list.Title = "› " + wordLabel(a.state.Word)

	if a.filter.active {
		a.applyFilter(a.filter.query)
	} else {
		a.syncList()
	}
	a.refreshTags()

	a.scroll.Sync(scroll.Status{IsFetching: a.state.IsFetching, ErrorTimes: a.state.ErrorTimes})
	if loaded {
		// A short page may not fill the screen; keep loading until it does.
		a.checkScroll()
	}
}

func (a *App) syncList() {
	items := make([]list.Item, len(a.state.Items))
	for i, it := range a.state.Items {
		items[i] = galleryItem{item: it, index: i}
	}
	a.list.SetItems(items)
}

func (a *App) refreshTags() {
	keywords := buildKeywordItems(a.store.Keywords())
	a.tagList.SetItems(keywords)
	for i, it := range keywords {
		if kw := it.(keywordItem); kw.kw.Active {
			a.tagList.Select(i)
			break
		}
	}
}

func buildKeywordItems(keywords []gallery.Keyword) []list.Item {
	items := make([]list.Item, len(keywords))
	for i, kw := range keywords {
		items[i] = keywordItem{kw: kw}
	}
	return items
}

func (a *App) selectedItem() (galleryItem, bool) {
	it, ok := a.list.SelectedItem().(galleryItem)
	return it, ok
}

// checkScroll lets the scroll controller decide whether the visible page is
// close enough to the end to load more.
func (a *App) checkScroll() {
	if a.view != ViewGallery || a.filter.active || a.height == 0 {
		return
	}
	p := a.list.Paginator
	pos := scroll.Position{
		Offset:   p.Page * p.PerPage,
		Viewport: p.PerPage,
		Content:  len(a.list.Items()),
	}
	a.scroll.Check(pos, scroll.Status{IsFetching: a.state.IsFetching, ErrorTimes: a.state.ErrorTimes})
}

func (a *App) loadMore() {
	req, err := a.store.BeginFetch(false)
	if err != nil {
		debuglog.Debugf("load more skipped: %v", err)
		return
	}
	a.state.IsFetching = true
	a.pending = append(a.pending, a.fetchPage(req))
}

func (a *App) flushPending() tea.Cmd {
	cmds := a.pending
	a.pending = nil
	return tea.Batch(cmds...)
}

func (a *App) setStatus(msg string, kind StatusKind) {
	a.status = msg
	a.statusKind = kind
}

func (a *App) enterSearch() {
	if a.view != ViewSearch {
		a.previousView = a.view
	}
	a.view = ViewSearch
	a.searchInput.Reset()
	a.searchInput.Focus()
}

func (a *App) enterTags() tea.Cmd {
	if a.view != ViewTags {
		a.previousView = a.view
	}
	a.view = ViewTags
	a.refreshTags()
	if len(a.state.Tags) == 0 && !a.state.IsFetchingTags {
		a.setStatus(MsgLoadingTags, StatusInfo)
		return a.fetchTags()
	}
	return nil
}

// submitSearch handles the search box: a word switches the feed, a number
// opens that item.
func (a *App) submitSearch(input string) tea.Cmd {
	action := gallery.ResolveSearch(input)
	switch action.Kind {
	case gallery.ActionSearch:
		a.searchInput.Blur()
		a.searchInput.Reset()
		return a.switchTo(action.Word)
	case gallery.ActionOpenItem:
		a.searchInput.Blur()
		a.searchInput.Reset()
		a.store.SetFromIllust(true)
		a.previousView = ViewGallery
		a.view = ViewDetail
		a.detail = nil
		a.loadingDetail = true
		return a.fetchDetail(action.ID)
	}
	return nil
}

func (a *App) switchTo(word string) tea.Cmd {
	a.view = ViewGallery
	req, ok := a.store.BeginSwitch(word)
	if !ok {
		return nil
	}
	a.state.IsFetching = true
	a.setStatus(MsgLoading, StatusInfo)
	return a.fetchPage(req)
}

func (a *App) retry() tea.Cmd {
	req, err := a.store.BeginRetry()
	if err != nil {
		if !errors.Is(err, gallery.ErrFetchInFlight) {
			a.setStatus(err.Error(), StatusWarn)
		}
		return nil
	}
	a.state.IsFetching = true
	a.scroll.Sync(scroll.Status{IsFetching: true})
	a.setStatus(MsgLoading, StatusInfo)
	return a.fetchPage(req)
}

func (a *App) toggleRestrict() {
	a.store.SetXRestrict(!a.store.XRestrict())
}

func (a *App) startFilter() {
	a.filter = filterState{active: true}
	a.filterInput.Reset()
	a.filterInput.Focus()
	a.layout()
}

func (a *App) clearFilter() {
	a.filter = filterState{}
	a.filterInput.Blur()
	a.filterInput.Reset()
	a.syncList()
	a.layout()
}

// applyFilter narrows the list to the loaded items matching query, best
// match first. Queries shorter than two characters show everything.
func (a *App) applyFilter(query string) {
	a.filter.query = query
	if len([]rune(strings.TrimSpace(query))) < 2 {
		a.syncList()
		return
	}

	results, err := a.searcher.Search(query, len(a.state.Items))
	if err != nil {
		a.setStatus(describeErr("filter", err), StatusError)
		return
	}

	byID := make(map[string]int, len(a.state.Items))
	for i, it := range a.state.Items {
		if _, seen := byID[it.ID]; !seen {
			byID[it.ID] = i
		}
	}

	items := make([]list.Item, 0, len(results))
	for _, r := range results {
		if i, ok := byID[r.ID]; ok {
			items = append(items, galleryItem{item: a.state.Items[i], index: i})
		}
	}
	a.list.SetItems(items)
	a.list.Select(0)
	a.setStatus(MsgResultsCount(len(items)), StatusInfo)
}

func (a *App) openViewer() tea.Cmd {
	it, ok := a.selectedItem()
	if !ok {
		return nil
	}
	return a.openViewerOn(a.store.Images(it.index), 0)
}

func (a *App) openViewerOn(images []string, index int) tea.Cmd {
	v, ok := viewer.New(images, index, a.config.Viewer, a.closeViewer)
	if !ok {
		a.setStatus(MsgNoImages, StatusWarn)
		return nil
	}
	a.viewer = v
	a.viewerReturn = a.view
	a.view = ViewViewer
	return nil
}

func (a *App) closeViewer() {
	a.viewer = nil
	a.view = a.viewerReturn
}

func (a *App) showDetail(item source.Item) tea.Cmd {
	a.previousView = a.view
	a.view = ViewDetail
	a.detail = &item
	a.loadingDetail = true
	return a.renderDetail(item)
}

// leaveDetail returns to the feed. A detail view reached through the search
// box re-runs the current search on the way out.
func (a *App) leaveDetail() tea.Cmd {
	a.view = a.previousView
	if a.view == ViewDetail || a.view == ViewViewer {
		a.view = ViewGallery
	}
	a.detail = nil
	a.loadingDetail = false
	if a.store.Snapshot().FromIllust {
		a.starting = true
		return a.startup()
	}
	return nil
}

func (a *App) contentHeight() int {
	h := a.height - 2
	if h < 1 {
		h = 1
	}
	return h
}

func (a *App) layout() {
	h := a.contentHeight()

	listHeight := h - 1
	if a.filter.active {
		listHeight -= 3
	}
	if listHeight < 3 {
		listHeight = 3
	}
	a.list.SetSize(a.width, listHeight)
	a.tagList.SetSize(a.width, h)

	a.viewport.Width = a.width
	a.viewport.Height = h

	inputWidth := a.width - 8
	if inputWidth < 10 {
		inputWidth = a.width
	}
	a.searchInput.Width = inputWidth
	a.filterInput.Width = inputWidth
	a.help.Width = a.width
}

func (a *App) View() string {
	var content string

	switch a.view {
	case ViewGallery:
		content = a.galleryView()
	case ViewSearch:
		content = a.searchView()
	case ViewTags:
		content = a.tagList.View()
	case ViewViewer:
		content = a.viewerView()
	case ViewDetail:
		content = a.detailView()
	}

	return lipgloss.JoinVertical(lipgloss.Top, content, renderSeparator(a.width), a.statusBar())
}

func (a *App) galleryView() string {
	h := a.contentHeight()
	retryKey := a.keyHandler.keys.Retry.Help().Key

	if len(a.state.Items) == 0 {
		switch {
		case a.state.IsError:
			return renderCentered(a.width, h, lipgloss.JoinVertical(
				lipgloss.Center,
				ErrorMessageStyle.Render("✗ "+a.state.ErrorMsg),
				"",
				renderHelp(retryKey+": retry"),
			))
		case a.state.IsFetching || a.starting:
			return renderCentered(a.width, h, GetCompactBanner(a.spinner.View()+" "+MsgLoading))
		case !a.scroll.HasMore:
			return renderCentered(a.width, h, renderMuted(MsgNoResults))
		default:
			return renderCentered(a.width, h, GetWelcomeMessage())
		}
	}

	var rows []string
	if a.filter.active {
		rows = append(rows, renderInputFrame(a.filterInput.View(), a.filterInput.Focused(), a.filterInput.Width))
	}
	rows = append(rows, a.list.View())

	switch {
	case a.state.IsError:
		rows = append(rows, renderErrorRow(a.state.ErrorMsg, retryKey, a.scroll.Frozen(), a.width))
	case a.state.IsFetching:
		rows = append(rows, renderMuted(" "+a.spinner.View()+" "+MsgLoading))
	case !a.scroll.HasMore:
		rows = append(rows, renderMuted(" "+MsgNoMore))
	default:
		rows = append(rows, "")
	}

	return lipgloss.JoinVertical(lipgloss.Top, rows...)
}

func (a *App) searchView() string {
	body := lipgloss.JoinVertical(
		lipgloss.Top,
		renderHeader("› search", "a tag switches the feed, an item id opens it", a.width),
		"",
		renderInputFrame(a.searchInput.View(), a.searchInput.Focused(), a.searchInput.Width),
		renderHelp("Enter: search • Esc: back"),
	)
	return lipgloss.NewStyle().
		Width(a.width).
		Height(a.contentHeight()).
		MaxHeight(a.contentHeight()).
		Padding(1, 2).
		Render(body)
}

func (a *App) viewerView() string {
	if a.viewer == nil {
		return renderCentered(a.width, a.contentHeight(), renderMuted(MsgNoImages))
	}

	hint := "click top: previous • bottom: next • middle: close"
	if a.config.Viewer.TouchOnly {
		hint = "click anywhere to close"
	}

	return renderCentered(a.width, a.contentHeight(), lipgloss.JoinVertical(
		lipgloss.Center,
		IndicatorStyle.Render(a.viewer.Indicator()),
		"",
		wrap.String(a.viewer.Current(), max(a.width-4, 10)),
		"",
		renderHelp(hint),
	))
}

func (a *App) detailView() string {
	switch {
	case a.loadingDetail:
		return renderCentered(a.width, a.contentHeight(), renderMuted(a.spinner.View()+" "+MsgLoadingDetail))
	case a.detail == nil && a.err != nil:
		return renderCentered(a.width, a.contentHeight(), ErrorMessageStyle.Render("✗ "+a.err.Error()))
	}
	return a.viewport.View()
}

func (a *App) statusBar() string {
	var left string
	switch {
	case a.err != nil:
		left = StatusErrorStyle.Render("✗ " + a.err.Error())
	case a.status != "":
		left = a.statusKind.style().Render(a.status)
	default:
		left = a.help.ShortHelpView(a.keyHandler.GetHelpForCurrentView())
	}

	parts := []string{wordLabel(a.state.Word)}
	if a.store.XRestrict() {
		parts = append(parts, RestrictedStyle.Render("R"))
	}
	if a.state.IsFetching || a.state.IsFetchingTags {
		parts = append(parts, a.spinner.View())
	}
	right := strings.Join(parts, " ")

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		left = lipgloss.NewStyle().MaxWidth(max(a.width-lipgloss.Width(right)-3, 0)).Render(left)
		gap = 1
	}

	return StatusBarStyle.Render(left + strings.Repeat(" ", gap) + right)
}
