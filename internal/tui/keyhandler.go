package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/gallery/internal/config"
	"github.com/pders01/gallery/internal/viewer"
)

type keyMap struct {
	Quit           key.Binding
	Search         key.Binding
	Tags           key.Binding
	Filter         key.Binding
	Retry          key.Binding
	ToggleRestrict key.Binding
	OpenImage      key.Binding
	Detail         key.Binding
	Back           key.Binding
	Select         key.Binding
	Navigate       key.Binding
}

func newKeyMap(cfg *config.Config) keyMap {
	mod := cfg.Keys.Modifier + "+"
	b := cfg.Keys.Bindings

	withMod := func(k, desc string) key.Binding {
		return key.NewBinding(key.WithKeys(mod+k), key.WithHelp(mod+k, desc))
	}
	plain := func(k, desc string) key.Binding {
		return key.NewBinding(key.WithKeys(k), key.WithHelp(k, desc))
	}

	return keyMap{
		Quit:           plain(b.Quit, "quit"),
		Search:         withMod(b.Search, "search"),
		Tags:           withMod(b.Tags, "tags"),
		Filter:         plain(b.Filter, "filter"),
		Retry:          withMod(b.Retry, "retry"),
		ToggleRestrict: withMod(b.ToggleRestrict, "restricted"),
		OpenImage:      withMod(b.OpenImage, "open"),
		Detail:         withMod(b.Detail, "details"),
		Back:           plain(b.Back, "back"),
		Select:         plain("enter", "select"),
		Navigate:       key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "prev/next")),
	}
}

type KeyHandler struct {
	app         *App
	config      *config.Config
	keys        keyMap
	modifierKey string
}

func NewKeyHandler(app *App, cfg *config.Config) *KeyHandler {
	return &KeyHandler{
		app:         app,
		config:      cfg,
		keys:        newKeyMap(cfg),
		modifierKey: cfg.Keys.Modifier + "+",
	}
}

func (kh *KeyHandler) HandleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return kh.app, tea.Quit
	}

	if kh.isInTextInputMode() {
		return kh.handleTextInputMode(msg)
	}

	if kh.app.view == ViewTags && kh.app.tagList.FilterState() == list.Filtering {
		return kh.delegateToCharm(msg)
	}

	if model, cmd, handled := kh.handleCustomKeys(msg); handled {
		return model, cmd
	}

	return kh.delegateToCharm(msg)
}

func (kh *KeyHandler) isInTextInputMode() bool {
	switch kh.app.view {
	case ViewSearch:
		return kh.app.searchInput.Focused()
	case ViewGallery:
		return kh.app.filter.active && kh.app.filterInput.Focused()
	default:
		return false
	}
}

func (kh *KeyHandler) handleTextInputMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return kh.navigateBack()
	case "enter":
		return kh.handleTextInputEnter()
	}
	return kh.delegateToTextInput(msg)
}

func (kh *KeyHandler) handleTextInputEnter() (tea.Model, tea.Cmd) {
	switch kh.app.view {
	case ViewSearch:
		return kh.app, kh.app.submitSearch(kh.app.searchInput.Value())
	case ViewGallery:
		// Keep the results and hand the keys back to the list.
		kh.app.filterInput.Blur()
		return kh.app, nil
	}
	return kh.app, nil
}

func (kh *KeyHandler) delegateToTextInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch kh.app.view {
	case ViewSearch:
		newInput, cmd := kh.app.searchInput.Update(msg)
		kh.app.searchInput = newInput
		return kh.app, cmd
	case ViewGallery:
		prev := kh.app.filterInput.Value()
		newInput, cmd := kh.app.filterInput.Update(msg)
		kh.app.filterInput = newInput
		if kh.app.filterInput.Value() != prev {
			kh.app.applyFilter(kh.app.filterInput.Value())
		}
		return kh.app, cmd
	}
	return kh.app, nil
}

// handleCustomKeys handles only our own action keys; the rest go to the
// focused bubble.
func (kh *KeyHandler) handleCustomKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	// The viewer owns the plain navigation keys, including q and esc.
	if kh.app.view == ViewViewer {
		if model, cmd, handled := kh.handleViewerKeys(msg); handled {
			return model, cmd, true
		}
	}

	switch {
	case key.Matches(msg, kh.keys.Quit):
		return kh.app, tea.Quit, true
	case key.Matches(msg, kh.keys.Back):
		model, cmd := kh.navigateBack()
		return model, cmd, true
	case key.Matches(msg, kh.keys.Search):
		kh.app.enterSearch()
		return kh.app, nil, true
	case key.Matches(msg, kh.keys.Tags):
		return kh.app, kh.app.enterTags(), true
	}

	switch kh.app.view {
	case ViewGallery:
		return kh.handleGalleryKeys(msg)
	case ViewTags:
		return kh.handleTagsKeys(msg)
	case ViewDetail:
		return kh.handleDetailKeys(msg)
	default:
		return kh.app, nil, false
	}
}

func (kh *KeyHandler) handleGalleryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	a := kh.app
	switch {
	case key.Matches(msg, kh.keys.Select):
		return a, a.openViewer(), true
	case key.Matches(msg, kh.keys.Filter):
		a.startFilter()
		return a, nil, true
	case key.Matches(msg, kh.keys.Retry):
		return a, a.retry(), true
	case key.Matches(msg, kh.keys.ToggleRestrict):
		a.toggleRestrict()
		return a, nil, true
	case key.Matches(msg, kh.keys.OpenImage):
		if it, ok := a.selectedItem(); ok && len(it.item.Images) > 0 {
			return a, a.openImage(it.item.Images[0]), true
		}
		a.setStatus(MsgNoImages, StatusWarn)
		return a, nil, true
	case key.Matches(msg, kh.keys.Detail):
		if it, ok := a.selectedItem(); ok {
			return a, a.showDetail(it.item), true
		}
		return a, nil, true
	}
	return a, nil, false
}

func (kh *KeyHandler) handleTagsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if !key.Matches(msg, kh.keys.Select) {
		return kh.app, nil, false
	}
	if kw, ok := kh.app.tagList.SelectedItem().(keywordItem); ok {
		return kh.app, kh.app.switchTo(kw.kw.Tag), true
	}
	return kh.app, nil, true
}

func (kh *KeyHandler) handleViewerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	a := kh.app
	if a.viewer == nil {
		return a, nil, false
	}
	if key.Matches(msg, kh.keys.OpenImage) || key.Matches(msg, kh.keys.Select) {
		return a, a.openImage(a.viewer.Current()), true
	}
	if action := a.viewer.HandleKey(msg.String()); action != viewer.ActionNone {
		return a, nil, true
	}
	return a, nil, false
}

func (kh *KeyHandler) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	a := kh.app
	if a.detail == nil {
		return a, nil, false
	}
	switch {
	case key.Matches(msg, kh.keys.Select):
		return a, a.openViewerOn(a.detail.Images, 0), true
	case key.Matches(msg, kh.keys.OpenImage):
		if len(a.detail.Images) == 0 {
			a.setStatus(MsgNoImages, StatusWarn)
			return a, nil, true
		}
		return a, a.openImage(a.detail.Images[0]), true
	}
	return a, nil, false
}

func (kh *KeyHandler) delegateToCharm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := kh.app
	var cmd tea.Cmd
	switch a.view {
	case ViewGallery:
		a.list, cmd = a.list.Update(msg)
		a.checkScroll()
		return a, tea.Batch(cmd, a.flushPending())
	case ViewTags:
		a.tagList, cmd = a.tagList.Update(msg)
	case ViewDetail:
		a.viewport, cmd = a.viewport.Update(msg)
	}
	return a, cmd
}

func (kh *KeyHandler) navigateBack() (tea.Model, tea.Cmd) {
	a := kh.app
	switch a.view {
	case ViewSearch:
		a.searchInput.Blur()
		a.view = a.previousView
	case ViewTags:
		a.view = a.previousView
	case ViewViewer:
		if a.viewer != nil {
			a.viewer.Close()
		} else {
			a.view = a.previousView
		}
	case ViewDetail:
		return a, a.leaveDetail()
	case ViewGallery:
		if a.filter.active {
			a.clearFilter()
		}
	}
	return a, nil
}

// GetHelpForCurrentView lists the bindings shown in the status bar.
func (kh *KeyHandler) GetHelpForCurrentView() []key.Binding {
	k := kh.keys
	switch kh.app.view {
	case ViewGallery:
		if kh.app.filter.active && kh.app.filterInput.Focused() {
			return []key.Binding{k.Select, k.Back}
		}
		bindings := []key.Binding{k.Select, k.Search, k.Tags, k.Filter, k.ToggleRestrict, k.OpenImage, k.Detail}
		if kh.app.state.IsError {
			bindings = append(bindings, k.Retry)
		}
		return append(bindings, k.Quit)
	case ViewSearch:
		return []key.Binding{k.Select, k.Back}
	case ViewTags:
		return []key.Binding{k.Select, k.Search, k.Back}
	case ViewViewer:
		return []key.Binding{k.Navigate, k.OpenImage, k.Back}
	case ViewDetail:
		return []key.Binding{k.Select, k.OpenImage, k.Back}
	}
	return nil
}
