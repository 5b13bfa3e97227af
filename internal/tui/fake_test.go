package tui

import (
	"context"
	"fmt"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/gallery/internal/config"
	"github.com/pders01/gallery/internal/gallery"
	"github.com/pders01/gallery/internal/search"
	"github.com/pders01/gallery/internal/source"
	"github.com/pders01/gallery/internal/storage"
)

// fakeSource serves scripted pages in order. A nil page fails; running out
// of pages yields empty ones.
type fakeSource struct {
	mu    sync.Mutex
	pages [][]source.Item
	calls []source.Query
	tags  []source.Tag
	// dropped counts entries filtered out of the given query page.
	dropped map[int]int
}

func (f *fakeSource) FetchPage(_ context.Context, q source.Query) (source.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, q)
	if len(f.pages) == 0 {
		return source.Page{Items: []source.Item{}}, nil
	}
	items := f.pages[0]
	f.pages = f.pages[1:]
	if items == nil {
		return source.Page{}, &source.FetchError{Op: "page", Word: q.Word, Page: q.Page, Message: "server unavailable"}
	}
	return source.Page{Items: items, Fetched: len(items) + f.dropped[q.Page]}, nil
}

func (f *fakeSource) FetchTags(context.Context) ([]source.Tag, error) {
	return f.tags, nil
}

func (f *fakeSource) FetchItem(_ context.Context, id string) (*source.Item, error) {
	if id == "404" {
		return nil, &source.FetchError{Op: "item", Status: 404, Message: "not found"}
	}
	return &source.Item{ID: id, Title: "Item " + id, Images: []string{"https://img.example.com/" + id + ".jpg"}}, nil
}

func (f *fakeSource) queries() []source.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]source.Query(nil), f.calls...)
}

type fakeOpener struct {
	opened []string
	err    error
}

func (o *fakeOpener) Open(ref string) error {
	o.opened = append(o.opened, ref)
	return o.err
}

func page(prefix string, n int) []source.Item {
	items := make([]source.Item, n)
	for i := range items {
		items[i] = source.Item{
			ID:     fmt.Sprintf("%s-%d", prefix, i),
			Title:  fmt.Sprintf("%s %d", prefix, i),
			Author: "tester",
			Images: []string{
				fmt.Sprintf("https://img.example.com/%s/%d_p0.jpg", prefix, i),
				fmt.Sprintf("https://img.example.com/%s/%d_p1.jpg", prefix, i),
				fmt.Sprintf("https://img.example.com/%s/%d_p2.jpg", prefix, i),
			},
		}
	}
	return items
}

func newTestApp(t *testing.T, src *fakeSource) (*App, *gallery.Store, *fakeOpener) {
	t.Helper()
	cfg := config.TestConfig()
	store := gallery.NewStore(src, storage.NewMemoryCache())
	opener := &fakeOpener{}
	app := NewApp(store, cfg, Options{Launcher: opener, Searcher: search.NewEngine()})
	t.Cleanup(app.Close)
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return app, store, opener
}

// pump applies queued store events and runs the fetches they trigger until
// the app is quiet.
func pump(a *App) {
	for i := 0; i < 20; i++ {
		events := a.events.drain()
		cmds := a.pending
		a.pending = nil
		if len(events) == 0 && len(cmds) == 0 {
			return
		}
		a.applyEvents(events)
		for _, cmd := range cmds {
			cmd()
		}
	}
}

// run executes cmd and every command it batches, returning the messages.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var msgs []tea.Msg
		for _, c := range batch {
			msgs = append(msgs, run(c)...)
		}
		return msgs
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, a *App, msg tea.Msg) tea.Cmd {
	t.Helper()
	model, cmd := a.Update(msg)
	if model != a {
		t.Fatalf("Update returned a different model")
	}
	return cmd
}
