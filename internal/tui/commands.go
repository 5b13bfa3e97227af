package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/gallery/internal/debuglog"
	"github.com/pders01/gallery/internal/gallery"
	"github.com/pders01/gallery/internal/source"
)

var errNoOpener = errors.New("no image viewer configured")

// describeErr prefixes err with the action that failed. Fetch failures show
// the source's short message rather than the whole wrapped chain.
func describeErr(action string, err error) string {
	var fe *source.FetchError
	if errors.As(err, &fe) {
		return action + ": " + fe.UserMessage()
	}
	return action + ": " + err.Error()
}

func (a *App) startup() tea.Cmd {
	ctx, store := a.ctx, a.store
	opts := gallery.StartupOptions{Entry: a.entry}
	return func() tea.Msg {
		return startupDoneMsg{err: store.Startup(ctx, opts)}
	}
}

// fetchPage runs a request obtained from the store. The outcome reaches the
// view through store events, so the command itself yields no message.
func (a *App) fetchPage(req gallery.Request) tea.Cmd {
	ctx, store := a.ctx, a.store
	return func() tea.Msg {
		if err := store.Execute(ctx, req); err != nil {
			debuglog.With("word", req.Query.Word, "page", req.Query.Page).Debugf("fetch command: %v", err)
		}
		return nil
	}
}

func (a *App) fetchTags() tea.Cmd {
	ctx, store := a.ctx, a.store
	return func() tea.Msg {
		_ = store.FetchTags(ctx)
		return nil
	}
}

func (a *App) fetchDetail(id string) tea.Cmd {
	ctx := a.ctx
	fetcher, ok := a.store.Source().(source.ItemFetcher)
	return func() tea.Msg {
		if !ok {
			return detailLoadedMsg{err: source.ErrUnsupported}
		}
		item, err := fetcher.FetchItem(ctx, id)
		return detailLoadedMsg{item: item, err: err}
	}
}

func (a *App) renderDetail(item source.Item) tea.Cmd {
	r, err := a.getRenderer()
	return func() tea.Msg {
		if err != nil {
			return detailRenderedMsg{content: "Error initializing renderer: " + err.Error()}
		}
		rendered, err := r.Render(detailMarkdown(item))
		if err != nil {
			return detailRenderedMsg{content: fmt.Sprintf("# Error\n\nFailed to render item: %s\n\nPress Escape to go back.", err.Error())}
		}
		return detailRenderedMsg{content: rendered}
	}
}

func detailMarkdown(item source.Item) string {
	var b strings.Builder

	title := item.Title
	if title == "" {
		title = "Item " + item.ID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if item.Author != "" {
		fmt.Fprintf(&b, "*by %s*\n\n", item.Author)
	}

	fmt.Fprintf(&b, "- **ID:** %s\n", item.ID)
	if item.Width > 0 && item.Height > 0 {
		fmt.Fprintf(&b, "- **Size:** %d × %d\n", item.Width, item.Height)
	}
	if item.PageCount > 1 {
		fmt.Fprintf(&b, "- **Pages:** %d\n", item.PageCount)
	}
	if !item.Created.IsZero() {
		fmt.Fprintf(&b, "- **Created:** %s\n", item.Created.Format(time.RFC1123))
	}
	if item.Restricted {
		b.WriteString("- **Restricted**\n")
	}
	b.WriteString("\n")

	if len(item.Tags) > 0 {
		tags := make([]string, len(item.Tags))
		for i, t := range item.Tags {
			tags[i] = "`#" + t + "`"
		}
		b.WriteString(strings.Join(tags, " "))
		b.WriteString("\n\n")
	}

	if len(item.Images) > 0 {
		b.WriteString("---\n\n**Images:**\n")
		for i, img := range item.Images {
			fmt.Fprintf(&b, "%d. %s\n", i+1, img)
		}
	}

	return b.String()
}

func (a *App) openImage(ref string) tea.Cmd {
	opener := a.launcher
	return func() tea.Msg {
		if opener == nil {
			return imageOpenedMsg{ref: ref, err: errNoOpener}
		}
		return imageOpenedMsg{ref: ref, err: opener.Open(ref)}
	}
}
