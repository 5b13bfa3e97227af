package tui

import (
	"fmt"
	"strings"

	"github.com/pders01/gallery/internal/gallery"
	"github.com/pders01/gallery/internal/source"
)

type View int

const (
	ViewGallery View = iota
	ViewSearch
	ViewTags
	ViewViewer
	ViewDetail
)

func (v View) String() string {
	switch v {
	case ViewGallery:
		return "gallery"
	case ViewSearch:
		return "search"
	case ViewTags:
		return "tags"
	case ViewViewer:
		return "viewer"
	case ViewDetail:
		return "detail"
	default:
		return "unknown"
	}
}

// galleryItem is one row of the feed list. index is the position in the
// store's item sequence, which survives filtering.
type galleryItem struct {
	item  source.Item
	index int
}

func (i galleryItem) Title() string {
	title := i.item.Title
	if title == "" {
		title = i.item.ID
	}
	if i.item.Restricted {
		return title + " " + RestrictedStyle.Render("[R]")
	}
	return title
}

func (i galleryItem) Description() string {
	parts := make([]string, 0, 3)
	if i.item.Author != "" {
		parts = append(parts, "by "+i.item.Author)
	}
	if n := len(i.item.Images); n == 1 {
		parts = append(parts, "1 image")
	} else {
		parts = append(parts, fmt.Sprintf("%d images", n))
	}
	if len(i.item.Tags) > 0 {
		tags := i.item.Tags
		if len(tags) > 4 {
			tags = tags[:4]
		}
		parts = append(parts, "#"+strings.Join(tags, " #"))
	}
	return renderMuted(strings.Join(parts, " • "))
}

func (i galleryItem) FilterValue() string { return i.item.Title }

type keywordItem struct {
	kw gallery.Keyword
}

func (i keywordItem) Title() string {
	if i.kw.Active {
		return ActiveItemStyle.Render("● " + i.kw.Label)
	}
	return i.kw.Label
}

func (i keywordItem) Description() string {
	switch {
	case i.kw.IsRanking:
		return renderMuted("trending now")
	case i.kw.Custom:
		return renderMuted("current search")
	case i.kw.Label != i.kw.Tag:
		return renderMuted(i.kw.Tag)
	default:
		return renderMuted("tag")
	}
}

func (i keywordItem) FilterValue() string { return i.kw.Label }

// storeEventsMsg carries store events drained from the event queue.
type storeEventsMsg struct {
	events []gallery.Event
}

type startupDoneMsg struct {
	err error
}

type detailLoadedMsg struct {
	item *source.Item
	err  error
}

type detailRenderedMsg struct {
	content string
}

type imageOpenedMsg struct {
	ref string
	err error
}
