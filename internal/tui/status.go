package tui

import (
	"fmt"

	"github.com/pders01/gallery/internal/source"
)

// Canonical short status messages used across the app.
const (
	MsgLoading       = "Loading…"
	MsgLoadingTags   = "Loading tags…"
	MsgLoadingDetail = "Loading item…"
	MsgNoMore        = "No more items"
	MsgNoResults     = "No results"
	MsgNoImages      = "This item has no images"
	MsgFilterOn      = "Restricted content shown"
	MsgFilterOff     = "Restricted content hidden"
)

func MsgResultsCount(n int) string {
	if n == 1 {
		return "1 result"
	}
	return fmt.Sprintf("%d results", n)
}

func MsgPageLoaded(word string, page, added, total int) string {
	return fmt.Sprintf("%s • page %d • +%d (%d items)", wordLabel(word), page, added, total)
}

func MsgOpened(ref string) string {
	return "Opened " + truncateMiddle(ref, 48)
}

func wordLabel(word string) string {
	if word == source.Ranking {
		return "Ranking"
	}
	return "#" + word
}
