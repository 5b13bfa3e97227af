package tui

import (
	"github.com/mattn/go-runewidth"
)

// truncateEnd shortens s to at most limit terminal cells, appending an
// ellipsis if truncation occurs. Wide runes count as two cells.
func truncateEnd(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= limit {
		return s
	}
	if limit <= 1 {
		return "…"
	}
	return runewidth.Truncate(s, limit, "…")
}

// truncateMiddle keeps both ends of s around a single ellipsis. Useful for
// image URLs, where host and file name both carry meaning.
func truncateMiddle(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= limit {
		return s
	}
	if limit <= 1 {
		return "…"
	}

	keep := limit - 1
	left := keep / 2
	right := keep - left

	head := runewidth.Truncate(s, left, "")
	r := []rune(s)
	tail := ""
	w := 0
	for i := len(r) - 1; i >= 0; i-- {
		rw := runewidth.RuneWidth(r[i])
		if w+rw > right {
			break
		}
		w += rw
		tail = string(r[i]) + tail
	}
	return head + "…" + tail
}
