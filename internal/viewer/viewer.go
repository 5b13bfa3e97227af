// Package viewer holds the navigation state of the full-screen image viewer.
package viewer

import (
	"fmt"
	"math"

	"github.com/pders01/gallery/internal/config"
)

// Action is what an input event did to the viewer.
type Action int

const (
	ActionNone Action = iota
	ActionPrev
	ActionNext
	ActionClose
)

func (a Action) String() string {
	switch a {
	case ActionPrev:
		return "prev"
	case ActionNext:
		return "next"
	case ActionClose:
		return "close"
	default:
		return "none"
	}
}

// Viewer steps circularly through a fixed list of image references.
type Viewer struct {
	items   []string
	index   int
	onClose func()

	touchOnly    bool
	prevFraction float64
	nextFraction float64
}

// New opens a viewer on items at index. index is clamped into range. It
// returns ok=false when there is nothing to show; such a viewer must not be
// rendered.
func New(items []string, index int, cfg config.ViewerConfig, onClose func()) (*Viewer, bool) {
	if len(items) == 0 {
		return nil, false
	}
	if index < 0 {
		index = 0
	}
	if index >= len(items) {
		index = len(items) - 1
	}

	prev, next := cfg.PrevFraction, cfg.NextFraction
	if prev <= 0 || next <= 0 || prev+next >= 1 {
		prev, next = 0.20, 0.40
	}

	return &Viewer{
		items:        append([]string(nil), items...),
		index:        index,
		onClose:      onClose,
		touchOnly:    cfg.TouchOnly,
		prevFraction: prev,
		nextFraction: next,
	}, true
}

func (v *Viewer) Len() int   { return len(v.items) }
func (v *Viewer) Index() int { return v.index }

// Current returns the image reference at the current index.
func (v *Viewer) Current() string {
	return v.items[v.index]
}

func (v *Viewer) Next() {
	v.index = (v.index + 1) % len(v.items)
}

func (v *Viewer) Prev() {
	v.index = (v.index - 1 + len(v.items)) % len(v.items)
}

// Indicator is the 1-based position shown in the toolbar, e.g. "3 / 5".
func (v *Viewer) Indicator() string {
	return fmt.Sprintf("%d / %d", v.index+1, len(v.items))
}

// Close runs the close callback.
func (v *Viewer) Close() {
	if v.onClose != nil {
		v.onClose()
	}
}

// HandleKey applies a key name as produced by tea.KeyMsg.String.
func (v *Viewer) HandleKey(key string) Action {
	switch key {
	case "up", "left", "k", "h":
		v.Prev()
		return ActionPrev
	case "down", "right", "j", "l", " ":
		v.Next()
		return ActionNext
	case "esc", "q":
		v.Close()
		return ActionClose
	}
	return ActionNone
}

// Zone classifies a pointer row inside a viewer of the given height. The top
// band steps back, the bottom band steps forward and everything between is
// background. Touch-only viewers have no zones.
func (v *Viewer) Zone(row, height int) Action {
	if height <= 0 || row < 0 || row >= height {
		return ActionNone
	}
	if v.touchOnly {
		return ActionClose
	}
	prevEnd := int(math.Round(float64(height) * v.prevFraction))
	nextStart := height - int(math.Round(float64(height)*v.nextFraction))
	switch {
	case row < prevEnd:
		return ActionPrev
	case row >= nextStart:
		return ActionNext
	default:
		return ActionClose
	}
}

// HandleClick applies a pointer press at row.
func (v *Viewer) HandleClick(row, height int) Action {
	action := v.Zone(row, height)
	switch action {
	case ActionPrev:
		v.Prev()
	case ActionNext:
		v.Next()
	case ActionClose:
		v.Close()
	}
	return action
}
