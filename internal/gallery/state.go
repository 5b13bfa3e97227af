package gallery

import (
	"github.com/pders01/gallery/internal/source"
)

// State is a point-in-time copy of the feed.
type State struct {
	Items          []source.Item
	Page           int
	Word           string
	XRestrict      bool
	IsFetching     bool
	IsError        bool
	ErrorMsg       string
	ErrorTimes     int
	Tags           []source.Tag
	IsFetchingTags bool
	FromIllust     bool
}

// RetriesExhausted reports whether automatic loading should stop until the
// error counter is cleared.
func (s State) RetriesExhausted(ceiling int) bool {
	return s.ErrorTimes >= ceiling
}

func (s State) clone() State {
	c := s
	c.Items = append([]source.Item(nil), s.Items...)
	c.Tags = append([]source.Tag(nil), s.Tags...)
	return c
}

type EventKind int

const (
	EventFetchStarted EventKind = iota
	EventPageLoaded
	EventPageFailed
	// EventReset means items were cleared; views should scroll to the top.
	EventReset
	EventWordChanged
	EventFilterChanged
	EventErrorsCleared
	EventTagsLoading
	EventTagsLoaded
	EventTagsFailed
	// EventStale reports a response that arrived after its request was superseded.
	EventStale
)

func (k EventKind) String() string {
	switch k {
	case EventFetchStarted:
		return "fetch-started"
	case EventPageLoaded:
		return "page-loaded"
	case EventPageFailed:
		return "page-failed"
	case EventReset:
		return "reset"
	case EventWordChanged:
		return "word-changed"
	case EventFilterChanged:
		return "filter-changed"
	case EventErrorsCleared:
		return "errors-cleared"
	case EventTagsLoading:
		return "tags-loading"
	case EventTagsLoaded:
		return "tags-loaded"
	case EventTagsFailed:
		return "tags-failed"
	case EventStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after every mutation.
type Event struct {
	Kind  EventKind
	State State
	Added int   // items appended by EventPageLoaded
	// Fetched is the raw entry count behind EventPageLoaded, before the
	// source dropped unusable items. Zero means the catalog is exhausted.
	Fetched int
	Err     error // set for EventPageFailed and EventTagsFailed
}

// Request tags an in-flight page fetch with the generation it was issued in.
type Request struct {
	Gen   uint64
	Query source.Query
}
