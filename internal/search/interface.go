package search

import "github.com/pders01/gallery/internal/source"

// Result is one matching item.
type Result struct {
	ID      string
	Score   float64
	Matches []Match
}

// Match records which field contributed to a result.
type Match struct {
	Field  string // "title", "author", "tags"
	Text   string
	Weight float64
}

// Searcher filters the items loaded into the feed.
type Searcher interface {
	Index(items []source.Item) error
	Reset() error
	Search(query string, limit int) ([]Result, error)
}

// DocCounter is implemented by searchers that can report their size.
type DocCounter interface {
	DocCount() (int, error)
}

// New returns the bleve-backed searcher, or the scanning engine when the
// index cannot be built.
func New() Searcher {
	idx, err := NewBleveIndex()
	if err != nil {
		return NewEngine()
	}
	return idx
}
