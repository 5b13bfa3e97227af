package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pders01/gallery/internal/config"
)

// Ranking is the reserved search word for the default trending view.
const Ranking = "ranking"

// Item is one catalog entry. Items are not modified after a fetch returns them.
type Item struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	Images     []string  `json:"images"`
	Thumbnail  string    `json:"thumbnail"`
	Tags       []string  `json:"tags"`
	Restricted bool      `json:"restricted"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	PageCount  int       `json:"page_count"`
	Created    time.Time `json:"created"`
}

// Tag is a known search keyword.
type Tag struct {
	Tag            string `json:"tag"`
	TranslatedName string `json:"translated_name,omitempty"`
}

// Label is what a tag list shows for t.
func (t Tag) Label() string {
	if t.TranslatedName != "" {
		return t.TranslatedName
	}
	return t.Tag
}

// Query identifies one page of results.
type Query struct {
	Word      string
	XRestrict bool
	Page      int
}

// Page is one page of results. Fetched counts the entries the catalog
// returned before items without images or restricted items were dropped, so
// an empty Items with Fetched > 0 is not the end of the catalog.
type Page struct {
	Items   []Item
	Fetched int
}

// Source is the remote catalog.
type Source interface {
	FetchPage(ctx context.Context, q Query) (Page, error)
	FetchTags(ctx context.Context) ([]Tag, error)
}

// ItemFetcher is implemented by sources that can look up a single item.
type ItemFetcher interface {
	FetchItem(ctx context.Context, id string) (*Item, error)
}

// New builds the source selected by cfg.Kind.
func New(cfg *config.SourceConfig) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", "api":
		return NewAPIClient(cfg)
	case "feed", "rss":
		return NewFeedSource(cfg)
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}
