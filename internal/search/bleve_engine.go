package search

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/pders01/gallery/internal/debuglog"
	"github.com/pders01/gallery/internal/source"
)

// BleveIndex is an in-memory full-text index over loaded items. It lives as
// long as the feed it mirrors and is rebuilt on every reset.
type BleveIndex struct {
	mu  sync.RWMutex
	idx bleve.Index
}

func NewBleveIndex() (*BleveIndex, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating index: %w", err)
	}
	return &BleveIndex{idx: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	dm := bleve.NewDocumentMapping()

	title := bleve.NewTextFieldMapping()
	title.Analyzer = standard.Name
	title.Store = true
	title.IncludeTermVectors = true

	author := bleve.NewTextFieldMapping()
	author.Analyzer = standard.Name
	author.Store = true

	tags := bleve.NewTextFieldMapping()
	tags.Analyzer = standard.Name
	tags.Store = true

	dm.AddFieldMappingsAt("title", title)
	dm.AddFieldMappingsAt("author", author)
	dm.AddFieldMappingsAt("tags", tags)

	im.DefaultMapping = dm
	return im
}

// Index adds items; re-indexing an ID replaces the previous document.
func (b *BleveIndex) Index(items []source.Item) error {
	if len(items) == 0 {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	batch := b.idx.NewBatch()
	for _, it := range items {
		if err := batch.Index(it.ID, map[string]any{
			"title":  it.Title,
			"author": it.Author,
			"tags":   strings.Join(it.Tags, " "),
		}); err != nil {
			return fmt.Errorf("indexing %s: %w", it.ID, err)
		}
	}
	if err := b.idx.Batch(batch); err != nil {
		return fmt.Errorf("indexing batch: %w", err)
	}
	debuglog.Debugf("indexed %d items", len(items))
	return nil
}

// Reset drops every document.
func (b *BleveIndex) Reset() error {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("recreating index: %w", err)
	}

	b.mu.Lock()
	old := b.idx
	b.idx = idx
	b.mu.Unlock()

	return old.Close()
}

func (b *BleveIndex) Search(query string, limit int) ([]Result, error) {
	if len(strings.TrimSpace(query)) < 2 {
		return []Result{}, nil
	}
	if limit <= 0 {
		limit = 100
	}

	var qs []bleveQuery.Query
	for _, tok := range tokenize(query) {
		qs = append(qs, fieldQueries(tok, "title", 4.0)...)
		qs = append(qs, fieldQueries(tok, "tags", 3.0)...)
		qs = append(qs, fieldQueries(tok, "author", 2.0)...)
	}
	if len(qs) == 0 {
		return []Result{}, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(qs...), limit, 0, false)
	req.Fields = []string{"title", "author", "tags"}

	b.mu.RLock()
	res, err := b.idx.Search(req)
	b.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}

	out := make([]Result, 0, len(res.Hits))
	for _, h := range res.Hits {
		r := Result{ID: h.ID, Score: h.Score}
		for _, field := range []string{"title", "tags", "author"} {
			if text, ok := h.Fields[field].(string); ok && text != "" {
				r.Matches = append(r.Matches, Match{Field: field, Text: text})
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func fieldQueries(tok, field string, boost float64) []bleveQuery.Query {
	m := bleve.NewMatchQuery(tok)
	m.SetField(field)
	m.SetBoost(boost)

	p := bleve.NewPrefixQuery(strings.ToLower(tok))
	p.SetField(field)
	p.SetBoost(boost * 0.875)

	return []bleveQuery.Query{m, p}
}

// DocCount reports total documents in the index.
func (b *BleveIndex) DocCount() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, err := b.idx.DocCount()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.idx.Close()
}
