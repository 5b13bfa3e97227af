package gallery

import (
	"context"
	"fmt"
	"sync"

	"github.com/pders01/gallery/internal/source"
)

// fakeSource serves scripted pages. A nil batch in pages means "fail".
type fakeSource struct {
	mu       sync.Mutex
	pages    [][]source.Item
	calls    []source.Query
	tags     []source.Tag
	tagErr   error
	tagCalls int
	// dropped adds entries the source filtered out of the given query page.
	dropped map[int]int
	// gate, when set, blocks FetchPage until a value is received.
	gate chan struct{}
}

func (f *fakeSource) FetchPage(ctx context.Context, q source.Query) (source.Page, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return source.Page{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, q)
	if len(f.pages) == 0 {
		return source.Page{Items: []source.Item{}}, nil
	}
	batch := f.pages[0]
	f.pages = f.pages[1:]
	if batch == nil {
		return source.Page{}, &source.FetchError{Op: "page", Word: q.Word, Page: q.Page, Message: "boom"}
	}
	return source.Page{Items: batch, Fetched: len(batch) + f.dropped[q.Page]}, nil
}

func (f *fakeSource) FetchTags(ctx context.Context) ([]source.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tagCalls++
	if f.tagErr != nil {
		return nil, f.tagErr
	}
	return f.tags, nil
}

func (f *fakeSource) queries() []source.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]source.Query(nil), f.calls...)
}

func batch(prefix string, n int) []source.Item {
	items := make([]source.Item, n)
	for i := range items {
		items[i] = source.Item{
			ID:     fmt.Sprintf("%s-%d", prefix, i),
			Title:  fmt.Sprintf("%s %d", prefix, i),
			Images: []string{fmt.Sprintf("https://img/%s/%d.jpg", prefix, i)},
		}
	}
	return items
}
