package gallery

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/pders01/gallery/internal/debuglog"
	"github.com/pders01/gallery/internal/source"
	"github.com/pders01/gallery/internal/storage"
)

// ErrFetchInFlight is returned when a page fetch is requested while the
// current one is outstanding. The request is dropped, not queued.
var ErrFetchInFlight = errors.New("fetch already in flight")

var errNoWord = errors.New("no search word to refresh")

// Store owns the feed: fetched items, page cursor, search word, content
// filter and error bookkeeping. All mutation goes through its mutex and every
// change is published to subscribers.
type Store struct {
	src   source.Source
	cache storage.Cache

	mu          sync.Mutex
	state       State
	xRestrict   bool // pending filter option, copied into state per fetch
	gen         uint64
	inflightGen uint64
	listeners   map[int]func(Event)
	nextID      int
}

func NewStore(src source.Source, cache storage.Cache) *Store {
	if cache == nil {
		cache = storage.NewMemoryCache()
	}
	s := &Store{
		src:       src,
		cache:     cache,
		listeners: make(map[int]func(Event)),
		xRestrict: storage.GetBool(cache, storage.KeyXRestrict, false),
	}
	s.state.Page = 1
	s.state.Word = source.Ranking
	return s
}

// Subscribe registers fn for every event and returns a function that removes it.
// fn runs on the goroutine that caused the mutation, outside the store lock.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Source exposes the catalog for callers that need capabilities beyond paging.
func (s *Store) Source() source.Source {
	return s.src
}

// emit must be called with s.mu held; it returns the closure that delivers
// the event once the lock is released.
func (s *Store) emit(kind EventKind, added int, err error) func() {
	return s.emitEvent(Event{Kind: kind, Added: added, Err: err})
}

func (s *Store) emitEvent(ev Event) func() {
	ev.State = s.state.clone()
	fns := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	return func() {
		for _, fn := range fns {
			fn(ev)
		}
	}
}

// SetWord sets the pending search word. It does not fetch.
func (s *Store) SetWord(word string) {
	s.mu.Lock()
	s.state.Word = word
	notify := s.emit(EventWordChanged, 0, nil)
	s.mu.Unlock()
	notify()
}

// XRestrict reports the pending content-filter option.
func (s *Store) XRestrict() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.xRestrict
}

// SetXRestrict changes and persists the content filter. It applies from the
// next fetch on; already loaded items stay.
func (s *Store) SetXRestrict(on bool) {
	s.mu.Lock()
	s.xRestrict = on
	notify := s.emit(EventFilterChanged, 0, nil)
	s.mu.Unlock()

	storage.Put(s.cache, storage.KeyXRestrict, on)
	notify()
}

func (s *Store) SetFromIllust(v bool) {
	s.mu.Lock()
	s.state.FromIllust = v
	s.mu.Unlock()
}

// ClearSource empties the feed and resets the page cursor. Any outstanding
// request is abandoned: its response will be discarded. ErrorTimes is kept.
func (s *Store) ClearSource() {
	s.mu.Lock()
	s.clearLocked()
	notify := s.emit(EventReset, 0, nil)
	s.mu.Unlock()
	notify()
}

func (s *Store) clearLocked() {
	s.state.Items = nil
	s.state.Page = 1
	s.state.IsFetching = false
	s.gen++
}

func (s *Store) ClearErrorTimes() {
	s.mu.Lock()
	s.state.ErrorTimes = 0
	notify := s.emit(EventErrorsCleared, 0, nil)
	s.mu.Unlock()
	notify()
}

// BeginFetch marks a page fetch as in flight and returns the request to issue.
// With isFirstLoad the cursor restarts at page 1.
func (s *Store) BeginFetch(isFirstLoad bool) (Request, error) {
	s.mu.Lock()
	req, notify, err := s.beginFetchLocked(isFirstLoad)
	s.mu.Unlock()
	if err != nil {
		return Request{}, err
	}
	notify()
	return req, nil
}

func (s *Store) fetchInFlightLocked() bool {
	return s.state.IsFetching && s.inflightGen == s.gen
}

func (s *Store) beginFetchLocked(isFirstLoad bool) (Request, func(), error) {
	if s.fetchInFlightLocked() {
		return Request{}, nil, ErrFetchInFlight
	}
	if isFirstLoad {
		s.state.Page = 1
	}
	s.state.XRestrict = s.xRestrict
	s.state.IsFetching = true
	s.inflightGen = s.gen

	req := Request{
		Gen: s.gen,
		Query: source.Query{
			Word:      s.state.Word,
			XRestrict: s.state.XRestrict,
			Page:      s.state.Page,
		},
	}
	return req, s.emit(EventFetchStarted, 0, nil), nil
}

// ApplyPage records the outcome of req. Responses for a superseded request
// are dropped and reported as false.
func (s *Store) ApplyPage(req Request, page source.Page, fetchErr error) bool {
	s.mu.Lock()
	if req.Gen != s.gen || req.Query.Page != s.state.Page {
		notify := s.emit(EventStale, 0, nil)
		s.mu.Unlock()
		debuglog.With("word", req.Query.Word, "page", req.Query.Page).Debugf("discarding stale response")
		notify()
		return false
	}

	s.state.IsFetching = false

	var notify func()
	if fetchErr != nil {
		fe := source.AsFetchError(fetchErr)
		s.state.IsError = true
		s.state.ErrorMsg = fe.UserMessage()
		s.state.ErrorTimes++
		debuglog.With("word", req.Query.Word, "page", req.Query.Page, "errors", s.state.ErrorTimes).Warnf("page fetch failed: %v", fetchErr)
		notify = s.emit(EventPageFailed, 0, fetchErr)
	} else {
		s.state.Items = append(s.state.Items, page.Items...)
		s.state.Page++
		s.state.IsError = false
		s.state.ErrorMsg = ""
		debuglog.With("word", req.Query.Word, "page", req.Query.Page).Debugf("appended %d of %d items", len(page.Items), page.Fetched)
		notify = s.emitEvent(Event{Kind: EventPageLoaded, Added: len(page.Items), Fetched: page.Fetched})
	}
	s.mu.Unlock()

	notify()
	return true
}

// FetchSource fetches the next page, or page 1 when isFirstLoad. Failures are
// recorded in the state and also returned for logging; ErrFetchInFlight is
// returned without touching state.
func (s *Store) FetchSource(ctx context.Context, isFirstLoad bool) error {
	req, err := s.BeginFetch(isFirstLoad)
	if err != nil {
		return err
	}
	return s.Execute(ctx, req)
}

// Execute performs the fetch for a request obtained from BeginFetch,
// BeginSwitch or BeginRetry and applies the outcome. It blocks for the
// duration of the network call and may run on any goroutine.
func (s *Store) Execute(ctx context.Context, req Request) error {
	page, err := s.src.FetchPage(ctx, req.Query)
	s.ApplyPage(req, page, err)
	return err
}

// FetchTags loads the tag list once per store. It is a no-op when tags are
// already present or a tag fetch is running.
func (s *Store) FetchTags(ctx context.Context) error {
	s.mu.Lock()
	if len(s.state.Tags) > 0 || s.state.IsFetchingTags {
		s.mu.Unlock()
		return nil
	}
	s.state.IsFetchingTags = true
	notify := s.emit(EventTagsLoading, 0, nil)
	s.mu.Unlock()
	notify()

	tags, err := s.src.FetchTags(ctx)

	s.mu.Lock()
	s.state.IsFetchingTags = false
	if err != nil {
		debuglog.Warnf("tag fetch failed: %v", err)
		notify = s.emit(EventTagsFailed, 0, err)
	} else {
		s.state.Tags = tags
		notify = s.emit(EventTagsLoaded, 0, nil)
	}
	s.mu.Unlock()
	notify()
	return err
}

// BeginSwitch performs the search transition up to the fetch: clear the error
// budget, clear items, set and persist the word, announce the reset, and mark
// page 1 in flight. Blank words are ignored.
func (s *Store) BeginSwitch(word string) (Request, bool) {
	word = strings.TrimSpace(word)
	if word == "" {
		return Request{}, false
	}

	s.mu.Lock()
	s.state.ErrorTimes = 0
	s.clearLocked()
	s.state.Word = word
	notify := s.emit(EventReset, 0, nil)
	s.mu.Unlock()

	storage.Put(s.cache, storage.KeyWord, word)
	notify()

	req, err := s.BeginFetch(true)
	if err != nil {
		// clearLocked abandoned the previous request, so this cannot happen
		// unless another goroutine raced us into BeginFetch.
		return Request{}, false
	}
	return req, true
}

// SwitchSearchTerm runs the full search transition to word.
func (s *Store) SwitchSearchTerm(ctx context.Context, word string) error {
	req, ok := s.BeginSwitch(word)
	if !ok {
		return nil
	}
	return s.Execute(ctx, req)
}

// Refresh restarts the current word from page 1 with a fresh error budget.
func (s *Store) Refresh(ctx context.Context) error {
	return s.SwitchSearchTerm(ctx, s.Snapshot().Word)
}

// Retry is the manual retry action. Loaded items are kept and the failed page
// is requested again; with nothing loaded it is a Refresh.
func (s *Store) Retry(ctx context.Context) error {
	req, err := s.BeginRetry()
	if err != nil {
		return err
	}
	return s.Execute(ctx, req)
}

// BeginRetry is the first half of Retry.
// A retry while a fetch is in flight is rejected and leaves the error budget
// untouched.
func (s *Store) BeginRetry() (Request, error) {
	s.mu.Lock()
	if s.fetchInFlightLocked() {
		s.mu.Unlock()
		return Request{}, ErrFetchInFlight
	}
	if len(s.state.Items) == 0 {
		word := s.state.Word
		s.mu.Unlock()
		req, ok := s.BeginSwitch(word)
		if !ok {
			return Request{}, errNoWord
		}
		return req, nil
	}

	s.state.ErrorTimes = 0
	cleared := s.emit(EventErrorsCleared, 0, nil)
	req, notify, err := s.beginFetchLocked(false)
	s.mu.Unlock()
	if err != nil {
		return Request{}, err
	}

	cleared()
	notify()
	return req, nil
}

// Images returns the image references of the item at index, or nil.
func (s *Store) Images(index int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.state.Items) {
		return nil
	}
	return append([]string(nil), s.state.Items[index].Images...)
}
