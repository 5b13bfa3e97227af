package gallery

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pders01/gallery/internal/source"
	"github.com/pders01/gallery/internal/storage"
)

// StartupOptions carries what the launcher knows before the first fetch.
type StartupOptions struct {
	// Entry forces the initial view; source.Ranking is the only recognised value.
	Entry string
}

// Startup seeds the feed on first mount. Coming back from a detail view
// re-runs the search for the current word. Otherwise the word comes from the
// entry option, then the cache, then defaults to the ranking view; the first
// page (when nothing is loaded) and the tag list are fetched concurrently.
func (s *Store) Startup(ctx context.Context, opts StartupOptions) error {
	s.mu.Lock()
	fromIllust := s.state.FromIllust
	word := s.state.Word
	s.mu.Unlock()

	if fromIllust {
		err := s.SwitchSearchTerm(ctx, word)
		s.SetFromIllust(false)
		return err
	}

	if opts.Entry == source.Ranking {
		s.SetWord(source.Ranking)
		storage.Put(s.cache, storage.KeyWord, source.Ranking)
	} else {
		s.SetWord(storage.GetString(s.cache, storage.KeyWord, source.Ranking))
	}

	var g errgroup.Group
	if len(s.Snapshot().Items) == 0 {
		g.Go(func() error {
			err := s.FetchSource(ctx, true)
			if errors.Is(err, ErrFetchInFlight) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		return s.FetchTags(ctx)
	})
	return g.Wait()
}

// ActionKind says what a submitted search box value should do.
type ActionKind int

const (
	ActionIgnore ActionKind = iota
	ActionSearch
	ActionOpenItem
)

type Action struct {
	Kind ActionKind
	Word string // ActionSearch
	ID   string // ActionOpenItem
}

// ResolveSearch classifies raw search input. Blank input is ignored, a
// numeric value names an item to open directly, anything else is a search.
func ResolveSearch(input string) Action {
	word := strings.TrimSpace(input)
	if word == "" {
		return Action{Kind: ActionIgnore}
	}
	if isItemID(word) {
		return Action{Kind: ActionOpenItem, ID: word}
	}
	return Action{Kind: ActionSearch, Word: word}
}

// isItemID reports whether word is a finite numeric literal: a decimal
// number, or an unsigned 0x, 0o or 0b integer.
func isItemID(word string) bool {
	if len(word) > 2 && word[0] == '0' {
		base := 0
		switch word[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			_, err := strconv.ParseUint(word[2:], base, 64)
			return err == nil || errors.Is(err, strconv.ErrRange)
		}
	}
	// ParseFloat also takes signed hex floats, which are not item ids.
	if strings.ContainsAny(word, "xX") {
		return false
	}
	f, err := strconv.ParseFloat(word, 64)
	return err == nil && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// Search applies ResolveSearch to input. Opening an item marks the store so
// that the next Startup re-issues the current search.
func (s *Store) Search(ctx context.Context, input string) (Action, error) {
	action := ResolveSearch(input)
	switch action.Kind {
	case ActionSearch:
		return action, s.SwitchSearchTerm(ctx, action.Word)
	case ActionOpenItem:
		s.SetFromIllust(true)
	}
	return action, nil
}

// Keyword is one entry of the tag drawer.
type Keyword struct {
	Tag       string
	Label     string
	Active    bool
	Custom    bool // the current word, shown because it is not a known tag
	IsRanking bool
}

// RankingLabel is the drawer label of the default view.
const RankingLabel = "Ranking"

// Keywords lists the drawer entries: the ranking view first, then the known
// tags. A current word that is neither gets its own leading entry.
func (s *Store) Keywords() []Keyword {
	snap := s.Snapshot()
	return buildKeywords(snap.Word, snap.Tags)
}

func buildKeywords(word string, tags []source.Tag) []Keyword {
	all := make([]source.Tag, 0, len(tags)+1)
	all = append(all, source.Tag{Tag: source.Ranking})
	all = append(all, tags...)

	found := false
	for _, t := range all {
		if t.Tag == word {
			found = true
			break
		}
	}

	out := make([]Keyword, 0, len(all)+1)
	if !found && word != source.Ranking && strings.TrimSpace(word) != "" {
		out = append(out, Keyword{Tag: word, Label: word, Active: true, Custom: true})
	}
	for _, t := range all {
		ranking := t.Tag == source.Ranking
		k := Keyword{
			Tag:       t.Tag,
			Label:     t.Label(),
			Active:    t.Tag == word,
			IsRanking: ranking,
		}
		if ranking {
			k.Label = RankingLabel
		}
		out = append(out, k)
	}
	return out
}
