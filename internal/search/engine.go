package search

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/pders01/gallery/internal/source"
)

// Engine scores items by scanning them; no index is kept.
type Engine struct {
	mu    sync.RWMutex
	items []source.Item
	seen  map[string]bool
	now   func() time.Time
}

func NewEngine() *Engine {
	return &Engine{seen: make(map[string]bool), now: time.Now}
}

func (e *Engine) Index(items []source.Item) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, it := range items {
		if e.seen[it.ID] {
			continue
		}
		e.seen[it.ID] = true
		e.items = append(e.items, it)
	}
	return nil
}

func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = nil
	e.seen = make(map[string]bool)
	return nil
}

func (e *Engine) DocCount() (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.items), nil
}

// Search returns up to limit items ordered by relevance.
func (e *Engine) Search(query string, limit int) ([]Result, error) {
	if len(strings.TrimSpace(query)) < 2 {
		return []Result{}, nil
	}
	terms := tokenize(query)
	if len(terms) == 0 {
		return []Result{}, nil
	}

	e.mu.RLock()
	var results []Result
	for _, it := range e.items {
		if r, ok := e.scoreItem(it, terms); ok {
			results = append(results, r)
		}
	}
	e.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	if results == nil {
		results = []Result{}
	}
	return results, nil
}

func (e *Engine) scoreItem(it source.Item, terms []string) (Result, bool) {
	var matches []Match
	var total float64

	if s := scoreField(it.Title, terms, 4.0); s > 0 {
		matches = append(matches, Match{Field: "title", Text: it.Title, Weight: s})
		total += s
	}
	tags := strings.Join(it.Tags, " ")
	if s := scoreField(tags, terms, 3.0); s > 0 {
		matches = append(matches, Match{Field: "tags", Text: tags, Weight: s})
		total += s
	}
	if s := scoreField(it.Author, terms, 2.0); s > 0 {
		matches = append(matches, Match{Field: "author", Text: it.Author, Weight: s})
		total += s
	}
	if total == 0 {
		return Result{}, false
	}

	if !it.Created.IsZero() {
		total *= 1.0 + recencyBoost(e.now(), it.Created)
	}
	return Result{ID: it.ID, Score: total, Matches: matches}, true
}

func scoreField(text string, terms []string, weight float64) float64 {
	if text == "" {
		return 0
	}

	lower := strings.ToLower(text)
	words := tokenize(text)
	if len(words) == 0 {
		return 0
	}

	var score float64
	matched := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			score += 2.0
			matched++
		}
		for _, w := range words {
			switch {
			case w == term:
				score += 1.5
				matched++
			case strings.HasPrefix(w, term) || strings.HasSuffix(w, term):
				score += 1.0
				matched++
			case strings.Contains(w, term):
				score += 0.5
				matched++
			}
		}
	}

	if len(terms) > 1 && matched > 1 {
		score *= 1.0 + float64(matched)/float64(len(terms))
	}
	tf := float64(matched) / float64(len(words))
	score *= 1.0 + math.Log(1.0+tf)

	return score * weight
}

// recencyBoost is up to 10% for items created within the last week.
func recencyBoost(now, created time.Time) float64 {
	age := now.Sub(created)
	week := 7 * 24 * time.Hour
	if age < 0 || age >= week {
		return 0
	}
	return 0.1 * (1 - float64(age)/float64(week))
}

// tokenize lowercases text and splits it on anything that is not a letter or
// digit. Single-rune tokens are dropped, except for ideographs.
func tokenize(text string) []string {
	var terms []string
	var current strings.Builder
	runes := 0
	ideo := false

	flush := func() {
		if runes > 1 || (runes == 1 && ideo) {
			terms = append(terms, current.String())
		}
		current.Reset()
		runes = 0
		ideo = false
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			current.WriteRune(unicode.ToLower(r))
			runes++
			if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) {
				ideo = true
			}
		} else if runes > 0 {
			flush()
		}
	}
	if runes > 0 {
		flush()
	}
	return terms
}
