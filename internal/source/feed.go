package source

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"github.com/pders01/gallery/internal/config"
)

// restrictedCategories mark feed items as restricted content.
var restrictedCategories = map[string]bool{
	"r-18":  true,
	"r18":   true,
	"r-18g": true,
	"nsfw":  true,
}

// FeedSource reads the catalog from per-tag RSS or Atom feeds laid out as
// {base}/{word}.rss?page=N, with {base}/ranking.rss as the default view.
type FeedSource struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	parser    *gofeed.Parser
}

func NewFeedSource(cfg *config.SourceConfig) (*FeedSource, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("empty base url specified")
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.Burst, 1))
	}

	return &FeedSource{
		baseURL:   base,
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: timeout},
		limiter:   limiter,
		parser:    gofeed.NewParser(),
	}, nil
}

func (f *FeedSource) FetchPage(ctx context.Context, q Query) (Page, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	word := q.Word
	if word == "" {
		word = Ranking
	}

	feed, err := f.fetch(ctx, word, page)
	if err != nil {
		fe := AsFetchError(err)
		fe.Op, fe.Word, fe.Page = "page", q.Word, page
		return Page{}, fe
	}

	items := make([]Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		item := toFeedItem(entry)
		if len(item.Images) == 0 {
			continue
		}
		if item.Restricted && !q.XRestrict {
			continue
		}
		items = append(items, item)
	}
	return Page{Items: items, Fetched: len(feed.Items)}, nil
}

// FetchTags derives the keyword list from the categories of the default feed,
// in first-seen order.
func (f *FeedSource) FetchTags(ctx context.Context) ([]Tag, error) {
	feed, err := f.fetch(ctx, Ranking, 1)
	if err != nil {
		fe := AsFetchError(err)
		fe.Op = "tags"
		return nil, fe
	}

	seen := make(map[string]bool)
	var tags []Tag
	for _, entry := range feed.Items {
		for _, c := range entry.Categories {
			c = strings.TrimSpace(c)
			key := strings.ToLower(c)
			if c == "" || seen[key] || restrictedCategories[key] {
				continue
			}
			seen[key] = true
			tags = append(tags, Tag{Tag: c})
		}
	}
	return tags, nil
}

func (f *FeedSource) fetch(ctx context.Context, word string, page int) (*gofeed.Feed, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{Err: err}
	}

	endpoint := fmt.Sprintf("%s/%s.rss", f.baseURL, url.PathEscape(word))
	if page > 1 {
		endpoint += "?page=" + strconv.Itoa(page)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Message: "invalid request", Err: fmt.Errorf("creating request: %w", err)}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Message: "network error", Err: err}
	}
	defer resp.Body.Close()

	// An absent page past the end is an empty result, not a failure.
	if resp.StatusCode == http.StatusNotFound && page > 1 {
		return &gofeed.Feed{}, nil
	}
	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil, &FetchError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, &FetchError{Message: "malformed feed", Err: fmt.Errorf("parsing feed: %w", err)}
	}
	return feed, nil
}

func toFeedItem(entry *gofeed.Item) Item {
	item := Item{
		ID:     feedItemID(entry),
		Title:  entry.Title,
		Images: extractImageURLs(entry),
	}
	if entry.Author != nil {
		item.Author = entry.Author.Name
	} else if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		item.Author = entry.Authors[0].Name
	}
	if entry.PublishedParsed != nil {
		item.Created = *entry.PublishedParsed
	}
	for _, c := range entry.Categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if restrictedCategories[strings.ToLower(c)] {
			item.Restricted = true
			continue
		}
		item.Tags = append(item.Tags, c)
	}
	if entry.Image != nil && entry.Image.URL != "" {
		item.Thumbnail = entry.Image.URL
	} else if len(item.Images) > 0 {
		item.Thumbnail = item.Images[0]
	}
	item.PageCount = len(item.Images)
	return item
}

func feedItemID(entry *gofeed.Item) string {
	if entry.GUID != "" {
		return entry.GUID
	}
	key := entry.Link
	if key == "" {
		key = entry.Title
	}
	return fmt.Sprintf("%x", sha256.Sum256([]byte(key)))[:16]
}

func extractImageURLs(entry *gofeed.Item) []string {
	var urls []string

	for _, enclosure := range entry.Enclosures {
		if enclosure == nil || enclosure.URL == "" {
			continue
		}
		if enclosure.Type == "" || strings.HasPrefix(enclosure.Type, "image/") {
			urls = append(urls, enclosure.URL)
		}
	}

	urls = append(urls, findImagesInHTML(entry.Content)...)
	urls = append(urls, findImagesInHTML(entry.Description)...)

	if len(urls) == 0 && entry.Image != nil && entry.Image.URL != "" {
		urls = append(urls, entry.Image.URL)
	}

	return uniqueStrings(urls)
}

func findImagesInHTML(html string) []string {
	if !strings.Contains(html, "<img") {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	var urls []string
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			src, ok = sel.Attr("data-src")
		}
		if ok && strings.TrimSpace(src) != "" {
			urls = append(urls, strings.TrimSpace(src))
		}
	})
	return urls
}

func uniqueStrings(strs []string) []string {
	seen := make(map[string]bool)
	result := []string{}
	for _, s := range strs {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	return result
}
