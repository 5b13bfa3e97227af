package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pders01/gallery/internal/config"
	"github.com/pders01/gallery/internal/debuglog"
)

const maxErrorBody = 64 << 10

// APIClient talks to the JSON catalog API.
type APIClient struct {
	baseURL    string
	imageProxy string
	userAgent  string
	client     *http.Client
	limiter    *rate.Limiter
}

func NewAPIClient(cfg *config.SourceConfig) (*APIClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("empty base url specified")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &APIClient{
		baseURL:    base,
		imageProxy: strings.TrimRight(cfg.ImageProxy, "/"),
		userAgent:  cfg.UserAgent,
		client:     &http.Client{Timeout: timeout},
		limiter:    limiter,
	}, nil
}

type apiIllust struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	User  struct {
		Name string `json:"name"`
	} `json:"user"`
	ImageURLs struct {
		SquareMedium string `json:"square_medium"`
		Medium       string `json:"medium"`
		Large        string `json:"large"`
	} `json:"image_urls"`
	MetaSinglePage struct {
		OriginalImageURL string `json:"original_image_url"`
	} `json:"meta_single_page"`
	MetaPages []struct {
		ImageURLs struct {
			Large    string `json:"large"`
			Original string `json:"original"`
		} `json:"image_urls"`
	} `json:"meta_pages"`
	Tags []struct {
		Name           string `json:"name"`
		TranslatedName string `json:"translated_name"`
	} `json:"tags"`
	XRestrict  int       `json:"x_restrict"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	PageCount  int       `json:"page_count"`
	CreateDate time.Time `json:"create_date"`
}

type apiError struct {
	Error struct {
		Message     string `json:"message"`
		UserMessage string `json:"user_message"`
	} `json:"error"`
}

func (c *APIClient) FetchPage(ctx context.Context, q Query) (Page, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("x_restrict", boolParam(q.XRestrict))

	path := "/search"
	if q.Word == "" || q.Word == Ranking {
		path = "/ranking"
	} else {
		params.Set("word", q.Word)
	}

	var payload struct {
		Illusts []apiIllust `json:"illusts"`
	}
	if err := c.getJSON(ctx, path, params, &payload); err != nil {
		fe := AsFetchError(err)
		fe.Op, fe.Word, fe.Page = "page", q.Word, page
		return Page{}, fe
	}

	items := make([]Item, 0, len(payload.Illusts))
	for _, il := range payload.Illusts {
		item := c.toItem(il)
		if len(item.Images) == 0 {
			continue
		}
		items = append(items, item)
	}

	debuglog.With("word", q.Word, "page", page).Debugf("fetched %d items of %d", len(items), len(payload.Illusts))
	return Page{Items: items, Fetched: len(payload.Illusts)}, nil
}

func (c *APIClient) FetchTags(ctx context.Context) ([]Tag, error) {
	var payload struct {
		Tags []Tag `json:"tags"`
	}
	if err := c.getJSON(ctx, "/tags", nil, &payload); err != nil {
		fe := AsFetchError(err)
		fe.Op = "tags"
		return nil, fe
	}

	tags := make([]Tag, 0, len(payload.Tags))
	for _, t := range payload.Tags {
		if strings.TrimSpace(t.Tag) == "" {
			continue
		}
		tags = append(tags, t)
	}
	return tags, nil
}

func (c *APIClient) FetchItem(ctx context.Context, id string) (*Item, error) {
	var payload struct {
		Illust *apiIllust `json:"illust"`
	}
	if err := c.getJSON(ctx, "/illust/"+url.PathEscape(id), nil, &payload); err != nil {
		fe := AsFetchError(err)
		fe.Op = "item"
		return nil, fe
	}
	if payload.Illust == nil {
		return nil, &FetchError{Op: "item", Status: http.StatusNotFound, Message: "item not found"}
	}
	item := c.toItem(*payload.Illust)
	return &item, nil
}

func (c *APIClient) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &FetchError{Err: err}
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &FetchError{Message: "invalid request", Err: fmt.Errorf("creating request: %w", err)}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &FetchError{Message: "network error", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &FetchError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{Message: "malformed response", Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

func errorMessage(status int, body []byte) string {
	var ae apiError
	if json.Unmarshal(body, &ae) == nil {
		if ae.Error.UserMessage != "" {
			return ae.Error.UserMessage
		}
		if ae.Error.Message != "" {
			return ae.Error.Message
		}
	}
	return http.StatusText(status)
}

func (c *APIClient) toItem(il apiIllust) Item {
	item := Item{
		ID:         strconv.FormatInt(il.ID, 10),
		Title:      il.Title,
		Author:     il.User.Name,
		Thumbnail:  c.ProxyImage(firstNonEmpty(il.ImageURLs.Medium, il.ImageURLs.SquareMedium)),
		Restricted: il.XRestrict > 0,
		Width:      il.Width,
		Height:     il.Height,
		PageCount:  il.PageCount,
		Created:    il.CreateDate,
	}

	if len(il.MetaPages) > 0 {
		for _, p := range il.MetaPages {
			if u := firstNonEmpty(p.ImageURLs.Original, p.ImageURLs.Large); u != "" {
				item.Images = append(item.Images, c.ProxyImage(u))
			}
		}
	} else if u := firstNonEmpty(il.MetaSinglePage.OriginalImageURL, il.ImageURLs.Large, il.ImageURLs.Medium); u != "" {
		item.Images = append(item.Images, c.ProxyImage(u))
	}

	for _, t := range il.Tags {
		if t.Name != "" {
			item.Tags = append(item.Tags, t.Name)
		}
	}
	if item.PageCount == 0 {
		item.PageCount = len(item.Images)
	}
	return item
}

// ProxyImage rewrites the scheme and host of raw onto the configured image
// proxy, keeping path and query. Without a proxy raw is returned unchanged.
func (c *APIClient) ProxyImage(raw string) string {
	if c.imageProxy == "" || raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	rewritten := c.imageProxy + u.EscapedPath()
	if u.RawQuery != "" {
		rewritten += "?" + u.RawQuery
	}
	return rewritten
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
