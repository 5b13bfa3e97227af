package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/gallery/internal/config"
)

const illustsPayload = `{
  "illusts": [
    {
      "id": 101,
      "title": "Single",
      "user": {"name": "alice"},
      "image_urls": {"square_medium": "https://i.example.net/sq/101.jpg", "medium": "https://i.example.net/m/101.jpg", "large": "https://i.example.net/l/101.jpg"},
      "meta_single_page": {"original_image_url": "https://i.example.net/img-original/101.png"},
      "meta_pages": [],
      "tags": [{"name": "cat", "translated_name": "cat"}, {"name": "sky"}],
      "x_restrict": 0,
      "width": 800,
      "height": 600,
      "page_count": 1
    },
    {
      "id": 102,
      "title": "Multi",
      "user": {"name": "bob"},
      "image_urls": {"medium": "https://i.example.net/m/102.jpg"},
      "meta_single_page": {},
      "meta_pages": [
        {"image_urls": {"original": "https://i.example.net/o/102_p0.png"}},
        {"image_urls": {"large": "https://i.example.net/l/102_p1.jpg"}}
      ],
      "x_restrict": 1,
      "page_count": 2
    },
    {
      "id": 103,
      "title": "No images",
      "image_urls": {}
    }
  ]
}`

func testSourceConfig(url string) *config.SourceConfig {
	cfg := config.TestConfig().Source
	cfg.BaseURL = url
	return &cfg
}

func newTestAPIClient(t *testing.T, handler http.HandlerFunc) *APIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewAPIClient(testSourceConfig(server.URL))
	require.NoError(t, err)
	return client
}

func TestNewAPIClient_EmptyBaseURL(t *testing.T) {
	_, err := NewAPIClient(&config.SourceConfig{})
	assert.Error(t, err)
}

func TestAPIClient_FetchPage_Search(t *testing.T) {
	client := newTestAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "cats", r.URL.Query().Get("word"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "1", r.URL.Query().Get("x_restrict"))
		assert.Equal(t, "gallery-test/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(illustsPayload))
	})

	page, err := client.FetchPage(context.Background(), Query{Word: "cats", XRestrict: true, Page: 2})
	require.NoError(t, err)
	items := page.Items
	require.Len(t, items, 2, "items without images are dropped")
	assert.Equal(t, 3, page.Fetched, "dropped items still count as fetched")

	assert.Equal(t, "101", items[0].ID)
	assert.Equal(t, "alice", items[0].Author)
	assert.Equal(t, []string{"https://i.example.net/img-original/101.png"}, items[0].Images)
	assert.Equal(t, "https://i.example.net/m/101.jpg", items[0].Thumbnail)
	assert.Equal(t, []string{"cat", "sky"}, items[0].Tags)
	assert.False(t, items[0].Restricted)

	assert.Equal(t, []string{"https://i.example.net/o/102_p0.png", "https://i.example.net/l/102_p1.jpg"}, items[1].Images)
	assert.True(t, items[1].Restricted)
	assert.Equal(t, 2, items[1].PageCount)
}

func TestAPIClient_FetchPage_Ranking(t *testing.T) {
	client := newTestAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ranking", r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("word"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "0", r.URL.Query().Get("x_restrict"))
		w.Write([]byte(`{"illusts": []}`))
	})

	page, err := client.FetchPage(context.Background(), Query{Word: Ranking, Page: 0})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Zero(t, page.Fetched)
}

func TestAPIClient_FetchPage_Errors(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantStatus  int
		wantMessage string
	}{
		{
			name: "server error with api message",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error": {"message": "Rate Limit", "user_message": ""}}`))
			},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Rate Limit",
		},
		{
			name: "server error without body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Internal Server Error",
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"illusts": [`))
			},
			wantMessage: "malformed response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestAPIClient(t, tt.handler)

			page, err := client.FetchPage(context.Background(), Query{Word: "cats", Page: 3})
			require.Error(t, err)
			assert.Nil(t, page.Items)
			assert.Zero(t, page.Fetched)

			var fe *FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, "page", fe.Op)
			assert.Equal(t, "cats", fe.Word)
			assert.Equal(t, 3, fe.Page)
			assert.Equal(t, tt.wantStatus, fe.Status)
			assert.Equal(t, tt.wantMessage, fe.UserMessage())
		})
	}
}

func TestAPIClient_FetchPage_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, err := NewAPIClient(testSourceConfig(url))
	require.NoError(t, err)

	_, err = client.FetchPage(context.Background(), Query{Word: "cats", Page: 1})
	fe := AsFetchError(err)
	require.NotNil(t, fe)
	assert.Equal(t, "network error", fe.UserMessage())
}

func TestAPIClient_FetchTags(t *testing.T) {
	client := newTestAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tags", r.URL.Path)
		w.Write([]byte(`{"tags": [{"tag": "風景", "translated_name": "scenery"}, {"tag": " "}, {"tag": "cat"}]}`))
	})

	tags, err := client.FetchTags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Tag{{Tag: "風景", TranslatedName: "scenery"}, {Tag: "cat"}}, tags)
	assert.Equal(t, "scenery", tags[0].Label())
	assert.Equal(t, "cat", tags[1].Label())
}

func TestAPIClient_FetchItem(t *testing.T) {
	client := newTestAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/illust/101":
			w.Write([]byte(`{"illust": {"id": 101, "title": "Single", "meta_single_page": {"original_image_url": "https://i.example.net/101.png"}}}`))
		default:
			w.Write([]byte(`{}`))
		}
	})

	item, err := client.FetchItem(context.Background(), "101")
	require.NoError(t, err)
	assert.Equal(t, "Single", item.Title)
	assert.Len(t, item.Images, 1)

	_, err = client.FetchItem(context.Background(), "999")
	fe := AsFetchError(err)
	require.NotNil(t, fe)
	assert.Equal(t, http.StatusNotFound, fe.Status)
}

func TestAPIClient_ProxyImage(t *testing.T) {
	cfg := testSourceConfig("http://api.local")
	cfg.ImageProxy = "https://proxy.local/"
	client, err := NewAPIClient(cfg)
	require.NoError(t, err)

	assert.Equal(t, "https://proxy.local/img/1.jpg?x=1", client.ProxyImage("https://i.example.net/img/1.jpg?x=1"))
	assert.Equal(t, "", client.ProxyImage(""))
	assert.Equal(t, "relative.jpg", client.ProxyImage("relative.jpg"))
}

func TestAPIClient_RateLimitHonoursContext(t *testing.T) {
	cfg := testSourceConfig("http://127.0.0.1:1")
	cfg.RateLimit = 0.001
	cfg.Burst = 1
	client, err := NewAPIClient(cfg)
	require.NoError(t, err)

	// Consume the single token.
	require.True(t, client.limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = client.FetchTags(ctx)
	assert.Error(t, err)
}

func TestFetchError_Messages(t *testing.T) {
	assert.Equal(t, `fetching "cats" page 2: HTTP 500: boom`, (&FetchError{Op: "page", Word: "cats", Page: 2, Status: 500, Message: "boom"}).Error())
	assert.Equal(t, `fetching "cats" page 2: boom`, (&FetchError{Op: "page", Word: "cats", Page: 2, Message: "boom"}).Error())
	assert.Equal(t, "fetching tags: failed to load", (&FetchError{Op: "tags"}).Error())

	inner := errors.New("dial tcp: refused")
	fe := AsFetchError(inner)
	assert.ErrorIs(t, fe, inner)
	assert.Equal(t, "dial tcp: refused", fe.UserMessage())
	assert.Nil(t, AsFetchError(nil))
}

func TestNew(t *testing.T) {
	cfg := testSourceConfig("http://api.local")

	src, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &APIClient{}, src)

	cfg.Kind = "feed"
	src, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &FeedSource{}, src)

	cfg.Kind = "carrier-pigeon"
	_, err = New(cfg)
	assert.Error(t, err)
}
