package news

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localhub/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func rssItem(title, link string, published time.Time, source string) string {
	return fmt.Sprintf(`<item><title><![CDATA[%s]]></title><link>%s</link><pubDate>%s</pubDate><source url="https://src.example">%s</source></item>`,
		title, link, published.Format(time.RFC1123Z), source)
}

func rssFeed(items ...string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>Google News</title>` +
		strings.Join(items, "") + `</channel></rss>`
}

func newTestClient(t *testing.T, body string, calls *atomic.Int32) *GoogleNews {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		assert.Equal(t, "/rss/search", r.URL.Path)
		assert.Equal(t, "en-US", r.URL.Query().Get("hl"))
		assert.Equal(t, "US", r.URL.Query().Get("gl"))
		assert.Equal(t, "US:en", r.URL.Query().Get("ceid"))
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	g := NewGoogleNews(srv.URL+"/rss", time.Minute, 60, srv.Client(), newTestLogger())
	g.now = func() time.Time { return testNow }
	return g
}

func TestFetchNewsFreshFirst(t *testing.T) {
	feed := rssFeed(
		rssItem("Older story", "https://a.example/1", testNow.Add(-30*time.Hour), "Paper A"),
		rssItem("Council votes &amp; more", "https://a.example/2", testNow.Add(-2*time.Hour), "Paper B"),
		rssItem("Newest story", "https://a.example/3", testNow.Add(-1*time.Hour), "Paper C"),
		rssItem("Council votes &amp; more", "https://b.example/2", testNow.Add(-3*time.Hour), "Paper D"),
	)
	g := newTestClient(t, feed, nil)

	items, err := g.FetchNews(context.Background(), DefaultQuery(domain.City{City: "Milpitas", State: "CA"}))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Newest story", items[0].Title)
	assert.Equal(t, "Paper C", items[0].Source)
	assert.Equal(t, "https://a.example/2", items[1].Link, "first of duplicate titles survives")
}

func TestFetchNewsFallsBackTo48h(t *testing.T) {
	feed := rssFeed(
		rssItem("Two days", "https://a.example/1", testNow.Add(-47*time.Hour), "P"),
		rssItem("A day and a half", "https://a.example/2", testNow.Add(-36*time.Hour), "P"),
		rssItem("Ancient", "https://a.example/3", testNow.Add(-72*time.Hour), "P"),
	)
	g := newTestClient(t, feed, nil)

	items, err := g.FetchNews(context.Background(), "Milpitas CA when:1d")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "A day and a half", items[0].Title)
}

func TestFetchNewsSkipsIncompleteItems(t *testing.T) {
	feed := rssFeed(
		`<item><title>No link</title><pubDate>`+testNow.Format(time.RFC1123Z)+`</pubDate></item>`,
		`<item><title>No date</title><link>https://a.example/x</link></item>`,
		rssItem("Complete", "https://a.example/ok", testNow.Add(-time.Hour), "P"),
	)
	g := newTestClient(t, feed, nil)

	items, err := g.FetchNews(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Complete", items[0].Title)
}

func TestFetchNewsCached(t *testing.T) {
	var calls atomic.Int32
	g := newTestClient(t, rssFeed(rssItem("A", "https://a.example", testNow, "P")), &calls)

	for i := 0; i < 3; i++ {
		_, err := g.FetchNews(context.Background(), "same query")
		require.NoError(t, err)
	}
	_, err := g.FetchNews(context.Background(), "other query")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchNewsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewGoogleNews(srv.URL, time.Minute, 60, srv.Client(), newTestLogger())
	_, err := g.FetchNews(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestSelectCap(t *testing.T) {
	var items []domain.NewsItem
	for i := 0; i < 100; i++ {
		items = append(items, domain.NewsItem{
			Title:       fmt.Sprintf("Story %d", i),
			Link:        "https://a.example",
			PublishedAt: testNow.Add(-time.Duration(i) * time.Minute),
		})
	}
	got := Select(items, testNow, 60)
	assert.Len(t, got, 60)
	assert.Equal(t, "Story 0", got[0].Title)
}

func TestDefaultQuery(t *testing.T) {
	assert.Equal(t, "Milpitas CA when:1d", DefaultQuery(domain.City{City: "Milpitas", State: "CA"}))
}
