// Package news reads city headlines from the Google News RSS search feed.
package news

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed/rss"

	"localhub/internal/domain"
	"localhub/internal/infra/tracer"
	"localhub/internal/infra/ttlcache"
)

const (
	maxFeedSize     = 4 << 20 // 4MB
	defaultMaxItems = 60
	freshWindow     = 24 * time.Hour
	fallbackWindow  = 48 * time.Hour
)

// GoogleNews is a cached Google News RSS client.
type GoogleNews struct {
	client   *http.Client
	baseURL  string
	maxItems int
	cache    *ttlcache.Cache[[]domain.NewsItem]
	now      func() time.Time
	logger   *slog.Logger
}

// NewGoogleNews creates a client. A nil client gets a default one.
func NewGoogleNews(baseURL string, ttl time.Duration, maxItems int, client *http.Client, logger *slog.Logger) *GoogleNews {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	return &GoogleNews{
		client:   client,
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxItems: maxItems,
		cache:    ttlcache.New[[]domain.NewsItem](ttl),
		now:      time.Now,
		logger:   logger,
	}
}

// DefaultQuery is the feed search used when the caller gives none.
func DefaultQuery(c domain.City) string {
	return strings.TrimSpace(c.City + " " + c.State + " when:1d")
}

// FetchNews implements domain.NewsFetcher.
func (g *GoogleNews) FetchNews(ctx context.Context, query string) ([]domain.NewsItem, error) {
	return g.cache.GetOrLoad(ctx, query, func(ctx context.Context) ([]domain.NewsItem, error) {
		return g.fetch(ctx, query)
	})
}

func (g *GoogleNews) fetch(ctx context.Context, query string) (items []domain.NewsItem, err error) {
	ctx, span := tracer.StartUpstreamSpan(ctx, "google-news", "search")
	defer func() { tracer.End(span, err) }()

	params := url.Values{}
	params.Set("q", query)
	params.Set("hl", "en-US")
	params.Set("gl", "US")
	params.Set("ceid", "US:en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, domain.UpstreamError("GoogleNews.FetchNews", fmt.Errorf("create request: %w", err))
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, domain.UpstreamError("GoogleNews.FetchNews", fmt.Errorf("request: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.UpstreamError("GoogleNews.FetchNews", fmt.Errorf("news %d", resp.StatusCode))
	}

	var parser rss.Parser
	feed, err := parser.Parse(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, domain.UpstreamError("GoogleNews.FetchNews", fmt.Errorf("parse feed: %w", err))
	}

	all := make([]domain.NewsItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		if n, ok := toNewsItem(it); ok {
			all = append(all, n)
		}
	}
	items = Select(all, g.now(), g.maxItems)

	span.SetAttributes(tracer.IntAttr("items", len(items)))
	g.logger.Debug("news fetched", "query", query, "parsed", len(all), "kept", len(items))
	return items, nil
}

func toNewsItem(it *rss.Item) (domain.NewsItem, bool) {
	title := strings.TrimSpace(it.Title)
	link := strings.TrimSpace(it.Link)
	if title == "" || link == "" || it.PubDateParsed == nil {
		return domain.NewsItem{}, false
	}
	n := domain.NewsItem{Title: title, Link: link, PublishedAt: it.PubDateParsed.UTC()}
	if it.Source != nil {
		n.Source = strings.TrimSpace(it.Source.Title)
	}
	return n, true
}

// Select keeps items from the last 24 hours, newest first, falling back to
// 48 hours when nothing is that fresh. Titles are de-duplicated and the
// result is capped at limit.
func Select(items []domain.NewsItem, now time.Time, limit int) []domain.NewsItem {
	out := within(items, now, freshWindow)
	if len(out) == 0 {
		out = within(items, now, fallbackWindow)
	}

	seen := make(map[string]struct{}, len(out))
	kept := make([]domain.NewsItem, 0, min(len(out), limit))
	for _, it := range out {
		if _, dup := seen[it.Title]; dup {
			continue
		}
		seen[it.Title] = struct{}{}
		kept = append(kept, it)
		if len(kept) == limit {
			break
		}
	}
	return kept
}

func within(items []domain.NewsItem, now time.Time, window time.Duration) []domain.NewsItem {
	var out []domain.NewsItem
	for _, it := range items {
		if now.Sub(it.PublishedAt) <= window {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	return out
}

var _ domain.NewsFetcher = (*GoogleNews)(nil)
