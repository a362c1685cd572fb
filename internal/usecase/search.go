package usecase

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"localhub/internal/domain"
	"localhub/internal/infra/tracer"
)

// SearchRequest is the raw /api/businesses query.
type SearchRequest struct {
	Host     string
	Term     string
	Category string
	Lat      string
	Lng      string
	Radius   string
	Cursor   string
}

// SearchResponse is the uniform business search body. Error is empty on
// success, "missing_key" when no key is configured and "upstream_error"
// when the provider failed.
type SearchResponse struct {
	Items      []domain.BusinessListing `json:"items"`
	NextCursor *domain.Cursor           `json:"nextCursor"`
	Provider   domain.BusinessSource    `json:"provider"`
	TookMs     int64                    `json:"tookMs"`
	Error      domain.ErrorCode         `json:"error,omitempty"`
}

// SearchGateway forwards normalized queries to the active business provider
// and never fails: every outcome is a SearchResponse.
type SearchGateway struct {
	provider      domain.BusinessProvider
	keyConfigured bool
	defaultRadius int
	logger        *slog.Logger
	now           func() time.Time
}

// NewSearchGateway creates a gateway. keyConfigured reports whether the
// active provider has an API key; when false the provider is never called.
func NewSearchGateway(provider domain.BusinessProvider, keyConfigured bool, defaultRadius int, logger *slog.Logger) *SearchGateway {
	if defaultRadius <= 0 {
		defaultRadius = 15000
	}
	return &SearchGateway{
		provider:      provider,
		keyConfigured: keyConfigured,
		defaultRadius: defaultRadius,
		logger:        logger,
		now:           time.Now,
	}
}

// Provider returns the active provider name.
func (g *SearchGateway) Provider() domain.BusinessSource { return g.provider.Name() }

// Search resolves defaults from city, calls the provider and shapes the response.
func (g *SearchGateway) Search(ctx context.Context, city domain.City, req SearchRequest) *SearchResponse {
	start := g.now()
	q := g.Normalize(city, req)

	ctx, span := tracer.StartSpan(ctx, "search.businesses")
	defer span.End()
	span.SetAttributes(
		tracer.StringAttr("search.provider", string(g.provider.Name())),
		tracer.StringAttr("search.city", city.Label()),
		tracer.IntAttr("search.radius_m", q.RadiusMeters),
	)

	g.logger.Info("business search",
		"host", req.Host,
		"city", city.Label(),
		"provider", g.provider.Name(),
		"category", q.Category,
		"q", q.Term,
		"radius", q.RadiusMeters,
		"cursor", q.Cursor != "",
	)

	resp := &SearchResponse{Items: []domain.BusinessListing{}, Provider: g.provider.Name()}
	switch {
	case !g.keyConfigured:
		resp.Error = domain.CodeMissingKey
	default:
		res, err := g.provider.SearchBusinesses(ctx, q)
		if err != nil {
			g.logger.Warn("business search failed", "provider", g.provider.Name(), "error", err)
			tracer.RecordError(span, err)
			resp.Error = domain.CodeUpstream
			break
		}
		if res.Items != nil {
			resp.Items = res.Items
		}
		resp.NextCursor = res.NextCursor
	}

	resp.TookMs = g.now().Sub(start).Milliseconds()
	span.SetAttributes(tracer.IntAttr("search.results", len(resp.Items)))
	return resp
}

// Normalize builds the provider query, defaulting coordinates from city
// and radius from configuration.
func (g *SearchGateway) Normalize(city domain.City, req SearchRequest) domain.SearchQuery {
	q := domain.SearchQuery{
		Term:         strings.TrimSpace(req.Term),
		Category:     strings.TrimSpace(req.Category),
		Lat:          parseCoord(req.Lat, city.Lat),
		Lng:          parseCoord(req.Lng, city.Lon),
		RadiusMeters: g.defaultRadius,
		Cursor:       domain.Cursor(strings.TrimSpace(req.Cursor)),
	}
	if r, err := strconv.Atoi(strings.TrimSpace(req.Radius)); err == nil && r > 0 {
		q.RadiusMeters = r
	}
	return q
}

func parseCoord(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
