package business

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"localhub/internal/domain"
	"localhub/internal/infra/tracer"
)

// detailsConcurrency bounds parallel Place Details calls per search.
const detailsConcurrency = 4

// googleTypes maps UI category slugs to Places "type" filters.
var googleTypes = map[string]string{
	"coffee":       "cafe",
	"restaurants":  "restaurant",
	"bars":         "bar",
	"bar":          "bar",
	"gyms":         "gym",
	"gym":          "gym",
	"plumbers":     "plumber",
	"plumber":      "plumber",
	"electricians": "electrician",
	"electrician":  "electrician",
	"real-estate":  "real_estate_agency",
}

type googleTextResponse struct {
	Status        string        `json:"status"`
	ErrorMessage  string        `json:"error_message"`
	NextPageToken string        `json:"next_page_token"`
	Results       []googlePlace `json:"results"`
}

type googlePlace struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	Rating           *float64 `json:"rating"`
	UserRatingsTotal *int     `json:"user_ratings_total"`
	FormattedAddress string   `json:"formatted_address"`
	Vicinity         string   `json:"vicinity"`
	OpeningHours     *struct {
		OpenNow *bool `json:"open_now"`
	} `json:"opening_hours"`
	Geometry struct {
		Location struct {
			Lat *float64 `json:"lat"`
			Lng *float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	Photos []struct {
		PhotoReference string `json:"photo_reference"`
	} `json:"photos"`
	Types []string `json:"types"`
}

type googleDetailsResponse struct {
	Status string `json:"status"`
	Result struct {
		Website      string `json:"website"`
		OpeningHours *struct {
			OpenNow *bool `json:"open_now"`
		} `json:"opening_hours"`
	} `json:"result"`
}

// GoogleConfig holds Google Places settings including cost controls.
type GoogleConfig struct {
	APIKey       string
	BaseURL      string
	MaxDetails   int
	EnablePhotos bool
}

// GooglePlaces searches the Google Places Text Search API and optionally
// enriches the first results with Place Details.
type GooglePlaces struct {
	client *http.Client
	cfg    GoogleConfig
	logger *slog.Logger
}

// NewGooglePlaces creates a Google Places provider. A nil client gets a default one.
func NewGooglePlaces(cfg GoogleConfig, client *http.Client, logger *slog.Logger) *GooglePlaces {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &GooglePlaces{client: defaultClient(client), cfg: cfg, logger: logger}
}

func (g *GooglePlaces) Name() domain.BusinessSource { return domain.SourceGoogle }

func (g *GooglePlaces) SearchBusinesses(ctx context.Context, q domain.SearchQuery) (res *domain.SearchResult, err error) {
	if g.cfg.APIKey == "" {
		return domain.EmptySearchResult(domain.SourceGoogle), nil
	}

	ctx, span := tracer.StartUpstreamSpan(ctx, "google", "textsearch")
	defer func() { tracer.End(span, err) }()

	params := url.Values{}
	params.Set("query", searchTerm(q.Term, q.Category))
	params.Set("location", coord(q.Lat)+","+coord(q.Lng))
	params.Set("radius", strconv.Itoa(q.RadiusMeters))
	params.Set("key", g.cfg.APIKey)
	if t, ok := googleTypes[slug(q.Category)]; ok {
		params.Set("type", t)
	}
	if q.Cursor != "" {
		params.Set("pagetoken", string(q.Cursor))
	}

	var body googleTextResponse
	if _, err := getJSON(ctx, g.client, g.cfg.BaseURL+"/textsearch/json?"+params.Encode(), nil, &body); err != nil {
		return nil, domain.UpstreamError("GooglePlaces.SearchBusinesses", err)
	}

	switch body.Status {
	case "OK", "":
	case "ZERO_RESULTS":
		return domain.EmptySearchResult(domain.SourceGoogle), nil
	case "INVALID_REQUEST":
		// Page tokens expire after a few minutes; treat as end of results.
		if q.Cursor != "" {
			g.logger.Debug("google page token rejected, ending pagination")
			return domain.EmptySearchResult(domain.SourceGoogle), nil
		}
		fallthrough
	default:
		return nil, domain.UpstreamError("GooglePlaces.SearchBusinesses",
			fmt.Errorf("status %s: %s", body.Status, body.ErrorMessage))
	}

	items := make([]domain.BusinessListing, 0, len(body.Results))
	for _, p := range body.Results {
		items = append(items, g.toListing(p))
	}
	enriched := g.enrich(ctx, items)

	result := &domain.SearchResult{Items: items, Provider: domain.SourceGoogle}
	if body.NextPageToken != "" {
		c := domain.Cursor(body.NextPageToken)
		result.NextCursor = &c
	}

	span.SetAttributes(tracer.IntAttr("results", len(items)), tracer.IntAttr("details", enriched))
	g.logger.Debug("google search completed", "results", len(items), "details", enriched)
	return result, nil
}

func (g *GooglePlaces) toListing(p googlePlace) domain.BusinessListing {
	addr := p.FormattedAddress
	if addr == "" {
		addr = p.Vicinity
	}
	l := domain.BusinessListing{
		ID:          p.PlaceID,
		Name:        p.Name,
		Rating:      p.Rating,
		ReviewCount: p.UserRatingsTotal,
		Address:     addr,
		Lat:         p.Geometry.Location.Lat,
		Lng:         p.Geometry.Location.Lng,
		Source:      domain.SourceGoogle,
		Categories:  p.Types,
	}
	if l.Categories == nil {
		l.Categories = []string{}
	}
	if p.OpeningHours != nil {
		l.OpenNow = p.OpeningHours.OpenNow
	}
	if g.cfg.EnablePhotos && len(p.Photos) > 0 && p.Photos[0].PhotoReference != "" {
		l.PhotoURL = ProxyPhotoRef(p.Photos[0].PhotoReference)
	}
	return l
}

// GooglePhotos turns photo references into Place Photo URLs. The URL
// carries the API key, so it is only built server-side by the image proxy.
type GooglePhotos struct {
	apiKey  string
	baseURL string
}

// NewGooglePhotos returns nil when no key is configured.
func NewGooglePhotos(apiKey, baseURL string) *GooglePhotos {
	if apiKey == "" {
		return nil
	}
	return &GooglePhotos{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/")}
}

// PhotoURL returns the upstream URL for ref.
func (p *GooglePhotos) PhotoURL(ref string) (string, bool) {
	if p == nil || strings.TrimSpace(ref) == "" {
		return "", false
	}
	params := url.Values{}
	params.Set("maxwidth", "800")
	params.Set("photo_reference", ref)
	params.Set("key", p.apiKey)
	return p.baseURL + "/photo?" + params.Encode(), true
}

// enrich fills website and openNow from Place Details for the first
// MaxDetails items. Individual failures leave the item unchanged.
// It returns the number of successful lookups.
func (g *GooglePlaces) enrich(ctx context.Context, items []domain.BusinessListing) int {
	n := min(max(g.cfg.MaxDetails, 0), len(items))
	if n == 0 {
		return 0
	}

	details := make([]*googleDetailsResponse, n)
	var eg errgroup.Group
	eg.SetLimit(detailsConcurrency)
	for i := 0; i < n; i++ {
		placeID := items[i].ID
		if placeID == "" {
			continue
		}
		eg.Go(func() error {
			d, err := g.fetchDetails(ctx, placeID)
			if err != nil {
				g.logger.Debug("google details failed", "place_id", placeID, "error", err)
				return nil
			}
			details[i] = d
			return nil
		})
	}
	_ = eg.Wait()

	ok := 0
	for i, d := range details {
		if d == nil {
			continue
		}
		ok++
		if d.Result.Website != "" {
			items[i].Website = d.Result.Website
		}
		if d.Result.OpeningHours != nil && d.Result.OpeningHours.OpenNow != nil {
			items[i].OpenNow = d.Result.OpeningHours.OpenNow
		}
	}
	return ok
}

func (g *GooglePlaces) fetchDetails(ctx context.Context, placeID string) (*googleDetailsResponse, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", "website,opening_hours")
	params.Set("key", g.cfg.APIKey)

	var d googleDetailsResponse
	if _, err := getJSON(ctx, g.client, g.cfg.BaseURL+"/details/json?"+params.Encode(), nil, &d); err != nil {
		return nil, err
	}
	if d.Status != "" && d.Status != "OK" {
		return nil, fmt.Errorf("details status %s", d.Status)
	}
	return &d, nil
}
