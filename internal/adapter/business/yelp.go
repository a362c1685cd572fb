package business

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"localhub/internal/domain"
	"localhub/internal/infra/tracer"
)

// yelpMaxWindow is the deepest offset+limit Yelp will serve.
const yelpMaxWindow = 1000

// yelpCategories maps UI category slugs to Yelp category aliases.
var yelpCategories = map[string]string{
	"coffee":       "coffee",
	"restaurants":  "restaurants",
	"bars":         "bars",
	"bar":          "bars",
	"gyms":         "gyms",
	"gym":          "gyms",
	"plumbers":     "plumbing",
	"plumber":      "plumbing",
	"electricians": "electricians",
	"electrician":  "electricians",
	"hvac":         "hvac",
	"landscapers":  "landscaping",
	"pest-control": "pest_control",
	"real-estate":  "realestate",
}

type yelpResponse struct {
	Businesses []yelpBusiness `json:"businesses"`
	Total      int            `json:"total"`
}

type yelpBusiness struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Rating      *float64 `json:"rating"`
	ReviewCount *int     `json:"review_count"`
	URL         string   `json:"url"`
	ImageURL    string   `json:"image_url"`
	IsClosed    *bool    `json:"is_closed"`
	Location    struct {
		DisplayAddress []string `json:"display_address"`
	} `json:"location"`
	Coordinates struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"coordinates"`
	Categories []struct {
		Title string `json:"title"`
	} `json:"categories"`
}

// Yelp searches the Yelp Fusion business search API.
type Yelp struct {
	client  *http.Client
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewYelp creates a Yelp provider. A nil client gets a default one.
func NewYelp(apiKey, baseURL string, client *http.Client, logger *slog.Logger) *Yelp {
	return &Yelp{
		client:  defaultClient(client),
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

func (y *Yelp) Name() domain.BusinessSource { return domain.SourceYelp }

func (y *Yelp) SearchBusinesses(ctx context.Context, q domain.SearchQuery) (res *domain.SearchResult, err error) {
	if y.apiKey == "" {
		return domain.EmptySearchResult(domain.SourceYelp), nil
	}

	offset := parseOffset(string(q.Cursor))
	limit := min(pageSize, yelpMaxWindow-offset)
	if limit <= 0 {
		// Past the last page Yelp will serve; end pagination.
		return domain.EmptySearchResult(domain.SourceYelp), nil
	}

	ctx, span := tracer.StartUpstreamSpan(ctx, "yelp", "search")
	defer func() { tracer.End(span, err) }()

	params := url.Values{}
	params.Set("latitude", coord(q.Lat))
	params.Set("longitude", coord(q.Lng))
	params.Set("radius", strconv.Itoa(min(q.RadiusMeters, yelpMaxRadius)))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("term", searchTerm(q.Term, q.Category))
	if alias, ok := yelpCategories[slug(q.Category)]; ok {
		params.Set("categories", alias)
	}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+y.apiKey)

	var body yelpResponse
	if _, err := getJSON(ctx, y.client, y.baseURL+"/businesses/search?"+params.Encode(), header, &body); err != nil {
		return nil, domain.UpstreamError("Yelp.SearchBusinesses", err)
	}

	items := make([]domain.BusinessListing, 0, len(body.Businesses))
	for _, b := range body.Businesses {
		items = append(items, y.toListing(b))
	}

	result := &domain.SearchResult{Items: items, Provider: domain.SourceYelp}
	next := offset + len(body.Businesses)
	if len(body.Businesses) > 0 && next < min(body.Total, yelpMaxWindow) {
		c := domain.Cursor(strconv.Itoa(next))
		result.NextCursor = &c
	}

	span.SetAttributes(tracer.IntAttr("results", len(items)))
	y.logger.Debug("yelp search completed", "results", len(items), "total", body.Total, "offset", offset)
	return result, nil
}

func (y *Yelp) toListing(b yelpBusiness) domain.BusinessListing {
	l := domain.BusinessListing{
		ID:          b.ID,
		Name:        b.Name,
		Rating:      b.Rating,
		ReviewCount: b.ReviewCount,
		Address:     strings.Join(b.Location.DisplayAddress, ", "),
		Website:     b.URL,
		Lat:         b.Coordinates.Latitude,
		Lng:         b.Coordinates.Longitude,
		PhotoURL:    ProxyPhotoURL(b.ImageURL),
		Source:      domain.SourceYelp,
		Categories:  make([]string, 0, len(b.Categories)),
	}
	if b.IsClosed != nil {
		open := !*b.IsClosed
		l.OpenNow = &open
	}
	for _, c := range b.Categories {
		l.Categories = append(l.Categories, c.Title)
	}
	return l
}
