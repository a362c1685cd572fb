package business

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"localhub/internal/domain"
	"localhub/internal/infra/tracer"
)

// geoapifyCategories maps UI category slugs to Geoapify category lists.
var geoapifyCategories = map[string]string{
	"coffee":       "catering.cafe",
	"restaurants":  "catering.restaurant",
	"bars":         "catering.bar",
	"bar":          "catering.bar",
	"gyms":         "sport.fitness_centre,sport.sports_centre",
	"gym":          "sport.fitness_centre,sport.sports_centre",
	"plumbers":     "service.plumber",
	"plumber":      "service.plumber",
	"electricians": "service.electrician",
	"electrician":  "service.electrician",
	"hvac":         "service.hvac,service.air_conditioning",
	"landscapers":  "service.gardener,service.landscaping",
	"pest-control": "service.pest_control",
	"real-estate":  "service.estate_agent,office.estate_agent",
}

const geoapifyFallbackCategories = "commercial,service,catering"

type geoapifyResponse struct {
	Features []geoapifyFeature `json:"features"`
}

type geoapifyFeature struct {
	Properties struct {
		PlaceID      string          `json:"place_id"`
		OSMID        json.RawMessage `json:"osm_id"`
		Name         string          `json:"name"`
		Formatted    string          `json:"formatted"`
		AddressLine1 string          `json:"address_line1"`
		AddressLine2 string          `json:"address_line2"`
		Website      string          `json:"website"`
		Categories   []string        `json:"categories"`
		Datasource   struct {
			Raw struct {
				Contact struct {
					Website string `json:"website"`
				} `json:"contact"`
			} `json:"raw"`
		} `json:"datasource"`
	} `json:"properties"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
}

// Geoapify searches the Geoapify Places API.
type Geoapify struct {
	client  *http.Client
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewGeoapify creates a Geoapify provider. A nil client gets a default one.
func NewGeoapify(apiKey, baseURL string, client *http.Client, logger *slog.Logger) *Geoapify {
	return &Geoapify{
		client:  defaultClient(client),
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

func (g *Geoapify) Name() domain.BusinessSource { return domain.SourceGeoapify }

// geoapifyParams builds the category filter and name search for a query.
// Unmapped categories become part of the name search.
func geoapifyParams(term, category string) url.Values {
	params := url.Values{}
	cats, mapped := geoapifyCategories[slug(category)]
	if mapped {
		params.Set("categories", cats)
	}

	name := strings.TrimSpace(term)
	if !mapped {
		if name == "" {
			params.Set("categories", geoapifyFallbackCategories)
		}
		if c := strings.TrimSpace(category); c != "" {
			name = strings.TrimSpace(name + " " + c)
		}
	}
	if name != "" {
		params.Set("name", name)
	}
	return params
}

func (g *Geoapify) SearchBusinesses(ctx context.Context, q domain.SearchQuery) (res *domain.SearchResult, err error) {
	if g.apiKey == "" {
		return domain.EmptySearchResult(domain.SourceGeoapify), nil
	}

	ctx, span := tracer.StartUpstreamSpan(ctx, "geoapify", "places")
	defer func() { tracer.End(span, err) }()

	offset := parseOffset(string(q.Cursor))
	params := geoapifyParams(q.Term, q.Category)
	radius := clamp(q.RadiusMeters, geoapifyMinRadius, geoapifyMaxRadius)
	params.Set("filter", fmt.Sprintf("circle:%s,%s,%d", coord(q.Lng), coord(q.Lat), radius))
	params.Set("bias", fmt.Sprintf("proximity:%s,%s", coord(q.Lng), coord(q.Lat)))
	params.Set("limit", strconv.Itoa(pageSize))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("lang", "en")
	params.Set("apiKey", g.apiKey)

	var body geoapifyResponse
	if _, err := getJSON(ctx, g.client, g.baseURL+"/places?"+params.Encode(), nil, &body); err != nil {
		return nil, domain.UpstreamError("Geoapify.SearchBusinesses", err)
	}

	items := make([]domain.BusinessListing, 0, len(body.Features))
	for _, f := range body.Features {
		items = append(items, toGeoapifyListing(f))
	}

	result := &domain.SearchResult{Items: items, Provider: domain.SourceGeoapify}
	if len(body.Features) == pageSize {
		c := domain.Cursor(strconv.Itoa(offset + pageSize))
		result.NextCursor = &c
	}

	span.SetAttributes(tracer.IntAttr("results", len(items)))
	g.logger.Debug("geoapify search completed", "results", len(items), "offset", offset)
	return result, nil
}

func toGeoapifyListing(f geoapifyFeature) domain.BusinessListing {
	p := f.Properties
	addr := p.Formatted
	if addr == "" {
		var parts []string
		for _, s := range []string{p.AddressLine1, p.AddressLine2} {
			if s != "" {
				parts = append(parts, s)
			}
		}
		addr = strings.Join(parts, ", ")
	}

	id := p.PlaceID
	if id == "" {
		osm := strings.Trim(string(p.OSMID), `"`)
		if osm == "null" {
			osm = ""
		}
		id = osm + "-" + p.Name + "-" + addr
	}

	name := p.Name
	if name == "" {
		name = "Unknown"
	}

	website := p.Website
	if website == "" {
		website = p.Datasource.Raw.Contact.Website
	}

	l := domain.BusinessListing{
		ID:         id,
		Name:       name,
		Address:    addr,
		Website:    website,
		Source:     domain.SourceGeoapify,
		Categories: p.Categories,
	}
	if l.Categories == nil {
		l.Categories = []string{}
	}
	if c := f.Geometry.Coordinates; len(c) >= 2 {
		lng, lat := c[0], c[1]
		l.Lat, l.Lng = &lat, &lng
	}
	return l
}
