package domain

import "context"

// BusinessSource identifies the upstream directory a listing came from.
type BusinessSource string

const (
	SourceGoogle   BusinessSource = "google"
	SourceYelp     BusinessSource = "yelp"
	SourceGeoapify BusinessSource = "geoapify"
)

// ParseBusinessSource maps a configuration value to a source.
// Unknown values select Google.
func ParseBusinessSource(s string) BusinessSource {
	switch BusinessSource(s) {
	case SourceYelp:
		return SourceYelp
	case SourceGeoapify:
		return SourceGeoapify
	default:
		return SourceGoogle
	}
}

// Cursor is an opaque continuation token. Only the provider that issued it
// knows its encoding; callers round-trip it unchanged.
type Cursor string

// SearchQuery is a normalized business search request.
// Lat/Lng are always set; the gateway defaults them from the resolved city.
type SearchQuery struct {
	Term         string
	Category     string
	Lat          float64
	Lng          float64
	RadiusMeters int
	Cursor       Cursor
}

// BusinessListing is one normalized directory entry. ID is unique only
// together with Source.
type BusinessListing struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Rating      *float64       `json:"rating,omitempty"`
	ReviewCount *int           `json:"reviewCount,omitempty"`
	Address     string         `json:"address,omitempty"`
	Website     string         `json:"website,omitempty"`
	OpenNow     *bool          `json:"openNow,omitempty"`
	Lat         *float64       `json:"lat,omitempty"`
	Lng         *float64       `json:"lng,omitempty"`
	PhotoURL    string         `json:"photoUrl,omitempty"`
	Source      BusinessSource `json:"source"`
	Categories  []string       `json:"categories"`
}

// SearchResult is one page of listings. A nil NextCursor guarantees no
// further page exists.
type SearchResult struct {
	Items      []BusinessListing `json:"items"`
	NextCursor *Cursor           `json:"nextCursor"`
	Provider   BusinessSource    `json:"provider"`
}

// EmptySearchResult returns a terminal, empty page for provider.
func EmptySearchResult(provider BusinessSource) *SearchResult {
	return &SearchResult{Items: []BusinessListing{}, Provider: provider}
}

// BusinessProvider searches a third-party business directory.
type BusinessProvider interface {
	// Name returns the provider identifier.
	Name() BusinessSource
	// SearchBusinesses returns one normalized page. A missing API key yields an
	// empty result, not an error.
	SearchBusinesses(ctx context.Context, q SearchQuery) (*SearchResult, error)
}
