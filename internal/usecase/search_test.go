package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localhub/internal/domain"
)

func TestSearchMissingKeySkipsProvider(t *testing.T) {
	p := &stubProvider{name: domain.SourceGoogle}
	g := NewSearchGateway(p, false, 0, newTestLogger())

	resp := g.Search(context.Background(), testCity, SearchRequest{Term: "pizza"})

	assert.Equal(t, domain.CodeMissingKey, resp.Error)
	assert.Equal(t, domain.SourceGoogle, resp.Provider)
	require.NotNil(t, resp.Items)
	assert.Empty(t, resp.Items)
	assert.Nil(t, resp.NextCursor)
	assert.Empty(t, p.calls)
}

func TestSearchUpstreamErrorIsShaped(t *testing.T) {
	p := &stubProvider{name: domain.SourceYelp, err: domain.UpstreamError("Yelp", errors.New("503"))}
	g := NewSearchGateway(p, true, 0, newTestLogger())

	resp := g.Search(context.Background(), testCity, SearchRequest{})

	assert.Equal(t, domain.CodeUpstream, resp.Error)
	assert.NotNil(t, resp.Items)
	assert.Empty(t, resp.Items)
	assert.Len(t, p.calls, 1)
}

func TestSearchSuccessPassesCursorThrough(t *testing.T) {
	next := domain.Cursor("20")
	p := &stubProvider{name: domain.SourceYelp, result: &domain.SearchResult{
		Items:      []domain.BusinessListing{{ID: "a", Name: "Alpha", Source: domain.SourceYelp, Categories: []string{}}},
		NextCursor: &next,
		Provider:   domain.SourceYelp,
	}}
	g := NewSearchGateway(p, true, 0, newTestLogger())
	clock := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	g.now = func() time.Time { clock = clock.Add(7 * time.Millisecond); return clock }

	resp := g.Search(context.Background(), testCity, SearchRequest{Cursor: " 0 "})

	assert.Empty(t, resp.Error)
	require.Len(t, resp.Items, 1)
	require.NotNil(t, resp.NextCursor)
	assert.Equal(t, next, *resp.NextCursor)
	assert.Equal(t, int64(7), resp.TookMs)
	assert.Equal(t, domain.Cursor("0"), p.calls[0].Cursor)
}

func TestSearchNilItemsBecomeEmpty(t *testing.T) {
	p := &stubProvider{name: domain.SourceGeoapify, result: &domain.SearchResult{Provider: domain.SourceGeoapify}}
	g := NewSearchGateway(p, true, 0, newTestLogger())

	resp := g.Search(context.Background(), testCity, SearchRequest{})
	assert.NotNil(t, resp.Items)
	assert.Empty(t, resp.Error)
}

func TestNormalize(t *testing.T) {
	g := NewSearchGateway(&stubProvider{}, true, 12000, newTestLogger())

	tests := []struct {
		name string
		req  SearchRequest
		want domain.SearchQuery
	}{
		{
			name: "city defaults",
			req:  SearchRequest{},
			want: domain.SearchQuery{Lat: testCity.Lat, Lng: testCity.Lon, RadiusMeters: 12000},
		},
		{
			name: "explicit values",
			req:  SearchRequest{Term: " tacos ", Category: "Food", Lat: "37.5", Lng: "-122", Radius: "5000", Cursor: "abc"},
			want: domain.SearchQuery{Term: "tacos", Category: "Food", Lat: 37.5, Lng: -122, RadiusMeters: 5000, Cursor: "abc"},
		},
		{
			name: "garbage falls back",
			req:  SearchRequest{Lat: "north", Lng: "NaN", Radius: "-3"},
			want: domain.SearchQuery{Lat: testCity.Lat, Lng: testCity.Lon, RadiusMeters: 12000},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Normalize(testCity, tt.req))
		})
	}
}

func TestNewSearchGatewayDefaultRadius(t *testing.T) {
	g := NewSearchGateway(&stubProvider{name: domain.SourceGoogle}, true, 0, newTestLogger())
	assert.Equal(t, 15000, g.Normalize(testCity, SearchRequest{}).RadiusMeters)
	assert.Equal(t, domain.SourceGoogle, g.Provider())
}
