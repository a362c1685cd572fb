package city

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localhub/internal/domain"
)

func TestResolve(t *testing.T) {
	d, err := New(nil)
	require.NoError(t, err)

	tests := []struct {
		host string
		want string
	}{
		{"fresnoca.org", "Fresno"},
		{"www.fresnoca.org", "Fresno"},
		{"FRESNOCA.ORG:8443", "Fresno"},
		{"kahuluihi.com", "Kahului"},
		{"preview-elizabethnc.com.vercel.app", "Elizabeth City"},
		{"unknown.example", "Salt Lake City"},
		{"localhost:3000", "Salt Lake City"},
		{"", "Salt Lake City"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, d.Resolve(tt.host).City, tt.host)
	}
}

func TestDefaultTable(t *testing.T) {
	cities := DefaultTable()
	require.Len(t, cities, 8)
	for _, c := range cities {
		assert.NotEmpty(t, c.Host)
		assert.NotEmpty(t, c.State)
		assert.NotEmpty(t, c.RSSQueries, c.Host)
		assert.Contains(t, c.Tagline, c.City)
	}
	assert.Equal(t, "Salt Lake City, UT", cities[0].Label())
	assert.Len(t, cities[0].ICSFeeds, 1)
}

func TestCustomTable(t *testing.T) {
	d, err := New([]domain.City{
		{Host: " Alpha.TEST ", City: "Alpha", State: "AA"},
		{Host: "beta.test", City: "Beta", State: "BB"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Beta", d.Resolve("beta.test").City)
	assert.Equal(t, "Alpha", d.Resolve("alpha.test").City)
	assert.Equal(t, "Alpha", d.Resolve("gamma.test").City)

	all := d.All()
	all[0].City = "mutated"
	assert.Equal(t, "Alpha", d.All()[0].City)
}

func TestNewRejectsEmptyHost(t *testing.T) {
	_, err := New([]domain.City{{City: "Nowhere"}})
	assert.Error(t, err)
}
