package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localhub/internal/domain"
)

func TestCollectorWindows(t *testing.T) {
	c := NewEventCollector(&stubSource{}, &stubStore{}, nil, 0, newTestLogger())
	c.now = func() time.Time { return time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC) }

	w := c.Windows()
	require.Len(t, w, 2)
	assert.Equal(t, "2025-12-01T00:00:00.000Z", w[0].From.Format(isoMillis))
	assert.Equal(t, "2026-01-01T00:00:00.000Z", w[1].From.Format(isoMillis))
	assert.Equal(t, "2026-01-31T23:59:59.999Z", w[1].To.Format(isoMillis))
}

func TestCollectorRunMergesEveryCityAndMonth(t *testing.T) {
	other := domain.City{Host: "fremont.local", City: "Fremont", State: "CA", Lat: 37.54, Lon: -121.98}
	src := &stubSource{events: []domain.Event{ev("Fair", "2025-03-08T17:00:00Z")}}
	store := &stubStore{}
	c := NewEventCollector(src, store, []domain.City{testCity, other}, 0, newTestLogger())
	c.now = func() time.Time { return fixedNow }

	report, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, src.queries, 4)
	assert.Equal(t, 2, report.Cities)
	assert.Equal(t, 4, report.Fetched)
	assert.Equal(t, 4, report.Added)
	assert.Len(t, store.merged, 4)
	assert.Equal(t, 40000, src.queries[2].RadiusMeters, "city without radius uses default")
}

func TestCollectorContinuesPastFailingCity(t *testing.T) {
	other := domain.City{Host: "fremont.local", City: "Fremont", State: "CA"}
	src := &stubSource{events: []domain.Event{ev("Fair", "2025-03-08T17:00:00Z")}, failOn: "Milpitas, CA"}
	store := &stubStore{}
	c := NewEventCollector(src, store, []domain.City{testCity, other}, 0, newTestLogger())
	c.now = func() time.Time { return fixedNow }

	report, err := c.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Equal(t, 2, report.Fetched)
	assert.Len(t, store.merged, 2)
}

func TestCollectorStopsOnCancel(t *testing.T) {
	src := &stubSource{}
	c := NewEventCollector(src, &stubStore{}, []domain.City{testCity}, 0, newTestLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, src.queries)
}
