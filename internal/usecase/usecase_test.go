package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"localhub/internal/domain"
	"localhub/internal/usecase/eventbus"
)

func newTestLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

var testCity = domain.City{
	Host:             "milpitas.local",
	City:             "Milpitas",
	State:            "CA",
	Lat:              37.4323,
	Lon:              -121.8996,
	EventRadiusMiles: 10,
}

// stubProvider is a BusinessProvider returning canned results.
type stubProvider struct {
	name   domain.BusinessSource
	result *domain.SearchResult
	err    error

	mu    sync.Mutex
	calls []domain.SearchQuery
}

func (p *stubProvider) Name() domain.BusinessSource { return p.name }

func (p *stubProvider) SearchBusinesses(_ context.Context, q domain.SearchQuery) (*domain.SearchResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, q)
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

// stubStore is an EventStore and EventWriter over a slice.
type stubStore struct {
	events  []domain.Event
	loadErr error
	merged  []domain.Event
}

func (s *stubStore) Load(context.Context) ([]domain.Event, error) {
	return s.events, s.loadErr
}

func (s *stubStore) Merge(_ context.Context, events []domain.Event) (int, error) {
	s.merged = append(s.merged, events...)
	return len(events), nil
}

// stubSource is an EventSource that records queries.
type stubSource struct {
	events []domain.Event
	err    error
	failOn string // city label that errors

	mu      sync.Mutex
	queries []domain.EventQuery
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) FetchEvents(_ context.Context, q domain.EventQuery) ([]domain.Event, error) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()
	if s.failOn != "" && q.City.Label() == s.failOn {
		return nil, domain.UpstreamError("stub", errors.New("boom"))
	}
	return s.events, s.err
}

// recordingPublisher captures published submissions synchronously.
type recordingPublisher struct {
	mu   sync.Mutex
	subs []domain.Submission
}

func (p *recordingPublisher) Publish(_ context.Context, topic eventbus.Topic, s domain.Submission) {
	if topic != eventbus.TopicSubmissionReceived {
		return
	}
	p.mu.Lock()
	p.subs = append(p.subs, s)
	p.mu.Unlock()
}

func ev(title, start string) domain.Event {
	return domain.Event{ID: title + "@" + start, Title: title, Start: start}
}
