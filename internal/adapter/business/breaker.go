package business

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"localhub/internal/domain"
	"localhub/internal/infra/config"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// BreakerProvider wraps a BusinessProvider with circuit breaker protection.
// When the upstream fails repeatedly, searches fail fast as upstream errors
// until the breaker half-opens.
type BreakerProvider struct {
	inner   domain.BusinessProvider
	breaker *gobreaker.CircuitBreaker[*domain.SearchResult]
}

// NewBreakerProvider wraps inner. Zero-valued settings use defaults.
func NewBreakerProvider(inner domain.BusinessProvider, cfg config.CircuitBreakerConfig, logger *slog.Logger) *BreakerProvider {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[*domain.SearchResult](gobreaker.Settings{
		Name:        "business:" + string(inner.Name()),
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		// Caller cancellations say nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &BreakerProvider{inner: inner, breaker: cb}
}

func (p *BreakerProvider) Name() domain.BusinessSource { return p.inner.Name() }

func (p *BreakerProvider) SearchBusinesses(ctx context.Context, q domain.SearchQuery) (*domain.SearchResult, error) {
	res, err := p.breaker.Execute(func() (*domain.SearchResult, error) {
		return p.inner.SearchBusinesses(ctx, q)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, domain.UpstreamError("BreakerProvider.SearchBusinesses",
				fmt.Errorf("provider %q circuit open: %w", p.inner.Name(), err))
		}
		return nil, err
	}
	return res, nil
}

// State returns the current breaker state.
func (p *BreakerProvider) State() gobreaker.State {
	return p.breaker.State()
}

var _ domain.BusinessProvider = (*BreakerProvider)(nil)
