package business

import (
	"log/slog"
	"net/http"
	"strings"

	"localhub/internal/domain"
	"localhub/internal/infra/config"
)

// NewProvider builds the configured business provider, wrapped in a circuit
// breaker when enabled.
func NewProvider(cfg config.BusinessConfig, client *http.Client, logger *slog.Logger) domain.BusinessProvider {
	var p domain.BusinessProvider
	switch domain.ParseBusinessSource(strings.ToLower(cfg.Provider)) {
	case domain.SourceYelp:
		p = NewYelp(cfg.Yelp.APIKey, cfg.Yelp.BaseURL, client, logger)
	case domain.SourceGeoapify:
		p = NewGeoapify(cfg.Geoapify.APIKey, cfg.Geoapify.BaseURL, client, logger)
	default:
		p = NewGooglePlaces(GoogleConfig{
			APIKey:       cfg.Google.APIKey,
			BaseURL:      cfg.Google.BaseURL,
			MaxDetails:   cfg.ResolvedMaxDetails(),
			EnablePhotos: cfg.ResolvedEnablePhotos(),
		}, client, logger)
	}

	if cfg.CircuitBreaker.Enabled {
		p = NewBreakerProvider(p, cfg.CircuitBreaker, logger)
	}
	logger.Info("business provider ready", "provider", p.Name(), "breaker", cfg.CircuitBreaker.Enabled)
	return p
}

var (
	_ domain.BusinessProvider = (*GooglePlaces)(nil)
	_ domain.BusinessProvider = (*Yelp)(nil)
	_ domain.BusinessProvider = (*Geoapify)(nil)
)
