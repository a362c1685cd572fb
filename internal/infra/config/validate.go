package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"localhub/internal/domain"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
// Missing API keys are not errors: the affected endpoints degrade instead.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateServer(cfg, ve)
	validateBusiness(cfg, ve)
	validateEvents(cfg, ve)
	validateFeeds(cfg, ve)
	validateImageProxy(cfg, ve)
	validateSubmissions(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	validateCities(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateServer(cfg *Config, ve *ValidationError) {
	if cfg.Server.Addr == "" {
		ve.Add("server.addr must not be empty")
	} else if _, _, err := net.SplitHostPort(cfg.Server.Addr); err != nil {
		ve.Add("server.addr %q is not a valid host:port", cfg.Server.Addr)
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		ve.Add("server.shutdown_timeout must be > 0")
	}
	rl := cfg.Server.RateLimit
	if rl.Enabled {
		if rl.RequestsPerMin <= 0 {
			ve.Add("server.rate_limit.requests_per_min must be > 0 when rate limiting is enabled")
		}
		if rl.Burst <= 0 {
			ve.Add("server.rate_limit.burst must be > 0 when rate limiting is enabled")
		}
	}
	for i, p := range rl.TrustedProxies {
		if net.ParseIP(p) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(p); err != nil {
			ve.Add("server.rate_limit.trusted_proxies[%d] %q is not an IP or CIDR", i, p)
		}
	}
}

var validProviders = map[string]bool{
	string(domain.SourceGoogle):   true,
	string(domain.SourceYelp):     true,
	string(domain.SourceGeoapify): true,
}

func validateBusiness(cfg *Config, ve *ValidationError) {
	b := cfg.Business
	if !validProviders[b.Provider] {
		ve.Add("business.provider %q is invalid (valid: google, yelp, geoapify)", b.Provider)
	}
	if b.DefaultRadiusM <= 0 {
		ve.Add("business.default_radius_m must be > 0")
	}
	if b.Timeout <= 0 {
		ve.Add("business.timeout must be > 0")
	}
	validateBaseURL("business.google.base_url", b.Google.BaseURL, ve)
	validateBaseURL("business.yelp.base_url", b.Yelp.BaseURL, ve)
	validateBaseURL("business.geoapify.base_url", b.Geoapify.BaseURL, ve)
	if b.CircuitBreaker.Enabled {
		if b.CircuitBreaker.MaxFailures == 0 {
			ve.Add("business.circuit_breaker.max_failures must be > 0 when enabled")
		}
		if b.CircuitBreaker.Timeout <= 0 {
			ve.Add("business.circuit_breaker.timeout must be > 0 when enabled")
		}
	}
}

func validateEvents(cfg *Config, ve *ValidationError) {
	e := cfg.Events
	if e.File == "" {
		ve.Add("events.file must not be empty")
	}
	if e.DefaultRadiusM <= 0 {
		ve.Add("events.default_radius_m must be > 0")
	}
	if e.Timeout <= 0 {
		ve.Add("events.timeout must be > 0")
	}
	validateBaseURL("events.ticketmaster.base_url", e.Ticketmaster.BaseURL, ve)
	if e.CollectSchedule != "" && !validSchedule(e.CollectSchedule) {
		ve.Add("events.collect_schedule %q is neither a cron expression nor a duration", e.CollectSchedule)
	}
}

// validSchedule accepts the same forms the collector's scheduler does.
func validSchedule(expr string) bool {
	if d, err := time.ParseDuration(expr); err == nil {
		return d > 0
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	_, err := parser.Parse(expr)
	return err == nil
}

func validateFeeds(cfg *Config, ve *ValidationError) {
	validateBaseURL("weather.base_url", cfg.Weather.BaseURL, ve)
	if cfg.Weather.Timeout <= 0 {
		ve.Add("weather.timeout must be > 0")
	}
	if cfg.Weather.CacheTTL < 0 {
		ve.Add("weather.cache_ttl must be >= 0")
	}
	validateBaseURL("news.base_url", cfg.News.BaseURL, ve)
	if cfg.News.Timeout <= 0 {
		ve.Add("news.timeout must be > 0")
	}
	if cfg.News.CacheTTL < 0 {
		ve.Add("news.cache_ttl must be >= 0")
	}
	if cfg.News.MaxItems <= 0 {
		ve.Add("news.max_items must be > 0")
	}
}

func validateImageProxy(cfg *Config, ve *ValidationError) {
	if cfg.ImageProxy.Timeout <= 0 {
		ve.Add("image_proxy.timeout must be > 0")
	}
	if cfg.ImageProxy.MaxBytes <= 0 {
		ve.Add("image_proxy.max_bytes must be > 0")
	}
}

func validateSubmissions(cfg *Config, ve *ValidationError) {
	if cfg.Submissions.MaxBodyBytes <= 0 {
		ve.Add("submissions.max_body_bytes must be > 0")
	}
	if u := cfg.Submissions.SlackWebhookURL; u != "" {
		parsed, err := url.Parse(u)
		if err != nil || parsed.Scheme != "https" || parsed.Host == "" {
			ve.Add("submissions.slack_webhook_url must be an https URL")
		}
	}
	if _, err := ParseSize(cfg.Submissions.JournalMaxSize); err != nil {
		ve.Add("submissions.journal_max_size: " + err.Error())
	}
	if cfg.Submissions.JournalMaxAge < 0 {
		ve.Add("submissions.journal_max_age must be >= 0")
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is invalid (valid: debug, info, warn, error)", cfg.Logger.Level)
	}
	if f := cfg.Logger.Format; f != "json" && f != "text" {
		ve.Add("logger.format %q is invalid (valid: json, text)", f)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	if e := cfg.Tracer.Exporter; e != "stdout" && e != "noop" {
		ve.Add("tracer.exporter %q is invalid (valid: stdout, noop)", e)
	}
}

func validateCities(cfg *Config, ve *ValidationError) {
	seen := make(map[string]bool, len(cfg.Cities))
	for i, c := range cfg.Cities {
		if c.Host == "" {
			ve.Add("cities[%d].host is required", i)
		} else if seen[strings.ToLower(c.Host)] {
			ve.Add("cities[%d].host %q is duplicated", i, c.Host)
		}
		seen[strings.ToLower(c.Host)] = true
		if c.City == "" {
			ve.Add("cities[%d].city is required", i)
		}
		if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
			ve.Add("cities[%d] coordinates (%v, %v) are out of range", i, c.Lat, c.Lon)
		}
	}
}

func validateBaseURL(field, raw string, ve *ValidationError) {
	if raw == "" {
		ve.Add("%s must not be empty", field)
		return
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		ve.Add("%s %q is not an http(s) URL", field, raw)
	}
}

// ParseSize parses a human-readable size such as "100MB" or "512KB".
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1 << 30
		s = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1 << 20
		s = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1 << 10
		s = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		s = strings.TrimSuffix(s, "B")
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("parse size %q: invalid number", s)
	}
	return n * multiplier, nil
}
