package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"localhub/internal/adapter/city"
	"localhub/internal/domain"
	"localhub/internal/infra/config"
	"localhub/internal/usecase"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

const connectivityTimeout = 15 * time.Second

// runDoctor executes all health checks and reports results.
func runDoctor() error {
	cfgPath := configPath(os.Args[2:])
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "Business API key", Fn: checkBusinessKey},
		{Name: "Business budget", Fn: checkBusinessBudget},
		{Name: "City table", Fn: checkCities},
		{Name: "Events file", Fn: checkEventsFile},
		{Name: "Ticketmaster key", Fn: checkTicketmasterKey},
		{Name: "Submissions", Fn: checkSubmissions},
		{Name: "Image proxy", Fn: checkImageProxy},
	}

	var a *app
	if cfg != nil {
		quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
		if built, err := buildApp(cfg, quiet); err == nil {
			a = built
			defer a.close()
		}
	}
	checks = append(checks,
		Check{Name: "Business connectivity", Fn: checkProviderConnectivity(a)},
		Check{Name: "Ticketmaster connectivity", Fn: checkTicketmasterConnectivity(a)},
	)

	results := runChecks(checks, cfg)
	return report(os.Stdout, results)
}

func runChecks(checks []Check, cfg *config.Config) []CheckResult {
	results := make([]CheckResult, 0, len(checks))
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name
		results = append(results, result)
	}
	return results
}

// report prints results and returns an error when any check failed.
func report(w io.Writer, results []CheckResult) error {
	fmt.Fprintln(w, "localhub doctor")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w)

	var pass, warn, fail int
	for _, r := range results {
		fmt.Fprintf(w, "  %s %s: %s\n", statusIcon(r.Status), r.Name, r.Message)
		if r.Fix != "" {
			fmt.Fprintf(w, "      Fix: %s\n", r.Fix)
		}
		switch r.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		fmt.Fprintln(w, "\nFix the FAIL issues above before serving traffic.")
		return fmt.Errorf("%d check(s) failed", fail)
	}
	if warn > 0 {
		fmt.Fprintln(w, "\nlocalhub will run, but some sections will render empty.")
	} else {
		fmt.Fprintln(w, "\nAll checks passed! localhub is ready to run.")
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

func notLoaded() CheckResult {
	return CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}
}

// checkConfigFile reports whether the config file exists and parses.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			var ve *config.ValidationError
			if errors.As(cfgErr, &ve) {
				return CheckResult{
					Status:  StatusFail,
					Message: fmt.Sprintf("invalid configuration: %v", cfgErr),
					Fix:     "Correct the fields listed above in " + cfgPath,
				}
			}
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config load error: %v", cfgErr),
				Fix:     "Check YAML syntax and file permissions (no group/world write)",
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s, using defaults and environment", cfgPath),
			}
		}
		return CheckResult{Status: StatusPass, Message: "config loaded from " + cfgPath}
	}
}

var keyEnv = map[domain.BusinessSource]string{
	domain.SourceGoogle:   "GOOGLE_MAPS_API_KEY",
	domain.SourceYelp:     "YELP_API_KEY",
	domain.SourceGeoapify: "GEOAPIFY_API_KEY",
}

func checkBusinessKey(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	src := domain.ParseBusinessSource(strings.ToLower(cfg.Business.Provider))
	if cfg.Business.ActiveKey() == "" {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("provider %s has no API key; business search answers missing_key", src),
			Fix:     "Set " + keyEnv[src],
		}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("provider %s key configured", src)}
}

func checkBusinessBudget(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	b := cfg.Business
	msg := fmt.Sprintf("free mode %t, max details %d, photos %t", b.FreeMode, b.ResolvedMaxDetails(), b.ResolvedEnablePhotos())
	if domain.ParseBusinessSource(strings.ToLower(b.Provider)) == domain.SourceGoogle && b.ResolvedMaxDetails() > 10 {
		return CheckResult{Status: StatusWarn, Message: msg, Fix: "Each detail lookup is billed; consider BUSINESS_MAX_DETAILS<=10"}
	}
	return CheckResult{Status: StatusPass, Message: msg}
}

func checkCities(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	dir, err := city.New(cfg.Cities)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error(), Fix: "Give every cities[] entry a host"}
	}
	all := dir.All()
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%d cities, fallback %s", len(all), all[0].Label()),
	}
}

func checkEventsFile(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	path := cfg.Events.File
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s not found; local events will be empty", path),
			Fix:     "Run 'localhub collect-events' or set events.collect_schedule",
		}
	}
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("read %s: %v", path, err)}
	}
	var evs []domain.Event
	if err := json.Unmarshal(data, &evs); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("%s is not a JSON array of events: %v", path, err),
			Fix:     "Fix or delete the file; it is served as empty until then",
		}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%s holds %d events", path, len(evs))}
}

func checkTicketmasterKey(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	if cfg.Events.Ticketmaster.APIKey == "" {
		return CheckResult{
			Status:  StatusWarn,
			Message: "no Ticketmaster key; only the local event file is served",
			Fix:     "Set TICKETMASTER_KEY",
		}
	}
	msg := "key configured"
	if s := cfg.Events.CollectSchedule; s != "" {
		msg += ", collector schedule " + s
	}
	return CheckResult{Status: StatusPass, Message: msg}
}

func checkSubmissions(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	sub := cfg.Submissions
	if sub.SlackWebhookURL == "" && sub.JournalFile == "" {
		return CheckResult{
			Status:  StatusWarn,
			Message: "no Slack webhook or journal; submissions are only logged",
			Fix:     "Set LOCALHUB_SLACK_WEBHOOK_URL or LOCALHUB_SUBMISSIONS_JOURNAL",
		}
	}
	var sinks []string
	if sub.SlackWebhookURL != "" {
		sinks = append(sinks, "Slack")
	}
	if sub.JournalFile != "" {
		sinks = append(sinks, "journal "+sub.JournalFile)
	}
	return CheckResult{Status: StatusPass, Message: "submissions go to " + strings.Join(sinks, " and ")}
}

func checkImageProxy(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	if cfg.ImageProxy.AllowPrivate {
		return CheckResult{
			Status:  StatusWarn,
			Message: "private and loopback targets are allowed",
			Fix:     "Set image_proxy.allow_private: false outside local development",
		}
	}
	return CheckResult{Status: StatusPass, Message: "SSRF guard enabled"}
}

func checkProviderConnectivity(a *app) func(*config.Config) CheckResult {
	return func(cfg *config.Config) CheckResult {
		if cfg == nil || a == nil {
			return notLoaded()
		}
		if cfg.Business.ActiveKey() == "" {
			return CheckResult{Status: StatusWarn, Message: "skipped, no API key"}
		}
		ctx, cancel := context.WithTimeout(context.Background(), connectivityTimeout)
		defer cancel()

		c := a.cities.All()[0]
		gw := usecase.NewSearchGateway(a.provider, true, 1000, a.logger)
		resp := gw.Search(ctx, c, usecase.SearchRequest{Term: "coffee"})
		if resp.Error != "" {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("%s search near %s failed: %s", resp.Provider, c.Label(), resp.Error),
				Fix:     "Check the key's API restrictions and billing",
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("%s returned %d listings in %dms", resp.Provider, len(resp.Items), resp.TookMs),
		}
	}
}

func checkTicketmasterConnectivity(a *app) func(*config.Config) CheckResult {
	return func(cfg *config.Config) CheckResult {
		if cfg == nil || a == nil {
			return notLoaded()
		}
		if !a.ticketmaster.Configured() {
			return CheckResult{Status: StatusWarn, Message: "skipped, no API key"}
		}
		ctx, cancel := context.WithTimeout(context.Background(), connectivityTimeout)
		defer cancel()

		c := a.cities.All()[0]
		if err := a.ticketmaster.Ping(ctx, c.City); err != nil {
			return CheckResult{Status: StatusFail, Message: err.Error(), Fix: "Verify TICKETMASTER_KEY"}
		}
		return CheckResult{Status: StatusPass, Message: "discovery API reachable"}
	}
}
