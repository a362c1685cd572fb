package usecase

import (
	"context"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"localhub/internal/domain"
	"localhub/internal/infra/tracer"
)

// isoMillis matches the JavaScript-style instants the pages send and expect.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

const metersPerMile = 1609.344

var monthParam = regexp.MustCompile(`^(\d{4})-(\d{2})$`)

// RangeParams are the raw range query parameters of the events endpoints.
type RangeParams struct {
	Start string // alias "from"
	End   string // alias "to"
	Year  string
	Month string // 1-12 with Year, or YYYY-MM on its own
}

// DateRange is the window events are filtered by. Explicit ranges include
// their end; month ranges stop before the first instant of the next month.
type DateRange struct {
	From time.Time
	To   time.Time // reported end, inclusive
	end  time.Time // exclusive bound for month ranges, zero otherwise
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if t.Before(r.From) {
		return false
	}
	if !r.end.IsZero() {
		return t.Before(r.end)
	}
	return !t.After(r.To)
}

// MonthRange returns the UTC calendar month containing year/month.
func MonthRange(year int, month time.Month) DateRange {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	next := from.AddDate(0, 1, 0)
	return DateRange{From: from, To: next.Add(-time.Millisecond), end: next}
}

// DeriveRange picks the range from explicit start/end, then year+month,
// then a YYYY-MM month, then the current UTC month.
func DeriveRange(p RangeParams, now time.Time) DateRange {
	if p.Start != "" && p.End != "" {
		s, sok := domain.ParseInstant(p.Start)
		e, eok := domain.ParseInstant(p.End)
		if sok && eok {
			return DateRange{From: s.UTC(), To: e.UTC()}
		}
	}

	if p.Year != "" && p.Month != "" {
		y, yerr := strconv.Atoi(strings.TrimSpace(p.Year))
		m, merr := strconv.Atoi(strings.TrimSpace(p.Month))
		if yerr == nil && merr == nil && y > 1900 && m >= 1 && m <= 12 {
			return MonthRange(y, time.Month(m))
		}
	}

	if m := monthParam.FindStringSubmatch(strings.TrimSpace(p.Month)); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		if y > 1900 && mo >= 1 && mo <= 12 {
			return MonthRange(y, time.Month(mo))
		}
	}

	now = now.UTC()
	return MonthRange(now.Year(), now.Month())
}

// EventsResponse is the /api/events body.
type EventsResponse struct {
	Events []domain.Event `json:"events"`
	From   string         `json:"from"`
	To     string         `json:"to"`
	Count  int            `json:"count"`
}

// SummaryResponse is the /api/events/summary body.
type SummaryResponse struct {
	From    string              `json:"from"`
	To      string              `json:"to"`
	Total   int                 `json:"total"`
	Summary []domain.DaySummary `json:"summary"`
}

// EventAggregator merges the local event file with live Ticketmaster
// results for a city.
type EventAggregator struct {
	store         domain.EventStore
	source        domain.EventSource // nil when no Ticketmaster key
	defaultRadius int
	logger        *slog.Logger
}

// NewEventAggregator creates an aggregator. source may be nil.
func NewEventAggregator(store domain.EventStore, source domain.EventSource, defaultRadius int, logger *slog.Logger) *EventAggregator {
	if defaultRadius <= 0 {
		defaultRadius = 40000
	}
	return &EventAggregator{store: store, source: source, defaultRadius: defaultRadius, logger: logger}
}

// List returns the de-duplicated events of city inside rng, sorted by start.
func (a *EventAggregator) List(ctx context.Context, city domain.City, rng DateRange) *EventsResponse {
	events := a.Collect(ctx, city, rng)
	return &EventsResponse{
		Events: events,
		From:   rng.From.UTC().Format(isoMillis),
		To:     rng.To.UTC().Format(isoMillis),
		Count:  len(events),
	}
}

// Summary returns per-day counts for the events List would return.
func (a *EventAggregator) Summary(ctx context.Context, city domain.City, rng DateRange) *SummaryResponse {
	events := a.Collect(ctx, city, rng)
	return &SummaryResponse{
		From:    rng.From.UTC().Format(isoMillis),
		To:      rng.To.UTC().Format(isoMillis),
		Total:   len(events),
		Summary: Summarize(events),
	}
}

// Collect reads every source in order (file first), filters to rng and
// de-duplicates with the first occurrence winning. Source failures are
// logged and contribute nothing.
func (a *EventAggregator) Collect(ctx context.Context, city domain.City, rng DateRange) []domain.Event {
	ctx, span := tracer.StartSpan(ctx, "events.collect")
	defer span.End()

	var all []domain.Event
	local, err := a.store.Load(ctx)
	if err != nil {
		a.logger.Warn("event store failed", "error", err)
	}
	all = append(all, local...)

	if a.source != nil {
		remote, err := a.source.FetchEvents(ctx, a.Query(city, rng))
		if err != nil {
			a.logger.Warn("event source failed", "source", a.source.Name(), "city", city.Label(), "error", err)
			tracer.RecordError(span, err)
		}
		all = append(all, remote...)
	}

	events := Filter(all, rng)
	span.SetAttributes(tracer.IntAttr("events.local", len(local)), tracer.IntAttr("events.kept", len(events)))
	return events
}

// Query builds the upstream lookup for city over rng.
func (a *EventAggregator) Query(city domain.City, rng DateRange) domain.EventQuery {
	radius := a.defaultRadius
	if city.EventRadiusMiles > 0 {
		radius = int(math.Round(float64(city.EventRadiusMiles) * metersPerMile))
	}
	return domain.EventQuery{
		City:         city,
		Lat:          city.Lat,
		Lng:          city.Lon,
		RadiusMeters: radius,
		Start:        rng.From,
		End:          rng.To,
	}
}

// Filter keeps events whose start parses and falls in rng, de-duplicates
// them (first wins) and sorts by start.
func Filter(events []domain.Event, rng DateRange) []domain.Event {
	in := make([]domain.Event, 0, len(events))
	for _, e := range events {
		t, ok := e.StartTime()
		if ok && rng.Contains(t) {
			in = append(in, e)
		}
	}
	out := domain.DedupeEvents(in)
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := out[i].StartTime()
		b, _ := out[j].StartTime()
		return a.Before(b)
	})
	return out
}

// Summarize counts events per UTC calendar day, ascending by date.
// Events without a parsable start are skipped.
func Summarize(events []domain.Event) []domain.DaySummary {
	counts := make(map[string]int)
	for _, e := range events {
		if t, ok := e.StartTime(); ok {
			counts[t.UTC().Format(domain.DayLayout)]++
		}
	}
	out := make([]domain.DaySummary, 0, len(counts))
	for day, n := range counts {
		out = append(out, domain.DaySummary{Date: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
