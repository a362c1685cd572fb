package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"localhub/internal/domain"
	"localhub/internal/infra/tracer"
)

const (
	tmSourceName   = "ticketmaster"
	tmPageSize     = 100
	tmMaxPages     = 5
	tmEnoughEvents = 50
	tmMaxBodySize  = 8 << 20 // 8MB
	metersPerMile  = 1609.344

	// tmTimeLayout is the only datetime shape the Discovery API accepts.
	tmTimeLayout = "2006-01-02T15:04:05Z"
)

// Attempt records the outcome of one query strategy.
type Attempt struct {
	Label  string `json:"label"`
	Status int    `json:"status,omitempty"`
	Pages  int    `json:"pages"`
	Count  int    `json:"count"`
	Error  string `json:"error,omitempty"`
}

type tmStrategy struct {
	label  string
	params url.Values
}

type tmResponse struct {
	Embedded struct {
		Events []tmEvent `json:"events"`
	} `json:"_embedded"`
	Page struct {
		TotalPages *int `json:"totalPages"`
	} `json:"page"`
}

type tmEvent struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Dates struct {
		Start struct {
			DateTime  string `json:"dateTime"`
			LocalDate string `json:"localDate"`
			LocalTime string `json:"localTime"`
		} `json:"start"`
		End struct {
			DateTime string `json:"dateTime"`
		} `json:"end"`
	} `json:"dates"`
	Embedded struct {
		Venues []tmVenue `json:"venues"`
	} `json:"_embedded"`
}

type tmVenue struct {
	Name    string `json:"name"`
	Address struct {
		Line1 string `json:"line1"`
	} `json:"address"`
	City struct {
		Name string `json:"name"`
	} `json:"city"`
	State struct {
		StateCode string `json:"stateCode"`
	} `json:"state"`
	Location struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"location"`
}

// Ticketmaster queries the Discovery API with a fixed sequence of fallback
// strategies, from most to least specific.
type Ticketmaster struct {
	client  *http.Client
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewTicketmaster creates a Discovery API client. A nil client gets a default one.
func NewTicketmaster(apiKey, baseURL string, client *http.Client, logger *slog.Logger) *Ticketmaster {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Ticketmaster{
		client:  client,
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

func (t *Ticketmaster) Name() string { return tmSourceName }

// Configured reports whether an API key is set.
func (t *Ticketmaster) Configured() bool { return t.apiKey != "" }

// FetchEvents implements domain.EventSource.
func (t *Ticketmaster) FetchEvents(ctx context.Context, q domain.EventQuery) ([]domain.Event, error) {
	events, _, err := t.Search(ctx, q)
	return events, err
}

// Search runs the strategies in order and returns the de-duplicated events
// together with per-strategy diagnostics. It stops once enough events have
// been collected. An error is returned only when nothing was collected and
// every strategy failed.
func (t *Ticketmaster) Search(ctx context.Context, q domain.EventQuery) (events []domain.Event, attempts []Attempt, err error) {
	if t.apiKey == "" {
		return []domain.Event{}, nil, nil
	}

	ctx, span := tracer.StartUpstreamSpan(ctx, tmSourceName, "events")
	defer func() { tracer.End(span, err) }()

	var collected []domain.Event
	failures := 0
	for _, s := range t.strategies(q) {
		items, a := t.fetchPaged(ctx, s)
		attempts = append(attempts, a)
		if a.Error != "" || a.Status < 200 || a.Status > 299 {
			failures++
		}
		collected = append(collected, items...)
		if len(collected) >= tmEnoughEvents {
			break
		}
	}

	for _, a := range attempts {
		t.logger.Debug("ticketmaster attempt",
			"city", q.City.Label(),
			"label", a.Label,
			"status", a.Status,
			"pages", a.Pages,
			"count", a.Count,
			"error", a.Error,
		)
	}

	if len(collected) == 0 && failures == len(attempts) && failures > 0 {
		last := attempts[len(attempts)-1]
		return []domain.Event{}, attempts, domain.UpstreamError("Ticketmaster.Search",
			fmt.Errorf("all %d strategies failed (last: %s status %d %s)", failures, last.Label, last.Status, last.Error))
	}

	events = domain.DedupeEvents(collected)
	span.SetAttributes(tracer.IntAttr("events", len(events)), tracer.IntAttr("attempts", len(attempts)))
	return events, attempts, nil
}

// RadiusMiles converts a radius in meters to whole miles, at least 1.
func RadiusMiles(meters int) int {
	return max(1, int(math.Round(float64(meters)/metersPerMile)))
}

func (t *Ticketmaster) strategies(q domain.EventQuery) []tmStrategy {
	latlong := strconv.FormatFloat(q.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(q.Lng, 'f', -1, 64)
	radius := strconv.Itoa(RadiusMiles(q.RadiusMeters))
	dated := !q.Start.IsZero() && !q.End.IsZero()

	withDates := func(v url.Values) url.Values {
		v.Set("startDateTime", q.Start.UTC().Format(tmTimeLayout))
		v.Set("endDateTime", q.End.UTC().Format(tmTimeLayout))
		return v
	}
	geo := func() url.Values { return url.Values{"latlong": {latlong}, "radius": {radius}} }
	place := func() url.Values { return url.Values{"city": {q.City.City}, "stateCode": {q.City.State}} }

	var out []tmStrategy
	if dated {
		out = append(out, tmStrategy{"A: latlong+radius+date", withDates(geo())})
	}
	out = append(out, tmStrategy{"B: latlong+radius (no date)", geo()})
	if q.City.City != "" && q.City.State != "" {
		if dated {
			out = append(out, tmStrategy{"C: city+state+date", withDates(place())})
		}
		out = append(out, tmStrategy{"D: city+state (no date)", place()})
	}
	return out
}

// fetchPaged walks up to tmMaxPages pages of one strategy. A non-2xx
// response or transport error ends the strategy, keeping what was read.
func (t *Ticketmaster) fetchPaged(ctx context.Context, s tmStrategy) ([]domain.Event, Attempt) {
	a := Attempt{Label: s.label}
	params := url.Values{}
	for k, v := range s.params {
		params[k] = v
	}
	params.Set("apikey", t.apiKey)
	params.Set("locale", "*")
	params.Set("size", strconv.Itoa(tmPageSize))
	params.Set("sort", "date,asc")
	params.Set("unit", "miles")

	var items []domain.Event
	totalPages := 1
	page := 0
	for ; page < tmMaxPages; page++ {
		params.Set("page", strconv.Itoa(page))
		body, status, err := t.get(ctx, t.baseURL+"/events.json?"+params.Encode())
		a.Status = status
		if err != nil {
			a.Error = err.Error()
			break
		}
		if status < 200 || status > 299 {
			break
		}
		for _, e := range body.Embedded.Events {
			items = append(items, toEvent(e))
		}
		if body.Page.TotalPages != nil {
			totalPages = *body.Page.TotalPages
		}
		if page+1 >= totalPages {
			break
		}
	}
	a.Pages = min(page+1, tmMaxPages)
	a.Count = len(items)
	return items, a
}

func (t *Ticketmaster) get(ctx context.Context, rawURL string) (*tmResponse, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, resp.StatusCode, nil
	}

	var body tmResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, tmMaxBodySize)).Decode(&body); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("parse response: %w", err)
	}
	return &body, resp.StatusCode, nil
}

func toEvent(e tmEvent) domain.Event {
	var v tmVenue
	if len(e.Embedded.Venues) > 0 {
		v = e.Embedded.Venues[0]
	}

	start := e.Dates.Start.DateTime
	if start == "" && e.Dates.Start.LocalDate != "" {
		lt := e.Dates.Start.LocalTime
		if lt == "" {
			lt = "00:00:00"
		}
		start = e.Dates.Start.LocalDate + "T" + lt
	}

	ev := domain.Event{
		ID:      e.ID,
		Title:   e.Name,
		Start:   normalizeInstant(start),
		End:     normalizeInstant(e.Dates.End.DateTime),
		URL:     e.URL,
		Venue:   strings.TrimSpace(v.Name),
		Address: venueAddress(v),
		Lat:     parseCoord(v.Location.Latitude),
		Lng:     parseCoord(v.Location.Longitude),
		Source:  tmSourceName,
	}
	if ev.Title == "" {
		ev.Title = "Event"
	}
	if ev.ID == "" {
		ev.ID = e.URL
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	return ev
}

func venueAddress(v tmVenue) string {
	if v.Address.Line1 == "" {
		return strings.TrimSpace(v.Name)
	}
	addr := v.Address.Line1
	if v.City.Name != "" {
		addr += " " + v.City.Name
	}
	if v.State.StateCode != "" {
		addr += ", " + v.State.StateCode
	}
	return addr
}

// normalizeInstant rewrites a parsable timestamp as RFC 3339 UTC and drops
// anything else.
func normalizeInstant(s string) string {
	t, ok := domain.ParseInstant(s)
	if !ok {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseCoord(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Ping issues a minimal query to check the key and connectivity.
func (t *Ticketmaster) Ping(ctx context.Context, city string) error {
	if t.apiKey == "" {
		return domain.NewDomainError("Ticketmaster.Ping", domain.ErrMissingCredential, "TICKETMASTER_KEY not set")
	}
	params := url.Values{"apikey": {t.apiKey}, "city": {city}, "size": {"1"}}
	_, status, err := t.get(ctx, t.baseURL+"/events.json?"+params.Encode())
	if err != nil {
		return domain.UpstreamError("Ticketmaster.Ping", err)
	}
	if status < 200 || status > 299 {
		return domain.UpstreamError("Ticketmaster.Ping", errors.New("HTTP "+strconv.Itoa(status)))
	}
	return nil
}

var _ domain.EventSource = (*Ticketmaster)(nil)
