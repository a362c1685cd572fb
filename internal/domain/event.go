package domain

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Event is a single calendar entry from the local store or Ticketmaster.
// Start and End are ISO-8601 strings as received; use StartTime to parse.
type Event struct {
	ID      string   `json:"id,omitempty"`
	Title   string   `json:"title,omitempty"`
	Start   string   `json:"start,omitempty"`
	End     string   `json:"end,omitempty"`
	URL     string   `json:"url,omitempty"`
	Venue   string   `json:"venue,omitempty"`
	Address string   `json:"address,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
	Source  string   `json:"source,omitempty"`

	// Extra holds members of a stored record that have no field above, so
	// they survive a read/write of the event file and reach API clients.
	Extra map[string]json.RawMessage `json:"-"`
}

// eventKeys are the member names decoded into Event fields.
var eventKeys = map[string]bool{
	"id": true, "title": true, "start": true, "end": true, "url": true,
	"venue": true, "address": true, "lat": true, "lng": true, "source": true,
}

// eventFields has Event's layout without its JSON methods.
type eventFields Event

// UnmarshalJSON decodes the known fields and keeps every other member in Extra.
func (e *Event) UnmarshalJSON(data []byte) error {
	var f eventFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k := range raw {
		if eventKeys[strings.ToLower(k)] {
			delete(raw, k)
		}
	}
	f.Extra = nil
	if len(raw) > 0 {
		f.Extra = raw
	}
	*e = Event(f)
	return nil
}

// MarshalJSON writes the known fields plus Extra. Known fields win over an
// Extra member of the same name.
func (e Event) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(eventFields(e))
	if err != nil || len(e.Extra) == 0 {
		return data, err
	}
	out := make(map[string]json.RawMessage, len(e.Extra)+len(eventKeys))
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	for k, v := range e.Extra {
		if !eventKeys[strings.ToLower(k)] {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

// StartTime parses Start. The second result is false when Start is empty or
// not a recognizable timestamp.
func (e Event) StartTime() (time.Time, bool) {
	return ParseInstant(e.Start)
}

// DedupKey is the cross-source identity of an event: normalized title plus
// the UTC calendar day of its start.
func (e Event) DedupKey() string {
	day := ""
	if t, ok := e.StartTime(); ok {
		day = t.UTC().Format(DayLayout)
	}
	return strings.ToLower(strings.TrimSpace(e.Title)) + "|" + day
}

// DayLayout is the UTC calendar-day key format.
const DayLayout = "2006-01-02"

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	DayLayout,
}

// ParseInstant accepts the timestamp shapes found in event feeds. Values
// without a zone are read as UTC.
func ParseInstant(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DaySummary counts events on one UTC calendar day.
type DaySummary struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// EventStore reads the pre-collected event file.
type EventStore interface {
	Load(ctx context.Context) ([]Event, error)
}

// EventWriter persists collected events.
type EventWriter interface {
	Merge(ctx context.Context, events []Event) (int, error)
}

// EventQuery describes an upstream event lookup around a city.
type EventQuery struct {
	City         City
	Lat          float64
	Lng          float64
	RadiusMeters int
	Start        time.Time
	End          time.Time
}

// EventSource fetches events from a third party.
type EventSource interface {
	Name() string
	FetchEvents(ctx context.Context, q EventQuery) ([]Event, error)
}

// DedupeEvents drops every event whose DedupKey was already seen.
// The first occurrence wins and input order is kept, so applying it
// twice gives the same result as applying it once.
func DedupeEvents(events []Event) []Event {
	seen := make(map[string]struct{}, len(events))
	out := make([]Event, 0, len(events))
	for _, e := range events {
		k := e.DedupKey()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	return out
}
