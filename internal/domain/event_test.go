package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseInstant(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2025-03-01T00:00:00Z", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"2025-03-01T18:30:00-07:00", time.Date(2025, 3, 2, 1, 30, 0, 0, time.UTC), true},
		{"2025-03-01T19:00:00", time.Date(2025, 3, 1, 19, 0, 0, 0, time.UTC), true},
		{"2025-03-01", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"  2025-03-01T00:00:00.123Z ", time.Date(2025, 3, 1, 0, 0, 0, 123e6, time.UTC), true},
		{"", time.Time{}, false},
		{"next tuesday", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseInstant(tt.in)
		if ok != tt.ok {
			t.Errorf("ParseInstant(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && !got.Equal(tt.want) {
			t.Errorf("ParseInstant(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEventDedupKey(t *testing.T) {
	a := Event{Title: "  Jazz Night ", Start: "2025-03-01T19:00:00Z"}
	b := Event{Title: "jazz night", Start: "2025-03-01T23:00:00Z"}
	c := Event{Title: "jazz night", Start: "2025-03-02T01:00:00Z"}

	if a.DedupKey() != b.DedupKey() {
		t.Errorf("same title same day should collide: %q vs %q", a.DedupKey(), b.DedupKey())
	}
	if a.DedupKey() == c.DedupKey() {
		t.Errorf("different UTC days should not collide: %q", a.DedupKey())
	}
	if got := (Event{Title: "X"}).DedupKey(); got != "x|" {
		t.Errorf("DedupKey without start = %q, want %q", got, "x|")
	}
}

func TestParseBusinessSource(t *testing.T) {
	cases := map[string]BusinessSource{
		"yelp":     SourceYelp,
		"geoapify": SourceGeoapify,
		"google":   SourceGoogle,
		"":         SourceGoogle,
		"bing":     SourceGoogle,
	}
	for in, want := range cases {
		if got := ParseBusinessSource(in); got != want {
			t.Errorf("ParseBusinessSource(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCityLabel(t *testing.T) {
	c := City{City: "Fresno", State: "CA"}
	if c.Label() != "Fresno, CA" {
		t.Errorf("Label() = %q", c.Label())
	}
	if (City{City: "Nowhere"}).Label() != "Nowhere" {
		t.Error("Label() without state should be the bare city name")
	}
}

func TestDedupeEventsFirstWinsAndIdempotent(t *testing.T) {
	in := []Event{
		{ID: "file-1", Title: "Farmers Market", Start: "2025-03-08T16:00:00Z", Source: "file"},
		{ID: "tm-1", Title: "  farmers market ", Start: "2025-03-08T18:00:00Z", Source: "ticketmaster"},
		{ID: "tm-2", Title: "Farmers Market", Start: "2025-03-15T16:00:00Z", Source: "ticketmaster"},
		{ID: "x", Title: "No Date"},
		{ID: "y", Title: "no date"},
	}

	once := DedupeEvents(in)
	if len(once) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(once), once)
	}
	if once[0].ID != "file-1" {
		t.Errorf("survivor = %q, want first occurrence file-1", once[0].ID)
	}

	twice := DedupeEvents(once)
	if len(twice) != len(once) {
		t.Fatalf("second pass len = %d, want %d", len(twice), len(once))
	}
	for i := range once {
		if twice[i].ID != once[i].ID {
			t.Errorf("survivor %d = %q, want %q", i, twice[i].ID, once[i].ID)
		}
	}
}

func TestEventKeepsUnknownMembers(t *testing.T) {
	in := `{"title":"Expo","start":"2025-03-01T10:00:00Z","image":"https://x/y.jpg","category":"fair","tags":["a","b"]}`

	var e Event
	if err := json.Unmarshal([]byte(in), &e); err != nil {
		t.Fatal(err)
	}
	if e.Title != "Expo" || e.Start != "2025-03-01T10:00:00Z" {
		t.Errorf("known fields not decoded: %+v", e)
	}
	if len(e.Extra) != 3 || string(e.Extra["category"]) != `"fair"` {
		t.Errorf("Extra = %v, want image, category and tags", e.Extra)
	}

	out, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	var got, want map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(in), &want); err != nil {
		t.Fatal(err)
	}
	gotJSON, _ := json.Marshal(got)
	wantJSON, _ := json.Marshal(want)
	if string(gotJSON) != string(wantJSON) {
		t.Errorf("round trip:\n got %s\nwant %s", gotJSON, wantJSON)
	}
}

func TestEventKnownFieldsWinOverExtra(t *testing.T) {
	e := Event{Title: "Real", Extra: map[string]json.RawMessage{"title": json.RawMessage(`"Shadow"`), "x": json.RawMessage(`1`)}}
	out, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatal(err)
	}
	if got["title"] != "Real" || got["x"] != float64(1) {
		t.Errorf("got %v", got)
	}
}

func TestEventWithoutExtrasHasNilExtra(t *testing.T) {
	var e Event
	if err := json.Unmarshal([]byte(`{"title":"A","Start":"2025-03-01"}`), &e); err != nil {
		t.Fatal(err)
	}
	if e.Extra != nil {
		t.Errorf("Extra = %v, want nil", e.Extra)
	}
	if e.Start != "2025-03-01" {
		t.Errorf("Start = %q", e.Start)
	}
}
