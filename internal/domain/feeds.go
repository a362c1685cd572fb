package domain

import (
	"context"
	"time"
)

// NewsItem is one headline from a news feed.
type NewsItem struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"publishedAt"`
}

// NewsFetcher returns recent headlines for a search query.
type NewsFetcher interface {
	FetchNews(ctx context.Context, query string) ([]NewsItem, error)
}

// Units selects the measurement system for weather readings.
type Units string

const (
	UnitsImperial Units = "f"
	UnitsMetric   Units = "c"
)

// ParseUnits maps "c" to metric; anything else is imperial.
func ParseUnits(s string) Units {
	if s == "c" || s == "C" {
		return UnitsMetric
	}
	return UnitsImperial
}

// CurrentConditions is the "now" block of a forecast.
type CurrentConditions struct {
	Temp  float64 `json:"temp"`
	Wind  float64 `json:"wind"`
	Label string  `json:"label"`
	UnitT string  `json:"unitT"`
	UnitW string  `json:"unitW"`
}

// DailyOutlook is today's high/low/precipitation.
type DailyOutlook struct {
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Precip float64 `json:"precip"`
	UnitT  string  `json:"unitT"`
}

// Forecast is a normalized weather reading.
type Forecast struct {
	Current CurrentConditions `json:"current"`
	Today   DailyOutlook      `json:"today"`
	Chip    string            `json:"chip"`
	Source  string            `json:"source"`
}

// WeatherFetcher returns the forecast at a point.
type WeatherFetcher interface {
	FetchForecast(ctx context.Context, lat, lng float64, units Units) (*Forecast, error)
}
