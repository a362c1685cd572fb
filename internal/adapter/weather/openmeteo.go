// Package weather fetches forecasts from Open-Meteo.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"localhub/internal/domain"
	"localhub/internal/infra/tracer"
	"localhub/internal/infra/ttlcache"
)

const (
	sourceName  = "open-meteo"
	maxBodySize = 1 << 20 // 1MB
)

var codeLabels = map[int]string{
	0: "Clear", 1: "Mainly clear", 2: "Partly cloudy", 3: "Overcast",
	45: "Fog", 48: "Rime fog",
	51: "Light drizzle", 53: "Drizzle", 55: "Dense drizzle",
	61: "Light rain", 63: "Rain", 65: "Heavy rain",
	71: "Light snow", 73: "Snow", 75: "Heavy snow",
	80: "Showers", 81: "Showers", 82: "Heavy showers",
	95: "Thunderstorm", 96: "T-storm/hail", 99: "T-storm/hail",
}

// CodeLabel returns the short description of a WMO weather code.
func CodeLabel(code int) string {
	if l, ok := codeLabels[code]; ok {
		return l
	}
	return "Weather"
}

type forecastResponse struct {
	Current struct {
		Temperature *float64 `json:"temperature_2m"`
		WeatherCode *int     `json:"weather_code"`
		WindSpeed   *float64 `json:"wind_speed_10m"`
	} `json:"current"`
	Daily struct {
		TempMax   []*float64 `json:"temperature_2m_max"`
		TempMin   []*float64 `json:"temperature_2m_min"`
		PrecipMax []*float64 `json:"precipitation_probability_max"`
	} `json:"daily"`
}

// OpenMeteo is a cached Open-Meteo forecast client.
type OpenMeteo struct {
	client  *http.Client
	baseURL string
	cache   *ttlcache.Cache[*domain.Forecast]
	logger  *slog.Logger
}

// NewOpenMeteo creates a client. Forecasts are cached per point and units
// for ttl. A nil client gets a default one.
func NewOpenMeteo(baseURL string, ttl time.Duration, client *http.Client, logger *slog.Logger) *OpenMeteo {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &OpenMeteo{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		cache:   ttlcache.New[*domain.Forecast](ttl),
		logger:  logger,
	}
}

// FetchForecast implements domain.WeatherFetcher.
func (o *OpenMeteo) FetchForecast(ctx context.Context, lat, lng float64, units domain.Units) (*domain.Forecast, error) {
	key := fmt.Sprintf("%.4f,%.4f,%s", lat, lng, units)
	return o.cache.GetOrLoad(ctx, key, func(ctx context.Context) (*domain.Forecast, error) {
		return o.fetch(ctx, lat, lng, units)
	})
}

func (o *OpenMeteo) fetch(ctx context.Context, lat, lng float64, units domain.Units) (f *domain.Forecast, err error) {
	ctx, span := tracer.StartUpstreamSpan(ctx, sourceName, "forecast")
	defer func() { tracer.End(span, err) }()

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lng, 'f', -1, 64))
	params.Set("timezone", "auto")
	params.Set("current", "temperature_2m,weather_code,wind_speed_10m")
	params.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_probability_max")
	unitT, unitW := "°F", "mph"
	if units == domain.UnitsMetric {
		params.Set("temperature_unit", "celsius")
		params.Set("wind_speed_unit", "kmh")
		unitT, unitW = "°C", "km/h"
	} else {
		params.Set("temperature_unit", "fahrenheit")
		params.Set("wind_speed_unit", "mph")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/forecast?"+params.Encode(), nil)
	if err != nil {
		return nil, domain.UpstreamError("OpenMeteo.FetchForecast", fmt.Errorf("create request: %w", err))
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, domain.UpstreamError("OpenMeteo.FetchForecast", fmt.Errorf("request: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.UpstreamError("OpenMeteo.FetchForecast", fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	var body forecastResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&body); err != nil {
		return nil, domain.UpstreamError("OpenMeteo.FetchForecast", fmt.Errorf("parse response: %w", err))
	}

	code := -1
	if body.Current.WeatherCode != nil {
		code = *body.Current.WeatherCode
	}
	f = &domain.Forecast{
		Current: domain.CurrentConditions{
			Temp:  deref(body.Current.Temperature),
			Wind:  deref(body.Current.WindSpeed),
			Label: CodeLabel(code),
			UnitT: unitT,
			UnitW: unitW,
		},
		Today: domain.DailyOutlook{
			High:   first(body.Daily.TempMax),
			Low:    first(body.Daily.TempMin),
			Precip: first(body.Daily.PrecipMax),
			UnitT:  unitT,
		},
		Source: sourceName,
	}
	f.Chip = Chip(f)

	o.logger.Debug("forecast fetched", "lat", lat, "lng", lng, "units", units, "label", f.Current.Label)
	return f, nil
}

// Chip renders the one-line summary shown in the page header.
func Chip(f *domain.Forecast) string {
	precip := f.Today.Precip
	if math.IsNaN(precip) || math.IsInf(precip, 0) {
		precip = 0
	}
	return fmt.Sprintf("%s%s • %s • Wind %s %s • H:%s° L:%s° • %s%%",
		roundStr(f.Current.Temp), f.Current.UnitT,
		f.Current.Label,
		roundStr(f.Current.Wind), f.Current.UnitW,
		roundStr(f.Today.High), roundStr(f.Today.Low),
		strconv.FormatFloat(precip, 'f', -1, 64),
	)
}

func roundStr(v float64) string {
	r := math.Round(v)
	if r == 0 {
		r = 0 // no "-0"
	}
	return strconv.FormatFloat(r, 'f', 0, 64)
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func first(vs []*float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	return deref(vs[0])
}

var _ domain.WeatherFetcher = (*OpenMeteo)(nil)
