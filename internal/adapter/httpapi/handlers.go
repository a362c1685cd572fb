package httpapi

import (
	"errors"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"localhub/internal/adapter/news"
	"localhub/internal/domain"
	"localhub/internal/usecase"
)

type cityResponse struct {
	Host string      `json:"host"`
	City domain.City `json:"city"`
}

type newsResponse struct {
	City  domain.CityRef    `json:"city"`
	Items []domain.NewsItem `json:"items"`
	Error domain.ErrorCode  `json:"error,omitempty"`
}

type weatherResponse struct {
	City domain.CityRef `json:"city"`
	*domain.Forecast
	Error domain.ErrorCode `json:"error,omitempty"`
}

func (s *Server) city(r *http.Request) domain.City {
	return s.deps.Cities.Resolve(r.Host)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cityResponse{Host: r.Host, City: s.city(r)})
}

func (s *Server) handleBusinesses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cursor := q.Get("cursor")
	if cursor == "" {
		cursor = q.Get("page")
	}
	resp := s.deps.Search.Search(r.Context(), s.city(r), usecase.SearchRequest{
		Host:     r.Host,
		Term:     q.Get("q"),
		Category: q.Get("category"),
		Lat:      q.Get("lat"),
		Lng:      q.Get("lng"),
		Radius:   q.Get("radius"),
		Cursor:   cursor,
	})
	writeJSON(w, http.StatusOK, resp)
}

func rangeParams(q url.Values) usecase.RangeParams {
	return usecase.RangeParams{
		Start: firstOf(q, "start", "from"),
		End:   firstOf(q, "end", "to"),
		Year:  q.Get("year"),
		Month: q.Get("month"),
	}
}

func firstOf(q url.Values, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			return v
		}
	}
	return ""
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rng := usecase.DeriveRange(rangeParams(r.URL.Query()), s.now())
	writeJSON(w, http.StatusOK, s.deps.Events.List(r.Context(), s.city(r), rng))
}

func (s *Server) handleEventsSummary(w http.ResponseWriter, r *http.Request) {
	rng := usecase.DeriveRange(rangeParams(r.URL.Query()), s.now())
	writeJSON(w, http.StatusOK, s.deps.Events.Summary(r.Context(), s.city(r), rng))
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	city := s.city(r)
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		query = news.DefaultQuery(city)
	}

	resp := newsResponse{City: city.Ref(), Items: []domain.NewsItem{}}
	if s.deps.News == nil {
		resp.Error = domain.CodeUpstream
		writeJSON(w, http.StatusOK, resp)
		return
	}
	items, err := s.deps.News.FetchNews(r.Context(), query)
	if err != nil {
		s.logger.Warn("news unavailable", "city", city.Label(), "error", err)
		resp.Error = domain.ErrorCodeOf(err)
	} else if items != nil {
		resp.Items = items
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	city := s.city(r)
	q := r.URL.Query()
	lat := parseFloat(q.Get("lat"), city.Lat)
	lng := parseFloat(q.Get("lng"), city.Lon)
	units := domain.ParseUnits(strings.ToLower(q.Get("units")))

	fail := weatherResponse{City: city.Ref(), Error: domain.CodeWeatherUnavail}
	if s.deps.Weather == nil {
		writeJSON(w, http.StatusOK, fail)
		return
	}
	f, err := s.deps.Weather.FetchForecast(r.Context(), lat, lng, units)
	if err != nil {
		s.logger.Warn("weather unavailable", "city", city.Label(), "error", err)
		writeJSON(w, http.StatusOK, fail)
		return
	}

	ref := city.Ref()
	ref.Lat, ref.Lon = &city.Lat, &city.Lon
	writeJSON(w, http.StatusOK, weatherResponse{City: ref, Forecast: f})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	rejected := usecase.SubmitResponse{OK: false}
	if s.deps.Submissions == nil {
		writeJSON(w, http.StatusServiceUnavailable, rejected)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.deps.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.logger.Warn("submission too large", "limit", tooLarge.Limit)
		}
		writeJSON(w, http.StatusBadRequest, rejected)
		return
	}

	resp, err := s.deps.Submissions.Submit(r.Context(), s.city(r), r.Host, body)
	if err != nil {
		s.logger.Info("submission rejected", "host", r.Host, "error", err)
		writeJSON(w, http.StatusBadRequest, rejected)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseFloat(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
