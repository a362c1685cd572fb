package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"localhub/internal/domain"
	"localhub/internal/infra/config"
	"localhub/internal/infra/middleware"
	"localhub/internal/usecase"
)

// Deps are the services behind the API routes. Weather, News and
// Submissions may be nil; their routes then answer as if the upstream failed.
type Deps struct {
	Cities       domain.CityResolver
	Search       *usecase.SearchGateway
	Events       *usecase.EventAggregator
	Weather      domain.WeatherFetcher
	News         domain.NewsFetcher
	Submissions  *usecase.SubmissionService
	ImageProxy   *ImageProxy
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// Server is the public JSON API.
type Server struct {
	cfg       config.ServerConfig
	deps      Deps
	logger    *slog.Logger
	httpSrv   *http.Server
	boundAddr string
	now       func() time.Time
}

// NewServer creates an API server.
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = 1 << 20
	}
	return &Server{cfg: cfg, deps: deps, logger: deps.Logger, now: time.Now}
}

// Handler builds the routed, middleware-wrapped handler. ctx bounds the
// rate limiter's cleanup goroutine.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/city", s.handleCity)
	mux.HandleFunc("GET /api/businesses", s.handleBusinesses)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/events/summary", s.handleEventsSummary)
	mux.HandleFunc("GET /api/news", s.handleNews)
	mux.HandleFunc("GET /api/weather", s.handleWeather)
	mux.HandleFunc("POST /api/submit-business", s.handleSubmit)
	if s.deps.ImageProxy != nil {
		mux.Handle("GET /api/image-proxy", s.deps.ImageProxy)
	}

	mw := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.AccessLog(s.logger),
		middleware.Recover(s.logger),
		middleware.SecurityHeaders,
	}
	if rl := s.cfg.RateLimit; rl.Enabled {
		mw = append(mw, middleware.RateLimitWithConfig(ctx, middleware.RateLimitConfig{
			RequestsPerMin: rl.RequestsPerMin,
			BurstSize:      rl.Burst,
			TrustedProxies: rl.TrustedProxies,
			PathPrefix:     "/api/",
		}))
	}
	return middleware.Chain(mux, mw...)
}

// Run listens on the configured address and serves until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.boundAddr = ln.Addr().String()
	s.httpSrv = &http.Server{
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext: func(_ net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server started", "addr", s.boundAddr)
		errc <- s.httpSrv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http serve: %w", err)
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http serve: %w", err)
	}
	return nil
}

// Addr returns the bound listen address once serving.
func (s *Server) Addr() string { return s.boundAddr }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error domain.ErrorCode `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code domain.ErrorCode) {
	writeJSON(w, status, errorBody{Error: code})
}
