package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/agro-monitor/internal/domain"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Store is the read side of the relational store.
type Store interface {
	Name() string
	LatestWeather(ctx context.Context, polygonID string) (domain.WeatherReading, error)
	WeatherHistory(ctx context.Context, polygonID string, since time.Time, limit int) ([]domain.WeatherReading, error)
	LatestSoil(ctx context.Context, polygonID string) (domain.SoilReading, error)
	SoilHistory(ctx context.Context, polygonID string, since time.Time, limit int) ([]domain.SoilReading, error)
	LatestVegetation(ctx context.Context, polygonID string) (domain.VegetationSample, error)
	VegetationHistory(ctx context.Context, polygonID string, since time.Time, limit int) (domain.VegetationSeries, error)
	UpcomingForecast(ctx context.Context, polygonID string, from time.Time, days int) ([]domain.DailyForecast, error)
	Stats(ctx context.Context) (domain.StoreStats, error)
}

// Assessor produces a live assessment without persisting it.
type Assessor interface {
	Assess(ctx context.Context) (domain.Assessment, error)
}

// Options configures the server. Store and Assessor are optional; their
// routes are only mounted when set.
type Options struct {
	Addr      string
	PolygonID string
	// RateLimit is the number of /api requests allowed per client IP per
	// minute. Zero disables limiting.
	RateLimit int
	Store     Store
	Assessor  Assessor
	Ready     ReadinessChecker
	Clock     clockwork.Clock
}

// Server exposes the read API alongside health, readiness and metrics.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	opts       Options
}

// NewServer builds the router and the underlying http.Server.
func NewServer(opts Options, logger *slog.Logger) *Server {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	s := &Server{logger: logger, opts: opts}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", handleReady(opts.Ready))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(httprate.Limit(opts.RateLimit, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByRealIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
					writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				}),
			))
		}
		if opts.Store != nil {
			r.Get("/weather", s.handleWeather)
			r.Get("/weather/history", s.handleWeatherHistory)
			r.Get("/soil", s.handleSoil)
			r.Get("/soil/history", s.handleSoilHistory)
			r.Get("/ndvi", s.handleVegetation)
			r.Get("/ndvi/history", s.handleVegetationHistory)
			r.Get("/forecast", s.handleForecast)
			r.Get("/stats", s.handleStats)
		}
		if opts.Assessor != nil {
			r.Get("/analysis", s.handleAnalysis)
			r.Get("/report", s.handleReport)
		}
	})

	s.httpServer = &http.Server{
		Addr:         opts.Addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	endpoints := []string{"/healthz", "/readyz", "/metrics"}
	if s.opts.Store != nil {
		endpoints = append(endpoints,
			"/api/weather", "/api/weather/history",
			"/api/soil", "/api/soil/history",
			"/api/ndvi", "/api/ndvi/history",
			"/api/forecast", "/api/stats")
	}
	if s.opts.Assessor != nil {
		endpoints = append(endpoints, "/api/analysis", "/api/report")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":       "agro-monitor",
		"polygon_id": s.opts.PolygonID,
		"endpoints":  endpoints,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	reading, err := s.opts.Store.LatestWeather(r.Context(), s.opts.PolygonID)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleWeatherHistory(w http.ResponseWriter, r *http.Request) {
	q, err := parseHistoryQuery(r, 7)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := s.opts.Store.WeatherHistory(r.Context(), s.opts.PolygonID, q.since(s.opts.Clock), q.limit)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[domain.WeatherReading]{Count: len(data), Data: orEmpty(data)})
}

func (s *Server) handleSoil(w http.ResponseWriter, r *http.Request) {
	reading, err := s.opts.Store.LatestSoil(r.Context(), s.opts.PolygonID)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleSoilHistory(w http.ResponseWriter, r *http.Request) {
	q, err := parseHistoryQuery(r, 7)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := s.opts.Store.SoilHistory(r.Context(), s.opts.PolygonID, q.since(s.opts.Clock), q.limit)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[domain.SoilReading]{Count: len(data), Data: orEmpty(data)})
}

func (s *Server) handleVegetation(w http.ResponseWriter, r *http.Request) {
	sample, err := s.opts.Store.LatestVegetation(r.Context(), s.opts.PolygonID)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

func (s *Server) handleVegetationHistory(w http.ResponseWriter, r *http.Request) {
	q, err := parseHistoryQuery(r, 30)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := s.opts.Store.VegetationHistory(r.Context(), s.opts.PolygonID, q.since(s.opts.Clock), q.limit)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[domain.VegetationSample]{Count: len(data), Data: orEmpty([]domain.VegetationSample(data))})
}

type forecastResponse struct {
	Days                 int                    `json:"days"`
	TotalPrecipitationMM float64                `json:"total_precipitation_mm"`
	Forecast             []domain.DailyForecast `json:"forecast"`
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	days, err := parseIntParam(r, "days", domain.StoredForecastDays, 1, 16)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := s.opts.Store.UpcomingForecast(r.Context(), s.opts.PolygonID, s.opts.Clock.Now(), days)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	var total float64
	for _, d := range data {
		total += d.PrecipitationMM
	}
	writeJSON(w, http.StatusOK, forecastResponse{
		Days:                 len(data),
		TotalPrecipitationMM: math.Round(total*10) / 10,
		Forecast:             orEmpty(data),
	})
}

type statsResponse struct {
	Records    domain.StoreStats `json:"records"`
	LastUpdate *time.Time        `json:"last_update"`
	Database   string            `json:"database"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.opts.Store.Stats(r.Context())
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Records: stats, LastUpdate: stats.LastUpdate, Database: s.opts.Store.Name()})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	a, ok := s.assess(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Snapshot domain.Snapshot `json:"snapshot"`
		Analysis domain.Analysis `json:"analysis"`
	}{a.Snapshot, a.Analysis})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	a, ok := s.assess(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(a.Report)) //nolint:errcheck // client went away
}

func (s *Server) assess(w http.ResponseWriter, r *http.Request) (domain.Assessment, bool) {
	a, err := s.opts.Assessor.Assess(r.Context())
	if err != nil {
		s.logger.Error("live assessment failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return domain.Assessment{}, false
	}
	return a, true
}

func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no data available")
		return
	}
	s.logger.Error("store query failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

type listResponse[T any] struct {
	Count int `json:"count"`
	Data  []T `json:"data"`
}

func orEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
