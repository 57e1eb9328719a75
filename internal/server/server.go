// Package server exposes forecasts, health checks and metrics over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourusername/poll-blend/internal/logger"
	"github.com/yourusername/poll-blend/internal/metrics"
	"github.com/yourusername/poll-blend/internal/models"
	"github.com/yourusername/poll-blend/internal/service"
)

// DatabasePinger defines the interface for checking database connectivity.
type DatabasePinger interface {
	Ping(ctx context.Context) error
}

// Forecaster answers forecast queries.
type Forecaster interface {
	Forecast(ctx context.Context, runID uuid.UUID, in models.ForecastInput) (*service.ForecastResponse, error)
	ForecastActive(ctx context.Context, in models.ForecastInput) (*service.ForecastResponse, error)
}

// RunLister lists stored fit runs.
type RunLister interface {
	List(ctx context.Context, limit int) ([]*models.FitRun, error)
}

// HealthResponse represents the JSON response for health check endpoints.
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp,omitempty"`
	Version   string `json:"version,omitempty"`
}

// ReadyResponse represents the JSON response for readiness check endpoints.
type ReadyResponse struct {
	Status   string            `json:"status"`
	Service  string            `json:"service"`
	Checks   map[string]string `json:"checks,omitempty"`
	Duration string            `json:"duration,omitempty"`
}

// ForecastRequest is the body of POST /forecast. Without a run id the
// active run is used.
type ForecastRequest struct {
	RunID                  string  `json:"run_id" validate:"omitempty,uuid"`
	TimeToElection         float64 `json:"time_to_election" validate:"gte=0"`
	FundamentalsPrediction float64 `json:"fundamentals_prediction" validate:"gte=0,lte=1"`
	PollingAverage         float64 `json:"polling_average" validate:"gte=0,lte=1"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Config holds the configuration for the server.
type Config struct {
	ServiceName  string
	Version      string
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// RateLimit is the number of forecast requests per second; zero
	// disables limiting.
	RateLimit   float64
	RateBurst   int
	MetricsPath string
	Logger      *logrus.Logger
	DB          DatabasePinger
	Forecaster  Forecaster
	Runs        RunLister
}

// Server serves the forecast API.
type Server struct {
	cfg      Config
	server   *http.Server
	logger   *logrus.Entry
	limiter  *rate.Limiter
	validate *validator.Validate
	mu       sync.RWMutex
	ready    bool
}

// NewServer creates a new server.
func NewServer(cfg Config) *Server {
	if cfg.Address == "" {
		cfg.Address = ":8080"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Server{
		cfg:      cfg,
		logger:   cfg.Logger.WithField("component", "server"),
		limiter:  limiter,
		validate: validator.New(),
	}
}

// SetReady marks the server as ready to accept traffic.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// IsReady returns whether the server is ready.
func (s *Server) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /live", s.handleLive)
	mux.Handle("POST /forecast", s.rateLimit(http.HandlerFunc(s.handleForecast)))
	if s.cfg.Runs != nil {
		mux.HandleFunc("GET /runs", s.handleRuns)
	}
	if s.cfg.MetricsPath != "" {
		mux.Handle("GET "+s.cfg.MetricsPath, metrics.Handler())
	}
	return mux
}

// Start starts the server in the background. It shuts down when ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.Address,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.WithFields(logrus.Fields{
			"address": s.cfg.Address,
			"service": s.cfg.ServiceName,
		}).Info("Server starting")

		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("Server error")
		}
	}()

	go func() {
		<-ctx.Done()
		if err := s.Shutdown(); err != nil {
			s.logger.WithError(err).Warn("Server shutdown failed")
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("Server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			metrics.RecordForecast("rate_limited", 0)
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   s.cfg.ServiceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   s.cfg.Version,
	})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Service: s.cfg.ServiceName})
}

// handleReady reports not_ready until SetReady(true) and while the
// database does not answer.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	checks := make(map[string]string)
	allHealthy := true

	if !s.IsReady() {
		allHealthy = false
		checks["service"] = "not_ready"
	} else {
		checks["service"] = "ok"
	}

	if s.cfg.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := s.cfg.DB.Ping(ctx); err != nil {
			allHealthy = false
			checks["database"] = fmt.Sprintf("error: %v", err)
		} else {
			checks["database"] = "ok"
		}
	}

	response := ReadyResponse{
		Service:  s.cfg.ServiceName,
		Checks:   checks,
		Duration: time.Since(start).String(),
	}
	if allHealthy {
		response.Status = "ok"
		writeJSON(w, http.StatusOK, response)
		return
	}
	response.Status = "not_ready"
	writeJSON(w, http.StatusServiceUnavailable, response)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Forecaster == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "forecasting is not configured"})
		return
	}

	var req ForecastRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		return
	}

	in := models.ForecastInput{
		TimeToElection:         req.TimeToElection,
		FundamentalsPrediction: req.FundamentalsPrediction,
		PollingAverage:         req.PollingAverage,
	}

	var (
		resp *service.ForecastResponse
		err  error
	)
	if req.RunID == "" {
		resp, err = s.cfg.Forecaster.ForecastActive(r.Context(), in)
	} else {
		id, perr := uuid.Parse(req.RunID)
		if perr != nil {
			writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: perr.Error()})
			return
		}
		resp, err = s.cfg.Forecaster.Forecast(r.Context(), id, in)
	}
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.WithError(err).Error("Forecast failed")
		}
		writeJSON(w, status, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.cfg.Runs.List(r.Context(), 20)
	if err != nil {
		s.logger.WithError(err).Error("Listing fit runs failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to list fit runs"})
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrInvalidVarianceModel),
		errors.Is(err, models.ErrDegenerateVariance):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
