// Package http exposes the prediction API plus health, readiness, and
// metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/outbreak-warning-service/internal/domain"
	"github.com/couchcryptid/outbreak-warning-service/internal/model"
	"github.com/couchcryptid/outbreak-warning-service/internal/observability"
	"github.com/couchcryptid/outbreak-warning-service/internal/store"
)

// PredictionService is the model-facing slice the server needs.
type PredictionService interface {
	Assess(obs domain.Observation) (model.RiskAssessment, error)
	Ready() bool
	Reload() error
	Describe() model.Metadata
}

// PredictionRecorder persists assessments requested with persistence fields.
// Optional; a nil recorder disables persistence.
type PredictionRecorder interface {
	InsertPredictions(ctx context.Context, records []domain.PredictionRecord) error
}

// AlertLister serves the operator-facing alert listing. Optional; a nil
// lister makes /api/v1/alerts answer 503.
type AlertLister interface {
	ListAlerts(ctx context.Context, filter store.AlertFilter) ([]domain.AlertRecord, error)
}

// Server exposes the prediction API over HTTP.
type Server struct {
	httpServer *http.Server
	service    PredictionService
	recorder   PredictionRecorder
	alerts     AlertLister
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewServer creates an HTTP server with health, metrics, and /api/v1 routes.
// recorder and alerts may be nil when no database is configured.
func NewServer(addr string, service PredictionService, recorder PredictionRecorder, alerts AlertLister, logger *slog.Logger, metrics *observability.Metrics) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		service:  service,
		recorder: recorder,
		alerts:   alerts,
		logger:   logger,
		metrics:  metrics,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /api/v1/predict", s.handlePredict)
	mux.HandleFunc("GET /api/v1/model/stats", s.handleModelStats)
	mux.HandleFunc("GET /api/v1/alerts", s.handleListAlerts)
	mux.HandleFunc("POST /api/v1/model/reload", s.handleModelReload)

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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Readiness means a model is loaded. The database is deliberately excluded:
// prediction traffic can be served while persistence is degraded.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.service.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  "model not loaded",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// predictRequest is an observation plus optional persistence fields. When all
// three persistence fields are present and a recorder is configured, the
// resulting prediction is stored for the alert engine to scan.
type predictRequest struct {
	domain.Observation
	RegionID       *int    `json:"region_id,omitempty"`
	DiseaseID      *int    `json:"disease_id,omitempty"`
	PredictionDate *string `json:"prediction_date,omitempty"` // YYYY-MM-DD
}

type predictResponse struct {
	PredictedCases    float64          `json:"predicted_cases"`
	RiskLevel         domain.RiskLevel `json:"risk_level"`
	Confidence        float64          `json:"confidence"`
	OutbreakThreshold float64          `json:"outbreak_threshold"`
	FeaturesUsed      int              `json:"features_used"`
	Timestamp         string           `json:"timestamp"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req predictRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.metrics.Predictions.WithLabelValues("invalid_input").Inc()
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	var targetDate time.Time
	persist := req.RegionID != nil && req.DiseaseID != nil && req.PredictionDate != nil && s.recorder != nil
	if persist {
		var err error
		targetDate, err = time.Parse("2006-01-02", *req.PredictionDate)
		if err != nil {
			s.metrics.Predictions.WithLabelValues("invalid_input").Inc()
			writeError(w, http.StatusBadRequest, "prediction_date must be YYYY-MM-DD")
			return
		}
	}

	assessment, err := s.service.Assess(req.Observation)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidInput):
			s.metrics.Predictions.WithLabelValues("invalid_input").Inc()
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, model.ErrNotReady):
			s.metrics.Predictions.WithLabelValues("not_ready").Inc()
			writeError(w, http.StatusServiceUnavailable, "model not loaded")
		default:
			s.metrics.Predictions.WithLabelValues("error").Inc()
			s.logger.Error("prediction failed", "error", err)
			writeError(w, http.StatusInternalServerError, "prediction failed")
		}
		return
	}

	if persist {
		record := domain.PredictionRecord{
			ID:             uuid.New().String(),
			RegionID:       *req.RegionID,
			DiseaseID:      *req.DiseaseID,
			PredictionDate: targetDate,
			PredictedCases: assessment.PredictedCases,
			Confidence:     assessment.Confidence,
			RiskLevel:      assessment.RiskLevel,
			Features:       assessment.Features.Map(),
			ModelVersion:   assessment.ModelVersion,
			CreatedAt:      domain.Now(),
		}
		if err := s.recorder.InsertPredictions(r.Context(), []domain.PredictionRecord{record}); err != nil {
			// The assessment itself succeeded; surface the persistence
			// failure rather than hand back a result the caller believes
			// was stored.
			s.metrics.Predictions.WithLabelValues("error").Inc()
			s.logger.Error("prediction persistence failed", "error", err, "region_id", *req.RegionID)
			writeError(w, http.StatusInternalServerError, "failed to store prediction")
			return
		}
	}

	s.metrics.Predictions.WithLabelValues("ok").Inc()
	s.metrics.PredictionDuration.Observe(time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, predictResponse{
		PredictedCases:    assessment.PredictedCases,
		RiskLevel:         assessment.RiskLevel,
		Confidence:        assessment.Confidence,
		OutbreakThreshold: assessment.OutbreakThreshold,
		FeaturesUsed:      assessment.FeaturesUsed,
		Timestamp:         domain.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	if s.alerts == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence not configured")
		return
	}

	var filter store.AlertFilter
	q := r.URL.Query()
	if v := q.Get("region_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "region_id must be an integer")
			return
		}
		filter.RegionID = id
	}
	if v := q.Get("status"); v != "" {
		filter.Status = domain.AlertStatus(v)
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	alerts, err := s.alerts.ListAlerts(r.Context(), filter)
	if err != nil {
		s.logger.Error("alert listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []domain.AlertRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

func (s *Server) handleModelStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Describe())
}

func (s *Server) handleModelReload(w http.ResponseWriter, _ *http.Request) {
	if err := s.service.Reload(); err != nil {
		s.metrics.ModelReloads.WithLabelValues("error").Inc()
		s.metrics.ModelLoaded.Set(0)
		s.logger.Error("model reload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "reload failed: "+err.Error())
		return
	}
	s.metrics.ModelReloads.WithLabelValues("success").Inc()
	s.metrics.ModelLoaded.Set(1)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "reloaded",
		"model":  s.service.Describe(),
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response write
}
