// Package alert runs the periodic outbreak alert engine: scan persisted
// predictions above the alerting threshold, deduplicate against existing
// alerts, and persist new ones with a severity tier.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/outbreak-warning-service/internal/domain"
	"github.com/couchcryptid/outbreak-warning-service/internal/observability"
)

// Store is the persistence slice the engine needs.
type Store interface {
	PredictionsAbove(ctx context.Context, minCases float64) ([]domain.PredictionRecord, error)
	AlertExists(ctx context.Context, regionID int, messageFragment string) (bool, error)
	InsertAlerts(ctx context.Context, alerts []domain.AlertRecord) error
}

// Notifier fans newly created alerts out to an external channel. Optional;
// notification failures never fail a cycle.
type Notifier interface {
	PublishAlerts(ctx context.Context, alerts []domain.AlertRecord) error
}

// Config holds the engine's policy knobs, supplied at process start.
// ThresholdCases is independent of the model's outbreak threshold: it tunes
// alerting sensitivity, not risk banding.
type Config struct {
	Interval       time.Duration
	ThresholdCases float64
}

// Engine is the single long-lived alert loop. One scan cycle runs at a time;
// cycles never overlap. Running more than one Engine instance against the
// same database can race on the dedup probe, so deployments run exactly one.
type Engine struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock
	cfg      Config
}

// New creates an Engine. notifier may be nil.
func New(store Store, notifier Notifier, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock, cfg Config) *Engine {
	return &Engine{
		store:    store,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
		clock:    clock,
		cfg:      cfg,
	}
}

// Run executes scan cycles until the context is cancelled. A failing cycle is
// logged and the loop sleeps through to the next interval; no error stops the
// engine.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("alert engine started",
		"interval", e.cfg.Interval,
		"threshold_cases", e.cfg.ThresholdCases,
	)
	e.metrics.EngineRunning.Set(1)
	defer e.metrics.EngineRunning.Set(0)

	for {
		created, err := e.ScanOnce(ctx)
		e.metrics.AlertCycles.Inc()
		switch {
		case ctx.Err() != nil:
			e.logger.Info("alert engine stopping", "reason", ctx.Err())
			return nil
		case err != nil:
			e.metrics.AlertCycleErrors.Inc()
			e.logger.Error("alert cycle failed", "error", err)
		case created > 0:
			e.logger.Info("alert cycle complete", "new_alerts", created)
		}

		select {
		case <-ctx.Done():
			e.logger.Info("alert engine stopping", "reason", ctx.Err())
			return nil
		case <-e.clock.After(e.cfg.Interval):
		}
	}
}

// ScanOnce runs one scan-dedup-persist cycle and returns the number of new
// alerts created. All new alerts are inserted in a single transaction at the
// end of the cycle; a cycle with no new alerts performs no write.
func (e *Engine) ScanOnce(ctx context.Context) (int, error) {
	start := time.Now()

	candidates, err := e.store.PredictionsAbove(ctx, e.cfg.ThresholdCases)
	if err != nil {
		return 0, fmt.Errorf("scan predictions: %w", err)
	}

	var newAlerts []domain.AlertRecord
	seen := make(map[string]bool) // in-batch dedup on the same content key

	for _, pred := range candidates {
		key := fmt.Sprintf("%d|%s", pred.RegionID, domain.AlertDedupKey(pred.PredictedCases))
		if seen[key] {
			continue
		}

		exists, err := e.store.AlertExists(ctx, pred.RegionID, domain.AlertDedupKey(pred.PredictedCases))
		if err != nil {
			return 0, fmt.Errorf("dedup probe region %d: %w", pred.RegionID, err)
		}
		if exists {
			continue
		}

		alert := domain.NewOutbreakAlert(pred)
		newAlerts = append(newAlerts, alert)
		seen[key] = true

		e.logger.Info("alert generated",
			"region_id", pred.RegionID,
			"predicted_cases", pred.PredictedCases,
			"severity", alert.Severity,
			"prediction_date", pred.PredictionDate.UTC().Format("2006-01-02"),
		)
	}

	if len(newAlerts) == 0 {
		e.metrics.AlertCycleDuration.Observe(time.Since(start).Seconds())
		return 0, nil
	}

	if err := e.store.InsertAlerts(ctx, newAlerts); err != nil {
		return 0, fmt.Errorf("persist alerts: %w", err)
	}
	for _, a := range newAlerts {
		e.metrics.AlertsCreated.WithLabelValues(string(a.Severity)).Inc()
	}

	e.notify(ctx, newAlerts)
	e.metrics.AlertCycleDuration.Observe(time.Since(start).Seconds())
	return len(newAlerts), nil
}

// notify publishes newly created alerts. Failures are logged and counted;
// the alerts are already persisted, so the cycle still succeeds.
func (e *Engine) notify(ctx context.Context, alerts []domain.AlertRecord) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.PublishAlerts(ctx, alerts); err != nil {
		e.metrics.NotifyErrors.Inc()
		e.logger.Warn("alert notification failed", "error", err, "alerts", len(alerts))
	}
}
