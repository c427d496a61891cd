// Package store persists prediction and alert records. The core touches only
// the fields declared on the domain records; the full operational schema
// (regions, diseases, users) is owned elsewhere.
package store

import (
	"context"

	"github.com/couchcryptid/outbreak-warning-service/internal/domain"
)

// AlertFilter narrows ListAlerts. Zero values mean "any".
type AlertFilter struct {
	RegionID int
	Status   domain.AlertStatus
	Limit    int
}

// Store is the persistence interface consumed by the prediction API and the
// alert engine.
type Store interface {
	// InsertPredictions persists assessment results in one transaction.
	// Record IDs are assigned by the store.
	InsertPredictions(ctx context.Context, records []domain.PredictionRecord) error

	// PredictionsAbove returns all predictions whose predicted case count is
	// strictly greater than minCases.
	PredictionsAbove(ctx context.Context, minCases float64) ([]domain.PredictionRecord, error)

	// AlertExists reports whether any alert for the region has the given
	// fragment in its message text. This is the alert engine's content-based
	// dedup probe.
	AlertExists(ctx context.Context, regionID int, messageFragment string) (bool, error)

	// InsertAlerts persists new alerts in a single transaction. An empty
	// batch performs no write.
	InsertAlerts(ctx context.Context, alerts []domain.AlertRecord) error

	// ListAlerts returns alerts matching the filter, newest first.
	ListAlerts(ctx context.Context, filter AlertFilter) ([]domain.AlertRecord, error)

	// Migrate creates the tables the service owns.
	Migrate(ctx context.Context) error

	Close() error
}
