package store

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/couchcryptid/outbreak-warning-service/internal/domain"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock implements it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// NewPostgres creates a PostgresStore with a connection pool and verifies
// connectivity with a ping.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS predictions (
	id              TEXT PRIMARY KEY,
	region_id       INTEGER NOT NULL,
	disease_id      INTEGER NOT NULL,
	prediction_date TIMESTAMPTZ NOT NULL,
	predicted_cases DOUBLE PRECISION NOT NULL,
	confidence_score DOUBLE PRECISION NOT NULL,
	risk_level      TEXT NOT NULL,
	features_used   JSONB,
	model_version   TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_predictions_cases ON predictions(predicted_cases);
CREATE INDEX IF NOT EXISTS idx_predictions_region ON predictions(region_id);

CREATE TABLE IF NOT EXISTS alerts (
	id          TEXT PRIMARY KEY,
	region_id   INTEGER NOT NULL,
	severity    TEXT NOT NULL,
	message     TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'New',
	assigned_to TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_alerts_region ON alerts(region_id);
CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);
`

// Migrate creates the predictions and alerts tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const insertPredictionSQL = `INSERT INTO predictions
	(id, region_id, disease_id, prediction_date, predicted_cases, confidence_score, risk_level, features_used, model_version, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// InsertPredictions persists assessment results in one transaction.
func (s *PostgresStore) InsertPredictions(ctx context.Context, records []domain.PredictionRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin insert predictions")
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for _, rec := range records {
		id := rec.ID
		if id == "" {
			id = uuid.New().String()
		}
		features, err := json.Marshal(rec.Features)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal features snapshot")
		}
		if _, err := tx.Exec(ctx, insertPredictionSQL,
			id, rec.RegionID, rec.DiseaseID, rec.PredictionDate.UTC(),
			rec.PredictedCases, rec.Confidence, string(rec.RiskLevel),
			features, nullable(rec.ModelVersion), rec.CreatedAt.UTC(),
		); err != nil {
			return eris.Wrap(err, "postgres: insert prediction")
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit insert predictions")
}

const predictionsAboveSQL = `SELECT id, region_id, disease_id, prediction_date, predicted_cases, confidence_score, risk_level, features_used, model_version, created_at
	FROM predictions WHERE predicted_cases > $1 ORDER BY predicted_cases DESC`

// PredictionsAbove returns predictions strictly above minCases.
func (s *PostgresStore) PredictionsAbove(ctx context.Context, minCases float64) ([]domain.PredictionRecord, error) {
	rows, err := s.pool.Query(ctx, predictionsAboveSQL, minCases)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query predictions above threshold")
	}
	defer rows.Close()

	var out []domain.PredictionRecord
	for rows.Next() {
		var (
			rec          domain.PredictionRecord
			riskLevel    string
			features     []byte
			modelVersion *string
		)
		if err := rows.Scan(&rec.ID, &rec.RegionID, &rec.DiseaseID, &rec.PredictionDate,
			&rec.PredictedCases, &rec.Confidence, &riskLevel, &features, &modelVersion, &rec.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan prediction")
		}
		rec.RiskLevel = domain.RiskLevel(riskLevel)
		if len(features) > 0 {
			if err := json.Unmarshal(features, &rec.Features); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal features snapshot")
			}
		}
		if modelVersion != nil {
			rec.ModelVersion = *modelVersion
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate predictions")
}

const alertExistsSQL = `SELECT EXISTS (SELECT 1 FROM alerts WHERE region_id = $1 AND message LIKE '%' || $2 || '%')`

// AlertExists reports whether the region already has an alert containing the
// message fragment.
func (s *PostgresStore) AlertExists(ctx context.Context, regionID int, messageFragment string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, alertExistsSQL, regionID, messageFragment).Scan(&exists)
	return exists, eris.Wrap(err, "postgres: alert exists probe")
}

const insertAlertSQL = `INSERT INTO alerts
	(id, region_id, severity, message, status, assigned_to, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// InsertAlerts persists new alerts in a single transaction.
func (s *PostgresStore) InsertAlerts(ctx context.Context, alerts []domain.AlertRecord) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin insert alerts")
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for _, a := range alerts {
		id := a.ID
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := tx.Exec(ctx, insertAlertSQL,
			id, a.RegionID, string(a.Severity), a.Message, string(a.Status),
			a.AssignedTo, a.CreatedAt.UTC(),
		); err != nil {
			return eris.Wrap(err, "postgres: insert alert")
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit insert alerts")
}

// ListAlerts returns alerts matching the filter, newest first.
func (s *PostgresStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]domain.AlertRecord, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT id, region_id, severity, message, status, assigned_to, created_at FROM alerts`)

	var conds []string
	if filter.RegionID != 0 {
		args = append(args, filter.RegionID)
		conds = append(conds, "region_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sb.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query alerts")
	}
	defer rows.Close()

	var out []domain.AlertRecord
	for rows.Next() {
		var (
			a        domain.AlertRecord
			severity string
			status   string
		)
		if err := rows.Scan(&a.ID, &a.RegionID, &severity, &a.Message, &status, &a.AssignedTo, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan alert")
		}
		a.Severity = domain.Severity(severity)
		a.Status = domain.AlertStatus(status)
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate alerts")
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

