package alert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/outbreak-warning-service/internal/domain"
	"github.com/couchcryptid/outbreak-warning-service/internal/observability"
)

// memStore backs the engine with in-memory slices so dedup behavior can be
// exercised across consecutive cycles.
type memStore struct {
	mu          sync.Mutex
	predictions []domain.PredictionRecord
	alerts      []domain.AlertRecord

	scanErr   error
	existsErr error
	insertErr error

	insertCalls int
}

func (m *memStore) PredictionsAbove(_ context.Context, minCases float64) ([]domain.PredictionRecord, error) {
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PredictionRecord
	for _, p := range m.predictions {
		if p.PredictedCases > minCases {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) AlertExists(_ context.Context, regionID int, fragment string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.RegionID == regionID && strings.Contains(a.Message, fragment) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) InsertAlerts(_ context.Context, alerts []domain.AlertRecord) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls++
	m.alerts = append(m.alerts, alerts...)
	return nil
}

type captureNotifier struct {
	published []domain.AlertRecord
	err       error
}

func (n *captureNotifier) PublishAlerts(_ context.Context, alerts []domain.AlertRecord) error {
	if n.err != nil {
		return n.err
	}
	n.published = append(n.published, alerts...)
	return nil
}

func testEngine(t *testing.T, store Store, notifier Notifier) *Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, notifier, logger, observability.NewMetricsForTesting(), clockwork.NewFakeClock(), Config{
		Interval:       time.Minute,
		ThresholdCases: 50,
	})
}

func prediction(regionID int, cases float64) domain.PredictionRecord {
	return domain.PredictionRecord{
		ID:             fmt.Sprintf("pred-%d", regionID),
		RegionID:       regionID,
		DiseaseID:      1,
		PredictionDate: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		PredictedCases: cases,
		RiskLevel:      domain.RiskHigh,
	}
}

func TestScanOnceCreatesCriticalAlert(t *testing.T) {
	store := &memStore{predictions: []domain.PredictionRecord{prediction(7, 250)}}
	eng := testEngine(t, store, nil)

	created, err := eng.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	require.Len(t, store.alerts, 1)
	got := store.alerts[0]
	assert.Equal(t, 7, got.RegionID)
	assert.Equal(t, domain.SeverityCritical, got.Severity)
	assert.Equal(t, domain.AlertStatusNew, got.Status)
	assert.Equal(t, "High risk detected: Predicted 250.0 cases for date 2024-07-01", got.Message)
}

func TestScanOnceWarningSeverity(t *testing.T) {
	store := &memStore{predictions: []domain.PredictionRecord{prediction(3, 120)}}
	eng := testEngine(t, store, nil)

	created, err := eng.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, domain.SeverityWarning, store.alerts[0].Severity)
}

func TestScanOnceDeduplicatesAcrossCycles(t *testing.T) {
	store := &memStore{predictions: []domain.PredictionRecord{
		prediction(1, 250),
		prediction(2, 80),
	}}
	eng := testEngine(t, store, nil)

	created, err := eng.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	// Unchanged prediction set: the second cycle must create nothing and
	// must not touch the alerts table at all.
	created, err = eng.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Len(t, store.alerts, 2)
	assert.Equal(t, 1, store.insertCalls)
}

func TestScanOnceInBatchDedup(t *testing.T) {
	// Two predictions, same region and same one-decimal case count, in a
	// single scan. Only one alert may be created.
	a := prediction(5, 99.96)
	b := prediction(5, 100.04)
	a.ID, b.ID = "pred-a", "pred-b"
	store := &memStore{predictions: []domain.PredictionRecord{a, b}}
	eng := testEngine(t, store, nil)

	created, err := eng.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, created)
}

func TestScanOnceDistinctRegionsBothAlert(t *testing.T) {
	a := prediction(1, 100)
	b := prediction(2, 100)
	store := &memStore{predictions: []domain.PredictionRecord{a, b}}
	eng := testEngine(t, store, nil)

	created, err := eng.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, created)
}

func TestScanOnceNoCandidatesNoWrite(t *testing.T) {
	store := &memStore{predictions: []domain.PredictionRecord{prediction(1, 10)}}
	eng := testEngine(t, store, nil)

	created, err := eng.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Zero(t, store.insertCalls)
}

func TestScanOnceErrors(t *testing.T) {
	boom := errors.New("db down")
	tests := []struct {
		name  string
		store *memStore
	}{
		{"scan fails", &memStore{scanErr: boom}},
		{"dedup probe fails", &memStore{
			predictions: []domain.PredictionRecord{prediction(1, 100)},
			existsErr:   boom,
		}},
		{"insert fails", &memStore{
			predictions: []domain.PredictionRecord{prediction(1, 100)},
			insertErr:   boom,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := testEngine(t, tt.store, nil)
			created, err := eng.ScanOnce(context.Background())
			require.ErrorIs(t, err, boom)
			assert.Zero(t, created)
		})
	}
}

func TestScanOncePublishesToNotifier(t *testing.T) {
	store := &memStore{predictions: []domain.PredictionRecord{prediction(9, 300)}}
	notifier := &captureNotifier{}
	eng := testEngine(t, store, notifier)

	created, err := eng.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	require.Len(t, notifier.published, 1)
	assert.Equal(t, 9, notifier.published[0].RegionID)
}

func TestScanOnceNotifierFailureDoesNotFailCycle(t *testing.T) {
	store := &memStore{predictions: []domain.PredictionRecord{prediction(9, 300)}}
	notifier := &captureNotifier{err: errors.New("broker unreachable")}
	eng := testEngine(t, store, notifier)

	created, err := eng.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Len(t, store.alerts, 1)
}

func TestRunStopsOnCancel(t *testing.T) {
	store := &memStore{}
	eng := testEngine(t, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- eng.Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop after cancel")
	}
}

func TestRunSurvivesFailingCycles(t *testing.T) {
	store := &memStore{scanErr: errors.New("db down")}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := clockwork.NewFakeClock()
	eng := New(store, nil, logger, observability.NewMetricsForTesting(), clock, Config{
		Interval:       time.Minute,
		ThresholdCases: 50,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- eng.Run(ctx)
	}()

	// Let two cycles fail, then stop. The loop must still be alive to
	// receive the cancel.
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Minute)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Minute)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop after cancel")
	}
}
