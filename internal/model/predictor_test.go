package model

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/outbreak-warning-service/internal/domain"
)

func writeArtifact(t *testing.T, dir, name, payload string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))
	return path
}

func TestPredictor_Unloaded(t *testing.T) {
	p := NewPredictor(filepath.Join(t.TempDir(), "missing.json"), slog.Default())

	assert.False(t, p.Ready())
	assert.Equal(t, Metadata{Status: StatusNotLoaded}, p.Describe())

	_, err := p.Predict(domain.BuildFeatures(domain.Observation{}))
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestPredictor_LoadMissingFile(t *testing.T) {
	p := NewPredictor(filepath.Join(t.TempDir(), "missing.json"), slog.Default())

	err := p.Load()
	require.Error(t, err)
	assert.False(t, p.Ready(), "a failed load leaves the predictor unloaded")
}

func TestPredictor_LoadCorruptArtifact(t *testing.T) {
	dir := t.TempDir()
	path := writeArtifact(t, dir, "model.json", `{not json`)

	p := NewPredictor(path, slog.Default())
	err := p.Load()
	require.Error(t, err)
	assert.False(t, p.Ready())
}

func TestPredictor_LoadAndPredict(t *testing.T) {
	dir := t.TempDir()
	path := writeArtifact(t, dir, "model.json", linearArtifactJSON)

	p := NewPredictor(path, slog.Default())
	require.NoError(t, p.Load())
	require.True(t, p.Ready())

	meta := p.Describe()
	assert.Equal(t, StatusLoaded, meta.Status)
	assert.Equal(t, 2, meta.FeaturesCount)
	assert.Equal(t, 25.0, meta.OutbreakThreshold)
	assert.Equal(t, "2024-06-01", meta.Version)

	fv := domain.BuildFeatures(domain.Observation{
		HumidityPercent: 80,
		WeekOfYear:      24,
		PreviousCases:   []int{10, 20},
	})
	got, err := p.Predict(fv)
	require.NoError(t, err)
	// 4.0 + 0.1·80 + 1.5·20 = 42; all other built features are unknown to the
	// model and are dropped during alignment.
	assert.InDelta(t, 42.0, got, 1e-9)
}

// A failed load after a successful one must return the predictor to the
// unloaded state, and a later successful reload restores readiness.
func TestPredictor_ReloadLifecycle(t *testing.T) {
	dir := t.TempDir()
	path := writeArtifact(t, dir, "model.json", linearArtifactJSON)

	p := NewPredictor(path, slog.Default())
	require.NoError(t, p.Load())
	require.True(t, p.Ready())

	require.NoError(t, os.WriteFile(path, []byte(`corrupt`), 0o600))
	require.Error(t, p.Reload())
	assert.False(t, p.Ready())

	require.NoError(t, os.WriteFile(path, []byte(linearArtifactJSON), 0o600))
	require.NoError(t, p.Reload())
	assert.True(t, p.Ready())
}

// Concurrent predictions during reloads must observe either the old or the
// new artifact in full: a two-column and a three-column model must never mix.
func TestPredictor_ReloadAtomicity(t *testing.T) {
	const threeColumnArtifact = `{
		"model": {
			"type": "linear",
			"intercept": 1.0,
			"coefficients": {"temp_avg": 1.0, "humidity_percent": 1.0, "cases_lag_1": 1.0}
		},
		"feature_columns": ["temp_avg", "humidity_percent", "cases_lag_1"],
		"outbreak_threshold": 30.0
	}`

	dir := t.TempDir()
	path := writeArtifact(t, dir, "model.json", linearArtifactJSON)

	p := NewPredictor(path, slog.Default())
	require.NoError(t, p.Load())

	fv := domain.BuildFeatures(domain.Observation{
		TempAvg:         10,
		HumidityPercent: 80,
		PreviousCases:   []int{20},
	})
	// Consistent outcomes: 4.0+8+30=42 (two-column) or 1+10+80+20=111.
	valid := map[float64]bool{42.0: true, 111.0: true}

	var workers, reloader sync.WaitGroup
	stop := make(chan struct{})

	reloader.Add(1)
	go func() {
		defer reloader.Done()
		payloads := []string{threeColumnArtifact, linearArtifactJSON}
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if !assert.NoError(t, os.WriteFile(path, []byte(payloads[i%2]), 0o600)) {
				return
			}
			if !assert.NoError(t, p.Reload()) {
				return
			}
		}
	}()

	for w := 0; w < 4; w++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for i := 0; i < 500; i++ {
				got, err := p.Predict(fv)
				if !assert.NoError(t, err) {
					return
				}
				assert.True(t, valid[got], "observed mixed artifact: predicted %v", got)

				meta := p.Describe()
				assert.Contains(t, []int{2, 3}, meta.FeaturesCount)
			}
		}()
	}

	workers.Wait()
	close(stop)
	reloader.Wait()
}
