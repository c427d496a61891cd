package model

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/couchcryptid/outbreak-warning-service/internal/domain"
)

// ErrNotReady is returned when a prediction is requested before a model
// artifact has been loaded. Recoverable: retry after a successful reload.
var ErrNotReady = errors.New("model not loaded")

// Metadata describes the loaded model. When Status is "not_loaded" all other
// fields are absent; callers must branch on Status rather than assume the
// metric fields are populated.
type Metadata struct {
	Status             string             `json:"status"`
	ModelType          string             `json:"model_type,omitempty"`
	FeaturesCount      int                `json:"features_count,omitempty"`
	FeatureList        []string           `json:"feature_list,omitempty"`
	OutbreakThreshold  float64            `json:"outbreak_threshold,omitempty"`
	PerformanceMetrics map[string]float64 `json:"performance_metrics,omitempty"`
	DataSource         string             `json:"data_source,omitempty"`
	Version            string             `json:"version,omitempty"`
}

// Metadata status values.
const (
	StatusLoaded    = "loaded"
	StatusNotLoaded = "not_loaded"
)

// Predictor owns the loaded model artifact. The artifact pointer is swapped
// atomically on load, so concurrent Predict calls observe either the whole
// old artifact or the whole new one, never a mix. A Predictor with no
// artifact is in the Unloaded state and refuses predictions.
type Predictor struct {
	path     string
	logger   *slog.Logger
	artifact atomic.Pointer[Artifact]
}

// NewPredictor creates an unloaded Predictor reading artifacts from path.
func NewPredictor(path string, logger *slog.Logger) *Predictor {
	return &Predictor{path: path, logger: logger}
}

// Load reads, decodes, and validates the artifact at the configured path and
// publishes it in one pointer swap. On failure the predictor is left
// unloaded and the error is returned for logging; a missing or corrupt model
// file must degrade the service, never crash it.
func (p *Predictor) Load() error {
	f, err := os.Open(p.path)
	if err != nil {
		p.artifact.Store(nil)
		return fmt.Errorf("open model artifact %s: %w", p.path, err)
	}
	defer f.Close()

	artifact, err := DecodeArtifact(f)
	if err != nil {
		p.artifact.Store(nil)
		return fmt.Errorf("load model artifact %s: %w", p.path, err)
	}

	p.artifact.Store(artifact)
	p.logger.Info("model artifact loaded",
		"path", p.path,
		"model_type", artifact.Model.Type,
		"features", len(artifact.FeatureColumns),
		"outbreak_threshold", artifact.OutbreakThreshold,
		"version", artifact.Version,
	)
	return nil
}

// Reload re-executes Load against the same configured path.
func (p *Predictor) Reload() error {
	return p.Load()
}

// Ready reports whether an artifact is loaded.
func (p *Predictor) Ready() bool {
	return p.artifact.Load() != nil
}

// Predict aligns the feature vector to the artifact's column order and runs
// inference, returning the estimated case count. The predictor does no
// feature engineering of its own: model-required columns absent from the
// vector default to 0.0 and unknown vector entries are ignored.
func (p *Predictor) Predict(fv *domain.FeatureVector) (float64, error) {
	artifact := p.artifact.Load()
	if artifact == nil {
		return 0, ErrNotReady
	}
	return artifact.predict(fv.AlignTo(artifact.FeatureColumns)), nil
}

// Describe returns the loaded model's metadata, or the bare not_loaded shape
// when no artifact is available.
func (p *Predictor) Describe() Metadata {
	artifact := p.artifact.Load()
	if artifact == nil {
		return Metadata{Status: StatusNotLoaded}
	}
	return Metadata{
		Status:             StatusLoaded,
		ModelType:          artifact.Model.Type,
		FeaturesCount:      len(artifact.FeatureColumns),
		FeatureList:        artifact.FeatureColumns,
		OutbreakThreshold:  artifact.OutbreakThreshold,
		PerformanceMetrics: artifact.Metrics,
		DataSource:         artifact.DataSource,
		Version:            artifact.Version,
	}
}
