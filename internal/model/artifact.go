package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DefaultOutbreakThreshold is applied when an artifact omits its threshold,
// matching the training pipeline's default.
const DefaultOutbreakThreshold = 25.0

// Supported model types.
const (
	ModelTypeLinear = "linear"
	ModelTypeGBTree = "gbtree"
)

// Artifact is a deserialized model file: the regression model itself plus the
// metadata the service needs to use it. Immutable once loaded; a reload
// replaces the whole artifact.
type Artifact struct {
	Model             Spec               `json:"model"`
	FeatureColumns    []string           `json:"feature_columns"`
	OutbreakThreshold float64            `json:"outbreak_threshold"`
	Metrics           map[string]float64 `json:"metrics"`
	DataSource        string             `json:"data_source"`
	Version           string             `json:"version"`
}

// Spec holds the regression model parameters. Exactly one family is
// populated, selected by Type: a linear model (intercept + per-feature
// coefficients) or a gradient-boosted tree ensemble exported from the
// training pipeline (base score + flattened regression trees).
type Spec struct {
	Type string `json:"type"`

	// linear
	Intercept    float64            `json:"intercept,omitempty"`
	Coefficients map[string]float64 `json:"coefficients,omitempty"`

	// gbtree
	BaseScore float64 `json:"base_score,omitempty"`
	Trees     []Tree  `json:"trees,omitempty"`
}

// Tree is a regression tree in flattened array form: parallel arrays indexed
// by node, with node 0 as the root. Feature is -1 on leaf nodes; Value holds
// the leaf output. A sample routes left when its feature value is strictly
// below the node threshold.
type Tree struct {
	Feature   []int     `json:"feature"`
	Threshold []float64 `json:"threshold"`
	Left      []int     `json:"left"`
	Right     []int     `json:"right"`
	Value     []float64 `json:"value"`
}

// DecodeArtifact reads and validates a JSON model artifact. Any structural
// problem is returned as an error; the caller decides whether it is fatal.
// For this service it never is; see Predictor.Load.
func DecodeArtifact(r io.Reader) (*Artifact, error) {
	var a Artifact
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}

	if a.OutbreakThreshold == 0 {
		a.OutbreakThreshold = DefaultOutbreakThreshold
	}
	if a.Metrics == nil {
		a.Metrics = map[string]float64{}
	}
	if a.DataSource == "" {
		a.DataSource = "Unknown"
	}

	if err := a.validate(); err != nil {
		return nil, fmt.Errorf("invalid model artifact: %w", err)
	}
	return &a, nil
}

func (a *Artifact) validate() error {
	if len(a.FeatureColumns) == 0 {
		return errors.New("feature_columns is empty")
	}
	if a.OutbreakThreshold <= 0 {
		return fmt.Errorf("outbreak_threshold must be positive, got %g", a.OutbreakThreshold)
	}

	switch a.Model.Type {
	case ModelTypeLinear:
		if len(a.Model.Coefficients) == 0 {
			return errors.New("linear model has no coefficients")
		}
		for name := range a.Model.Coefficients {
			if !contains(a.FeatureColumns, name) {
				return fmt.Errorf("coefficient %q is not a declared feature column", name)
			}
		}
	case ModelTypeGBTree:
		if len(a.Model.Trees) == 0 {
			return errors.New("gbtree model has no trees")
		}
		for i, tree := range a.Model.Trees {
			if err := tree.validate(len(a.FeatureColumns)); err != nil {
				return fmt.Errorf("tree %d: %w", i, err)
			}
		}
	case "":
		return errors.New("model type is missing")
	default:
		return fmt.Errorf("unsupported model type %q", a.Model.Type)
	}
	return nil
}

func (t Tree) validate(featureCount int) error {
	n := len(t.Feature)
	if n == 0 {
		return errors.New("empty tree")
	}
	if len(t.Threshold) != n || len(t.Left) != n || len(t.Right) != n || len(t.Value) != n {
		return errors.New("node arrays have mismatched lengths")
	}
	for i := 0; i < n; i++ {
		if t.Feature[i] >= featureCount {
			return fmt.Errorf("node %d splits on feature %d, model has %d", i, t.Feature[i], featureCount)
		}
		if t.Feature[i] >= 0 {
			if t.Left[i] < 0 || t.Left[i] >= n || t.Right[i] < 0 || t.Right[i] >= n {
				return fmt.Errorf("node %d has out-of-range children", i)
			}
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
