package model

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/outbreak-warning-service/internal/domain"
)

// ErrInvalidInput is wrapped into every input-domain rejection so callers can
// distinguish "fix your request" from "try again later" with errors.Is.
var ErrInvalidInput = errors.New("invalid input")

// OutbreakPredictor is the slice of Predictor the service needs; tests
// substitute a stub returning a fixed case count.
type OutbreakPredictor interface {
	Ready() bool
	Predict(fv *domain.FeatureVector) (float64, error)
	Reload() error
	Describe() Metadata
}

// RiskAssessment is the result of one outbreak assessment.
type RiskAssessment struct {
	PredictedCases    float64          `json:"predicted_cases"`
	RiskLevel         domain.RiskLevel `json:"risk_level"`
	Confidence        float64          `json:"confidence"`
	OutbreakThreshold float64          `json:"outbreak_threshold"`
	FeaturesUsed      int              `json:"features_used"`

	// Features and ModelVersion let the caller persist an audit snapshot;
	// they are not part of the assessment payload itself.
	Features     *domain.FeatureVector `json:"-"`
	ModelVersion string                `json:"-"`
}

// Service is the prediction facade: validate the observation, build features,
// run the model, band the risk. It holds no mutable state of its own and is
// safe for concurrent use.
type Service struct {
	predictor OutbreakPredictor
}

// NewService creates a Service around the given predictor.
func NewService(p OutbreakPredictor) *Service {
	return &Service{predictor: p}
}

// Assess validates the observation and produces a risk assessment. Returns
// ErrNotReady when no model is loaded and ErrInvalidInput when a value is
// outside its declared domain. Assess has no side effects; persisting the
// result is the caller's concern.
func (s *Service) Assess(obs domain.Observation) (RiskAssessment, error) {
	if err := validateObservation(obs); err != nil {
		return RiskAssessment{}, err
	}

	meta := s.predictor.Describe()
	if meta.Status != StatusLoaded {
		return RiskAssessment{}, ErrNotReady
	}

	fv := domain.BuildFeatures(obs)
	predicted, err := s.predictor.Predict(fv)
	if err != nil {
		return RiskAssessment{}, err
	}

	level, confidence := domain.AssessRisk(predicted, meta.OutbreakThreshold)

	return RiskAssessment{
		PredictedCases:    predicted,
		RiskLevel:         level,
		Confidence:        confidence,
		OutbreakThreshold: meta.OutbreakThreshold,
		FeaturesUsed:      meta.FeaturesCount,
		Features:          fv,
		ModelVersion:      meta.Version,
	}, nil
}

// Ready reports whether the underlying predictor has a loaded model.
func (s *Service) Ready() bool {
	return s.predictor.Ready()
}

// Reload delegates to the predictor.
func (s *Service) Reload() error {
	return s.predictor.Reload()
}

// Describe delegates to the predictor.
func (s *Service) Describe() Metadata {
	return s.predictor.Describe()
}

// Input domains, matching the upstream request contract.
const (
	tempMin     = -50.0
	tempMax     = 60.0
	humidityMin = 0.0
	humidityMax = 100.0
	weekMin     = 1
	weekMax     = 53
	casesMinLen = 1
	casesMaxLen = 4
)

func validateObservation(obs domain.Observation) error {
	for _, t := range []struct {
		field string
		value float64
	}{
		{"temp_avg", obs.TempAvg},
		{"temp_min", obs.TempMin},
		{"temp_max", obs.TempMax},
	} {
		if t.value < tempMin || t.value > tempMax {
			return fmt.Errorf("%w: %s must be between %g and %g °C, got %g",
				ErrInvalidInput, t.field, tempMin, tempMax, t.value)
		}
	}
	if obs.PrecipitationMM < 0 {
		return fmt.Errorf("%w: precipitation_mm must be non-negative, got %g",
			ErrInvalidInput, obs.PrecipitationMM)
	}
	if obs.HumidityPercent < humidityMin || obs.HumidityPercent > humidityMax {
		return fmt.Errorf("%w: humidity_percent must be between %g and %g, got %g",
			ErrInvalidInput, humidityMin, humidityMax, obs.HumidityPercent)
	}
	if obs.WeekOfYear < weekMin || obs.WeekOfYear > weekMax {
		return fmt.Errorf("%w: weekofyear must be between %d and %d, got %d",
			ErrInvalidInput, weekMin, weekMax, obs.WeekOfYear)
	}
	if len(obs.PreviousCases) < casesMinLen || len(obs.PreviousCases) > casesMaxLen {
		return fmt.Errorf("%w: previous_cases must hold %d to %d entries, got %d",
			ErrInvalidInput, casesMinLen, casesMaxLen, len(obs.PreviousCases))
	}
	for i, c := range obs.PreviousCases {
		if c < 0 {
			return fmt.Errorf("%w: previous_cases[%d] must be non-negative, got %d",
				ErrInvalidInput, i, c)
		}
	}
	return nil
}
