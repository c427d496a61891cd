package domain

import "math"

// RiskLevel is the three-band outbreak risk classification.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// AssessRisk maps a predicted case count to a risk band and confidence score
// relative to the model's outbreak threshold. Bands are closed on their lower
// bound: exactly 0.5·threshold is Medium, exactly threshold is High.
//
// The confidence score is 0.70 + 0.25·min(|predicted−threshold|/threshold, 1),
// rounded to two decimals and therefore capped at 0.95. It is a heuristic
// distance-from-threshold proxy (predictions far from the threshold are easy
// calls in either direction) and must not be read as a calibrated
// probability or statistical confidence interval.
func AssessRisk(predictedCases, threshold float64) (RiskLevel, float64) {
	level := RiskHigh
	switch {
	case predictedCases < threshold*0.5:
		level = RiskLow
	case predictedCases < threshold:
		level = RiskMedium
	}

	distance := math.Abs(predictedCases - threshold)
	normalized := math.Min(distance/threshold, 1.0)
	confidence := math.Round((0.70+normalized*0.25)*100) / 100

	return level, confidence
}
