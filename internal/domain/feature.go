package domain

import "math"

// seasonalPeriod is the number of weeks used for the cyclical week encoding.
// Fixed at 52 for compatibility with the training pipeline; 53-week ISO years
// are approximated (see package doc).
const seasonalPeriod = 52

// lagCount is the number of lag features the training pipeline uses.
const lagCount = 4

// Observation is one week of environmental and epidemiological input for a
// risk assessment. PreviousCases is ordered oldest to newest and holds 1–4
// non-negative weekly case counts. Range validation is the caller's
// responsibility; see model.Service.
type Observation struct {
	TempAvg         float64 `json:"temp_avg"`
	TempMin         float64 `json:"temp_min"`
	TempMax         float64 `json:"temp_max"`
	PrecipitationMM float64 `json:"precipitation_mm"`
	HumidityPercent float64 `json:"humidity_percent"`
	WeekOfYear      int     `json:"weekofyear"`
	PreviousCases   []int   `json:"previous_cases"`
}

// FeatureVector is an ordered mapping from feature name to value. Order is
// the insertion order of the builder; AlignTo reorders to a model's declared
// column layout.
type FeatureVector struct {
	names  []string
	values map[string]float64
}

func (fv *FeatureVector) set(name string, value float64) {
	if _, ok := fv.values[name]; !ok {
		fv.names = append(fv.names, name)
	}
	fv.values[name] = value
}

// Names returns the feature names in insertion order.
func (fv *FeatureVector) Names() []string {
	out := make([]string, len(fv.names))
	copy(out, fv.names)
	return out
}

// Value returns the named feature value and whether it is present.
func (fv *FeatureVector) Value(name string) (float64, bool) {
	v, ok := fv.values[name]
	return v, ok
}

// Len returns the number of features in the vector.
func (fv *FeatureVector) Len() int {
	return len(fv.names)
}

// Map returns a copy of the vector as a plain map, used for the features_used
// audit snapshot on persisted predictions.
func (fv *FeatureVector) Map() map[string]float64 {
	out := make(map[string]float64, len(fv.values))
	for k, v := range fv.values {
		out[k] = v
	}
	return out
}

// AlignTo projects the vector onto a model's declared column order. Columns
// the vector does not carry are filled with 0.0; vector entries the model
// does not declare are dropped.
func (fv *FeatureVector) AlignTo(columns []string) []float64 {
	out := make([]float64, len(columns))
	for i, col := range columns {
		out[i] = fv.values[col] // zero value is the documented default
	}
	return out
}

// BuildFeatures reproduces the training pipeline's feature engineering for a
// single observation. Pure and deterministic; performs no validation and no
// I/O.
func BuildFeatures(obs Observation) *FeatureVector {
	lags := padCaseHistory(obs.PreviousCases)

	fv := &FeatureVector{values: make(map[string]float64, 18)}

	fv.set("temp_avg", obs.TempAvg)
	fv.set("temp_min", obs.TempMin)
	fv.set("temp_max", obs.TempMax)
	fv.set("precipitation_mm", obs.PrecipitationMM)
	fv.set("humidity_percent", obs.HumidityPercent)
	fv.set("weekofyear", float64(obs.WeekOfYear))

	// cases_lag_1 is the most recent period.
	for i := 0; i < lagCount; i++ {
		fv.set(lagName(i+1), float64(lags[lagCount-1-i]))
	}

	// Rolling-window proxies: current period's value only. Not true rolling
	// statistics (see package doc).
	fv.set("current_temp_avg_for_roll_2w", obs.TempAvg)
	fv.set("current_temp_avg_for_roll_4w", obs.TempAvg)
	fv.set("current_precip_for_roll_2w", obs.PrecipitationMM)
	fv.set("current_precip_for_roll_4w", obs.PrecipitationMM)
	fv.set("current_humidity_for_roll_2w", obs.HumidityPercent)
	fv.set("current_humidity_for_roll_4w", obs.HumidityPercent)

	angle := 2 * math.Pi * float64(obs.WeekOfYear) / seasonalPeriod
	fv.set("week_sin", math.Sin(angle))
	fv.set("week_cos", math.Cos(angle))

	return fv
}

// padCaseHistory left-pads the case history with zeros to exactly lagCount
// entries and keeps the most recent lagCount, preserving oldest-to-newest
// order.
func padCaseHistory(cases []int) []int {
	out := make([]int, lagCount)
	n := len(cases)
	if n > lagCount {
		cases = cases[n-lagCount:]
		n = lagCount
	}
	copy(out[lagCount-n:], cases)
	return out
}

func lagName(n int) string {
	switch n {
	case 1:
		return "cases_lag_1"
	case 2:
		return "cases_lag_2"
	case 3:
		return "cases_lag_3"
	default:
		return "cases_lag_4"
	}
}
