// Package domain models disease-outbreak risk assessment for the early
// warning service.
//
// # Data Source
//
// The service predicts weekly dengue case counts from environmental
// observations and recent case history. The reference training data is the
// DengAI dataset (NOAA weather station readings joined with health-department
// case reports for San Juan and Iquitos), but the domain logic is
// disease-agnostic: any weekly case series with matching weather covariates
// can be served.
//
// # Feature Conventions
//
// Models are trained on a fixed feature layout. [BuildFeatures] reproduces the
// training pipeline's feature engineering from a single observation:
//
//	Base weather:    temp_avg, temp_min, temp_max (°C),
//	                 precipitation_mm, humidity_percent, weekofyear
//	Lag features:    cases_lag_1 .. cases_lag_4, where lag_1 is the most
//	                 recent reporting period. Histories shorter than four
//	                 periods are left-padded with zeros: the earliest missing
//	                 periods are treated as having had zero cases.
//	Rolling proxies: current_*_for_roll_2w / _4w carry the current period's
//	                 value only. They are NOT true rolling statistics; the
//	                 stateless assessment API has no historical context at
//	                 inference time. Kept for layout compatibility with the
//	                 training notebook.
//	Seasonal:        week_sin, week_cos = sin/cos(2π·week/52). The period
//	                 constant is fixed at 52, a known approximation for
//	                 53-week ISO years; week 53 lands close to week 1, which
//	                 is the adjacency the encoding exists to preserve.
//
// Features the loaded model declares but the builder does not produce are
// filled with 0.0 when the vector is aligned to the model's column order.
//
// # Risk Bands
//
// Predicted case counts map to a three-level risk band relative to the
// model's outbreak threshold t, closed on the lower bound of each band:
//
//	Low     predicted < 0.5·t
//	Medium  0.5·t ≤ predicted < t
//	High    predicted ≥ t
//
// The accompanying confidence score is a distance-from-threshold heuristic
// (0.70–0.95), not a calibrated probability. See [AssessRisk].
//
// # Alerting
//
// A second, independently configured case-count threshold drives alert
// generation. Alerts embed the predicted case count (one decimal) and the
// target date in their message text, which doubles as the deduplication key:
// at most one alert is ever created for a given (region, predicted cases,
// target date) combination.
package domain
