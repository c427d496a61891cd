package domain

import (
	"fmt"
	"time"
)

// Severity is the two-tier alert severity scale.
type Severity string

const (
	SeverityWarning  Severity = "Warning"
	SeverityCritical Severity = "Critical"
)

// AlertStatus tracks operator handling of an alert. Only "New" is assigned by
// this service; acknowledgement and resolution happen downstream.
type AlertStatus string

const (
	AlertStatusNew          AlertStatus = "New"
	AlertStatusAcknowledged AlertStatus = "Acknowledged"
	AlertStatusResolved     AlertStatus = "Resolved"
)

// CriticalCaseCount is the predicted case count above which an alert is
// Critical rather than Warning.
const CriticalCaseCount = 200.0

// PredictionRecord is the persisted result of one risk assessment. Records
// are immutable after creation and retained indefinitely.
type PredictionRecord struct {
	ID             string             `json:"id"`
	RegionID       int                `json:"region_id"`
	DiseaseID      int                `json:"disease_id"`
	PredictionDate time.Time          `json:"prediction_date"` // target date the prediction is for
	PredictedCases float64            `json:"predicted_cases"`
	Confidence     float64            `json:"confidence_score"`
	RiskLevel      RiskLevel          `json:"risk_level"`
	Features       map[string]float64 `json:"features_used,omitempty"` // input snapshot for auditability
	ModelVersion   string             `json:"model_version,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

// AlertRecord is a persisted outbreak alert. Status and assignee are mutated
// later by operator action outside this service; alerts are never
// auto-deleted.
type AlertRecord struct {
	ID         string      `json:"id"`
	RegionID   int         `json:"region_id"`
	Severity   Severity    `json:"severity"`
	Message    string      `json:"message"`
	Status     AlertStatus `json:"status"`
	AssignedTo *string     `json:"assigned_to,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// AlertSeverity classifies a predicted case count into the two-tier scale.
func AlertSeverity(predictedCases float64) Severity {
	if predictedCases > CriticalCaseCount {
		return SeverityCritical
	}
	return SeverityWarning
}

// AlertDedupKey is the message fragment that identifies an outbreak signal.
// An existing alert for the same region whose message contains this fragment
// makes a candidate a duplicate. Content-based matching is fragile (it hinges
// on the one-decimal formatting below); see DESIGN.md for the stronger
// (region, target date) keying this should migrate to.
func AlertDedupKey(predictedCases float64) string {
	return fmt.Sprintf("Predicted %.1f", predictedCases)
}

// AlertMessage renders the operator-facing alert text. The predicted case
// count and target date are embedded so the message doubles as the dedup key.
func AlertMessage(predictedCases float64, predictionDate time.Time) string {
	return fmt.Sprintf("High risk detected: Predicted %.1f cases for date %s",
		predictedCases, predictionDate.UTC().Format("2006-01-02"))
}

// NewOutbreakAlert builds the alert for a threshold-crossing prediction.
// The record ID is assigned by the store on insert.
func NewOutbreakAlert(pred PredictionRecord) AlertRecord {
	return AlertRecord{
		RegionID:  pred.RegionID,
		Severity:  AlertSeverity(pred.PredictedCases),
		Message:   AlertMessage(pred.PredictedCases, pred.PredictionDate),
		Status:    AlertStatusNew,
		CreatedAt: clock.Now(),
	}
}
