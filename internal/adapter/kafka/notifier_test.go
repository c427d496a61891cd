package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/outbreak-warning-service/internal/domain"
)

func TestSerializeAlert(t *testing.T) {
	created := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	alert := domain.AlertRecord{
		ID:        "alert-1",
		RegionID:  7,
		Severity:  domain.SeverityCritical,
		Message:   "High risk detected: Predicted 250.0 cases for date 2024-07-08",
		Status:    domain.AlertStatusNew,
		CreatedAt: created,
	}

	msg, err := serializeAlert(alert)
	require.NoError(t, err)

	assert.Equal(t, []byte("7"), msg.Key)
	assert.Contains(t, string(msg.Value), `"severity":"Critical"`)
	assert.Contains(t, string(msg.Value), `"status":"New"`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "severity", msg.Headers[0].Key)
	assert.Equal(t, []byte("Critical"), msg.Headers[0].Value)
	assert.Equal(t, "created_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(created.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestSerializeAlertOmitsUnassigned(t *testing.T) {
	alert := domain.AlertRecord{RegionID: 1, Severity: domain.SeverityWarning, Status: domain.AlertStatusNew}

	msg, err := serializeAlert(alert)
	require.NoError(t, err)
	assert.NotContains(t, string(msg.Value), "assigned_to")
}

// Alerts for the same region must share a key so they land on one partition.
func TestAlertMessagesKeyedByRegion(t *testing.T) {
	a, err := serializeAlert(domain.AlertRecord{RegionID: 12})
	require.NoError(t, err)
	b, err := serializeAlert(domain.AlertRecord{RegionID: 12})
	require.NoError(t, err)
	assert.Equal(t, a.Key, b.Key)
}
