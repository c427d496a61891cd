//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	kafkaadapter "github.com/couchcryptid/outbreak-warning-service/internal/adapter/kafka"
	"github.com/couchcryptid/outbreak-warning-service/internal/alert"
	"github.com/couchcryptid/outbreak-warning-service/internal/config"
	"github.com/couchcryptid/outbreak-warning-service/internal/domain"
	"github.com/couchcryptid/outbreak-warning-service/internal/observability"
)

const testAlertTopic = "test-outbreak-alerts"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka launches a single-node Kafka via testcontainers and returns the
// broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("test-cluster"),
	)
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "resolve kafka brokers")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "resolve controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// scanStore is a minimal in-memory alert.Store for driving the engine against
// a real broker.
type scanStore struct {
	mu          sync.Mutex
	predictions []domain.PredictionRecord
	alerts      []domain.AlertRecord
}

func (s *scanStore) PredictionsAbove(_ context.Context, minCases float64) ([]domain.PredictionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PredictionRecord
	for _, p := range s.predictions {
		if p.PredictedCases > minCases {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *scanStore) AlertExists(_ context.Context, regionID int, fragment string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.RegionID == regionID && strings.Contains(a.Message, fragment) {
			return true, nil
		}
	}
	return false, nil
}

func (s *scanStore) InsertAlerts(_ context.Context, alerts []domain.AlertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alerts...)
	return nil
}

// TestAlertNotifierRoundTrip runs one engine scan cycle against a real Kafka
// broker and verifies the published alert message, key, and headers.
func TestAlertNotifierRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testAlertTopic)

	cfg := &config.Config{
		KafkaBrokers:    []string{broker},
		KafkaAlertTopic: testAlertTopic,
	}

	notifier := kafkaadapter.NewNotifier(cfg, discardLogger())
	t.Cleanup(func() { _ = notifier.Close() })

	store := &scanStore{predictions: []domain.PredictionRecord{{
		ID:             "pred-1",
		RegionID:       7,
		DiseaseID:      1,
		PredictionDate: time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC),
		PredictedCases: 250,
		RiskLevel:      domain.RiskHigh,
	}}}

	engine := alert.New(store, notifier, discardLogger(), observability.NewMetricsForTesting(),
		clockwork.NewRealClock(), alert.Config{Interval: time.Minute, ThresholdCases: 50})

	created, err := engine.ScanOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, created)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testAlertTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from alert topic")

	assert.Equal(t, []byte("7"), msg.Key)

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "Critical", headers["severity"])
	_, err = time.Parse(time.RFC3339, headers["created_at"])
	assert.NoError(t, err, "created_at should be valid RFC3339")

	var published domain.AlertRecord
	require.NoError(t, json.Unmarshal(msg.Value, &published))
	assert.Equal(t, 7, published.RegionID)
	assert.Equal(t, domain.SeverityCritical, published.Severity)
	assert.Equal(t, domain.AlertStatusNew, published.Status)
	assert.Equal(t, "High risk detected: Predicted 250.0 cases for date 2024-07-08", published.Message)

	// A second cycle against the unchanged prediction set publishes nothing.
	created, err = engine.ScanOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, created)
}
