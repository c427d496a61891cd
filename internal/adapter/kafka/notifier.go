// Package kafka publishes outbreak alerts to a Kafka topic for downstream
// consumers (dashboards, paging integrations).
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/outbreak-warning-service/internal/config"
	"github.com/couchcryptid/outbreak-warning-service/internal/domain"
)

// Notifier produces alert messages to the configured alert topic. It
// implements alert.Notifier.
type Notifier struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewNotifier creates a Kafka producer for the alert topic.
func NewNotifier(cfg *config.Config, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlertTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Notifier{writer: w, logger: logger}
}

// PublishAlerts serializes and publishes a batch of alerts in a single
// WriteMessages call. Messages are keyed by region so alerts for one region
// stay ordered on a partition.
func (n *Notifier) PublishAlerts(ctx context.Context, alerts []domain.AlertRecord) error {
	if len(alerts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(alerts))
	for i := range alerts {
		msg, err := serializeAlert(alerts[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := n.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d alerts: %w", len(alerts), err)
	}
	n.logger.Debug("alerts published", "count", len(alerts))
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeAlert marshals an AlertRecord into a Kafka message.
func serializeAlert(alert domain.AlertRecord) (kafkago.Message, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.Itoa(alert.RegionID)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "severity", Value: []byte(alert.Severity)},
			{Key: "created_at", Value: []byte(alert.CreatedAt.Format(time.RFC3339))},
		},
	}, nil
}
