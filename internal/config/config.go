package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	ModelPath       string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Persistence. An empty DatabaseURL runs the service in predict-only
	// mode: no prediction records are written and the alert engine is
	// disabled.
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Alert engine policy. AlertThresholdCases is deliberately independent
	// of the model's own outbreak threshold: it tunes alerting sensitivity,
	// not risk banding.
	AlertInterval       time.Duration
	AlertThresholdCases float64

	// Kafka alert notification (KAFKA_ENABLED / KAFKA_BROKERS).
	KafkaBrokers    []string
	KafkaAlertTopic string
	KafkaEnabled    bool
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	alertInterval, err := parseDuration("ALERT_INTERVAL", 60*time.Second)
	if err != nil {
		return nil, err
	}

	alertThreshold, err := parseFloat("ALERT_THRESHOLD_CASES", 50.0)
	if err != nil {
		return nil, err
	}

	dbMaxConns, err := parseInt32("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, err
	}
	dbMinConns, err := parseInt32("DB_MIN_CONNS", 2)
	if err != nil {
		return nil, err
	}

	brokers := parseBrokers(os.Getenv("KAFKA_BROKERS"))
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		ModelPath:       envOrDefault("MODEL_PATH", "models/outbreak_predictor.json"),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  dbMaxConns,
		DBMinConns:  dbMinConns,

		AlertInterval:       alertInterval,
		AlertThresholdCases: alertThreshold,

		KafkaBrokers:    brokers,
		KafkaAlertTopic: envOrDefault("KAFKA_ALERT_TOPIC", "outbreak-alerts"),
		KafkaEnabled:    kafkaEnabled,
	}

	if cfg.ModelPath == "" {
		return nil, errors.New("MODEL_PATH is required")
	}
	if cfg.AlertInterval <= 0 {
		return nil, errors.New("invalid ALERT_INTERVAL")
	}
	if cfg.AlertThresholdCases <= 0 {
		return nil, errors.New("invalid ALERT_THRESHOLD_CASES")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func parseInt32(key string, fallback int32) (int32, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return int32(v), nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
