package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/outbreak-warning-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/outbreak-warning-service/internal/adapter/kafka"
	"github.com/couchcryptid/outbreak-warning-service/internal/alert"
	"github.com/couchcryptid/outbreak-warning-service/internal/config"
	"github.com/couchcryptid/outbreak-warning-service/internal/model"
	"github.com/couchcryptid/outbreak-warning-service/internal/observability"
	"github.com/couchcryptid/outbreak-warning-service/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A missing or corrupt artifact degrades the service instead of killing
	// it; predictions return 503 until a reload succeeds.
	predictor := model.NewPredictor(cfg.ModelPath, logger)
	if err := predictor.Load(); err != nil {
		metrics.ModelLoaded.Set(0)
		logger.Error("model load failed, serving degraded", "error", err)
	} else {
		metrics.ModelLoaded.Set(1)
	}
	service := model.NewService(predictor)

	// Database is optional: without it the service answers predictions but
	// cannot persist them or run the alert engine.
	var db store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		if err := pg.Migrate(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		db = pg
		logger.Info("postgres connected")
	} else {
		logger.Info("no database configured, persistence and alerting disabled")
	}

	// Alert notifier (feature-flagged via KAFKA_ENABLED / brokers).
	var notifier *kafkaadapter.Notifier
	if cfg.KafkaEnabled {
		notifier = kafkaadapter.NewNotifier(cfg, logger)
		logger.Info("kafka alert notifications enabled", "topic", cfg.KafkaAlertTopic)
	} else {
		logger.Info("kafka alert notifications disabled")
	}

	var recorder httpadapter.PredictionRecorder
	var lister httpadapter.AlertLister
	if db != nil {
		recorder = db
		lister = db
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, service, recorder, lister, logger, metrics)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if db != nil {
		// alert.Engine takes the interface slice it needs; notifier stays
		// nil-able behind its own interface.
		var n alert.Notifier
		if notifier != nil {
			n = notifier
		}
		engine := alert.New(db, n, logger, metrics, clockwork.NewRealClock(), alert.Config{
			Interval:       cfg.AlertInterval,
			ThresholdCases: cfg.AlertThresholdCases,
		})
		go func() {
			if err := engine.Run(ctx); err != nil {
				logger.Error("alert engine error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if notifier != nil {
		if err := notifier.Close(); err != nil {
			logger.Error("kafka notifier close error", "error", err)
		}
	}
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error("store close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
