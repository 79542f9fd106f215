package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/neuracity/risk-index-service/internal/adapter/http"
	kafkaadapter "github.com/neuracity/risk-index-service/internal/adapter/kafka"
	"github.com/neuracity/risk-index-service/internal/batch"
	"github.com/neuracity/risk-index-service/internal/config"
	"github.com/neuracity/risk-index-service/internal/observability"
	"github.com/neuracity/risk-index-service/internal/pipeline"
	"github.com/neuracity/risk-index-service/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	riskConfigs, err := config.LoadRiskConfigs(cfg.RiskConfigDir)
	if err != nil {
		logger.Error("failed to load risk configs", "dir", cfg.RiskConfigDir, "error", err)
		os.Exit(1)
	}
	logger.Info("risk configs loaded", "names", riskConfigs.Names())

	inner, err := storage.NewStore(cfg.StorageDriver, cfg.StorageDSN)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	if err := inner.Init(context.Background()); err != nil {
		logger.Error("failed to init store", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	var store storage.Store = inner
	if cfg.BlockCacheSize > 0 {
		store = storage.NewCachedStore(inner, cfg.BlockCacheSize, metrics.BlockCacheLookups)
		logger.Info("block cache enabled", "size", cfg.BlockCacheSize)
	}

	// Alerting is feature-flagged; a nil sink disables it in the driver.
	var alertSink batch.AlertSink
	var writer *kafkaadapter.Writer
	if cfg.AlertsEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		alertSink = writer
		logger.Info("category alerts enabled", "topic", cfg.KafkaAlertTopic)
	} else {
		logger.Info("category alerts disabled")
	}

	driver := batch.NewDriver(store, logger, metrics, batch.Options{
		Inputs:           batch.NewStoredMeasurementSource(store),
		Alerts:           alertSink,
		Concurrency:      cfg.RecalcConcurrency,
		ChunkSize:        cfg.UpsertChunkSize,
		SnapshotInterval: cfg.SnapshotInterval,
	})

	reader := kafkaadapter.NewReader(cfg, logger)
	transformer := pipeline.NewTransformer(riskConfigs, config.DefaultRiskConfigName, logger)
	loader := pipeline.NewStoreLoader(store)

	p := pipeline.New(reader, transformer, loader, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Store:   store,
		Driver:  driver,
		Configs: riskConfigs,
		Ready:   p,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start measurement ingest pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := inner.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
