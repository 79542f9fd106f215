package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaAlertTopic  string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Storage configuration.
	StorageDriver  string
	StorageDSN     string
	BlockCacheSize int

	// Recalculation configuration.
	RecalcConcurrency int
	UpsertChunkSize   int
	SnapshotInterval  time.Duration

	// Named risk configuration documents. Empty means built-in default only.
	RiskConfigDir string

	// Category escalation alerts (disabled with ALERTS_ENABLED=false).
	AlertsEnabled bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	flushInterval, err := parseDuration("BATCH_FLUSH_INTERVAL", "500ms")
	if err != nil {
		return nil, err
	}
	snapshotInterval, err := parseDuration("SNAPSHOT_INTERVAL", "168h")
	if err != nil {
		return nil, err
	}

	batchSize, err := parseBoundedInt("BATCH_SIZE", 50, 1, 1000)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseBoundedInt("BLOCK_CACHE_SIZE", 1000, 1, 1_000_000)
	if err != nil {
		return nil, err
	}
	concurrency, err := parseBoundedInt("RECALC_CONCURRENCY", 4, 1, 256)
	if err != nil {
		return nil, err
	}
	chunkSize, err := parseBoundedInt("UPSERT_CHUNK_SIZE", 100, 1, 10_000)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   envOrDefault("KAFKA_SOURCE_TOPIC", "raw-risk-measurements"),
		KafkaAlertTopic:    envOrDefault("KAFKA_ALERT_TOPIC", "risk-category-alerts"),
		KafkaGroupID:       envOrDefault("KAFKA_GROUP_ID", "risk-index-service"),
		HTTPAddr:           envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		LogFormat:          envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
		StorageDriver:      envOrDefault("STORAGE_DRIVER", "memory"),
		StorageDSN:         envOrDefault("STORAGE_DSN", ""),
		BlockCacheSize:     cacheSize,
		RecalcConcurrency:  concurrency,
		UpsertChunkSize:    chunkSize,
		SnapshotInterval:   snapshotInterval,
		RiskConfigDir:      envOrDefault("RISK_CONFIG_DIR", ""),
		AlertsEnabled:      parseBool("ALERTS_ENABLED", true),
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if strings.TrimSpace(cfg.KafkaSourceTopic) == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.AlertsEnabled && strings.TrimSpace(cfg.KafkaAlertTopic) == "" {
		return nil, errors.New("ALERTS_ENABLED is true but KAFKA_ALERT_TOPIC is not set")
	}

	return cfg, nil
}
