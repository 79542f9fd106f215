package pipeline

import (
	"context"
	"log/slog"

	"github.com/neuracity/risk-index-service/internal/risk"
)

// ConfigProvider resolves the scoring config active at observation time.
type ConfigProvider interface {
	Get(name string) (risk.Config, bool)
}

// MeasurementTransformer implements Transformer by parsing and scoring raw
// factor samples under a named scoring config.
type MeasurementTransformer struct {
	configs    ConfigProvider
	configName string
	logger     *slog.Logger
}

// NewTransformer creates a MeasurementTransformer scoring under the named
// config. An unknown or empty name falls back to the built-in default.
func NewTransformer(configs ConfigProvider, configName string, logger *slog.Logger) *MeasurementTransformer {
	return &MeasurementTransformer{
		configs:    configs,
		configName: configName,
		logger:     logger,
	}
}

func (t *MeasurementTransformer) Transform(ctx context.Context, raw risk.RawSample) (risk.Measurement, error) {
	cfg, ok := t.configs.Get(t.configName)
	if !ok {
		t.logger.Warn("unknown scoring config, using default", "config", t.configName)
		cfg = risk.DefaultConfig()
	}
	return risk.ParseRawMeasurement(raw, cfg)
}
