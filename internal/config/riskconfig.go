package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/neuracity/risk-index-service/internal/risk"
)

// DefaultRiskConfigName is the name every provider resolves, backed by the
// built-in defaults unless a config file overrides it.
const DefaultRiskConfigName = "default"

// RiskConfigProvider resolves named scoring configurations loaded at startup.
// Providers are read-only after construction and safe for concurrent use.
type RiskConfigProvider struct {
	configs map[string]risk.Config
}

// LoadRiskConfigs reads every .yaml/.yml document in dir into a provider. An
// empty dir yields a provider with only the built-in default. Files must
// carry valid weights or thresholds; a bad document fails the whole load so
// misconfiguration is caught at startup rather than mid-run.
func LoadRiskConfigs(dir string) (*RiskConfigProvider, error) {
	p := &RiskConfigProvider{configs: map[string]risk.Config{
		DefaultRiskConfigName: risk.DefaultConfig(),
	}}
	if strings.TrimSpace(dir) == "" {
		return p, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read risk config dir: %w", err)
	}
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		cfg, err := loadRiskConfigFile(path)
		if err != nil {
			return nil, err
		}
		p.configs[cfg.Name] = cfg
	}
	return p, nil
}

func loadRiskConfigFile(path string) (risk.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return risk.Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	// Start from the defaults so documents only need to override what they
	// change. DefaultConfig carries the name "default", which would mask a
	// document without a name key, so the name is cleared first and a
	// nameless document falls back to its file name.
	cfg := risk.DefaultConfig()
	cfg.Name = ""
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return risk.Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Name == "" {
		cfg.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := validateRiskConfig(cfg); err != nil {
		return risk.Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func validateRiskConfig(cfg risk.Config) error {
	for _, f := range risk.Factors {
		if cfg.MaxThreshold(f) <= 0 {
			return fmt.Errorf("non-positive max threshold for %s", f)
		}
	}
	if cfg.SpatialRadiusMeters <= 0 {
		return fmt.Errorf("non-positive spatial radius")
	}
	if cfg.SpatialDecayFactor <= 0 || cfg.SpatialDecayFactor > 1 {
		return fmt.Errorf("spatial decay factor must be in (0,1]")
	}
	// A weight sum outside tolerance is allowed: scoring falls back to an
	// unweighted mean and logs a warning.
	return nil
}

// Get resolves a named config. An empty name resolves the default.
func (p *RiskConfigProvider) Get(name string) (risk.Config, bool) {
	if name == "" {
		name = DefaultRiskConfigName
	}
	cfg, ok := p.configs[name]
	return cfg, ok
}

// Names lists the available config names.
func (p *RiskConfigProvider) Names() []string {
	names := make([]string, 0, len(p.configs))
	for name := range p.configs {
		names = append(names, name)
	}
	return names
}
