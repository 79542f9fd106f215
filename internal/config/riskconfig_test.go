package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuracity/risk-index-service/internal/risk"
)

func writeConfigFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadRiskConfigs_EmptyDir(t *testing.T) {
	p, err := LoadRiskConfigs("")
	require.NoError(t, err)

	cfg, ok := p.Get("default")
	require.True(t, ok)
	assert.Equal(t, risk.DefaultConfig(), cfg)

	cfg, ok = p.Get("")
	require.True(t, ok)
	assert.Equal(t, risk.DefaultConfig(), cfg)

	_, ok = p.Get("downtown")
	assert.False(t, ok)
}

func TestLoadRiskConfigs_Directory(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "downtown.yaml", `
name: downtown
crime_weight: 0.30
blight_weight: 0.10
spatial_radius_meters: 750
`)
	writeConfigFile(t, dir, "unnamed.yml", `
heat_exposure_max_celsius: 50
`)
	writeConfigFile(t, dir, "notes.txt", "not a config")

	p, err := LoadRiskConfigs(dir)
	require.NoError(t, err)

	t.Run("named document overrides defaults", func(t *testing.T) {
		cfg, ok := p.Get("downtown")
		require.True(t, ok)
		assert.Equal(t, 0.30, cfg.CrimeWeight)
		assert.Equal(t, 0.10, cfg.BlightWeight)
		assert.Equal(t, 750.0, cfg.SpatialRadiusMeters)
		// untouched fields keep the built-in default
		assert.Equal(t, 0.20, cfg.EmergencyResponseWeight)
	})

	t.Run("document without a name takes the file name", func(t *testing.T) {
		cfg, ok := p.Get("unnamed")
		require.True(t, ok)
		assert.Equal(t, 50.0, cfg.MaxThreshold(risk.FactorHeatExposure))

		// The nameless document must not be registered over the built-in
		// default.
		def, ok := p.Get("default")
		require.True(t, ok)
		assert.Equal(t, risk.DefaultConfig(), def)
	})

	t.Run("non-yaml files are skipped", func(t *testing.T) {
		_, ok := p.Get("notes")
		assert.False(t, ok)
	})

	t.Run("default still resolves", func(t *testing.T) {
		names := p.Names()
		assert.Contains(t, names, "default")
		assert.Contains(t, names, "downtown")
	})
}

func TestLoadRiskConfigs_Invalid(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := LoadRiskConfigs("/nonexistent/risk/configs")
		require.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "bad.yaml", "{{not yaml")
		_, err := LoadRiskConfigs(dir)
		require.Error(t, err)
	})

	t.Run("bad spatial decay", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "bad.yaml", "spatial_decay_factor: 1.5")
		_, err := LoadRiskConfigs(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decay")
	})

	t.Run("bad threshold", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "bad.yaml", "crime_max_incidents: -3")
		_, err := LoadRiskConfigs(dir)
		require.Error(t, err)
	})

	t.Run("skewed weights are allowed", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "skewed.yaml", "crime_weight: 0.9")
		p, err := LoadRiskConfigs(dir)
		require.NoError(t, err)
		cfg, ok := p.Get("skewed")
		require.True(t, ok)
		assert.False(t, cfg.WeightsValid())
	})
}
