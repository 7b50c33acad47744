package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T) *Config {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "config.json"))
}

func TestSnapshotDefaults(t *testing.T) {
	cfg := newTestConfig(t)
	snap := cfg.Snapshot()

	assert.Equal(t, DefaultWebPort, snap.WebPort)
	assert.InDelta(t, DefaultBaseThreshold, snap.BaseThreshold, 1e-9)
	assert.InDelta(t, DefaultThresholdMultiplier, snap.ThresholdMultiplier, 1e-9)
	assert.Equal(t, DefaultCalibrationBlocks, snap.CalibrationBlocks)
	assert.Equal(t, int64(DefaultMinClapIntervalMs), snap.MinClapIntervalMs)
	assert.Equal(t, int64(DefaultMaxClapIntervalMs), snap.MaxClapIntervalMs)
	assert.Equal(t, int64(DefaultPatternTimeoutMs), snap.PatternTimeoutMs)
	assert.Equal(t, int64(DefaultCooldownMs), snap.CooldownMs)
	assert.Equal(t, int64(DefaultLookbackMs), snap.LookbackMs)
	assert.Equal(t, DefaultNormalBrightness, snap.NormalBrightness)
	assert.Equal(t, DefaultRelaxingBrightness, snap.RelaxingBrightness)
	assert.Equal(t, DefaultPartyBrightness, snap.PartyBrightness)
	assert.Empty(t, snap.WebhookURL)
	assert.Empty(t, snap.LogPath)
}

func TestSnapshotDurations(t *testing.T) {
	cfg := newTestConfig(t)
	snap := cfg.Snapshot()

	assert.Equal(t, 120*time.Millisecond, snap.MinClapInterval())
	assert.Equal(t, 600*time.Millisecond, snap.MaxClapInterval())
	assert.Equal(t, 800*time.Millisecond, snap.PatternTimeout())
	assert.Equal(t, 1500*time.Millisecond, snap.Cooldown())
	assert.Equal(t, 2*time.Second, snap.Lookback())
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := New(path)

	require.NoError(t, cfg.Load())

	_, err := os.Stat(path)
	assert.NoError(t, err, "missing config must be created with defaults")
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	cfg := New(path)
	assert.Error(t, cfg.Load())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"detection": {"min_clap_interval_ms": 600, "max_clap_interval_ms": 120}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg := New(path)
	assert.Error(t, cfg.Load(), "max interval below min interval must be rejected")
}

func TestSetDetectionRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := New(path)
	require.NoError(t, cfg.Load())

	d := DetectionConfig{
		BaseThreshold:       800,
		ThresholdMultiplier: 2.5,
		CalibrationBlocks:   10,
		MinClapIntervalMs:   100,
		MaxClapIntervalMs:   500,
		PatternTimeoutMs:    700,
		CooldownMs:          1000,
		LookbackMs:          1800,
	}
	require.NoError(t, cfg.SetDetection(d))

	reloaded := New(path)
	require.NoError(t, reloaded.Load())

	snap := reloaded.Snapshot()
	assert.InDelta(t, 800.0, snap.BaseThreshold, 1e-9)
	assert.Equal(t, int64(500), snap.MaxClapIntervalMs)
	assert.Equal(t, int64(1800), snap.LookbackMs)
}

func TestSetDetectionValidation(t *testing.T) {
	cfg := newTestConfig(t)

	err := cfg.SetDetection(DetectionConfig{
		MinClapIntervalMs: 600,
		MaxClapIntervalMs: 120,
	})
	assert.Error(t, err)

	err = cfg.SetDetection(DetectionConfig{BaseThreshold: -1})
	assert.Error(t, err)
}

func TestSetWebhookURL(t *testing.T) {
	cfg := newTestConfig(t)

	assert.Error(t, cfg.SetWebhookURL("not a url"))
	assert.NoError(t, cfg.SetWebhookURL("https://example.com/hook"))
	assert.Equal(t, "https://example.com/hook", cfg.Snapshot().WebhookURL)

	// Clearing is always allowed.
	assert.NoError(t, cfg.SetWebhookURL(""))
	snap := cfg.Snapshot()
	assert.False(t, snap.HasWebhook())
}

func TestSetLightsValidation(t *testing.T) {
	cfg := newTestConfig(t)

	assert.Error(t, cfg.SetLights(LightsConfig{NormalBrightness: 101}))
	assert.NoError(t, cfg.SetLights(LightsConfig{NormalBrightness: 90, RelaxingBrightness: 30, PartyBrightness: 100}))

	snap := cfg.Snapshot()
	assert.Equal(t, 90, snap.NormalBrightness)
	assert.Equal(t, 30, snap.RelaxingBrightness)
}

func TestSetAudioInput(t *testing.T) {
	cfg := newTestConfig(t)

	require.NoError(t, cfg.SetAudioInput("hw:1,0"))
	assert.Equal(t, "hw:1,0", cfg.AudioInput())
	assert.Equal(t, "hw:1,0", cfg.Snapshot().AudioInput)
}
