// Package config provides application configuration management.
package config

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/lumenlabs/claplight/internal/util"
)

// Configuration defaults are used when values are not specified.
const (
	DefaultWebPort = 8080

	// Detection defaults. The timing constants were tuned empirically;
	// they are configuration, not fixed behavior.
	DefaultBaseThreshold       = 1000.0
	DefaultThresholdMultiplier = 3.0
	DefaultCalibrationBlocks   = 30
	DefaultMinClapIntervalMs   = 120
	DefaultMaxClapIntervalMs   = 600
	DefaultPatternTimeoutMs    = 800
	DefaultCooldownMs          = 1500
	DefaultLookbackMs          = 2000

	// Per-mode brightness defaults.
	DefaultNormalBrightness   = 80
	DefaultRelaxingBrightness = 40
	DefaultPartyBrightness    = 100
)

// validate is the shared validator instance for configuration validation.
var validate = validator.New(validator.WithRequiredStructEnabled())

// SystemConfig holds system-level settings that require restart.
type SystemConfig struct {
	FFmpegPath string `json:"ffmpeg_path"` // Path to FFmpeg binary (empty = use PATH)
	Port       int    `json:"port" validate:"omitempty,min=1,max=65535"`
}

// AudioConfig holds audio input device settings.
type AudioConfig struct {
	Input string `json:"input"` // Audio input device identifier
}

// DetectionConfig holds clap detection thresholds and timing parameters.
// All durations are in milliseconds; zero values select the defaults.
type DetectionConfig struct {
	BaseThreshold       float64 `json:"base_threshold" validate:"omitempty,gt=0"`
	ThresholdMultiplier float64 `json:"threshold_multiplier" validate:"omitempty,gt=0"`
	CalibrationBlocks   int     `json:"calibration_blocks" validate:"omitempty,gt=0"`
	MinClapIntervalMs   int64   `json:"min_clap_interval_ms" validate:"omitempty,gt=0"`
	MaxClapIntervalMs   int64   `json:"max_clap_interval_ms" validate:"omitempty,gt=0,gtefield=MinClapIntervalMs"`
	PatternTimeoutMs    int64   `json:"pattern_timeout_ms" validate:"omitempty,gt=0"`
	CooldownMs          int64   `json:"cooldown_ms" validate:"omitempty,gt=0"`
	LookbackMs          int64   `json:"lookback_ms" validate:"omitempty,gt=0"`
}

// LightsConfig holds per-mode brightness settings.
type LightsConfig struct {
	NormalBrightness   int `json:"normal_brightness" validate:"omitempty,min=0,max=100"`
	RelaxingBrightness int `json:"relaxing_brightness" validate:"omitempty,min=0,max=100"`
	PartyBrightness    int `json:"party_brightness" validate:"omitempty,min=0,max=100"`
}

// WebhookConfig holds webhook notification settings.
type WebhookConfig struct {
	URL string `json:"url" validate:"omitempty,url"` // Webhook URL for gesture notifications
}

// LogConfig holds log file notification settings.
type LogConfig struct {
	Path string `json:"path"` // Log file path for gesture events
}

// NotificationsConfig holds all notification channel settings.
type NotificationsConfig struct {
	Webhook WebhookConfig `json:"webhook"`
	Log     LogConfig     `json:"log"`
}

// Config holds all application configuration. It is safe for concurrent use.
type Config struct {
	System        SystemConfig        `json:"system"`
	Audio         AudioConfig         `json:"audio"`
	Detection     DetectionConfig     `json:"detection"`
	Lights        LightsConfig        `json:"lights"`
	Notifications NotificationsConfig `json:"notifications"`

	mu       sync.RWMutex
	filePath string
}

// New creates a new Config with default values.
func New(filePath string) *Config {
	return &Config{
		System:   SystemConfig{Port: DefaultWebPort},
		filePath: filePath,
	}
}

// Load reads config from file, creating a default if none exists.
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		return c.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return util.WrapError("parse config", err)
	}

	c.applyDefaults()

	if err := validate.Struct(c); err != nil {
		return util.WrapError("validate config", err)
	}

	return nil
}

// applyDefaults sets default values for zero-value fields.
func (c *Config) applyDefaults() {
	if c.System.Port == 0 {
		c.System.Port = DefaultWebPort
	}
}

// saveLocked persists configuration. Caller must hold c.mu.
func (c *Config) saveLocked() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return util.WrapError("marshal config", err)
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return util.WrapError("create config directory", err)
	}

	if err := os.WriteFile(c.filePath, data, 0o600); err != nil {
		return util.WrapError("write config", err)
	}

	return nil
}

// --- Getters for individual settings ---

// AudioInput returns the configured audio input device.
func (c *Config) AudioInput() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Audio.Input
}

// FFmpegPath returns the configured FFmpeg binary path.
func (c *Config) FFmpegPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.System.FFmpegPath
}

// --- Setters for individual settings ---

// SetAudioInput updates the audio input device and saves the configuration.
func (c *Config) SetAudioInput(input string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Audio.Input = input
	return c.saveLocked()
}

// SetDetection replaces the detection settings after validation and saves.
func (c *Config) SetDetection(d DetectionConfig) error {
	if err := validate.Struct(&d); err != nil {
		return util.WrapError("validate detection settings", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Detection = d
	return c.saveLocked()
}

// SetLights replaces the per-mode brightness settings after validation and saves.
func (c *Config) SetLights(l LightsConfig) error {
	if err := validate.Struct(&l); err != nil {
		return util.WrapError("validate light settings", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Lights = l
	return c.saveLocked()
}

// SetWebhookURL updates the webhook URL and saves the configuration.
func (c *Config) SetWebhookURL(url string) error {
	if url != "" {
		if err := validate.Var(url, "url"); err != nil {
			return fmt.Errorf("invalid webhook URL %q", url)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Notifications.Webhook.URL = url
	return c.saveLocked()
}

// SetLogPath updates the notification log file path and saves the configuration.
func (c *Config) SetLogPath(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Notifications.Log.Path = path
	return c.saveLocked()
}

// --- Snapshot for atomic reads ---

// Snapshot is a point-in-time copy of configuration values with defaults applied.
type Snapshot struct {
	// System
	WebPort    int
	FFmpegPath string

	// Audio
	AudioInput string

	// Detection
	BaseThreshold       float64
	ThresholdMultiplier float64
	CalibrationBlocks   int
	MinClapIntervalMs   int64
	MaxClapIntervalMs   int64
	PatternTimeoutMs    int64
	CooldownMs          int64
	LookbackMs          int64

	// Lights
	NormalBrightness   int
	RelaxingBrightness int
	PartyBrightness    int

	// Notifications
	WebhookURL string
	LogPath    string
}

// Snapshot returns a point-in-time copy of all configuration values.
func (c *Config) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		WebPort:    cmp.Or(c.System.Port, DefaultWebPort),
		FFmpegPath: c.System.FFmpegPath,

		AudioInput: c.Audio.Input,

		BaseThreshold:       cmp.Or(c.Detection.BaseThreshold, DefaultBaseThreshold),
		ThresholdMultiplier: cmp.Or(c.Detection.ThresholdMultiplier, DefaultThresholdMultiplier),
		CalibrationBlocks:   cmp.Or(c.Detection.CalibrationBlocks, DefaultCalibrationBlocks),
		MinClapIntervalMs:   cmp.Or(c.Detection.MinClapIntervalMs, int64(DefaultMinClapIntervalMs)),
		MaxClapIntervalMs:   cmp.Or(c.Detection.MaxClapIntervalMs, int64(DefaultMaxClapIntervalMs)),
		PatternTimeoutMs:    cmp.Or(c.Detection.PatternTimeoutMs, int64(DefaultPatternTimeoutMs)),
		CooldownMs:          cmp.Or(c.Detection.CooldownMs, int64(DefaultCooldownMs)),
		LookbackMs:          cmp.Or(c.Detection.LookbackMs, int64(DefaultLookbackMs)),

		NormalBrightness:   cmp.Or(c.Lights.NormalBrightness, DefaultNormalBrightness),
		RelaxingBrightness: cmp.Or(c.Lights.RelaxingBrightness, DefaultRelaxingBrightness),
		PartyBrightness:    cmp.Or(c.Lights.PartyBrightness, DefaultPartyBrightness),

		WebhookURL: c.Notifications.Webhook.URL,
		LogPath:    c.Notifications.Log.Path,
	}
}

// MinClapInterval returns the same-clap debounce interval.
func (s *Snapshot) MinClapInterval() time.Duration {
	return time.Duration(s.MinClapIntervalMs) * time.Millisecond
}

// MaxClapInterval returns the maximum valid spacing between claps.
func (s *Snapshot) MaxClapInterval() time.Duration {
	return time.Duration(s.MaxClapIntervalMs) * time.Millisecond
}

// PatternTimeout returns the quiet duration that finalizes a pattern.
func (s *Snapshot) PatternTimeout() time.Duration {
	return time.Duration(s.PatternTimeoutMs) * time.Millisecond
}

// Cooldown returns the minimum spacing between fired gestures.
func (s *Snapshot) Cooldown() time.Duration {
	return time.Duration(s.CooldownMs) * time.Millisecond
}

// Lookback returns the clap window lookback horizon.
func (s *Snapshot) Lookback() time.Duration {
	return time.Duration(s.LookbackMs) * time.Millisecond
}

// HasWebhook reports whether a webhook URL is configured.
func (s *Snapshot) HasWebhook() bool {
	return s.WebhookURL != ""
}

// HasLogPath reports whether a notification log path is configured.
func (s *Snapshot) HasLogPath() bool {
	return s.LogPath != ""
}
