// Package types provides shared type definitions used across claplight.
package types

import "time"

// DetectorState represents the current state of the clap detector.
type DetectorState string

const (
	// StateStopped indicates the detector is not running.
	StateStopped DetectorState = "stopped"
	// StateStarting indicates the detector is initializing.
	StateStarting DetectorState = "starting"
	// StateRunning indicates the detector is actively listening.
	StateRunning DetectorState = "running"
	// StateStopping indicates the detector is shutting down.
	StateStopping DetectorState = "stopping"
)

// Gesture is a classified clap pattern.
type Gesture int

// Recognized gestures. Four or more claps still classify as GestureTriple;
// the gesture vocabulary is capped at the three lighting modes.
const (
	GestureNone Gesture = iota
	GestureSingle
	GestureDouble
	GestureTriple
)

// String returns the gesture name.
func (g Gesture) String() string {
	switch g {
	case GestureSingle:
		return "single"
	case GestureDouble:
		return "double"
	case GestureTriple:
		return "triple"
	default:
		return "none"
	}
}

// Mode returns the lighting mode the gesture maps to.
func (g Gesture) Mode() LightMode {
	switch g {
	case GestureSingle:
		return ModeNormal
	case GestureDouble:
		return ModeRelaxing
	case GestureTriple:
		return ModeParty
	default:
		return ""
	}
}

// LightMode represents a lighting scene.
type LightMode string

// Supported lighting modes.
const (
	ModeNormal   LightMode = "Normal"
	ModeRelaxing LightMode = "Relaxing"
	ModeParty    LightMode = "Party"
)

// GestureEvent is a fired gesture with its clap count and fire time.
type GestureEvent struct {
	Gesture Gesture   `json:"gesture"`
	Claps   int       `json:"claps"`
	At      time.Time `json:"at"`
}

const (
	// InitialRetryDelay is the starting delay between capture retry attempts.
	InitialRetryDelay = 3000 * time.Millisecond
	// MaxRetryDelay is the maximum delay between capture retry attempts.
	MaxRetryDelay = 60000 * time.Millisecond
	// MaxRetries is the maximum number of retry attempts for the audio source.
	MaxRetries = 10
	// SuccessThreshold is the capture run duration after which the retry count resets.
	SuccessThreshold = 30000 * time.Millisecond
)

const (
	// ShutdownTimeout is the duration to wait for graceful shutdown.
	ShutdownTimeout = 3000 * time.Millisecond
	// PollInterval is the interval for polling process state.
	PollInterval = 50 * time.Millisecond
)

// Audio format constants for PCM capture.
const (
	// SampleRate is the audio sample rate in Hz.
	SampleRate = 44100
	// Channels is the number of audio channels (mono).
	Channels = 1
	// BlockSize is the number of samples per capture block (~46ms at 44.1kHz).
	BlockSize = 2048
)

// AudioLevels is a point-in-time snapshot of signal and threshold levels,
// published to the dashboard feed. Values are raw 16-bit amplitudes.
type AudioLevels struct {
	RMS         float64 `json:"rms"`
	Peak        float64 `json:"peak"`
	HeldPeak    float64 `json:"held_peak"`
	Ambient     float64 `json:"ambient"`
	Threshold   float64 `json:"threshold"`
	Calibrating bool    `json:"calibrating"`
}

// DetectorStatus contains runtime status for the clap detector.
type DetectorStatus struct {
	State            DetectorState `json:"state"`
	Uptime           string        `json:"uptime,omitempty"`
	LastError        string        `json:"last_error,omitempty"`
	SourceRetryCount int           `json:"source_retry_count"`
	SourceMaxRetries int           `json:"source_max_retries"`
	ClapsInWindow    int           `json:"claps_in_window"`
}

// VersionInfo contains version comparison data.
type VersionInfo struct {
	Current     string `json:"current"`              // Current version
	Latest      string `json:"latest,omitempty"`     // Latest available version
	UpdateAvail bool   `json:"update_available"`     // Update is available
	Commit      string `json:"commit,omitempty"`     // Git commit hash
	BuildTime   string `json:"build_time,omitempty"` // Build timestamp
}

// LightStatus is a snapshot of the lighting controller state.
type LightStatus struct {
	On         bool      `json:"on"`
	Brightness int       `json:"brightness"`
	Mode       LightMode `json:"mode"`
}
