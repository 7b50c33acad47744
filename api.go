package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"

	"github.com/lumenlabs/claplight/internal/audio"
	"github.com/lumenlabs/claplight/internal/config"
	"github.com/lumenlabs/claplight/internal/eventlog"
	"github.com/lumenlabs/claplight/internal/lights"
	"github.com/lumenlabs/claplight/internal/notify"
	"github.com/lumenlabs/claplight/internal/types"
)

// API response helpers

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) readJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// parseJSON reads and parses JSON from request body.
// Returns parsed value and true on success, zero value and false on failure.
func parseJSON[T any](s *Server, w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	if err := s.readJSON(r, &v); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return v, false
	}
	return v, true
}

// coalesce returns the first non-zero value from the provided values.
func coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// handleAPIStatus returns detector, light and version status.
// GET /api/status
func (s *Server) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"ffmpeg_available": s.ffmpegAvailable,
		"detector":         s.engine.Status(),
		"levels":           s.engine.Levels(),
		"lights":           s.lights.Status(),
		"version":          s.version.Info(),
	})
}

// apiConfigResponse is the full configuration for the frontend.
type apiConfigResponse struct {
	// Audio
	AudioInput string         `json:"audio_input"`
	Devices    []audio.Device `json:"devices"`
	Platform   string         `json:"platform"`

	// Detection
	BaseThreshold       float64 `json:"base_threshold"`
	ThresholdMultiplier float64 `json:"threshold_multiplier"`
	CalibrationBlocks   int     `json:"calibration_blocks"`
	MinClapIntervalMs   int64   `json:"min_clap_interval_ms"`
	MaxClapIntervalMs   int64   `json:"max_clap_interval_ms"`
	PatternTimeoutMs    int64   `json:"pattern_timeout_ms"`
	CooldownMs          int64   `json:"cooldown_ms"`
	LookbackMs          int64   `json:"lookback_ms"`

	// Lights
	NormalBrightness   int `json:"normal_brightness"`
	RelaxingBrightness int `json:"relaxing_brightness"`
	PartyBrightness    int `json:"party_brightness"`

	// Notifications
	WebhookURL string `json:"webhook_url"`
	LogPath    string `json:"log_path"`
}

// handleAPIConfig returns the full configuration for the frontend.
// GET /api/config
func (s *Server) handleAPIConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	cfg := s.config.Snapshot()

	resp := apiConfigResponse{
		AudioInput: cfg.AudioInput,
		Devices:    audio.ListDevices(),
		Platform:   runtime.GOOS,

		BaseThreshold:       cfg.BaseThreshold,
		ThresholdMultiplier: cfg.ThresholdMultiplier,
		CalibrationBlocks:   cfg.CalibrationBlocks,
		MinClapIntervalMs:   cfg.MinClapIntervalMs,
		MaxClapIntervalMs:   cfg.MaxClapIntervalMs,
		PatternTimeoutMs:    cfg.PatternTimeoutMs,
		CooldownMs:          cfg.CooldownMs,
		LookbackMs:          cfg.LookbackMs,

		NormalBrightness:   cfg.NormalBrightness,
		RelaxingBrightness: cfg.RelaxingBrightness,
		PartyBrightness:    cfg.PartyBrightness,

		WebhookURL: cfg.WebhookURL,
		LogPath:    cfg.LogPath,
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// handleAPIDevices returns available audio devices.
// GET /api/devices
func (s *Server) handleAPIDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"devices": audio.ListDevices(),
	})
}

// SettingsUpdateRequest is the request body for POST /api/settings.
// Nil fields are left unchanged.
type SettingsUpdateRequest struct {
	// Audio
	AudioInput *string `json:"audio_input"`

	// Detection
	BaseThreshold       *float64 `json:"base_threshold"`
	ThresholdMultiplier *float64 `json:"threshold_multiplier"`
	CalibrationBlocks   *int     `json:"calibration_blocks"`
	MinClapIntervalMs   *int64   `json:"min_clap_interval_ms"`
	MaxClapIntervalMs   *int64   `json:"max_clap_interval_ms"`
	PatternTimeoutMs    *int64   `json:"pattern_timeout_ms"`
	CooldownMs          *int64   `json:"cooldown_ms"`
	LookbackMs          *int64   `json:"lookback_ms"`

	// Lights
	NormalBrightness   *int `json:"normal_brightness"`
	RelaxingBrightness *int `json:"relaxing_brightness"`
	PartyBrightness    *int `json:"party_brightness"`

	// Notifications
	WebhookURL *string `json:"webhook_url"`
	LogPath    *string `json:"log_path"`
}

// hasDetectionChanges reports whether any detection field is present.
func (r *SettingsUpdateRequest) hasDetectionChanges() bool {
	return r.BaseThreshold != nil || r.ThresholdMultiplier != nil || r.CalibrationBlocks != nil ||
		r.MinClapIntervalMs != nil || r.MaxClapIntervalMs != nil || r.PatternTimeoutMs != nil ||
		r.CooldownMs != nil || r.LookbackMs != nil
}

// handleAPISettings updates all settings atomically.
// POST /api/settings
func (s *Server) handleAPISettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	req, ok := parseJSON[SettingsUpdateRequest](s, w, r)
	if !ok {
		return
	}

	// Track changes that require a detector restart to take effect
	cfg := s.config.Snapshot()
	audioInputChanged := req.AudioInput != nil && *req.AudioInput != cfg.AudioInput
	detectionChanged := req.hasDetectionChanges()

	if req.AudioInput != nil {
		if err := s.config.SetAudioInput(*req.AudioInput); err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	if detectionChanged {
		if err := s.applyDetectionSettings(&req, &cfg); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := s.applyLightSettings(&req, &cfg); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.applyNotificationSettings(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Restart detector so audio input or detection changes take effect
	if audioInputChanged || detectionChanged {
		go func() {
			if s.engine.State() == types.StateRunning {
				if err := s.engine.Restart(); err != nil {
					slog.Error("failed to restart detector after settings change", "error", err)
				}
			}
		}()
	}

	// Broadcast config change to WebSocket clients
	s.broadcastConfigChanged()

	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// applyDetectionSettings applies detection settings from the request.
func (s *Server) applyDetectionSettings(req *SettingsUpdateRequest, cfg *config.Snapshot) error {
	d := config.DetectionConfig{
		BaseThreshold:       cfg.BaseThreshold,
		ThresholdMultiplier: cfg.ThresholdMultiplier,
		CalibrationBlocks:   cfg.CalibrationBlocks,
		MinClapIntervalMs:   cfg.MinClapIntervalMs,
		MaxClapIntervalMs:   cfg.MaxClapIntervalMs,
		PatternTimeoutMs:    cfg.PatternTimeoutMs,
		CooldownMs:          cfg.CooldownMs,
		LookbackMs:          cfg.LookbackMs,
	}

	if req.BaseThreshold != nil {
		d.BaseThreshold = *req.BaseThreshold
	}
	if req.ThresholdMultiplier != nil {
		d.ThresholdMultiplier = *req.ThresholdMultiplier
	}
	if req.CalibrationBlocks != nil {
		d.CalibrationBlocks = *req.CalibrationBlocks
	}
	if req.MinClapIntervalMs != nil {
		d.MinClapIntervalMs = *req.MinClapIntervalMs
	}
	if req.MaxClapIntervalMs != nil {
		d.MaxClapIntervalMs = *req.MaxClapIntervalMs
	}
	if req.PatternTimeoutMs != nil {
		d.PatternTimeoutMs = *req.PatternTimeoutMs
	}
	if req.CooldownMs != nil {
		d.CooldownMs = *req.CooldownMs
	}
	if req.LookbackMs != nil {
		d.LookbackMs = *req.LookbackMs
	}

	return s.config.SetDetection(d)
}

// applyLightSettings applies per-mode brightness settings from the request.
func (s *Server) applyLightSettings(req *SettingsUpdateRequest, cfg *config.Snapshot) error {
	if req.NormalBrightness == nil && req.RelaxingBrightness == nil && req.PartyBrightness == nil {
		return nil
	}

	l := config.LightsConfig{
		NormalBrightness:   cfg.NormalBrightness,
		RelaxingBrightness: cfg.RelaxingBrightness,
		PartyBrightness:    cfg.PartyBrightness,
	}
	if req.NormalBrightness != nil {
		l.NormalBrightness = *req.NormalBrightness
	}
	if req.RelaxingBrightness != nil {
		l.RelaxingBrightness = *req.RelaxingBrightness
	}
	if req.PartyBrightness != nil {
		l.PartyBrightness = *req.PartyBrightness
	}

	if err := s.config.SetLights(l); err != nil {
		return err
	}

	s.lights.SetLevels(lights.Brightness{
		Normal:   l.NormalBrightness,
		Relaxing: l.RelaxingBrightness,
		Party:    l.PartyBrightness,
	})
	return nil
}

// applyNotificationSettings applies notification settings from the request.
func (s *Server) applyNotificationSettings(req *SettingsUpdateRequest) error {
	if req.WebhookURL != nil {
		if err := s.config.SetWebhookURL(*req.WebhookURL); err != nil {
			return err
		}
	}

	if req.LogPath != nil {
		if err := s.config.SetLogPath(*req.LogPath); err != nil {
			return err
		}
	}

	return nil
}

// handleAPIEvents returns recent events from the event log with pagination.
// GET /api/events?limit=50&offset=0&filter=gesture
func (s *Server) handleAPIEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if s.events == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   "Event log not available",
		})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	filter := eventlog.TypeFilter(r.URL.Query().Get("filter"))

	events, hasMore, err := eventlog.ReadLast(s.events.Path(), limit, offset, filter)
	if err != nil {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"events":   events,
		"has_more": hasMore,
	})
}

// Detector control endpoints

// handleDetectorStart starts the clap detector.
// POST /api/detector/start
func (s *Server) handleDetectorStart(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Start(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.broadcastConfigChanged()
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleDetectorStop stops the clap detector.
// POST /api/detector/stop
func (s *Server) handleDetectorStop(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Stop(); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.broadcastConfigChanged()
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleDetectorRestart restarts the clap detector.
// POST /api/detector/restart
func (s *Server) handleDetectorRestart(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Restart(); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.broadcastConfigChanged()
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Light control endpoints

// handleLightsOn turns the lights on.
// POST /api/lights/on
func (s *Server) handleLightsOn(w http.ResponseWriter, r *http.Request) {
	s.lights.TurnOn()
	s.writeJSON(w, http.StatusOK, s.lights.Status())
}

// handleLightsOff turns the lights off.
// POST /api/lights/off
func (s *Server) handleLightsOff(w http.ResponseWriter, r *http.Request) {
	s.lights.TurnOff()
	s.writeJSON(w, http.StatusOK, s.lights.Status())
}

// BrightnessRequest is the request body for POST /api/lights/brightness.
type BrightnessRequest struct {
	Level int `json:"level"`
}

// handleLightsBrightness sets the light brightness.
// POST /api/lights/brightness
func (s *Server) handleLightsBrightness(w http.ResponseWriter, r *http.Request) {
	req, ok := parseJSON[BrightnessRequest](s, w, r)
	if !ok {
		return
	}

	if req.Level < 0 || req.Level > 100 {
		s.writeError(w, http.StatusBadRequest, "level must be between 0 and 100")
		return
	}

	s.lights.SetBrightness(req.Level)
	s.writeJSON(w, http.StatusOK, s.lights.Status())
}

// ModeRequest is the request body for POST /api/lights/mode.
type ModeRequest struct {
	Mode string `json:"mode"`
}

// handleLightsMode switches the lighting mode.
// POST /api/lights/mode
func (s *Server) handleLightsMode(w http.ResponseWriter, r *http.Request) {
	req, ok := parseJSON[ModeRequest](s, w, r)
	if !ok {
		return
	}

	mode := types.LightMode(req.Mode)
	switch mode {
	case types.ModeNormal, types.ModeRelaxing, types.ModeParty:
	default:
		s.writeError(w, http.StatusBadRequest, "unknown mode: "+req.Mode)
		return
	}

	s.lights.SetMode(mode)
	s.writeJSON(w, http.StatusOK, s.lights.Status())
}

// Notification test endpoints

// NotificationTestRequest is the request body for testing notifications.
type NotificationTestRequest struct {
	WebhookURL string `json:"webhook_url,omitempty"`
	LogPath    string `json:"log_path,omitempty"`
}

func (s *Server) handleAPITestWebhook(w http.ResponseWriter, r *http.Request) {
	req, ok := parseJSON[NotificationTestRequest](s, w, r)
	if !ok {
		return
	}

	url := coalesce(req.WebhookURL, s.config.Snapshot().WebhookURL)

	if url == "" {
		s.writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "No webhook URL configured"})
		return
	}

	if err := notify.SendTestWebhook(url); err != nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleAPITestLog(w http.ResponseWriter, r *http.Request) {
	req, ok := parseJSON[NotificationTestRequest](s, w, r)
	if !ok {
		return
	}

	path := coalesce(req.LogPath, s.config.Snapshot().LogPath)

	if path == "" {
		s.writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "No log path configured"})
		return
	}

	if err := notify.WriteTestLog(path); err != nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
