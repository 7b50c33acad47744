package notify

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lumenlabs/claplight/internal/util"
)

// ModeLogEntry is the JSON structure appended to the notification log file.
type ModeLogEntry struct {
	Timestamp  string `json:"timestamp"`
	Event      string `json:"event"`
	Gesture    string `json:"gesture,omitempty"`
	Claps      int    `json:"claps,omitempty"`
	Mode       string `json:"mode,omitempty"`
	On         bool   `json:"on,omitempty"`
	Brightness int    `json:"brightness,omitempty"`
}

// LogModeChange records a gesture-driven mode change in the log file.
func LogModeChange(logPath, gesture string, claps int, mode string, on bool, brightness int) error {
	return appendLogEntry(logPath, &ModeLogEntry{
		Timestamp:  timestampUTC(),
		Event:      "mode_changed",
		Gesture:    gesture,
		Claps:      claps,
		Mode:       mode,
		On:         on,
		Brightness: brightness,
	})
}

// WriteTestLog writes a test log entry.
func WriteTestLog(logPath string) error {
	if logPath == "" {
		return fmt.Errorf("log file path not configured")
	}

	return appendLogEntry(logPath, &ModeLogEntry{
		Timestamp: timestampUTC(),
		Event:     "test",
	})
}

// appendLogEntry appends a log entry to the file.
func appendLogEntry(logPath string, entry *ModeLogEntry) error {
	if !util.IsConfigured(logPath) {
		return nil
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		return util.WrapError("marshal log entry", err)
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return util.WrapError("open log file", err)
	}
	defer util.SafeCloseFunc(f, "notification log file")()

	if _, err := f.Write(jsonData); err != nil {
		return util.WrapError("write log entry", err)
	}
	if _, err := f.Write([]byte("\n")); err != nil {
		return util.WrapError("write log entry", err)
	}

	return nil
}
