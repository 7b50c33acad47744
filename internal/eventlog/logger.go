// Package eventlog provides unified event logging for claplight.
// It captures detector lifecycle events (started, stopped, capture errors),
// gesture events and light mode changes in a single JSON lines file.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// EventType represents the type of event.
type EventType string

// Detector event types.
const (
	DetectorStarted EventType = "detector_started"
	DetectorStopped EventType = "detector_stopped"
	CaptureError    EventType = "capture_error"
)

// Gesture and lighting event types.
const (
	GestureFired EventType = "gesture_fired"
	ModeChanged  EventType = "mode_changed"
)

// Event represents a single log entry with type-specific details.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Type      EventType `json:"type"`
	Message   string    `json:"msg,omitempty"`
	Details   any       `json:"details,omitempty"`
}

// GestureDetails contains gesture-specific event details.
type GestureDetails struct {
	Gesture string `json:"gesture"`
	Claps   int    `json:"claps"`
}

// LightDetails contains lighting-specific event details.
type LightDetails struct {
	On         bool   `json:"on"`
	Brightness int    `json:"brightness"`
	Mode       string `json:"mode"`
}

// DetectorDetails contains detector lifecycle event details.
type DetectorDetails struct {
	Input string `json:"input,omitempty"`
	Error string `json:"error,omitempty"`
}

// Logger writes events to a JSON lines file.
type Logger struct {
	mu       sync.Mutex
	filePath string
	file     *os.File
	encoder  *json.Encoder
}

// DefaultLogPath returns the platform-specific log file path.
func DefaultLogPath(port int) string {
	switch runtime.GOOS {
	case "windows":
		programData := os.Getenv("PROGRAMDATA")
		if programData == "" {
			programData = `C:\ProgramData`
		}
		return filepath.Join(programData, "claplight", "logs", fmt.Sprintf("%d", port), "claplight.jsonl")
	default: // linux, darwin
		return filepath.Join("/var/log/claplight", fmt.Sprintf("%d", port), "claplight.jsonl")
	}
}

// NewLogger creates a new event logger at the specified path.
func NewLogger(filePath string) (*Logger, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &Logger{
		filePath: filePath,
		file:     file,
		encoder:  json.NewEncoder(file),
	}, nil
}

// Log writes an event to the log file.
func (l *Logger) Log(event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	return l.encoder.Encode(event)
}

// LogGesture logs a fired gesture.
func (l *Logger) LogGesture(gesture string, claps int) error {
	return l.Log(&Event{
		Type:    GestureFired,
		Details: &GestureDetails{Gesture: gesture, Claps: claps},
	})
}

// LogModeChange logs a lighting state change.
func (l *Logger) LogModeChange(on bool, brightness int, mode string) error {
	return l.Log(&Event{
		Type:    ModeChanged,
		Details: &LightDetails{On: on, Brightness: brightness, Mode: mode},
	})
}

// LogDetector logs a detector lifecycle event.
func (l *Logger) LogDetector(eventType EventType, input, errMsg string) error {
	return l.Log(&Event{
		Type:    eventType,
		Details: &DetectorDetails{Input: input, Error: errMsg},
	})
}

// Close closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Path returns the path to the log file.
func (l *Logger) Path() string {
	return l.filePath
}

// TypeFilter specifies which event types to include when reading.
type TypeFilter string

// Filter constants for ReadLast.
const (
	FilterAll      TypeFilter = ""
	FilterDetector TypeFilter = "detector"
	FilterGesture  TypeFilter = "gesture"
	FilterLight    TypeFilter = "light"
)

// MaxReadLimit is the maximum number of events that can be read at once.
// This prevents excessive memory allocation on large log files.
const MaxReadLimit = 500

// matchesFilter reports whether an event type passes the given filter.
func matchesFilter(t EventType, filter TypeFilter) bool {
	switch filter {
	case FilterDetector:
		return t == DetectorStarted || t == DetectorStopped || t == CaptureError
	case FilterGesture:
		return t == GestureFired
	case FilterLight:
		return t == ModeChanged
	default:
		return true
	}
}

// ReadLast reads events from the log file with pagination support.
// Returns up to n events starting from offset, filtered by type, in reverse
// chronological order (newest first). The second return value reports
// whether more events are available beyond the returned page.
func ReadLast(filePath string, n, offset int, filter TypeFilter) ([]Event, bool, error) {
	if n > MaxReadLimit {
		n = MaxReadLimit
	}
	if n <= 0 {
		return []Event{}, false, nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Event{}, false, nil
		}
		return nil, false, err
	}
	defer file.Close() //nolint:errcheck // Read-only operation

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, false, err
	}

	// Parse in reverse order (newest first), applying filter.
	events := make([]Event, 0, n)
	skipped := 0
	hasMore := false
	for i := len(lines) - 1; i >= 0; i-- {
		var event Event
		if err := json.Unmarshal([]byte(lines[i]), &event); err != nil {
			continue // Skip malformed lines
		}
		if !matchesFilter(event.Type, filter) {
			continue
		}

		if skipped < offset {
			skipped++
			continue
		}

		if len(events) >= n {
			hasMore = true
			break
		}
		events = append(events, event)
	}

	return events, hasMore, nil
}
