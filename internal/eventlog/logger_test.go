package eventlog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()

	logger, err := NewLogger(filepath.Join(t.TempDir(), "events", "claplight.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

func TestLoggerCreatesDirectory(t *testing.T) {
	logger := newTestLogger(t)
	assert.NotEmpty(t, logger.Path())
}

func TestLogAndReadBack(t *testing.T) {
	logger := newTestLogger(t)

	require.NoError(t, logger.LogDetector(DetectorStarted, "hw:1,0", ""))
	require.NoError(t, logger.LogGesture("double", 2))
	require.NoError(t, logger.LogModeChange(true, 40, "Relaxing"))

	events, hasMore, err := ReadLast(logger.Path(), 10, 0, FilterAll)
	require.NoError(t, err)
	assert.False(t, hasMore)
	require.Len(t, events, 3)

	// Newest first.
	assert.Equal(t, ModeChanged, events[0].Type)
	assert.Equal(t, GestureFired, events[1].Type)
	assert.Equal(t, DetectorStarted, events[2].Type)

	for _, ev := range events {
		assert.False(t, ev.Timestamp.IsZero())
	}
}

func TestReadLastFilter(t *testing.T) {
	logger := newTestLogger(t)

	require.NoError(t, logger.LogDetector(DetectorStarted, "default", ""))
	require.NoError(t, logger.LogGesture("single", 1))
	require.NoError(t, logger.LogGesture("triple", 4))
	require.NoError(t, logger.LogModeChange(true, 100, "Party"))
	require.NoError(t, logger.LogDetector(CaptureError, "default", "device busy"))

	gestures, _, err := ReadLast(logger.Path(), 10, 0, FilterGesture)
	require.NoError(t, err)
	assert.Len(t, gestures, 2)

	detector, _, err := ReadLast(logger.Path(), 10, 0, FilterDetector)
	require.NoError(t, err)
	assert.Len(t, detector, 2)

	light, _, err := ReadLast(logger.Path(), 10, 0, FilterLight)
	require.NoError(t, err)
	assert.Len(t, light, 1)
}

func TestReadLastPagination(t *testing.T) {
	logger := newTestLogger(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, logger.LogGesture("single", 1))
	}

	page, hasMore, err := ReadLast(logger.Path(), 2, 0, FilterAll)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.True(t, hasMore)

	page, hasMore, err = ReadLast(logger.Path(), 2, 4, FilterAll)
	require.NoError(t, err)
	assert.Len(t, page, 1)
	assert.False(t, hasMore)
}

func TestReadLastMissingFile(t *testing.T) {
	events, hasMore, err := ReadLast(filepath.Join(t.TempDir(), "absent.jsonl"), 10, 0, FilterAll)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.False(t, hasMore)
}

func TestReadLastZeroLimit(t *testing.T) {
	logger := newTestLogger(t)
	require.NoError(t, logger.LogGesture("single", 1))

	events, hasMore, err := ReadLast(logger.Path(), 0, 0, FilterAll)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.False(t, hasMore)
}

func TestDefaultLogPathIncludesPort(t *testing.T) {
	path := DefaultLogPath(9090)
	assert.Contains(t, path, "9090")
	assert.Contains(t, path, "claplight")
}
