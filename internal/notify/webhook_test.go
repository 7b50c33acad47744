package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendModeWebhook(t *testing.T) {
	var received WebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := SendModeWebhook(srv.URL, "double", 2, "Relaxing", true, 40)
	require.NoError(t, err)

	assert.Equal(t, "mode_changed", received.Event)
	assert.Equal(t, "double", received.Gesture)
	assert.Equal(t, 2, received.Claps)
	assert.Equal(t, "Relaxing", received.Mode)
	assert.True(t, received.On)
	assert.Equal(t, 40, received.Brightness)
	assert.NotEmpty(t, received.Timestamp)
}

func TestSendWebhookErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := SendModeWebhook(srv.URL, "single", 1, "Normal", true, 80)
	assert.ErrorContains(t, err, "500")
}

func TestSendWebhookSkipsUnconfigured(t *testing.T) {
	assert.NoError(t, SendModeWebhook("", "single", 1, "Normal", true, 80))
}

func TestSendTestWebhookRequiresURL(t *testing.T) {
	assert.Error(t, SendTestWebhook(""))
}

func TestLogModeChangeAppendsJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modes.log")

	require.NoError(t, LogModeChange(path, "triple", 3, "Party", true, 100))
	require.NoError(t, LogModeChange(path, "single", 1, "Normal", true, 80))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var entry ModeLogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "mode_changed", entry.Event)
	assert.Equal(t, "triple", entry.Gesture)
	assert.Equal(t, 3, entry.Claps)
	assert.Equal(t, "Party", entry.Mode)
}

func TestWriteTestLog(t *testing.T) {
	assert.Error(t, WriteTestLog(""))

	path := filepath.Join(t.TempDir(), "modes.log")
	require.NoError(t, WriteTestLog(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry ModeLogEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry))
	assert.Equal(t, "test", entry.Event)
}
