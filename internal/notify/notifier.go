package notify

import (
	"github.com/lumenlabs/claplight/internal/config"
	"github.com/lumenlabs/claplight/internal/types"
	"github.com/lumenlabs/claplight/internal/util"
)

// GestureNotifier fans a fired gesture and the resulting light state out to
// the configured notification channels. Deliveries run asynchronously so
// audio ingestion is never serialized with notification latency.
type GestureNotifier struct {
	cfg *config.Config
}

// NewGestureNotifier returns a GestureNotifier backed by the given config.
func NewGestureNotifier(cfg *config.Config) *GestureNotifier {
	return &GestureNotifier{cfg: cfg}
}

// HandleGesture delivers notifications for a fired gesture and the light
// state it produced.
func (n *GestureNotifier) HandleGesture(ev types.GestureEvent, status types.LightStatus) {
	cfg := n.cfg.Snapshot()

	if cfg.HasWebhook() {
		go util.LogNotifyResult(func() error {
			return SendModeWebhook(cfg.WebhookURL, ev.Gesture.String(), ev.Claps, string(status.Mode), status.On, status.Brightness)
		}, "mode webhook")
	}

	if cfg.HasLogPath() {
		go util.LogNotifyResult(func() error {
			return LogModeChange(cfg.LogPath, ev.Gesture.String(), ev.Claps, string(status.Mode), status.On, status.Brightness)
		}, "mode log")
	}
}
