package main

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"runtime"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lumenlabs/claplight/internal/audio"
	"github.com/lumenlabs/claplight/internal/config"
	"github.com/lumenlabs/claplight/internal/detector"
	"github.com/lumenlabs/claplight/internal/eventlog"
	"github.com/lumenlabs/claplight/internal/lights"
	"github.com/lumenlabs/claplight/internal/types"
)

// Server is an HTTP server that provides the REST API and live WebSocket feed.
type Server struct {
	config          *config.Config
	engine          *detector.Engine
	lights          *lights.Controller
	events          *eventlog.Logger
	version         *VersionChecker
	ffmpegAvailable bool

	subMu       sync.Mutex
	subscribers map[chan any]struct{}
}

// NewServer returns a new Server wired to the given config, detector engine
// and lighting controller. The events logger may be nil.
func NewServer(cfg *config.Config, engine *detector.Engine, ctrl *lights.Controller, events *eventlog.Logger, ffmpegAvailable bool) *Server {
	return &Server{
		config:          cfg,
		engine:          engine,
		lights:          ctrl,
		events:          events,
		version:         NewVersionChecker(),
		ffmpegAvailable: ffmpegAvailable,
		subscribers:     make(map[chan any]struct{}),
	}
}

// WS message types pushed over the live feed.

// wsStatusResponse is sent to clients with full detector and light status.
type wsStatusResponse struct {
	Type            string               `json:"type"`             // Message type identifier
	FFmpegAvailable bool                 `json:"ffmpeg_available"` // FFmpeg binary is available
	Detector        types.DetectorStatus `json:"detector"`         // Detector status
	Lights          types.LightStatus    `json:"lights"`           // Light state
	Devices         []audio.Device       `json:"devices"`          // Available audio devices
	Settings        wsSettings           `json:"settings"`         // Current settings
	Version         types.VersionInfo    `json:"version"`          // Version information
}

// wsSettings contains the settings sub-object in status responses.
type wsSettings struct {
	AudioInput string `json:"audio_input"` // Selected audio input device
	Platform   string `json:"platform"`    // Operating system platform
}

// wsLevelsResponse is sent to clients with audio level updates.
type wsLevelsResponse struct {
	Type   string            `json:"type"`
	Levels types.AudioLevels `json:"levels"`
}

// wsGestureResponse is sent to clients when a gesture fires.
type wsGestureResponse struct {
	Type    string            `json:"type"`
	Gesture string            `json:"gesture"`
	Claps   int               `json:"claps"`
	Lights  types.LightStatus `json:"lights"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: checkOrigin,
}

// checkOrigin reports whether the WebSocket connection origin is allowed.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// Same-origin requests omit the Origin header
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		slog.Warn("rejected WebSocket connection: invalid origin URL", "origin", origin)
		return false
	}

	host := u.Hostname()

	// Exact localhost matches
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}

	// Same-origin check (compare with request host)
	requestHost := r.Host
	// Strip port from request host for comparison
	if h, _, err := net.SplitHostPort(requestHost); err == nil {
		requestHost = h
	}
	if host == requestHost {
		return true
	}

	// Check private IP ranges using net.IP
	ip := net.ParseIP(host)
	if ip != nil && (ip.IsLoopback() || ip.IsPrivate()) {
		return true
	}

	slog.Warn("rejected WebSocket connection", "origin", origin, "host", host)
	return false
}

// subscribe registers a channel that receives broadcast messages.
func (s *Server) subscribe() chan any {
	ch := make(chan any, 16)
	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()
	return ch
}

// unsubscribe removes a broadcast channel.
func (s *Server) unsubscribe(ch chan any) {
	s.subMu.Lock()
	delete(s.subscribers, ch)
	s.subMu.Unlock()
}

// broadcast delivers a message to all subscribers. Slow clients drop messages
// rather than block the sender.
func (s *Server) broadcast(msg any) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}

// BroadcastGesture pushes a fired gesture and the resulting light state to
// all connected WebSocket clients.
func (s *Server) BroadcastGesture(ev types.GestureEvent, status types.LightStatus) {
	s.broadcast(wsGestureResponse{
		Type:    "gesture",
		Gesture: ev.Gesture.String(),
		Claps:   ev.Claps,
		Lights:  status,
	})
}

// broadcastConfigChanged pushes a fresh status message after config updates.
func (s *Server) broadcastConfigChanged() {
	s.broadcast(s.buildWSStatus())
}

// handleWebSocket handles the live feed connection for real-time updates.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	// Create buffered send channel for thread-safe writes.
	// Only the writer goroutine writes to the connection, preventing race conditions.
	send := make(chan any, 16)
	done := make(chan struct{})

	// Writer goroutine - sole writer to the connection
	go s.runWebSocketWriter(conn, send)

	// Reader goroutine - detects client disconnect
	go s.runWebSocketReader(conn, done)

	s.runWebSocketEventLoop(send, done)
}

// runWebSocketWriter writes messages from the send channel to the connection.
func (s *Server) runWebSocketWriter(conn *websocket.Conn, send <-chan any) {
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("WebSocket close error", "error", err)
		}
	}()
	for msg := range send {
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// runWebSocketReader drains the connection until the client disconnects.
func (s *Server) runWebSocketReader(conn *websocket.Conn, done chan<- struct{}) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in WebSocket reader", "panic", r)
		}
		close(done)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// runWebSocketEventLoop handles periodic status and level updates plus
// gesture broadcasts.
func (s *Server) runWebSocketEventLoop(send chan any, done <-chan struct{}) {
	levelsTicker := time.NewTicker(100 * time.Millisecond)  // 10 fps for level meters
	statusTicker := time.NewTicker(3000 * time.Millisecond) // Status updates every 3s
	defer levelsTicker.Stop()
	defer statusTicker.Stop()

	events := s.subscribe()
	defer s.unsubscribe(events)

	// trySend attempts to send a message, returning false if done is closed
	trySend := func(msg any) bool {
		select {
		case send <- msg:
			return true
		case <-done:
			return false
		}
	}

	// Send initial status
	if !trySend(s.buildWSStatus()) {
		close(send)
		return
	}

	for {
		select {
		case <-done:
			close(send)
			return
		case msg := <-events:
			if !trySend(msg) {
				close(send)
				return
			}
		case <-levelsTicker.C:
			if !trySend(wsLevelsResponse{Type: "levels", Levels: s.engine.Levels()}) {
				close(send)
				return
			}
		case <-statusTicker.C:
			if !trySend(s.buildWSStatus()) {
				close(send)
				return
			}
		}
	}
}

// buildWSStatus returns the current WebSocket status response.
func (s *Server) buildWSStatus() wsStatusResponse {
	cfg := s.config.Snapshot()

	return wsStatusResponse{
		Type:            "status",
		FFmpegAvailable: s.ffmpegAvailable,
		Detector:        s.engine.Status(),
		Lights:          s.lights.Status(),
		Devices:         audio.ListDevices(),
		Settings: wsSettings{
			AudioInput: cfg.AudioInput,
			Platform:   runtime.GOOS,
		},
		Version: s.version.Info(),
	}
}

// SetupRoutes returns an [http.Handler] configured with all application routes.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", s.handleAPIStatus)
	mux.HandleFunc("/api/config", s.handleAPIConfig)
	mux.HandleFunc("/api/devices", s.handleAPIDevices)
	mux.HandleFunc("/api/settings", s.handleAPISettings)
	mux.HandleFunc("/api/events", s.handleAPIEvents)

	mux.HandleFunc("POST /api/detector/start", s.handleDetectorStart)
	mux.HandleFunc("POST /api/detector/stop", s.handleDetectorStop)
	mux.HandleFunc("POST /api/detector/restart", s.handleDetectorRestart)

	mux.HandleFunc("POST /api/lights/on", s.handleLightsOn)
	mux.HandleFunc("POST /api/lights/off", s.handleLightsOff)
	mux.HandleFunc("POST /api/lights/brightness", s.handleLightsBrightness)
	mux.HandleFunc("POST /api/lights/mode", s.handleLightsMode)

	mux.HandleFunc("POST /api/test/webhook", s.handleAPITestWebhook)
	mux.HandleFunc("POST /api/test/log", s.handleAPITestLog)

	mux.HandleFunc("/ws", s.handleWebSocket)

	return securityHeaders(mux)
}

// securityHeaders returns middleware that wraps handlers with security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Start begins the HTTP server.
// Returns an *http.Server that can be used for graceful shutdown.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.config.Snapshot().WebPort)
	slog.Info("starting web server", "addr", addr)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.SetupRoutes(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	return srv
}
