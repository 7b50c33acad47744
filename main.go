// Package main provides a clap-controlled lighting service that listens to a
// microphone, recognizes clap patterns and switches lighting modes.
//
// Usage:
//
//	claplight [-config path/to/config.json]
//
// If -config is not specified, claplight looks for config.json in the same
// directory as the binary.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/lumenlabs/claplight/internal/config"
	"github.com/lumenlabs/claplight/internal/detector"
	"github.com/lumenlabs/claplight/internal/eventlog"
	"github.com/lumenlabs/claplight/internal/lights"
	"github.com/lumenlabs/claplight/internal/notify"
	"github.com/lumenlabs/claplight/internal/types"
	"github.com/lumenlabs/claplight/internal/util"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: config.json next to binary)")
	showVersion := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *showVersion {
		slog.Info("version info", "version", Version, "commit", Commit, "build_time", BuildTime)
		return
	}

	if *configPath == "" {
		execPath, err := os.Executable()
		if err != nil {
			slog.Error("failed to get executable path", "error", err)
			os.Exit(1)
		}
		*configPath = filepath.Join(filepath.Dir(execPath), "config.json")
	}

	slog.Info("using config file", "path", *configPath)

	cfg := config.New(*configPath)
	if err := cfg.Load(); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	snap := cfg.Snapshot()

	// FFmpeg is required for capture on macOS and Windows; Linux uses arecord.
	ffmpegPath := util.ResolveFFmpegPath(snap.FFmpegPath)
	ffmpegAvailable := ffmpegPath != ""
	if !ffmpegAvailable {
		slog.Warn("FFmpeg not found", "configured_path", snap.FFmpegPath)
	} else {
		slog.Info("FFmpeg found", "path", ffmpegPath)
	}

	// Event log failures are not fatal; the service runs without history.
	events, err := eventlog.NewLogger(eventlog.DefaultLogPath(snap.WebPort))
	if err != nil {
		slog.Warn("event log unavailable", "error", err)
		events = nil
	}

	ctrl := lights.NewController(lights.Brightness{
		Normal:   snap.NormalBrightness,
		Relaxing: snap.RelaxingBrightness,
		Party:    snap.PartyBrightness,
	})
	ctrl.OnChange(func(status types.LightStatus) {
		if events != nil {
			if err := events.LogModeChange(status.On, status.Brightness, string(status.Mode)); err != nil {
				slog.Warn("failed to log light change", "error", err)
			}
		}
	})

	engine := detector.New(cfg, ffmpegPath, ctrl)
	srv := NewServer(cfg, engine, ctrl, events, ffmpegAvailable)
	notifier := notify.NewGestureNotifier(cfg)

	engine.OnGesture(func(ev types.GestureEvent) {
		status := ctrl.Status()
		notifier.HandleGesture(ev, status)
		if events != nil {
			if err := events.LogGesture(ev.Gesture.String(), ev.Claps); err != nil {
				slog.Warn("failed to log gesture", "error", err)
			}
		}
		srv.BroadcastGesture(ev, status)
	})

	slog.Info("starting clap detector")
	if err := engine.Start(); err != nil {
		// No usable audio source; keep serving the API so the input can be fixed.
		slog.Error("failed to start clap detector", "error", err)
		if events != nil {
			_ = events.LogDetector(eventlog.CaptureError, snap.AudioInput, err.Error())
		}
	} else if events != nil {
		_ = events.LogDetector(eventlog.DetectorStarted, snap.AudioInput, "")
	}

	// Start web server.
	httpServer := srv.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, util.ShutdownSignals()...)
	<-sigChan

	slog.Info("shutting down")

	// Stop version checker goroutine
	srv.version.Stop()

	// Shut down HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if err := engine.Stop(); err != nil {
		slog.Error("error stopping detector", "error", err)
	}

	if events != nil {
		_ = events.LogDetector(eventlog.DetectorStopped, cfg.AudioInput(), "")
		if err := events.Close(); err != nil {
			slog.Warn("failed to close event log", "error", err)
		}
	}

	slog.Info("shutdown complete")
}
