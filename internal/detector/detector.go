// Package detector implements the clap detection and pattern recognition
// engine: continuous PCM ingestion, adaptive ambient calibration, per-block
// clap validation and temporal pattern matching, driving a gesture
// dispatcher.
package detector

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/lumenlabs/claplight/internal/audio"
	"github.com/lumenlabs/claplight/internal/config"
	"github.com/lumenlabs/claplight/internal/types"
	"github.com/lumenlabs/claplight/internal/util"
)

// Sentinel errors for engine operations.
var (
	ErrAlreadyRunning = errors.New("detector already running")
	ErrNotRunning     = errors.New("detector not running")
)

// Dispatcher receives classified gestures. The lighting controller
// implements it and owns its own idempotency; the engine calls it at most
// once per cooldown interval and never while holding the window lock.
type Dispatcher interface {
	Apply(gesture types.Gesture)
}

// Engine manages audio capture and runs the ingest-detect-classify loop.
type Engine struct {
	config     *config.Config
	ffmpegPath string
	dispatcher Dispatcher
	listeners  []func(types.GestureEvent)

	matcher    *Matcher
	calibrator *audio.Calibrator
	peakHolder *audio.PeakHolder

	sourceCmd    *exec.Cmd
	sourceCancel context.CancelFunc
	sourceStdout io.ReadCloser
	state        types.DetectorState
	stopChan     chan struct{}
	mu           sync.RWMutex
	lastError    string
	startTime    time.Time
	retryCount   int
	backoff      *util.Backoff

	levels          types.AudioLevels
	lastKnownLevels types.AudioLevels // cache for TryRLock fallback

	now func() time.Time
}

// New creates an Engine with the given configuration, FFmpeg binary path and
// gesture dispatcher.
func New(cfg *config.Config, ffmpegPath string, dispatcher Dispatcher) *Engine {
	snap := cfg.Snapshot()
	return &Engine{
		config:     cfg,
		ffmpegPath: ffmpegPath,
		dispatcher: dispatcher,
		matcher:    NewMatcher(timingFromSnapshot(&snap)),
		calibrator: audio.NewCalibrator(snap.BaseThreshold, snap.ThresholdMultiplier, snap.CalibrationBlocks),
		peakHolder: audio.NewPeakHolder(),
		state:      types.StateStopped,
		backoff:    util.NewBackoff(types.InitialRetryDelay, types.MaxRetryDelay),
		now:        time.Now,
	}
}

// timingFromSnapshot converts configured millisecond values into Timing.
func timingFromSnapshot(s *config.Snapshot) Timing {
	return Timing{
		MinClapInterval: s.MinClapInterval(),
		MaxClapInterval: s.MaxClapInterval(),
		PatternTimeout:  s.PatternTimeout(),
		Cooldown:        s.Cooldown(),
		Lookback:        s.Lookback(),
	}
}

// OnGesture registers fn to be called for every fired gesture, after the
// dispatcher. Must be called before Start.
func (e *Engine) OnGesture(fn func(types.GestureEvent)) {
	e.listeners = append(e.listeners, fn)
}

// State returns the current detector state.
func (e *Engine) State() types.DetectorState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// IsRunning reports whether the detector is in running state.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state == types.StateRunning
}

// Levels returns the current audio levels.
func (e *Engine) Levels() types.AudioLevels {
	if !e.mu.TryRLock() {
		return e.lastKnownLevels
	}
	defer e.mu.RUnlock()

	if e.state != types.StateRunning {
		return types.AudioLevels{}
	}
	return e.levels
}

// Status returns the current detector status.
func (e *Engine) Status() types.DetectorStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	uptime := ""
	if e.state == types.StateRunning {
		uptime = time.Since(e.startTime).Truncate(time.Second).String()
	}

	return types.DetectorStatus{
		State:            e.state,
		Uptime:           uptime,
		LastError:        e.lastError,
		SourceRetryCount: e.retryCount,
		SourceMaxRetries: types.MaxRetries,
		ClapsInWindow:    e.matcher.Pending(),
	}
}

// Start acquires the audio source and begins the detection loop. A source
// that cannot be acquired is the only failure escalated to the caller; the
// host may continue without clap detection.
func (e *Engine) Start() error {
	snap := e.config.Snapshot()
	if _, _, err := audio.BuildCaptureCommand(snap.AudioInput, e.ffmpegPath); err != nil {
		return util.WrapError("acquire audio source", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == types.StateRunning || e.state == types.StateStarting {
		return ErrAlreadyRunning
	}

	e.state = types.StateStarting
	e.stopChan = make(chan struct{})
	e.retryCount = 0
	e.backoff.Reset()

	// Rebuild from the current snapshot so detection settings apply on restart.
	e.matcher = NewMatcher(timingFromSnapshot(&snap))
	e.calibrator = audio.NewCalibrator(snap.BaseThreshold, snap.ThresholdMultiplier, snap.CalibrationBlocks)
	e.peakHolder.Reset()

	go e.runSourceLoop()

	return nil
}

// Stop signals cancellation and releases the capture process. The capture
// resource is released even when the loop exits through an error path.
func (e *Engine) Stop() error {
	e.mu.Lock()

	if e.state == types.StateStopped || e.state == types.StateStopping {
		e.mu.Unlock()
		return nil
	}

	e.state = types.StateStopping

	if e.stopChan != nil {
		close(e.stopChan)
	}

	sourceProcess := e.sourceCmd
	sourceCancel := e.sourceCancel
	e.mu.Unlock()

	var errs []error

	if sourceProcess != nil && sourceProcess.Process != nil {
		if err := util.GracefulSignal(sourceProcess.Process); err != nil {
			slog.Warn("failed to send signal to capture process", "error", err)
			errs = append(errs, util.WrapError("signal capture process", err))
		}
	}

	stopped := e.pollUntil(func() bool {
		e.mu.RLock()
		defer e.mu.RUnlock()
		return e.sourceCmd == nil
	})

	select {
	case <-stopped:
		slog.Info("audio capture stopped gracefully")
	case <-time.After(types.ShutdownTimeout):
		slog.Warn("audio capture did not stop in time, forcing kill")
		if sourceCancel != nil {
			sourceCancel()
		}
		errs = append(errs, errors.New("capture shutdown timeout"))
	}

	e.mu.Lock()
	e.state = types.StateStopped
	e.sourceCmd = nil
	e.sourceCancel = nil
	e.mu.Unlock()

	return errors.Join(errs...)
}

// Restart stops and starts the detector. Restarting a stopped detector is
// an error; callers start it instead.
func (e *Engine) Restart() error {
	e.mu.RLock()
	state := e.state
	e.mu.RUnlock()
	if state == types.StateStopped {
		return ErrNotRunning
	}

	if err := e.Stop(); err != nil {
		return util.WrapError("stop detector", err)
	}
	time.Sleep(1000 * time.Millisecond)
	return e.Start()
}

// runSourceLoop runs the capture process, restarting it with backoff on
// failure until stopped or retries are exhausted.
func (e *Engine) runSourceLoop() {
	for {
		e.mu.Lock()
		if e.state == types.StateStopping || e.state == types.StateStopped {
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()

		startTime := time.Now()
		stderrOutput, err := e.runSource()
		runDuration := time.Since(startTime)

		e.mu.Lock()
		if err != nil {
			errMsg := err.Error()
			if stderrOutput != "" {
				errMsg = stderrOutput
			}
			e.lastError = errMsg
			slog.Error("audio capture error", "error", errMsg)

			if runDuration >= types.SuccessThreshold {
				e.retryCount = 0
				e.backoff.Reset()
			} else {
				e.retryCount++
			}

			if e.retryCount >= types.MaxRetries {
				slog.Error("audio capture failed, giving up", "attempts", types.MaxRetries)
				e.state = types.StateStopped
				e.lastError = "stopped after repeated capture failures: " + errMsg
				e.mu.Unlock()
				return
			}
		} else {
			e.retryCount = 0
			e.backoff.Reset()
		}

		if e.state == types.StateStopping || e.state == types.StateStopped {
			e.mu.Unlock()
			return
		}

		e.state = types.StateStarting
		retryDelay := e.backoff.Next()
		e.mu.Unlock()

		slog.Info("capture stopped, waiting before restart",
			"delay", retryDelay, "attempt", e.retryCount+1, "max_retries", types.MaxRetries)
		select {
		case <-e.stopChan:
			return
		case <-time.After(retryDelay):
		}
	}
}

// runSource executes one run of the audio capture process.
func (e *Engine) runSource() (string, error) {
	audioInput := e.config.Snapshot().AudioInput
	cmdName, args, err := audio.BuildCaptureCommand(audioInput, e.ffmpegPath)
	if err != nil {
		return "", err
	}

	slog.Info("starting audio capture", "command", cmdName, "input", audioInput)

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, cmdName, args...)

	// Graceful shutdown: signal first, wait, then kill.
	cmd.Cancel = func() error {
		return util.GracefulSignal(cmd.Process)
	}
	cmd.WaitDelay = types.ShutdownTimeout

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return "", err
	}

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.sourceCmd = cmd
		e.sourceCancel = cancel
		e.sourceStdout = stdoutPipe
		e.state = types.StateRunning
		e.startTime = time.Now()
		e.lastError = ""
		e.levels = types.AudioLevels{Calibrating: true}
	}()

	if err := cmd.Start(); err != nil {
		return "", err
	}

	go e.runDetectLoop()

	err = cmd.Wait()

	func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.sourceCmd = nil
		e.sourceCancel = nil
		e.sourceStdout = nil
	}()

	return util.ExtractLastError(stderrBuf.String()), err
}

// runDetectLoop reads fixed-size PCM blocks from the capture process and
// feeds them through the detection pipeline, one iteration per block. The
// blocking read is the loop's only suspension point; cancellation is checked
// once per iteration.
func (e *Engine) runDetectLoop() {
	buf := make([]byte, types.BlockSize*2) // S16LE mono
	samples := make([]int16, 0, types.BlockSize)

	for {
		e.mu.RLock()
		state := e.state
		reader := e.sourceStdout
		stopChan := e.stopChan
		e.mu.RUnlock()

		if state != types.StateRunning || reader == nil {
			return
		}

		select {
		case <-stopChan:
			return
		default:
		}

		n, err := io.ReadFull(reader, buf)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				// Source exited; the source loop handles restart.
				return
			}
			// Transient read error: log, skip the block, keep listening.
			slog.Warn("transient capture read error, skipping block", "error", err)
			continue
		}

		samples = audio.DecodeBlock(buf, n, samples)
		e.processBlock(samples)
	}
}

// processBlock runs one block through feature extraction, calibration,
// validation, debounced admission and pattern evaluation. Gesture dispatch
// happens outside the matcher lock.
func (e *Engine) processBlock(samples []int16) {
	now := e.now()

	feats := audio.Extract(samples)
	threshold := e.calibrator.Update(feats.RMS)
	held := e.peakHolder.Update(feats.Peak, now)

	e.storeLevels(types.AudioLevels{
		RMS:         feats.RMS,
		Peak:        feats.Peak,
		HeldPeak:    held,
		Ambient:     e.calibrator.Ambient(),
		Threshold:   threshold,
		Calibrating: e.calibrator.Calibrating(),
	})

	if feats.Peak > threshold && audio.IsClap(samples, feats.Peak) {
		if e.matcher.Observe(now) {
			slog.Debug("clap accepted", "peak", feats.Peak, "threshold", threshold)
		}
	}

	if ev, fired := e.matcher.Evaluate(now); fired {
		e.dispatch(ev)
	}
}

// dispatch delivers a fired gesture to the dispatcher and listeners.
func (e *Engine) dispatch(ev types.GestureEvent) {
	slog.Info("gesture classified", "gesture", ev.Gesture.String(), "claps", ev.Claps)
	if e.dispatcher != nil {
		e.dispatcher.Apply(ev.Gesture)
	}
	for _, fn := range e.listeners {
		fn(ev)
	}
}

// storeLevels updates the published audio levels.
func (e *Engine) storeLevels(levels types.AudioLevels) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.levels = levels
	e.lastKnownLevels = levels
}

// pollUntil signals when the given condition becomes true.
func (e *Engine) pollUntil(condition func() bool) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		for !condition() {
			time.Sleep(types.PollInterval)
		}
		close(done)
	}()
	return done
}
