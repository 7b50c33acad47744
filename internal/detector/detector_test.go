package detector

import (
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlabs/claplight/internal/config"
	"github.com/lumenlabs/claplight/internal/types"
)

// fakeDispatcher records applied gestures.
type fakeDispatcher struct {
	mu       sync.Mutex
	gestures []types.Gesture
}

func (d *fakeDispatcher) Apply(g types.Gesture) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gestures = append(d.gestures, g)
}

func (d *fakeDispatcher) applied() []types.Gesture {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]types.Gesture(nil), d.gestures...)
}

// fakeClock advances by a fixed step each time the engine asks for the time,
// simulating the per-block cadence of the capture loop.
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) tick() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// blockDuration is how much wall clock one 2048-sample block represents,
// about 46ms at 44.1kHz.
const blockDuration = time.Second * types.BlockSize / types.SampleRate

func newTestEngine(t *testing.T, dispatcher Dispatcher) (*Engine, *fakeClock) {
	t.Helper()

	cfg := config.New(filepath.Join(t.TempDir(), "config.json"))
	engine := New(cfg, "", dispatcher)

	clock := &fakeClock{now: t0, step: blockDuration}
	engine.now = clock.tick
	return engine, clock
}

func quietBlock() []int16 {
	return make([]int16, types.BlockSize)
}

func clapBlock() []int16 {
	samples := make([]int16, types.BlockSize)
	for i := 100; i < types.BlockSize; i++ {
		samples[i] = int16(20000 * math.Exp(-float64(i-100)/10.0))
	}
	return samples
}

func feedBlocks(e *Engine, blocks ...[]int16) {
	for _, b := range blocks {
		e.processBlock(b)
	}
}

func feedQuiet(e *Engine, n int) {
	for i := 0; i < n; i++ {
		e.processBlock(quietBlock())
	}
}

func TestEngineSingleClapGesture(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	engine, _ := newTestEngine(t, dispatcher)

	var events []types.GestureEvent
	engine.OnGesture(func(ev types.GestureEvent) {
		events = append(events, ev)
	})

	// Calibration phase, then one clap, then silence past the pattern
	// timeout (800ms is about 18 blocks at 46ms each).
	feedQuiet(engine, config.DefaultCalibrationBlocks)
	feedBlocks(engine, clapBlock())
	feedQuiet(engine, 20)

	require.Equal(t, []types.Gesture{types.GestureSingle}, dispatcher.applied())
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Claps)
}

func TestEngineDoubleClapGesture(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	engine, _ := newTestEngine(t, dispatcher)

	feedQuiet(engine, config.DefaultCalibrationBlocks)

	// Two claps roughly 300ms apart (6 blocks of silence between).
	feedBlocks(engine, clapBlock())
	feedQuiet(engine, 6)
	feedBlocks(engine, clapBlock())
	feedQuiet(engine, 20)

	assert.Equal(t, []types.Gesture{types.GestureDouble}, dispatcher.applied())
}

func TestEngineAdjacentClapBlocksDebounce(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	engine, _ := newTestEngine(t, dispatcher)

	feedQuiet(engine, config.DefaultCalibrationBlocks)

	// One physical clap ringing across two consecutive blocks must not
	// register as a double.
	feedBlocks(engine, clapBlock(), clapBlock())
	feedQuiet(engine, 20)

	assert.Equal(t, []types.Gesture{types.GestureSingle}, dispatcher.applied())
}

func TestEngineIgnoresQuietAudio(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	engine, _ := newTestEngine(t, dispatcher)

	feedQuiet(engine, config.DefaultCalibrationBlocks+50)

	assert.Empty(t, dispatcher.applied())
}

func TestEngineLevelsPublished(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeDispatcher{})

	engine.processBlock(quietBlock())

	// Levels are cached even though the engine is not in running state.
	engine.mu.RLock()
	levels := engine.lastKnownLevels
	engine.mu.RUnlock()

	assert.True(t, levels.Calibrating)
	assert.InDelta(t, config.DefaultBaseThreshold, levels.Threshold, 1e-9)
}

func TestEngineStateTransitions(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeDispatcher{})

	assert.Equal(t, types.StateStopped, engine.State())
	assert.False(t, engine.IsRunning())

	status := engine.Status()
	assert.Equal(t, types.StateStopped, status.State)
	assert.Empty(t, status.Uptime)
	assert.Equal(t, types.MaxRetries, status.SourceMaxRetries)
}

func TestEngineRestartWhenStopped(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeDispatcher{})
	assert.ErrorIs(t, engine.Restart(), ErrNotRunning)
}

func TestEngineStopWhenStoppedIsNoop(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeDispatcher{})
	assert.NoError(t, engine.Stop())
}

func TestEngineLevelsZeroWhenNotRunning(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeDispatcher{})
	engine.processBlock(clapBlock())

	assert.Equal(t, types.AudioLevels{}, engine.Levels())
}
