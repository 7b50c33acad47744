package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlabs/claplight/internal/types"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ms(d int) time.Duration {
	return time.Duration(d) * time.Millisecond
}

func TestSingleClapFiresAfterTimeout(t *testing.T) {
	m := NewMatcher(DefaultTiming())

	assert.True(t, m.Observe(t0))

	// Pattern may still be growing.
	_, fired := m.Evaluate(t0.Add(ms(799)))
	assert.False(t, fired)

	ev, fired := m.Evaluate(t0.Add(ms(800)))
	require.True(t, fired)
	assert.Equal(t, types.GestureSingle, ev.Gesture)
	assert.Equal(t, 1, ev.Claps)

	// The window is consumed.
	assert.Zero(t, m.Pending())
	_, fired = m.Evaluate(t0.Add(ms(900)))
	assert.False(t, fired)
}

func TestDoubleClap(t *testing.T) {
	m := NewMatcher(DefaultTiming())

	assert.True(t, m.Observe(t0))
	assert.True(t, m.Observe(t0.Add(ms(300))))

	ev, fired := m.Evaluate(t0.Add(ms(1100)))
	require.True(t, fired)
	assert.Equal(t, types.GestureDouble, ev.Gesture)
	assert.Equal(t, 2, ev.Claps)
}

func TestTripleClap(t *testing.T) {
	m := NewMatcher(DefaultTiming())

	m.Observe(t0)
	m.Observe(t0.Add(ms(200)))
	m.Observe(t0.Add(ms(400)))

	ev, fired := m.Evaluate(t0.Add(ms(1200)))
	require.True(t, fired)
	assert.Equal(t, types.GestureTriple, ev.Gesture)
	assert.Equal(t, 3, ev.Claps)
}

func TestFourClapsCollapseToTriple(t *testing.T) {
	m := NewMatcher(DefaultTiming())

	for i := 0; i < 4; i++ {
		assert.True(t, m.Observe(t0.Add(ms(i*200))))
	}

	ev, fired := m.Evaluate(t0.Add(ms(600 + 800)))
	require.True(t, fired)
	assert.Equal(t, types.GestureTriple, ev.Gesture)
	assert.Equal(t, 4, ev.Claps)

	// Exactly one gesture per burst.
	_, fired = m.Evaluate(t0.Add(ms(1500)))
	assert.False(t, fired)
}

func TestInvalidSpacingDiscardsWindow(t *testing.T) {
	m := NewMatcher(DefaultTiming())

	// 700ms gap exceeds the 600ms maximum; the burst is not a pattern.
	assert.True(t, m.Observe(t0))
	assert.True(t, m.Observe(t0.Add(ms(700))))

	_, fired := m.Evaluate(t0.Add(ms(1500)))
	assert.False(t, fired)
	assert.Zero(t, m.Pending(), "malformed window must be discarded")
}

func TestDebounceMergesBlockSpanningClap(t *testing.T) {
	m := NewMatcher(DefaultTiming())

	assert.True(t, m.Observe(t0))
	assert.False(t, m.Observe(t0.Add(ms(50))), "within debounce interval")
	assert.False(t, m.Observe(t0.Add(ms(119))))
	assert.Equal(t, 1, m.Pending())

	assert.True(t, m.Observe(t0.Add(ms(120))), "at the debounce boundary")
	assert.Equal(t, 2, m.Pending())
}

func TestCooldownDefersNextGesture(t *testing.T) {
	m := NewMatcher(DefaultTiming())

	m.Observe(t0)
	_, fired := m.Evaluate(t0.Add(ms(800)))
	require.True(t, fired)

	// A clap arriving during cooldown is recorded but not evaluated.
	assert.True(t, m.Observe(t0.Add(ms(900))))
	_, fired = m.Evaluate(t0.Add(ms(1700)))
	assert.False(t, fired, "still cooling down")
	assert.Equal(t, 1, m.Pending())

	// Once the cooldown since the last fire has passed, the pending clap
	// resolves normally.
	ev, fired := m.Evaluate(t0.Add(ms(2300)))
	require.True(t, fired)
	assert.Equal(t, types.GestureSingle, ev.Gesture)
}

func TestLookbackPrunesStaleClaps(t *testing.T) {
	m := NewMatcher(DefaultTiming())

	m.Observe(t0)

	// By the time the window is inspected the clap is older than the
	// lookback horizon and nothing fires.
	_, fired := m.Evaluate(t0.Add(ms(2000)))
	assert.False(t, fired)
	assert.Zero(t, m.Pending())
}

func TestEvaluateEmptyWindow(t *testing.T) {
	m := NewMatcher(DefaultTiming())
	_, fired := m.Evaluate(t0)
	assert.False(t, fired)
}

func TestReset(t *testing.T) {
	m := NewMatcher(DefaultTiming())

	m.Observe(t0)
	m.Reset()

	assert.Zero(t, m.Pending())
	_, fired := m.Evaluate(t0.Add(ms(800)))
	assert.False(t, fired)

	// Debounce state is cleared too.
	assert.True(t, m.Observe(t0.Add(ms(10))))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, types.GestureSingle, classify(1))
	assert.Equal(t, types.GestureDouble, classify(2))
	assert.Equal(t, types.GestureTriple, classify(3))
	assert.Equal(t, types.GestureTriple, classify(7))
}

func TestCustomTiming(t *testing.T) {
	timing := Timing{
		MinClapInterval: ms(10),
		MaxClapInterval: ms(50),
		PatternTimeout:  ms(80),
		Cooldown:        ms(150),
		Lookback:        ms(200),
	}
	m := NewMatcher(timing)

	assert.True(t, m.Observe(t0))
	assert.True(t, m.Observe(t0.Add(ms(30))))

	ev, fired := m.Evaluate(t0.Add(ms(110)))
	require.True(t, fired)
	assert.Equal(t, types.GestureDouble, ev.Gesture)
}
