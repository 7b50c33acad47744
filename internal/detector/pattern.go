package detector

import (
	"sync"
	"time"

	"github.com/lumenlabs/claplight/internal/types"
)

// Timing holds the temporal parameters of the pattern state machine.
type Timing struct {
	MinClapInterval time.Duration // same-clap debounce and minimum valid gap
	MaxClapInterval time.Duration // maximum valid gap between claps
	PatternTimeout  time.Duration // quiet duration that finalizes a pattern
	Cooldown        time.Duration // minimum spacing between fired gestures
	Lookback        time.Duration // window pruning horizon
}

// DefaultTiming returns the tuned default timing parameters.
func DefaultTiming() Timing {
	return Timing{
		MinClapInterval: 120 * time.Millisecond,
		MaxClapInterval: 600 * time.Millisecond,
		PatternTimeout:  800 * time.Millisecond,
		Cooldown:        1500 * time.Millisecond,
		Lookback:        2000 * time.Millisecond,
	}
}

// Matcher converts a burst of clap timestamps into at most one classified
// gesture, with debounce and cooldown guarantees. It is safe for concurrent
// use; the lock covers only the append-or-evaluate step.
type Matcher struct {
	mu           sync.Mutex
	timing       Timing
	win          window
	lastAccepted time.Time // last accepted clap, for same-clap debounce
	lastFire     time.Time // last fired gesture, for cooldown
}

// NewMatcher creates a pattern matcher with the given timing.
func NewMatcher(timing Timing) *Matcher {
	return &Matcher{timing: timing}
}

// Observe records a validated clap candidate at time now. It returns false
// when the candidate falls within the same-clap debounce interval of the
// previous accepted clap, so one physical clap spanning multiple blocks
// registers as a single event.
func (m *Matcher) Observe(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lastAccepted.IsZero() && now.Sub(m.lastAccepted) < m.timing.MinClapInterval {
		return false
	}
	m.lastAccepted = now
	m.win.append(now)
	return true
}

// Evaluate advances the state machine at time now. It is driven by wall
// clock on every iteration, not just on new claps, so a pending single clap
// still resolves after its timeout even if no further audio arrives.
// It returns a fired gesture and true at most once per cooldown interval.
func (m *Matcher) Evaluate(now time.Time) (types.GestureEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.win.prune(now, m.timing.Lookback)

	if m.win.len() == 0 {
		return types.GestureEvent{}, false
	}

	// Cooling down after the previous fire; suppresses re-triggering on
	// trailing echoes of a just-classified pattern.
	if !m.lastFire.IsZero() && now.Sub(m.lastFire) < m.timing.Cooldown {
		return types.GestureEvent{}, false
	}

	// The pattern may still be growing.
	if now.Sub(m.win.last()) < m.timing.PatternTimeout {
		return types.GestureEvent{}, false
	}

	// Malformed spacing is expected noise, not an error: discard silently.
	if !m.win.validSpacing(m.timing.MinClapInterval, m.timing.MaxClapInterval) {
		m.win.clear()
		return types.GestureEvent{}, false
	}

	count := m.win.len()
	m.lastFire = now
	m.win.clear()

	return types.GestureEvent{
		Gesture: classify(count),
		Claps:   count,
		At:      now,
	}, true
}

// classify maps a clap count onto a gesture. Four or more claps collapse to
// the triple gesture.
func classify(count int) types.Gesture {
	switch {
	case count >= 3:
		return types.GestureTriple
	case count == 2:
		return types.GestureDouble
	default:
		return types.GestureSingle
	}
}

// Pending returns the number of claps currently in the window.
func (m *Matcher) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.win.len()
}

// Reset clears the window, debounce and cooldown state.
func (m *Matcher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.win.clear()
	m.lastAccepted = time.Time{}
	m.lastFire = time.Time{}
}
