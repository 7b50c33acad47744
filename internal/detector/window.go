package detector

import "time"

// window is the time-ordered record of accepted clap timestamps. Timestamps
// are strictly increasing because they are produced by a single sequential
// loop. Not safe for concurrent use on its own; the Matcher guards it.
type window struct {
	events []time.Time
}

// append records an accepted clap.
func (w *window) append(t time.Time) {
	w.events = append(w.events, t)
}

// prune drops timestamps older than the lookback horizon. After pruning,
// every remaining t satisfies now.Sub(t) < lookback.
func (w *window) prune(now time.Time, lookback time.Duration) {
	cut := 0
	for cut < len(w.events) && now.Sub(w.events[cut]) >= lookback {
		cut++
	}
	if cut > 0 {
		w.events = append(w.events[:0], w.events[cut:]...)
	}
}

// len returns the number of claps in the window.
func (w *window) len() int {
	return len(w.events)
}

// last returns the most recent clap timestamp. Callers must check len first.
func (w *window) last() time.Time {
	return w.events[len(w.events)-1]
}

// validSpacing reports whether every consecutive gap lies within
// [minGap, maxGap].
func (w *window) validSpacing(minGap, maxGap time.Duration) bool {
	for i := 1; i < len(w.events); i++ {
		gap := w.events[i].Sub(w.events[i-1])
		if gap < minGap || gap > maxGap {
			return false
		}
	}
	return true
}

// clear empties the window.
func (w *window) clear() {
	w.events = w.events[:0]
}
