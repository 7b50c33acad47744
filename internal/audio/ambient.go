package audio

import "sync"

// Calibration defaults. The threshold multiplier and base threshold were
// tuned against typical living-room microphone sensitivity.
const (
	// DefaultBaseThreshold is the conservative detection floor used before
	// and beneath the ambient-derived threshold.
	DefaultBaseThreshold = 1000.0
	// DefaultThresholdMultiplier scales the ambient level into a threshold.
	DefaultThresholdMultiplier = 3.0
	// DefaultCalibrationBlocks is how many blocks feed the initial estimate.
	DefaultCalibrationBlocks = 30

	// rollingCapacity bounds the ambient sample buffer.
	rollingCapacity = 50
	// quietFactor marks a block as background noise when its RMS is below
	// this fraction of the current threshold. Loud blocks (claps, transient
	// noise) never feed the baseline.
	quietFactor = 0.5
)

// Calibrator maintains a rolling estimate of background noise and derives
// the dynamic detection threshold from it. It is safe for concurrent use.
type Calibrator struct {
	mu         sync.Mutex
	base       float64
	multiplier float64
	warmup     int

	rolling   []float64
	next      int // ring write position once at capacity
	ambient   float64
	threshold float64
	seen      int
}

// NewCalibrator creates a calibrator with the given base threshold,
// ambient multiplier and calibration block count. Zero or negative values
// select the defaults.
func NewCalibrator(base, multiplier float64, warmupBlocks int) *Calibrator {
	if base <= 0 {
		base = DefaultBaseThreshold
	}
	if multiplier <= 0 {
		multiplier = DefaultThresholdMultiplier
	}
	if warmupBlocks <= 0 {
		warmupBlocks = DefaultCalibrationBlocks
	}
	return &Calibrator{
		base:       base,
		multiplier: multiplier,
		warmup:     warmupBlocks,
		rolling:    make([]float64, 0, rollingCapacity),
		threshold:  base,
	}
}

// Update feeds one block's RMS into the calibrator and returns the
// detection threshold to apply to that block.
//
// During the calibration phase every block feeds the rolling buffer and the
// conservative base threshold applies. Afterwards only quiet blocks
// (rms < threshold * quietFactor) are admitted, so the claps being detected
// never drift the baseline upward.
func (c *Calibrator) Update(rms float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seen++

	if c.seen <= c.warmup {
		c.admit(rms)
		if c.seen == c.warmup {
			c.recompute()
		}
		return c.base
	}

	if rms < c.threshold*quietFactor {
		c.admit(rms)
		c.recompute()
	}

	return c.threshold
}

// admit appends an RMS value, replacing the oldest once at capacity.
func (c *Calibrator) admit(rms float64) {
	if len(c.rolling) < rollingCapacity {
		c.rolling = append(c.rolling, rms)
		return
	}
	c.rolling[c.next] = rms
	c.next = (c.next + 1) % rollingCapacity
}

// recompute derives ambient level and threshold from the rolling buffer.
// An empty buffer keeps the last known ambient level so the threshold is
// never NaN.
func (c *Calibrator) recompute() {
	if len(c.rolling) > 0 {
		var sum float64
		for _, v := range c.rolling {
			sum += v
		}
		c.ambient = sum / float64(len(c.rolling))
	}
	c.threshold = max(c.base, c.ambient*c.multiplier)
}

// Threshold returns the current dynamic detection threshold.
func (c *Calibrator) Threshold() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen < c.warmup {
		return c.base
	}
	return c.threshold
}

// Ambient returns the current ambient noise estimate.
func (c *Calibrator) Ambient() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ambient
}

// Calibrating reports whether the initial calibration phase is still running.
func (c *Calibrator) Calibrating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen < c.warmup
}

// Reset clears all calibration state.
func (c *Calibrator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rolling = c.rolling[:0]
	c.next = 0
	c.ambient = 0
	c.threshold = c.base
	c.seen = 0
}
