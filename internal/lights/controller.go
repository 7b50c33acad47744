// Package lights provides the lighting controller driven by classified clap
// gestures. In a real deployment the controller fronts hardware (Hue, Tuya,
// GPIO); here it owns the canonical on/off/brightness/mode state and
// notifies observers of changes.
package lights

import (
	"log/slog"
	"sync"

	"github.com/lumenlabs/claplight/internal/types"
)

// Brightness holds per-mode brightness levels (0-100).
type Brightness struct {
	Normal   int
	Relaxing int
	Party    int
}

// Controller is the mode dispatcher for the clap detector. It is safe for
// concurrent use and owns its own idempotency: redundant mode changes are
// no-ops.
type Controller struct {
	mu         sync.Mutex
	on         bool
	brightness int
	mode       types.LightMode
	levels     Brightness
	onChange   func(types.LightStatus)
}

// NewController creates a controller that is off, at 50% brightness, in
// Normal mode, with the given per-mode brightness levels.
func NewController(levels Brightness) *Controller {
	return &Controller{
		brightness: 50,
		mode:       types.ModeNormal,
		levels:     levels,
	}
}

// OnChange registers fn to be called with a status snapshot after every
// state change. Must be set before the controller is shared.
func (c *Controller) OnChange(fn func(types.LightStatus)) {
	c.onChange = fn
}

// Apply applies a classified gesture by switching to its lighting mode.
func (c *Controller) Apply(gesture types.Gesture) {
	mode := gesture.Mode()
	if mode == "" {
		return
	}
	c.SetMode(mode)
}

// TurnOn turns the lights on.
func (c *Controller) TurnOn() {
	c.mu.Lock()
	if c.on {
		c.mu.Unlock()
		return
	}
	c.on = true
	status := c.statusLocked()
	c.mu.Unlock()

	slog.Info("lights on")
	c.notify(status)
}

// TurnOff turns the lights off.
func (c *Controller) TurnOff() {
	c.mu.Lock()
	if !c.on {
		c.mu.Unlock()
		return
	}
	c.on = false
	status := c.statusLocked()
	c.mu.Unlock()

	slog.Info("lights off")
	c.notify(status)
}

// SetBrightness sets brightness between 0 and 100. Changes are ignored
// while the lights are off.
func (c *Controller) SetBrightness(level int) {
	c.mu.Lock()
	if !c.on {
		c.mu.Unlock()
		slog.Debug("ignored brightness change, lights are off")
		return
	}
	level = max(0, min(100, level))
	if c.brightness == level {
		c.mu.Unlock()
		return
	}
	c.brightness = level
	status := c.statusLocked()
	c.mu.Unlock()

	slog.Info("brightness set", "level", level)
	c.notify(status)
}

// SetMode switches the lighting mode, turning the lights on first if needed,
// and applies the mode's brightness level.
func (c *Controller) SetMode(mode types.LightMode) {
	c.mu.Lock()
	turnedOn := !c.on
	c.on = true

	changed := c.mode != mode
	c.mode = mode
	if level, ok := c.modeBrightness(mode); ok {
		c.brightness = level
	}
	status := c.statusLocked()
	c.mu.Unlock()

	if turnedOn {
		slog.Info("lights on")
	}
	if changed {
		slog.Info("mode switched", "mode", mode)
	}
	if turnedOn || changed {
		c.notify(status)
	}
}

// SetLevels replaces the per-mode brightness levels. The new level for the
// active mode is applied on the next mode switch.
func (c *Controller) SetLevels(levels Brightness) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.levels = levels
}

// modeBrightness returns the configured brightness for a mode.
func (c *Controller) modeBrightness(mode types.LightMode) (int, bool) {
	switch mode {
	case types.ModeNormal:
		return c.levels.Normal, true
	case types.ModeRelaxing:
		return c.levels.Relaxing, true
	case types.ModeParty:
		return c.levels.Party, true
	default:
		return 0, false
	}
}

// Status returns a snapshot of the current lighting state.
func (c *Controller) Status() types.LightStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// statusLocked builds a status snapshot. Caller must hold c.mu.
func (c *Controller) statusLocked() types.LightStatus {
	return types.LightStatus{
		On:         c.on,
		Brightness: c.brightness,
		Mode:       c.mode,
	}
}

// notify delivers a status snapshot to the change observer.
func (c *Controller) notify(status types.LightStatus) {
	if c.onChange != nil {
		c.onChange(status)
	}
}
