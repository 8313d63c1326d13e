package countdown

import (
	"errors"
	"sync"

	"github.com/kdimtricp/shottime/internal/models"
)

const (
	// TestSeconds is the length of a manually triggered run.
	TestSeconds = 60
	// NotifyAt is the remaining-seconds mark for the advance notification.
	NotifyAt = 30
	// BeepFrom is the remaining-seconds mark from which every second beeps.
	BeepFrom = 10
)

var ErrCountdownActive = errors.New("countdown already active")

type EffectKind string

const (
	EffectNotify30  EffectKind = "notify-30"
	EffectTone      EffectKind = "tone"
	EffectFinalTone EffectKind = "final-tone"
)

// Effect is a side effect owed by a run. Effects carry their RunID so a
// cancelled run's effects can be dropped before dispatch.
type Effect struct {
	Kind      EffectKind
	Remaining int
	RunID     uint64
}

// Controller is a one-shot countdown. Only Tick decrements, and only while running.
type Controller struct {
	mu         sync.Mutex
	phase      models.CountdownPhase
	remaining  int
	runID      uint64
	notified30 bool
	lastBeep   int
}

func NewController() *Controller {
	return &Controller{phase: models.PhaseInactive}
}

// Arm starts a run of the given length. Fails while another run is active.
func (c *Controller) Arm(seconds int) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != models.PhaseInactive {
		return 0, ErrCountdownActive
	}
	return c.start(seconds), nil
}

// Test replaces any current run with a fresh 60 second run.
func (c *Controller) Test() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stop()
	return c.start(TestSeconds)
}

func (c *Controller) start(seconds int) uint64 {
	if seconds < 1 {
		seconds = 1
	}
	c.runID++
	c.phase = models.PhaseRunning
	c.remaining = seconds
	c.notified30 = false
	c.lastBeep = 0
	return c.runID
}

// Tick advances a running countdown by one second and returns the effects due.
func (c *Controller) Tick() []Effect {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != models.PhaseRunning {
		return nil
	}

	if c.remaining > 0 {
		c.remaining--
	}

	var effects []Effect
	switch {
	case c.remaining == NotifyAt && !c.notified30:
		c.notified30 = true
		effects = append(effects, Effect{Kind: EffectNotify30, Remaining: c.remaining, RunID: c.runID})
	case c.remaining >= 1 && c.remaining <= BeepFrom && c.remaining != c.lastBeep:
		c.lastBeep = c.remaining
		effects = append(effects, Effect{Kind: EffectTone, Remaining: c.remaining, RunID: c.runID})
	case c.remaining == 0:
		c.phase = models.PhaseTerminal
		effects = append(effects, Effect{Kind: EffectFinalTone, Remaining: 0, RunID: c.runID})
	}
	return effects
}

// Settle moves a finished run to inactive. It is called one turn after
// the final tone so the transition never happens inside effect dispatch.
func (c *Controller) Settle(runID uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != models.PhaseTerminal || c.runID != runID {
		return false
	}
	c.stop()
	return true
}

// Cancel stops the current run immediately. Reports whether a run was active.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == models.PhaseInactive {
		return false
	}
	c.stop()
	return true
}

func (c *Controller) stop() {
	c.phase = models.PhaseInactive
	c.remaining = 0
}

// Current reports whether runID is still the live run.
func (c *Controller) Current(runID uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase != models.PhaseInactive && c.runID == runID
}

func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase != models.PhaseInactive
}

func (c *Controller) State() models.CountdownState {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := models.CountdownState{
		Active: c.phase == models.PhaseRunning,
		Phase:  c.phase,
		RunID:  c.runID,
	}
	if c.phase != models.PhaseInactive {
		remaining := c.remaining
		state.Remaining = &remaining
		state.Label = models.CountdownLabel(remaining)
	}
	return state
}
