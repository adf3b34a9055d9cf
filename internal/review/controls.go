package review

import (
	"time"

	"ocr-verifier/internal/model"
)

// SuccessHold is how long a per-item save control shows its success state.
const SuccessHold = 2 * time.Second

// ControlID names one triggering control (a button in the original page).
type ControlID string

const (
	ControlSaveAll   ControlID = "save-all"
	ControlBatch     ControlID = "batch"
	ControlUpload    ControlID = "upload"
	ControlGenerate  ControlID = "generate"
	ControlLMDB      ControlID = "lmdb"
	ControlReprocess ControlID = "reprocess"
)

func SaveControl(k model.Key) ControlID   { return ControlID("save:" + k.ID()) }
func DeleteControl(k model.Key) ControlID { return ControlID("delete:" + k.ID()) }

func DeleteImageControl(name string) ControlID { return ControlID("delete-image:" + name) }

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseBusy
	PhaseSuccess
)

func (p Phase) String() string {
	switch p {
	case PhaseBusy:
		return "busy"
	case PhaseSuccess:
		return "success"
	default:
		return "idle"
	}
}

type controlState struct {
	phase Phase
	// until bounds a transient success; zero means persistent.
	until time.Time
}

// phaseOf resolves expired success states to idle. Caller holds c.mu.
func (c *Controller) phaseOf(id ControlID) Phase {
	st, ok := c.controls[id]
	if !ok {
		return PhaseIdle
	}
	if st.phase == PhaseSuccess && !st.until.IsZero() && !c.now().Before(st.until) {
		delete(c.controls, id)
		return PhaseIdle
	}
	return st.phase
}

// acquire moves a control to busy. Caller holds c.mu.
func (c *Controller) acquire(id ControlID) error {
	if c.phaseOf(id) == PhaseBusy {
		return ErrBusy
	}
	c.controls[id] = controlState{phase: PhaseBusy}
	return nil
}

// release returns a control to idle, or to success for hold (zero hold: idle).
// Caller holds c.mu.
func (c *Controller) release(id ControlID, ok bool, hold time.Duration) {
	if !ok || hold <= 0 {
		delete(c.controls, id)
		return
	}
	c.controls[id] = controlState{phase: PhaseSuccess, until: c.now().Add(hold)}
}

// Control reports the current phase of a control.
func (c *Controller) Control(id ControlID) Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phaseOf(id)
}

// Busy reports whether any control is running.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.controls {
		if c.phaseOf(id) == PhaseBusy {
			return true
		}
	}
	return false
}
