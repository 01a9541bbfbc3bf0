// SPDX-License-Identifier: MIT
package stft

// State is the lifecycle of a Processor inside an instance pool.
//
//	Idle ──SetInUse(true)──▶ Active ──Retire──▶ Retiring
//	  ▲                        │                   │
//	  │                  PrepareForReset     PrepareForReset
//	  │                        ▼                   │
//	  └── Resetting ◀── PendingReset ◀─────────────┘
//
// Only Idle instances may be activated, and only PendingReset instances
// are touched by a deferred reset, so the audio goroutine and the reset
// goroutine never share an instance. A deferred reset claims its instance
// by moving it to Resetting first, so two resetters never share one
// either.
type State uint32

const (
	// Idle instances are clean and ready to be switched in.
	Idle State = iota
	// Active instances are fed by exactly one channel.
	Active
	// Retiring instances were switched away from and still drain their
	// output FIFO. They are no longer fed fresh samples.
	Retiring
	// PendingReset instances are fully retired and wait for a deferred
	// reset off the audio path.
	PendingReset
	// Resetting instances are being cleared by exactly one resetter.
	Resetting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Retiring:
		return "retiring"
	case PendingReset:
		return "pending-reset"
	case Resetting:
		return "resetting"
	default:
		return "unknown"
	}
}

// Ready reports whether an instance in this state holds no stale samples
// from a previous configuration.
func (s State) Ready() bool {
	return s == Idle || s == Active
}

// InUse reports whether a channel still reads from an instance in this
// state.
func (s State) InUse() bool {
	return s == Active || s == Retiring
}

// State returns the current lifecycle state.
func (p *Processor) State() State {
	return State(p.state.Load())
}

// IsReady reports whether the instance is safe to switch in or is
// already running clean.
func (p *Processor) IsReady() bool {
	return p.State().Ready()
}

// IsInUse reports whether a channel currently reads from the instance.
func (p *Processor) IsInUse() bool {
	return p.State().InUse()
}

// SetInUse moves Idle to Active (use == true) or Active back to Idle
// (use == false). It returns false when the instance was not in the
// required state.
func (p *Processor) SetInUse(use bool) bool {
	if use {
		return p.state.CompareAndSwap(uint32(Idle), uint32(Active))
	}
	return p.state.CompareAndSwap(uint32(Active), uint32(Idle))
}

// Retire marks an Active instance as switched away from. It keeps
// draining but is no longer ready.
func (p *Processor) Retire() bool {
	return p.state.CompareAndSwap(uint32(Active), uint32(Retiring))
}

// PrepareForReset clears both the ready and in-use flags, handing the
// instance to the deferred reset.
func (p *Processor) PrepareForReset() {
	for {
		s := p.state.Load()
		if State(s) == Idle || State(s) == PendingReset || State(s) == Resetting {
			return
		}
		if p.state.CompareAndSwap(s, uint32(PendingReset)) {
			return
		}
	}
}

// ResetIfPending resets the instance only when it waits for a deferred
// reset. It returns true if this call performed the reset; concurrent
// callers race for the claim and only one of them wins.
func (p *Processor) ResetIfPending() bool {
	if !p.state.CompareAndSwap(uint32(PendingReset), uint32(Resetting)) {
		return false
	}
	p.Reset()
	return true
}
