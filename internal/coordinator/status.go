// SPDX-License-Identifier: MIT
package coordinator

import "spectra/internal/stft"

// Phase is the per-channel switch state.
type Phase uint32

const (
	// Stable: one instance is active, all others are idle.
	Stable Phase = iota
	// SwitchPending: a frame order change waits for its targets to be idle.
	SwitchPending
	// SwitchCommitted: the switch happened and the previous instance is
	// still draining or waiting for its reset.
	SwitchCommitted
)

func (p Phase) String() string {
	switch p {
	case Stable:
		return "stable"
	case SwitchPending:
		return "switch-pending"
	case SwitchCommitted:
		return "switch-committed"
	default:
		return "unknown"
	}
}

// MarshalText lets Phase encode as its name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// InstanceStatus describes one pool entry.
type InstanceStatus struct {
	Channel    int    `json:"channel"`
	FrameOrder int    `json:"frame_order"`
	FrameSize  int    `json:"frame_size"`
	State      string `json:"state"`
}

// Status is a point-in-time view for the UI and monitoring transports.
type Status struct {
	Active    Settings         `json:"active"`
	Desired   Settings         `json:"desired"`
	Bypassed  bool             `json:"bypassed"`
	Latency   int              `json:"latency"`
	HopSize   int              `json:"hop_size"`
	Phases    []Phase          `json:"phases"`
	Instances []InstanceStatus `json:"instances"`
	Commits   uint64           `json:"commits"`
	Deferrals uint64           `json:"deferrals"`
	Resets    uint64           `json:"resets"`
}

// Snapshot collects a Status. It allocates and is meant for the control
// side only.
func (c *Coordinator) Snapshot() Status {
	active := c.ActiveSettings()
	s := Status{
		Active:    active,
		Desired:   c.DesiredSettings(),
		Bypassed:  c.Bypassed(),
		Latency:   1 << active.FrameOrder,
		HopSize:   (1 << active.FrameOrder) >> active.OverlapOrder,
		Phases:    make([]Phase, len(c.channels)),
		Instances: make([]InstanceStatus, 0, len(c.channels)*len(c.orders)),
		Commits:   c.commits.Load(),
		Deferrals: c.deferrals.Load(),
		Resets:    c.resets.Load(),
	}

	for i, ch := range c.channels {
		s.Phases[i] = c.Phase(i)
		for _, order := range c.orders {
			s.Instances = append(s.Instances, InstanceStatus{
				Channel:    i,
				FrameOrder: order,
				FrameSize:  1 << order,
				State:      ch.pool[order].State().String(),
			})
		}
	}
	return s
}

// States returns the lifecycle state of every instance of channel ch in
// ascending frame order.
func (c *Coordinator) States(ch int) []stft.State {
	states := make([]stft.State, len(c.orders))
	for i, order := range c.orders {
		states[i] = c.channels[ch].pool[order].State()
	}
	return states
}
