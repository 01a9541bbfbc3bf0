// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"
)

// DefaultGateThreshold is roughly -60 dBFS.
const DefaultGateThreshold = 0.001

// Gate silences input blocks whose peak stays under a threshold, so idle
// noise does not reach the spectral effect. It looks at all channels of a
// block together and is safe to configure while the audio goroutine runs.
type Gate struct {
	enabled   atomic.Bool
	threshold atomic.Uint64 // math.Float64bits
}

// NewGate returns a disabled gate with DefaultGateThreshold.
func NewGate() *Gate {
	g := &Gate{}
	g.SetThreshold(DefaultGateThreshold)
	return g
}

func (g *Gate) Enable()  { g.enabled.Store(true) }
func (g *Gate) Disable() { g.enabled.Store(false) }

// Enabled reports whether the gate is active.
func (g *Gate) Enabled() bool { return g.enabled.Load() }

// SetThreshold adjusts the noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (g *Gate) SetThreshold(threshold float64) {
	threshold = max(0, min(1, threshold))
	g.threshold.Store(math.Float64bits(threshold))
}

// Threshold returns the current noise gate threshold.
func (g *Gate) Threshold() float64 {
	return math.Float64frombits(g.threshold.Load())
}

// Apply zeroes every buffer when the gate is enabled and the block peak is
// below the threshold. It reports whether the block passed.
func (g *Gate) Apply(buffers [][]float64) bool {
	if !g.enabled.Load() {
		return true
	}

	threshold := g.Threshold()
	var peak float64
	for _, buf := range buffers {
		for _, x := range buf {
			peak = max(peak, math.Abs(x))
		}
	}
	if peak > threshold {
		return true
	}

	for _, buf := range buffers {
		clear(buf)
	}
	return false
}
