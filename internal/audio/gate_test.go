// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"strconv"
	"testing"

	"spectra/pkg/utils"
)

var (
	quietBlock = [][]float64{utils.GenerateSineWave(512, 44100, 440, 0.01)}
	loudBlock  = [][]float64{utils.GenerateSineWave(512, 44100, 440, 0.8)}
)

func copyBlock(block [][]float64) [][]float64 {
	out := make([][]float64, len(block))
	for i, b := range block {
		out[i] = append([]float64(nil), b...)
	}
	return out
}

func TestGateEnable(t *testing.T) {
	g := NewGate()
	if g.Enabled() {
		t.Error("Gate should be disabled initially")
	}

	g.Enable()
	g.Enable() // Multiple calls should be idempotent
	if !g.Enabled() {
		t.Error("Gate should be enabled after Enable()")
	}

	g.Disable()
	g.Disable()
	if g.Enabled() {
		t.Error("Gate should be disabled after Disable()")
	}

	if g.Threshold() != DefaultGateThreshold {
		t.Errorf("Default threshold = %v, want %v", g.Threshold(), DefaultGateThreshold)
	}
}

func TestGateThresholdBoundaries(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{-0.1, 0.0}, // Below min
		{0.0, 0.0},  // Minimum
		{0.5, 0.5},  // Middle
		{1.0, 1.0},  // Maximum
		{1.5, 1.0},  // Above max
	}

	g := NewGate()
	for _, tt := range tests {
		t.Run(strconv.FormatFloat(tt.input, 'f', 2, 64), func(t *testing.T) {
			g.SetThreshold(tt.input)
			if got := g.Threshold(); got != tt.expected {
				t.Errorf("Threshold: got %.3f, want %.3f", got, tt.expected)
			}
		})
	}
}

func TestGateApply(t *testing.T) {
	tests := []struct {
		desc      string
		block     [][]float64
		enabled   bool
		threshold float64
		open      bool
	}{
		{"Gate disabled/Quiet signal", quietBlock, false, 0.1, true},
		{"Gate disabled/Loud signal", loudBlock, false, 0.1, true},
		{"Gate enabled/Quiet signal/Low threshold", quietBlock, true, 0.0001, true},
		{"Gate enabled/Quiet signal/Mid threshold", quietBlock, true, 0.1, false},
		{"Gate enabled/Loud signal/Mid threshold", loudBlock, true, 0.1, true},
		{"Gate enabled/Loud signal/High threshold", loudBlock, true, 0.999, false},
		{"Gate enabled/One loud channel", [][]float64{quietBlock[0], loudBlock[0]}, true, 0.1, true},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			g := NewGate()
			g.SetThreshold(tt.threshold)
			if tt.enabled {
				g.Enable()
			}

			block := copyBlock(tt.block)
			if open := g.Apply(block); open != tt.open {
				t.Fatalf("Apply() = %v, want %v", open, tt.open)
			}

			for ch := range block {
				peak := utils.Peak(block[ch])
				if tt.open && math.Abs(peak-utils.Peak(tt.block[ch])) > 1e-12 {
					t.Errorf("channel %d altered by an open gate", ch)
				}
				if !tt.open && peak != 0 {
					t.Errorf("channel %d not silenced by a closed gate: peak %v", ch, peak)
				}
			}
		})
	}
}

func TestGateApplyNoAllocs(t *testing.T) {
	g := NewGate()
	g.Enable()
	block := copyBlock(loudBlock)

	allocs := testing.AllocsPerRun(100, func() {
		g.Apply(block)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in gate, got %.1f", allocs)
	}
}

func BenchmarkGateApply(b *testing.B) {
	g := NewGate()
	g.Enable()
	block := copyBlock([][]float64{loudBlock[0], loudBlock[0]})

	b.ReportAllocs()
	for b.Loop() {
		g.Apply(block)
	}
}
