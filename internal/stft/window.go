// SPDX-License-Identifier: MIT
package stft

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// hannTable returns frameSize Hann coefficients sampled from a symmetric
// table of frameSize+1 points. Dropping the last point gives the periodic
// window whose squared copies sum to a constant at overlaps >= 4.
func hannTable(frameSize int) []float64 {
	table := make([]float64, frameSize+1)
	for i := range table {
		table[i] = 1.0
	}
	window.Hann(table)
	return table[:frameSize:frameSize]
}

// meanSquare returns the mean of w², the per-sample energy one analysis
// and synthesis pass leaves behind. 3/8 for Hann.
func meanSquare(w []float64) float64 {
	if len(w) == 0 {
		return 0
	}
	return floats.Dot(w, w) / float64(len(w))
}

// windowCorrection returns the gain that cancels the energy added by
// overlapping double-windowed frames: overlap frames cover each sample,
// each contributing w² on average.
func windowCorrection(ms float64, overlap int) (float64, error) {
	c := 1.0 / (float64(overlap) * ms)
	if math.IsNaN(c) || math.IsInf(c, 0) || c <= 0 {
		return 0, fmt.Errorf("%w: %v (overlap %d, window mean square %v)", ErrInvalidCorrection, c, overlap, ms)
	}
	return c, nil
}
