// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math/cmplx"
	"sync"
	"sync/atomic"

	applog "spectra/internal/log"
	"spectra/internal/stft"
)

var ErrShortBuffer = errors.New("analysis: destination buffer too short")

// SpectrumTap records the magnitudes of the latest processed frame. It is
// meant to sit at the end of a SpectralTransform chain on the audio
// goroutine, where it must never wait: a frame is skipped while a reader
// holds the lock.
type SpectrumTap struct {
	sampleRate float64
	maxBins    int

	mu        sync.RWMutex // Protects magnitude, bins and frameSize.
	magnitude []float64
	bins      int
	frameSize int

	captured atomic.Uint64
	skipped  atomic.Uint64
}

// Compile-time check.
var _ SpectrumProvider = (*SpectrumTap)(nil)

// NewSpectrumTap sizes the tap for frames of up to 2^maxFrameOrder samples.
func NewSpectrumTap(maxFrameOrder int, sampleRate float64) (*SpectrumTap, error) {
	if err := stft.ValidateOrders(maxFrameOrder, stft.MinOverlapOrder); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("analysis: sample rate must be positive, got %f", sampleRate)
	}

	maxBins := 1<<(maxFrameOrder-1) + 1
	applog.Debugf("Analysis: SpectrumTap for up to %d bins at %.1f Hz", maxBins, sampleRate)

	return &SpectrumTap{
		sampleRate: sampleRate,
		maxBins:    maxBins,
		magnitude:  make([]float64, maxBins),
	}, nil
}

// Capture stores |bins|. It has the SpectralTransform signature and leaves
// bins untouched.
func (t *SpectrumTap) Capture(bins []complex128) {
	if len(bins) > t.maxBins || len(bins) < 2 {
		t.skipped.Add(1)
		return
	}
	if !t.mu.TryLock() {
		t.skipped.Add(1)
		return
	}
	for i, c := range bins {
		t.magnitude[i] = cmplx.Abs(c)
	}
	t.bins = len(bins)
	t.frameSize = 2 * (len(bins) - 1)
	t.mu.Unlock()
	t.captured.Add(1)
}

// Transform returns Capture as an stft.SpectralTransform.
func (t *SpectrumTap) Transform() stft.SpectralTransform {
	return t.Capture
}

// GetMagnitudesInto copies the latest frame's magnitudes into dest. It
// returns 0 bins before the first capture.
func (t *SpectrumTap) GetMagnitudesInto(dest []float64) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(dest) < t.bins {
		return 0, fmt.Errorf("%w: %d < %d", ErrShortBuffer, len(dest), t.bins)
	}
	return copy(dest, t.magnitude[:t.bins]), nil
}

// GetMagnitudes returns a copy of the latest magnitudes. It allocates; use
// GetMagnitudesInto on periodic paths.
func (t *SpectrumTap) GetMagnitudes() []float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]float64(nil), t.magnitude[:t.bins]...)
}

// GetFrequencyForBin returns binIndex·sampleRate/frameSize for the latest
// captured frame, or 0 when out of range.
func (t *SpectrumTap) GetFrequencyForBin(binIndex int) float64 {
	t.mu.RLock()
	bins, frameSize := t.bins, t.frameSize
	t.mu.RUnlock()

	if binIndex < 0 || binIndex >= bins {
		return 0
	}
	return float64(binIndex) * t.sampleRate / float64(frameSize)
}

// FrameSize returns the frame size of the latest capture.
func (t *SpectrumTap) FrameSize() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frameSize
}

func (t *SpectrumTap) MaxBins() int           { return t.maxBins }
func (t *SpectrumTap) GetSampleRate() float64 { return t.sampleRate }

// Stats returns how many frames were captured and skipped.
func (t *SpectrumTap) Stats() (captured, skipped uint64) {
	return t.captured.Load(), t.skipped.Load()
}
