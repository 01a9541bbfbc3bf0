// SPDX-License-Identifier: MIT
/*
Package effect holds spectral transforms that plug into the STFT engine.

BitCrusher quantises bin magnitudes and optionally holds them across
groups of neighbouring bins, keeping each bin's phase. Parameters are
atomics: the control side sets them, the audio side reads them once per
frame.
*/
package effect

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sync/atomic"

	"spectra/internal/stft"
)

const (
	MinBitDepth     = 1
	MaxBitDepth     = 16
	DefaultBitDepth = 16

	MinBitRate     = 1
	MaxBitRate     = 25
	DefaultBitRate = 1
)

var (
	ErrInvalidBitDepth = errors.New("effect: invalid bit depth")
	ErrInvalidBitRate  = errors.New("effect: invalid bit rate")
)

// BitCrusher is a magnitude quantiser and bin-rate reducer.
type BitCrusher struct {
	depth atomic.Int32
	rate  atomic.Int32
}

// NewBitCrusher returns a crusher with the given parameters.
func NewBitCrusher(depth, rate int) (*BitCrusher, error) {
	b := &BitCrusher{}
	if err := b.SetBitDepth(depth); err != nil {
		return nil, err
	}
	if err := b.SetBitRate(rate); err != nil {
		return nil, err
	}
	return b, nil
}

// SetBitDepth sets the number of magnitude quantisation bits.
func (b *BitCrusher) SetBitDepth(depth int) error {
	if depth < MinBitDepth || depth > MaxBitDepth {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidBitDepth, depth, MinBitDepth, MaxBitDepth)
	}
	b.depth.Store(int32(depth))
	return nil
}

// SetBitRate sets how many neighbouring bins share one magnitude.
func (b *BitCrusher) SetBitRate(rate int) error {
	if rate < MinBitRate || rate > MaxBitRate {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidBitRate, rate, MinBitRate, MaxBitRate)
	}
	b.rate.Store(int32(rate))
	return nil
}

func (b *BitCrusher) BitDepth() int { return int(b.depth.Load()) }
func (b *BitCrusher) BitRate() int  { return int(b.rate.Load()) }

// Apply crushes one frame in place. DC and Nyquist are left alone. A bin
// off the rate grid takes the magnitude of the grid bin below it, which
// has already been quantised unless it is DC.
func (b *BitCrusher) Apply(bins []complex128) {
	steps := math.Ldexp(1, b.BitDepth())
	rate := b.BitRate()

	for k := 1; k < len(bins)-1; k++ {
		mag := math.Floor(steps*cmplx.Abs(bins[k])) / steps
		if rate > 1 && k%rate != 0 {
			mag = cmplx.Abs(bins[k-k%rate])
		}
		bins[k] = cmplx.Rect(mag, cmplx.Phase(bins[k]))
	}
}

// Transform returns Apply as an stft.SpectralTransform. Keep the result:
// taking a method value allocates.
func (b *BitCrusher) Transform() stft.SpectralTransform {
	return b.Apply
}

// Chain runs transforms in order. Nil entries are skipped.
func Chain(fns ...stft.SpectralTransform) stft.SpectralTransform {
	chain := make([]stft.SpectralTransform, 0, len(fns))
	for _, fn := range fns {
		if fn != nil {
			chain = append(chain, fn)
		}
	}
	return func(bins []complex128) {
		for _, fn := range chain {
			fn(bins)
		}
	}
}
