// SPDX-License-Identifier: MIT
/*
Package stft implements a streaming short-time Fourier transform with
windowed overlap-add resynthesis.

A Processor consumes one sample at a time, fires a frame every hop,
hands the frame's bins to a caller-supplied SpectralTransform and adds the
resynthesised frame back into its output FIFO. Output is delayed by
exactly one frame size.

Thread Safety:
- A Processor is mono and must be driven by one goroutine at a time
- ProcessSample touches pre-allocated buffers only (no allocations, no locks)
- The lifecycle State is atomic so a pool can be managed across goroutines
*/
package stft

import (
	"errors"
	"fmt"
	"sync/atomic"

	"spectra/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// Order limits. Squared Hann windows only sum to a constant from 4x
// overlap up, and a hop must span at least one sample, so the smallest
// frame is 2^3. 2^16 keeps a full pool within a few megabytes.
const (
	MinOverlapOrder = 2
	MinFrameOrder   = MinOverlapOrder + 1
	MaxFrameOrder   = 16
)

var (
	ErrInvalidFrameOrder   = errors.New("stft: invalid frame order")
	ErrInvalidOverlapOrder = errors.New("stft: invalid overlap order")
	ErrInvalidCorrection   = errors.New("stft: invalid window correction")
)

// SpectralTransform mutates the bins of one frame in place. bins has
// FrameSize/2+1 entries; bins[0] is DC and the last entry is Nyquist.
// Implementations run on the audio goroutine and must not block or
// allocate.
type SpectralTransform func(bins []complex128)

// Processor is a windowed overlap-add transform for one channel at one
// frame size.
type Processor struct {
	frameOrder   int
	frameSize    int
	overlapOrder int
	overlap      int
	hopSize      int
	binCount     int
	correction   float64

	fft        *fourier.FFT
	window     []float64
	meanSquare float64

	inputFifo  []float64
	outputFifo []float64
	frame      []float64    // Time-domain frame in chronological order.
	bins       []complex128 // Spectrum of frame.

	pos   int // Shared input-write / output-read cursor.
	count int // Samples since the last frame.

	state atomic.Uint32
}

// ValidateOrders checks a frame/overlap order pair without building
// anything. The overlap factor must be at least 4 for unity gain and stay
// below the frame size so every hop spans at least two samples.
func ValidateOrders(frameOrder, overlapOrder int) error {
	if frameOrder < MinFrameOrder || frameOrder > MaxFrameOrder {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidFrameOrder, frameOrder, MinFrameOrder, MaxFrameOrder)
	}
	if overlapOrder < MinOverlapOrder || overlapOrder >= frameOrder {
		return fmt.Errorf("%w: %d must be in [%d, %d) for frame order %d",
			ErrInvalidOverlapOrder, overlapOrder, MinOverlapOrder, frameOrder, frameOrder)
	}
	return nil
}

// New allocates a Processor for frames of 2^frameOrder samples overlapped
// 2^overlapOrder times. The returned Processor is Idle and zeroed.
func New(frameOrder, overlapOrder int) (*Processor, error) {
	if err := ValidateOrders(frameOrder, overlapOrder); err != nil {
		return nil, err
	}

	frameSize := bitint.FromOrder(frameOrder)
	w := hannTable(frameSize)

	p := &Processor{
		frameOrder: frameOrder,
		frameSize:  frameSize,
		binCount:   frameSize/2 + 1,
		fft:        fourier.NewFFT(frameSize),
		window:     w,
		meanSquare: meanSquare(w),
		inputFifo:  make([]float64, frameSize),
		outputFifo: make([]float64, frameSize),
		frame:      make([]float64, frameSize),
		bins:       make([]complex128, frameSize/2+1),
	}

	if err := p.HandleConfigurationChange(overlapOrder); err != nil {
		return nil, err
	}
	return p, nil
}

// Reset zeroes both FIFOs and the cursors and returns the instance to
// Idle. It is the only operation that discards buffered samples.
func (p *Processor) Reset() {
	p.count = 0
	p.pos = 0
	clear(p.inputFifo)
	clear(p.outputFifo)
	p.state.Store(uint32(Idle))
}

// HandleConfigurationChange switches the overlap factor in place. Buffers
// are kept: the change moves when the next frame fires, not the sample
// history. Call it between samples, never from inside a transform.
func (p *Processor) HandleConfigurationChange(overlapOrder int) error {
	if err := ValidateOrders(p.frameOrder, overlapOrder); err != nil {
		return err
	}

	overlap := bitint.FromOrder(overlapOrder)
	correction, err := windowCorrection(p.meanSquare, overlap)
	if err != nil {
		return err
	}

	p.overlapOrder = overlapOrder
	p.overlap = overlap
	p.hopSize = p.frameSize / overlap
	p.correction = correction
	return nil
}

// ProcessSample pushes one input sample and returns the output sample
// delayed by FrameSize. When bypassed the frame is only windowed, and fn
// is not called.
func (p *Processor) ProcessSample(sample float64, bypassed bool, fn SpectralTransform) float64 {
	p.inputFifo[p.pos] = sample
	out := p.outputFifo[p.pos]
	p.outputFifo[p.pos] = 0

	p.pos++
	if p.pos == p.frameSize {
		p.pos = 0
	}

	// >= rather than == so a hop shrunk by an overlap change still fires.
	p.count++
	if p.count >= p.hopSize {
		p.count = 0
		p.processFrame(bypassed, fn)
	}

	return out
}

// ProcessBlock runs ProcessSample over buf in place.
func (p *Processor) ProcessBlock(buf []float64, bypassed bool, fn SpectralTransform) {
	for i, x := range buf {
		buf[i] = p.ProcessSample(x, bypassed, fn)
	}
}

// DrainSample reads and clears the next pending output sample without
// feeding input or firing frames. Used to fade out a retiring instance.
func (p *Processor) DrainSample() float64 {
	out := p.outputFifo[p.pos]
	p.outputFifo[p.pos] = 0

	p.pos++
	if p.pos == p.frameSize {
		p.pos = 0
	}
	return out
}

// Prime loads recent input history into a clean instance before it is
// switched in, so its first frames fade in from the live signal rather
// than from silence. older and newer are the two chronological halves of
// one history, as split by a ring buffer; only the last FrameSize samples
// are kept. Output is unaffected: the instance still starts silent.
func (p *Processor) Prime(older, newer []float64) {
	n := p.frameSize
	p.pos = 0
	p.count = 0

	if len(newer) >= n {
		copy(p.inputFifo, newer[len(newer)-n:])
		return
	}
	if need := n - len(newer); len(older) > need {
		older = older[len(older)-need:]
	}

	off := n - len(newer) - len(older)
	clear(p.inputFifo[:off])
	copy(p.inputFifo[off:], older)
	copy(p.inputFifo[off+len(older):], newer)
}

// processFrame transforms the latest frameSize input samples and adds the
// result into the output FIFO.
func (p *Processor) processFrame(bypassed bool, fn SpectralTransform) {
	n, pos := p.frameSize, p.pos

	// The oldest sample sits at pos: unroll the circle chronologically.
	copy(p.frame, p.inputFifo[pos:])
	copy(p.frame[n-pos:], p.inputFifo[:pos])

	floats.Mul(p.frame, p.window)

	scale := p.correction
	if !bypassed {
		p.fft.Coefficients(p.bins, p.frame)
		if fn != nil {
			fn(p.bins)
		}
		p.fft.Sequence(p.frame, p.bins)
		// gonum's inverse is unnormalised.
		scale /= float64(n)
	}

	floats.Mul(p.frame, p.window)
	floats.Scale(scale, p.frame)

	// Same split as above, in reverse: the frame's tail lands before pos.
	floats.Add(p.outputFifo[:pos], p.frame[n-pos:])
	floats.Add(p.outputFifo[pos:], p.frame[:n-pos])
}

// LatencyInSamples returns the fixed delay between input and output.
func (p *Processor) LatencyInSamples() int { return p.frameSize }

// FrameOrder returns log2 of the frame size.
func (p *Processor) FrameOrder() int { return p.frameOrder }

// FrameSize returns the number of samples per frame.
func (p *Processor) FrameSize() int { return p.frameSize }

// OverlapOrder returns log2 of the overlap factor.
func (p *Processor) OverlapOrder() int { return p.overlapOrder }

// Overlap returns the overlap factor.
func (p *Processor) Overlap() int { return p.overlap }

// HopSize returns the number of samples between frames.
func (p *Processor) HopSize() int { return p.hopSize }

// BinCount returns the number of bins handed to a SpectralTransform.
func (p *Processor) BinCount() int { return p.binCount }

// WindowCorrection returns the gain applied after the synthesis window.
func (p *Processor) WindowCorrection() float64 { return p.correction }
