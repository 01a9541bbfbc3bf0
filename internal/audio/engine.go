// SPDX-License-Identifier: MIT
/*
Package audio runs the coordinator against live and offline audio:
- Full-duplex PortAudio stream with a non-interleaved float32 callback
- Input noise gate ahead of the spectral effect
- WAV recording of the processed output through a writer goroutine
- Offline WAV to WAV processing with scheduled settings changes

Thread Safety:
- The stream callback is the coordinator's audio goroutine
- Buffers are pre-allocated so the callback never allocates
- Recording, gate and coordinator controls are safe from any goroutine
*/
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"spectra/internal/config"
	"spectra/internal/coordinator"
	applog "spectra/internal/log"
	"spectra/internal/stft"

	"github.com/gordonklaus/portaudio"
)

// Engine feeds a duplex audio stream through the coordinator.
type Engine struct {
	// Core configuration and state.
	config    *config.Config
	coord     *coordinator.Coordinator
	transform stft.SpectralTransform
	gate      *Gate

	// Device handling.
	inputDevice    *portaudio.DeviceInfo
	outputDevice   *portaudio.DeviceInfo
	inputChannels  int
	outputChannels int
	inputLatency   time.Duration
	outputLatency  time.Duration
	stream         *portaudio.Stream

	// One buffer per coordinator channel, FramesPerBuffer long, and the
	// per-block views handed to the coordinator.
	work    [][]float64
	buffers [][]float64

	recorder atomic.Pointer[Recorder]

	blocks  atomic.Uint64
	clipped atomic.Uint64
}

// Stats counts what the stream callback has done.
type Stats struct {
	Blocks  uint64 `json:"blocks"`
	Clipped uint64 `json:"clipped"`
}

// NewEngine resolves the configured devices and pre-allocates the callback
// buffers. PortAudio must be initialized.
func NewEngine(cfg *config.Config, coord *coordinator.Coordinator, fn stft.SpectralTransform) (*Engine, error) {
	inputDevice, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}
	outputDevice, err := OutputDevice(cfg.Audio.OutputDevice)
	if err != nil {
		return nil, err
	}

	e := newEngine(cfg, coord, fn)
	e.inputDevice = inputDevice
	e.outputDevice = outputDevice
	e.inputChannels = min(coord.Channels(), inputDevice.MaxInputChannels)
	e.outputChannels = min(coord.Channels(), outputDevice.MaxOutputChannels)
	if e.inputChannels < 1 || e.outputChannels < 1 {
		return nil, fmt.Errorf("%w: %s has no input or %s has no output", ErrDevice, inputDevice.Name, outputDevice.Name)
	}

	if cfg.Audio.LowLatency {
		e.inputLatency = inputDevice.DefaultLowInputLatency
		e.outputLatency = outputDevice.DefaultLowOutputLatency
	} else {
		e.inputLatency = inputDevice.DefaultHighInputLatency
		e.outputLatency = outputDevice.DefaultHighOutputLatency
	}

	applog.Infof("Engine: input %q (%d ch), output %q (%d ch), %.0f Hz, %d frames per buffer",
		inputDevice.Name, e.inputChannels, outputDevice.Name, e.outputChannels,
		cfg.Audio.SampleRate, cfg.Audio.FramesPerBuffer)
	return e, nil
}

// newEngine builds the processing side without touching any device.
func newEngine(cfg *config.Config, coord *coordinator.Coordinator, fn stft.SpectralTransform) *Engine {
	e := &Engine{
		config:    cfg,
		coord:     coord,
		transform: fn,
		gate:      NewGate(),
		work:      make([][]float64, coord.Channels()),
		buffers:   make([][]float64, coord.Channels()),
	}
	for ch := range e.work {
		e.work[ch] = make([]float64, cfg.Audio.FramesPerBuffer)
	}
	return e
}

// Start opens and starts the duplex stream.
func (e *Engine) Start() error {
	if e.stream != nil {
		return errors.New("audio: engine already started")
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   e.inputDevice,
			Channels: e.inputChannels,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Device:   e.outputDevice,
			Channels: e.outputChannels,
			Latency:  e.outputLatency,
		},
		SampleRate:      e.config.Audio.SampleRate,
		FramesPerBuffer: e.config.Audio.FramesPerBuffer,
	}

	stream, err := portaudio.OpenStream(params, e.processStream)
	if err != nil {
		return err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return err
	}
	e.stream = stream

	info := stream.Info()
	applog.Infof("Engine: stream started, input latency %v, output latency %v, processing latency %d samples",
		info.InputLatency, info.OutputLatency, e.coord.LatencyInSamples())
	return nil
}

// Stop stops and closes the stream if it is running.
func (e *Engine) Stop() error {
	if e.stream == nil {
		return nil
	}
	stream := e.stream
	e.stream = nil

	if err := stream.Stop(); err != nil {
		stream.Close()
		return err
	}
	return stream.Close()
}

// Run starts the stream and keeps it running until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return e.Close()
}

// Close stops any recording and the stream.
func (e *Engine) Close() error {
	return errors.Join(e.StopRecording(), e.Stop())
}

// StartRecording writes the processed output to filename until
// StopRecording.
func (e *Engine) StartRecording(filename string) error {
	if e.recorder.Load() != nil {
		return ErrAlreadyRecording
	}

	rec, err := NewRecorder(filename, int(e.config.Audio.SampleRate), e.coord.Channels(),
		e.config.Audio.FramesPerBuffer, e.config.Recording.BitDepth)
	if err != nil {
		return err
	}
	if !e.recorder.CompareAndSwap(nil, rec) {
		return errors.Join(ErrAlreadyRecording, rec.Close())
	}
	return nil
}

// StopRecording finalises the current recording, if any.
func (e *Engine) StopRecording() error {
	rec := e.recorder.Swap(nil)
	if rec == nil {
		return nil
	}
	return rec.Close()
}

// Recording returns the active recorder or nil.
func (e *Engine) Recording() *Recorder { return e.recorder.Load() }

// Gate returns the input gate.
func (e *Engine) Gate() *Gate { return e.gate }

// Stats returns the callback counters.
func (e *Engine) Stats() Stats {
	return Stats{Blocks: e.blocks.Load(), Clipped: e.clipped.Load()}
}

// Latency returns the device latencies plus the active STFT latency.
func (e *Engine) Latency() time.Duration {
	processing := time.Duration(float64(e.coord.LatencyInSamples()) / e.config.Audio.SampleRate * float64(time.Second))
	return e.inputLatency + e.outputLatency + processing
}

// processStream is the PortAudio callback. Blocks longer than the
// pre-allocated buffers are processed in slices so nothing is allocated.
// Performance Critical (Hot Path).
func (e *Engine) processStream(in, out [][]float32) {
	frames := 0
	switch {
	case len(out) > 0:
		frames = len(out[0])
	case len(in) > 0:
		frames = len(in[0])
	}

	chunk := e.config.Audio.FramesPerBuffer
	for off := 0; off < frames; off += chunk {
		e.processChunk(in, out, off, min(chunk, frames-off))
	}
}

func (e *Engine) processChunk(in, out [][]float32, off, n int) {
	for ch, w := range e.work {
		buf := w[:n]
		if len(in) == 0 {
			clear(buf)
		} else {
			// A mono input feeds every channel.
			src := in[min(ch, len(in)-1)][off : off+n]
			for i, x := range src {
				buf[i] = float64(x)
			}
		}
		e.buffers[ch] = buf
	}

	e.gate.Apply(e.buffers)
	e.coord.ProcessBlock(e.buffers, e.transform)

	if rec := e.recorder.Load(); rec != nil {
		rec.Write(e.buffers)
	}

	var clipped uint64
	for ch, dst := range out {
		src := e.buffers[min(ch, len(e.buffers)-1)]
		dst = dst[off : off+n]
		for i, y := range src {
			if y > 1 {
				y = 1
				clipped++
			} else if y < -1 {
				y = -1
				clipped++
			}
			dst[i] = float32(y)
		}
	}
	if clipped > 0 {
		e.clipped.Add(clipped)
	}
	e.blocks.Add(1)
}
