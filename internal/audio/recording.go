// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	applog "spectra/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	ErrAlreadyRecording = errors.New("already recording")
	ErrBitDepth         = errors.New("audio: unsupported bit depth")
)

// Blocks that can be in flight between the audio goroutine and the writer.
const recorderQueue = 32

// Recorder writes processed blocks to a PCM WAV file. Write is called from
// the audio goroutine and never blocks or allocates: blocks are copied into
// a fixed set of buffers and encoded by a writer goroutine. When all
// buffers are in flight the block is dropped and counted.
type Recorder struct {
	file     *os.File
	encoder  *wav.Encoder
	channels int
	frames   int
	scale    float64

	free chan []float64
	full chan []float64
	done chan struct{}
	wg   sync.WaitGroup

	pcm *audio.IntBuffer // Writer goroutine only.
	err error            // First encoder error, read after wg.Wait.

	closed  atomic.Bool
	once    sync.Once
	written atomic.Uint64
	dropped atomic.Uint64
}

// RecordingPath returns a timestamped WAV path in dir.
func RecordingPath(dir string, now time.Time) string {
	return filepath.Join(dir, "spectra-"+now.Format("20060102-150405")+".wav")
}

// NewRecorder creates filename and starts the writer goroutine. frames is
// the largest block Write will be given.
func NewRecorder(filename string, sampleRate, channels, frames, bitDepth int) (*Recorder, error) {
	if bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return nil, fmt.Errorf("%w: %d", ErrBitDepth, bitDepth)
	}
	if channels < 1 || frames < 1 {
		return nil, fmt.Errorf("audio: recorder needs channels and frames, got %d and %d", channels, frames)
	}

	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		file:     file,
		encoder:  wav.NewEncoder(file, sampleRate, bitDepth, channels, 1),
		channels: channels,
		frames:   frames,
		scale:    float64(int64(1)<<(bitDepth-1) - 1),
		free:     make(chan []float64, recorderQueue),
		full:     make(chan []float64, recorderQueue),
		done:     make(chan struct{}),
		pcm: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
			Data:           make([]int, frames*channels),
			SourceBitDepth: bitDepth,
		},
	}
	for range recorderQueue {
		r.free <- make([]float64, frames*channels)
	}

	r.wg.Add(1)
	go r.run()

	applog.Infof("Recorder: writing %d channel(s) at %d Hz, %d-bit to %s", channels, sampleRate, bitDepth, filename)
	return r, nil
}

// Write interleaves one block of per-channel buffers and queues it. Missing
// channels repeat the last buffer given. It reports false if the block was
// dropped.
func (r *Recorder) Write(buffers [][]float64) bool {
	if len(buffers) == 0 || r.closed.Load() {
		return false
	}

	var buf []float64
	select {
	case buf = <-r.free:
	default:
		r.dropped.Add(1)
		return false
	}

	frames := min(len(buffers[0]), r.frames)
	buf = buf[:frames*r.channels]
	for ch := range r.channels {
		src := buffers[min(ch, len(buffers)-1)]
		for i := range frames {
			buf[i*r.channels+ch] = src[i]
		}
	}

	// Never blocks: full has room for every buffer.
	r.full <- buf
	return true
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for {
		select {
		case buf := <-r.full:
			r.encode(buf)
		case <-r.done:
			for {
				select {
				case buf := <-r.full:
					r.encode(buf)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) encode(buf []float64) {
	defer func() { r.free <- buf[:cap(buf)] }()
	if r.err != nil {
		return
	}

	data := r.pcm.Data[:len(buf)]
	for i, x := range buf {
		data[i] = int(math.Round(max(-1, min(1, x)) * r.scale))
	}
	r.pcm.Data = data

	if err := r.encoder.Write(r.pcm); err != nil {
		applog.Errorf("Recorder: error writing to WAV file: %v", err)
		r.err = err
		return
	}
	r.written.Add(uint64(len(buf) / r.channels))
}

// Stats returns the frames written so far and the blocks dropped.
func (r *Recorder) Stats() (written, dropped uint64) {
	return r.written.Load(), r.dropped.Load()
}

// Filename returns the path being written.
func (r *Recorder) Filename() string { return r.file.Name() }

// Close flushes queued blocks and finalises the WAV header. Blocks written
// after Close are ignored. Safe to call more than once.
func (r *Recorder) Close() error {
	var err error
	r.once.Do(func() {
		r.closed.Store(true)
		close(r.done)
		r.wg.Wait()

		err = errors.Join(r.err, r.encoder.Close(), r.file.Close())
		written, dropped := r.Stats()
		applog.Infof("Recorder: closed %s, %d frames written, %d blocks dropped", r.file.Name(), written, dropped)
	})
	return err
}
