// SPDX-License-Identifier: MIT
package audio

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"spectra/internal/coordinator"
	applog "spectra/internal/log"
	"spectra/internal/stft"
	"spectra/pkg/bitint"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	ErrInvalidWAV  = errors.New("audio: not a PCM WAV file")
	ErrSchedule    = errors.New("audio: invalid switch schedule")
	ErrChannelSize = errors.New("audio: more channels than the engine has")
)

// DefaultBlockSize is the offline block size, and so the granularity at
// which scheduled switches are applied when none falls inside a block.
const DefaultBlockSize = 512

// Switch requests Settings once input sample At is reached.
type Switch struct {
	At       int
	Settings coordinator.Settings
}

// ParseSchedule parses a comma separated list of "sample:frame" or
// "sample:frame:overlapOrder" entries. frame is a frame order, or a
// power-of-two frame size when it is above stft.MaxFrameOrder ("0:2048"
// is "0:11"). overlapOrder is used when an entry leaves it out. The result
// is sorted by sample.
func ParseSchedule(s string, overlapOrder int) ([]Switch, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var schedule []Switch
	for entry := range strings.SplitSeq(s, ",") {
		fields := strings.Split(strings.TrimSpace(entry), ":")
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("%w: %q", ErrSchedule, entry)
		}

		values := []int{0, 0, overlapOrder}
		for i, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil || v < 0 {
				return nil, fmt.Errorf("%w: %q", ErrSchedule, entry)
			}
			values[i] = v
		}
		if values[1] > stft.MaxFrameOrder {
			order, ok := bitint.Order(values[1])
			if !ok {
				return nil, fmt.Errorf("%w: frame size %d is not a power of two", ErrSchedule, values[1])
			}
			values[1] = order
		}
		schedule = append(schedule, Switch{
			At:       values[0],
			Settings: coordinator.Settings{FrameOrder: values[1], OverlapOrder: values[2]},
		})
	}

	slices.SortStableFunc(schedule, func(a, b Switch) int { return cmp.Compare(a.At, b.At) })
	return schedule, nil
}

// FileStats describes one offline run.
type FileStats struct {
	Channels   int
	SampleRate int
	BitDepth   int
	Frames     int // Input frames.
	Written    int // Output frames, including the latency tail.
	Requests   int
	Commits    uint64
}

// ProcessFile runs the PCM WAV file inPath through coord and writes the
// result to outPath in the same format. Engine channels the file lacks are
// fed silence so every channel drains and switches together. Settings in schedule are requested
// at their input sample. The output is the input length plus the largest
// pool latency so nothing is cut off. Without a real-time deadline,
// retired instances are reset inline after each block instead of by the
// reset worker.
func ProcessFile(ctx context.Context, inPath, outPath string, coord *coordinator.Coordinator,
	fn stft.SpectralTransform, schedule []Switch, blockSize int) (FileStats, error) {
	var stats FileStats
	if blockSize < 1 {
		blockSize = DefaultBlockSize
	}

	in, err := os.Open(inPath)
	if err != nil {
		return stats, err
	}
	defer in.Close()

	dec := wav.NewDecoder(in)
	if !dec.IsValidFile() || dec.WavAudioFormat != 1 {
		return stats, fmt.Errorf("%w: %s", ErrInvalidWAV, inPath)
	}
	stats.Channels = int(dec.NumChans)
	stats.SampleRate = int(dec.SampleRate)
	stats.BitDepth = int(dec.BitDepth)
	if stats.BitDepth != 16 && stats.BitDepth != 24 && stats.BitDepth != 32 {
		return stats, fmt.Errorf("%w: %d", ErrBitDepth, stats.BitDepth)
	}
	if stats.Channels < 1 || stats.Channels > coord.Channels() {
		return stats, fmt.Errorf("%w: %d > %d", ErrChannelSize, stats.Channels, coord.Channels())
	}

	out, err := os.Create(outPath)
	if err != nil {
		return stats, err
	}
	defer out.Close()
	enc := wav.NewEncoder(out, stats.SampleRate, stats.BitDepth, stats.Channels, 1)

	r := &fileRunner{
		coord:    coord,
		fn:       fn,
		enc:      enc,
		schedule: schedule,
		scale:    float64(int64(1) << (stats.BitDepth - 1)),
		pcm: &audio.IntBuffer{
			Format:         dec.Format(),
			Data:           make([]int, blockSize*stats.Channels),
			SourceBitDepth: stats.BitDepth,
		},
		channels: stats.Channels,
		work:     make([][]float64, coord.Channels()),
	}
	for ch := range r.work {
		r.work[ch] = make([]float64, blockSize)
	}

	applog.Infof("Offline: %s, %d channel(s), %d Hz, %d-bit, %d scheduled switch(es)",
		inPath, stats.Channels, stats.SampleRate, stats.BitDepth, len(schedule))
	commits := coord.Snapshot().Commits

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		r.pcm.Data = r.pcm.Data[:cap(r.pcm.Data)]
		n, err := dec.PCMBuffer(r.pcm)
		if err != nil && !errors.Is(err, io.EOF) {
			return stats, err
		}
		frames := n / stats.Channels
		if frames == 0 {
			break
		}

		r.deinterleave(frames)
		if err := r.process(frames); err != nil {
			return stats, err
		}
		stats.Frames += frames
	}

	// Flush what is still inside the largest frame.
	for tail := coord.MaxLatencyInSamples(); tail > 0; {
		frames := min(tail, blockSize)
		for ch := range r.work {
			clear(r.work[ch][:frames])
		}
		if err := r.process(frames); err != nil {
			return stats, err
		}
		tail -= frames
	}

	stats.Written = r.written
	stats.Requests = r.requested
	stats.Commits = coord.Snapshot().Commits - commits
	if err := enc.Close(); err != nil {
		return stats, err
	}
	applog.Infof("Offline: wrote %s, %d frames, %d switch(es) committed", outPath, stats.Written, stats.Commits)
	return stats, out.Close()
}

type fileRunner struct {
	coord    *coordinator.Coordinator
	fn       stft.SpectralTransform
	enc      *wav.Encoder
	schedule []Switch
	scale    float64
	channels int // In the file; the rest of work is fed silence.

	pcm     *audio.IntBuffer
	work    [][]float64
	views   [][]float64
	pos     int // Input frames consumed, tail included.
	written int

	requested int
}

func (r *fileRunner) deinterleave(frames int) {
	for ch, w := range r.work {
		if ch >= r.channels {
			clear(w[:frames])
			continue
		}
		for i := range frames {
			w[i] = float64(r.pcm.Data[i*r.channels+ch]) / r.scale
		}
	}
}

// process runs frames samples of r.work, splitting the block where a
// scheduled switch falls so the request lands on its sample.
func (r *fileRunner) process(frames int) error {
	for start := 0; start < frames; {
		for len(r.schedule) > 0 && r.schedule[0].At <= r.pos+start {
			if err := r.coord.Request(r.schedule[0].Settings); err != nil {
				return fmt.Errorf("switch at %d: %w", r.schedule[0].At, err)
			}
			r.schedule = r.schedule[1:]
			r.requested++
		}

		end := frames
		if len(r.schedule) > 0 && r.schedule[0].At < r.pos+frames {
			end = r.schedule[0].At - r.pos
		}

		r.views = r.views[:0]
		for _, w := range r.work {
			r.views = append(r.views, w[start:end])
		}
		r.coord.ProcessBlock(r.views, r.fn)
		r.coord.ResetRetired()
		start = end
	}
	r.pos += frames
	return r.write(frames)
}

func (r *fileRunner) write(frames int) error {
	channels := r.channels
	limit := r.scale - 1
	data := r.pcm.Data[:frames*channels]
	for i := range frames {
		for ch, w := range r.work[:channels] {
			data[i*channels+ch] = int(math.Round(max(-r.scale, min(limit, w[i]*r.scale))))
		}
	}
	r.pcm.Data = data
	if err := r.enc.Write(r.pcm); err != nil {
		return err
	}
	r.written += frames
	return nil
}
