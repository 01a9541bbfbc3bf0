// SPDX-License-Identifier: MIT
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"spectra/internal/audio"
	"spectra/internal/coordinator"
	"spectra/internal/effect"
	"spectra/pkg/utils"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMonoWAV(t *testing.T, filename string, samples []float64) {
	t.Helper()
	f, err := os.Create(filename)
	require.NoError(t, err)
	defer f.Close()

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 44100},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, x := range samples {
		buf.Data[i] = int(x * 32767)
	}
	enc := wav.NewEncoder(f, 44100, 16, 1, 1)
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := Execute(context.Background(), args, &out)
	return out.String(), err
}

func TestProcessCommand(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "in.wav"), filepath.Join(dir, "out.wav")
	writeMonoWAV(t, in, utils.GenerateSineWave(8192, 44100, 440, 0.5))

	stdout, err := execute(t, "process", in, out,
		"--frame-order", "10", "--bit-depth", "8", "--switch", "2048:11,4096:9:3", "--block-size", "256")
	require.NoError(t, err)

	assert.Contains(t, stdout, "1 channel(s), 44100 Hz, 16-bit")
	assert.Contains(t, stdout, "8192 frames in, 12288 frames out")
	assert.Contains(t, stdout, "2 switch(es) requested, 2 committed, final frame=512 overlap=8")

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(12288*2))
}

func TestProcessCommandRejectsBadFlags(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "in.wav"), filepath.Join(dir, "out.wav")
	writeMonoWAV(t, in, utils.GenerateConstant(1024, 0.1))

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"Frame order outside pool", []string{"--frame-order", "6"}, coordinator.ErrUnsupportedFrameOrder},
		{"Bit depth out of range", []string{"--bit-depth", "20"}, effect.ErrInvalidBitDepth},
		{"Malformed schedule", []string{"--switch", "soon:11"}, audio.ErrSchedule},
		{"Unsupported scheduled order", []string{"--switch", "10:15"}, coordinator.ErrUnsupportedFrameOrder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"process", in, out}, tt.args...)
			_, err := execute(t, args...)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := execute(t, "process", in)
	assert.Error(t, err, "output path is required")
}

func TestConfigFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "spectra.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
engine:
  frame_orders: [9, 10, 11]
  frame_order: 9
  overlap_order: 3
effect:
  bit_depth: 12
`), 0o644))

	o := &options{}
	root := newRootCommand(&bytes.Buffer{}, o)
	process, _, err := root.Find([]string{"process"})
	require.NoError(t, err)
	require.NoError(t, process.ParseFlags([]string{"--config", cfgPath, "--overlap-order", "4"}))

	cfg, err := o.loadConfig(process)
	require.NoError(t, err)
	assert.Equal(t, []int{9, 10, 11}, cfg.Engine.FrameOrders)
	assert.Equal(t, 9, cfg.Engine.FrameOrder, "file value kept")
	assert.Equal(t, 4, cfg.Engine.OverlapOrder, "flag wins over the file")
	assert.Equal(t, 12, cfg.Effect.BitDepth)
}

func TestVersionCommand(t *testing.T) {
	stdout, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "spectra")
}

func TestRootRejectsArguments(t *testing.T) {
	_, err := execute(t, "unexpected")
	assert.Error(t, err)
}
