// SPDX-License-Identifier: MIT
package cmd

import (
	"slices"

	"spectra/internal/analysis"
	"spectra/internal/config"
	"spectra/internal/coordinator"
	"spectra/internal/effect"
	"spectra/internal/stft"
)

// pipeline is the processing chain shared by the live and offline runs:
// the coordinator, the bit crusher and a spectrum tap after it.
type pipeline struct {
	coord     *coordinator.Coordinator
	crusher   *effect.BitCrusher
	tap       *analysis.SpectrumTap
	transform stft.SpectralTransform
}

func newPipeline(cfg *config.Config) (*pipeline, error) {
	coord, err := coordinator.New(cfg.Coordinator())
	if err != nil {
		return nil, err
	}
	coord.SetBypass(cfg.Engine.Bypass)

	crusher, err := effect.NewBitCrusher(cfg.Effect.BitDepth, cfg.Effect.BitRate)
	if err != nil {
		return nil, err
	}

	tap, err := analysis.NewSpectrumTap(slices.Max(cfg.Engine.FrameOrders), cfg.Audio.SampleRate)
	if err != nil {
		return nil, err
	}

	return &pipeline{
		coord:     coord,
		crusher:   crusher,
		tap:       tap,
		transform: effect.Chain(crusher.Transform(), tap.Transform()),
	}, nil
}
