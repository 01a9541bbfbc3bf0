// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"math"

	applog "spectra/internal/log"
	"spectra/internal/transport"

	"gonum.org/v1/gonum/floats"
)

// FrequencyBand defines the name and frequency range for an energy band.
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// DefaultBands splits the audible range in six bands. The last band is
// open-ended up to Nyquist.
var DefaultBands = []FrequencyBand{
	{Name: "sub", LowHz: 20, HighHz: 60},
	{Name: "bass", LowHz: 60, HighHz: 250},
	{Name: "lowMid", LowHz: 250, HighHz: 500},
	{Name: "mid", LowHz: 500, HighHz: 2000},
	{Name: "highMid", LowHz: 2000, HighHz: 4000},
	{Name: "treble", LowHz: 4000, HighHz: math.Inf(1)},
}

// BandEnergyProcessor summarises the latest spectrum as the peak level per
// band, scaled to sine amplitude so switching frame order does not change
// the reading.
type BandEnergyProcessor struct {
	transport transport.Transport
	provider  SpectrumProvider
	bands     []FrequencyBand
	mags      []float64
	energy    []float64
}

// NewBandEnergyProcessor creates a processor reading from provider and
// sending to t. Nil bands selects DefaultBands.
func NewBandEnergyProcessor(t transport.Transport, provider SpectrumProvider, bands []FrequencyBand) (*BandEnergyProcessor, error) {
	if t == nil || provider == nil {
		return nil, errors.New("analysis: band energy needs a transport and a spectrum provider")
	}
	if bands == nil {
		bands = DefaultBands
	}
	applog.Infof("Analysis: Initializing BandEnergyProcessor with %d bands.", len(bands))

	return &BandEnergyProcessor{
		transport: t,
		provider:  provider,
		bands:     bands,
		mags:      make([]float64, provider.MaxBins()),
		energy:    make([]float64, len(bands)),
	}, nil
}

// Bands returns the bands in the order Compute reports them.
func (p *BandEnergyProcessor) Bands() []FrequencyBand { return p.bands }

// Compute fills and returns the per-band levels for the latest spectrum.
// The returned slice is reused by the next call.
func (p *BandEnergyProcessor) Compute() []float64 {
	clear(p.energy)

	n, err := p.provider.GetMagnitudesInto(p.mags)
	if err != nil || n < 2 {
		return p.energy
	}
	mags := p.mags[:n]
	frameSize := float64(2 * (n - 1))
	hzPerBin := p.provider.GetSampleRate() / frameSize

	lo := 0
	for b, band := range p.bands {
		// Bands are contiguous and ascending: walk the bins once.
		for lo < n && float64(lo)*hzPerBin < band.LowHz {
			lo++
		}
		hi := lo
		for hi < n && float64(hi)*hzPerBin < band.HighHz {
			hi++
		}
		if hi > lo {
			// A sine of amplitude A peaks at A·N/4 under a Hann window.
			p.energy[b] = floats.Max(mags[lo:hi]) * 4 / frameSize
		}
		lo = hi
	}
	return p.energy
}

// Process computes the band levels and sends them as a "band_energy" event.
func (p *BandEnergyProcessor) Process() {
	if err := p.transport.Send(p.Event()); err != nil {
		applog.Warnf("BandEnergyProcessor: Error sending band energy data: %v", err)
	}
}

// Event computes the band levels as a "band_energy" event map.
func (p *BandEnergyProcessor) Event() any {
	energy := p.Compute()
	event := make(map[string]any, len(p.bands)+1)
	event["type"] = "band_energy"
	for i, band := range p.bands {
		event[band.Name] = energy[i]
	}
	return event
}
