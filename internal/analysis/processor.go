// SPDX-License-Identifier: MIT
package analysis

// SpectrumProvider decouples consumers (band energy, UDP publisher) from
// where the spectrum comes from. Implementations must be safe to read from
// any goroutine while the audio goroutine keeps capturing.
type SpectrumProvider interface {
	// GetMagnitudesInto copies the latest magnitude spectrum into dest and
	// returns the number of bins written.
	GetMagnitudesInto(dest []float64) (int, error)
	// GetFrequencyForBin returns the centre frequency (Hz) of a bin of the
	// latest captured frame.
	GetFrequencyForBin(binIndex int) float64
	// MaxBins is the largest bin count GetMagnitudesInto can return.
	MaxBins() int
	// GetSampleRate returns the sample rate of the analysed stream.
	GetSampleRate() float64
}
