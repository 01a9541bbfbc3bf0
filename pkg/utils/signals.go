// Package utils holds test signals and fakes shared by the engine's tests.
package utils

import (
	"math"
	"sync"
)

// MockTransport implements the transport.Transport interface for testing.
type MockTransport struct {
	mu       sync.Mutex
	LastData any
	Count    int
}

// Send stores the data for later inspection instead of transmitting.
// Float slices are copied so callers can reuse their buffers.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if samples, ok := data.([]float64); ok {
		cp := make([]float64, len(samples))
		copy(cp, samples)
		data = cp
	}
	m.LastData = data
	m.Count++
	return nil
}

// Close is a no-op.
func (m *MockTransport) Close() error { return nil }

// Sent returns the last payload and the number of Send calls.
func (m *MockTransport) Sent() (any, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastData, m.Count
}

// GenerateImpulse returns a unit impulse at index 0 followed by zeros.
func GenerateImpulse(size int) []float64 {
	buffer := make([]float64, size)
	if size > 0 {
		buffer[0] = 1
	}
	return buffer
}

// GenerateRamp returns 0, 1, 2, ... scaled by step.
func GenerateRamp(size int, step float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		buffer[i] = float64(i) * step
	}
	return buffer
}

// GenerateConstant returns size copies of value.
func GenerateConstant(size int, value float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		buffer[i] = value
	}
	return buffer
}

// GenerateSineWave returns a sine of the given amplitude and frequency.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = amplitude * math.Sin(2*math.Pi*frequency*t)
	}
	return buffer
}

// GenerateComplexWave returns a 440Hz fundamental with two harmonics,
// peaking below 0.9 full scale.
func GenerateComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = signal * 0.9
	}
	return buffer
}

// MaxStep returns the largest absolute difference between neighbouring
// samples, a cheap discontinuity detector.
func MaxStep(signal []float64) float64 {
	var peak float64
	for i := 1; i < len(signal); i++ {
		if d := math.Abs(signal[i] - signal[i-1]); d > peak {
			peak = d
		}
	}
	return peak
}

// Peak returns the largest absolute sample value.
func Peak(signal []float64) float64 {
	var peak float64
	for _, v := range signal {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}

// FindPeakBin returns the index of the largest magnitude in [startBin, endBin].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
