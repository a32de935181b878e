package dsp

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"

	"github.com/ftl/ppi/frame"
)

const (
	// magnitudeFloor keeps the logarithm finite for empty bins.
	magnitudeFloor = 0.001
	// contrastDivisor scales the squared dB values.
	contrastDivisor = 15
)

// Spectrum is the one-sided, contrast-enhanced log-power spectrum of a frame.
type Spectrum = Block[float64]

// Extractor computes the spectrum of raw frames.
type Extractor struct {
	window []float64
}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract conditions the given frame and returns its spectrum with len(frame.Samples)/2+1 bins.
// The frame is not modified.
//
// Only the first ValidCount samples carry signal, the rest is zeroed. The DC offset is the sum of the
// frame divided by ValidCount. The conditioned signal is tapered with a Hamming window before the FFT.
func (e *Extractor) Extract(f frame.RawFrame) (Spectrum, error) {
	size := len(f.Samples)
	if size <= frame.FooterSize {
		return nil, fmt.Errorf("%w: %d samples do not exceed the footer", frame.ErrMalformedFrame, size)
	}
	validCount := f.Footer.ValidCount
	if validCount < 1 || validCount > size {
		return nil, fmt.Errorf("%w: sample count %d out of range [1, %d]", frame.ErrMalformedFrame, validCount, size)
	}

	signal := make(Block[float64], size)
	copy(signal, f.Samples)
	signal.ZeroFrom(validCount)

	mean := signal.Sum() / float64(validCount)
	for i := range signal {
		signal[i] -= mean
	}
	signal.ZeroFrom(validCount)

	w := e.hamming(size)
	for i := range signal {
		signal[i] *= w[i]
	}

	fftResult := fft.FFTReal(signal)
	result := make(Spectrum, size/2+1)
	for i := range result {
		result[i] = LogPower(fftResult[i], validCount)
	}
	return result, nil
}

func (e *Extractor) hamming(size int) []float64 {
	if len(e.window) != size {
		e.window = window.Hamming(size)
	}
	return e.window
}

// LogPower returns the contrast-enhanced dB value of the given FFT bin, normalized to the given number of samples.
func LogPower(fftValue complex128, sampleCount int) float64 {
	dB := 20 * math.Log10(cmplx.Abs(fftValue)/float64(sampleCount)+magnitudeFloor)
	return dB * dB / contrastDivisor
}
