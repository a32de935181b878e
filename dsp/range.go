package dsp

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	DefaultRangeMultiplier = 0.0576
	DefaultRangeOffset     = 0.7288
)

// Calibration maps a spectrum bin linearly to a range in meters. The values depend on the FFT
// bin resolution and the radar hardware.
type Calibration struct {
	Multiplier float64 `yaml:"multiplier"`
	Offset     float64 `yaml:"offset"`
}

// DefaultCalibration returns the calibration of the reference hardware.
func DefaultCalibration() Calibration {
	return Calibration{
		Multiplier: DefaultRangeMultiplier,
		Offset:     DefaultRangeOffset,
	}
}

// PeakBin returns the index of the maximum of the given spectrum. The lowest index wins if the maximum
// occurs more than once. It returns -1 for an empty spectrum.
func (c Calibration) PeakBin(spectrum Spectrum) int {
	if len(spectrum) == 0 {
		return -1
	}
	return floats.MaxIdx(spectrum)
}

// BinToRange converts the given bin index into a range.
func (c Calibration) BinToRange(bin int) float64 {
	return float64(bin)*c.Multiplier + c.Offset
}

// Estimate returns the range that corresponds to the dominant peak of the given spectrum.
// It returns NaN for an empty spectrum.
func (c Calibration) Estimate(spectrum Spectrum) float64 {
	bin := c.PeakBin(spectrum)
	if bin < 0 {
		return math.NaN()
	}
	return c.BinToRange(bin)
}
