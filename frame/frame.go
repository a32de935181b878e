// Package frame provides the raw radar frames and the sources that produce them.
//
// A frame is a block of N time domain samples. The radar writes some metadata into
// the tail of the block, this package decodes it into a named Footer.
package frame

import (
	"errors"
	"fmt"
	"math"
)

const (
	DefaultSize = 1024

	// FooterSize is the number of tail samples that carry metadata.
	FooterSize = 4

	prfOffset        = 4
	sampleRateOffset = 3
	validCountOffset = 2
)

var (
	// ErrMalformedFrame indicates a frame that cannot be processed. Only the current frame is affected.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrEndOfStream indicates that a source has no more frames. It is a regular completion, not a failure.
	ErrEndOfStream = errors.New("end of stream")
	// ErrSourceUnavailable indicates that a source failed to provide the next frame.
	ErrSourceUnavailable = errors.New("source unavailable")
)

// Source provides raw frames one after the other.
type Source interface {
	// Next returns the next frame. It returns ErrEndOfStream when there are no more frames.
	Next() (RawFrame, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func() (RawFrame, error)

func (f SourceFunc) Next() (RawFrame, error) {
	return f()
}

// Footer contains the metadata that the radar writes into the last samples of a frame.
type Footer struct {
	ValidCount int     // number of valid samples at the start of the frame
	SampleRate float64 // sampling frequency
	PRF        float64 // pulse repetition frequency
}

// RawFrame is one block of samples as it was received.
type RawFrame struct {
	Samples []float64
	Footer  Footer
}

// Size returns the number of samples of this frame, including the footer.
func (f RawFrame) Size() int {
	return len(f.Samples)
}

// New decodes the footer of the given samples and returns a RawFrame that owns a copy of them.
// The valid sample count is checked to be within [1, len(samples)].
func New(samples []float64) (RawFrame, error) {
	footer, err := DecodeFooter(samples)
	if err != nil {
		return RawFrame{}, err
	}

	result := RawFrame{
		Samples: make([]float64, len(samples)),
		Footer:  footer,
	}
	copy(result.Samples, samples)
	return result, nil
}

// DecodeFooter reads the metadata from the tail of the given samples.
func DecodeFooter(samples []float64) (Footer, error) {
	n := len(samples)
	if n < FooterSize {
		return Footer{}, fmt.Errorf("%w: %d samples are too few for the footer", ErrMalformedFrame, n)
	}

	rawCount := samples[n-validCountOffset]
	if math.IsNaN(rawCount) || rawCount != math.Trunc(rawCount) {
		return Footer{}, fmt.Errorf("%w: invalid sample count %v", ErrMalformedFrame, rawCount)
	}
	if rawCount < 1 || rawCount > float64(n) {
		return Footer{}, fmt.Errorf("%w: sample count %v out of range [1, %d]", ErrMalformedFrame, rawCount, n)
	}

	return Footer{
		ValidCount: int(rawCount),
		SampleRate: samples[n-sampleRateOffset],
		PRF:        samples[n-prfOffset],
	}, nil
}

// EncodeFooter writes the given footer into the tail of the given samples.
func EncodeFooter(samples []float64, footer Footer) {
	n := len(samples)
	if n < FooterSize {
		panic(fmt.Sprintf("a frame needs at least %d samples to carry the footer", FooterSize))
	}
	samples[n-validCountOffset] = float64(footer.ValidCount)
	samples[n-sampleRateOffset] = footer.SampleRate
	samples[n-prfOffset] = footer.PRF
}

// PayloadSize is the maximum number of samples in a frame of the given size that do not overlap with the footer.
func PayloadSize(size int) int {
	return max(0, size-FooterSize)
}

// FromInt16 converts the given samples into a frame of the given size. Missing samples are
// padded with zeros, surplus samples are dropped.
func FromInt16(samples []int16, size int) (RawFrame, error) {
	buf := make([]float64, size)
	for i := 0; i < len(samples) && i < size; i++ {
		buf[i] = float64(samples[i])
	}
	footer, err := DecodeFooter(buf)
	if err != nil {
		return RawFrame{}, err
	}
	return RawFrame{Samples: buf, Footer: footer}, nil
}
