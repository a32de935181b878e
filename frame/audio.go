package frame

import (
	"log"
	"math"
	"sync"
)

// AudioAssembler collects audio samples from a sound card front end into frames.
// It is written to by the audio stream and read by the tick driver. If the driver did not take the
// previous frame yet, the next completed frame is dropped.
type AudioAssembler struct {
	size         int
	sampleRate   int
	prf          float64
	channelCount int

	current []float64
	fill    int
	channel int

	frames    chan RawFrame
	closeOnce sync.Once
	closed    chan struct{}
	dropped   int
}

// NewAudioAssembler returns an assembler for frames of the given size.
func NewAudioAssembler(size int, sampleRate int, prf float64) *AudioAssembler {
	return &AudioAssembler{
		size:         size,
		sampleRate:   sampleRate,
		prf:          prf,
		channelCount: 1,
		current:      make([]float64, size),
		frames:       make(chan RawFrame, 1),
		closed:       make(chan struct{}),
	}
}

// SetChannelCount sets the number of interleaved channels of the audio stream. Only the first channel is used.
func (a *AudioAssembler) SetChannelCount(channelCount int) {
	a.channelCount = max(1, channelCount)
}

// Write takes interleaved float32 samples in the range [-1, 1].
func (a *AudioAssembler) Write(samples []float32) (int, error) {
	payloadSize := PayloadSize(a.size)
	if payloadSize == 0 {
		return len(samples), nil
	}
	for _, sample := range samples {
		channel := a.channel
		a.channel = (a.channel + 1) % a.channelCount
		if channel != 0 {
			continue
		}

		a.current[a.fill] = math.Round(math.Max(-1, math.Min(1, float64(sample))) * math.MaxInt16)
		a.fill++
		if a.fill == payloadSize {
			a.emit()
		}
	}
	return len(samples), nil
}

func (a *AudioAssembler) emit() {
	payloadSize := PayloadSize(a.size)
	footer := Footer{
		ValidCount: payloadSize,
		SampleRate: float64(a.sampleRate),
		PRF:        a.prf,
	}
	EncodeFooter(a.current, footer)

	frame := RawFrame{
		Samples: a.current,
		Footer:  footer,
	}
	a.current = make([]float64, a.size)
	a.fill = 0

	select {
	case <-a.closed:
	case a.frames <- frame:
	default:
		a.dropped++
		if a.dropped%100 == 1 {
			log.Printf("audio frame dropped (%d so far)", a.dropped)
		}
	}
}

// Next blocks until the next frame is complete. After Close, it returns ErrEndOfStream.
func (a *AudioAssembler) Next() (RawFrame, error) {
	select {
	case <-a.closed:
		return RawFrame{}, ErrEndOfStream
	case frame := <-a.frames:
		return frame, nil
	}
}

// Close ends the stream of frames.
func (a *AudioAssembler) Close() error {
	a.closeOnce.Do(func() {
		close(a.closed)
	})
	return nil
}
