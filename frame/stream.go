package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// StreamSource reads fixed-size blocks of little-endian int16 samples from a byte stream.
type StreamSource struct {
	in        io.Reader
	size      int
	buf       []byte
	samples   []int16
	eofIsEnd  bool
	closeFunc func() error
}

// NewStreamSource returns a source that reads blocks of 2*size bytes from the given reader.
// A live stream never ends, every read failure is reported as ErrSourceUnavailable.
func NewStreamSource(in io.Reader, size int) *StreamSource {
	return NewStreamSourceWithBlocksize(in, size, 2*size)
}

// NewStreamSourceWithBlocksize returns a source that reads blocks of the given number of bytes.
// The decoded samples are truncated or padded to size.
func NewStreamSourceWithBlocksize(in io.Reader, size int, blocksize int) *StreamSource {
	result := &StreamSource{
		in:      in,
		size:    size,
		buf:     make([]byte, blocksize),
		samples: make([]int16, blocksize/2),
	}
	if closer, ok := in.(io.Closer); ok {
		result.closeFunc = closer.Close
	}
	return result
}

// NewRecordingSource returns a source that replays a raw binary capture. In contrast to a live stream,
// the source ends when the reader is exhausted at a block boundary.
func NewRecordingSource(in io.Reader, size int) *StreamSource {
	result := NewStreamSource(in, size)
	result.eofIsEnd = true
	return result
}

func (s *StreamSource) Next() (RawFrame, error) {
	_, err := io.ReadFull(s.in, s.buf)
	if errors.Is(err, io.EOF) && s.eofIsEnd {
		return RawFrame{}, ErrEndOfStream
	}
	if err != nil {
		return RawFrame{}, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	for i := range s.samples {
		s.samples[i] = int16(binary.LittleEndian.Uint16(s.buf[2*i:]))
	}
	return FromInt16(s.samples, s.size)
}

func (s *StreamSource) Close() error {
	if s.closeFunc == nil {
		return nil
	}
	return s.closeFunc()
}

// EncodeInt16 converts the given samples into a block of little-endian int16 values.
func EncodeInt16(samples []float64) []byte {
	result := make([]byte, 2*len(samples))
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(result[2*i:], uint16(int16(sample)))
	}
	return result
}
