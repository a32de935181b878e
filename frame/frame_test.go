package frame

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSamples(size int, footer Footer) []float64 {
	result := make([]float64, size)
	for i := range result {
		result[i] = float64(i % 7)
	}
	EncodeFooter(result, footer)
	return result
}

func TestDecodeFooter(t *testing.T) {
	tt := []struct {
		desc     string
		samples  []float64
		expected Footer
		invalid  bool
	}{
		{
			desc:     "valid footer",
			samples:  []float64{1, 2, 3, 4, 100, 8000, 5, 0},
			expected: Footer{ValidCount: 5, SampleRate: 8000, PRF: 100},
		},
		{
			desc:     "all samples valid",
			samples:  []float64{0, 0, 0, 0, 1, 2, 8, 0},
			expected: Footer{ValidCount: 8, SampleRate: 2, PRF: 1},
		},
		{
			desc:    "too short",
			samples: []float64{1, 2, 3},
			invalid: true,
		},
		{
			desc:    "zero count",
			samples: []float64{1, 2, 3, 4, 100, 8000, 0, 0},
			invalid: true,
		},
		{
			desc:    "negative count",
			samples: []float64{1, 2, 3, 4, 100, 8000, -3, 0},
			invalid: true,
		},
		{
			desc:    "count exceeds frame",
			samples: []float64{1, 2, 3, 4, 100, 8000, 9, 0},
			invalid: true,
		},
		{
			desc:    "fractional count",
			samples: []float64{1, 2, 3, 4, 100, 8000, 2.5, 0},
			invalid: true,
		},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			actual, err := DecodeFooter(tc.samples)
			if tc.invalid {
				assert.ErrorIs(t, err, ErrMalformedFrame)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expected, actual)
			}
		})
	}
}

func TestNew_CopiesSamples(t *testing.T) {
	samples := testSamples(16, Footer{ValidCount: 10})

	frame, err := New(samples)
	require.NoError(t, err)
	samples[0] = 42

	assert.Equal(t, 16, frame.Size())
	assert.Equal(t, 0.0, frame.Samples[0])
	assert.Equal(t, 10, frame.Footer.ValidCount)
}

func TestFromInt16_PadsAndTruncates(t *testing.T) {
	short := []int16{1, 2, 3, 4, 5, 6, 7, 8}
	short[6] = 6

	frame, err := FromInt16(short, 8)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 6, 8}, frame.Samples)

	long := append([]int16{}, short...)
	long = append(long, 99, 99)
	frame, err = FromInt16(long, 8)
	require.NoError(t, err)
	assert.Len(t, frame.Samples, 8)

	_, err = FromInt16(short[:3], 8)
	assert.ErrorIs(t, err, ErrMalformedFrame, "padding zeroes the sample count")
}

func TestTableSource(t *testing.T) {
	csv := "" +
		"idx,a,b,c,d,e,f,g,h\n" +
		"row1,1,2,3,4,10,20,4,0\n" +
		"row2,1,2,3,4,10,20,0,0\n" +
		"row3,1,2,x,4,10,20,4,0\n" +
		"row4,1,2,3\n" +
		"row5,5,6,7,8,10,20,2,0\n"
	table, err := LoadCSV(strings.NewReader(csv), CSVOptions{Layout: Layout{Header: true, IndexColumn: true}})
	require.NoError(t, err)
	require.Len(t, table, 5)

	source := NewTableSource(table, 8)

	frame, err := source.Next()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 10, 20, 4, 0}, frame.Samples)
	assert.Equal(t, Footer{ValidCount: 4, SampleRate: 20, PRF: 10}, frame.Footer)

	for i := 0; i < 3; i++ {
		_, err = source.Next()
		assert.ErrorIs(t, err, ErrMalformedFrame, "row %d", i+2)
	}

	frame, err = source.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, frame.Footer.ValidCount)
	assert.Equal(t, 0, source.Remaining())

	_, err = source.Next()
	assert.ErrorIs(t, err, ErrEndOfStream)
	_, err = source.Next()
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestStreamSource(t *testing.T) {
	samples := testSamples(8, Footer{ValidCount: 6, SampleRate: 300, PRF: 50})
	block := EncodeInt16(samples)

	source := NewStreamSource(bytes.NewReader(append(block, block...)), 8)

	for i := 0; i < 2; i++ {
		frame, err := source.Next()
		require.NoError(t, err)
		assert.Equal(t, samples, frame.Samples)
		assert.Equal(t, Footer{ValidCount: 6, SampleRate: 300, PRF: 50}, frame.Footer)
	}

	_, err := source.Next()
	assert.ErrorIs(t, err, ErrSourceUnavailable, "a live stream never ends")
	assert.NotErrorIs(t, err, ErrEndOfStream)
}

func TestStreamSource_ShortBlocksArePadded(t *testing.T) {
	samples := []float64{-1, -2, 3, 4, 5}
	source := NewStreamSourceWithBlocksize(bytes.NewReader(EncodeInt16(samples)), 6, 10)

	frame, err := source.Next()
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, -2, 3, 4, 5, 0}, frame.Samples)
	assert.Equal(t, 5, frame.Footer.ValidCount)
}

func TestRecordingSource(t *testing.T) {
	samples := testSamples(8, Footer{ValidCount: 6})
	block := EncodeInt16(samples)

	source := NewRecordingSource(bytes.NewReader(block), 8)
	_, err := source.Next()
	require.NoError(t, err)
	_, err = source.Next()
	assert.ErrorIs(t, err, ErrEndOfStream)

	source = NewRecordingSource(bytes.NewReader(append(block, block[:3]...)), 8)
	_, err = source.Next()
	require.NoError(t, err)
	_, err = source.Next()
	assert.ErrorIs(t, err, ErrSourceUnavailable, "a truncated block is not a clean end")
}

type closingReader struct {
	io.Reader
	closed bool
}

func (r *closingReader) Close() error {
	r.closed = true
	return nil
}

func TestStreamSource_Close(t *testing.T) {
	reader := &closingReader{Reader: strings.NewReader("")}
	source := NewStreamSource(reader, 8)

	require.NoError(t, source.Close())
	assert.True(t, reader.closed)
}

type message struct {
	msgType int
	data    []byte
}

type fakeConn struct {
	messages []message
	closed   bool
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	if len(c.messages) == 0 {
		return 0, nil, errors.New("connection reset")
	}
	next := c.messages[0]
	c.messages = c.messages[1:]
	return next.msgType, next.data, nil
}

func TestWebSocketSource(t *testing.T) {
	samples := testSamples(8, Footer{ValidCount: 5, SampleRate: 1, PRF: 2})
	conn := &fakeConn{
		messages: []message{
			{websocket.TextMessage, []byte("hello")},
			{websocket.BinaryMessage, EncodeInt16(samples)},
		},
	}
	source := newWebSocketSource(conn, 8)

	frame, err := source.Next()
	require.NoError(t, err)
	assert.Equal(t, samples, frame.Samples)

	_, err = source.Next()
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	require.NoError(t, source.Close())
	assert.True(t, conn.closed)
}

func TestAudioAssembler(t *testing.T) {
	assembler := NewAudioAssembler(8, 48000, 100)
	assembler.SetChannelCount(2)

	// interleaved stereo, only the left channel counts
	stereo := []float32{0.5, 9, -0.5, 9, 1, 9, 2, 9}
	_, err := assembler.Write(stereo)
	require.NoError(t, err)

	frame, err := assembler.Next()
	require.NoError(t, err)
	assert.Equal(t, []float64{16384, -16384, 32767, 32767, 100, 48000, 4, 0}, frame.Samples)
	assert.Equal(t, Footer{ValidCount: 4, SampleRate: 48000, PRF: 100}, frame.Footer)
}

func TestAudioAssembler_DropsFramesWhenBusy(t *testing.T) {
	assembler := NewAudioAssembler(6, 8000, 0)

	for i := 0; i < 3; i++ {
		_, err := assembler.Write([]float32{float32(i) / 10, 0})
		require.NoError(t, err)
	}

	frame, err := assembler.Next()
	require.NoError(t, err)
	assert.Equal(t, 0.0, frame.Samples[0], "the first frame is kept, later ones are dropped")
	assert.Equal(t, 2, assembler.dropped)

	require.NoError(t, assembler.Close())
	_, err = assembler.Next()
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestPortOptions(t *testing.T) {
	tt := []struct {
		options  PortOptions
		expected PortOptions
		invalid  bool
	}{
		{PortOptions{}, PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}, false},
		{PortOptions{BaudRate: 115200, Parity: "even"}, PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "E"}, false},
		{PortOptions{DataBits: 9}, PortOptions{}, true},
		{PortOptions{StopBits: 3}, PortOptions{}, true},
		{PortOptions{Parity: "mark"}, PortOptions{}, true},
	}
	for i, tc := range tt {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			actual, err := tc.options.Normalize()
			if tc.invalid {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, actual)

			mode, err := tc.options.SerialMode()
			require.NoError(t, err)
			assert.Equal(t, tc.expected.BaudRate, mode.BaudRate)
		})
	}
}
