package frame

import (
	"encoding/binary"
	"fmt"
	"log"
	"net/url"

	"github.com/gorilla/websocket"
)

type messageConn interface {
	Close() error
	ReadMessage() (messageType int, p []byte, err error)
}

// WebSocketSource receives frames from a websocket. Every binary message carries one block of
// little-endian int16 samples.
type WebSocketSource struct {
	conn    messageConn
	size    int
	samples []int16
}

// DialWebSocket connects to the given websocket URL.
func DialWebSocket(rawURL string, size int) (*WebSocketSource, error) {
	wsURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %v", err)
	}
	switch wsURL.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("invalid websocket URL scheme %q", wsURL.Scheme)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot dial websocket: %v", ErrSourceUnavailable, err)
	}
	log.Printf("connected to %s", wsURL)

	return newWebSocketSource(conn, size), nil
}

func newWebSocketSource(conn messageConn, size int) *WebSocketSource {
	return &WebSocketSource{
		conn:    conn,
		size:    size,
		samples: make([]int16, size),
	}
}

func (s *WebSocketSource) Next() (RawFrame, error) {
	for {
		msgType, msgBytes, err := s.conn.ReadMessage()
		if err != nil {
			return RawFrame{}, fmt.Errorf("%w: cannot read next message from websocket: %v", ErrSourceUnavailable, err)
		}
		if msgType != websocket.BinaryMessage {
			log.Printf("received wrong message type from websocket: %d", msgType)
			continue
		}

		count := min(len(msgBytes)/2, s.size)
		for i := 0; i < count; i++ {
			s.samples[i] = int16(binary.LittleEndian.Uint16(msgBytes[2*i:]))
		}
		clear(s.samples[count:])

		return FromInt16(s.samples, s.size)
	}
}

func (s *WebSocketSource) Close() error {
	return s.conn.Close()
}
