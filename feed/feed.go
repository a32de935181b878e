// Package feed provides a plain TCP feed of readings. Every connected client receives one line per reading.
package feed

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"os"
	"sync"
	"time"

	"github.com/ftl/ppi/rx"
)

const (
	connectionKeepAlivePeriod = 30 * time.Second
	readBufferSize            = 1024
	messageBufferSize         = 16
)

type Server struct {
	address  *net.TCPAddr
	listener *net.TCPListener
	version  string

	connections []*Connection

	msg      chan []byte
	incoming chan *net.TCPConn
	close    chan struct{}
	closed   chan struct{}
	stopOnce sync.Once
}

// NewServer opens a listener on the given address and starts serving readings.
func NewServer(address string, version string) (*Server, error) {
	result := &Server{
		version:  version,
		msg:      make(chan []byte, messageBufferSize),
		incoming: make(chan *net.TCPConn),
		close:    make(chan struct{}),
		closed:   make(chan struct{}),
	}

	localAddress, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve address %s: %w", address, err)
	}
	result.address = localAddress

	listener, err := net.ListenTCP("tcp", result.address)
	if err != nil {
		return nil, err
	}
	result.listener = listener

	go result.acceptLoop()
	go result.run()

	return result, nil
}

// acceptLoop hands new connections to run until the listener is closed.
func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.AcceptTCP()
		if errors.Is(err, net.ErrClosed) {
			return
		} else if err != nil {
			log.Println(err)
			continue
		}

		select {
		case s.incoming <- conn:
		case <-s.close:
			conn.Close()
			return
		}
	}
}

func (s *Server) run() {
	defer close(s.closed)
	welcome := fmt.Sprintf("PPI Version %s\n", s.version)

	for {
		select {
		case <-s.close:
			for _, conn := range s.connections {
				conn.Close()
			}
			return
		case bytes := <-s.msg:
			s.broadcast(bytes)
		case conn := <-s.incoming:
			log.Printf("new feed connection: %v", conn.RemoteAddr())
			conn.SetKeepAlivePeriod(connectionKeepAlivePeriod)
			conn.SetKeepAlive(true)
			connection := NewConnection(conn, welcome)
			s.connections = append(s.connections, connection)
		}
	}
}

// broadcast writes the message to all connections and drops the ones that are closed.
func (s *Server) broadcast(bytes []byte) {
	open := s.connections[:0]
	for _, conn := range s.connections {
		_, err := conn.Write(bytes)
		if err != nil {
			log.Printf("removing closed connection %s", conn.String())
			continue
		}
		open = append(open, conn)
	}
	clear(s.connections[len(open):])
	s.connections = open
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Stop closes the listener and all connections. It is safe to call Stop more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.close)
		s.listener.Close()
	})
	<-s.closed
}

// OnReading hands the reading to the connected clients. It never waits: if the feed is busy, the
// reading is dropped.
func (s *Server) OnReading(reading rx.Reading) {
	select {
	case <-s.close:
		return
	default:
	}

	select {
	case s.msg <- []byte(formatReadingMessage(reading)):
	default:
		log.Printf("feed is busy, reading %d dropped", reading.Seq)
	}
}

func formatReadingMessage(reading rx.Reading) string {
	degrees := reading.Bearing * 180 / math.Pi
	return fmt.Sprintf("%-6d %sz  %6.1f°  %6.2fm\n", reading.Seq, reading.Timestamp.UTC().Format("150405.000"), degrees, reading.Range)
}

type Connection struct {
	conn io.ReadWriteCloser
	name string
	msg  chan []byte

	close  chan struct{}
	closed chan struct{}
}

func NewConnection(conn net.Conn, welcome string) *Connection {
	result := &Connection{
		conn: conn,
		name: conn.RemoteAddr().String(),
		msg:  make(chan []byte, 1),

		close:  make(chan struct{}),
		closed: make(chan struct{}),
	}

	err := result.writeAll([]byte(welcome))
	if err != nil {
		log.Printf("%s: %v", result.name, err)
	}

	go result.run()
	go result.readLoop()

	return result
}

func (c *Connection) run() {
	defer close(c.closed)
	defer func() {
		err := c.conn.Close()
		if err != nil {
			log.Printf("close %s: %v", c.name, err)
		}
	}()

	for {
		select {
		case <-c.close:
			return
		case bytes := <-c.msg:
			err := c.writeAll(bytes)
			if err != nil {
				log.Printf("%s: %v", c.name, err)
				return
			}
		}
	}
}

// readLoop discards the client's input. It closes the connection when the client hangs up.
func (c *Connection) readLoop() {
	readBuffer := make([]byte, readBufferSize)
	for {
		_, err := c.conn.Read(readBuffer)
		if errors.Is(err, os.ErrClosed) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
			c.Close()
			return
		} else if err != nil {
			log.Printf("%s: %v", c.name, err)
			c.Close()
			return
		}
	}
}

func (c *Connection) writeAll(bytes []byte) error {
	buffer := bytes
	for len(buffer) > 0 {
		n, err := c.conn.Write(buffer)
		if err != nil {
			return err
		}
		buffer = buffer[n:]
	}
	return nil
}

func (c *Connection) Close() {
	select {
	case <-c.closed:
		return
	case c.close <- struct{}{}:
		<-c.closed
	}
}

func (c *Connection) Write(bytes []byte) (int, error) {
	select {
	case <-c.closed:
		return 0, net.ErrClosed
	case c.msg <- bytes:
		return len(bytes), nil
	}
}

func (c *Connection) String() string {
	return c.name
}
