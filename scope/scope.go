// Package scope provides insights into the inner workings of the pipeline: it streams the spectrum of every
// frame and every reading to remote clients over gRPC.
package scope

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/ftl/ppi/dsp"
	"github.com/ftl/ppi/rx"
)

type StreamID string

type Frame struct {
	Stream    StreamID
	Timestamp time.Time
}

// SpectralFrame contains the spectrum of one processed radar frame.
type SpectralFrame struct {
	Frame
	Tick     int
	Values   []float64
	PeakBin  int
	Estimate float64
}

// ReadingFrame contains one reading.
type ReadingFrame struct {
	Frame
	Reading rx.Reading
}

// Server is a scope that serves frames over a network connection to remote clients.
type Server struct {
	address string
	stream  StreamID
	clock   rx.Clock

	server     *grpcServer
	serverLock *sync.Mutex
}

// NewServer creates a new scope server that listens on the given address. All frames are tagged with the given stream ID.
func NewServer(address string, stream StreamID) *Server {
	return &Server{
		address:    address,
		stream:     stream,
		clock:      rx.WallClock,
		server:     nil,
		serverLock: &sync.Mutex{},
	}
}

func (s *Server) Active() bool {
	s.serverLock.Lock()
	defer s.serverLock.Unlock()
	return s.server != nil
}

func (s *Server) Addr() net.Addr {
	s.serverLock.Lock()
	defer s.serverLock.Unlock()
	if s.server != nil {
		return s.server.Addr()
	}
	return nil
}

func (s *Server) Start() error {
	s.serverLock.Lock()
	defer s.serverLock.Unlock()
	if s.server != nil {
		return fmt.Errorf("scope was already started")
	}

	server, err := newGRPCServer(s.address, defaultOutBufferSize)
	if err != nil {
		return err
	}
	err = server.Listen()
	if err != nil {
		return err
	}
	s.server = server

	go func() {
		err := server.Serve()
		if err != nil {
			log.Printf("Scope server failed: %v", err)
		}

		s.serverLock.Lock()
		if s.server == server {
			s.server = nil
		}
		s.serverLock.Unlock()
	}()

	return nil
}

func (s *Server) Stop() {
	s.serverLock.Lock()
	server := s.server
	s.server = nil
	s.serverLock.Unlock()

	if server != nil {
		server.Stop()
	}
}

func (s *Server) activeServer() *grpcServer {
	s.serverLock.Lock()
	defer s.serverLock.Unlock()
	return s.server
}

// OnSpectrum sends the spectrum of a processed frame to all connected clients.
func (s *Server) OnSpectrum(tick int, spectrum dsp.Spectrum, peakBin int, estimate float64) {
	server := s.activeServer()
	if server == nil {
		return
	}

	server.SendFrame(encodeSpectralFrame(&SpectralFrame{
		Frame:    Frame{Stream: s.stream, Timestamp: s.clock.Now()},
		Tick:     tick,
		Values:   spectrum,
		PeakBin:  peakBin,
		Estimate: estimate,
	}))
}

// OnReading sends the reading to all connected clients.
func (s *Server) OnReading(reading rx.Reading) {
	server := s.activeServer()
	if server == nil {
		return
	}

	server.SendFrame(encodeReadingFrame(&ReadingFrame{
		Frame:   Frame{Stream: s.stream, Timestamp: reading.Timestamp},
		Reading: reading,
	}))
}
