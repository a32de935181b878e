// Package trace writes intermediate values of the processing pipeline to a file or a UDP destination.
// Every tracer is bound to one context, traces of other contexts are ignored.
package trace

import (
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
)

const (
	SpectrumContext = "spectrum"
	RangeContext    = "range"
)

type Tracer interface {
	Context() string
	Start()
	Trace(context string, format string, args ...any)
	TraceBlock(context string, values []float64)
	Stop()
}

type NoTracer struct{}

func (t *NoTracer) Context() string              { return "" }
func (t *NoTracer) Start()                       {}
func (t *NoTracer) Trace(string, string, ...any) {}
func (t *NoTracer) TraceBlock(string, []float64) {}
func (t *NoTracer) Stop()                        {}

// New creates a tracer from a destination of the form file:<filename> or udp:<host:port>.
func New(context string, destination string) (Tracer, error) {
	protocol, target, found := strings.Cut(destination, ":")
	if !found {
		return nil, fmt.Errorf("invalid trace destination %q", destination)
	}

	switch strings.ToLower(protocol) {
	case "file":
		return NewFileTracer(context, target), nil
	case "udp":
		return NewUDPTracer(context, target), nil
	default:
		return nil, fmt.Errorf("unknown trace protocol %q", protocol)
	}
}

// writerTracer formats traces onto an io.Writer. The concrete tracers manage the writer's lifecycle.
type writerTracer struct {
	context string
	out     io.Writer
}

func (t *writerTracer) Context() string {
	return t.context
}

func (t *writerTracer) Trace(context string, format string, args ...any) {
	if t.out == nil || context != t.context {
		return
	}
	fmt.Fprintf(t.out, format, args...)
}

func (t *writerTracer) TraceBlock(context string, values []float64) {
	if t.out == nil || context != t.context {
		return
	}
	fmt.Fprintln(t.out, FormatBlock(values))
}

// FormatBlock joins the given values with semicolons.
func FormatBlock(values []float64) string {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(strconv.FormatFloat(v, 'f', 3, 64))
	}
	return sb.String()
}

type FileTracer struct {
	writerTracer
	filename string
	file     io.WriteCloser
}

func NewFileTracer(context string, filename string) *FileTracer {
	return &FileTracer{
		writerTracer: writerTracer{context: context},
		filename:     filename,
	}
}

func (t *FileTracer) Start() {
	if t.file != nil {
		return
	}

	file, err := os.Create(t.filename)
	if err != nil {
		log.Printf("cannot start trace: %v", err)
		return
	}
	t.file = file
	t.out = file
}

func (t *FileTracer) Stop() {
	if t.file == nil {
		return
	}

	t.file.Close()
	t.file = nil
	t.out = nil
}

type UDPTracer struct {
	writerTracer
	addr *net.UDPAddr
	conn *net.UDPConn
}

func NewUDPTracer(context string, destination string) *UDPTracer {
	addr, err := net.ResolveUDPAddr("udp", destination)
	if err != nil {
		log.Printf("cannot parse UDP destination: %v", err)
		return &UDPTracer{addr: nil}
	}
	return &UDPTracer{
		writerTracer: writerTracer{context: context},
		addr:         addr,
	}
}

func (t *UDPTracer) Start() {
	if t.conn != nil || t.addr == nil {
		return
	}

	conn, err := net.DialUDP("udp", nil, t.addr)
	if err != nil {
		log.Printf("cannot start trace: %v", err)
		return
	}
	t.conn = conn
	t.out = conn
}

func (t *UDPTracer) Stop() {
	if t.conn == nil {
		return
	}

	t.conn.Close()
	t.conn = nil
	t.out = nil
}
