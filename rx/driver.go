package rx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/ftl/ppi/dsp"
	"github.com/ftl/ppi/frame"
	"github.com/ftl/ppi/trace"
)

// ErrStreamExhausted is returned by Tick once the source has no more frames. It is terminal.
var ErrStreamExhausted = errors.New("stream exhausted")

// SpectrumHandler observes the spectrum of every frame that was processed.
type SpectrumHandler interface {
	OnSpectrum(tick int, spectrum dsp.Spectrum, peakBin int, estimate float64)
}

// Driver pulls one frame per tick from its source, runs it through the pipeline and emits a reading
// whenever a consensus window is complete. The driver is not safe for concurrent use, it is meant to be
// driven by a single ticker.
type Driver struct {
	source      frame.Source
	extractor   *dsp.Extractor
	calibration dsp.Calibration
	consensus   *dsp.Consensus
	bearing     BearingSource
	clock       Clock

	readingHandlers []ReadingHandler
	spectrumHandler SpectrumHandler
	tracer          trace.Tracer

	ticks     int
	readings  int
	exhausted bool
	closeOnce sync.Once
}

// NewDriver returns a driver for the given source. The consensus window has the given size.
func NewDriver(source frame.Source, calibration dsp.Calibration, windowSize int, bearing BearingSource) *Driver {
	return &Driver{
		source:      source,
		extractor:   dsp.NewExtractor(),
		calibration: calibration,
		consensus:   dsp.NewConsensus(windowSize),
		bearing:     bearing,
		clock:       WallClock,
		tracer:      new(trace.NoTracer),
	}
}

func (d *Driver) SetClock(clock Clock) {
	d.clock = clock
}

func (d *Driver) SetTracer(tracer trace.Tracer) {
	d.tracer = tracer
}

func (d *Driver) SetSpectrumHandler(handler SpectrumHandler) {
	d.spectrumHandler = handler
}

// AddReadingHandler registers a handler that is notified of every reading.
func (d *Driver) AddReadingHandler(handler ReadingHandler) {
	d.readingHandlers = append(d.readingHandlers, handler)
}

// Ticks returns the number of ticks that requested a frame from the source.
func (d *Driver) Ticks() int {
	return d.ticks
}

// Exhausted indicates that the source has no more frames.
func (d *Driver) Exhausted() bool {
	return d.exhausted
}

// Tick processes exactly one frame. It returns the reading and true if the frame completed a consensus window.
//
// Errors:
//   - ErrStreamExhausted: the source ended; every later call returns it again without touching the source.
//   - frame.ErrMalformedFrame: this frame was skipped, the consensus window is unchanged.
//   - any other error is a failure of the source, typically frame.ErrSourceUnavailable.
func (d *Driver) Tick() (Reading, bool, error) {
	if d.exhausted {
		return Reading{}, false, ErrStreamExhausted
	}

	f, err := d.source.Next()
	if errors.Is(err, frame.ErrEndOfStream) {
		d.exhausted = true
		return Reading{}, false, ErrStreamExhausted
	}
	d.ticks++
	if err != nil {
		return Reading{}, false, fmt.Errorf("tick %d: %w", d.ticks, err)
	}

	spectrum, err := d.extractor.Extract(f)
	if err != nil {
		return Reading{}, false, fmt.Errorf("tick %d: %w", d.ticks, err)
	}

	peakBin := d.calibration.PeakBin(spectrum)
	estimate := d.calibration.BinToRange(peakBin)

	if d.tracer.Context() == trace.SpectrumContext {
		d.tracer.TraceBlock(trace.SpectrumContext, spectrum)
	}
	d.tracer.Trace(trace.RangeContext, "%d;%d;%f\n", d.ticks, peakBin, estimate)
	if d.spectrumHandler != nil {
		d.spectrumHandler.OnSpectrum(d.ticks, spectrum, peakBin, estimate)
	}

	consensus, ok := d.consensus.Push(estimate)
	if !ok {
		return Reading{}, false, nil
	}

	d.readings++
	reading := Reading{
		Seq:       d.readings,
		Tick:      d.ticks,
		Timestamp: d.clock.Now(),
		Bearing:   d.bearing.Bearing(),
		Range:     consensus,
	}
	for _, handler := range d.readingHandlers {
		handler.OnReading(reading)
	}

	return reading, true, nil
}

// Run calls Tick once per period until the source is exhausted, the source fails, or the context is canceled.
// Malformed frames are logged and skipped. When Run returns, the source is closed if it implements io.Closer.
// Frames that the source produces faster than one per period are not queued by the driver.
func (d *Driver) Run(ctx context.Context, period time.Duration) error {
	if period <= 0 {
		return fmt.Errorf("invalid tick period %v", period)
	}

	// closing the source also unblocks a pending read
	stopCloseOnCancel := context.AfterFunc(ctx, d.closeSource)
	defer stopCloseOnCancel()
	defer d.closeSource()

	d.tracer.Start()
	defer d.tracer.Stop()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, _, err := d.Tick()
			switch {
			case err == nil:
			case errors.Is(err, frame.ErrMalformedFrame):
				log.Printf("frame skipped: %v", err)
			case errors.Is(err, ErrStreamExhausted):
				log.Printf("stream exhausted after %d frames, %d readings", d.ticks, d.readings)
				return nil
			case ctx.Err() != nil:
				return nil
			default:
				return err
			}
		}
	}
}

func (d *Driver) closeSource() {
	d.closeOnce.Do(func() {
		closer, ok := d.source.(io.Closer)
		if !ok {
			return
		}
		err := closer.Close()
		if err != nil {
			log.Printf("cannot close the frame source: %v", err)
		}
	})
}
