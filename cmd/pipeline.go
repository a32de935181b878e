package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/ftl/ppi/config"
	"github.com/ftl/ppi/frame"
	"github.com/ftl/ppi/record"
	"github.com/ftl/ppi/rx"
	"github.com/ftl/ppi/trace"
)

// pipeline collects everything that is needed to drive a frame source: the settings and the consumers
// of spectra and readings.
type pipeline struct {
	config          config.Config
	out             io.Writer
	recordTo        string
	spectrumHandler rx.SpectrumHandler
	readingHandlers []rx.ReadingHandler
}

func newPipeline(cfg config.Config, out io.Writer) *pipeline {
	return &pipeline{
		config: cfg,
		out:    out,
	}
}

// period returns the configured tick period or the given default of the source.
func (p *pipeline) period(defaultPeriod time.Duration) time.Duration {
	if p.config.Period > 0 {
		return p.config.Period
	}
	return defaultPeriod
}

// run drives the given source until it is exhausted, it fails, or the context is canceled.
func (p *pipeline) run(ctx context.Context, source frame.Source, sourceName string, defaultPeriod time.Duration) error {
	bearing := rx.NewRandomBearing(p.config.Bearing.From, p.config.Bearing.To, p.config.Bearing.Seed)
	driver := rx.NewDriver(source, p.config.Calibration, p.config.ConsensusWindow, bearing)

	driver.AddReadingHandler(rx.NewTextReporter(p.out))
	for _, handler := range p.readingHandlers {
		driver.AddReadingHandler(handler)
	}
	if p.spectrumHandler != nil {
		driver.SetSpectrumHandler(p.spectrumHandler)
	}

	if p.recordTo != "" {
		recorder, err := record.Open(p.recordTo, sourceName)
		if err != nil {
			return err
		}
		defer recorder.Close()
		driver.AddReadingHandler(recorder)
	}

	if p.config.Trace.Context != "" {
		tracer, err := trace.New(p.config.Trace.Context, p.config.Trace.Destination)
		if err != nil {
			return fmt.Errorf("cannot create tracer: %w", err)
		}
		driver.SetTracer(tracer)
	}

	period := p.period(defaultPeriod)
	log.Printf("processing frames from %s every %v", sourceName, period)
	return driver.Run(ctx, period)
}
