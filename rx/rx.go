// Package rx drives frames through the processing pipeline and reports the resulting readings.
package rx

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

// Reading is the smoothed result of a full consensus window.
type Reading struct {
	Seq       int       // 1-based number of the reading within a run
	Tick      int       // the tick that completed the consensus window
	Timestamp time.Time // when the reading was emitted
	Bearing   float64   // radians
	Range     float64   // meters
}

func (r Reading) String() string {
	return fmt.Sprintf("reading %d: bearing %.1f°, range %.2fm", r.Seq, r.Bearing*180/math.Pi, r.Range)
}

// ReadingHandler consumes the readings of a driver.
type ReadingHandler interface {
	OnReading(reading Reading)
}

type ReadingHandlerFunc func(reading Reading)

func (f ReadingHandlerFunc) OnReading(reading Reading) {
	f(reading)
}

// TextReporter writes every reading as one line of text.
type TextReporter struct {
	out io.Writer
}

func NewTextReporter(out io.Writer) *TextReporter {
	if out == nil {
		out = os.Stdout
	}
	return &TextReporter{out: out}
}

func (r *TextReporter) OnReading(reading Reading) {
	fmt.Fprintln(r.out, reading.String())
}

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

var WallClock = ClockFunc(time.Now)
