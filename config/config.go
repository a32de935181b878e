// Package config holds the settings of the processing pipeline, loaded from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/ftl/ppi/dsp"
	"github.com/ftl/ppi/frame"
	"github.com/ftl/ppi/rx"
	"github.com/ftl/ppi/trace"
)

type BearingConfig struct {
	From float64 `yaml:"from"`
	To   float64 `yaml:"to"`
	Seed int64   `yaml:"seed"`
}

type SerialConfig struct {
	Port              string `yaml:"port"`
	frame.PortOptions `yaml:",inline"`
}

type TableConfig struct {
	Header      bool   `yaml:"header"`
	IndexColumn bool   `yaml:"index_column"`
	Comma       string `yaml:"comma"`
}

// CSVOptions converts the table settings into options for frame.LoadCSV.
func (c TableConfig) CSVOptions() frame.CSVOptions {
	result := frame.CSVOptions{
		Layout: frame.Layout{
			Header:      c.Header,
			IndexColumn: c.IndexColumn,
		},
		Comma: ',',
	}
	if c.Comma != "" {
		result.Comma, _ = utf8.DecodeRuneInString(c.Comma)
	}
	return result
}

// WorkbookConfig describes recordings in Excel workbooks. By default, the first row holds column names
// and the first column holds row labels.
type WorkbookConfig struct {
	Sheet       string `yaml:"sheet"`
	Header      bool   `yaml:"header"`
	IndexColumn bool   `yaml:"index_column"`
}

func (c WorkbookConfig) Layout() frame.Layout {
	return frame.Layout{
		Header:      c.Header,
		IndexColumn: c.IndexColumn,
	}
}

type TraceConfig struct {
	Context     string `yaml:"context"`
	Destination string `yaml:"destination"`
}

// Config contains all settings of the pipeline. A zero Period means that the source's default period is used.
type Config struct {
	FrameSize       int             `yaml:"frame_size"`
	ConsensusWindow int             `yaml:"consensus_window"`
	Period          time.Duration   `yaml:"period"`
	Calibration     dsp.Calibration `yaml:"calibration"`
	Bearing         BearingConfig   `yaml:"bearing"`
	Serial          SerialConfig    `yaml:"serial"`
	Table           TableConfig     `yaml:"table"`
	Workbook        WorkbookConfig  `yaml:"workbook"`
	Trace           TraceConfig     `yaml:"trace"`
}

func Default() Config {
	return Config{
		FrameSize:       frame.DefaultSize,
		ConsensusWindow: dsp.DefaultConsensusWindow,
		Calibration:     dsp.DefaultCalibration(),
		Bearing: BearingConfig{
			From: rx.DefaultBearingFrom,
			To:   rx.DefaultBearingTo,
			Seed: 1,
		},
		Serial: SerialConfig{
			PortOptions: frame.PortOptions{
				BaudRate: frame.DefaultBaudRate,
				DataBits: 8,
				StopBits: 1,
				Parity:   "N",
			},
		},
		Table: TableConfig{
			Comma: ",",
		},
		Workbook: WorkbookConfig{
			Header:      true,
			IndexColumn: true,
		},
	}
}

// Load reads the YAML file at the given path. Settings missing in the file keep their default values.
func Load(path string) (Config, error) {
	result := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &result); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := result.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return result, nil
}

// Validate reports all invalid settings at once.
func (c Config) Validate() error {
	var errs []error
	if frame.PayloadSize(c.FrameSize) < 1 {
		errs = append(errs, fmt.Errorf("frame_size %d is too small", c.FrameSize))
	}
	if c.ConsensusWindow < 1 {
		errs = append(errs, fmt.Errorf("consensus_window must be at least 1: %d", c.ConsensusWindow))
	}
	if c.Period < 0 {
		errs = append(errs, fmt.Errorf("negative period %v", c.Period))
	}
	if c.Calibration.Multiplier <= 0 {
		errs = append(errs, fmt.Errorf("calibration multiplier must be positive: %v", c.Calibration.Multiplier))
	}
	if c.Bearing.To <= c.Bearing.From {
		errs = append(errs, fmt.Errorf("empty bearing sector [%v, %v)", c.Bearing.From, c.Bearing.To))
	}
	if _, err := c.Serial.PortOptions.Normalize(); err != nil {
		errs = append(errs, err)
	}
	if utf8.RuneCountInString(c.Table.Comma) > 1 {
		errs = append(errs, fmt.Errorf("the table separator must be a single character: %q", c.Table.Comma))
	}
	switch c.Trace.Context {
	case "", trace.SpectrumContext, trace.RangeContext:
	default:
		errs = append(errs, fmt.Errorf("unknown trace context %q", c.Trace.Context))
	}
	if c.Trace.Context != "" && c.Trace.Destination == "" {
		errs = append(errs, fmt.Errorf("trace context %q needs a destination", c.Trace.Context))
	}
	return errors.Join(errs...)
}
