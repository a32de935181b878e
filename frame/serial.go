package frame

import (
	"fmt"
	"log"
	"strings"

	"go.bug.st/serial"
)

// DefaultBaudRate is the rate used by the radar's USB link. The link ignores it, but the driver wants a value.
const DefaultBaudRate = 20_000_000

// PortOptions describe the serial connection parameters.
type PortOptions struct {
	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	StopBits int    `yaml:"stop_bits"`
	Parity   string `yaml:"parity"`
}

// Normalize validates the options and applies defaults for any unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = DefaultBaudRate
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch strings.TrimSpace(strings.ToUpper(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}

	return opts, nil
}

// SerialMode converts the options into the structure required by go.bug.st/serial.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
	}

	switch opts.StopBits {
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		mode.StopBits = serial.OneStopBit
	}

	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	default:
		mode.Parity = serial.NoParity
	}

	return mode, nil
}

// OpenSerial opens the serial port with the given name and returns a stream source that reads frames of the given size from it.
// Stale data in the input buffer is discarded, so the first frame is aligned with the radar's output.
func OpenSerial(portName string, options PortOptions, size int) (*StreamSource, error) {
	mode, err := options.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open serial port %s: %v", ErrSourceUnavailable, portName, err)
	}

	err = port.ResetInputBuffer()
	if err != nil {
		log.Printf("cannot reset the input buffer of %s: %v", portName, err)
	}
	err = port.ResetOutputBuffer()
	if err != nil {
		log.Printf("cannot reset the output buffer of %s: %v", portName, err)
	}

	log.Printf("using serial port %s at %d baud", portName, mode.BaudRate)
	return NewStreamSource(port, size), nil
}
