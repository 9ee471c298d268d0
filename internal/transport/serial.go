package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
)

// SerialOptions describes one serial device the way a KISS TNC
// expects it: 8 data bits, with parity and stop bits selectable.
// KISS TNC default is 8N1; flow control is always off, see
// ParseFlowControl.
type SerialOptions struct {
	Device      string
	Baud        int
	Parity      string // none | odd | even
	StopBits    int    // 1 | 2
	ReadTimeout time.Duration
}

func (o SerialOptions) withDefaults() SerialOptions {
	if o.Baud <= 0 {
		o.Baud = 9600
	}
	if o.Parity == "" {
		o.Parity = "none"
	}
	if o.StopBits == 0 {
		o.StopBits = 1
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = ReadChunkTimeout
	}
	return o
}

func (o SerialOptions) mode() (*serial.Mode, error) {
	mode := &serial.Mode{BaudRate: o.Baud, DataBits: 8}

	switch strings.ToLower(o.Parity) {
	case "none", "n", "no":
		mode.Parity = serial.NoParity
	case "odd", "o":
		mode.Parity = serial.OddParity
	case "even", "e":
		mode.Parity = serial.EvenParity
	default:
		return nil, fmt.Errorf("transport: invalid parity %q", o.Parity)
	}

	switch o.StopBits {
	case 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("transport: invalid stop bits %d", o.StopBits)
	}

	return mode, nil
}

// ParseFlowControl normalizes the flow control spellings accepted in
// configuration. Only "none" is supported: the serial library offers
// no flow control, and a KISS byte stream cannot tolerate in-band
// XON/XOFF anyway. Other spellings are rejected outright rather than
// silently ignored.
func ParseFlowControl(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off", "no":
		return "none", nil
	case "software", "xon", "xonxoff", "xon-xoff",
		"hardware", "rtscts", "rts-cts", "rts/cts":
		return "", fmt.Errorf("transport: flow control %q not supported, use none", s)
	default:
		return "", fmt.Errorf("transport: invalid flow control %q", s)
	}
}

// serialPort adapts one open serial device.
type serialPort struct {
	port  serial.Port
	label string
}

func (p *serialPort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if err != nil {
		return n, AsLost(err)
	}
	// go.bug.st/serial reports a read timeout as (0, nil).
	return n, nil
}

func (p *serialPort) Write(b []byte) (int, error) {
	n, err := p.port.Write(b)
	if err != nil {
		return n, AsLost(err)
	}
	return n, nil
}

func (p *serialPort) Close() error  { return p.port.Close() }
func (p *serialPort) Label() string { return p.label }

// SerialEndpoint opens a serial device for one side of a link.
type SerialEndpoint struct {
	opts SerialOptions
	port uint8
}

func NewSerialEndpoint(opts SerialOptions, kissPort uint8) *SerialEndpoint {
	return &SerialEndpoint{opts: opts.withDefaults(), port: kissPort}
}

func (e *SerialEndpoint) Label() string   { return "serial:" + e.opts.Device }
func (e *SerialEndpoint) KISSPort() uint8 { return e.port }

func (e *SerialEndpoint) Open(ctx context.Context) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mode, err := e.opts.mode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(e.opts.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", e.opts.Device, err)
	}
	if err := port.SetReadTimeout(e.opts.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("transport: set read timeout on %s: %w", e.opts.Device, err)
	}
	return &serialPort{port: port, label: e.Label()}, nil
}

func (e *SerialEndpoint) Close() error { return nil }
