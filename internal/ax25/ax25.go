// Package ax25 parses and serializes AX.25 link-layer frames so the
// bridge can inspect and log traffic. Parsing is best effort: the
// relay treats an unparseable frame as opaque bytes and forwards it
// anyway.
package ax25

import (
	"errors"
	"fmt"
	"strings"
)

const (
	addrLen = 7
	// maxVia bounds the digipeater list (AX.25 v2.0 allows eight).
	maxVia = 8
)

var ErrInvalidFrame = errors.New("ax25: invalid frame")

// Address is one 7-octet AX.25 address field.
type Address struct {
	Callsign string
	SSID     uint8
	// Repeated is the H bit: a digipeater sets it once it has
	// repeated the frame.
	Repeated bool
	// Reserved carries the two reserved bits of the SSID octet so a
	// parsed address re-serializes byte-exact. Both bits are set in
	// frames from conforming equipment.
	Reserved uint8
}

func (a Address) String() string {
	if a.SSID == 0 {
		return a.Callsign
	}
	return fmt.Sprintf("%s-%d", a.Callsign, a.SSID)
}

// NewAddress builds a canonical address (reserved bits set, as
// transmitted by conforming stations).
func NewAddress(callsign string, ssid uint8) Address {
	return Address{Callsign: strings.ToUpper(callsign), SSID: ssid & 0x0F, Reserved: 0x03}
}

func parseAddress(b []byte) (Address, bool, error) {
	var a Address
	buf := make([]byte, 0, 6)
	padded := false
	for i := 0; i < 6; i++ {
		if b[i]&0x01 != 0 {
			return Address{}, false, fmt.Errorf("%w: extension bit set inside callsign", ErrInvalidFrame)
		}
		c := b[i] >> 1
		if c == ' ' {
			padded = true
			continue
		}
		if padded {
			return Address{}, false, fmt.Errorf("%w: callsign padding not trailing", ErrInvalidFrame)
		}
		buf = append(buf, c)
	}
	a.Callsign = string(buf)
	a.SSID = (b[6] >> 1) & 0x0F
	a.Repeated = b[6]&0x80 != 0
	a.Reserved = (b[6] >> 5) & 0x03
	last := b[6]&0x01 != 0
	return a, last, nil
}

// appendWire writes the 7-octet form; last sets the end-of-address
// marker bit.
func (a Address) appendWire(dst []byte, last bool) []byte {
	for i := 0; i < 6; i++ {
		c := byte(' ')
		if i < len(a.Callsign) {
			c = a.Callsign[i]
		}
		dst = append(dst, c<<1)
	}
	ssid := a.SSID<<1 | a.Reserved<<5
	if a.Repeated {
		ssid |= 0x80
	}
	if last {
		ssid |= 0x01
	}
	return append(dst, ssid)
}

// Frame is a parsed AX.25 frame.
type Frame struct {
	Dst     Address
	Src     Address
	Via     []Address
	Control uint8
	// PID is present only for I and UI frames.
	PID  *uint8
	Info []byte
}

// hasPID reports whether the control field implies a PID octet.
func hasPID(control uint8) bool {
	return control&0x01 == 0 || control&0xEF == 0x03
}

// Parse decodes an AX.25 frame from its wire form (the payload of a
// KISS data frame, FCS already stripped by the TNC).
func Parse(b []byte) (Frame, error) {
	if len(b) < 2*addrLen+1 {
		return Frame{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrInvalidFrame, len(b), 2*addrLen+1)
	}

	var f Frame
	dst, last, err := parseAddress(b[:addrLen])
	if err != nil {
		return Frame{}, err
	}
	if last {
		return Frame{}, fmt.Errorf("%w: destination marked end of address list", ErrInvalidFrame)
	}
	f.Dst = dst

	src, last, err := parseAddress(b[addrLen : 2*addrLen])
	if err != nil {
		return Frame{}, err
	}
	f.Src = src

	off := 2 * addrLen
	for !last {
		if len(f.Via) == maxVia {
			return Frame{}, fmt.Errorf("%w: more than %d digipeaters", ErrInvalidFrame, maxVia)
		}
		if off+addrLen > len(b) {
			return Frame{}, fmt.Errorf("%w: truncated address list", ErrInvalidFrame)
		}
		var via Address
		via, last, err = parseAddress(b[off : off+addrLen])
		if err != nil {
			return Frame{}, err
		}
		f.Via = append(f.Via, via)
		off += addrLen
	}

	if off >= len(b) {
		return Frame{}, fmt.Errorf("%w: missing control field", ErrInvalidFrame)
	}
	f.Control = b[off]
	off++

	if hasPID(f.Control) {
		if off >= len(b) {
			return Frame{}, fmt.Errorf("%w: missing PID field", ErrInvalidFrame)
		}
		pid := b[off]
		f.PID = &pid
		off++
	}

	if off < len(b) {
		f.Info = append([]byte(nil), b[off:]...)
	}
	return f, nil
}

// AppendWire appends the frame's wire form to dst. For any frame
// accepted by Parse the output is byte-identical to the parsed input.
func (f Frame) AppendWire(dst []byte) []byte {
	dst = f.Dst.appendWire(dst, false)
	dst = f.Src.appendWire(dst, len(f.Via) == 0)
	for i, via := range f.Via {
		dst = via.appendWire(dst, i == len(f.Via)-1)
	}
	dst = append(dst, f.Control)
	if f.PID != nil {
		dst = append(dst, *f.PID)
	}
	return append(dst, f.Info...)
}

// Wire returns the frame's wire form.
func (f Frame) Wire() []byte {
	return f.AppendWire(make([]byte, 0, 2*addrLen+len(f.Via)*addrLen+2+len(f.Info)))
}
