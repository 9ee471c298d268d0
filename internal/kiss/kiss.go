// Package kiss implements the KISS TNC framing protocol: frame
// encoding with byte stuffing, a stream decoder that survives
// fragmentation, and the raw-frame helpers the bridge needs for
// port translation and broken-TNC repair.
//
// Protocol reference: http://www.ka9q.net/papers/kiss.html
package kiss

import (
	"errors"
	"fmt"
)

const (
	FEND  byte = 0xC0
	FESC  byte = 0xDB
	TFEND byte = 0xDC
	TFESC byte = 0xDD
)

// KISS command nibbles (low nibble of the command byte).
const (
	CmdData        uint8 = 0x00
	CmdTXDelay     uint8 = 0x01
	CmdPersistence uint8 = 0x02
	CmdSlotTime    uint8 = 0x03
	CmdTXTail      uint8 = 0x04
	CmdFullDuplex  uint8 = 0x05
	CmdSetHardware uint8 = 0x06
	CmdReturn      uint8 = 0x0F
)

// MaxPort is the highest KISS TNC port number (high nibble of the
// command byte).
const MaxPort uint8 = 15

var (
	ErrFraming   = errors.New("kiss: framing error")
	ErrPortRange = errors.New("kiss: port out of range")

	// ErrFrameTooBig is a framing error: errors.Is matches both it
	// and ErrFraming.
	ErrFrameTooBig = fmt.Errorf("%w: frame exceeds size limit", ErrFraming)
)

// Frame is one de-escaped KISS frame. Treated as an immutable value
// once produced by the decoder; Payload is never aliased to decoder
// internals.
type Frame struct {
	Port    uint8
	Command uint8
	Payload []byte
}

// CommandByte packs the port and command nibbles.
func (f Frame) CommandByte() byte {
	return byte(f.Port&0x0F)<<4 | byte(f.Command&0x0F)
}

// CommandName returns the display name for the frame's command nibble.
func (f Frame) CommandName() string {
	return CommandName(f.Command)
}

func CommandName(cmd uint8) string {
	switch cmd & 0x0F {
	case CmdData:
		return "Data"
	case CmdTXDelay:
		return "TXDelay"
	case CmdPersistence:
		return "Persistence"
	case CmdSlotTime:
		return "SlotTime"
	case CmdTXTail:
		return "TXTail"
	case CmdFullDuplex:
		return "FullDuplex"
	case CmdSetHardware:
		return "SetHardware"
	case CmdReturn:
		return "Return"
	default:
		return fmt.Sprintf("Unknown(0x%X)", cmd&0x0F)
	}
}

// Encode wraps the frame in FEND delimiters and applies byte
// stuffing: FEND becomes FESC TFEND, FESC becomes FESC TFESC.
func Encode(f Frame) []byte {
	out := make([]byte, 0, len(f.Payload)+4)
	return AppendEncode(out, f)
}

// AppendEncode appends the wire form of f to dst and returns the
// extended slice.
func AppendEncode(dst []byte, f Frame) []byte {
	dst = append(dst, FEND, f.CommandByte())
	for _, b := range f.Payload {
		switch b {
		case FEND:
			dst = append(dst, FESC, TFEND)
		case FESC:
			dst = append(dst, FESC, TFESC)
		default:
			dst = append(dst, b)
		}
	}
	return append(dst, FEND)
}
