package kiss

import "fmt"

// PeekInfo reads the port and command nibbles out of a raw delimited
// frame without de-escaping it. ok is false when the slice is too
// short or does not start with a delimiter.
func PeekInfo(raw []byte) (port, command uint8, ok bool) {
	if len(raw) < 2 || raw[0] != FEND {
		return 0, 0, false
	}
	return uint8(raw[1] >> 4), uint8(raw[1] & 0x0F), true
}

// RewritePort returns a copy of the raw frame with the port nibble of
// the command byte replaced. Frames too short to carry a command byte
// come back unchanged.
func RewritePort(raw []byte, port uint8) []byte {
	out := append([]byte(nil), raw...)
	if len(out) < 2 || out[0] != FEND {
		return out
	}
	out[1] = byte(port&0x0F)<<4 | out[1]&0x0F
	return out
}

// PortTranslator rewrites frames from one TNC port to another across
// a cross-connect. The extended-KISS flags only decide whether two
// equal port numbers still need rewriting (standard KISS and XKISS
// number their ports independently).
type PortTranslator struct {
	SourcePort     uint8
	DestPort       uint8
	SourceExtended bool
	DestExtended   bool
}

func NewPortTranslator(sourcePort, destPort uint8, sourceExtended, destExtended bool) (PortTranslator, error) {
	if sourcePort > MaxPort || destPort > MaxPort {
		return PortTranslator{}, fmt.Errorf("%w: %d -> %d", ErrPortRange, sourcePort, destPort)
	}
	return PortTranslator{
		SourcePort:     sourcePort,
		DestPort:       destPort,
		SourceExtended: sourceExtended,
		DestExtended:   destExtended,
	}, nil
}

// Accepts reports whether a raw frame belongs to this translator's
// source port.
func (t PortTranslator) Accepts(raw []byte) bool {
	port, _, ok := PeekInfo(raw)
	return ok && port == t.SourcePort
}

// Translate rewrites the frame for the destination port. It returns
// (nil, false) when the frame is not for the source port, and the
// frame unchanged when no rewrite is needed.
func (t PortTranslator) Translate(raw []byte) ([]byte, bool) {
	if !t.Accepts(raw) {
		return nil, false
	}
	if t.SourcePort == t.DestPort && t.SourceExtended == t.DestExtended {
		return raw, true
	}
	return RewritePort(raw, t.DestPort), true
}

// TranslateFrame applies the same routing decision to a decoded
// frame: (zero, false) when the frame is not for the source port,
// otherwise the frame re-addressed to the destination port.
func (t PortTranslator) TranslateFrame(f Frame) (Frame, bool) {
	if f.Port != t.SourcePort {
		return Frame{}, false
	}
	f.Port = t.DestPort
	return f, true
}
