package ax25

// FrameType is the coarse AX.25 frame class derived from the control
// field.
type FrameType int

const (
	TypeUnknown FrameType = iota
	TypeI
	TypeS
	TypeU
	TypeUI
)

func (t FrameType) String() string {
	switch t {
	case TypeI:
		return "I"
	case TypeS:
		return "S"
	case TypeU:
		return "U"
	case TypeUI:
		return "UI"
	default:
		return "Unknown"
	}
}

// Unnumbered frame control values with the P/F bit masked out.
const (
	ctlSABM  uint8 = 0x2F
	ctlSABME uint8 = 0x63
	ctlDISC  uint8 = 0x43
	ctlDM    uint8 = 0x0F
	ctlFRMR  uint8 = 0x87
	ctlUI    uint8 = 0x03
)

// Type classifies the frame from its control field.
func (f Frame) Type() FrameType {
	switch {
	case f.Control&0x01 == 0:
		return TypeI
	case f.Control&0x03 == 0x01:
		return TypeS
	case f.Control&0x03 == 0x03:
		if f.Control&0xEF == ctlUI {
			return TypeUI
		}
		return TypeU
	default:
		return TypeUnknown
	}
}

// Phase names the connection phase the frame belongs to, for
// inspection output.
func (f Frame) Phase() string {
	switch f.Type() {
	case TypeI:
		return "CONNECTED (Information Transfer)"
	case TypeS:
		return "CONNECTED (Supervisory)"
	case TypeUI:
		return "UNCONNECTED (UI Frame)"
	case TypeU:
		switch f.Control & 0xEF {
		case ctlSABM:
			return "SETUP (SABM)"
		case ctlSABME:
			return "SETUP (SABME)"
		case ctlDISC:
			return "DISCONNECT (DISC)"
		case ctlDM:
			return "DISCONNECT (DM)"
		case ctlFRMR:
			return "ERROR (FRMR)"
		default:
			return "CONTROL (Unnumbered)"
		}
	default:
		return "UNKNOWN"
	}
}
