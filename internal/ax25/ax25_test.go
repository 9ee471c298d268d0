package ax25

import (
	"bytes"
	"errors"
	"testing"
)

func uiFrame(t *testing.T, via ...Address) Frame {
	t.Helper()
	pid := uint8(0xF0)
	return Frame{
		Dst:     NewAddress("APRS", 0),
		Src:     NewAddress("N0CALL", 7),
		Via:     via,
		Control: 0x03,
		PID:     &pid,
		Info:    []byte("hello world"),
	}
}

func TestParseWireRoundTrip(t *testing.T) {
	in := uiFrame(t)
	wire := in.Wire()

	out, err := Parse(wire)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out.Src.String() != "N0CALL-7" || out.Dst.String() != "APRS" {
		t.Fatalf("address mismatch: src=%s dst=%s", out.Src, out.Dst)
	}
	if out.Control != 0x03 || out.PID == nil || *out.PID != 0xF0 {
		t.Fatalf("control/pid mismatch: %+v", out)
	}
	if !bytes.Equal(out.Info, in.Info) {
		t.Fatalf("info mismatch: %q", out.Info)
	}
	if got := out.Wire(); !bytes.Equal(got, wire) {
		t.Fatalf("round trip not byte-exact:\n got=% X\nwant=% X", got, wire)
	}
}

func TestParseWithDigipeaters(t *testing.T) {
	repeated := NewAddress("WIDE1", 1)
	repeated.Repeated = true
	in := uiFrame(t, repeated, NewAddress("WIDE2", 2))
	wire := in.Wire()

	out, err := Parse(wire)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(out.Via) != 2 {
		t.Fatalf("expected 2 digipeaters, got %d", len(out.Via))
	}
	if !out.Via[0].Repeated || out.Via[0].String() != "WIDE1-1" {
		t.Fatalf("first digi mismatch: %+v", out.Via[0])
	}
	if out.Via[1].Repeated || out.Via[1].String() != "WIDE2-2" {
		t.Fatalf("second digi mismatch: %+v", out.Via[1])
	}
	if got := out.Wire(); !bytes.Equal(got, wire) {
		t.Fatalf("digipeater round trip not byte-exact")
	}
}

func TestParseTooShort(t *testing.T) {
	if _, err := Parse(make([]byte, 13)); !errors.Is(err, ErrInvalidFrame) {
		t.Fatalf("expected ErrInvalidFrame, got %v", err)
	}
}

func TestParseExtensionBitInsideCallsign(t *testing.T) {
	wire := uiFrame(t).Wire()
	wire[2] |= 0x01
	if _, err := Parse(wire); !errors.Is(err, ErrInvalidFrame) {
		t.Fatalf("expected ErrInvalidFrame, got %v", err)
	}
}

func TestParseDestinationCannotEndAddressList(t *testing.T) {
	wire := uiFrame(t).Wire()
	wire[6] |= 0x01
	if _, err := Parse(wire); !errors.Is(err, ErrInvalidFrame) {
		t.Fatalf("expected ErrInvalidFrame, got %v", err)
	}
}

func TestParseTruncatedAddressList(t *testing.T) {
	wire := uiFrame(t, NewAddress("WIDE1", 1)).Wire()
	// Cut mid-way through the digipeater address.
	if _, err := Parse(wire[:17]); !errors.Is(err, ErrInvalidFrame) {
		t.Fatalf("expected ErrInvalidFrame, got %v", err)
	}
}

func TestParseMissingPID(t *testing.T) {
	f := uiFrame(t)
	f.PID = nil
	f.Info = nil
	wire := f.Wire()
	if _, err := Parse(wire); !errors.Is(err, ErrInvalidFrame) {
		t.Fatalf("UI frame without PID must be invalid, got %v", err)
	}
}

func TestFrameClassification(t *testing.T) {
	cases := []struct {
		control uint8
		typ     FrameType
		phase   string
	}{
		{0x00, TypeI, "CONNECTED (Information Transfer)"},
		{0x01, TypeS, "CONNECTED (Supervisory)"},
		{0x03, TypeUI, "UNCONNECTED (UI Frame)"},
		{0x2F, TypeU, "SETUP (SABM)"},
		{0x43, TypeU, "DISCONNECT (DISC)"},
		{0x0F, TypeU, "DISCONNECT (DM)"},
		{0x87, TypeU, "ERROR (FRMR)"},
	}
	for _, tc := range cases {
		f := Frame{Control: tc.control}
		if got := f.Type(); got != tc.typ {
			t.Fatalf("control=0x%02X: type=%v want %v", tc.control, got, tc.typ)
		}
		if got := f.Phase(); got != tc.phase {
			t.Fatalf("control=0x%02X: phase=%q want %q", tc.control, got, tc.phase)
		}
	}
}

func TestAddressString(t *testing.T) {
	if got := NewAddress("K7ABC", 0).String(); got != "K7ABC" {
		t.Fatalf("got %q", got)
	}
	if got := NewAddress("K7ABC", 9).String(); got != "K7ABC-9" {
		t.Fatalf("got %q", got)
	}
}
