package capture

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestWriterProducesReadablePcap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.pcap")
	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	payload := []byte{0x82, 0xA0, 0xA4, 0xA6, 0x40, 0x40, 0x60}
	if err := w.WritePacket(payload); err != nil {
		t.Fatalf("write packet: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(raw) < 24+16+len(payload) {
		t.Fatalf("pcap too short: %d bytes", len(raw))
	}
	if got := binary.LittleEndian.Uint32(raw[0:4]); got != 0xA1B2C3D4 {
		t.Fatalf("bad magic: 0x%08X", got)
	}
	if got := binary.LittleEndian.Uint32(raw[20:24]); got != uint32(LinkTypeAX25KISS) {
		t.Fatalf("bad link type: %d", got)
	}
	// Record header: incl_len and orig_len at offsets 8 and 12.
	if got := binary.LittleEndian.Uint32(raw[24+8 : 24+12]); got != uint32(len(payload)) {
		t.Fatalf("bad capture length: %d", got)
	}
}
