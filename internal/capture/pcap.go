// Package capture writes relayed AX.25 frames to a pcap file for
// offline analysis in wireshark and friends.
package capture

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"
)

// LinkTypeAX25KISS is DLT_AX25_KISS: AX.25 frames as carried in KISS
// data frames.
const LinkTypeAX25KISS = layers.LinkType(147)

const snapLen = 65535

// Writer appends AX.25 frame payloads to a pcap file. Safe for use
// from both relay directions at once.
type Writer struct {
	mu   sync.Mutex
	f    *os.File
	pcap *pcapgo.Writer
}

// NewWriter creates (truncating) the pcap file and writes its header.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("capture: create %s: %w", path, err)
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(snapLen, LinkTypeAX25KISS); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("capture: write header: %w", err)
	}
	return &Writer{f: f, pcap: w}, nil
}

// WritePacket records one AX.25 frame (the de-escaped payload of a
// KISS data frame) with the current timestamp.
func (w *Writer) WritePacket(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	ci := gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(data),
		Length:        len(data),
	}
	if err := w.pcap.WritePacket(ci, data); err != nil {
		return fmt.Errorf("capture: write packet: %w", err)
	}
	return w.f.Sync()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}
