package kiss

import "fmt"

// DefaultMaxFrameBytes bounds decoder buffering per frame. AX.25
// information fields top out at 256 bytes; this leaves generous room
// for oversized TNC traffic without letting a lost delimiter grow the
// buffer forever.
const DefaultMaxFrameBytes = 4096

// Decoder extracts de-escaped frames from a KISS byte stream. It
// keeps partial-frame state across Feed calls, so a frame split over
// any number of reads decodes identically to the unsplit stream.
// A Decoder belongs to one stream direction and is not safe for
// concurrent use.
type Decoder struct {
	// MaxFrameBytes caps the de-escaped size of a single frame.
	// Zero means DefaultMaxFrameBytes.
	MaxFrameBytes int

	buf     []byte
	inFrame bool
	escaped bool
	haveCmd bool
	cmd     byte
	dropped uint64
}

// Dropped reports how many frames were discarded for framing errors
// since the decoder was created.
func (d *Decoder) Dropped() uint64 { return d.dropped }

// Reset discards any partial frame, e.g. after a transport reconnect.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.inFrame = false
	d.escaped = false
	d.haveCmd = false
}

// Feed consumes one chunk of stream bytes and returns every complete
// frame it produced, in stream order. A framing error (invalid or
// truncated escape, oversized frame) discards only the offending
// frame; decoding resynchronizes on the next delimiter and the
// frames decoded after it are still returned. The returned error
// wraps ErrFraming and describes the last such drop.
func (d *Decoder) Feed(p []byte) ([]Frame, error) {
	var frames []Frame
	var lastErr error

	for _, b := range p {
		if !d.inFrame {
			if b == FEND {
				d.inFrame = true
				d.haveCmd = false
			}
			// Bytes between frames are noise; drop them.
			continue
		}

		if d.escaped {
			d.escaped = false
			switch b {
			case TFEND:
				b = FEND
			case TFESC:
				b = FESC
			default:
				lastErr = fmt.Errorf("%w: invalid escape 0x%02X", ErrFraming, b)
				d.dropped++
				d.abortFrame(b)
				continue
			}
			if err := d.push(b); err != nil {
				lastErr = err
			}
			continue
		}

		switch b {
		case FEND:
			if !d.haveCmd {
				// Back-to-back delimiters separate frames; an empty
				// frame body is never emitted.
				continue
			}
			frames = append(frames, d.take())
		case FESC:
			if !d.haveCmd {
				// An escape before the command byte cannot form a
				// valid command; treat as framing damage.
				lastErr = fmt.Errorf("%w: escape before command byte", ErrFraming)
				d.dropped++
				d.abortFrame(0)
				continue
			}
			d.escaped = true
		default:
			if err := d.push(b); err != nil {
				lastErr = err
			}
		}
	}

	return frames, lastErr
}

func (d *Decoder) push(b byte) error {
	if !d.haveCmd {
		d.cmd = b
		d.haveCmd = true
		return nil
	}
	max := d.MaxFrameBytes
	if max == 0 {
		max = DefaultMaxFrameBytes
	}
	if len(d.buf) >= max {
		d.dropped++
		d.abortFrame(0)
		return fmt.Errorf("%w: frame larger than %d bytes", ErrFrameTooBig, max)
	}
	d.buf = append(d.buf, b)
	return nil
}

// abortFrame drops the partial frame and resynchronizes: decoding
// resumes at the next FEND (or immediately, when the damaging byte
// was itself a FEND).
func (d *Decoder) abortFrame(cur byte) {
	d.buf = d.buf[:0]
	d.haveCmd = false
	d.escaped = false
	d.inFrame = cur == FEND
}

func (d *Decoder) take() Frame {
	f := Frame{
		Port:    uint8(d.cmd >> 4),
		Command: uint8(d.cmd & 0x0F),
		Payload: append([]byte(nil), d.buf...),
	}
	d.buf = d.buf[:0]
	d.haveCmd = false
	// The closing FEND of one frame may open the next.
	d.inFrame = true
	return f
}
