package kiss

// Splitter accumulates stream bytes into raw delimited frames,
// keeping the frame bytes verbatim (delimiters included, escapes
// untouched). The PhilFlag and raw-inspection relay paths use it
// where the damage being repaired lives inside the escape layer,
// so de-escaping first would destroy the evidence.
type Splitter struct {
	buf     []byte
	inFrame bool
}

// Feed consumes one chunk and returns every complete raw frame,
// each of the form FEND ... FEND. Back-to-back delimiters are
// treated as separators, never as empty frames.
func (s *Splitter) Feed(p []byte) [][]byte {
	var frames [][]byte
	for _, b := range p {
		if b == FEND {
			if s.inFrame && len(s.buf) > 1 {
				s.buf = append(s.buf, b)
				frames = append(frames, append([]byte(nil), s.buf...))
			}
			// The closing FEND of one frame may open the next.
			s.buf = append(s.buf[:0], b)
			s.inFrame = true
			continue
		}
		if s.inFrame {
			s.buf = append(s.buf, b)
		}
	}
	return frames
}

// Reset discards any partial frame.
func (s *Splitter) Reset() {
	s.buf = s.buf[:0]
	s.inFrame = false
}
