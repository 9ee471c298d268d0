package kiss

// PhilFlag processing corrects packets passed by TNCs built on the
// TASCO modem chipset, which move frames from raw AX.25 to KISS
// framing without performing the byte swaps the KISS standard
// requires around 0xC0.

// RepairFrame re-escapes interior FEND bytes of a raw delimited
// frame (first and last byte are the delimiters and stay put). A
// well-formed frame passes through unchanged, since its interior can
// contain no bare FEND.
func RepairFrame(raw []byte) []byte {
	if len(raw) < 2 {
		return append([]byte(nil), raw...)
	}
	out := make([]byte, 0, len(raw)*2)
	out = append(out, raw[0])
	for _, b := range raw[1 : len(raw)-1] {
		if b == FEND {
			out = append(out, FESC, TFEND)
		} else {
			out = append(out, b)
		}
	}
	return append(out, raw[len(raw)-1])
}

// GuardSerial prefixes FESC to every 'C' and 'c' byte headed for the
// TNC so the serial stream can never contain the "TC0\n" sequence
// the radio firmware interprets as a command.
func GuardSerial(data []byte) []byte {
	out := make([]byte, 0, len(data)*2)
	for _, b := range data {
		if b == 'C' || b == 'c' {
			out = append(out, FESC, b)
		} else {
			out = append(out, b)
		}
	}
	return out
}
