package bridge

import (
	"fmt"
	"strings"

	"github.com/kkirby/rax25kb/internal/ax25"
	"github.com/kkirby/rax25kb/internal/kiss"
)

// HexDump renders data in the classic offset/hex/ASCII layout used by
// the dump flags.
func HexDump(data []byte) string {
	var b strings.Builder
	for off := 0; off < len(data); off += 16 {
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		row := data[off:end]

		fmt.Fprintf(&b, "%08x  ", off)
		for i := 0; i < 16; i++ {
			if i < len(row) {
				fmt.Fprintf(&b, "%02x ", row[i])
			} else {
				b.WriteString("   ")
			}
			if i == 7 {
				b.WriteByte(' ')
			}
		}
		b.WriteString(" |")
		for _, c := range row {
			if c >= 0x20 && c < 0x7F {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString("|\n")
	}
	return b.String()
}

func formatVia(via []ax25.Address) string {
	if len(via) == 0 {
		return ""
	}
	parts := make([]string, len(via))
	for i, a := range via {
		s := a.String()
		if a.Repeated {
			s += "*"
		}
		parts[i] = s
	}
	return strings.Join(parts, ",")
}

// inspectFrame emits the per-frame diagnostics the link's flags ask
// for. Frames that fail AX.25 parsing are reported and relayed anyway;
// inspection never filters traffic.
func (l *Link) inspectFrame(dir string, f kiss.Frame) {
	if l.opts.ParseKISS {
		l.log.Info().
			Str("direction", dir).
			Uint8("port", f.Port).
			Str("command", f.CommandName()).
			Int("bytes", len(f.Payload)).
			Msg("kiss frame")
	}
	if l.opts.Dump {
		l.log.Info().
			Str("direction", dir).
			Msg("frame dump\n" + HexDump(f.Payload))
	}

	if f.Command != kiss.CmdData {
		return
	}

	if l.opts.Capture != nil {
		if err := l.opts.Capture.WritePacket(f.Payload); err != nil {
			l.log.Warn().Err(err).Msg("pcap write failed")
		}
	}

	if !l.opts.ParseKISS && !l.opts.DumpAX25 {
		return
	}
	af, err := ax25.Parse(f.Payload)
	if err != nil {
		l.log.Debug().
			Str("direction", dir).
			Err(err).
			Msg("payload is not a parseable AX.25 frame")
		return
	}
	ev := l.log.Info().
		Str("direction", dir).
		Str("src", af.Src.String()).
		Str("dst", af.Dst.String()).
		Str("type", af.Type().String()).
		Str("phase", af.Phase())
	if via := formatVia(af.Via); via != "" {
		ev = ev.Str("via", via)
	}
	if af.PID != nil {
		ev = ev.Uint8("pid", *af.PID)
	}
	ev.Msg("ax25 frame")

	if l.opts.DumpAX25 && len(af.Info) > 0 {
		l.log.Info().
			Str("direction", dir).
			Msg("ax25 info dump\n" + HexDump(af.Info))
	}
}
