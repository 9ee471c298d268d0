package bridge

import (
	"context"

	"github.com/kkirby/rax25kb/internal/kiss"
	"github.com/kkirby/rax25kb/internal/observability"
	"github.com/kkirby/rax25kb/internal/transport"
)

const (
	dirAToB = "a_to_b"
	dirBToA = "b_to_a"
)

// readBufSize matches typical TNC serial buffering; reads return
// whatever is pending, the decoders reassemble frames across chunks.
const readBufSize = 2048

type pumpConfig struct {
	src, dst transport.Transport
	srcSide  Side
	dstSide  Side
	dir      string
}

// translator routes frames from this pump's source port to its
// destination port.
func (cfg pumpConfig) translator() (kiss.PortTranslator, error) {
	return kiss.NewPortTranslator(
		cfg.srcSide.Endpoint.KISSPort(),
		cfg.dstSide.Endpoint.KISSPort(),
		cfg.srcSide.Extended,
		cfg.dstSide.Extended,
	)
}

// runSession relays between two open transports until one side fails
// or ctx is done. The first pump error closes both transports, which
// unblocks the peer pump; the error that ended the session is
// returned.
func (l *Link) runSession(ctx context.Context, a, b transport.Transport) error {
	errc := make(chan error, 2)
	go func() {
		errc <- l.pump(ctx, pumpConfig{
			src: a, dst: b,
			srcSide: l.opts.A, dstSide: l.opts.B,
			dir: dirAToB,
		})
	}()
	go func() {
		errc <- l.pump(ctx, pumpConfig{
			src: b, dst: a,
			srcSide: l.opts.B, dstSide: l.opts.A,
			dir: dirBToA,
		})
	}()

	err := <-errc
	_ = a.Close()
	_ = b.Close()
	<-errc
	return err
}

func (l *Link) pump(ctx context.Context, cfg pumpConfig) error {
	switch {
	case l.opts.RawCopy:
		return l.pumpRawCopy(ctx, cfg)
	case l.opts.PhilFlag:
		return l.pumpSplit(ctx, cfg)
	default:
		return l.pumpFrames(ctx, cfg)
	}
}

// readLoop drives one direction: short reads go to handle, timeouts
// poll ctx, anything stream-ending terminates the pump.
func (l *Link) readLoop(ctx context.Context, src transport.Transport, handle func([]byte) error) error {
	buf := make([]byte, readBufSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := src.Read(buf)
		if n > 0 {
			if herr := handle(buf[:n]); herr != nil {
				return herr
			}
		}
		if err != nil {
			if transport.IsTimeout(err) {
				continue
			}
			return transport.AsLost(err)
		}
	}
}

// pumpFrames is the default path: decode KISS, filter by the source
// side's TNC port, rewrite the port nibble for the destination side,
// re-encode. Framing errors are counted and skipped; decoding resumes
// at the next delimiter.
func (l *Link) pumpFrames(ctx context.Context, cfg pumpConfig) error {
	dec := &kiss.Decoder{}
	tr, err := cfg.translator()
	if err != nil {
		return err
	}

	return l.readLoop(ctx, cfg.src, func(chunk []byte) error {
		frames, ferr := dec.Feed(chunk)
		for _, f := range frames {
			l.inspectFrame(cfg.dir, f)
			out, ok := tr.TranslateFrame(f)
			if !ok {
				l.countDropped(cfg.dir)
				l.log.Debug().
					Str("direction", cfg.dir).
					Uint8("port", f.Port).
					Uint8("want", tr.SourcePort).
					Msg("dropping frame for foreign port")
				continue
			}
			if err := writeFull(cfg.dst, kiss.Encode(out)); err != nil {
				return transport.AsLost(err)
			}
			l.countFrame(cfg.dir, len(f.Payload))
		}
		if ferr != nil {
			l.countFramingError(cfg.dir)
			l.log.Warn().
				Str("direction", cfg.dir).
				Err(ferr).
				Msg("kiss framing error, resyncing")
		}
		return nil
	})
}

// pumpSplit is the phil-flag path: frames are split on delimiters but
// never de-escaped, so improperly escaped delimiter bytes from buggy
// TNC firmware survive long enough to be repaired in place. Capture
// and inspection decode a copy of each repaired frame; the relayed
// bytes stay raw.
func (l *Link) pumpSplit(ctx context.Context, cfg pumpConfig) error {
	sp := &kiss.Splitter{}
	tr, err := cfg.translator()
	if err != nil {
		return err
	}
	var dec *kiss.Decoder
	if l.opts.Capture != nil || l.opts.ParseKISS || l.opts.Dump || l.opts.DumpAX25 {
		dec = &kiss.Decoder{}
	}

	return l.readLoop(ctx, cfg.src, func(chunk []byte) error {
		for _, raw := range sp.Feed(chunk) {
			if _, _, ok := kiss.PeekInfo(raw); !ok {
				continue
			}
			if cfg.srcSide.Serial {
				raw = kiss.RepairFrame(raw)
			}
			out, ok := tr.Translate(raw)
			if !ok {
				l.countDropped(cfg.dir)
				continue
			}
			if dec != nil {
				dec.Reset()
				if fs, _ := dec.Feed(out); len(fs) == 1 {
					l.inspectFrame(cfg.dir, fs[0])
				}
			}
			if cfg.dstSide.Serial {
				out = kiss.GuardSerial(out)
			}
			if err := writeFull(cfg.dst, out); err != nil {
				return transport.AsLost(err)
			}
			l.countFrame(cfg.dir, len(raw))
		}
		return nil
	})
}

// pumpRawCopy forwards bytes untouched. No framing, no port
// translation, no inspection beyond the optional dump.
func (l *Link) pumpRawCopy(ctx context.Context, cfg pumpConfig) error {
	return l.readLoop(ctx, cfg.src, func(chunk []byte) error {
		if l.opts.Dump {
			l.log.Info().
				Str("direction", cfg.dir).
				Msg("raw dump\n" + HexDump(chunk))
		}
		if err := writeFull(cfg.dst, chunk); err != nil {
			return transport.AsLost(err)
		}
		switch cfg.dir {
		case dirAToB:
			l.bytesAB.Add(uint64(len(chunk)))
		default:
			l.bytesBA.Add(uint64(len(chunk)))
		}
		observability.RecordRelayedBytes(l.opts.ID, cfg.dir, len(chunk))
		return nil
	})
}

func writeFull(dst transport.Transport, p []byte) error {
	for len(p) > 0 {
		n, err := dst.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}
