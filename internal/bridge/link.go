// Package bridge runs cross-connect links: it relays KISS traffic
// between two endpoints, supervises sessions, and restarts failed
// links with backoff.
package bridge

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/kkirby/rax25kb/internal/capture"
	"github.com/kkirby/rax25kb/internal/observability"
	"github.com/kkirby/rax25kb/internal/transport"
)

// LinkState is the supervision state of one link. The numeric values
// are exported on the link state gauge.
type LinkState int

const (
	StateConnecting LinkState = iota
	StateRelaying
	StateBackoff
	StateStopped
)

func (s LinkState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateRelaying:
		return "relaying"
	case StateBackoff:
		return "backoff"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Side is one end of a link: the endpoint plus the framing attributes
// the relay needs to translate traffic toward the other side.
type Side struct {
	Endpoint transport.Endpoint

	// Serial marks a TNC-facing side. Phil-flag repairs only apply
	// on serial sides.
	Serial bool

	// Extended marks an XKISS TNC, whose port numbering is
	// independent of standard KISS even when the numbers match.
	Extended bool
}

// LinkOptions configures one cross-connect link.
type LinkOptions struct {
	ID string
	A  Side
	B  Side

	PhilFlag  bool
	ParseKISS bool
	Dump      bool
	DumpAX25  bool
	RawCopy   bool

	// MaxAttempts bounds consecutive failed sessions before the
	// link stops; zero retries forever.
	MaxAttempts int
	Backoff     BackoffConfig

	Capture *capture.Writer
	Logger  zerolog.Logger
}

// Link is one supervised cross-connect.
type Link struct {
	opts LinkOptions
	log  zerolog.Logger

	mu      sync.Mutex
	state   LinkState
	attempt int
	lastErr error
	since   time.Time

	restarts      atomic.Uint64
	framesAB      atomic.Uint64
	framesBA      atomic.Uint64
	bytesAB       atomic.Uint64
	bytesBA       atomic.Uint64
	framingErrors atomic.Uint64
	dropped       atomic.Uint64
}

func NewLink(opts LinkOptions) *Link {
	l := &Link{
		opts:  opts,
		log:   opts.Logger.With().Str("link", opts.ID).Logger(),
		state: StateConnecting,
		since: time.Now(),
	}
	observability.RecordLinkState(opts.ID, int(StateConnecting))
	return l
}

func (l *Link) ID() string { return l.opts.ID }

func (l *Link) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Link) setState(s LinkState, cause error) {
	l.mu.Lock()
	prev := l.state
	l.state = s
	if cause != nil {
		l.lastErr = cause
	}
	if s != prev {
		l.since = time.Now()
	}
	l.mu.Unlock()
	observability.RecordLinkState(l.opts.ID, int(s))
	if s != prev {
		l.log.Info().
			Str("from", prev.String()).
			Str("to", s.String()).
			Msg("link state change")
	}
}

// LinkStatus is a point-in-time snapshot for the status endpoint.
type LinkStatus struct {
	ID        string    `json:"id"`
	State     string    `json:"state"`
	EndpointA string    `json:"endpoint_a"`
	EndpointB string    `json:"endpoint_b"`
	Attempt   int       `json:"attempt"`
	Since     time.Time `json:"since"`
	LastError string    `json:"last_error,omitempty"`

	Restarts      uint64 `json:"restarts"`
	FramesAToB    uint64 `json:"frames_a_to_b"`
	FramesBToA    uint64 `json:"frames_b_to_a"`
	BytesAToB     uint64 `json:"bytes_a_to_b"`
	BytesBToA     uint64 `json:"bytes_b_to_a"`
	FramingErrors uint64 `json:"framing_errors"`
	DroppedFrames uint64 `json:"dropped_frames"`
}

func (l *Link) Status() LinkStatus {
	l.mu.Lock()
	st := LinkStatus{
		ID:        l.opts.ID,
		State:     l.state.String(),
		EndpointA: l.opts.A.Endpoint.Label(),
		EndpointB: l.opts.B.Endpoint.Label(),
		Attempt:   l.attempt,
		Since:     l.since,
	}
	if l.lastErr != nil {
		st.LastError = l.lastErr.Error()
	}
	l.mu.Unlock()

	st.Restarts = l.restarts.Load()
	st.FramesAToB = l.framesAB.Load()
	st.FramesBToA = l.framesBA.Load()
	st.BytesAToB = l.bytesAB.Load()
	st.BytesBToA = l.bytesBA.Load()
	st.FramingErrors = l.framingErrors.Load()
	st.DroppedFrames = l.dropped.Load()
	return st
}

func (l *Link) countFrame(dir string, payloadBytes int) {
	switch dir {
	case dirAToB:
		l.framesAB.Add(1)
		l.bytesAB.Add(uint64(payloadBytes))
	default:
		l.framesBA.Add(1)
		l.bytesBA.Add(uint64(payloadBytes))
	}
	observability.RecordRelayedFrame(l.opts.ID, dir, payloadBytes)
}

func (l *Link) countFramingError(dir string) {
	l.framingErrors.Add(1)
	observability.RecordFramingError(l.opts.ID, dir)
}

func (l *Link) countDropped(dir string) {
	l.dropped.Add(1)
	observability.RecordDroppedFrame(l.opts.ID, dir)
}
