package bridge

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kkirby/rax25kb/internal/kiss"
	"github.com/kkirby/rax25kb/internal/testutil/testlog"
	"github.com/kkirby/rax25kb/internal/transport"
)

// failingEndpoint refuses every Open and counts the attempts.
type failingEndpoint struct {
	opens atomic.Int32
}

func (e *failingEndpoint) Open(ctx context.Context) (transport.Transport, error) {
	e.opens.Add(1)
	return nil, errors.New("device unavailable")
}

func (e *failingEndpoint) Close() error    { return nil }
func (e *failingEndpoint) Label() string   { return "failing" }
func (e *failingEndpoint) KISSPort() uint8 { return 0 }

func fastBackoff() BackoffConfig {
	return BackoffConfig{
		InitialDelay: time.Millisecond,
		Multiplier:   1.0,
		MaxDelay:     5 * time.Millisecond,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSupervisorRestartsAfterSessionLoss(t *testing.T) {
	testlog.Start(t)

	epA := newFakeEndpoint(0, 2)
	epB := newFakeEndpoint(0, 2)
	a1Local, a1Remote := net.Pipe()
	b1Local, b1Remote := net.Pipe()
	a2Local, a2Remote := net.Pipe()
	b2Local, b2Remote := net.Pipe()
	epA.conns <- transport.NewConn(a1Local, "a1")
	epA.conns <- transport.NewConn(a2Local, "a2")
	epB.conns <- transport.NewConn(b1Local, "b1")
	epB.conns <- transport.NewConn(b2Local, "b2")

	l := NewLink(LinkOptions{
		ID:      "restart",
		A:       Side{Endpoint: epA},
		B:       Side{Endpoint: epB},
		Backoff: fastBackoff(),
		Logger:  zerolog.Nop(),
	})
	sup := NewSupervisor(zerolog.Nop())
	if err := sup.Add(l); err != nil {
		t.Fatalf("add: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sup.Start(ctx)
	defer func() {
		cancel()
		sup.Shutdown()
	}()

	mustWrite(t, a1Remote, dataFrame(0, "first"))
	frames := collectFrames(t, b1Remote, &kiss.Decoder{}, 1)
	if string(frames[0].Payload) != "first" {
		t.Fatalf("payload %q, want %q", frames[0].Payload, "first")
	}

	// Kill the first session; the supervisor should back off and
	// come back on the staged second pair.
	_ = a1Remote.Close()

	mustWrite(t, a2Remote, dataFrame(0, "second"))
	frames = collectFrames(t, b2Remote, &kiss.Decoder{}, 1)
	if string(frames[0].Payload) != "second" {
		t.Fatalf("payload %q, want %q", frames[0].Payload, "second")
	}

	st := l.Status()
	if st.State != StateRelaying.String() {
		t.Fatalf("state = %s, want relaying", st.State)
	}
	if st.Restarts == 0 {
		t.Fatal("expected a recorded restart")
	}
}

func TestSupervisorStopsAfterMaxAttempts(t *testing.T) {
	testlog.Start(t)

	epA := &failingEndpoint{}
	l := NewLink(LinkOptions{
		ID:          "doomed",
		A:           Side{Endpoint: epA},
		B:           Side{Endpoint: newFakeEndpoint(0, 0)},
		MaxAttempts: 3,
		Backoff:     fastBackoff(),
		Logger:      zerolog.Nop(),
	})
	sup := NewSupervisor(zerolog.Nop())
	if err := sup.Add(l); err != nil {
		t.Fatalf("add: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sup.Start(ctx)
	defer func() {
		cancel()
		sup.Shutdown()
	}()

	waitFor(t, "link to stop", func() bool { return l.State() == StateStopped })

	if got := epA.opens.Load(); got != 3 {
		t.Fatalf("open attempts = %d, want 3", got)
	}
	st := l.Status()
	if st.LastError == "" {
		t.Fatal("expected last error to be recorded")
	}
	if st.Attempt != 3 {
		t.Fatalf("attempt = %d, want 3", st.Attempt)
	}
}

func TestSupervisorIsolatesFailingLink(t *testing.T) {
	testlog.Start(t)

	bad := NewLink(LinkOptions{
		ID:          "bad",
		A:           Side{Endpoint: &failingEndpoint{}},
		B:           Side{Endpoint: newFakeEndpoint(0, 0)},
		MaxAttempts: 2,
		Backoff:     fastBackoff(),
		Logger:      zerolog.Nop(),
	})

	epA := newFakeEndpoint(0, 1)
	epB := newFakeEndpoint(0, 1)
	aLocal, aRemote := net.Pipe()
	bLocal, bRemote := net.Pipe()
	epA.conns <- transport.NewConn(aLocal, "a")
	epB.conns <- transport.NewConn(bLocal, "b")
	good := NewLink(LinkOptions{
		ID:      "good",
		A:       Side{Endpoint: epA},
		B:       Side{Endpoint: epB},
		Backoff: fastBackoff(),
		Logger:  zerolog.Nop(),
	})

	sup := NewSupervisor(zerolog.Nop())
	for _, l := range []*Link{bad, good} {
		if err := sup.Add(l); err != nil {
			t.Fatalf("add %s: %v", l.ID(), err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	sup.Start(ctx)
	defer func() {
		cancel()
		sup.Shutdown()
	}()

	waitFor(t, "bad link to stop", func() bool { return bad.State() == StateStopped })

	mustWrite(t, aRemote, dataFrame(0, "still up"))
	frames := collectFrames(t, bRemote, &kiss.Decoder{}, 1)
	if string(frames[0].Payload) != "still up" {
		t.Fatalf("payload %q, want %q", frames[0].Payload, "still up")
	}
	if good.State() != StateRelaying {
		t.Fatalf("good link state = %s, want relaying", good.State())
	}

	statuses := sup.Status()
	if len(statuses) != 2 {
		t.Fatalf("status count = %d, want 2", len(statuses))
	}
}

func TestSupervisorRejectsDuplicateLinkID(t *testing.T) {
	sup := NewSupervisor(zerolog.Nop())
	mk := func() *Link {
		return NewLink(LinkOptions{
			ID:     "dup",
			A:      Side{Endpoint: newFakeEndpoint(0, 0)},
			B:      Side{Endpoint: newFakeEndpoint(0, 0)},
			Logger: zerolog.Nop(),
		})
	}
	if err := sup.Add(mk()); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := sup.Add(mk()); err == nil {
		t.Fatal("expected duplicate id error")
	}
}
