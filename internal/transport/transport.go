// Package transport provides the duplex byte-channel adapters the
// bridge relays between: serial devices and TCP sockets, behind one
// interface with a uniform connection-lost signal.
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

var (
	// ErrConnectionLost marks an adapter I/O failure that ends the
	// link session. Closing an adapter surfaces pending reads and
	// writes as ErrConnectionLost; it is the only cancellation
	// primitive the relay needs.
	ErrConnectionLost = errors.New("transport: connection lost")

	ErrEndpointClosed = errors.New("transport: endpoint closed")
)

// Transport is one open duplex byte channel. Read blocks up to the
// adapter's deadline and may return short chunks; Write blocks until
// the data is accepted or the channel fails. Each side of a link has
// exactly one reading and one writing goroutine, so implementations
// need no locking on the data path.
type Transport interface {
	io.ReadWriteCloser

	// Label identifies the adapter in logs and status output.
	Label() string
}

// Endpoint produces Transports for one side of a link. Open blocks
// until a channel is available (a dial completes, a client connects,
// a device opens) or ctx is done. The supervisor re-Opens an endpoint
// after every session failure.
type Endpoint interface {
	Open(ctx context.Context) (Transport, error)
	Close() error
	Label() string

	// KISSPort is the TNC port this endpoint speaks on.
	KISSPort() uint8
}

// lostError wraps an underlying I/O error so errors.Is matches
// ErrConnectionLost while the cause stays visible.
type lostError struct{ err error }

func (e *lostError) Error() string { return "transport: connection lost: " + e.err.Error() }
func (e *lostError) Unwrap() error { return ErrConnectionLost }
func (e *lostError) Cause() error  { return e.err }

// AsLost classifies err: stream-ending conditions (EOF, closed
// socket, reset, device gone) become ErrConnectionLost wrappers,
// anything else passes through.
func AsLost(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConnectionLost) {
		return err
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ENXIO) || errors.Is(err, syscall.EIO) {
		return &lostError{err: err}
	}
	return err
}

// IsLost reports whether err ends the link session.
func IsLost(err error) bool {
	return errors.Is(err, ErrConnectionLost)
}

// IsTimeout reports whether err is a read deadline expiring, which
// the relay treats as "no data yet" rather than a failure.
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
