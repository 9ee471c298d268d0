package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// ReadChunkTimeout is the per-read deadline on TCP adapters. It keeps
// pump goroutines responsive to shutdown without busy polling.
const ReadChunkTimeout = 500 * time.Millisecond

// tcpConn adapts one accepted or dialed connection.
type tcpConn struct {
	conn  net.Conn
	label string
}

func (c *tcpConn) Read(p []byte) (int, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(ReadChunkTimeout))
	n, err := c.conn.Read(p)
	if err != nil && !IsTimeout(err) {
		return n, AsLost(err)
	}
	if IsTimeout(err) {
		// Deadline expiry with partial data is still data.
		if n > 0 {
			return n, nil
		}
		return 0, err
	}
	return n, nil
}

func (c *tcpConn) Write(p []byte) (int, error) {
	n, err := c.conn.Write(p)
	if err != nil {
		return n, AsLost(err)
	}
	return n, nil
}

func (c *tcpConn) Close() error { return c.conn.Close() }

func (c *tcpConn) Label() string { return c.label }

// NewConn wraps an established net.Conn as a Transport. Used for
// accepted/dialed sockets and for in-memory pipes in tests.
func NewConn(conn net.Conn, label string) Transport {
	return &tcpConn{conn: conn, label: label}
}

// TCPListenEndpoint exposes a KISS-over-TCP server: it binds once
// and each Open hands the relay the next accepted client. One client
// is served at a time, matching the one-session-per-link model.
type TCPListenEndpoint struct {
	addr string
	port uint8

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

func NewTCPListenEndpoint(addr string, kissPort uint8) *TCPListenEndpoint {
	return &TCPListenEndpoint{addr: addr, port: kissPort}
}

func (e *TCPListenEndpoint) Label() string   { return "tcp-listen:" + e.addr }
func (e *TCPListenEndpoint) KISSPort() uint8 { return e.port }

func (e *TCPListenEndpoint) Open(ctx context.Context) (Transport, error) {
	ln, err := e.ensureListener()
	if err != nil {
		return nil, err
	}

	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := ln.Accept()
		ch <- result{conn, err}
	}()

	select {
	case <-ctx.Done():
		// Unblock the accept; the listener is rebuilt on next Open.
		e.mu.Lock()
		if e.listener == ln {
			e.listener = nil
		}
		e.mu.Unlock()
		_ = ln.Close()
		if r := <-ch; r.err == nil {
			_ = r.conn.Close()
		}
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, AsLost(r.err)
		}
		return &tcpConn{conn: r.conn, label: fmt.Sprintf("tcp:%s", r.conn.RemoteAddr())}, nil
	}
}

func (e *TCPListenEndpoint) ensureListener() (net.Listener, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrEndpointClosed
	}
	if e.listener != nil {
		return e.listener, nil
	}
	ln, err := net.Listen("tcp", e.addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", e.addr, err)
	}
	e.listener = ln
	return ln, nil
}

func (e *TCPListenEndpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.listener != nil {
		err := e.listener.Close()
		e.listener = nil
		return err
	}
	return nil
}

// TCPDialEndpoint connects out to a remote KISS-over-TCP service.
type TCPDialEndpoint struct {
	addr    string
	port    uint8
	timeout time.Duration
}

func NewTCPDialEndpoint(addr string, kissPort uint8, connectTimeout time.Duration) *TCPDialEndpoint {
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	return &TCPDialEndpoint{addr: addr, port: kissPort, timeout: connectTimeout}
}

func (e *TCPDialEndpoint) Label() string   { return "tcp:" + e.addr }
func (e *TCPDialEndpoint) KISSPort() uint8 { return e.port }

func (e *TCPDialEndpoint) Open(ctx context.Context) (Transport, error) {
	dialer := net.Dialer{Timeout: e.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", e.addr)
	if err != nil {
		return nil, AsLost(err)
	}
	return &tcpConn{conn: conn, label: "tcp:" + e.addr}, nil
}

func (e *TCPDialEndpoint) Close() error { return nil }
