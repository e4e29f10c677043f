package netio

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/oceantech/rvdaq/internal/formats"
)

// TCPWriter writes records as lines to a TCP connection, reconnecting
// when the peer half-closes (detected by a one-byte read probe that
// returns EOF, standing in for the original's "peek for EOF" reconnect
// detection) or the write itself fails.
type TCPWriter struct {
	addr string
	mu   sync.Mutex
	conn net.Conn
}

// NewTCPWriter connects to addr ("host:port"), dialing lazily on the
// first Write so a writer can be constructed before its peer is up.
func NewTCPWriter(addr string) *TCPWriter {
	return &TCPWriter{addr: addr}
}

func (w *TCPWriter) InputFormat() formats.Format { return formats.Text }

func (w *TCPWriter) CanAccept(source formats.Format) bool {
	return formats.Text.CanAccept(source)
}

func (w *TCPWriter) Write(rec any) error {
	line, ok := rec.(string)
	if !ok {
		return fmt.Errorf("netio: TCPWriter expects a string record, got %T", rec)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil || isPeerClosed(w.conn) {
		if w.conn != nil {
			w.conn.Close()
		}
		conn, err := net.DialTimeout("tcp", w.addr, 5*time.Second)
		if err != nil {
			return fmt.Errorf("netio: TCPWriter: dial %s: %w", w.addr, err)
		}
		w.conn = conn
	}

	if _, err := fmt.Fprintln(w.conn, line); err != nil {
		w.conn.Close()
		w.conn = nil
		return fmt.Errorf("netio: TCPWriter: write: %w", err)
	}
	return nil
}

// isPeerClosed reads one byte with a near-zero deadline, which on a
// half-closed TCP connection returns io.EOF immediately instead of
// blocking — the Go-native substitute for the original's MSG_PEEK
// probe. Unlike a peek, a byte the peer did send is consumed and
// discarded.
func isPeerClosed(conn net.Conn) bool {
	conn.SetReadDeadline(time.Now().Add(time.Millisecond))
	defer conn.SetReadDeadline(time.Time{})
	one := make([]byte, 1)
	n, err := conn.Read(one)
	if n > 0 {
		return false
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return false
	}
	return err != nil
}

func (w *TCPWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	return err
}

// TCPReader reads newline-delimited messages from an accepted TCP
// connection, reconnecting (as a client) or re-accepting (as a server)
// when the peer disconnects, grounded on
// original_source/logger/readers/tcp_reader.py.
type TCPReader struct {
	listener net.Listener
	dialAddr string

	mu      sync.Mutex
	conn    net.Conn
	scanner *bufio.Scanner
}

// NewTCPReaderListen listens on addr and accepts one client connection
// at a time (spec.md §4.9's TCP reader server mode).
func NewTCPReaderListen(addr string) (*TCPReader, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("netio: TCPReader: listen %s: %w", addr, err)
	}
	return &TCPReader{listener: l}, nil
}

// NewTCPReaderDial connects as a client to addr (spec.md §4.9's TCP
// reader client mode).
func NewTCPReaderDial(addr string) *TCPReader {
	return &TCPReader{dialAddr: addr}
}

func (r *TCPReader) OutputFormat() formats.Format { return formats.Text }

func (r *TCPReader) Read(ctx context.Context) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		if r.conn == nil {
			if err := r.connect(ctx); err != nil {
				return nil, err
			}
		}
		if r.scanner.Scan() {
			return r.scanner.Text(), nil
		}
		r.conn.Close()
		r.conn = nil
		r.scanner = nil
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
}

func (r *TCPReader) connect(ctx context.Context) error {
	var conn net.Conn
	var err error
	if r.listener != nil {
		conn, err = r.listener.Accept()
	} else {
		conn, err = net.DialTimeout("tcp", r.dialAddr, 5*time.Second)
	}
	if err != nil {
		return fmt.Errorf("netio: TCPReader: connect: %w", err)
	}
	r.conn = conn
	r.scanner = bufio.NewScanner(conn)
	return nil
}

func (r *TCPReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		r.conn.Close()
	}
	if r.listener != nil {
		return r.listener.Close()
	}
	return nil
}
