package netio

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/oceantech/rvdaq/internal/formats"
)

// refcounts tracks how many readers/writers reference a given
// unix socket path within this process, so the last one to close
// removes the backing file — grounded on spec.md §4.9's refcounted
// temp-dir socket path.
var (
	refcountMu sync.Mutex
	refcounts  = map[string]int{}
)

func acquireSocketPath(path string) {
	refcountMu.Lock()
	refcounts[path]++
	refcountMu.Unlock()
}

func releaseSocketPath(path string) {
	refcountMu.Lock()
	refcounts[path]--
	remaining := refcounts[path]
	if remaining <= 0 {
		delete(refcounts, path)
	}
	refcountMu.Unlock()
	if remaining <= 0 {
		os.Remove(path)
	}
}

// UnixSocketPath builds a socket path under the system temp directory
// for the given name, matching the original's temp-dir convention.
func UnixSocketPath(name string) string {
	return filepath.Join(os.TempDir(), name+".sock")
}

// UnixSocketReader accepts and reads newline-delimited messages from a
// Unix-domain socket, sharing the listen path's refcount with any
// UnixSocketWriter on the same path.
type UnixSocketReader struct {
	path     string
	listener net.Listener
	mu       sync.Mutex
	conn     net.Conn
	scanner  *bufio.Scanner
}

func NewUnixSocketReader(path string) (*UnixSocketReader, error) {
	os.Remove(path) // stale socket file from a prior crashed run
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("netio: UnixSocketReader: listen %q: %w", path, err)
	}
	acquireSocketPath(path)
	return &UnixSocketReader{path: path, listener: l}, nil
}

func (r *UnixSocketReader) OutputFormat() formats.Format { return formats.Text }

func (r *UnixSocketReader) Read(ctx context.Context) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if r.conn == nil {
			conn, err := r.listener.Accept()
			if err != nil {
				return nil, fmt.Errorf("netio: UnixSocketReader: accept: %w", err)
			}
			r.conn = conn
			r.scanner = bufio.NewScanner(conn)
		}
		if r.scanner.Scan() {
			return r.scanner.Text(), nil
		}
		r.conn.Close()
		r.conn = nil
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
}

func (r *UnixSocketReader) Close() error {
	r.mu.Lock()
	if r.conn != nil {
		r.conn.Close()
	}
	r.mu.Unlock()
	err := r.listener.Close()
	releaseSocketPath(r.path)
	return err
}

// UnixSocketWriter dials an already-listening Unix-domain socket path
// and writes newline-delimited messages to it.
type UnixSocketWriter struct {
	path string
	mu   sync.Mutex
	conn net.Conn
}

func NewUnixSocketWriter(path string) (*UnixSocketWriter, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("netio: UnixSocketWriter: dial %q: %w", path, err)
	}
	acquireSocketPath(path)
	return &UnixSocketWriter{path: path, conn: conn}, nil
}

func (w *UnixSocketWriter) InputFormat() formats.Format { return formats.Text }

func (w *UnixSocketWriter) CanAccept(source formats.Format) bool {
	return formats.Text.CanAccept(source)
}

func (w *UnixSocketWriter) Write(rec any) error {
	line, ok := rec.(string)
	if !ok {
		return fmt.Errorf("netio: UnixSocketWriter expects a string record, got %T", rec)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintln(w.conn, line)
	return err
}

func (w *UnixSocketWriter) Close() error {
	w.mu.Lock()
	err := w.conn.Close()
	w.mu.Unlock()
	releaseSocketPath(w.path)
	return err
}
