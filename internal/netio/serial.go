package netio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/oceantech/rvdaq/internal/formats"
)

// SerialReader and SerialWriter talk to a device path as a plain
// *os.File, applying the same line-framing (EOL-delimited, with a
// max_bytes safety cap) spec.md §4.9 describes for serial sensors. No
// repo in the example pack imports a serial-port/termios library, so
// baud rate, parity, and flow control are left entirely to however the
// caller (or the OS) has already configured the device node — see
// DESIGN.md for why this is a deliberate stdlib-only component rather
// than a fabricated ecosystem dependency.
type SerialReader struct {
	mu       sync.Mutex
	file     *os.File
	reader   *bufio.Reader
	eol      byte
	maxBytes int
}

// NewSerialReader opens devicePath for reading. eol is the byte that
// terminates one message (typically '\n'); maxBytes caps a single
// message's length as a safety net against a device that never sends
// eol.
func NewSerialReader(devicePath string, eol byte, maxBytes int) (*SerialReader, error) {
	f, err := os.OpenFile(devicePath, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("netio: SerialReader: open %q: %w", devicePath, err)
	}
	if maxBytes <= 0 {
		maxBytes = 4096
	}
	return &SerialReader{file: f, reader: bufio.NewReader(f), eol: eol, maxBytes: maxBytes}, nil
}

func (r *SerialReader) OutputFormat() formats.Format { return formats.Text }

func (r *SerialReader) Read(ctx context.Context) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var buf []byte
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		b, err := r.reader.ReadByte()
		if err != nil {
			if err == io.EOF && len(buf) > 0 {
				return string(buf), nil
			}
			return nil, fmt.Errorf("netio: SerialReader: read: %w", err)
		}
		if b == r.eol {
			return string(buf), nil
		}
		buf = append(buf, b)
		if len(buf) >= r.maxBytes {
			return string(buf), nil
		}
	}
}

func (r *SerialReader) Close() error { return r.file.Close() }

// SerialWriter writes each record, followed by eol, to a device path
// opened for writing.
type SerialWriter struct {
	file *os.File
	eol  byte
	mu   sync.Mutex
}

func NewSerialWriter(devicePath string, eol byte) (*SerialWriter, error) {
	f, err := os.OpenFile(devicePath, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("netio: SerialWriter: open %q: %w", devicePath, err)
	}
	return &SerialWriter{file: f, eol: eol}, nil
}

func (w *SerialWriter) InputFormat() formats.Format { return formats.Text }

func (w *SerialWriter) CanAccept(source formats.Format) bool {
	return formats.Text.CanAccept(source)
}

func (w *SerialWriter) Write(rec any) error {
	line, ok := rec.(string)
	if !ok {
		return fmt.Errorf("netio: SerialWriter expects a string record, got %T", rec)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(append([]byte(line), w.eol)); err != nil {
		return fmt.Errorf("netio: SerialWriter: write: %w", err)
	}
	return nil
}

func (w *SerialWriter) Close() error { return w.file.Close() }
