package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oceantech/rvdaq/internal/formats"
)

// TextFileWriter appends records as lines to a file, rotating daily by
// appending the UTC date to the configured filename prefix, matching
// spec.md §6's log file naming convention.
type TextFileWriter struct {
	baseWriter
	mu       sync.Mutex
	prefix   string
	dir      string
	suffix   string
	curDate  string
	file     *os.File
}

// NewTextFileWriter configures a writer that rotates files named
// "<prefix>-YYYY-MM-DD<suffix>" under dir.
func NewTextFileWriter(dir, prefix, suffix string) *TextFileWriter {
	return &TextFileWriter{
		baseWriter: baseWriter{inputFormat: formats.Text},
		dir:        dir,
		prefix:     prefix,
		suffix:     suffix,
	}
}

func (w *TextFileWriter) Write(rec any) error {
	line, ok := rec.(string)
	if !ok {
		line = fmt.Sprintf("%v", rec)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	date := time.Now().UTC().Format("2006-01-02")
	if w.file == nil || date != w.curDate {
		if w.file != nil {
			w.file.Close()
		}
		path := filepath.Join(w.dir, fmt.Sprintf("%s-%s%s", w.prefix, date, w.suffix))
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("writer: open %q: %w", path, err)
		}
		w.file = f
		w.curDate = date
	}

	if _, err := fmt.Fprintln(w.file, line); err != nil {
		return fmt.Errorf("writer: write to %q: %w", w.file.Name(), err)
	}
	return nil
}

// Close flushes and closes the currently open rotation file, if any.
func (w *TextFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
