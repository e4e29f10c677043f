package writer

import (
	"errors"
	"sync"
	"testing"

	"github.com/oceantech/rvdaq/internal/formats"
)

type recordingWriter struct {
	baseWriter
	mu      sync.Mutex
	got     []any
	failErr error
}

func (w *recordingWriter) Write(rec any) error {
	if w.failErr != nil {
		return w.failErr
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.got = append(w.got, rec)
	return nil
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{baseWriter: baseWriter{inputFormat: formats.Text}}
}

func TestComposedWriterSingleWriter(t *testing.T) {
	w := newRecordingWriter()
	cw := NewComposedWriter(nil, []Writer{w})
	if err := cw.Write("hello"); err != nil {
		t.Fatal(err)
	}
	if len(w.got) != 1 || w.got[0] != "hello" {
		t.Fatalf("got %v", w.got)
	}
}

func TestComposedWriterFanOut(t *testing.T) {
	w1, w2 := newRecordingWriter(), newRecordingWriter()
	cw := NewComposedWriter(nil, []Writer{w1, w2})
	if err := cw.Write("x"); err != nil {
		t.Fatal(err)
	}
	if len(w1.got) != 1 || len(w2.got) != 1 {
		t.Fatalf("w1=%v w2=%v", w1.got, w2.got)
	}
}

func TestComposedWriterOneFailureDoesNotBlockOthers(t *testing.T) {
	failing := newRecordingWriter()
	failing.failErr = errors.New("boom")
	ok := newRecordingWriter()
	cw := NewComposedWriter(nil, []Writer{failing, ok})
	if err := cw.Write("x"); err != nil {
		t.Fatalf("ComposedWriter.Write should not surface a single writer's error: %v", err)
	}
	if len(ok.got) != 1 {
		t.Fatalf("expected the healthy writer to still receive the record, got %v", ok.got)
	}
}

type dropTransform struct{}

func (dropTransform) Transform(any) (any, error)    { return nil, nil }
func (dropTransform) InputFormat() formats.Format  { return formats.Text }
func (dropTransform) OutputFormat() formats.Format { return formats.Text }

func TestComposedWriterDroppedByTransform(t *testing.T) {
	w := newRecordingWriter()
	cw := NewComposedWriter([]Transform{dropTransform{}}, []Writer{w})
	if err := cw.Write("x"); err != nil {
		t.Fatal(err)
	}
	if len(w.got) != 0 {
		t.Fatalf("expected the record to be dropped, got %v", w.got)
	}
}
