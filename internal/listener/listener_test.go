package listener

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

type fakeReader struct {
	mu     sync.Mutex
	values []any
	i      int
}

func (r *fakeReader) Read(ctx context.Context) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.i >= len(r.values) {
		return nil, io.EOF
	}
	v := r.values[r.i]
	r.i++
	return v, nil
}

type fakeWriter struct {
	mu  sync.Mutex
	got []any
}

func (w *fakeWriter) Write(rec any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.got = append(w.got, rec)
	return nil
}

func TestListenerRunsUntilEOF(t *testing.T) {
	r := &fakeReader{values: []any{"a", "b", "c"}}
	w := &fakeWriter{}
	l := New(r, w, 0)
	if err := l.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(w.got) != 3 {
		t.Fatalf("got %v", w.got)
	}
}

func TestListenerQuitIsIdempotent(t *testing.T) {
	r := &fakeReader{} // no values: Read blocks forever on nothing? returns EOF immediately actually
	w := &fakeWriter{}
	l := New(r, w, 0)
	l.Quit()
	l.Quit() // must not panic
	if err := l.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestListenerStopsOnContextCancel(t *testing.T) {
	r := &blockingReader{}
	w := &fakeWriter{}
	l := New(r, w, 0)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if err := l.Run(ctx); err != nil {
		t.Fatal(err)
	}
}

type blockingReader struct{}

func (blockingReader) Read(ctx context.Context) (any, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestListenerPropagatesReaderError(t *testing.T) {
	r := errReader{}
	w := &fakeWriter{}
	l := New(r, w, 0)
	if err := l.Run(context.Background()); err == nil {
		t.Fatal("expected reader error to propagate")
	}
}

type errReader struct{}

func (errReader) Read(ctx context.Context) (any, error) {
	return nil, errors.New("boom")
}
