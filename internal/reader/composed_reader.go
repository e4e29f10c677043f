package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/oceantech/rvdaq/internal/formats"
)

// readerTimeoutWait is how long Read waits for a queued record before
// re-checking the queue, and how long a worker waits before re-checking
// a full queue. A worker's inner Read() itself has no timeout. Grounded on original_source/logger/readers/composed_reader.py's
// READER_TIMEOUT_WAIT = 0.25.
const readerTimeoutWait = 250 * time.Millisecond

// queuedRecord couples a value with the index of the reader that
// produced it, to preserve per-reader exhaustion bookkeeping.
type queuedRecord struct {
	value any
	err   error
	index int
}

// ComposedReader fans in N readers, followed by one shared transform
// chain, into a single Read() stream. With exactly one inner
// reader it degenerates to a direct passthrough; with more than one it
// runs a worker goroutine per reader, each pushing onto a shared bounded
// queue, and Read() pops off that queue. End-of-stream is reported only
// once every inner reader has reported its own end-of-stream and the
// queue has drained — never before, so no buffered record is lost.
type ComposedReader struct {
	readers    []Reader
	transforms []Transform
	maxQueue   int

	single bool // true when len(readers) == 1: skip the queue machinery

	mu        sync.Mutex
	queue     []queuedRecord
	notEmpty  chan struct{}
	exhausted []bool
	allDone   chan struct{}
	closeOnce sync.Once

	startOnce sync.Once
}

// NewComposedReader builds a ComposedReader over the given readers and
// shared transform chain. maxQueue bounds the fan-in buffer; 0 means a
// reasonable default.
func NewComposedReader(readers []Reader, transforms []Transform, maxQueue int) (*ComposedReader, error) {
	if len(readers) == 0 {
		return nil, fmt.Errorf("reader: composed reader needs at least one reader")
	}
	if maxQueue <= 0 {
		maxQueue = 1000
	}
	cr := &ComposedReader{
		readers:    readers,
		transforms: transforms,
		maxQueue:   maxQueue,
		single:     len(readers) == 1,
		exhausted:  make([]bool, len(readers)),
		notEmpty:   make(chan struct{}, len(readers)),
		allDone:    make(chan struct{}),
	}
	return cr, nil
}

func (cr *ComposedReader) OutputFormat() formats.Format {
	if len(cr.transforms) > 0 {
		return cr.transforms[len(cr.transforms)-1].OutputFormat()
	}
	return cr.readers[0].OutputFormat()
}

// Read returns the next transformed record, or io.EOF once all inner
// readers are exhausted and the queue is empty.
func (cr *ComposedReader) Read(ctx context.Context) (any, error) {
	if cr.single {
		return cr.readOne(ctx, cr.readers[0])
	}

	cr.startOnce.Do(func() { cr.startWorkers(ctx) })

	for {
		cr.mu.Lock()
		if len(cr.queue) > 0 {
			qr := cr.queue[0]
			cr.queue = cr.queue[1:]
			cr.mu.Unlock()
			if qr.err != nil {
				return nil, qr.err
			}
			return cr.applyTransforms(qr.value)
		}
		if cr.allExhausted() {
			cr.mu.Unlock()
			return nil, io.EOF
		}
		cr.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-cr.notEmpty:
		case <-time.After(readerTimeoutWait):
		}
	}
}

func (cr *ComposedReader) allExhausted() bool {
	for _, done := range cr.exhausted {
		if !done {
			return false
		}
	}
	return true
}

func (cr *ComposedReader) startWorkers(ctx context.Context) {
	for i, r := range cr.readers {
		go cr.runReader(ctx, i, r)
	}
}

// runReader is the per-reader worker loop: read, push onto the shared
// queue (blocking with a timeout if the queue is full, so one slow
// consumer can't make a fast reader spin unboundedly), repeat until the
// reader reports io.EOF or the context is cancelled.
func (cr *ComposedReader) runReader(ctx context.Context, index int, r Reader) {
	for {
		select {
		case <-ctx.Done():
			cr.markExhausted(index)
			return
		default:
		}

		val, err := r.Read(ctx)
		if err != nil {
			// One inner reader's io.EOF is not the composed end-of-stream;
			// Read reports io.EOF itself once every reader is exhausted.
			if !errors.Is(err, io.EOF) {
				cr.push(queuedRecord{err: err, index: index})
			}
			cr.markExhausted(index)
			return
		}

		for cr.queueFull() {
			select {
			case <-ctx.Done():
				cr.markExhausted(index)
				return
			case <-time.After(readerTimeoutWait):
			}
		}
		cr.push(queuedRecord{value: val, index: index})
	}
}

func (cr *ComposedReader) queueFull() bool {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return len(cr.queue) >= cr.maxQueue
}

func (cr *ComposedReader) push(qr queuedRecord) {
	cr.mu.Lock()
	cr.queue = append(cr.queue, qr)
	cr.mu.Unlock()
	select {
	case cr.notEmpty <- struct{}{}:
	default:
	}
}

func (cr *ComposedReader) markExhausted(index int) {
	cr.mu.Lock()
	cr.exhausted[index] = true
	done := cr.allExhausted()
	cr.mu.Unlock()
	select {
	case cr.notEmpty <- struct{}{}:
	default:
	}
	if done {
		cr.closeOnce.Do(func() { close(cr.allDone) })
	}
}

// readOne is the single-reader fast path: no queue, no worker goroutine,
// a direct call straight through the transform chain.
func (cr *ComposedReader) readOne(ctx context.Context, r Reader) (any, error) {
	val, err := r.Read(ctx)
	if err != nil {
		return nil, err
	}
	return cr.applyTransforms(val)
}

func (cr *ComposedReader) applyTransforms(val any) (any, error) {
	for _, tr := range cr.transforms {
		var err error
		val, err = tr.Transform(val)
		if err != nil {
			log.Printf("reader: transform %T failed, dropping record: %v", tr, err)
			return nil, err
		}
		if val == nil {
			return nil, nil
		}
	}
	return val, nil
}
