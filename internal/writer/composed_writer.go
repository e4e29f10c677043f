package writer

import (
	"log"
	"sync"

	"github.com/oceantech/rvdaq/internal/formats"
)

// ComposedWriter applies a shared transform chain in series, then fans
// the result out to every configured writer in parallel, grounded on
// original_source/logger/writers/composed_writer.py. Each writer has its
// own mutex so concurrent Write calls into the same ComposedWriter are
// serialized per-writer, matching the original's per-writer lock. A
// single writer's failure is logged, never fatal to the others or to
// the caller.
type ComposedWriter struct {
	transforms []Transform
	writers    []Writer
	mus        []sync.Mutex
}

// NewComposedWriter builds a ComposedWriter over the given transform
// chain and writer set.
func NewComposedWriter(transforms []Transform, writers []Writer) *ComposedWriter {
	return &ComposedWriter{
		transforms: transforms,
		writers:    writers,
		mus:        make([]sync.Mutex, len(writers)),
	}
}

func (cw *ComposedWriter) InputFormat() formats.Format {
	if len(cw.transforms) > 0 {
		return cw.transforms[0].InputFormat()
	}
	if len(cw.writers) > 0 {
		return cw.writers[0].InputFormat()
	}
	return formats.Bytes
}

func (cw *ComposedWriter) CanAccept(source formats.Format) bool {
	return cw.InputFormat().CanAccept(source)
}

// Write applies the transform chain once, then fans the transformed
// record out to every writer concurrently via a sync.WaitGroup (the
// idiomatic Go substitute for the original's bare fire-and-forget
// threads, while still returning once every writer has had its turn).
// With exactly one writer it writes directly, skipping the fan-out.
func (cw *ComposedWriter) Write(rec any) error {
	transformed, err := cw.applyTransforms(rec)
	if err != nil {
		return err
	}
	if transformed == nil {
		return nil
	}

	if len(cw.writers) == 1 {
		return cw.writeOne(0, transformed)
	}

	var wg sync.WaitGroup
	for i := range cw.writers {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := cw.writeOne(i, transformed); err != nil {
				log.Printf("writer: writer %d (%T) failed: %v", i, cw.writers[i], err)
			}
		}()
	}
	wg.Wait()
	return nil
}

func (cw *ComposedWriter) writeOne(i int, rec any) error {
	cw.mus[i].Lock()
	defer cw.mus[i].Unlock()
	return cw.writers[i].Write(rec)
}

func (cw *ComposedWriter) applyTransforms(rec any) (any, error) {
	var err error
	for _, tr := range cw.transforms {
		rec, err = tr.Transform(rec)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, nil
		}
	}
	return rec, nil
}
