package transform

import (
	"sync"

	"github.com/oceantech/rvdaq/internal/formats"
)

// Unique drops a record identical to the immediately preceding one,
// grounded on original_source/logger/transforms/unique_transform.py.
type Unique struct {
	base
	mu       sync.Mutex
	havePrev bool
	prev     any
}

// NewUnique builds a Unique transform over any comparable record type
// (the formats involved are Bytes-or-more-specific, so this accepts and
// emits Bytes; concrete callers narrow via the chain around it).
func NewUnique() *Unique {
	return &Unique{base: base{in: formats.Bytes, out: formats.Bytes}}
}

func (u *Unique) Transform(rec any) (any, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.havePrev && u.prev == rec {
		return nil, nil
	}
	u.prev = rec
	u.havePrev = true
	return rec, nil
}
