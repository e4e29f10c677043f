package transform

import (
	"fmt"
	"time"

	"github.com/oceantech/rvdaq/internal/formats"
)

// Timestamp prepends the current UTC time, RFC3339-with-nanoseconds
// formatted, and a separating space to every text record. Grounded on
// the same prepend-a-fixed-token shape as PrefixTransform, specialized
// to a clock reading instead of a literal string.
type Timestamp struct {
	base
	now func() time.Time
}

// NewTimestamp builds a Timestamp transform using the wall clock.
func NewTimestamp() *Timestamp {
	return &Timestamp{base: base{in: formats.Text, out: formats.Text}, now: time.Now}
}

func (t *Timestamp) Transform(rec any) (any, error) {
	text, ok := rec.(string)
	if !ok {
		return nil, fmt.Errorf("transform: Timestamp expects a string record, got %T", rec)
	}
	stamp := t.now().UTC().Format(time.RFC3339Nano)
	return stamp + " " + text, nil
}
