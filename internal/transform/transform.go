// Package transform implements the Transform contract and the concrete
// transforms listed in spec.md §4.3, translated from
// original_source/logger/transforms/*.py into idiomatic Go.
package transform

import "github.com/oceantech/rvdaq/internal/formats"

// Transform takes one record and produces zero or one records. A nil
// return with a nil error means "drop this record" (e.g. Unique
// suppressing a repeat); a non-nil error means the record could not be
// processed and the caller should log and drop it.
type Transform interface {
	Transform(record any) (any, error)
	InputFormat() formats.Format
	OutputFormat() formats.Format
}

// base gives concrete transforms their format-pair bookkeeping.
type base struct {
	in, out formats.Format
}

func (b base) InputFormat() formats.Format  { return b.in }
func (b base) OutputFormat() formats.Format { return b.out }
