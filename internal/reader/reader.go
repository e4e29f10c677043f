// Package reader defines the Reader contract and its storage/timestamped
// extensions, plus ComposedReader, the fan-in combinator that reads from
// N underlying readers through an optional transform chain.
package reader

import (
	"context"
	"io"

	"github.com/oceantech/rvdaq/internal/formats"
)

// SeekOrigin mirrors the three origins a StorageReader/TimestampedReader
// seek accepts.
type SeekOrigin int

const (
	OriginStart SeekOrigin = iota
	OriginCurrent
	OriginEnd
)

// Reader is the minimal contract every source implements. Read blocks
// until a record is available, ctx is cancelled, or the stream is
// exhausted (io.EOF). Once io.EOF is returned, every subsequent call
// must also return io.EOF.
type Reader interface {
	Read(ctx context.Context) (any, error)
	OutputFormat() formats.Format
}

// StorageReader is a Reader that also supports random access by offset
// (LogfileReader counts the offset in lines).
type StorageReader interface {
	Reader
	Seek(offset int64, origin SeekOrigin) error
	ReadRange(start, stop int64) ([]any, error)
}

// TimestampedReader is a StorageReader that also supports seeking and
// ranged reads by timestamp, expressed as milliseconds since epoch.
type TimestampedReader interface {
	StorageReader
	SeekTime(offsetMs int64, origin SeekOrigin) (int64, error)
	ReadTimeRange(startMs, stopMs int64) ([]any, error)
}

// Transform is the minimal contract ComposedReader applies between a
// source read and the caller. Defined here (not imported from package
// transform) to avoid an import cycle, since transform.Transform reads
// identically — see internal/transform.Transform.
type Transform interface {
	Transform(record any) (any, error)
	InputFormat() formats.Format
	OutputFormat() formats.Format
}

// ErrEndOfStream is returned by readers that have no built-in sentinel
// of their own; most concrete readers return the stdlib io.EOF directly.
var ErrEndOfStream = io.EOF
