package reader

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/oceantech/rvdaq/internal/formats"
	"github.com/oceantech/rvdaq/internal/record"
)

// LogfileReader wraps a TextFileReader with optional timestamp-paced
// replay and a logical (line-index) seek/range surface, grounded on
// original_source/logger/readers/logfile_reader.py. Lines are parsed as
// JSON DASRecords to recover a replay timestamp; lines that aren't valid
// JSON are still returned as the raw line, but can't be used for timed
// pacing, seeking, or ranged reads by timestamp.
type LogfileReader struct {
	inner         *TextFileReader
	useTimestamps bool

	// lineIdx is this reader's logical position, used as the "offset"
	// for the StorageReader Seek/ReadRange surface.
	lineIdx int

	haveLast    bool
	lastTS      float64
	lastReadAt  time.Time
}

// NewLogfileReader builds a LogfileReader over fileSpec. When
// useTimestamps is true, Read paces itself to the gap between
// consecutive records' timestamps, sleeping max(0, desired-actual) the
// way the original's time.sleep(max(0, ...)) does — never dropping a
// record when the wall clock runs ahead of the log.
func NewLogfileReader(fileSpec string, useTimestamps bool) (*LogfileReader, error) {
	inner, err := NewTextFileReader(fileSpec)
	if err != nil {
		return nil, err
	}
	return &LogfileReader{inner: inner, useTimestamps: useTimestamps}, nil
}

func (r *LogfileReader) OutputFormat() formats.Format { return formats.JSONRecord }

func (r *LogfileReader) Read(ctx context.Context) (any, error) {
	line, err := r.inner.Read(ctx)
	if err != nil {
		return nil, err
	}
	r.lineIdx++

	text, _ := line.(string)
	recs, parseErr := record.Normalize(text)
	if parseErr != nil || len(recs) == 0 {
		// Not a DASRecord-JSON line: return the raw text untouched, per
		// the original's fallback behavior, and skip pacing for it.
		return text, nil
	}
	rec := recs[0]

	if r.useTimestamps {
		now := time.Now()
		if r.haveLast {
			desired := time.Duration((rec.Timestamp - r.lastTS) * float64(time.Second))
			actual := now.Sub(r.lastReadAt)
			sleepFor := desired - actual
			if sleepFor < 0 {
				sleepFor = 0
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(sleepFor):
			}
		}
		r.lastTS = rec.Timestamp
		r.lastReadAt = time.Now()
		r.haveLast = true
	}

	return text, nil
}

// Seek repositions by logical line count, forward only: OriginStart
// accepts an offset at or past the current line and OriginCurrent a
// non-negative offset; an offset behind the current line returns an
// error. OriginEnd requires a full scan and is not
// implemented for multi-file glob sources (the original source's binary
// file-offset seek doesn't translate across glob boundaries either).
func (r *LogfileReader) Seek(offset int64, origin SeekOrigin) error {
	switch origin {
	case OriginStart:
		if offset < int64(r.lineIdx) {
			return fmt.Errorf("reader: LogfileReader cannot seek backward past its current position")
		}
		for int64(r.lineIdx) < offset {
			if _, err := r.Read(context.Background()); err != nil {
				return err
			}
		}
		return nil
	case OriginCurrent:
		if offset < 0 {
			return fmt.Errorf("reader: LogfileReader cannot seek backward")
		}
		for i := int64(0); i < offset; i++ {
			if _, err := r.Read(context.Background()); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("reader: LogfileReader does not support seeking from OriginEnd")
	}
}

func (r *LogfileReader) ReadRange(start, stop int64) ([]any, error) {
	if err := r.Seek(start, OriginStart); err != nil {
		return nil, err
	}
	var out []any
	ctx := context.Background()
	for stop <= 0 || int64(r.lineIdx) < stop {
		v, err := r.Read(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// SeekTime scans forward from the current position until it finds a
// record whose timestamp is >= offsetMs (origin OriginStart rescans from
// the beginning first; OriginEnd scans forward like OriginCurrent).
// offsetMs is an absolute timestamp, not relative to the origin. It
// returns the millisecond timestamp of the record landed on.
func (r *LogfileReader) SeekTime(offsetMs int64, origin SeekOrigin) (int64, error) {
	ctx := context.Background()
	if origin == OriginStart {
		fresh, err := NewTextFileReader(r.inner.fileSpec)
		if err != nil {
			return 0, err
		}
		r.inner = fresh
		r.lineIdx = 0
		r.haveLast = false
	}
	targetSec := float64(offsetMs) / 1000.0
	for {
		line, err := r.inner.Read(ctx)
		if err != nil {
			return 0, err
		}
		r.lineIdx++
		text, _ := line.(string)
		recs, parseErr := record.Normalize(text)
		if parseErr != nil || len(recs) == 0 {
			continue
		}
		if recs[0].Timestamp >= targetSec {
			return int64(recs[0].Timestamp * 1000), nil
		}
	}
}

func (r *LogfileReader) ReadTimeRange(startMs, stopMs int64) ([]any, error) {
	if _, err := r.SeekTime(startMs, OriginStart); err != nil {
		return nil, err
	}
	var out []any
	ctx := context.Background()
	stopSec := float64(stopMs) / 1000.0
	for {
		line, err := r.inner.Read(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, err
		}
		r.lineIdx++
		text, _ := line.(string)
		recs, parseErr := record.Normalize(text)
		if parseErr == nil && len(recs) > 0 && stopMs > 0 && recs[0].Timestamp > stopSec {
			break
		}
		out = append(out, text)
	}
	return out, nil
}
