package reader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/oceantech/rvdaq/internal/formats"
)

// TextFileReader reads lines, in order, out of the set of files matching
// a glob file_spec, advancing to the next file once the current one is
// exhausted. It never tails a growing file — once a file's lines are
// consumed it moves on, matching original_source's TextFileReader used
// by LogfileReader for static (non-live) replay.
type TextFileReader struct {
	fileSpec string
	files    []string
	fileIdx  int
	scanner  *bufio.Scanner
	current  io.Closer
}

// NewTextFileReader globs fileSpec once at construction time and sorts
// the matches lexically, matching spec.md §4.1's "file_spec glob,
// sorted" behavior for ordered replay.
func NewTextFileReader(fileSpec string) (*TextFileReader, error) {
	matches, err := filepath.Glob(fileSpec)
	if err != nil {
		return nil, fmt.Errorf("reader: text file glob %q: %w", fileSpec, err)
	}
	sort.Strings(matches)
	return &TextFileReader{fileSpec: fileSpec, files: matches}, nil
}

func (r *TextFileReader) OutputFormat() formats.Format { return formats.Text }

// Read returns the next line (without its trailing newline) across the
// glob's files, or io.EOF once every file is exhausted.
func (r *TextFileReader) Read(ctx context.Context) (any, error) {
	for {
		if r.scanner == nil {
			if r.fileIdx >= len(r.files) {
				return nil, io.EOF
			}
			f, err := os.Open(r.files[r.fileIdx])
			if err != nil {
				return nil, fmt.Errorf("reader: open %q: %w", r.files[r.fileIdx], err)
			}
			r.current = f
			r.scanner = bufio.NewScanner(f)
			r.scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		}

		if r.scanner.Scan() {
			return r.scanner.Text(), nil
		}
		if err := r.scanner.Err(); err != nil {
			r.current.Close()
			return nil, fmt.Errorf("reader: scan %q: %w", r.files[r.fileIdx], err)
		}
		r.current.Close()
		r.scanner = nil
		r.fileIdx++
	}
}
