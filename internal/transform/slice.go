package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/oceantech/rvdaq/internal/formats"
)

// Slice extracts a subset of whitespace/sep-delimited fields from a text
// record, grounded on
// original_source/logger/transforms/slice_transform.py: fields is a
// comma-separated list of Python-slice-like specs ("0", "2:5", "3:",
// ":-1"), each applied independently and the results re-joined with sep.
type Slice struct {
	base
	specs []sliceSpec
	sep   string
}

type sliceSpec struct {
	isRange    bool
	index      int
	start, end int // end == math.MaxInt32 means open-ended
}

// NewSlice parses fields (e.g. "0,2:4,-1") and builds a Slice transform
// that splits each record on sep (default: any whitespace run when sep
// is empty) and re-joins the selected tokens with sep.
func NewSlice(fields, sep string) (*Slice, error) {
	specs, err := parseSliceFields(fields)
	if err != nil {
		return nil, err
	}
	if sep == "" {
		sep = " "
	}
	return &Slice{base: base{in: formats.Text, out: formats.Text}, specs: specs, sep: sep}, nil
}

func parseSliceFields(fields string) ([]sliceSpec, error) {
	var specs []sliceSpec
	for _, part := range strings.Split(fields, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, ":") {
			pieces := strings.SplitN(part, ":", 2)
			start, end := 0, math.MaxInt32
			var err error
			if strings.TrimSpace(pieces[0]) != "" {
				start, err = strconv.Atoi(strings.TrimSpace(pieces[0]))
				if err != nil {
					return nil, fmt.Errorf("transform: Slice: bad range start %q: %w", part, err)
				}
			}
			if strings.TrimSpace(pieces[1]) != "" {
				end, err = strconv.Atoi(strings.TrimSpace(pieces[1]))
				if err != nil {
					return nil, fmt.Errorf("transform: Slice: bad range end %q: %w", part, err)
				}
			}
			specs = append(specs, sliceSpec{isRange: true, start: start, end: end})
			continue
		}
		idx, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("transform: Slice: bad field spec %q: %w", part, err)
		}
		specs = append(specs, sliceSpec{index: idx})
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("transform: Slice: no field specs given")
	}
	return specs, nil
}

func (s *Slice) Transform(rec any) (any, error) {
	text, ok := rec.(string)
	if !ok {
		return nil, fmt.Errorf("transform: Slice expects a string record, got %T", rec)
	}
	tokens := strings.Fields(text)
	if s.sep != " " {
		tokens = strings.Split(text, s.sep)
	}
	n := len(tokens)

	var out []string
	for _, spec := range s.specs {
		if spec.isRange {
			start, end := normalizeIndex(spec.start, n), spec.end
			if end == math.MaxInt32 || end > n {
				end = n
			} else {
				end = normalizeIndex(end, n)
			}
			if start < 0 {
				start = 0
			}
			if start > n {
				start = n
			}
			if end < start {
				end = start
			}
			out = append(out, tokens[start:end]...)
			continue
		}
		idx := normalizeIndex(spec.index, n)
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("transform: Slice: field index %d out of range for %d fields", spec.index, n)
		}
		out = append(out, tokens[idx])
	}
	return strings.Join(out, s.sep), nil
}

func normalizeIndex(i, n int) int {
	if i < 0 {
		return n + i
	}
	return i
}
