package transform

import (
	"fmt"

	"github.com/oceantech/rvdaq/internal/formats"
)

// Prefix prepends a fixed string and separator to every text record,
// grounded on original_source/logger/transforms/prefix_transform.py.
type Prefix struct {
	base
	Value string
	Sep   string
}

// NewPrefix builds a Prefix transform; sep defaults to a single space
// when empty, matching the Python default.
func NewPrefix(value, sep string) *Prefix {
	if sep == "" {
		sep = " "
	}
	return &Prefix{base: base{in: formats.Text, out: formats.Text}, Value: value, Sep: sep}
}

func (p *Prefix) Transform(rec any) (any, error) {
	text, ok := rec.(string)
	if !ok {
		return nil, fmt.Errorf("transform: Prefix expects a string record, got %T", rec)
	}
	return p.Value + p.Sep + text, nil
}
