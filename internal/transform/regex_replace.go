package transform

import (
	"fmt"
	"regexp"

	"github.com/oceantech/rvdaq/internal/formats"
)

// RegexReplace applies an ordered list of pattern/replacement pairs to
// text records, grounded on
// original_source/logger/transforms/regex_replace_transform.py.
type RegexReplace struct {
	base
	patterns []regexPattern
	count    int // 0 means "replace all", matching re.sub's count=0
}

type regexPattern struct {
	re          *regexp.Regexp
	replacement string
}

// NewRegexReplace compiles each (pattern, replacement) pair in order.
// count caps replacements per pattern per record; 0 means unlimited.
func NewRegexReplace(pairs [][2]string, count int) (*RegexReplace, error) {
	patterns := make([]regexPattern, 0, len(pairs))
	for _, pair := range pairs {
		re, err := regexp.Compile(pair[0])
		if err != nil {
			return nil, fmt.Errorf("transform: RegexReplace: bad pattern %q: %w", pair[0], err)
		}
		patterns = append(patterns, regexPattern{re: re, replacement: pair[1]})
	}
	return &RegexReplace{
		base:     base{in: formats.Text, out: formats.Text},
		patterns: patterns,
		count:    count,
	}, nil
}

func (r *RegexReplace) Transform(rec any) (any, error) {
	text, ok := rec.(string)
	if !ok {
		return nil, fmt.Errorf("transform: RegexReplace expects a string record, got %T", rec)
	}
	for _, p := range r.patterns {
		if r.count <= 0 {
			text = p.re.ReplaceAllString(text, p.replacement)
			continue
		}
		remaining := r.count
		text = p.re.ReplaceAllStringFunc(text, func(m string) string {
			if remaining <= 0 {
				return m
			}
			remaining--
			return p.re.ReplaceAllString(m, p.replacement)
		})
	}
	return text, nil
}
