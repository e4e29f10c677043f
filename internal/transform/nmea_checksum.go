package transform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oceantech/rvdaq/internal/formats"
)

// NMEAChecksum verifies an NMEA checksum (it never appends one), grounded on
// original_source/logger/transforms/nmea_checksum_transform.py:
// computeChecksum XORs every byte between '$'/'!' and '*' (exclusive),
// formatted as two uppercase hex digits.
type NMEAChecksum struct {
	base
	ChecksumOptional bool
	ErrorMessage     string
}

// NewNMEAChecksum builds an NMEAChecksum transform. When
// checksumOptional is true, a message with no "*checksum" suffix at all
// is passed through unverified instead of rejected.
func NewNMEAChecksum(checksumOptional bool) *NMEAChecksum {
	return &NMEAChecksum{
		base:             base{in: formats.NMEA, out: formats.NMEA},
		ChecksumOptional: checksumOptional,
		ErrorMessage:     "checksum failed",
	}
}

// computeChecksum XORs all bytes of s together.
func computeChecksum(s string) byte {
	var c byte
	for i := 0; i < len(s); i++ {
		c ^= s[i]
	}
	return c
}

func (n *NMEAChecksum) Transform(rec any) (any, error) {
	text, ok := rec.(string)
	if !ok {
		return nil, fmt.Errorf("transform: NMEAChecksum expects a string record, got %T", rec)
	}
	trimmed := strings.TrimRight(text, "\r\n")
	if len(trimmed) == 0 || (trimmed[0] != '$' && trimmed[0] != '!') {
		return nil, fmt.Errorf("transform: NMEAChecksum: %s: no leading $/! in %q", n.ErrorMessage, text)
	}

	star := strings.LastIndex(trimmed, "*")
	if star == -1 {
		if n.ChecksumOptional {
			return text, nil
		}
		return nil, fmt.Errorf("transform: NMEAChecksum: %s: no checksum field in %q", n.ErrorMessage, text)
	}

	body := trimmed[1:star]
	given := trimmed[star+1:]
	want, err := strconv.ParseUint(given, 16, 8)
	if err != nil {
		return nil, fmt.Errorf("transform: NMEAChecksum: %s: bad checksum field %q", n.ErrorMessage, given)
	}
	got := computeChecksum(body)
	if byte(want) != got {
		return nil, fmt.Errorf("transform: NMEAChecksum: %s: got %02X, wanted %02X in %q", n.ErrorMessage, got, want, text)
	}
	return text, nil
}
