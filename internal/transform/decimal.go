package transform

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/oceantech/rvdaq/internal/formats"
	"github.com/oceantech/rvdaq/internal/record"
)

// Decimal rescales one numeric field of a DASRecord to a fixed decimal
// precision using github.com/shopspring/decimal, grounded on the
// teacher's use of shopspring/decimal for price fields — here repurposed
// to stabilize a noisy analog sensor reading to a fixed number of
// places before a cache/DB write, rather than leaving float64 rounding
// to whichever downstream sink happens to format it.
type Decimal struct {
	base
	Field     string
	Precision int32
}

// NewDecimal builds a Decimal transform rescaling field to precision
// decimal places.
func NewDecimal(field string, precision int32) *Decimal {
	return &Decimal{
		base:      base{in: formats.JSONRecord, out: formats.JSONRecord},
		Field:     field,
		Precision: precision,
	}
}

func (d *Decimal) Transform(rec any) (any, error) {
	recs, err := record.Normalize(rec)
	if err != nil {
		return nil, fmt.Errorf("transform: Decimal: %w", err)
	}
	for i := range recs {
		raw, ok := recs[i].Fields[d.Field]
		if !ok {
			continue
		}
		f, ok := toFloat64(raw)
		if !ok {
			return nil, fmt.Errorf("transform: Decimal: field %q is not numeric (%T)", d.Field, raw)
		}
		rescaled := decimal.NewFromFloat(f).Round(d.Precision)
		value, _ := rescaled.Float64()
		recs[i].Fields[d.Field] = value
	}
	if len(recs) == 1 {
		return recs[0], nil
	}
	return recs, nil
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
