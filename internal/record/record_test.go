package record

import "testing"

func TestNormalizeCanonical(t *testing.T) {
	raw := map[string]any{
		"data_id":   "gyr1",
		"timestamp": 1000.5,
		"fields":    map[string]any{"Heading": 123.4},
	}
	recs, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 || recs[0].DataID != "gyr1" || recs[0].Timestamp != 1000.5 {
		t.Fatalf("got %+v", recs)
	}
}

func TestNormalizeFieldDict(t *testing.T) {
	raw := map[string]any{"Heading": 1.0, "Speed": 2.0}
	recs, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 || recs[0].DataID != "" || len(recs[0].Fields) != 2 {
		t.Fatalf("got %+v", recs)
	}
}

// TestNormalizeFieldDictEnvelopeNoDataID covers spec.md §8's S1 scenario:
// publishing {"timestamp":100.0,"fields":{"x":1,"y":2}} with no data_id
// must normalize Fields from the "fields" sub-map, not from the whole
// envelope.
func TestNormalizeFieldDictEnvelopeNoDataID(t *testing.T) {
	raw := map[string]any{
		"timestamp": 100.0,
		"fields":    map[string]any{"x": 1.0, "y": 2.0},
	}
	recs, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records", len(recs))
	}
	rec := recs[0]
	if rec.DataID != "" || rec.Timestamp != 100.0 {
		t.Fatalf("got %+v", rec)
	}
	if len(rec.Fields) != 2 || rec.Fields["x"] != 1.0 || rec.Fields["y"] != 2.0 {
		t.Fatalf("got fields %+v", rec.Fields)
	}
	if _, ok := rec.Fields["timestamp"]; ok {
		t.Fatalf("fields must not contain the envelope's timestamp key: %+v", rec.Fields)
	}
}

func TestNormalizeBatchedFieldDict(t *testing.T) {
	raw := map[string]any{
		"Heading": []any{
			[]any{1000.0, 1.0},
			[]any{1001.0, 2.0},
		},
	}
	recs, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records", len(recs))
	}
	pairs := recs[0].BatchedFields["Heading"]
	if len(pairs) != 2 || pairs[1].Timestamp != 1001.0 {
		t.Fatalf("got %+v", pairs)
	}
}

func TestNormalizeJSONString(t *testing.T) {
	raw := `{"data_id":"gyr1","timestamp":10,"fields":{"Heading":5}}`
	recs, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recs[0].DataID != "gyr1" {
		t.Fatalf("got %+v", recs)
	}
}

func TestNormalizeInvalidString(t *testing.T) {
	if _, err := Normalize("not json"); err == nil {
		t.Fatal("expected error for non-JSON string")
	}
}

func TestNormalizeUnsupportedType(t *testing.T) {
	if _, err := Normalize(42); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}
