// Package record implements the canonical DASRecord model and the
// Normalize function that accepts any of the wire forms a Reader may
// hand back and reduces them to DASRecords.
package record

import (
	"encoding/json"
	"fmt"
)

// DASRecord is the canonical record shape every Transform and Writer in
// this module ultimately operates on.
type DASRecord struct {
	DataID      string         `json:"data_id"`
	MessageType string         `json:"message_type,omitempty"`
	Timestamp   float64        `json:"timestamp"`
	Fields      map[string]any `json:"fields"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	// BatchedFields holds per-field (timestamp, value) pairs when the
	// wire form was a batched field-dict ({"field": [[ts, val], ...]}).
	// The cache consumes this directly instead of forcing a lossy
	// re-bucketing of differently-timestamped fields into one record.
	BatchedFields map[string][]TimeValue `json:"-"`
}

// TimeValue is one (timestamp, value) sample of a single field.
type TimeValue struct {
	Timestamp float64
	Value     any
}

// Normalize accepts any of the four wire forms described in spec.md §3:
//   - canonical: {"data_id":..., "timestamp":..., "fields": {...}}
//   - field-dict: {"field1": val1, "field2": val2, ...} with no data_id
//   - batched field-dict: {"field1": [[ts, val], ...], ...}
//   - a JSON string encoding of any of the above
//
// and returns one or more canonical DASRecords.
func Normalize(raw any) ([]DASRecord, error) {
	switch v := raw.(type) {
	case string:
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil, fmt.Errorf("record: normalize: not valid JSON: %w", err)
		}
		return Normalize(decoded)
	case []byte:
		return Normalize(string(v))
	case DASRecord:
		return []DASRecord{v}, nil
	case *DASRecord:
		return []DASRecord{*v}, nil
	case map[string]any:
		return normalizeMap(v)
	default:
		return nil, fmt.Errorf("record: normalize: unsupported record type %T", raw)
	}
}

func normalizeMap(m map[string]any) ([]DASRecord, error) {
	// A "fields" key is mandatory for the envelope form (data_id and
	// timestamp are both optional) per spec.md §3 form 2, matching
	// original_source/server/cached_data_server.py:182-193, which keys
	// off the dict's 'fields' entry regardless of whether data_id is
	// present and discards dicts lacking it.
	if fields, ok := m["fields"].(map[string]any); ok {
		rec := DASRecord{Fields: fields}
		batched, err := asBatched(fields)
		if err != nil {
			return nil, err
		}
		if batched != nil {
			rec = DASRecord{BatchedFields: batched}
		}
		if dataID, ok := m["data_id"]; ok {
			rec.DataID = fmt.Sprintf("%v", dataID)
		}
		if ts, ok := m["timestamp"].(float64); ok {
			rec.Timestamp = ts
		}
		if mt, ok := m["message_type"].(string); ok {
			rec.MessageType = mt
		}
		if meta, ok := m["metadata"].(map[string]any); ok {
			rec.Metadata = meta
		}
		return []DASRecord{rec}, nil
	}
	if dataID, ok := m["data_id"]; ok {
		rec := DASRecord{
			DataID: fmt.Sprintf("%v", dataID),
		}
		if ts, ok := m["timestamp"].(float64); ok {
			rec.Timestamp = ts
		}
		if mt, ok := m["message_type"].(string); ok {
			rec.MessageType = mt
		}
		if meta, ok := m["metadata"].(map[string]any); ok {
			rec.Metadata = meta
		}
		return []DASRecord{rec}, nil
	}

	// No "fields" key and no data_id: either a plain field-dict or a
	// batched field-dict. Decide by inspecting the shape of every value.
	batched, err := asBatched(m)
	if err != nil {
		return nil, err
	}
	if batched != nil {
		return []DASRecord{{BatchedFields: batched}}, nil
	}
	return []DASRecord{{Fields: m}}, nil
}

// asBatched returns a non-nil map if m looks like a batched field-dict
// (every value is a list of [ts, val] pairs), nil otherwise.
func asBatched(m map[string]any) (map[string][]TimeValue, error) {
	out := make(map[string][]TimeValue, len(m))
	sawBatched := false
	for field, v := range m {
		list, ok := v.([]any)
		if !ok {
			return nil, nil
		}
		pairs := make([]TimeValue, 0, len(list))
		for _, item := range list {
			pair, ok := item.([]any)
			if !ok || len(pair) != 2 {
				return nil, nil
			}
			ts, ok := pair[0].(float64)
			if !ok {
				return nil, nil
			}
			pairs = append(pairs, TimeValue{Timestamp: ts, Value: pair[1]})
			sawBatched = true
		}
		out[field] = pairs
	}
	if !sawBatched {
		return nil, nil
	}
	return out, nil
}
