package cds

import "encoding/json"

// request is the wire shape of every client->server websocket message,
// grounded on original_source/server/cached_data_server.py's
// WebSocketConnection.serve_requests() request dispatch.
type request struct {
	Type   string          `json:"type"`
	Fields json.RawMessage `json:"fields,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	Format string          `json:"format,omitempty"`
}

// fieldSpec is one entry of a subscribe request's "fields" map: how far
// back (in seconds) to start that field's backlog. 0 means future-only,
// -1 means "most recent value, then future only". BackRecords is read
// per field, matching original_source/server/cached_data_server.py:
// field_spec.get('back_records', 0) — a real client puts it inside the
// field's own spec object, e.g. {"field_2":{"seconds":0,"back_records":10}}.
type fieldSpec struct {
	Seconds     float64 `json:"seconds"`
	BackRecords int     `json:"back_records,omitempty"`
}

// response is the wire shape of every server->client websocket message.
type response struct {
	Type   string `json:"type"`
	Status int    `json:"status,omitempty"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

func errorResponse(reqType, msg string) response {
	return response{Type: reqType, Status: 400, Error: msg}
}

func okResponse(reqType string, data any) response {
	return response{Type: reqType, Status: 200, Data: data}
}
