package cds

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oceantech/rvdaq/internal/cache"
	"github.com/oceantech/rvdaq/internal/record"
)

func startTestServer(t *testing.T, s *Server) (wsURL string, cleanup func()) {
	t.Helper()
	httpSrv := httptest.NewServer(http.HandlerFunc(s.HandleWebSocket))
	wsURL = "ws" + strings.TrimPrefix(httpSrv.URL, "http")
	return wsURL, httpSrv.Close
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestFieldsRequest(t *testing.T) {
	c := cache.New()
	c.CacheRecord(record.DASRecord{Timestamp: 1, Fields: map[string]any{"Heading": 1.0}})
	s := NewServer(c, 0)
	url, cleanup := startTestServer(t, s)
	defer cleanup()

	ws := dial(t, url)
	defer ws.Close()

	if err := ws.WriteJSON(request{Type: "fields"}); err != nil {
		t.Fatal(err)
	}
	var resp response
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Type != "fields" || resp.Status != 200 {
		t.Fatalf("got %+v", resp)
	}
}

func TestSubscribeAndReadyFutureOnly(t *testing.T) {
	c := cache.New()
	s := NewServer(c, 0)
	url, cleanup := startTestServer(t, s)
	defer cleanup()

	ws := dial(t, url)
	defer ws.Close()

	subReq := map[string]any{
		"type":   "subscribe",
		"fields": map[string]any{"Heading": map[string]any{"seconds": 0}},
	}
	if err := ws.WriteJSON(subReq); err != nil {
		t.Fatal(err)
	}
	var ackResp response
	if err := ws.ReadJSON(&ackResp); err != nil {
		t.Fatal(err)
	}
	if ackResp.Status != 200 {
		t.Fatalf("subscribe ack: %+v", ackResp)
	}

	// Publish a new sample, then pull with "ready".
	c.CacheRecord(record.DASRecord{Timestamp: float64(time.Now().Unix() + 10), Fields: map[string]any{"Heading": 42.0}})

	if err := ws.WriteJSON(request{Type: "ready"}); err != nil {
		t.Fatal(err)
	}
	var dataResp response
	if err := ws.ReadJSON(&dataResp); err != nil {
		t.Fatal(err)
	}
	if dataResp.Status != 200 {
		t.Fatalf("ready: %+v", dataResp)
	}
	payload, ok := dataResp.Data.(map[string]any)
	if !ok || len(payload) == 0 {
		t.Fatalf("expected field_dict payload with Heading, got %+v", dataResp.Data)
	}
}

func TestPublishRequestFeedsCache(t *testing.T) {
	c := cache.New()
	s := NewServer(c, 0)
	url, cleanup := startTestServer(t, s)
	defer cleanup()

	ws := dial(t, url)
	defer ws.Close()

	data, _ := json.Marshal(map[string]any{"data_id": "x", "timestamp": 5.0, "fields": map[string]any{"Speed": 3.0}})
	req := request{Type: "publish", Data: data}
	if err := ws.WriteJSON(req); err != nil {
		t.Fatal(err)
	}
	var resp response
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != 200 {
		t.Fatalf("publish: %+v", resp)
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Latest("Speed"); !ok {
		t.Fatal("expected published record to land in the cache")
	}
}

func TestCollateRecordList(t *testing.T) {
	results := map[string][]record.TimeValue{
		"A": {{Timestamp: 1, Value: "a1"}, {Timestamp: 2, Value: "a2"}},
		"B": {{Timestamp: 1, Value: "b1"}},
	}
	out := collateRecordList(results)
	if len(out) != 2 {
		t.Fatalf("got %d records, want 2", len(out))
	}
	if out[0]["timestamp"].(float64) != 1 {
		t.Fatalf("got %+v", out[0])
	}
	fields := out[0]["fields"].(map[string]any)
	if fields["A"] != "a1" || fields["B"] != "b1" {
		t.Fatalf("got %+v", fields)
	}
}
