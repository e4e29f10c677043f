package cds

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/oceantech/rvdaq/internal/record"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 256
)

// fieldSubscription tracks one subscribed field's pull-model cursor.
// lastSent is the timestamp of the most recent sample already delivered
// to this connection; initialBack is how many of the most-recent
// samples to guarantee on the very next "ready" pull regardless of how
// far lastSent reaches back (the subscribe-time back_records guarantee,
// consumed once).
type fieldSubscription struct {
	lastSent    float64
	initialBack int
}

// connection is one client's live websocket session, grounded on
// backend/socket/socket.go's Client: a buffered send channel drained by
// a dedicated writePump goroutine, so readPump's replies and the pings
// are written to the websocket from one goroutine, and an idempotent
// close() that readPump and Server.Quit can both call.
type connection struct {
	id     uuid.UUID
	ws     *websocket.Conn
	server *Server

	send chan []byte

	mu     sync.Mutex
	subs   map[string]*fieldSubscription
	format string // "field_dict" (default) or "record_list"

	closeOnce sync.Once
	done      chan struct{}
}

func newConnection(ws *websocket.Conn, s *Server) *connection {
	return &connection{
		id:     uuid.New(),
		ws:     ws,
		server: s,
		send:   make(chan []byte, sendBuffer),
		subs:   make(map[string]*fieldSubscription),
		format: "field_dict",
		done:   make(chan struct{}),
	}
}

func (c *connection) run() {
	go c.writePump()
	c.readPump()
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.ws.Close()
	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("cds: connection %s: write failed: %v", c.id, err)
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *connection) readPump() {
	defer c.close()
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var req request
		if err := json.Unmarshal(raw, &req); err != nil {
			c.reply(errorResponse("error", fmt.Sprintf("invalid request: %v", err)))
			continue
		}
		c.handleRequest(req)
	}
}

func (c *connection) reply(resp response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		log.Printf("cds: connection %s: marshal response: %v", c.id, err)
		return
	}
	select {
	case c.send <- payload:
	case <-c.done:
	default:
		log.Printf("cds: connection %s: send buffer full, dropping a response", c.id)
	}
}

// close is idempotent: readPump and Server.Quit can both trigger it
// without double-closing anything.
func (c *connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.server.removeConnection(c.id)
		close(c.send)
	})
}

func (c *connection) handleRequest(req request) {
	switch req.Type {
	case "fields":
		c.reply(okResponse("fields", c.server.cache.Keys()))

	case "describe":
		var fields []string
		if len(req.Fields) > 0 {
			if err := json.Unmarshal(req.Fields, &fields); err != nil {
				c.reply(errorResponse("describe", fmt.Sprintf("bad fields: %v", err)))
				return
			}
		}
		expanded := c.expandFields(fields)
		c.reply(okResponse("describe", c.server.cache.GetMetadata(expanded)))

	case "publish":
		var raw any
		if err := json.Unmarshal(req.Data, &raw); err != nil {
			c.reply(errorResponse("publish", fmt.Sprintf("bad data: %v", err)))
			return
		}
		recs, err := record.Normalize(raw)
		if err != nil {
			c.reply(errorResponse("publish", fmt.Sprintf("normalize: %v", err)))
			return
		}
		for _, r := range recs {
			c.server.cache.CacheRecord(r)
		}
		c.reply(okResponse("publish", nil))

	case "subscribe":
		c.handleSubscribe(req)

	case "ready":
		c.handleReady()

	default:
		c.reply(errorResponse(req.Type, fmt.Sprintf("unknown request type %q", req.Type)))
	}
}

func (c *connection) expandFields(patterns []string) []string {
	var out []string
	for _, p := range patterns {
		out = append(out, c.server.cache.MatchingKeys(p)...)
	}
	return out
}

func (c *connection) handleSubscribe(req request) {
	var specs map[string]fieldSpec
	if len(req.Fields) > 0 {
		if err := json.Unmarshal(req.Fields, &specs); err != nil {
			c.reply(errorResponse("subscribe", fmt.Sprintf("bad fields: %v", err)))
			return
		}
	}
	if req.Format == "record_list" {
		c.mu.Lock()
		c.format = "record_list"
		c.mu.Unlock()
	}

	now := float64(time.Now().Unix())

	newSub := func(field string, spec fieldSpec) *fieldSubscription {
		sub := &fieldSubscription{initialBack: spec.BackRecords}
		switch {
		case spec.Seconds == 0:
			sub.lastSent = now
		case spec.Seconds < 0:
			if tv, ok := c.server.cache.Latest(field); ok {
				sub.lastSent = tv.Timestamp - smallEpsilon
			} else {
				sub.lastSent = now
			}
		default:
			sub.lastSent = now - spec.Seconds - smallEpsilon
		}
		return sub
	}

	c.mu.Lock()
	for pattern, spec := range specs {
		matches := c.server.cache.MatchingKeys(pattern)
		if len(matches) == 0 {
			// Not seen by the cache yet: remember the literal pattern
			// so a field of exactly that name that shows up later is
			// still picked up, without requiring the client to
			// resubscribe. A wildcard pattern stored this way is looked
			// up as a literal name and matches no field added later.
			c.subs[pattern] = newSub(pattern, spec)
			continue
		}
		for _, field := range matches {
			c.subs[field] = newSub(field, spec)
		}
	}
	c.mu.Unlock()

	c.reply(okResponse("subscribe", nil))
}

// smallEpsilon nudges a cutoff timestamp down slightly so a sample
// exactly at the cutoff is still included by the strict ">" comparison
// RecordCache.Since uses.
const smallEpsilon = 1e-6

func (c *connection) handleReady() {
	c.mu.Lock()
	fields := make(map[string]*fieldSubscription, len(c.subs))
	for k, v := range c.subs {
		fields[k] = v
	}
	format := c.format
	c.mu.Unlock()

	results := make(map[string][]record.TimeValue)
	for field, sub := range fields {
		var vals []record.TimeValue
		if sub.initialBack > 0 {
			vals = c.server.cache.SinceOrLastN(field, sub.lastSent, sub.initialBack)
		} else {
			vals = c.server.cache.Since(field, sub.lastSent)
		}
		if len(vals) == 0 {
			continue
		}
		results[field] = vals

		c.mu.Lock()
		if s, ok := c.subs[field]; ok {
			s.lastSent = vals[len(vals)-1].Timestamp
			s.initialBack = 0
		}
		c.mu.Unlock()
	}

	if len(results) == 0 {
		c.reply(okResponse("data", nil))
		return
	}

	if format == "record_list" {
		c.reply(okResponse("data", collateRecordList(results)))
	} else {
		c.reply(okResponse("data", fieldDictPayload(results)))
	}
}

// fieldDictPayload renders results in the default field_dict wire form:
// {"field1": [[ts, val], ...], ...}.
func fieldDictPayload(results map[string][]record.TimeValue) map[string][][2]any {
	out := make(map[string][][2]any, len(results))
	for field, vals := range results {
		pairs := make([][2]any, len(vals))
		for i, tv := range vals {
			pairs[i] = [2]any{tv.Timestamp, tv.Value}
		}
		out[field] = pairs
	}
	return out
}

// collateRecordList groups samples across fields by strict timestamp
// equality into a list of {"timestamp":..., "fields": {...}} records,
// per DESIGN.md's decision to use strict equality (spec.md's own
// stated reference behavior) rather than a fuzzy time window.
func collateRecordList(results map[string][]record.TimeValue) []map[string]any {
	byTimestamp := make(map[float64]map[string]any)
	var order []float64
	for field, vals := range results {
		for _, tv := range vals {
			rec, ok := byTimestamp[tv.Timestamp]
			if !ok {
				rec = map[string]any{"timestamp": tv.Timestamp, "fields": map[string]any{}}
				byTimestamp[tv.Timestamp] = rec
				order = append(order, tv.Timestamp)
			}
			rec["fields"].(map[string]any)[field] = tv.Value
		}
	}
	sort.Float64s(order)
	out := make([]map[string]any, len(order))
	for i, ts := range order {
		out[i] = byTimestamp[ts]
	}
	return out
}
