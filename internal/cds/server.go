// Package cds implements the Cached Data Server: a websocket pull-model
// protocol over a RecordCache, grounded on
// original_source/server/cached_data_server.py's WebSocketConnection and
// CachedDataServer classes for the protocol/subscription state machine,
// and on backend/socket/socket.go for the Go-idiomatic websocket
// connection lifecycle.
package cds

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/oceantech/rvdaq/internal/cache"
)

// Server is the Cached Data Server: a websocket endpoint plus a periodic
// cache-cleanup loop.
type Server struct {
	cache *cache.RecordCache

	upgrader websocket.Upgrader

	mu          sync.Mutex
	connections map[uuid.UUID]*connection

	// CleanupInterval, Oldest, MaxRecords, and minBackRecords configure
	// the periodic RecordCache.Cleanup pass; see cache.Cleanup.
	CleanupInterval time.Duration
	Oldest          float64
	MaxRecords      int
	minBackRecords  int

	// DiskCacheDir, when non-empty, is loaded at Run startup and saved
	// on every cleanup pass, per spec.md §4.7's disk persistence.
	DiskCacheDir string

	quitOnce sync.Once
	quitCh   chan struct{}
}

// NewServer builds a Server over an existing cache (use cache.New() for
// a fresh one, or load a pre-populated one via cache.LoadFromDisk first).
func NewServer(c *cache.RecordCache, minBackRecords int) *Server {
	return &Server{
		cache:          c,
		connections:    make(map[uuid.UUID]*connection),
		minBackRecords: minBackRecords,
		CleanupInterval: time.Minute,
		quitCh:         make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// HandleWebSocket upgrades the HTTP request to a websocket connection
// and runs its read/write pumps until the client disconnects, matching
// backend/socket/socket.go's WsHandler shape.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("cds: websocket upgrade failed: %v", err)
		return
	}
	conn := newConnection(ws, s)
	s.mu.Lock()
	s.connections[conn.id] = conn
	s.mu.Unlock()
	log.Printf("cds: connection %s opened (%d total)", conn.id, s.connectionCount())
	conn.run()
}

func (s *Server) removeConnection(id uuid.UUID) {
	s.mu.Lock()
	delete(s.connections, id)
	n := len(s.connections)
	s.mu.Unlock()
	log.Printf("cds: connection %s closed (%d remaining)", id, n)
}

func (s *Server) connectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

// Run starts the periodic cleanup loop and blocks until ctx is
// cancelled or Quit is called. If DiskCacheDir is set, the cache is
// loaded from it once at startup and saved to it after every cleanup
// pass.
func (s *Server) Run(ctx context.Context) error {
	if s.DiskCacheDir != "" {
		if err := s.cache.LoadFromDisk(s.DiskCacheDir); err != nil {
			log.Printf("cds: no existing disk cache loaded from %q: %v", s.DiskCacheDir, err)
		}
	}

	interval := s.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.quitCh:
			return nil
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

func (s *Server) runCleanup() {
	oldest := s.Oldest
	if oldest > 0 {
		oldest = float64(time.Now().Unix()) - oldest
	}
	s.cache.Cleanup(oldest, s.MaxRecords, s.minBackRecords)
	if s.DiskCacheDir != "" {
		if err := s.cache.SaveToDisk(s.DiskCacheDir); err != nil {
			log.Printf("cds: save to disk failed: %v", err)
		}
	}
}

// Quit stops Run and closes every live connection. Safe to call more
// than once.
func (s *Server) Quit() {
	s.quitOnce.Do(func() {
		close(s.quitCh)
		s.mu.Lock()
		conns := make([]*connection, 0, len(s.connections))
		for _, c := range s.connections {
			conns = append(conns, c)
		}
		s.mu.Unlock()
		for _, c := range conns {
			c.close()
		}
	})
}
