// Command cds runs the Cached Data Server, optionally fed by a UDP
// ingest reader, wired together the way backend/main.go and
// backend/server/*.go start up the teacher's HTTP/websocket process.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/oceantech/rvdaq/internal/cache"
	"github.com/oceantech/rvdaq/internal/cds"
	"github.com/oceantech/rvdaq/internal/config"
	"github.com/oceantech/rvdaq/internal/netio"
	"github.com/oceantech/rvdaq/internal/record"
)

func main() {
	udpPort := flag.Int("udp-port", 0, "if set, listen for UDP DASRecord JSON on this port and feed the cache")
	flag.Parse()

	cfg := config.Load()

	// A single root context carries cancellation to every component:
	// the UDP feed goroutine (if enabled), the CDS cleanup loop, and,
	// through server.Quit, every live websocket connection, per
	// spec.md §9's single-cancellation-token design note. SIGTERM/SIGINT
	// is translated into a cooperative quit here, satisfying §6.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := cache.New()
	server := cds.NewServer(c, cfg.MinBackRecordsPerField)
	server.CleanupInterval = time.Duration(cfg.CleanupIntervalSeconds) * time.Second
	server.MaxRecords = cfg.MaxRecordsPerField
	server.DiskCacheDir = cfg.DiskCacheDir

	if *udpPort > 0 {
		go feedFromUDP(ctx, c, *udpPort)
	}

	go func() {
		if err := server.Run(ctx); err != nil {
			log.Printf("cds: cleanup loop stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.HandleWebSocket)
	httpServer := &http.Server{Addr: cfg.CDSListenAddr, Handler: mux}

	go func() {
		<-ctx.Done()
		server.Quit()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("cds: listening on %s", cfg.CDSListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("cds: http server failed: %v", err)
	}
}

// feedFromUDP reads one DASRecord JSON message per (reassembled) UDP
// datagram and caches each record directly, for deployments that want to run the
// CDS against a live UDP feed without a separate pipeline process.
func feedFromUDP(ctx context.Context, c *cache.RecordCache, port int) {
	reader, err := netio.NewUDPReader(port, "", "", 0)
	if err != nil {
		log.Printf("cds: udp feed: %v", err)
		return
	}
	defer reader.Close()

	for {
		msg, err := reader.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("cds: udp feed: read: %v", err)
			continue
		}
		recs, err := record.Normalize(string(msg.([]byte)))
		if err != nil {
			log.Printf("cds: udp feed: normalize: %v", err)
			continue
		}
		for _, r := range recs {
			c.CacheRecord(r)
		}
	}
}
