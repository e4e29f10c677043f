// Package dlog wraps the standard log package with the warning-limit /
// mute-after-threshold behavior spec.md §4.2/§7 require of error
// logging generally, not just networked writers — so a noisy reader or
// cache disk failure doesn't spam the process log forever either.
package dlog

import (
	"log"
	"sync"
)

// Muted logs a message under key, muting further identical-key messages
// after limit consecutive calls, and resuming once Reset(key) is called
// (typically on the next success). This is the same policy as
// internal/errpolicy.RetryPolicy, exposed standalone for call sites that
// log warnings outside a retried operation (e.g. a reader dropping a
// malformed line).
type Muted struct {
	mu     sync.Mutex
	limit  int
	counts map[string]int
	muted  map[string]bool
}

// NewMuted builds a Muted logger that allows `limit` consecutive
// warnings per key before muting that key.
func NewMuted(limit int) *Muted {
	if limit <= 0 {
		limit = 3
	}
	return &Muted{limit: limit, counts: make(map[string]int), muted: make(map[string]bool)}
}

// Warn logs format/args under key, unless key is currently muted.
func (m *Muted) Warn(key, format string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	if m.muted[key] {
		return
	}
	log.Printf(format, args...)
	if m.counts[key] >= m.limit {
		log.Printf("dlog: muting further %q warnings after %d consecutive occurrences", key, m.counts[key])
		m.muted[key] = true
	}
}

// Reset clears key's failure count and un-mutes it, intended to be
// called after a successful operation.
func (m *Muted) Reset(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counts, key)
	delete(m.muted, key)
}
