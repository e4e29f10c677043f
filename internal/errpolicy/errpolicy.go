// Package errpolicy centralizes the warning-limit / mute / backoff /
// reset-after-two-successes retry policy spec.md §4.2 and §7 describe.
// The Postgres and Redis writers use it; the TCP, UDP, serial and
// Unix-socket writers and the cache's disk I/O do not retry through it
// and do not mute their warnings. Grounded
// on services/backend/internal/data/retry.go's ExecWithRetry.
package errpolicy

import (
	"context"
	"fmt"
	"log"
	"time"
)

// RetryPolicy applies exponential backoff to a fallible operation and
// mutes repeated identical warnings after warnLimit consecutive
// failures, only resuming logging once two consecutive calls succeed —
// not one, because a datagram socket can report success on the
// datagram immediately following a failed one while the underlying
// link is still flapping.
type RetryPolicy struct {
	Name       string
	MaxAttempts int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	WarnLimit  int

	consecutiveFailures int
	consecutiveSuccesses int
	muted               bool
}

// NewRetryPolicy builds a RetryPolicy with the defaults grounded on
// ExecWithRetry: 5 attempts, 500ms initial backoff doubling up to 30s,
// warnings muted after 3 consecutive failures.
func NewRetryPolicy(name string) *RetryPolicy {
	return &RetryPolicy{
		Name:        name,
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		WarnLimit:   3,
	}
}

// Do runs op, retrying with exponential backoff on error up to
// MaxAttempts times, or until ctx is cancelled. It returns the last
// error if every attempt fails.
func (p *RetryPolicy) Do(ctx context.Context, op func() error) error {
	delay := p.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			p.recordSuccess()
			return nil
		}
		p.recordFailure(lastErr)
		if attempt == p.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return fmt.Errorf("errpolicy: %s: all %d attempts failed: %w", p.Name, p.MaxAttempts, lastErr)
}

func (p *RetryPolicy) recordFailure(err error) {
	p.consecutiveSuccesses = 0
	p.consecutiveFailures++
	if p.consecutiveFailures <= p.WarnLimit {
		log.Printf("errpolicy: %s: attempt failed: %v", p.Name, err)
	} else if !p.muted {
		log.Printf("errpolicy: %s: muting further warnings after %d consecutive failures", p.Name, p.consecutiveFailures)
		p.muted = true
	}
}

func (p *RetryPolicy) recordSuccess() {
	p.consecutiveSuccesses++
	if p.consecutiveSuccesses < 2 {
		// A single success doesn't clear the failure streak: a datagram
		// socket can report success on the datagram immediately after a
		// failed one while the link is still flapping.
		return
	}
	p.consecutiveFailures = 0
	if p.muted {
		log.Printf("errpolicy: %s: recovered after %d consecutive successes, resuming warnings", p.Name, p.consecutiveSuccesses)
		p.muted = false
	}
}
