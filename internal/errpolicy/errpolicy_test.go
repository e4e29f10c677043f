package errpolicy

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicySucceedsEventually(t *testing.T) {
	p := NewRetryPolicy("test")
	p.BaseDelay = time.Millisecond
	p.MaxDelay = time.Millisecond
	attempts := 0
	err := p.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryPolicyExhausted(t *testing.T) {
	p := NewRetryPolicy("test")
	p.MaxAttempts = 2
	p.BaseDelay = time.Millisecond
	p.MaxDelay = time.Millisecond
	err := p.Do(context.Background(), func() error {
		return errors.New("always fails")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
}

func TestRetryPolicyMutesAfterLimit(t *testing.T) {
	p := NewRetryPolicy("test")
	p.WarnLimit = 1
	p.MaxAttempts = 1
	p.BaseDelay = time.Millisecond
	// Each Do call here only ever records one failure (MaxAttempts=1),
	// so muting only kicks in once consecutiveFailures exceeds WarnLimit
	// across calls.
	_ = p.Do(context.Background(), func() error { return errors.New("fail") })
	if p.muted {
		t.Fatal("policy should not mute until WarnLimit is exceeded")
	}
	_ = p.Do(context.Background(), func() error { return errors.New("fail") })
	if !p.muted {
		t.Fatal("expected policy to mute after exceeding WarnLimit")
	}
}

func TestRetryPolicyRequiresTwoSuccessesToUnmute(t *testing.T) {
	p := NewRetryPolicy("test")
	p.WarnLimit = 1
	p.MaxAttempts = 1
	p.BaseDelay = time.Millisecond
	_ = p.Do(context.Background(), func() error { return errors.New("fail") })
	_ = p.Do(context.Background(), func() error { return errors.New("fail") })
	if !p.muted {
		t.Fatal("expected policy to be muted")
	}

	_ = p.Do(context.Background(), func() error { return nil })
	if !p.muted {
		t.Fatal("one success must not unmute the policy")
	}

	_ = p.Do(context.Background(), func() error { return nil })
	if p.muted {
		t.Fatal("expected policy to unmute after two consecutive successes")
	}
}

func TestRetryPolicyContextCancelled(t *testing.T) {
	p := NewRetryPolicy("test")
	p.MaxAttempts = 5
	p.BaseDelay = 50 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Do(ctx, func() error { return errors.New("fail") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
