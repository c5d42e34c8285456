package security

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRateLimiter_BasicEnforcement(t *testing.T) {
	limiter := NewRateLimiter(Limit{RPS: 2, Burst: 2}, Limit{})

	if !limiter.Allow("client1") {
		t.Error("first request should be allowed")
	}
	if !limiter.Allow("client1") {
		t.Error("second request should be allowed")
	}
	if limiter.Allow("client1") {
		t.Error("third request should be rate limited")
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	limiter := NewRateLimiter(Limit{RPS: 2, Burst: 2}, Limit{})
	limiter.Allow("client1")
	limiter.Allow("client1")

	time.Sleep(600 * time.Millisecond)

	if !limiter.Allow("client1") {
		t.Error("request should be allowed after refill")
	}
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(Limit{RPS: 1, Burst: 2}, Limit{})

	if !limiter.Allow("a") || !limiter.Allow("a") {
		t.Fatal("client a should get its full burst")
	}
	if limiter.Allow("a") {
		t.Error("client a should be limited")
	}
	if !limiter.Allow("b") {
		t.Error("client b should not share a's bucket")
	}
	if got := limiter.Clients(); got != 2 {
		t.Errorf("Clients() = %d, want 2", got)
	}
}

func TestRateLimiter_GlobalLimitIsShared(t *testing.T) {
	limiter := NewRateLimiter(Limit{RPS: 1, Burst: 5}, Limit{RPS: 0.001, Burst: 3})

	for _, id := range []string{"a", "b", "c"} {
		if !limiter.Allow(id) {
			t.Fatalf("client %s should be allowed within the global burst", id)
		}
	}
	if limiter.Allow("d") {
		t.Error("client d should be denied once the global burst is spent")
	}
}

func TestRateLimiter_DeniedRequestKeepsTokens(t *testing.T) {
	tests := []struct {
		name      string
		perClient Limit
		global    Limit
		spend     func(*RateLimiter)
		check     func(*testing.T, *RateLimiter)
	}{
		{
			name:      "global denial keeps client token",
			perClient: Limit{RPS: 0.001, Burst: 1},
			global:    Limit{RPS: 0.001, Burst: 1},
			spend: func(rl *RateLimiter) {
				rl.Allow("other")
				rl.Allow("a")
			},
			check: func(t *testing.T, rl *RateLimiter) {
				if !rl.client("a").Allow() {
					t.Error("client a token should survive a global denial")
				}
			},
		},
		{
			name:      "client denial keeps global token",
			perClient: Limit{RPS: 0.001, Burst: 1},
			global:    Limit{RPS: 0.001, Burst: 2},
			spend: func(rl *RateLimiter) {
				rl.Allow("a")
				rl.Allow("a")
			},
			check: func(t *testing.T, rl *RateLimiter) {
				if !rl.Allow("b") {
					t.Error("client b should get the global token a was denied")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := NewRateLimiter(tt.perClient, tt.global)
			tt.spend(limiter)
			tt.check(t, limiter)
		})
	}
}

func TestRateLimiter_Wait(t *testing.T) {
	limiter := NewRateLimiter(Limit{RPS: 1, Burst: 1}, Limit{})
	limiter.Allow("c")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx, "c")
	if err == nil {
		t.Fatal("expected wait to fail before the bucket refills")
	}
	if errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected cancellation: %v", err)
	}
}

func TestRateLimiter_Prune(t *testing.T) {
	limiter := NewRateLimiter(Limit{RPS: 10, Burst: 10}, Limit{})
	limiter.Allow("old")
	limiter.clients["old"].lastSeen = time.Now().Add(-time.Hour)
	limiter.Allow("fresh")

	if removed := limiter.Prune(time.Minute); removed != 1 {
		t.Errorf("Prune() = %d, want 1", removed)
	}
	if got := limiter.Clients(); got != 1 {
		t.Errorf("Clients() = %d, want 1", got)
	}
}

func TestRateLimiter_Concurrent(t *testing.T) {
	limiter := NewRateLimiter(Limit{RPS: 1000, Burst: 50}, Limit{RPS: 1000, Burst: 50})

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow("shared") {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got < 1 || got > 100 {
		t.Errorf("allowed = %d, want between 1 and 100", got)
	}
}
