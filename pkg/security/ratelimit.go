package security

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limit is a token bucket rate: RPS sustained requests per second with bursts
// of up to Burst.
type Limit struct {
	RPS   float64
	Burst int
}

// RateLimiter keeps one token bucket per client and an optional global bucket
// shared by all clients. Idle client buckets are evicted by Prune.
type RateLimiter struct {
	perClient Limit
	global    *rate.Limiter

	mu      sync.Mutex
	clients map[string]*clientBucket
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter giving each client its own perClient
// bucket. A global limit with RPS <= 0 disables the shared bucket.
func NewRateLimiter(perClient, global Limit) *RateLimiter {
	rl := &RateLimiter{
		perClient: perClient,
		clients:   make(map[string]*clientBucket),
	}
	if global.RPS > 0 {
		rl.global = rate.NewLimiter(rate.Limit(global.RPS), global.Burst)
	}
	return rl
}

// Allow reports whether a request from clientID may proceed now. A denied
// request consumes no tokens from either bucket.
func (rl *RateLimiter) Allow(clientID string) bool {
	now := time.Now()

	var shared *rate.Reservation
	if rl.global != nil {
		shared = rl.global.ReserveN(now, 1)
		if !shared.OK() {
			return false
		}
		if shared.DelayFrom(now) > 0 {
			shared.CancelAt(now)
			return false
		}
	}
	if !rl.client(clientID).AllowN(now, 1) {
		if shared != nil {
			shared.CancelAt(now)
		}
		return false
	}
	return true
}

// Wait blocks until a request from clientID may proceed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, clientID string) error {
	if err := rl.client(clientID).Wait(ctx); err != nil {
		return fmt.Errorf("client rate limit: %w", err)
	}
	if rl.global == nil {
		return nil
	}
	if err := rl.global.Wait(ctx); err != nil {
		return fmt.Errorf("global rate limit: %w", err)
	}
	return nil
}

// Prune drops client buckets not used within idle. Returns the number removed.
func (rl *RateLimiter) Prune(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for id, b := range rl.clients {
		if b.lastSeen.Before(cutoff) {
			delete(rl.clients, id)
			removed++
		}
	}
	return removed
}

// Clients returns the number of tracked client buckets.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) client(clientID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.clients[clientID]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rate.Limit(rl.perClient.RPS), rl.perClient.Burst)}
		rl.clients[clientID] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}
