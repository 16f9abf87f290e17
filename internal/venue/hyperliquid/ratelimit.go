// ratelimit.go implements token-bucket rate limiting for Hyperliquid's
// REST endpoints. Hyperliquid's published limits are weight-based rather
// than the Polymarket-style flat per-10s count this is adapted from; the
// capacities below are a conservative per-second budget chosen in the
// absence of concrete numbers in this module's grounding material (see
// DESIGN.md) — they bias towards under-using the real limit rather than
// tripping it.
package hyperliquid

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is a continuous-refill token-bucket rate limiter. Callers
// block in Wait() until a token is available or the context is cancelled.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // tokens refilled per second
	lastTime time.Time
}

// NewTokenBucket creates a rate limiter with the given capacity and
// refill rate.
func NewTokenBucket(capacity, ratePerSecond float64) *TokenBucket {
	return &TokenBucket{
		tokens:   capacity,
		capacity: capacity,
		rate:     ratePerSecond,
		lastTime: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is cancelled.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.lastTime).Seconds()
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastTime = now

		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}

		wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// RateLimiter groups token buckets by Hyperliquid API endpoint category.
type RateLimiter struct {
	Exchange *TokenBucket // POST /exchange — order create/amend/cancel actions
	Info     *TokenBucket // POST /info — orderbook/trades/ohlcv/ticker/position reads
}

// NewRateLimiter returns a rate limiter with conservative defaults. 20
// req/s burst-50 on /exchange and 50 req/s burst-100 on /info leave
// comfortable headroom under Hyperliquid's documented per-IP weight
// budget without this module having the exact weight table to target.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		Exchange: NewTokenBucket(50, 20),
		Info:     NewTokenBucket(100, 50),
	}
}
