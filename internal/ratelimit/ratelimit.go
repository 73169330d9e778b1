// Package ratelimit implements the dual token-bucket limiter and the
// exponential-jitter backoff helper used by the text embedder.
package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/allanyiin/slidemanager/internal/constants"
)

// Bucket is a dual token bucket: one capacity for requests/minute, one for
// tokens/minute, refilled continuously at capacity/60 per second.
type Bucket struct {
	mu sync.Mutex

	reqCapacity float64
	tokCapacity float64
	reqRate     float64 // per second
	tokRate     float64 // per second

	reqTokens float64
	tokTokens float64
	updatedAt time.Time
}

// New creates a Bucket with the given per-minute capacities, starting full.
func New(reqPerMin, tokPerMin int) *Bucket {
	now := time.Now()
	return &Bucket{
		reqCapacity: float64(reqPerMin),
		tokCapacity: float64(tokPerMin),
		reqRate:     float64(reqPerMin) / 60,
		tokRate:     float64(tokPerMin) / 60,
		reqTokens:   float64(reqPerMin),
		tokTokens:   float64(tokPerMin),
		updatedAt:   now,
	}
}

// Acquire blocks (cooperatively, respecting ctx) until reqCost requests and
// tokCost tokens are available: refill-under-mutex, subtract-if-sufficient,
// else sleep-outside-mutex with a bounded wait and retry.
func (b *Bucket) Acquire(ctx context.Context, reqCost, tokCost float64) error {
	for {
		wait, ok := b.tryAcquire(reqCost, tokCost)
		if ok {
			return nil
		}
		if wait > constants.RateLimiterMaxSleep {
			wait = constants.RateLimiterMaxSleep
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(wait * float64(time.Second))):
		}
	}
}

// tryAcquire refills the buckets to now and, if sufficient, subtracts and
// returns (0, true). Otherwise it returns the seconds the caller should wait
// before retrying.
func (b *Bucket) tryAcquire(reqCost, tokCost float64) (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.updatedAt).Seconds()
	if elapsed > 0 {
		b.reqTokens = min(b.reqCapacity, b.reqTokens+elapsed*b.reqRate)
		b.tokTokens = min(b.tokCapacity, b.tokTokens+elapsed*b.tokRate)
		b.updatedAt = now
	}

	if b.reqTokens >= reqCost && b.tokTokens >= tokCost {
		b.reqTokens -= reqCost
		b.tokTokens -= tokCost
		return 0, true
	}

	needReq := reqCost - b.reqTokens
	needTok := tokCost - b.tokTokens
	var waitReq, waitTok float64
	if b.reqRate > 0 {
		waitReq = needReq / b.reqRate
	}
	if b.tokRate > 0 {
		waitTok = needTok / b.tokRate
	}
	wait := max(waitReq, waitTok, constants.RateLimiterMinWait)
	return wait, false
}

// BackoffDelay computes the jittered exponential backoff for retry attempt
// (0-based): min(cap, base*2^attempt) * (0.5 + rand*0.5).
func BackoffDelay(attempt int) time.Duration {
	delay := constants.BackoffBase * pow2(attempt)
	if delay > constants.BackoffCap {
		delay = constants.BackoffCap
	}
	jittered := delay * (0.5 + rand.Float64()*0.5)
	return time.Duration(jittered * float64(time.Second))
}

func pow2(n int) float64 {
	result := 1.0
	for range n {
		result *= 2
	}
	return result
}
