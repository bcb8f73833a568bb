package backpressure

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyedLimiter keeps one token bucket per key, such as a client address.
// Buckets idle for longer than ttl are dropped on the next sweep.
type KeyedLimiter struct {
	rate    rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*keyedBucket
	swept   time.Time
}

type keyedBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewKeyedLimiter(r float64, burst int, ttl time.Duration) *KeyedLimiter {
	if r <= 0 {
		r = 1.0
	}
	if burst <= 0 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &KeyedLimiter{
		rate:    rate.Limit(r),
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
		buckets: make(map[string]*keyedBucket),
	}
}

// Allow checks if one operation for key is allowed
func (kl *KeyedLimiter) Allow(key string) bool {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	now := kl.now()
	if now.Sub(kl.swept) > kl.ttl {
		for k, b := range kl.buckets {
			if now.Sub(b.lastSeen) > kl.ttl {
				delete(kl.buckets, k)
			}
		}
		kl.swept = now
	}

	b, ok := kl.buckets[key]
	if !ok {
		b = &keyedBucket{limiter: rate.NewLimiter(kl.rate, kl.burst)}
		kl.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Len returns the number of tracked keys
func (kl *KeyedLimiter) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.buckets)
}
