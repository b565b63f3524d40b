package handlers

import (
	"sync"
	"time"
)

// tokenBucket limits inbound audio_chunk frames per connection. A
// misbehaving client that floods chunks gets them dropped rather than
// amplified through the pipeline.
type tokenBucket struct {
	mu     sync.Mutex
	tokens float64
	rate   float64 // tokens per second
	burst  float64
	last   time.Time
}

func newTokenBucket(ratePerSec int) *tokenBucket {
	if ratePerSec <= 0 {
		ratePerSec = 60
	}
	rate := float64(ratePerSec)
	return &tokenBucket{
		tokens: rate,
		rate:   rate,
		burst:  rate,
		last:   time.Now(),
	}
}

func (b *tokenBucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.tokens += now.Sub(b.last).Seconds() * b.rate
	if b.tokens > b.burst {
		b.tokens = b.burst
	}
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
