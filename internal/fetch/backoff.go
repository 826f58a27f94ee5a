package fetch

import (
	"math/rand/v2"
	"time"
)

// backoff is the retry schedule of one fetch: base * 2^attempt with +/-20%
// jitter, capped at max. A Retry-After hint below the cap wins.
type backoff struct {
	base    time.Duration
	max     time.Duration
	attempt int
	next    time.Duration
	jitter  func() float64 // returns [0,1)
}

func newBackoff(base, max time.Duration) *backoff {
	return &backoff{base: base, max: max, next: base, jitter: rand.Float64}
}

// Next returns the delay before the following attempt and advances the schedule.
func (b *backoff) Next(retryAfter time.Duration) time.Duration {
	delay := b.next
	if delay > 0 {
		factor := 0.8 + 0.4*b.jitter()
		delay = time.Duration(float64(delay) * factor)
	}
	if b.max > 0 && delay > b.max {
		delay = b.max
	}
	if retryAfter > 0 && (b.max <= 0 || retryAfter <= b.max) {
		delay = retryAfter
	}

	b.attempt++
	if b.next > 0 && (b.max <= 0 || b.next < b.max) {
		b.next *= 2
	}
	return delay
}

// Attempt is the number of delays handed out so far.
func (b *backoff) Attempt() int {
	return b.attempt
}
