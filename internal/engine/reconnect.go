package engine

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// ReconnectLimiter guards against reconnect storms: beyond the exponential
// backoff already applied per attempt (owned by the client, see
// sockio.Client), a burst of rapid transport failures (flapping network,
// a server bouncing under load) can still drive attempts faster than the
// backoff alone intends if failures happen before a delay even completes.
// It wraps golang.org/x/time/rate.Limiter as a floor under the computed
// backoff delay.
type ReconnectLimiter struct {
	limiter *rate.Limiter
}

// NewReconnectLimiter allows at most burst immediate reconnect attempts,
// refilling at one per interval thereafter.
func NewReconnectLimiter(interval time.Duration, burst int) *ReconnectLimiter {
	return &ReconnectLimiter{limiter: rate.NewLimiter(rate.Every(interval), burst)}
}

// Wait blocks until the limiter admits one reconnect attempt or ctx is
// cancelled. Callers on the task queue must use Allow instead — tasks may
// not block.
func (l *ReconnectLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether a reconnect attempt may proceed right now, without
// blocking. Used from the task queue, where Wait would be unsafe.
func (l *ReconnectLimiter) Allow() bool {
	return l.limiter.Allow()
}

// Backoff computes the delay for reconnect attempt n (1-indexed) given a
// base delay, a cap, and a jitter factor in [0, 1] applied uniformly in
// [1-randomization, 1+randomization].
func Backoff(attempt int, base, max time.Duration, randomization float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	raw := float64(base) * pow2(attempt-1)
	capped := raw
	if float64(max) > 0 && capped > float64(max) {
		capped = float64(max)
	}
	if randomization <= 0 {
		return time.Duration(capped)
	}
	jitter := 1 + (rand.Float64()*2-1)*randomization
	return time.Duration(capped * jitter)
}

func pow2(n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= 2
	}
	return result
}
