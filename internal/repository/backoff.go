package repository

import (
	"math/rand/v2"
	"time"
)

// Backoff returns an exponential delay with full jitter for the given 1-based attempt:
// a uniform duration in [0, min(max, base*2^(attempt-1))].
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	ceiling := base
	for i := 1; i < attempt && ceiling < max; i++ {
		ceiling *= 2
	}
	if ceiling > max {
		ceiling = max
	}
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(ceiling) + 1))
}
