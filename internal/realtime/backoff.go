package realtime

import (
	"math"
	"math/rand"
	"time"
)

const (
	backoffBase = time.Second
	backoffCap  = time.Minute
)

// backoff is the wait before resubscribe attempt n (0 based): 1s, 2s, 4s ...
// capped at a minute, plus up to 250ms of jitter.
func backoff(attempt int) time.Duration {
	delay := time.Duration(float64(backoffBase) * math.Pow(2, float64(attempt)))

	if delay > backoffCap || delay <= 0 {
		delay = backoffCap
	}

	return delay + time.Duration(rand.Intn(250))*time.Millisecond
}
