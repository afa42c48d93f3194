package realtime

import "time"

const (
	maxConnectAttempts = 4
	initialBackoff     = 400 * time.Millisecond
)

// nextDelay returns the wait before retrying after the given failed attempt
// (1-based): 400ms, 800ms, 1600ms, ...
func nextDelay(attempt int) time.Duration {
	d := initialBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}
