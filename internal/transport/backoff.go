package transport

import "time"

// Backoff is a quadratic reconnect policy: attempt n waits n² units, capped
// at MaxDelay. Attempts are counted from 1 and reset after every successful
// connection.
type Backoff struct {
	MaxAttempts int
	MaxDelay    time.Duration
	Unit        time.Duration
}

// DefaultBackoff waits 1s, 4s, 9s, ... up to 30s, for at most 10 attempts.
func DefaultBackoff() Backoff {
	return Backoff{MaxAttempts: 10, MaxDelay: 30 * time.Second, Unit: time.Second}
}

// Delay returns the wait before the given attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	unit := b.Unit
	if unit <= 0 {
		unit = time.Second
	}
	// compare before multiplying so large attempts cannot overflow
	if b.MaxDelay > 0 && int64(attempt) > int64(b.MaxDelay/unit) {
		return b.MaxDelay
	}
	d := time.Duration(attempt) * time.Duration(attempt) * unit
	if b.MaxDelay > 0 && d > b.MaxDelay {
		return b.MaxDelay
	}
	return d
}

// Exhausted reports whether attempt is past the limit. A zero MaxAttempts
// never gives up.
func (b Backoff) Exhausted(attempt int) bool {
	return b.MaxAttempts > 0 && attempt > b.MaxAttempts
}
