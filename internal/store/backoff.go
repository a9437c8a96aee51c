package store

import "time"

// NextBackoff returns the delay before a transiently-failed task with the
// given (post-increment) retryCount should be retried: base * 2^(n-1),
// capped. retryCount must be ≥ 1.
func NextBackoff(retryCount int, base, cap_ time.Duration) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	d := base
	for i := 1; i < retryCount; i++ {
		d *= 2
		if d >= cap_ {
			return cap_
		}
	}
	if d > cap_ {
		return cap_
	}
	return d
}
