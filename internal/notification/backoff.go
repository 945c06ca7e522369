package notification

import (
	"time"
)

const (
	backoffBaseDelay  = 5 * time.Minute
	backoffMultiplier = 3
)

// Backoff returns the delay before the k-th retry (1-indexed): 5m, 15m, 45m, ...
// Pure function of the retry count so it can be verified without any I/O.
func Backoff(retryCount int32) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}

	delay := backoffBaseDelay
	for i := int32(1); i < retryCount; i++ {
		delay *= backoffMultiplier
	}

	return delay
}
