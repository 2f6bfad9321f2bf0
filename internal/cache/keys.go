package cache

import (
	"fmt"
	"time"
)

const RateLimitWindow = time.Minute

// RateLimitKey generates the Redis key for a client's counter in the window containing now.
func RateLimitKey(clientIP string, now time.Time) string {
	return fmt.Sprintf("analyzer:ratelimit:ip:%s:%d", clientIP, now.Unix()/int64(RateLimitWindow/time.Second))
}
