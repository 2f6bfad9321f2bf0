package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"article-analyzer/internal/cache"
	"article-analyzer/internal/metrics"
)

// Limiter decides whether a client may make another request.
type Limiter interface {
	Allow(ctx context.Context, clientIP string) (bool, error)
}

// RateLimit rejects requests over the limiter's budget with 429. Limiter
// errors let the request through.
func RateLimit(limiter Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			allowed, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				log.Warn().Err(err).Str("client_ip", ip).Msg("Rate limiter unavailable, allowing request")
				allowed = true
			}

			if !allowed {
				metrics.IncRateLimited()
				log.Warn().
					Str("client_ip", ip).
					Str("url", r.URL.String()).
					Msg("Rate limit exceeded")

				w.Header().Set("Retry-After", "60")
				WriteError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", "")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the host part of RemoteAddr, which chi's RealIP has
// already rewritten from forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// MemoryLimiter is a per-process token bucket keyed by client IP.
type MemoryLimiter struct {
	mu                sync.Mutex
	requestsPerMinute int
	burstSize         int
	clients           map[string]*clientLimit
	lastSweep         time.Time
	now               func() time.Time
}

type clientLimit struct {
	tokens     float64
	lastRefill time.Time
}

func NewMemoryLimiter(requestsPerMinute, burstSize int) *MemoryLimiter {
	return &MemoryLimiter{
		requestsPerMinute: requestsPerMinute,
		burstSize:         burstSize,
		clients:           make(map[string]*clientLimit),
		lastSweep:         time.Now(),
		now:               time.Now,
	}
}

func (rl *MemoryLimiter) Allow(_ context.Context, clientIP string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	client, exists := rl.clients[clientIP]
	if !exists {
		client = &clientLimit{
			tokens:     float64(rl.burstSize),
			lastRefill: now,
		}
		rl.clients[clientIP] = client
	}

	elapsed := now.Sub(client.lastRefill)
	client.tokens += elapsed.Seconds() * float64(rl.requestsPerMinute) / 60
	if client.tokens > float64(rl.burstSize) {
		client.tokens = float64(rl.burstSize)
	}
	client.lastRefill = now

	if client.tokens >= 1 {
		client.tokens--
		return true, nil
	}
	return false, nil
}

// sweep drops clients whose bucket has been full for at least a minute.
func (rl *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < time.Minute {
		return
	}
	rl.lastSweep = now

	refill := time.Duration(float64(rl.burstSize)/float64(rl.requestsPerMinute)*float64(time.Minute)) + time.Minute
	for ip, c := range rl.clients {
		if now.Sub(c.lastRefill) > refill {
			delete(rl.clients, ip)
		}
	}
}

type windowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisLimiter counts requests per client in fixed one-minute windows shared
// by every instance using the same Redis.
type RedisLimiter struct {
	counter           windowCounter
	requestsPerMinute int
	now               func() time.Time
}

func NewRedisLimiter(counter *cache.RedisCache, requestsPerMinute int) *RedisLimiter {
	return newRedisLimiter(counter, requestsPerMinute)
}

func newRedisLimiter(counter windowCounter, requestsPerMinute int) *RedisLimiter {
	return &RedisLimiter{
		counter:           counter,
		requestsPerMinute: requestsPerMinute,
		now:               time.Now,
	}
}

func (rl *RedisLimiter) Allow(ctx context.Context, clientIP string) (bool, error) {
	n, err := rl.counter.IncrWindow(ctx, cache.RateLimitKey(clientIP, rl.now()), cache.RateLimitWindow)
	if err != nil {
		return false, err
	}
	return n <= int64(rl.requestsPerMinute), nil
}
