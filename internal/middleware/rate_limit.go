package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	sweepInterval = 5 * time.Minute
	idleTTL       = 10 * time.Minute
)

// RateLimiter keeps one token bucket per user
type RateLimiter struct {
	perMinute int
	burst     int
	refill    rate.Limit

	mu      sync.Mutex
	buckets map[uuid.UUID]*bucket
	stop    chan struct{}
	once    sync.Once
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Decision is the outcome of one Take, with everything the response headers need
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// NewRateLimiterWithConfig allows requestsPerMinute sustained with bursts of burstSize.
// Idle buckets are swept in the background until Stop.
func NewRateLimiterWithConfig(requestsPerMinute, burstSize int) *RateLimiter {
	rl := &RateLimiter{
		perMinute: requestsPerMinute,
		burst:     burstSize,
		refill:    rate.Limit(float64(requestsPerMinute) / 60),
		buckets:   make(map[uuid.UUID]*bucket),
		stop:      make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Take spends one token for userID at now
func (r *RateLimiter) Take(userID uuid.UUID, now time.Time) Decision {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[userID]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(r.refill, r.burst)}
		r.buckets[userID] = b
	}
	b.lastSeen = now

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)

	d := Decision{Allowed: allowed, Remaining: int(math.Max(0, math.Floor(tokens)))}
	if !allowed {
		d.RetryAfter = r.timeFor(1 - tokens)
	}
	d.ResetAt = now.Add(r.timeFor(float64(r.burst) - tokens))
	return d
}

// timeFor is how long the bucket needs to refill n tokens
func (r *RateLimiter) timeFor(n float64) time.Duration {
	if n <= 0 || r.refill <= 0 {
		return 0
	}
	return time.Duration(n / float64(r.refill) * float64(time.Second))
}

func (r *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			if n := r.sweep(now); n > 0 {
				log.Debug().Int("removed", n).Msg("Swept idle rate limit buckets")
			}
		case <-r.stop:
			return
		}
	}
}

// sweep drops buckets idle for longer than idleTTL and reports how many went
func (r *RateLimiter) sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for userID, b := range r.buckets {
		if now.Sub(b.lastSeen) > idleTTL {
			delete(r.buckets, userID)
			removed++
		}
	}
	return removed
}

// Stop ends the background sweep. Safe to call more than once.
func (r *RateLimiter) Stop() {
	r.once.Do(func() { close(r.stop) })
}

// RateLimitMiddleware limits each authenticated user. It must run after Authenticate;
// requests without a user pass through.
func RateLimitMiddleware(rl *RateLimiter) echo.MiddlewareFunc {
	limit := strconv.Itoa(rl.perMinute)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := GetUserID(c)
			if userID == uuid.Nil {
				return next(c)
			}

			d := rl.Take(userID, time.Now())
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
			if d.Allowed {
				return next(c)
			}

			retryAfter := int(math.Ceil(d.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			h.Set("Retry-After", strconv.Itoa(retryAfter))

			log.Warn().
				Str("user_id", userID.String()).
				Int("retry_after", retryAfter).
				Msg("Rate limit exceeded")
			return rateLimitError(c, "Too many requests. Please retry after "+strconv.Itoa(retryAfter)+" seconds.")
		}
	}
}
