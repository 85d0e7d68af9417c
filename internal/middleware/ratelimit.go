// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/templates/authflow/internal/core"
)

const (
	globalKeyPrefix = "authflow:gcra:"

	fallbackSweepEvery = 5 * time.Minute
	fallbackIdleTTL    = 10 * time.Minute
)

// RateLimitConfig configures the router-wide GCRA limiter. It sits in front
// of every route and is independent of the credential window enforced by
// AuthRateLimit.
type RateLimitConfig struct {
	Limit      redis_rate.Limit
	KeyFunc    func(*http.Request) string
	FailOpen   bool
	BypassFunc func(*http.Request) bool
	Logger     *slog.Logger
}

// RateLimiter asks Redis first. When Redis cannot answer, decisions come
// from a per-process token bucket so a Redis outage neither blocks traffic
// nor disables limiting.
type RateLimiter struct {
	redis    *redis_rate.Limiter
	fallback *bucketLimiter
	cfg      RateLimitConfig
}

func NewRateLimiter(rdb redis.UniversalClient, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &RateLimiter{
		redis:    redis_rate.NewLimiter(rdb),
		fallback: newBucketLimiter(cfg.Limit),
		cfg:      cfg,
	}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.cfg.BypassFunc != nil && rl.cfg.BypassFunc(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := rl.cfg.KeyFunc(r)
		res, err := rl.decide(r.Context(), key)
		if err != nil {
			if rl.cfg.FailOpen {
				rl.cfg.Logger.Warn("global rate limit unavailable, allowing request",
					"error", err,
					"key", key,
				)
				next.ServeHTTP(w, r)
				return
			}
			core.JSONError(w, core.NewAppError(
				err,
				"service unavailable",
				http.StatusServiceUnavailable,
				"SERVICE_UNAVAILABLE",
			))
			return
		}

		writePolicyHeaders(w, rl.cfg.Limit, res)

		if res.Allowed == 0 {
			rejectGlobal(w, res.RetryAfter)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) decide(
	ctx context.Context,
	key string,
) (*redis_rate.Result, error) {
	res, err := rl.redis.Allow(ctx, key, rl.cfg.Limit)
	if err == nil {
		return res, nil
	}

	rl.cfg.Logger.Debug("redis limiter failed, using local bucket",
		"error", err,
		"key", key,
	)
	return rl.fallback.allow(key, time.Now()), nil
}

func KeyByIP(r *http.Request) string {
	return globalKeyPrefix + core.ClientIP(r)
}

// BypassProbes skips health probes so orchestrators are never throttled.
func BypassProbes(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/livez", "/readyz":
		return true
	}
	return false
}

func writePolicyHeaders(
	w http.ResponseWriter,
	limit redis_rate.Limit,
	res *redis_rate.Result,
) {
	h := w.Header()
	h.Set("RateLimit-Policy",
		fmt.Sprintf("%d;w=%d", limit.Rate, int(limit.Period.Seconds())))
	h.Set("RateLimit",
		fmt.Sprintf("%d;t=%d", res.Remaining, ceilSeconds(res.ResetAfter)))
}

func rejectGlobal(w http.ResponseWriter, retryAfter time.Duration) {
	secs := max(ceilSeconds(retryAfter), 1)

	w.Header().Set("Retry-After", strconv.Itoa(secs))
	core.JSONError(w, core.RateLimitedError(
		fmt.Sprintf("too many requests, retry after %d seconds", secs),
	))
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// bucketLimiter keeps one x/time/rate bucket per key and drops buckets that
// have been idle for fallbackIdleTTL. Sweeps piggyback on allow.
type bucketLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	perSecond rate.Limit
	burst     int
	limit     redis_rate.Limit
	lastSweep time.Time
}

func newBucketLimiter(limit redis_rate.Limit) *bucketLimiter {
	perSecond := rate.Inf
	if limit.Period > 0 && limit.Rate > 0 {
		perSecond = rate.Limit(float64(limit.Rate) / limit.Period.Seconds())
	}

	return &bucketLimiter{
		buckets:   make(map[string]*bucket),
		perSecond: perSecond,
		burst:     max(limit.Burst, 1),
		limit:     limit,
	}
}

func (b *bucketLimiter) allow(key string, now time.Time) *redis_rate.Result {
	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Sub(b.lastSweep) >= fallbackSweepEvery {
		b.sweep(now)
	}

	bk, ok := b.buckets[key]
	if !ok {
		bk = &bucket{limiter: rate.NewLimiter(b.perSecond, b.burst)}
		b.buckets[key] = bk
	}
	bk.lastSeen = now

	res := &redis_rate.Result{
		Limit:      b.limit,
		RetryAfter: -1,
		ResetAfter: b.refillInterval(),
	}

	if bk.limiter.AllowN(now, 1) {
		res.Allowed = 1
	} else {
		res.RetryAfter = b.refillInterval()
	}
	res.Remaining = max(int(bk.limiter.TokensAt(now)), 0)

	return res
}

func (b *bucketLimiter) sweep(now time.Time) {
	for key, bk := range b.buckets {
		if now.Sub(bk.lastSeen) > fallbackIdleTTL {
			delete(b.buckets, key)
		}
	}
	b.lastSweep = now
}

func (b *bucketLimiter) refillInterval() time.Duration {
	if b.perSecond == rate.Inf || b.perSecond <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(b.perSecond))
}

// LimitFromWindow spreads requests evenly over window with the given burst.
func LimitFromWindow(requests int, window time.Duration, burst int) redis_rate.Limit {
	if window <= 0 {
		window = time.Minute
	}
	if burst <= 0 {
		burst = requests
	}
	return redis_rate.Limit{
		Rate:   requests,
		Burst:  burst,
		Period: window,
	}
}
