// AngelaMos | 2026
// authlimit.go

package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/carterperez-dev/templates/authflow/internal/core"
	"github.com/carterperez-dev/templates/authflow/internal/ratelimit"
)

// AuthRateLimit applies the fixed-window credential quota keyed by client
// IP. A store failure lets the request through.
func AuthRateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := core.ClientIP(r)

			decision, err := limiter.Check(r.Context(), clientID)
			if err != nil {
				slog.WarnContext(r.Context(), "auth rate limiter error, failing open",
					"error", err,
					"client", clientID,
				)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

			if !decision.Allowed {
				seconds := int(decision.RetryAfter.Seconds())
				h.Set("Retry-After", strconv.Itoa(seconds))

				slog.InfoContext(r.Context(), "auth rate limit exceeded",
					"client", clientID,
					"path", r.URL.Path,
					"retry_after", seconds,
				)

				core.JSONError(w, core.RateLimitedError(fmt.Sprintf(
					"Too many attempts. Try again in %d seconds.",
					seconds,
				)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
