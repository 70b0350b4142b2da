package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httprate"

	"github.com/collabcore/realtime-platform/internal/ratelimit"
)

// KeyFunc extracts the rate-limit identity from a request.
type KeyFunc func(r *http.Request) string

// ForwardedIPKey is the default rate-limit key: the first hop of
// X-Forwarded-For, falling back to the peer address.
func ForwardedIPKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return "ip:" + strings.TrimSpace(fwd)
	}
	return "ip:" + r.RemoteAddr
}

// IdentityKey keys the limit by authenticated user, falling back to
// company, then to the forwarded IP.
func IdentityKey(r *http.Request) string {
	if userID := GetUserID(r.Context()); userID != "" {
		return "user:" + userID
	}
	if companyID := GetCompanyID(r.Context()); companyID != "" {
		return "company:" + companyID
	}
	return ForwardedIPKey(r)
}

// RateLimit gates requests through the fixed-window limiter and sets
// X-RateLimit-* headers on every response. Exceeding the quota yields
// 429 with Retry-After.
func RateLimit(limiter *ratelimit.Limiter, limit int, window time.Duration, keyFn KeyFunc) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = ForwardedIPKey
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			allowed := limiter.Allow(key, limit, window)

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", limiter.Remaining(key, limit)))
			if reset := limiter.Reset(key); !reset.IsZero() {
				w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset.Unix()))
			}

			if !allowed {
				retryAfter := int(window.Seconds())
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"error":"rate limit exceeded","retry_after":%d}`, retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GlobalIPRateLimit is the coarse outer limit applied before routing,
// keyed by peer IP. The fixed-window limiter above handles per-identity
// quotas inside the API group.
func GlobalIPRateLimit(requestLimit int, windowLength time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		windowLength,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded","retry_after":60}`))
		}),
	)
}
