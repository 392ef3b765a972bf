package middleware

import (
	"net"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/talkwire/talkwire/internal/metrics"
	"github.com/talkwire/talkwire/internal/store"
)

// Requests allowed per caller per minute.
const requestsPerMinute = 120

// RateLimiter enforces a per-IP request budget backed by Redis. When Redis
// is unavailable the limiter fails open.
type RateLimiter struct {
	redis  *store.RedisStore
	logger zerolog.Logger
}

// NewRateLimiter creates a rate limiter. redis may be nil, disabling limits.
func NewRateLimiter(redis *store.RedisStore, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{redis: redis, logger: logger}
}

// Middleware applies the rate limit to each request.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.redis == nil {
			next.ServeHTTP(w, r)
			return
		}

		caller := callerIP(r)

		allowed, err := l.redis.CheckRateLimit(r.Context(), caller, requestsPerMinute)
		if err != nil {
			// Fail open: a Redis outage should not take the API down.
			l.logger.Warn().Err(err).Msg("rate limit check failed")
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			metrics.RateLimitHits.WithLabelValues(r.URL.Path).Inc()
			jsonError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		if err := l.redis.IncrementRateLimit(r.Context(), caller); err != nil {
			l.logger.Warn().Err(err).Msg("rate limit increment failed")
		}

		next.ServeHTTP(w, r)
	})
}

// callerIP extracts the remote address without the port.
func callerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
