package httpapi

import (
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aegishq/controlplane/internal/obs"
)

const globalRateLimitWindow = 15 * time.Minute

// RateLimit enforces the global per-IP budget (1000 / 15 min per IP by
// default), using the same fixed-window INCR+EXPIRE pattern as
// internal/policy/ratelimit.go. A limit of 0 disables the check.
func RateLimit(rdb *redis.Client, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			key := "aegis:ratelimit:ip:" + ip

			pipe := rdb.TxPipeline()
			incr := pipe.Incr(r.Context(), key)
			pipe.ExpireNX(r.Context(), key, globalRateLimitWindow)
			if _, err := pipe.Exec(r.Context()); err != nil {
				// Fail open: a Redis outage must not take down ingestion.
				next.ServeHTTP(w, r)
				return
			}

			if incr.Val() > int64(limit) {
				RespondError(w, obs.New(obs.RateLimit, "httpapi.global_rate_limited", "too many requests from this address"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
