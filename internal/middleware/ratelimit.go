package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Proton-105/pricechek-rider/internal/ratelimit"
	"github.com/Proton-105/pricechek-rider/pkg/logger"
)

// KeyFunc extracts a request attribute such as the caller phone or a message id.
// An empty result skips the middleware for that request.
type KeyFunc func(r *http.Request) string

// RateLimit applies guard to the phone extracted by phoneOf. Requests over the limit
// are answered by limited; limiter failures let the request through.
func RateLimit(guard *ratelimit.Guard, phoneOf KeyFunc, limited http.HandlerFunc, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		if guard == nil || phoneOf == nil || limited == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			phone := phoneOf(r)
			if phone == "" {
				next.ServeHTTP(w, r)
				return
			}

			result, err := guard.Allow(r.Context(), phone)
			if err != nil && !errors.Is(err, ratelimit.ErrLimitExceeded) {
				log.Warn("rate limiter error", slog.String("phone", logger.MaskPhone(phone)), slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			if err == nil && result != nil && result.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			log.Warn("rate limit exceeded", slog.String("phone", logger.MaskPhone(phone)), slog.String("path", r.URL.Path))
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter(time.Now())))
			limited(w, r)
		})
	}
}
