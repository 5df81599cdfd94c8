package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Proton-105/pricechek-rider/internal/idempotency"
)

// HeaderReplayed marks a response served from the idempotency cache.
const HeaderReplayed = "Idempotent-Replayed"

var errNotCacheable = errors.New("response is not cacheable")

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Idempotency runs the wrapped handler once per key and replays the stored response for
// repeats within ttl. Server errors are passed through without being stored.
func Idempotency(manager idempotency.Manager, ttl time.Duration, keyOf KeyFunc, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		if manager == nil || keyOf == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyOf(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			rec := &responseRecorder{header: make(http.Header)}
			result, err := manager.Execute(r.Context(), key, ttl, func(ctx context.Context) ([]byte, error) {
				next.ServeHTTP(rec, r.WithContext(ctx))
				if rec.status() >= http.StatusInternalServerError {
					return nil, errNotCacheable
				}
				return json.Marshal(cachedResponse{
					Status:      rec.status(),
					ContentType: rec.header.Get("Content-Type"),
					Body:        rec.body.Bytes(),
				})
			})

			switch {
			case errors.Is(err, errNotCacheable):
				rec.flush(w)
				return
			case errors.Is(err, idempotency.ErrRequestInProgress):
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Request already in progress"})
				return
			case err != nil:
				// the store is unavailable; answer without dedupe rather than drop the message
				log.Warn("idempotency check failed", slog.String("key", key), slog.Any("error", err))
				if rec.written() {
					rec.flush(w)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if !result.FromCache {
				rec.flush(w)
				return
			}

			var cached cachedResponse
			if err := json.Unmarshal(result.Response, &cached); err != nil {
				log.Error("failed to decode cached response", slog.String("key", key), slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			log.Info("replayed cached response", slog.String("key", key))
			if cached.ContentType != "" {
				w.Header().Set("Content-Type", cached.ContentType)
			}
			w.Header().Set(HeaderReplayed, "true")
			w.WriteHeader(cached.Status)
			_, _ = w.Write(cached.Body)
		})
	}
}

type responseRecorder struct {
	header http.Header
	code   int
	body   bytes.Buffer
}

func (r *responseRecorder) Header() http.Header { return r.header }

func (r *responseRecorder) WriteHeader(code int) {
	if r.code == 0 {
		r.code = code
	}
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if r.code == 0 {
		r.code = http.StatusOK
	}
	return r.body.Write(p)
}

func (r *responseRecorder) status() int {
	if r.code == 0 {
		return http.StatusOK
	}
	return r.code
}

func (r *responseRecorder) written() bool {
	return r.code != 0
}

func (r *responseRecorder) flush(w http.ResponseWriter) {
	for key, values := range r.header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(r.status())
	_, _ = w.Write(r.body.Bytes())
}
