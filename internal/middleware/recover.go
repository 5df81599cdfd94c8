package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	apperrors "github.com/Proton-105/pricechek-rider/internal/errors"
)

// Recover converts a handler panic into a 500 JSON response and reports it through errs.
func Recover(errs *apperrors.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				if errs != nil {
					errs.Handle(r.Context(), fmt.Errorf("panic serving %s %s: %v", r.Method, r.URL.Path, rec))
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Internal server error"})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
