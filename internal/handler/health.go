package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a backing store is reachable.
type Pinger func(ctx context.Context) error

const pingTimeout = 2 * time.Second

// HealthHandler reports 200 while ping succeeds and 503 otherwise. A nil
// ping always reports healthy.
func HealthHandler(ping Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
			defer cancel()
			if err := ping(ctx); err != nil {
				RespondJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status":   "unhealthy",
					"database": err.Error(),
				})
				return
			}
		}
		RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}
