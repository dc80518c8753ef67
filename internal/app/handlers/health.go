package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler обрабатывает запрос GET /health
func HealthHandler(log *slog.Logger, db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.HealthHandler"
		logger := log.With(slog.String("op", op))

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				logger.Error("database ping failed", slog.Any("error", err))
				writeError(w, logger, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		writeJSON(w, logger, http.StatusOK, map[string]string{"message": "Connection success"})
	}
}
