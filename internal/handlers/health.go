package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/nkiryanov/contacts/internal/handlers/render"
	"github.com/nkiryanov/contacts/internal/logger"
)

const healthCheckTimeout = 3 * time.Second

func handleHealthChecker(pinger pinger, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := pinger.Ping(ctx); err != nil {
			l.Error("Health check failed", "error", err)
			render.ServiceError(w, "Error connecting to the database", http.StatusInternalServerError)
			return
		}
		render.Message(w, "Service is healthy")
	})
}
