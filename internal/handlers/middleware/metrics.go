package middleware

import (
	"net/http"
	"time"

	"github.com/nkiryanov/contacts/internal/metrics"
)

// Count requests and observe latency per matched route
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lw := newLogWriter(w)

			next.ServeHTTP(lw, r)

			metrics.RecordHTTPRequest(r.Method, routeOf(r), lw.data.responseStatus, time.Since(start))
		})
	}
}
