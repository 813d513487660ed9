package restapi

import (
	"log/slog"
	"net/http"
	"time"

	"buswisely.org/internal/logging"
)

// NewRequestLoggingMiddleware logs one line per request and hands handlers a
// request-scoped logger through the context.
func NewRequestLoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := RequestIDFromContext(r.Context())

			reqLogger := logger
			if reqID != "" {
				reqLogger = logger.With(slog.String("request_id", reqID))
			}
			r = r.WithContext(logging.WithLogger(r.Context(), reqLogger))

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			logging.LogHTTPRequest(logger,
				r.Method,
				r.URL.Path,
				rec.status,
				float64(time.Since(start).Nanoseconds())/1e6,
				slog.String("request_id", reqID),
				slog.Int("bytes", rec.bytes),
				slog.String("user_agent", r.Header.Get("User-Agent")),
				slog.String("component", "http_server"))
		})
	}
}
