package restapi

import (
	"net/http"
	"time"

	"buswisely.org/internal/app"
	"buswisely.org/internal/clock"
)

type RestAPI struct {
	*app.Application
	rateLimiter *RateLimiter
}

// NewRestAPI creates a new RestAPI instance with initialized rate limiter
func NewRestAPI(app *app.Application) *RestAPI {
	var c clock.Clock = clock.RealClock{}
	if app.Clock != nil {
		c = app.Clock
	}
	return &RestAPI{
		Application: app,
		rateLimiter: NewRateLimiter(app.Config.RateLimit, time.Second, app.Config.ApiKeys, c),
	}
}

// Handler wraps mux with the middleware shared by every route.
func (api *RestAPI) Handler(mux *http.ServeMux) http.Handler {
	var handler http.Handler = mux
	handler = CompressionMiddleware(handler)
	handler = securityHeaders(handler)
	handler = MetricsHandler(api.Metrics)(handler)
	handler = NewRequestLoggingMiddleware(api.Logger)(handler)
	handler = RequestIDMiddleware(handler)
	return handler
}

// Shutdown stops background goroutines owned by the API.
func (api *RestAPI) Shutdown() {
	if api.rateLimiter != nil {
		api.rateLimiter.Stop()
	}
}
