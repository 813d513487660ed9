package restapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"buswisely.org/internal/app"
)

// apiEndpoint is one guarded JSON endpoint.
type apiEndpoint struct {
	pattern string
	cache   cachePolicy
	handler func(*RestAPI, http.ResponseWriter, *http.Request)
}

// apiEndpoints lists every endpoint that needs an API key, counts against the
// rate limit and carries a cache policy.
var apiEndpoints = []apiEndpoint{
	{"GET /api/stops", catalogCachePolicy, (*RestAPI).stopsHandler},
	{"GET /api/arrivals", realtimeCachePolicy, (*RestAPI).arrivalsHandler},
	{"GET /api/nearby-arrivals", realtimeCachePolicy, (*RestAPI).nearbyArrivalsHandler},
	{"GET /api/config", catalogCachePolicy, (*RestAPI).configHandler},
}

// SetRoutes registers the API endpoints on mux. Health and metrics stay open
// so health checks and scrapers need no key.
func (api *RestAPI) SetRoutes(mux *http.ServeMux) {
	for _, ep := range apiEndpoints {
		mux.Handle(ep.pattern, api.guard(ep))
	}

	mux.HandleFunc("GET /healthz", api.healthHandler)
	if api.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(api.Metrics.Registry, promhttp.HandlerOpts{}))
	}
}

// guard applies key validation, then rate limiting, then the cache policy.
func (api *RestAPI) guard(ep apiEndpoint) http.Handler {
	handler := func(w http.ResponseWriter, r *http.Request) { ep.handler(api, w, r) }

	var h http.Handler = withCachePolicy(ep.cache, http.HandlerFunc(handler))
	h = api.rateLimiter.Middleware(h)
	return api.requireAPIKey(h)
}

func (api *RestAPI) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := api.CheckAPIKey(r); err != nil {
			reason := "unknown"
			if errors.Is(err, app.ErrAPIKeyMissing) {
				reason = "missing"
			}
			api.Logger.Debug("api key rejected",
				slog.String("reason", reason),
				slog.String("request_id", RequestIDFromContext(r.Context())))
			api.invalidAPIKeyResponse(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
