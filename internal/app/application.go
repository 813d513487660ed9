package app

import (
	"log/slog"

	"buswisely.org/internal/appconf"
	"buswisely.org/internal/arrivals"
	"buswisely.org/internal/catalog"
	"buswisely.org/internal/clock"
	"buswisely.org/internal/feed"
	"buswisely.org/internal/metrics"
)

// Application holds the dependencies for our HTTP handlers, helpers,
// and middleware.
type Application struct {
	Config   appconf.Config
	Logger   *slog.Logger
	Catalog  *catalog.Store
	Fetcher  *feed.Fetcher
	Arrivals *arrivals.Service
	Clock    clock.Clock
	Metrics  *metrics.Metrics
}
