package app

import (
	"context"
	"fmt"
	"log/slog"

	"buswisely.org/internal/appconf"
	"buswisely.org/internal/arrivals"
	"buswisely.org/internal/catalog"
	"buswisely.org/internal/clock"
	"buswisely.org/internal/feed"
	"buswisely.org/internal/metrics"
)

// Deps are the process-wide collaborators Build does not create itself.
// Nil fields get defaults.
type Deps struct {
	Logger  *slog.Logger
	Clock   clock.Clock
	Metrics *metrics.Metrics
}

// Build loads the stop catalog and wires the fetcher and arrivals service.
// cfg must already be validated. A catalog that cannot be loaded is a
// *catalog.LoadError.
func Build(ctx context.Context, cfg appconf.Config, deps Deps) (*Application, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = clock.RealClock{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewWithLogger(deps.Logger)
	}

	source, err := catalog.NewSource(catalog.SourceConfig{
		GTFSPath:   cfg.Catalog.GTFSPath,
		StopsPath:  cfg.Catalog.StopsPath,
		TripsPath:  cfg.Catalog.TripsPath,
		RoutesPath: cfg.Catalog.RoutesPath,
		SourceOptions: catalog.SourceOptions{
			AuthHeaderKey:   cfg.Catalog.AuthHeaderKey,
			AuthHeaderValue: cfg.Catalog.AuthHeaderValue,
			Logger:          deps.Logger,
		},
	})
	if err != nil {
		return nil, err
	}

	store, err := catalog.NewStore(ctx, source, catalog.StoreOptions{
		RefreshInterval: cfg.Catalog.RefreshInterval,
		Logger:          deps.Logger,
		Metrics:         deps.Metrics,
		Clock:           deps.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load stop catalog: %w", err)
	}

	fetcher, err := feed.NewFetcher(feed.FetcherConfig{
		URL:                  cfg.Feed.URL,
		APIKey:               cfg.Feed.APIKey,
		APIKeyParam:          cfg.Feed.APIKeyParam,
		AuthHeaderKey:        cfg.Feed.AuthHeaderKey,
		AuthHeaderValue:      cfg.Feed.AuthHeaderValue,
		Timeout:              cfg.Feed.Timeout,
		MaxRequestsPerMinute: cfg.Feed.MaxRequestsPerMinute,
	}, deps.Logger, deps.Metrics)
	if err != nil {
		store.Shutdown()
		return nil, &appconf.ConfigError{Field: "Config.Feed.URL", Err: err}
	}

	mode, err := feed.ParseGroupMode(cfg.Feed.GroupMode)
	if err != nil {
		store.Shutdown()
		return nil, &appconf.ConfigError{Field: "Config.Feed.GroupMode", Err: err}
	}

	service := arrivals.NewService(arrivals.Config{
		StopLimit: cfg.Nearby.StopLimit,
		Extract: feed.ExtractOptions{
			Mode:        mode,
			RouteCap:    cfg.Feed.RouteCap,
			HeadsignCap: cfg.Feed.HeadsignCap,
		},
		MaxConcurrency: cfg.Nearby.MaxConcurrency,
		StaleThreshold: cfg.Feed.StaleThreshold,
	}, store, fetcher, deps.Clock, deps.Logger, deps.Metrics)

	return &Application{
		Config:   cfg,
		Logger:   deps.Logger,
		Catalog:  store,
		Fetcher:  fetcher,
		Arrivals: service,
		Clock:    deps.Clock,
		Metrics:  deps.Metrics,
	}, nil
}

// Shutdown stops background work owned by the application.
func (app *Application) Shutdown() {
	if app.Catalog != nil {
		app.Catalog.Shutdown()
	}
}
