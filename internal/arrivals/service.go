// Package arrivals answers the two inbound queries: stops near a point and
// arrivals at a stop. Aggregate combines them, fetching and decoding the
// realtime feed once per call no matter how many stops are selected.
package arrivals

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"buswisely.org/internal/appconf"
	"buswisely.org/internal/catalog"
	"buswisely.org/internal/clock"
	"buswisely.org/internal/feed"
	"buswisely.org/internal/logging"
	"buswisely.org/internal/metrics"
	"buswisely.org/internal/nearby"
	"buswisely.org/internal/utils"
)

// CatalogProvider hands out the live catalog index. *catalog.Store satisfies it.
type CatalogProvider interface {
	Current() *catalog.Index
}

// FeedSource returns the raw realtime feed. *feed.Fetcher satisfies it.
type FeedSource interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Config holds the tunables of the service.
type Config struct {
	// StopLimit is the number of unique stops returned for a point.
	StopLimit int
	// Extract carries the default grouping mode and the per-mode caps.
	Extract feed.ExtractOptions
	// MaxConcurrency bounds per-stop extraction workers.
	MaxConcurrency int
	// StaleThreshold marks aggregations built from an old feed.
	StaleThreshold time.Duration
}

// Aggregation is the result of Aggregate. Stops keeps rank order, ByStop has
// an entry for every stop in Stops.
type Aggregation struct {
	Stops       []catalog.Stop
	ByStop      map[string]feed.Arrivals
	Mode        feed.GroupMode
	GeneratedAt time.Time
	Stale       bool
}

// Service is safe for concurrent use.
type Service struct {
	catalogs CatalogProvider
	source   FeedSource
	cfg      Config
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics
	stale    *feed.StaleDetector

	fetches singleflight.Group
}

// NewService wires the service. Zero config values fall back to defaults.
func NewService(cfg Config, catalogs CatalogProvider, source FeedSource, clk clock.Clock, logger *slog.Logger, m *metrics.Metrics) *Service {
	if cfg.StopLimit <= 0 {
		cfg.StopLimit = appconf.DefaultStopLimit
	}
	if cfg.Extract.Mode == "" {
		cfg.Extract.Mode = feed.GroupMode(appconf.DefaultGroupMode)
	}
	if cfg.Extract.RouteCap <= 0 {
		cfg.Extract.RouteCap = appconf.DefaultRouteArrivalCap
	}
	if cfg.Extract.HeadsignCap <= 0 {
		cfg.Extract.HeadsignCap = appconf.DefaultHeadsignArrivalCap
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = appconf.DefaultMaxConcurrency
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	stale := feed.NewStaleDetector()
	if cfg.StaleThreshold > 0 {
		stale.WithThreshold(cfg.StaleThreshold)
	}

	return &Service{
		catalogs: catalogs,
		source:   source,
		cfg:      cfg,
		clock:    clk,
		logger:   logger.With(slog.String("component", "arrivals")),
		metrics:  m,
		stale:    stale,
	}
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.cfg
}

func (s *Service) index() (*catalog.Index, error) {
	idx := s.catalogs.Current()
	if idx == nil {
		return nil, &catalog.LoadError{Source: "catalog", Err: errors.New("catalog not loaded")}
	}
	return idx, nil
}

// NearbyStops returns up to StopLimit unique stops nearest to (lat, lon).
func (s *Service) NearbyStops(ctx context.Context, lat, lon float64) ([]catalog.Stop, error) {
	point := utils.Point{Lat: lat, Lon: lon}
	if err := validatePoint(point); err != nil {
		return nil, err
	}
	idx, err := s.index()
	if err != nil {
		return nil, err
	}
	return s.nearest(idx, point), nil
}

func (s *Service) nearest(idx *catalog.Index, point utils.Point) []catalog.Stop {
	return nearby.Nearest(point, idx.AllStops(), s.cfg.StopLimit)
}

// ArrivalsForStop fetches the feed and extracts the arrivals at stopID.
// An empty mode uses the configured default.
func (s *Service) ArrivalsForStop(ctx context.Context, stopID string, mode feed.GroupMode) (feed.Arrivals, error) {
	if err := ValidateStopID(stopID); err != nil {
		return nil, err
	}
	idx, err := s.index()
	if err != nil {
		return nil, err
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	opts := s.cfg.Extract.WithMode(mode)
	return feed.Extract(snap, stopID, idx, opts, s.clock.NowUnixMilli()), nil
}

// Aggregate ranks and dedupes stops around (lat, lon), then extracts the
// arrivals for each of them from a single feed snapshot. One catalog index
// serves both steps, so a concurrent reload cannot mix stops from one index
// with trip labels from another. A failed fetch or decode fails the whole call.
func (s *Service) Aggregate(ctx context.Context, lat, lon float64, mode feed.GroupMode) (*Aggregation, error) {
	point := utils.Point{Lat: lat, Lon: lon}
	if err := validatePoint(point); err != nil {
		return nil, err
	}
	idx, err := s.index()
	if err != nil {
		return nil, err
	}
	stops := s.nearest(idx, point)

	opts := s.cfg.Extract.WithMode(mode)
	agg := &Aggregation{
		Stops:       stops,
		ByStop:      make(map[string]feed.Arrivals, len(stops)),
		Mode:        opts.Mode,
		GeneratedAt: s.clock.Now(),
	}
	if len(stops) == 0 {
		return agg, nil
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	agg.Stale = s.stale.Check(snap, agg.GeneratedAt)

	nowMs := s.clock.NowUnixMilli()
	results := make([]feed.Arrivals, len(stops))

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrency)
	for i, stop := range stops {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = feed.Extract(snap, stop.ID, idx, opts, nowMs)
			return nil
		})
	}
	_ = g.Wait()

	for i, stop := range stops {
		arrivals := results[i]
		if arrivals == nil {
			arrivals = feed.Arrivals{}
		}
		agg.ByStop[stop.ID] = arrivals
	}

	logging.LogOperation(s.logger, "aggregation_completed",
		slog.Int("stops", len(stops)),
		slog.String("mode", string(opts.Mode)),
		slog.Bool("stale", agg.Stale))

	return agg, nil
}

// Snapshot fetches and decodes the feed. Concurrent callers share one
// upstream request; the shared fetch is detached from any single caller's
// cancellation and bounded by the fetcher's own timeout.
func (s *Service) Snapshot(ctx context.Context) (*feed.Snapshot, error) {
	ch := s.fetches.DoChan("feed", func() (any, error) {
		raw, err := s.source.Fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		snap, err := feed.Decode(raw)
		s.metrics.ObserveFeedDecode(snapLen(snap), err)
		if err != nil {
			logging.LogError(s.logger, "Realtime feed could not be decoded", err,
				slog.String("component", "feed_decoder"),
				slog.Int("bytes", len(raw)))
			return nil, err
		}
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return nil, &feed.UpstreamError{Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*feed.Snapshot), nil
	}
}

func snapLen(snap *feed.Snapshot) int {
	if snap == nil {
		return 0
	}
	return snap.Len()
}
