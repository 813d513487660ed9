package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"buswisely.org/internal/clock"
	"buswisely.org/internal/logging"
	"buswisely.org/internal/metrics"
)

// StoreOptions configures a Store.
type StoreOptions struct {
	// RefreshInterval is how often a remote source is reloaded. Zero disables refresh.
	RefreshInterval time.Duration
	// ReloadTimeout bounds a single reload.
	ReloadTimeout time.Duration
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	Clock         clock.Clock
}

// Store owns the live Index and swaps in a new one when the source changes.
// Readers never block: Current is a single atomic load.
type Store struct {
	source  Source
	opts    StoreOptions
	logger  *slog.Logger
	current atomic.Pointer[Index]
	updated atomic.Int64

	reloadMutex  sync.Mutex
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// NewStore performs the initial load and, for refreshable sources with a
// positive interval, starts the background refresher. A failed initial load
// is returned as a *LoadError.
func NewStore(ctx context.Context, source Source, opts StoreOptions) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.ReloadTimeout <= 0 {
		opts.ReloadTimeout = 5 * time.Minute
	}

	s := &Store{
		source:       source,
		opts:         opts,
		logger:       opts.Logger.With(slog.String("component", "catalog_store")),
		shutdownChan: make(chan struct{}),
	}

	idx, err := Load(ctx, source)
	if err != nil {
		opts.Metrics.ObserveCatalogLoad(metrics.OutcomeError, 0, 0, 0, opts.Clock.Now())
		return nil, err
	}
	s.swap(idx)

	logging.LogOperation(s.logger, "catalog_loaded",
		slog.String("source", source.Name()),
		slog.Int("stops", idx.Stats().Stops),
		slog.Int("trips", idx.Stats().Trips),
		slog.Int("routes", idx.Stats().Routes))

	if source.Refreshable() && opts.RefreshInterval > 0 {
		s.wg.Add(1)
		go s.refreshPeriodically()
	}

	return s, nil
}

// NewStaticStore wraps an already built index. It never refreshes.
func NewStaticStore(idx *Index) *Store {
	s := &Store{
		logger:       slog.Default(),
		opts:         StoreOptions{Clock: clock.RealClock{}},
		shutdownChan: make(chan struct{}),
	}
	s.swap(idx)
	return s
}

// Current returns the live index.
func (s *Store) Current() *Index {
	return s.current.Load()
}

// IsReady reports whether an index has been loaded.
func (s *Store) IsReady() bool {
	return s.current.Load() != nil
}

// LastUpdated is when the live index was swapped in.
func (s *Store) LastUpdated() time.Time {
	nanos := s.updated.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

func (s *Store) swap(idx *Index) {
	now := s.opts.Clock.Now()
	s.current.Store(idx)
	s.updated.Store(now.UnixNano())
	stats := idx.Stats()
	s.opts.Metrics.ObserveCatalogLoad(metrics.OutcomeSuccess, stats.Stops, stats.Trips, stats.Routes, now)
}

// Reload fetches the source again and swaps the result in. On failure the
// previous index stays live. An unchanged remote source is not an error.
func (s *Store) Reload(ctx context.Context) error {
	if s.source == nil {
		return nil
	}

	s.reloadMutex.Lock()
	defer s.reloadMutex.Unlock()

	idx, err := Load(ctx, s.source)
	if errors.Is(err, ErrNotModified) {
		s.opts.Metrics.ObserveCatalogLoad(metrics.OutcomeNotModified, 0, 0, 0, s.opts.Clock.Now())
		logging.LogOperation(s.logger, "catalog_not_modified",
			slog.String("source", s.source.Name()))
		return nil
	}
	if err != nil {
		s.opts.Metrics.ObserveCatalogLoad(metrics.OutcomeError, 0, 0, 0, s.opts.Clock.Now())
		logging.LogError(s.logger, "Error reloading catalog, keeping previous data", err,
			slog.String("source", s.source.Name()))
		return err
	}

	s.swap(idx)
	logging.LogOperation(s.logger, "catalog_reloaded_hot_swap",
		slog.String("source", s.source.Name()),
		slog.Int("stops", idx.Stats().Stops))
	return nil
}

func (s *Store) refreshPeriodically() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.opts.ReloadTimeout)
			_ = s.Reload(ctx)
			cancel()
		case <-s.shutdownChan:
			logging.LogOperation(s.logger, "shutting_down_catalog_refresh")
			return
		}
	}
}

// Shutdown stops the background refresher and waits for it to exit.
// It is safe to call more than once.
func (s *Store) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)
	})
	s.wg.Wait()
}
