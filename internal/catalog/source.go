package catalog

import (
	"context"
	"errors"
	"log/slog"
)

// Source produces a fresh Index. Load returns ErrNotModified when a remote
// source reports that nothing changed since the previous successful load.
type Source interface {
	Name() string
	Load(ctx context.Context) (*Index, error)
	// Refreshable reports whether periodic reloads can observe new data.
	Refreshable() bool
}

// SourceOptions configures how remote catalog files are fetched.
type SourceOptions struct {
	AuthHeaderKey   string
	AuthHeaderValue string
	Logger          *slog.Logger
}

// SourceConfig selects a catalog source. A GTFS archive takes precedence over
// the three JSON record files when both are set.
type SourceConfig struct {
	GTFSPath   string
	StopsPath  string
	TripsPath  string
	RoutesPath string
	SourceOptions
}

// NewSource builds the Source described by cfg.
func NewSource(cfg SourceConfig) (Source, error) {
	if cfg.GTFSPath != "" {
		return NewGTFSZip(cfg.GTFSPath, cfg.SourceOptions), nil
	}
	if cfg.StopsPath == "" || cfg.TripsPath == "" || cfg.RoutesPath == "" {
		return nil, &LoadError{
			Source: "config",
			Err:    errors.New("either a GTFS archive or all of the stops, trips and routes files must be configured"),
		}
	}
	return NewJSONFiles(cfg.StopsPath, cfg.TripsPath, cfg.RoutesPath, cfg.SourceOptions), nil
}

// Load reads src once and returns its index.
func Load(ctx context.Context, src Source) (*Index, error) {
	idx, err := src.Load(ctx)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return nil, err
		}
		return nil, &LoadError{Source: src.Name(), Err: err}
	}
	return idx, nil
}
