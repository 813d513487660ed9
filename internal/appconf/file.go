package appconf

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"buswisely.org/internal/logging"
)

// FileConfig is the on-disk configuration. YAML and JSON are both accepted.
// Absent fields keep their defaults.
type FileConfig struct {
	Port      int      `yaml:"port" validate:"gte=0,lte=65535"`
	Env       string   `yaml:"env" validate:"omitempty,oneof=development test production"`
	ApiKeys   []string `yaml:"api-keys"`
	RateLimit int      `yaml:"rate-limit" validate:"gte=0"`
	Verbose   bool     `yaml:"verbose"`
	LogLevel  string   `yaml:"log-level" validate:"omitempty,oneof=debug info warn warning error"`

	Feed    FileFeedConfig    `yaml:"feed"`
	Catalog FileCatalogConfig `yaml:"catalog"`
	Nearby  FileNearbyConfig  `yaml:"nearby"`
}

type FileFeedConfig struct {
	URL                  string        `yaml:"url" validate:"omitempty,url"`
	APIKey               string        `yaml:"api-key"`
	APIKeyParam          string        `yaml:"api-key-param"`
	AuthHeaderKey        string        `yaml:"auth-header-key"`
	AuthHeaderValue      string        `yaml:"auth-header-value"`
	Timeout              time.Duration `yaml:"timeout" validate:"gte=0"`
	MaxRequestsPerMinute int           `yaml:"max-requests-per-minute" validate:"gte=0"`
	GroupMode            string        `yaml:"group-mode" validate:"omitempty,oneof=route headsign"`
	RouteCap             int           `yaml:"route-cap" validate:"gte=0"`
	HeadsignCap          int           `yaml:"headsign-cap" validate:"gte=0"`
	StaleThreshold       time.Duration `yaml:"stale-threshold" validate:"gte=0"`
}

type FileCatalogConfig struct {
	GTFSPath        string        `yaml:"gtfs-path"`
	StopsPath       string        `yaml:"stops-path"`
	TripsPath       string        `yaml:"trips-path"`
	RoutesPath      string        `yaml:"routes-path"`
	AuthHeaderKey   string        `yaml:"auth-header-key"`
	AuthHeaderValue string        `yaml:"auth-header-value"`
	RefreshInterval time.Duration `yaml:"refresh-interval" validate:"gte=0"`
}

type FileNearbyConfig struct {
	StopLimit      int `yaml:"stop-limit" validate:"gte=0"`
	MaxConcurrency int `yaml:"max-concurrency" validate:"gte=0"`
}

// LoadFromFile reads, decodes and validates a config file. Unknown keys are
// rejected.
func LoadFromFile(path string) (_ *FileConfig, err error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	defer logging.HandleDeferredError(&err, f.Close, nil, "close_config_file")

	var fc FileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validator.New().Struct(fc); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &fc, nil
}

// ToAppConfig overlays the file onto Default.
func (fc *FileConfig) ToAppConfig() Config {
	return fc.ApplyTo(Default())
}

// ApplyTo overlays the non-zero file values onto cfg.
func (fc *FileConfig) ApplyTo(cfg Config) Config {
	setInt(&cfg.Port, fc.Port)
	if fc.Env != "" {
		if env, err := ParseEnvironment(fc.Env); err == nil {
			cfg.Env = env
		}
	}
	if fc.ApiKeys != nil {
		cfg.ApiKeys = append([]string{}, fc.ApiKeys...)
	}
	setInt(&cfg.RateLimit, fc.RateLimit)
	cfg.Verbose = cfg.Verbose || fc.Verbose
	setString(&cfg.LogLevel, fc.LogLevel)

	f := fc.Feed
	setString(&cfg.Feed.URL, f.URL)
	setString(&cfg.Feed.APIKey, f.APIKey)
	setString(&cfg.Feed.APIKeyParam, f.APIKeyParam)
	setString(&cfg.Feed.AuthHeaderKey, f.AuthHeaderKey)
	setString(&cfg.Feed.AuthHeaderValue, f.AuthHeaderValue)
	setDuration(&cfg.Feed.Timeout, f.Timeout)
	setInt(&cfg.Feed.MaxRequestsPerMinute, f.MaxRequestsPerMinute)
	setString(&cfg.Feed.GroupMode, f.GroupMode)
	setInt(&cfg.Feed.RouteCap, f.RouteCap)
	setInt(&cfg.Feed.HeadsignCap, f.HeadsignCap)
	setDuration(&cfg.Feed.StaleThreshold, f.StaleThreshold)

	c := fc.Catalog
	setString(&cfg.Catalog.GTFSPath, c.GTFSPath)
	setString(&cfg.Catalog.StopsPath, c.StopsPath)
	setString(&cfg.Catalog.TripsPath, c.TripsPath)
	setString(&cfg.Catalog.RoutesPath, c.RoutesPath)
	setString(&cfg.Catalog.AuthHeaderKey, c.AuthHeaderKey)
	setString(&cfg.Catalog.AuthHeaderValue, c.AuthHeaderValue)
	setDuration(&cfg.Catalog.RefreshInterval, c.RefreshInterval)

	setInt(&cfg.Nearby.StopLimit, fc.Nearby.StopLimit)
	setInt(&cfg.Nearby.MaxConcurrency, fc.Nearby.MaxConcurrency)

	return cfg
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
