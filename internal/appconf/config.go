// Package appconf holds process configuration: defaults, the optional config
// file, environment overrides and validation.
package appconf

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Environment string

const (
	Development Environment = "development"
	Test        Environment = "test"
	Production  Environment = "production"
)

// ParseEnvironment accepts the three environment names, case-insensitively.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(strings.ToLower(strings.TrimSpace(s))) {
	case Development:
		return Development, nil
	case Test:
		return Test, nil
	case Production:
		return Production, nil
	default:
		return "", fmt.Errorf("unknown environment %q", s)
	}
}

const (
	DefaultPort      = 4000
	DefaultRateLimit = 100

	DefaultFeedURL         = "https://gtfsapi.translink.ca/v3/gtfsrealtime"
	DefaultFeedAPIKeyParam = "apikey"
	DefaultFeedTimeout     = 10 * time.Second
	DefaultGroupMode       = "route"

	DefaultStopLimit          = 15
	DefaultRouteArrivalCap    = 3
	DefaultHeadsignArrivalCap = 100
	DefaultMaxConcurrency     = 8

	DefaultStopsPath  = "data/stops.json"
	DefaultTripsPath  = "data/trips.json"
	DefaultRoutesPath = "data/routes.json"

	// APIKeyEnvVar carries the upstream feed credential.
	APIKeyEnvVar = "TRANSLINK_API_KEY"
)

type FeedConfig struct {
	URL             string        `validate:"required,url"`
	APIKey          string        `validate:"-"`
	APIKeyParam     string        `validate:"required"`
	AuthHeaderKey   string        `validate:"required_with=AuthHeaderValue"`
	AuthHeaderValue string        `validate:"-"`
	Timeout         time.Duration `validate:"gt=0"`
	// MaxRequestsPerMinute throttles upstream calls; zero means unlimited.
	MaxRequestsPerMinute int           `validate:"gte=0"`
	GroupMode            string        `validate:"oneof=route headsign"`
	RouteCap             int           `validate:"gt=0"`
	HeadsignCap          int           `validate:"gt=0"`
	StaleThreshold       time.Duration `validate:"gte=0"`
}

type CatalogConfig struct {
	// GTFSPath is a GTFS static zip, local or http(s). It takes precedence
	// over the three JSON paths.
	GTFSPath        string
	StopsPath       string
	TripsPath       string
	RoutesPath      string
	AuthHeaderKey   string        `validate:"required_with=AuthHeaderValue"`
	AuthHeaderValue string        `validate:"-"`
	RefreshInterval time.Duration `validate:"gte=0"`
}

type NearbyConfig struct {
	StopLimit      int `validate:"gt=0"`
	MaxConcurrency int `validate:"gt=0"`
}

type Config struct {
	Port      int         `validate:"gte=0,lte=65535"`
	Env       Environment `validate:"oneof=development test production"`
	ApiKeys   []string    `validate:"dive,required"`
	RateLimit int         `validate:"gte=0"`
	Verbose   bool
	LogLevel  string `validate:"omitempty,oneof=debug info warn warning error"`

	Feed    FeedConfig
	Catalog CatalogConfig
	Nearby  NearbyConfig
}

// Default is the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Port:      DefaultPort,
		Env:       Development,
		ApiKeys:   []string{},
		RateLimit: DefaultRateLimit,
		LogLevel:  "info",
		Feed: FeedConfig{
			URL:         DefaultFeedURL,
			APIKeyParam: DefaultFeedAPIKeyParam,
			Timeout:     DefaultFeedTimeout,
			GroupMode:   DefaultGroupMode,
			RouteCap:    DefaultRouteArrivalCap,
			HeadsignCap: DefaultHeadsignArrivalCap,
		},
		Catalog: CatalogConfig{
			StopsPath:  DefaultStopsPath,
			TripsPath:  DefaultTripsPath,
			RoutesPath: DefaultRoutesPath,
		},
		Nearby: NearbyConfig{
			StopLimit:      DefaultStopLimit,
			MaxConcurrency: DefaultMaxConcurrency,
		},
	}
}

// ConfigError is a fatal startup configuration problem.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %v", e.Err)
	}
	return fmt.Sprintf("invalid configuration: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the required upstream credential.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ConfigError{Field: fe.Namespace(), Err: fmt.Errorf("failed %q constraint", fe.Tag())}
		}
		return &ConfigError{Err: err}
	}

	if strings.TrimSpace(c.Feed.APIKey) == "" {
		return &ConfigError{Field: "Config.Feed.APIKey", Err: fmt.Errorf("upstream API key is required (set %s)", APIKeyEnvVar)}
	}

	if c.Catalog.GTFSPath == "" && (c.Catalog.StopsPath == "" || c.Catalog.TripsPath == "" || c.Catalog.RoutesPath == "") {
		return &ConfigError{Field: "Config.Catalog", Err: errors.New("either a GTFS zip or all three JSON paths are required")}
	}

	return nil
}
