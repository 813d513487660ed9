package appconf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return &ConfigError{Field: "dotenv", Err: err}
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays environment variables onto cfg. Only set variables are
// applied; malformed values are a ConfigError.
func ApplyEnv(cfg Config, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(APIKeyEnvVar); ok {
		cfg.Feed.APIKey = v
	}
	if v, ok := get("BUSWISELY_FEED_URL"); ok {
		cfg.Feed.URL = v
	}
	if v, ok := get("BUSWISELY_GROUP_MODE"); ok {
		cfg.Feed.GroupMode = strings.ToLower(v)
	}
	if v, ok := get("BUSWISELY_GTFS_PATH"); ok {
		cfg.Catalog.GTFSPath = v
	}
	if v, ok := get("BUSWISELY_ENV"); ok {
		env, err := ParseEnvironment(v)
		if err != nil {
			return cfg, &ConfigError{Field: "BUSWISELY_ENV", Err: err}
		}
		cfg.Env = env
	}
	if v, ok := get("BUSWISELY_API_KEYS"); ok {
		cfg.ApiKeys = nil
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				cfg.ApiKeys = append(cfg.ApiKeys, k)
			}
		}
	}
	if v, ok := get("BUSWISELY_LOG_LEVEL"); ok {
		cfg.LogLevel = strings.ToLower(v)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"PORT", &cfg.Port},
		{"BUSWISELY_RATE_LIMIT", &cfg.RateLimit},
		{"BUSWISELY_STOP_LIMIT", &cfg.Nearby.StopLimit},
		{"BUSWISELY_FEED_MAX_RPM", &cfg.Feed.MaxRequestsPerMinute},
	}
	for _, entry := range ints {
		v, ok := get(entry.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, &ConfigError{Field: entry.key, Err: fmt.Errorf("not an integer: %q", v)}
		}
		*entry.dst = n
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"BUSWISELY_FEED_TIMEOUT", &cfg.Feed.Timeout},
		{"BUSWISELY_CATALOG_REFRESH", &cfg.Catalog.RefreshInterval},
	}
	for _, entry := range durations {
		v, ok := get(entry.key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, &ConfigError{Field: entry.key, Err: err}
		}
		*entry.dst = d
	}

	return cfg, nil
}
