package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"buswisely.org/internal/appconf"
)

func main() {
	cfg, err := loadConfig(os.Args[1:], os.Stderr, os.LookupEnv)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	coreApp, err := BuildApplication(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	srv, api := CreateServer(coreApp, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx, srv, coreApp, api); err != nil {
		coreApp.Logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration with the precedence
// defaults < config file < environment (.env included) < flags, then
// validates it.
func loadConfig(args []string, output io.Writer, lookup appconf.LookupFunc) (appconf.Config, error) {
	fs := flag.NewFlagSet("buswisely", flag.ContinueOnError)
	fs.SetOutput(output)

	var (
		configPath  string
		envFile     string
		port        int
		env         string
		apiKeysFlag string
		rateLimit   int
		feedURL     string
		groupMode   string
		gtfsPath    string
		stopsPath   string
		tripsPath   string
		routesPath  string
		stopLimit   int
		logLevel    string
		verbose     bool
		refresh     time.Duration
	)

	fs.StringVar(&configPath, "config", "", "Path to a YAML or JSON config file")
	fs.StringVar(&envFile, "env-file", ".env", "Path to a .env file; missing is fine")
	fs.IntVar(&port, "port", appconf.DefaultPort, "API server port")
	fs.StringVar(&env, "env", string(appconf.Development), "Environment (development|test|production)")
	fs.StringVar(&apiKeysFlag, "api-keys", "", "Comma separated inbound API keys; empty disables key checks")
	fs.IntVar(&rateLimit, "rate-limit", appconf.DefaultRateLimit, "Requests per second per client")
	fs.StringVar(&feedURL, "feed-url", appconf.DefaultFeedURL, "GTFS-realtime trip updates URL")
	fs.StringVar(&groupMode, "group-mode", appconf.DefaultGroupMode, "Default arrival grouping (route|headsign)")
	fs.StringVar(&gtfsPath, "gtfs-path", "", "Path or URL of a static GTFS zip; overrides the JSON files")
	fs.StringVar(&stopsPath, "stops", appconf.DefaultStopsPath, "Path or URL of the stops JSON")
	fs.StringVar(&tripsPath, "trips", appconf.DefaultTripsPath, "Path or URL of the trips JSON")
	fs.StringVar(&routesPath, "routes", appconf.DefaultRoutesPath, "Path or URL of the routes JSON")
	fs.IntVar(&stopLimit, "stop-limit", appconf.DefaultStopLimit, "Unique stops returned per query")
	fs.StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	fs.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	fs.DurationVar(&refresh, "catalog-refresh", 0, "Reload interval for a remote catalog; 0 disables")

	if err := fs.Parse(args); err != nil {
		return appconf.Config{}, err
	}

	if err := appconf.LoadDotEnv(envFile); err != nil {
		return appconf.Config{}, err
	}

	cfg, err := appconf.Resolve(configPath, lookup)
	if err != nil {
		return cfg, err
	}

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = port
		case "env":
			parsed, err := appconf.ParseEnvironment(env)
			if err != nil {
				flagErr = &appconf.ConfigError{Field: "-env", Err: err}
				return
			}
			cfg.Env = parsed
		case "api-keys":
			cfg.ApiKeys = ParseAPIKeys(apiKeysFlag)
		case "rate-limit":
			cfg.RateLimit = rateLimit
		case "feed-url":
			cfg.Feed.URL = feedURL
		case "group-mode":
			cfg.Feed.GroupMode = groupMode
		case "gtfs-path":
			cfg.Catalog.GTFSPath = gtfsPath
		case "stops":
			cfg.Catalog.StopsPath = stopsPath
		case "trips":
			cfg.Catalog.TripsPath = tripsPath
		case "routes":
			cfg.Catalog.RoutesPath = routesPath
		case "stop-limit":
			cfg.Nearby.StopLimit = stopLimit
		case "log-level":
			cfg.LogLevel = logLevel
		case "verbose":
			cfg.Verbose = verbose
		case "catalog-refresh":
			cfg.Catalog.RefreshInterval = refresh
		}
	})
	if flagErr != nil {
		return cfg, flagErr
	}

	return cfg, cfg.Validate()
}
