package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"buswisely.org/internal/app"
	"buswisely.org/internal/appconf"
	"buswisely.org/internal/logging"
)

type rootOptions struct {
	configPath string
	envFile    string
	verbose    bool
	timeout    time.Duration

	stdout io.Writer
	stderr io.Writer
	lookup appconf.LookupFunc
}

func newRootCmd(stdout, stderr io.Writer, lookup appconf.LookupFunc) *cobra.Command {
	opts := &rootOptions{stdout: stdout, stderr: stderr, lookup: lookup}

	cmd := &cobra.Command{
		Use:   "transitctl",
		Short: "Query nearby stops and live arrivals",
		Long: `transitctl loads the same configuration as the API server and answers a
single query against the stop catalog and the realtime feed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to a YAML or JSON config file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "Path to a .env file; missing is fine")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log progress to stderr")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Overall deadline for the query")

	cmd.AddCommand(
		newStopsCmd(opts),
		newArrivalsCmd(opts),
		newNearbyCmd(opts),
	)
	return cmd
}

// buildApp resolves configuration the way the server does and wires the
// application. The caller must Shutdown it.
func (opts *rootOptions) buildApp(ctx context.Context) (*app.Application, error) {
	if err := appconf.LoadDotEnv(opts.envFile); err != nil {
		return nil, err
	}
	cfg, err := appconf.Resolve(opts.configPath, opts.lookup)
	if err != nil {
		return nil, err
	}
	// A one-shot query never refreshes the catalog.
	cfg.Catalog.RefreshInterval = 0
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := logging.NewStructuredLogger(opts.stderr, level)

	return app.Build(ctx, cfg, app.Deps{Logger: logger})
}

// run builds the application, applies the deadline and prints the value
// returned by query as indented JSON.
func (opts *rootOptions) run(cmd *cobra.Command, query func(ctx context.Context, a *app.Application) (any, error)) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	a, err := opts.buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	result, err := query(ctx, a)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(opts.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
