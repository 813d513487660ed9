package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"buswisely.org/internal/app"
	"buswisely.org/internal/appconf"
	"buswisely.org/internal/logging"
	"buswisely.org/internal/restapi"
	"buswisely.org/internal/webui"
)

const shutdownTimeout = 30 * time.Second

// ParseAPIKeys splits a comma separated list and trims each key. Empty
// entries are kept so a malformed list is visible to validation.
func ParseAPIKeys(apiKeysFlag string) []string {
	if apiKeysFlag == "" {
		return []string{}
	}
	keys := strings.Split(apiKeysFlag, ",")
	for i := range keys {
		keys[i] = strings.TrimSpace(keys[i])
	}
	return keys
}

// NewLogger builds the process logger from the configured level. Verbose
// forces debug output.
func NewLogger(cfg appconf.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, &appconf.ConfigError{Field: "Config.LogLevel", Err: err}
	}
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return logging.NewStructuredLogger(os.Stdout, level), nil
}

// BuildApplication loads the catalog and wires every service for cfg.
func BuildApplication(cfg appconf.Config) (*app.Application, error) {
	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	coreApp, err := app.Build(ctx, cfg, app.Deps{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return coreApp, nil
}

// CreateServer builds the HTTP server with every route and middleware.
// The caller must Shutdown the returned API.
func CreateServer(coreApp *app.Application, cfg appconf.Config) (*http.Server, *restapi.RestAPI) {
	api := restapi.NewRestAPI(coreApp)
	webUI := &webui.WebUI{Application: coreApp}

	mux := http.NewServeMux()
	api.SetRoutes(mux)
	webUI.SetWebUIRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.Handler(mux),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(coreApp.Logger.Handler(), slog.LevelError),
	}

	return srv, api
}

// Run serves until ctx is cancelled, then drains in-flight requests and
// stops background work.
func Run(ctx context.Context, srv *http.Server, coreApp *app.Application, api *restapi.RestAPI) error {
	logger := coreApp.Logger

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr, "env", coreApp.Config.Env)
		serveErr <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	case <-ctx.Done():
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			runErr = fmt.Errorf("server shutdown failed: %w", err)
		}
	}

	api.Shutdown()
	coreApp.Shutdown()
	logging.LogOperation(logger, "server_stopped")
	return runErr
}
