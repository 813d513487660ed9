package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/time/rate"

	"buswisely.org/internal/logging"
	"buswisely.org/internal/metrics"
)

// MaxBodySize bounds the decompressed feed body.
const MaxBodySize = 25 * 1024 * 1024

// DefaultTimeout applies when FetcherConfig.Timeout is unset.
const DefaultTimeout = 10 * time.Second

// FetcherConfig describes the upstream realtime feed.
type FetcherConfig struct {
	URL string
	// APIKey is sent as the APIKeyParam query parameter.
	APIKey      string
	APIKeyParam string
	// Optional header credential, for providers that want one instead.
	AuthHeaderKey   string
	AuthHeaderValue string
	Timeout         time.Duration
	// MaxRequestsPerMinute throttles upstream calls. Zero disables throttling.
	MaxRequestsPerMinute int
}

// Fetcher retrieves the raw realtime feed. It never retries.
type Fetcher struct {
	requestURL  string
	redactedURL string
	cfg         FetcherConfig
	client      *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewFetcher validates cfg and builds a Fetcher with a dedicated HTTP client.
func NewFetcher(cfg FetcherConfig, logger *slog.Logger, m *metrics.Metrics) (*Fetcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.APIKeyParam == "" {
		cfg.APIKeyParam = "apikey"
	}
	if logger == nil {
		logger = slog.Default()
	}

	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid feed URL %q", cfg.URL)
	}

	redacted := *u
	if cfg.APIKey != "" {
		q := u.Query()
		q.Set(cfg.APIKeyParam, cfg.APIKey)
		u.RawQuery = q.Encode()

		rq := redacted.Query()
		rq.Set(cfg.APIKeyParam, "REDACTED")
		redacted.RawQuery = rq.Encode()
	}

	var limiter *rate.Limiter
	if cfg.MaxRequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.MaxRequestsPerMinute)), cfg.MaxRequestsPerMinute)
	}

	return &Fetcher{
		requestURL:  u.String(),
		redactedURL: redacted.String(),
		cfg:         cfg,
		client:      newFeedHTTPClient(cfg.Timeout),
		limiter:     limiter,
		logger:      logger.With(slog.String("component", "feed_fetcher")),
		metrics:     m,
	}, nil
}

// newFeedHTTPClient clones the default transport so proxy and HTTP/2 settings
// survive, and turns off transparent decompression: the body is binary and
// gzip is handled explicitly.
func newFeedHTTPClient(timeout time.Duration) *http.Client {
	var transport *http.Transport
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		transport = t.Clone()
	} else {
		transport = &http.Transport{}
	}
	transport.MaxIdleConns = 50
	transport.MaxIdleConnsPerHost = 10
	transport.IdleConnTimeout = 90 * time.Second
	transport.TLSHandshakeTimeout = 10 * time.Second
	transport.ExpectContinueTimeout = 1 * time.Second
	transport.DisableCompression = true

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// URL is the feed URL with the credential redacted, for logs.
func (f *Fetcher) URL() string {
	return f.redactedURL
}

// Fetch downloads the feed body. Every failure is an *UpstreamError.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	body, err := f.fetch(ctx)
	duration := time.Since(start)

	if err != nil {
		outcome := metrics.OutcomeError
		var upErr *UpstreamError
		if errors.As(err, &upErr) {
			switch {
			case upErr.Status == http.StatusTooManyRequests:
				outcome = metrics.OutcomeThrottled
			case upErr.Timeout():
				outcome = metrics.OutcomeTimeout
			}
		}
		f.metrics.ObserveFeedFetch(outcome, duration, 0)
		logging.LogError(f.logger, "Error fetching realtime feed", err,
			slog.String("source", f.redactedURL),
			slog.Duration("duration", duration))
		return nil, err
	}

	f.metrics.ObserveFeedFetch(metrics.OutcomeSuccess, duration, len(body))
	f.logger.Debug("realtime feed fetched",
		slog.Int("bytes", len(body)),
		slog.Duration("duration", duration))
	return body, nil
}

func (f *Fetcher) fetch(ctx context.Context) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &UpstreamError{
				Status: http.StatusTooManyRequests,
				Err:    fmt.Errorf("upstream request budget exhausted: %w", err),
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.requestURL, nil)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	req.Header.Set("Accept", "application/x-protobuf, application/octet-stream")
	req.Header.Set("Accept-Encoding", "gzip")
	if f.cfg.AuthHeaderKey != "" && f.cfg.AuthHeaderValue != "" {
		req.Header.Set(f.cfg.AuthHeaderKey, f.cfg.AuthHeaderValue)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Err: fmt.Errorf("failed to execute GTFS-RT request: %w", f.redact(err))}
	}
	defer logging.SafeCloseWithLogging(resp.Body, f.logger, "http_response_body")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("gtfs-rt fetch failed: %s returned %s", f.redactedURL, resp.Status),
		}
	}

	var reader io.Reader = resp.Body
	if strings.EqualFold(strings.TrimSpace(resp.Header.Get("Content-Encoding")), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, &UpstreamError{Status: resp.StatusCode, Err: fmt.Errorf("invalid gzip body: %w", err)}
		}
		defer logging.SafeCloseWithLogging(gz, f.logger, "gzip_reader")
		reader = gz
	}

	body, err := io.ReadAll(io.LimitReader(reader, MaxBodySize+1))
	if err != nil {
		return nil, &UpstreamError{Status: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", f.redact(err))}
	}
	if int64(len(body)) > MaxBodySize {
		return nil, &UpstreamError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("GTFS-RT response exceeds size limit of %d bytes", MaxBodySize),
		}
	}

	return body, nil
}

// redact strips the credential from *url.Error messages.
func (f *Fetcher) redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = f.redactedURL
	}
	return err
}
