package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"buswisely.org/internal/logging"
)

const maxResourceSize = 200 * 1024 * 1024

// isRemote reports whether location should be fetched over HTTP.
func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

type cachedResource struct {
	etag string
	body []byte
}

// fetchedResource is one read. Its ETag is only remembered once the caller
// commits it, so a file that arrived during a failed load is downloaded
// again on the next attempt.
type fetchedResource struct {
	location string
	etag     string
	body     []byte
	// changed is false when the server answered 304 and body is the copy
	// that backs the live index.
	changed bool
}

// resourceReader reads catalog files from disk or over HTTP. Remote reads are
// revalidated with If-None-Match against the files of the last committed load.
type resourceReader struct {
	client          *http.Client
	authHeaderKey   string
	authHeaderValue string
	logger          *slog.Logger

	mu    sync.Mutex
	cache map[string]cachedResource
}

func newResourceReader(authHeaderKey, authHeaderValue string, logger *slog.Logger) *resourceReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &resourceReader{
		client: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		authHeaderKey:   authHeaderKey,
		authHeaderValue: authHeaderValue,
		logger:          logger.With(slog.String("component", "catalog_downloader")),
		cache:           make(map[string]cachedResource),
	}
}

// read fetches location without touching the ETag cache. See commit.
func (rr *resourceReader) read(ctx context.Context, location string) (fetchedResource, error) {
	if !isRemote(location) {
		b, err := os.ReadFile(location)
		if err != nil {
			return fetchedResource{}, fmt.Errorf("error reading local catalog file: %w", err)
		}
		return fetchedResource{location: location, body: b, changed: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return fetchedResource{}, fmt.Errorf("error creating catalog request: %w", err)
	}

	if rr.authHeaderKey != "" && rr.authHeaderValue != "" {
		req.Header.Set(rr.authHeaderKey, rr.authHeaderValue)
	}

	rr.mu.Lock()
	cached, haveCached := rr.cache[location]
	rr.mu.Unlock()

	if haveCached && cached.etag != "" {
		req.Header.Set("If-None-Match", cached.etag)
	}

	resp, err := rr.client.Do(req)
	if err != nil {
		return fetchedResource{}, fmt.Errorf("error downloading catalog data: %w", err)
	}
	defer logging.SafeCloseWithLogging(resp.Body, rr.logger, "http_response_body")

	if resp.StatusCode == http.StatusNotModified && haveCached {
		return fetchedResource{location: location, etag: cached.etag, body: cached.body}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return fetchedResource{}, fmt.Errorf("failed to download catalog data: received HTTP status %s", resp.Status)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResourceSize+1))
	if err != nil {
		return fetchedResource{}, fmt.Errorf("error reading catalog data: %w", err)
	}
	if int64(len(b)) > maxResourceSize {
		return fetchedResource{}, fmt.Errorf("catalog response exceeds size limit of %d bytes", maxResourceSize)
	}

	return fetchedResource{
		location: location,
		etag:     resp.Header.Get("ETag"),
		body:     b,
		changed:  true,
	}, nil
}

// commit remembers the ETags of resources that together built the live
// index. Call it only after that index was built successfully.
func (rr *resourceReader) commit(resources ...fetchedResource) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	for _, res := range resources {
		if !isRemote(res.location) || !res.changed {
			continue
		}
		if res.etag == "" {
			delete(rr.cache, res.location)
			continue
		}
		rr.cache[res.location] = cachedResource{etag: res.etag, body: res.body}
	}
}
