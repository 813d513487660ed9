package restapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"buswisely.org/internal/app"
	"buswisely.org/internal/appconf"
	"buswisely.org/internal/clock"
	"buswisely.org/internal/feed/feedtest"
	"buswisely.org/internal/logging"
)

var testNow = time.Date(2026, 3, 14, 17, 30, 0, 0, time.UTC)

// Query point on top of stop 50001 (Granville St @ W Georgia St).
const (
	testLat = "49.28283"
	testLon = "-123.11863"
)

func testLogger() *slog.Logger {
	return logging.NewStructuredLogger(io.Discard, slog.LevelError)
}

// fakeUpstream stands in for the realtime feed provider.
type fakeUpstream struct {
	mu     sync.Mutex
	status int
	body   []byte
	calls  atomic.Int32
	server *httptest.Server
}

func newFakeUpstream(t *testing.T, body []byte) *fakeUpstream {
	t.Helper()
	u := &fakeUpstream{status: http.StatusOK, body: body}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		u.mu.Lock()
		status, body := u.status, u.body
		u.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(u.server.Close)
	return u
}

func (u *fakeUpstream) respond(status int, body []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.status = status
	u.body = body
}

// defaultFeed predicts arrivals at stops from testdata relative to testNow.
func defaultFeed() []byte {
	return feedtest.NewBuilder(testNow).
		Trip("T1001", feedtest.Arrive("50001", testNow.Add(5*time.Minute))).
		Trip("T1002", feedtest.Arrive("50001", testNow.Add(2*time.Minute))).
		Trip("T2001", feedtest.Arrive("50001", testNow.Add(9*time.Minute))).
		Trip("ghost", feedtest.Arrive("50001", testNow.Add(7*time.Minute))).
		Trip("4001", feedtest.Arrive("50004", testNow.Add(3*time.Minute))).
		Trip("T3001", feedtest.Arrive("50005", testNow.Add(-2*time.Minute))).
		MustBytes()
}

type testEnv struct {
	api      *RestAPI
	server   *httptest.Server
	upstream *fakeUpstream
}

func newTestEnv(t *testing.T, mutate func(*appconf.Config)) *testEnv {
	t.Helper()
	upstream := newFakeUpstream(t, defaultFeed())

	cfg := appconf.Default()
	cfg.Env = appconf.Test
	cfg.RateLimit = 1000
	cfg.Feed.URL = upstream.server.URL + "/gtfsrealtime"
	cfg.Feed.APIKey = "upstream-secret"
	cfg.Catalog.StopsPath = "../../testdata/stops.json"
	cfg.Catalog.TripsPath = "../../testdata/trips.json"
	cfg.Catalog.RoutesPath = "../../testdata/routes.json"
	if mutate != nil {
		mutate(&cfg)
	}

	application, err := app.Build(context.Background(), cfg, app.Deps{
		Logger: testLogger(),
		Clock:  clock.NewMockClock(testNow),
	})
	require.NoError(t, err)

	api := NewRestAPI(application)
	mux := http.NewServeMux()
	api.SetRoutes(mux)
	server := httptest.NewServer(api.Handler(mux))

	t.Cleanup(func() {
		server.Close()
		api.Shutdown()
		application.Shutdown()
	})

	return &testEnv{api: api, server: server, upstream: upstream}
}

// get performs a GET and decodes the JSON envelope.
func (env *testEnv) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(env.server.URL + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &body), "body: %s", raw)
	}
	return resp, body
}

type testingFatalf interface {
	Fatalf(format string, args ...any)
}

// collectAllIdsFromObjects extracts the string value of key from every
// object in list.
func collectAllIdsFromObjects(t testingFatalf, list []any, key string) (ids []string) {
	for i, item := range list {
		object, ok := item.(map[string]any)
		if !ok {
			t.Fatalf("item %d is not a map[string]any", i)
		}
		value, ok := object[key]
		if !ok {
			t.Fatalf("item %d missing key %q", i, key)
		}
		id, ok := value.(string)
		if !ok {
			t.Fatalf("item %d key %q is not a string: %T", i, key, value)
		}
		ids = append(ids, id)
	}
	return ids
}

func toJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

// minutesOf converts a decoded {label: [minutes]} object.
func minutesOf(t *testing.T, v any) map[string][]int {
	t.Helper()
	obj, ok := v.(map[string]any)
	require.True(t, ok, "expected object, got %T", v)
	out := make(map[string][]int, len(obj))
	for label, raw := range obj {
		list, ok := raw.([]any)
		require.True(t, ok)
		mins := make([]int, 0, len(list))
		for _, m := range list {
			mins = append(mins, int(m.(float64)))
		}
		out[label] = mins
	}
	return out
}
