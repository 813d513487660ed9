package restapi

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buswisely.org/internal/appconf"
)

func coords(lat, lon string) string {
	return url.Values{"lat": {lat}, "lon": {lon}}.Encode()
}

func TestStopsHandler(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.get(t, "/api/stops?"+coords(testLat, testLon))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "public, max-age=300", resp.Header.Get("Cache-Control"))
	assert.EqualValues(t, http.StatusOK, body["code"])
	assert.EqualValues(t, testNow.UnixMilli(), body["currentTime"])

	stops, ok := body["data"].([]any)
	require.True(t, ok)
	// The other two Granville St stops collapse into 50001.
	assert.Equal(t,
		[]string{"50001", "50004", "50005", "50006", "50007"},
		collectAllIdsFromObjects(t, stops, "stop_id"))

	first := stops[0].(map[string]any)
	assert.Equal(t, "Granville St @ W Georgia St", first["stop_name"])
	assert.InDelta(t, 49.28283, first["stop_lat"], 1e-9)

	assert.Zero(t, env.upstream.calls.Load(), "stop lookup must not hit the realtime feed")
}

func TestStopsHandler_StopLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *appconf.Config) {
		cfg.Nearby.StopLimit = 2
	})

	resp, body := env.get(t, "/api/stops?"+coords(testLat, testLon))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"50001", "50004"}, collectAllIdsFromObjects(t, body["data"].([]any), "stop_id"))
}

func TestStopsHandler_InvalidCoordinates(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name  string
		query string
		field string
	}{
		{"missing lat", "lon=-123.1", "lat"},
		{"missing lon", "lat=49.2", "lon"},
		{"non-numeric lat", coords("north", "-123.1"), "lat"},
		{"lat out of range", coords("91", "-123.1"), "lat"},
		{"lon out of range", coords("49.2", "-181"), "lon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.get(t, "/api/stops?"+tt.query)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "no-cache, no-store, must-revalidate", resp.Header.Get("Cache-Control"))
			assert.Equal(t, "invalid request", body["text"])

			fieldErrors, ok := body["fieldErrors"].(map[string]any)
			require.True(t, ok)
			assert.Contains(t, fieldErrors, tt.field)
		})
	}
}

func TestArrivalsHandler_GroupsByRoute(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.get(t, "/api/arrivals?stopNo=50001")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-cache, no-store, must-revalidate", resp.Header.Get("Cache-Control"))
	assert.Equal(t, map[string][]int{
		"99":      {2, 5},
		"10":      {9},
		"Unknown": {7},
	}, minutesOf(t, body["data"]))
	assert.EqualValues(t, 1, env.upstream.calls.Load())
}

func TestArrivalsHandler_GroupsByHeadsign(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.get(t, "/api/arrivals?stopNo=50001&mode=headsign")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string][]int{
		"99 UBC B-Line":          {5},
		"99 Commercial-Broadway": {2},
		"10 Downtown":            {9},
		"Unknown":                {7},
	}, minutesOf(t, body["data"]))
}

func TestArrivalsHandler_ConfiguredDefaultMode(t *testing.T) {
	env := newTestEnv(t, func(cfg *appconf.Config) {
		cfg.Feed.GroupMode = "headsign"
	})

	_, body := env.get(t, "/api/arrivals?stopNo=50001")
	assert.Contains(t, minutesOf(t, body["data"]), "99 UBC B-Line")

	_, body = env.get(t, "/api/arrivals?stopNo=50001&mode=route")
	assert.Contains(t, minutesOf(t, body["data"]), "99")
}

func TestArrivalsHandler_PastArrivalClampsToZero(t *testing.T) {
	env := newTestEnv(t, nil)

	_, body := env.get(t, "/api/arrivals?stopNo=50005")

	// T3001 points at a route the catalog does not have.
	assert.Equal(t, map[string][]int{"Unknown": {0}}, minutesOf(t, body["data"]))
}

func TestArrivalsHandler_StopWithoutPredictions(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.get(t, "/api/arrivals?stopNo=50007")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, minutesOf(t, body["data"]))
}

func TestArrivalsHandler_Validation(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name  string
		query string
		field string
	}{
		{"missing stop", "", "stopNo"},
		{"blank stop", "stopNo=%20%20", "stopNo"},
		{"bad mode", "stopNo=50001&mode=vehicle", "mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.get(t, "/api/arrivals?"+tt.query)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, body["fieldErrors"], tt.field)
		})
	}

	assert.Zero(t, env.upstream.calls.Load(), "invalid requests must not reach the feed")
}

func TestArrivalsHandler_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.upstream.respond(http.StatusServiceUnavailable, []byte("maintenance"))

	resp, body := env.get(t, "/api/arrivals?stopNo=50001")

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "realtime feed unavailable", body["text"])
	assert.Nil(t, body["data"])
}

func TestArrivalsHandler_UndecodableFeed(t *testing.T) {
	env := newTestEnv(t, nil)
	env.upstream.respond(http.StatusOK, []byte("not a protobuf message"))

	resp, body := env.get(t, "/api/arrivals?stopNo=50001")

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "realtime feed unavailable", body["text"])
}

func TestNearbyArrivalsHandler(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.get(t, "/api/nearby-arrivals?"+coords(testLat, testLon))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, env.upstream.calls.Load(), "one feed fetch per aggregation")

	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "route", data["mode"])
	assert.Equal(t, false, data["stale"])
	assert.EqualValues(t, testNow.UnixMilli(), data["generatedAt"])

	stopIDs := collectAllIdsFromObjects(t, data["stops"].([]any), "stop_id")
	assert.Equal(t, []string{"50001", "50004", "50005", "50006", "50007"}, stopIDs)

	byStop, ok := data["arrivals"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, byStop, len(stopIDs))
	assert.Equal(t, map[string][]int{"99": {2, 5}, "10": {9}, "Unknown": {7}}, minutesOf(t, byStop["50001"]))
	assert.Equal(t, map[string][]int{"14": {3}}, minutesOf(t, byStop["50004"]))
	assert.Empty(t, minutesOf(t, byStop["50006"]))
	assert.Empty(t, minutesOf(t, byStop["50007"]))
}

func TestNearbyArrivalsHandler_UpstreamFailureHasNoPartialResult(t *testing.T) {
	env := newTestEnv(t, nil)
	env.upstream.respond(http.StatusBadGateway, nil)

	resp, body := env.get(t, "/api/nearby-arrivals?"+coords(testLat, testLon)+"&mode=headsign")

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Nil(t, body["data"])
}

func TestNearbyArrivalsHandler_Validation(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.get(t, "/api/nearby-arrivals?"+coords(testLat, testLon)+"&mode=nope")

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["fieldErrors"], "mode")
	assert.Zero(t, env.upstream.calls.Load())
}

func TestAPIKeyValidation(t *testing.T) {
	env := newTestEnv(t, func(cfg *appconf.Config) {
		cfg.ApiKeys = []string{"test-key"}
	})

	resp, body := env.get(t, "/api/stops?"+coords(testLat, testLon))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "permission denied", body["text"])

	resp, _ = env.get(t, "/api/stops?key=wrong&"+coords(testLat, testLon))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.get(t, "/api/stops?key=test-key&"+coords(testLat, testLon))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Health stays open for liveness checks.
	resp, _ = env.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimiting(t *testing.T) {
	env := newTestEnv(t, func(cfg *appconf.Config) {
		cfg.RateLimit = 1
	})

	resp, _ := env.get(t, "/api/stops?"+coords(testLat, testLon))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.get(t, "/api/stops?"+coords(testLat, testLon))
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
	assert.EqualValues(t, http.StatusTooManyRequests, body["code"])
}

func TestConfigHandler(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.get(t, "/api/config")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "test", data["env"])
	assert.Equal(t, "route", data["groupMode"])
	assert.EqualValues(t, appconf.DefaultStopLimit, data["stopLimit"])

	raw := toJSON(t, body)
	assert.NotContains(t, raw, "upstream-secret", "credentials must never be exposed")
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, _ := env.get(t, "/api/where/stops.json")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
