package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testdataPath(name string) string {
	return filepath.Join("..", "..", "testdata", name)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestJSONFilesLoadsBundledCatalog(t *testing.T) {
	src := NewJSONFiles(testdataPath("stops.json"), testdataPath("trips.json"), testdataPath("routes.json"), SourceOptions{})

	idx, err := Load(context.Background(), src)
	require.NoError(t, err)

	stats := idx.Stats()
	assert.Equal(t, 7, stats.Stops)
	assert.Equal(t, 5, stats.Trips)
	assert.Equal(t, 3, stats.Routes)

	t.Run("string coordinates are parsed", func(t *testing.T) {
		stop, ok := idx.Stop("50004")
		require.True(t, ok)
		assert.InDelta(t, 49.28578, stop.Lat, 1e-9)
		assert.InDelta(t, -123.12012, stop.Lon, 1e-9)
	})

	t.Run("numeric ids are normalised to strings", func(t *testing.T) {
		_, ok := idx.Stop("50005")
		assert.True(t, ok)

		route, headsign := idx.ResolveTrip("4001")
		assert.Equal(t, "14", route)
		assert.Equal(t, UnknownLabel, headsign)
	})

	t.Run("trip on unknown route", func(t *testing.T) {
		route, headsign := idx.ResolveTrip("T3001")
		assert.Equal(t, UnknownLabel, route)
		assert.Equal(t, "Not In Service", headsign)
	})

	assert.False(t, src.Refreshable())
}

func TestJSONFilesLoadErrors(t *testing.T) {
	dir := t.TempDir()
	validTrips := writeFile(t, dir, "trips.json", `[{"trip_id":"T1","route_id":"R1","trip_headsign":"X"}]`)
	validRoutes := writeFile(t, dir, "routes.json", `[{"route_id":"R1","route_short_name":"1"}]`)

	tests := []struct {
		name  string
		stops string
	}{
		{"not json", `{{{`},
		{"not an array", `{"stop_id":"S1"}`},
		{"missing id", `[{"stop_name":"A","stop_lat":1,"stop_lon":2}]`},
		{"missing coordinates", `[{"stop_id":"S1","stop_name":"A"}]`},
		{"bad coordinate", `[{"stop_id":"S1","stop_name":"A","stop_lat":"north","stop_lon":2}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stops := writeFile(t, dir, "stops.json", tt.stops)
			_, err := Load(context.Background(), NewJSONFiles(stops, validTrips, validRoutes, SourceOptions{}))

			var loadErr *LoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Equal(t, stops, loadErr.Source)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(context.Background(), NewJSONFiles(filepath.Join(dir, "absent.json"), validTrips, validRoutes, SourceOptions{}))

		var loadErr *LoadError
		require.ErrorAs(t, err, &loadErr)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("unconfigured location", func(t *testing.T) {
		_, err := Load(context.Background(), &JSONFiles{TripsPath: validTrips, RoutesPath: validRoutes})

		var loadErr *LoadError
		require.ErrorAs(t, err, &loadErr)
		assert.Equal(t, "stops", loadErr.Source)
	})
}

func TestJSONFilesRemoteRevalidation(t *testing.T) {
	var hits, notModified atomic.Int32
	bodies := map[string]string{
		"/stops.json":  `[{"stop_id":"S1","stop_name":"A","stop_lat":49.28,"stop_lon":-123.12}]`,
		"/trips.json":  `[{"trip_id":"T1","route_id":"R1","trip_headsign":"UBC"}]`,
		"/routes.json": `[{"route_id":"R1","route_short_name":"99"}]`,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))

		body, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		etag := `"v1` + r.URL.Path + `"`
		if r.Header.Get("If-None-Match") == etag {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	src := NewJSONFiles(server.URL+"/stops.json", server.URL+"/trips.json", server.URL+"/routes.json",
		SourceOptions{AuthHeaderKey: "X-Api-Key", AuthHeaderValue: "secret"})
	assert.True(t, src.Refreshable())

	idx, err := Load(context.Background(), src)
	require.NoError(t, err)
	route, _ := idx.ResolveTrip("T1")
	assert.Equal(t, "99", route)

	_, err = src.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotModified)
	assert.Equal(t, int32(6), hits.Load())
	assert.Equal(t, int32(3), notModified.Load())
}

func TestJSONFilesRemoteFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	src := NewJSONFiles(server.URL+"/stops.json", server.URL+"/trips.json", server.URL+"/routes.json", SourceOptions{})

	_, err := Load(context.Background(), src)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, err.Error(), "500")
}

func TestJSONFilesRemoteRetriesAfterPartialFailure(t *testing.T) {
	var mu sync.Mutex
	stopsVersion := "v1"
	stopsName := "A"
	tripsFailing := false

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		var etag, body string
		switch r.URL.Path {
		case "/stops.json":
			etag = `"stops-` + stopsVersion + `"`
			body = `[{"stop_id":"S1","stop_name":"` + stopsName + `","stop_lat":49.28,"stop_lon":-123.12}]`
		case "/trips.json":
			if tripsFailing {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			etag = `"trips-v1"`
			body = `[{"trip_id":"T1","route_id":"R1","trip_headsign":"UBC"}]`
		case "/routes.json":
			etag = `"routes-v1"`
			body = `[{"route_id":"R1","route_short_name":"99"}]`
		default:
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	src := NewJSONFiles(server.URL+"/stops.json", server.URL+"/trips.json", server.URL+"/routes.json", SourceOptions{})

	idx, err := Load(context.Background(), src)
	require.NoError(t, err)
	stop, ok := idx.Stop("S1")
	require.True(t, ok)
	assert.Equal(t, "A", stop.Name)

	mu.Lock()
	stopsVersion, stopsName, tripsFailing = "v2", "B", true
	mu.Unlock()

	_, err = Load(context.Background(), src)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)

	mu.Lock()
	tripsFailing = false
	mu.Unlock()

	idx, err = Load(context.Background(), src)
	require.NoError(t, err, "stops fetched during the failed load must not be treated as current")
	stop, ok = idx.Stop("S1")
	require.True(t, ok)
	assert.Equal(t, "B", stop.Name)

	_, err = src.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotModified)
}
