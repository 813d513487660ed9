package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	m := New()

	assert.NotNil(t, m.Registry)
	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.HTTPRequestDuration)
	assert.NotNil(t, m.FeedFetchesTotal)
	assert.NotNil(t, m.FeedFetchDuration)
	assert.NotNil(t, m.FeedDecodeErrorsTotal)
	assert.NotNil(t, m.CatalogStops)
	assert.NotNil(t, m.CatalogReloadsTotal)
}

func TestNewWithLogger(t *testing.T) {
	m := NewWithLogger(nil)
	assert.NotNil(t, m)
	assert.Nil(t, m.logger)
}

func TestNew_IndependentRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	assert.NotPanics(t, func() {
		_ = New()
		_ = New()
	})
}

func TestObserveFeedFetch(t *testing.T) {
	m := New()

	m.ObserveFeedFetch(OutcomeSuccess, 120*time.Millisecond, 2048)
	m.ObserveFeedFetch(OutcomeSuccess, 80*time.Millisecond, 4096)
	m.ObserveFeedFetch(OutcomeTimeout, 10*time.Second, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FeedFetchesTotal.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedFetchesTotal.WithLabelValues(OutcomeTimeout)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.FeedFetchesTotal))
}

func TestObserveFeedDecode(t *testing.T) {
	m := New()

	m.ObserveFeedDecode(42, nil)
	assert.Equal(t, 42.0, testutil.ToFloat64(m.FeedPredictions))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.FeedDecodeErrorsTotal))

	m.ObserveFeedDecode(0, errors.New("bad wire type"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedDecodeErrorsTotal))
	// A failed decode leaves the last good count in place.
	assert.Equal(t, 42.0, testutil.ToFloat64(m.FeedPredictions))
}

func TestObserveCatalogLoad(t *testing.T) {
	m := New()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	m.ObserveCatalogLoad(OutcomeSuccess, 8000, 120000, 240, at)
	m.ObserveCatalogLoad(OutcomeError, 0, 0, 0, at.Add(time.Hour))

	assert.Equal(t, 8000.0, testutil.ToFloat64(m.CatalogStops))
	assert.Equal(t, 120000.0, testutil.ToFloat64(m.CatalogTrips))
	assert.Equal(t, 240.0, testutil.ToFloat64(m.CatalogRoutes))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(m.CatalogLastLoadedTime))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CatalogReloadsTotal.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CatalogReloadsTotal.WithLabelValues(OutcomeError)))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveFeedFetch(OutcomeSuccess, time.Second, 1)
		m.ObserveFeedDecode(1, nil)
		m.ObserveCatalogLoad(OutcomeSuccess, 1, 1, 1, time.Now())
	})
}

func TestRegistryGathers(t *testing.T) {
	m := New()
	m.HTTPRequestsTotal.WithLabelValues("GET", "GET /api/stops", "200").Inc()

	families, err := m.Registry.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "buswisely_http_requests_total")
}
