package feed

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buswisely.org/internal/feed/feedtest"
)

// mapResolver resolves trips from fixed tables; unknown trips get "Unknown".
type mapResolver struct {
	routes    map[string]string
	headsigns map[string]string
}

func (r mapResolver) ResolveTrip(tripID string) (string, string) {
	route, ok := r.routes[tripID]
	if !ok {
		route = "Unknown"
	}
	headsign, ok := r.headsigns[tripID]
	if !ok {
		headsign = "Unknown"
	}
	return route, headsign
}

var routeOpts = ExtractOptions{Mode: GroupByRoute, RouteCap: 3, HeadsignCap: 100}

func TestMinutesUntil(t *testing.T) {
	nowMs := int64(1_700_000_000_000)
	nowSec := nowMs / 1000

	tests := []struct {
		name    string
		arrival int64
		want    int
	}{
		{"exact", nowSec + 300, 5},
		{"rounds down below half", nowSec + 89, 1},
		{"rounds up at half", nowSec + 90, 2},
		{"now", nowSec, 0},
		{"past clamps to zero", nowSec - 600, 0},
		{"just past rounds to zero", nowSec - 20, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MinutesUntil(tt.arrival, nowMs))
		})
	}
}

func TestMinutesUntil_SubSecondNow(t *testing.T) {
	assert.Equal(t, 0, MinutesUntil(1000, 1_000_000-29_500))
	assert.Equal(t, 1, MinutesUntil(1000, 1_000_000-30_500))
}

func TestExtract_SingleArrival(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	raw := feedtest.NewBuilder(now).
		Trip("T1", feedtest.Arrive("S", now.Add(5*time.Minute))).
		MustBytes()
	resolver := mapResolver{routes: map[string]string{"T1": "99"}}

	got, err := ExtractRaw(raw, "S", resolver, routeOpts, now.UnixMilli())
	require.NoError(t, err)
	assert.Equal(t, Arrivals{"99": {5}}, got)
}

func TestExtract_SortsAndTruncatesPerRoute(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := feedtest.NewBuilder(now)
	routes := make(map[string]string)
	for i, mins := range []int{12, 3, 25, 7, 1, 18, 4, 30, 9, 2} {
		tripID := fmt.Sprintf("T%d", i)
		routes[tripID] = "99"
		b.Trip(tripID, feedtest.Arrive("S", now.Add(time.Duration(mins)*time.Minute)))
	}
	snap, err := Decode(b.MustBytes())
	require.NoError(t, err)
	require.Equal(t, 10, snap.Len())

	got := Extract(snap, "S", mapResolver{routes: routes}, routeOpts, now.UnixMilli())

	assert.Equal(t, Arrivals{"99": {1, 2, 3}}, got)
}

func TestExtract_KeepsUpdatesFromRepeatedTrips(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	raw := feedtest.NewBuilder(now).
		Trip("T1", feedtest.Arrive("S", now.Add(5*time.Minute))).
		Trip("T1", feedtest.Arrive("S", now.Add(10*time.Minute))).
		Trip("", feedtest.Arrive("S", now.Add(7*time.Minute))).
		Trip("", feedtest.Arrive("S", now.Add(9*time.Minute))).
		MustBytes()
	resolver := mapResolver{routes: map[string]string{"T1": "99"}}

	got, err := ExtractRaw(raw, "S", resolver, routeOpts, now.UnixMilli())
	require.NoError(t, err)
	assert.Equal(t, Arrivals{"99": {5, 10}, "Unknown": {7, 9}}, got)
}

func TestExtract_UnknownTripAndPastArrival(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	snap, err := Decode(feedtest.NewBuilder(now).
		Trip("ghost", feedtest.Arrive("S", now.Add(-4*time.Minute))).
		Trip("T1", feedtest.Arrive("S", now.Add(10*time.Minute))).
		MustBytes())
	require.NoError(t, err)

	got := Extract(snap, "S", mapResolver{routes: map[string]string{"T1": "R1"}}, routeOpts, now.UnixMilli())

	assert.Equal(t, Arrivals{"Unknown": {0}, "R1": {10}}, got)
}

func TestExtract_HeadsignMode(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := feedtest.NewBuilder(now)
	for i := 0; i < 5; i++ {
		b.Trip("T"+string(rune('0'+i)), feedtest.Arrive("S", now.Add(time.Duration(i+1)*time.Minute)))
	}
	snap, err := Decode(b.MustBytes())
	require.NoError(t, err)

	resolver := mapResolver{
		routes:    map[string]string{"T0": "99", "T1": "99", "T2": "99", "T3": "99", "T4": "14"},
		headsigns: map[string]string{"T0": "UBC", "T1": "UBC", "T2": "UBC", "T3": "UBC", "T4": "Hastings"},
	}

	byHeadsign := Extract(snap, "S", resolver, routeOpts.WithMode(GroupByHeadsign), now.UnixMilli())
	assert.Equal(t, Arrivals{"UBC": {1, 2, 3, 4}, "Hastings": {5}}, byHeadsign)

	byRoute := Extract(snap, "S", resolver, routeOpts, now.UnixMilli())
	assert.Equal(t, Arrivals{"99": {1, 2, 3}, "14": {5}}, byRoute)
}

func TestExtract_NoPredictionsForStop(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	snap, err := Decode(feedtest.NewBuilder(now).
		Trip("T1", feedtest.Arrive("other", now.Add(time.Minute))).
		MustBytes())
	require.NoError(t, err)

	got := Extract(snap, "S", mapResolver{}, routeOpts, now.UnixMilli())
	assert.NotNil(t, got)
	assert.Empty(t, got)

	assert.Empty(t, Extract(nil, "S", mapResolver{}, routeOpts, now.UnixMilli()))
}

func TestExtract_Deterministic(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	raw := feedtest.NewBuilder(now).
		Trip("T1", feedtest.Arrive("S", now.Add(4*time.Minute))).
		Trip("T2", feedtest.Arrive("S", now.Add(2*time.Minute))).
		Trip("T3", feedtest.Arrive("S", now.Add(8*time.Minute))).
		MustBytes()
	resolver := mapResolver{routes: map[string]string{"T1": "99", "T2": "14", "T3": "99"}}

	first, err := ExtractRaw(raw, "S", resolver, routeOpts, now.UnixMilli())
	require.NoError(t, err)
	second, err := ExtractRaw(raw, "S", resolver, routeOpts, now.UnixMilli())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"14", "99"}, first.Labels())
}

func TestExtractRaw_DecodeError(t *testing.T) {
	got, err := ExtractRaw([]byte("definitely not protobuf"), "S", mapResolver{}, routeOpts, 0)
	assert.Nil(t, got)

	var decErr *DecodeError
	assert.ErrorAs(t, err, &decErr)
}

func TestParseGroupMode(t *testing.T) {
	mode, err := ParseGroupMode("Route")
	require.NoError(t, err)
	assert.Equal(t, GroupByRoute, mode)

	mode, err = ParseGroupMode(" headsign ")
	require.NoError(t, err)
	assert.Equal(t, GroupByHeadsign, mode)

	_, err = ParseGroupMode("direction")
	assert.Error(t, err)
}

func TestExtractOptions_Cap(t *testing.T) {
	assert.Equal(t, 3, routeOpts.Cap())
	assert.Equal(t, 100, routeOpts.WithMode(GroupByHeadsign).Cap())
	assert.Equal(t, GroupByRoute, routeOpts.WithMode("").Mode)
}
