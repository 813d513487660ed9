// Package catalog holds the static stop, trip and route reference data.
//
// An Index is built once from the three record sets and is never mutated
// afterwards, so any number of goroutines may read it without locking.
// Store swaps whole indexes in when the source is refreshed.
package catalog

// UnknownLabel is returned for trips that cannot be resolved to a route or headsign.
const UnknownLabel = "Unknown"

// Stop is a boarding location.
type Stop struct {
	ID   string  `json:"stop_id"`
	Name string  `json:"stop_name"`
	Lat  float64 `json:"stop_lat"`
	Lon  float64 `json:"stop_lon"`
}

// Trip is a scheduled journey on a route.
type Trip struct {
	ID       string `json:"trip_id"`
	RouteID  string `json:"route_id"`
	Headsign string `json:"trip_headsign"`
}

// Route is a rider-facing line.
type Route struct {
	ID        string `json:"route_id"`
	ShortName string `json:"route_short_name"`
}

// TripLabels are the two rider-facing labels a trip can be grouped by.
type TripLabels struct {
	RouteShortName string
	Headsign       string
}

// Stats summarises the size of an index.
type Stats struct {
	Stops  int `json:"stops"`
	Trips  int `json:"trips"`
	Routes int `json:"routes"`
}

// Index is the immutable lookup structure built from a catalog source.
type Index struct {
	stops     []Stop
	trips     []Trip
	routes    []Route
	stopsByID map[string]int
	tripIndex map[string]TripLabels
}

// NewIndex joins trips to routes once and indexes stops by id.
// When ids repeat, the first record wins.
func NewIndex(stops []Stop, trips []Trip, routes []Route) *Index {
	idx := &Index{
		stops:     append([]Stop(nil), stops...),
		trips:     append([]Trip(nil), trips...),
		routes:    append([]Route(nil), routes...),
		stopsByID: make(map[string]int, len(stops)),
		tripIndex: make(map[string]TripLabels, len(trips)),
	}

	for i, stop := range idx.stops {
		if _, exists := idx.stopsByID[stop.ID]; !exists {
			idx.stopsByID[stop.ID] = i
		}
	}

	shortNames := make(map[string]string, len(routes))
	for _, route := range idx.routes {
		if _, exists := shortNames[route.ID]; !exists {
			shortNames[route.ID] = route.ShortName
		}
	}

	for _, trip := range idx.trips {
		if _, exists := idx.tripIndex[trip.ID]; exists {
			continue
		}
		idx.tripIndex[trip.ID] = TripLabels{
			RouteShortName: labelOrUnknown(shortNames[trip.RouteID]),
			Headsign:       labelOrUnknown(trip.Headsign),
		}
	}

	return idx
}

func labelOrUnknown(s string) string {
	if s == "" {
		return UnknownLabel
	}
	return s
}

// AllStops returns every stop in source order. The slice is a copy.
func (idx *Index) AllStops() []Stop {
	return append([]Stop(nil), idx.stops...)
}

// Stop looks up a stop by id.
func (idx *Index) Stop(id string) (Stop, bool) {
	i, ok := idx.stopsByID[id]
	if !ok {
		return Stop{}, false
	}
	return idx.stops[i], true
}

// ResolveTrip returns the route short name and headsign for a trip.
// Unknown trips resolve to ("Unknown", "Unknown").
func (idx *Index) ResolveTrip(tripID string) (routeShortName, headsign string) {
	labels, ok := idx.tripIndex[tripID]
	if !ok {
		return UnknownLabel, UnknownLabel
	}
	return labels.RouteShortName, labels.Headsign
}

// Trips returns a copy of the trip records.
func (idx *Index) Trips() []Trip {
	return append([]Trip(nil), idx.trips...)
}

// Routes returns a copy of the route records.
func (idx *Index) Routes() []Route {
	return append([]Route(nil), idx.routes...)
}

func (idx *Index) Stats() Stats {
	return Stats{
		Stops:  len(idx.stops),
		Trips:  len(idx.trips),
		Routes: len(idx.routes),
	}
}
