package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// flexString accepts a JSON string or number. Exported catalog files are not
// consistent about quoting ids.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}

// flexFloat accepts a JSON number or a numeric string.
type flexFloat struct {
	value float64
	set   bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = flexFloat{}
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*f = flexFloat{}
			return nil
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("invalid coordinate %s", b)
	}
	*f = flexFloat{value: v, set: true}
	return nil
}

type stopRecord struct {
	ID   flexString `json:"stop_id"`
	Name flexString `json:"stop_name"`
	Lat  flexFloat  `json:"stop_lat"`
	Lon  flexFloat  `json:"stop_lon"`
}

type tripRecord struct {
	ID       flexString `json:"trip_id"`
	RouteID  flexString `json:"route_id"`
	Headsign flexString `json:"trip_headsign"`
}

type routeRecord struct {
	ID        flexString `json:"route_id"`
	ShortName flexString `json:"route_short_name"`
}

// JSONFiles reads the three catalog record sets from JSON arrays. Each
// location is a file path or an http(s) URL.
type JSONFiles struct {
	StopsPath  string
	TripsPath  string
	RoutesPath string

	reader *resourceReader
}

// NewJSONFiles creates a JSON catalog source.
func NewJSONFiles(stopsPath, tripsPath, routesPath string, opts SourceOptions) *JSONFiles {
	return &JSONFiles{
		StopsPath:  stopsPath,
		TripsPath:  tripsPath,
		RoutesPath: routesPath,
		reader:     newResourceReader(opts.AuthHeaderKey, opts.AuthHeaderValue, opts.Logger),
	}
}

func (s *JSONFiles) Name() string {
	return fmt.Sprintf("json(stops=%s, trips=%s, routes=%s)", s.StopsPath, s.TripsPath, s.RoutesPath)
}

func (s *JSONFiles) Refreshable() bool {
	return isRemote(s.StopsPath) || isRemote(s.TripsPath) || isRemote(s.RoutesPath)
}

func (s *JSONFiles) Load(ctx context.Context) (*Index, error) {
	if s.reader == nil {
		s.reader = newResourceReader("", "", slog.Default())
	}

	stopsRes, err := s.readRequired(ctx, "stops", s.StopsPath)
	if err != nil {
		return nil, err
	}
	tripsRes, err := s.readRequired(ctx, "trips", s.TripsPath)
	if err != nil {
		return nil, err
	}
	routesRes, err := s.readRequired(ctx, "routes", s.RoutesPath)
	if err != nil {
		return nil, err
	}

	if !stopsRes.changed && !tripsRes.changed && !routesRes.changed {
		return nil, ErrNotModified
	}

	stops, err := decodeStops(stopsRes.body)
	if err != nil {
		return nil, &LoadError{Source: s.StopsPath, Err: err}
	}
	trips, err := decodeTrips(tripsRes.body)
	if err != nil {
		return nil, &LoadError{Source: s.TripsPath, Err: err}
	}
	routes, err := decodeRoutes(routesRes.body)
	if err != nil {
		return nil, &LoadError{Source: s.RoutesPath, Err: err}
	}

	idx := NewIndex(stops, trips, routes)
	s.reader.commit(stopsRes, tripsRes, routesRes)
	return idx, nil
}

func (s *JSONFiles) readRequired(ctx context.Context, kind, location string) (fetchedResource, error) {
	if location == "" {
		return fetchedResource{}, &LoadError{Source: kind, Err: errors.New("no location configured")}
	}
	res, err := s.reader.read(ctx, location)
	if err != nil {
		return fetchedResource{}, &LoadError{Source: location, Err: err}
	}
	return res, nil
}

func decodeStops(raw []byte) ([]Stop, error) {
	var records []stopRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("malformed stops: %w", err)
	}

	stops := make([]Stop, 0, len(records))
	for i, r := range records {
		id := strings.TrimSpace(string(r.ID))
		if id == "" {
			return nil, fmt.Errorf("stop record %d has no stop_id", i)
		}
		if !r.Lat.set || !r.Lon.set {
			return nil, fmt.Errorf("stop %q has no coordinates", id)
		}
		stops = append(stops, Stop{
			ID:   id,
			Name: string(r.Name),
			Lat:  r.Lat.value,
			Lon:  r.Lon.value,
		})
	}
	return stops, nil
}

func decodeTrips(raw []byte) ([]Trip, error) {
	var records []tripRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("malformed trips: %w", err)
	}

	trips := make([]Trip, 0, len(records))
	for i, r := range records {
		id := strings.TrimSpace(string(r.ID))
		if id == "" {
			return nil, fmt.Errorf("trip record %d has no trip_id", i)
		}
		trips = append(trips, Trip{
			ID:       id,
			RouteID:  strings.TrimSpace(string(r.RouteID)),
			Headsign: strings.TrimSpace(string(r.Headsign)),
		})
	}
	return trips, nil
}

func decodeRoutes(raw []byte) ([]Route, error) {
	var records []routeRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("malformed routes: %w", err)
	}

	routes := make([]Route, 0, len(records))
	for i, r := range records {
		id := strings.TrimSpace(string(r.ID))
		if id == "" {
			return nil, fmt.Errorf("route record %d has no route_id", i)
		}
		routes = append(routes, Route{
			ID:        id,
			ShortName: strings.TrimSpace(string(r.ShortName)),
		})
	}
	return routes, nil
}
