package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/OneBusAway/go-gtfs"
)

// GTFSZip reads stops.txt, trips.txt and routes.txt from a static GTFS archive.
// Location is a file path or an http(s) URL.
type GTFSZip struct {
	Location string

	reader *resourceReader
}

// NewGTFSZip creates a GTFS archive catalog source.
func NewGTFSZip(location string, opts SourceOptions) *GTFSZip {
	return &GTFSZip{
		Location: location,
		reader:   newResourceReader(opts.AuthHeaderKey, opts.AuthHeaderValue, opts.Logger),
	}
}

func (s *GTFSZip) Name() string {
	return "gtfs(" + s.Location + ")"
}

func (s *GTFSZip) Refreshable() bool {
	return isRemote(s.Location)
}

func (s *GTFSZip) Load(ctx context.Context) (*Index, error) {
	if s.Location == "" {
		return nil, &LoadError{Source: "gtfs", Err: errors.New("no location configured")}
	}
	if s.reader == nil {
		s.reader = newResourceReader("", "", slog.Default())
	}

	res, err := s.reader.read(ctx, s.Location)
	if err != nil {
		return nil, &LoadError{Source: s.Location, Err: err}
	}
	if !res.changed {
		return nil, ErrNotModified
	}

	staticData, err := gtfs.ParseStatic(res.body, gtfs.ParseStaticOptions{})
	if err != nil {
		return nil, &LoadError{Source: s.Location, Err: fmt.Errorf("error parsing GTFS data: %w", err)}
	}

	idx := indexFromStatic(staticData)
	s.reader.commit(res)
	return idx, nil
}

func indexFromStatic(staticData *gtfs.Static) *Index {
	stops := make([]Stop, 0, len(staticData.Stops))
	for _, s := range staticData.Stops {
		// Generic nodes and boarding areas may omit coordinates.
		if s.Latitude == nil || s.Longitude == nil {
			continue
		}
		stops = append(stops, Stop{
			ID:   s.Id,
			Name: s.Name,
			Lat:  *s.Latitude,
			Lon:  *s.Longitude,
		})
	}

	trips := make([]Trip, 0, len(staticData.Trips))
	for _, t := range staticData.Trips {
		var routeID string
		if t.Route != nil {
			routeID = t.Route.Id
		}
		trips = append(trips, Trip{
			ID:       t.ID,
			RouteID:  routeID,
			Headsign: t.Headsign,
		})
	}

	routes := make([]Route, 0, len(staticData.Routes))
	for _, r := range staticData.Routes {
		routes = append(routes, Route{
			ID:        r.Id,
			ShortName: r.ShortName,
		})
	}

	return NewIndex(stops, trips, routes)
}
