// Package nearby ranks catalog stops by distance from a point and collapses
// stops that share a physical location.
package nearby

import (
	"sort"
	"strings"

	"buswisely.org/internal/catalog"
	"buswisely.org/internal/utils"
)

// RankedStop is a stop with its distance from the query point.
type RankedStop struct {
	catalog.Stop
	DistanceKm float64
}

// Rank orders stops by haversine distance from point, nearest first.
// Equal distances keep their catalog order. The input slice is not modified.
func Rank(point utils.Point, stops []catalog.Stop) []RankedStop {
	ranked := make([]RankedStop, len(stops))
	for i, stop := range stops {
		ranked[i] = RankedStop{
			Stop:       stop,
			DistanceKm: utils.HaversineKm(point.Lat, point.Lon, stop.Lat, stop.Lon),
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DistanceKm < ranked[j].DistanceKm
	})

	return ranked
}

// DedupeKey is the part of a stop name before the first "@", trimmed.
// "Main St @ 1st Ave" and "Main St @ 2nd Ave" share the key "Main St".
func DedupeKey(name string) string {
	prefix, _, _ := strings.Cut(name, "@")
	return strings.TrimSpace(prefix)
}

// Dedupe walks ranked stops in order and keeps the first stop for each
// DedupeKey, stopping once limit unique stops have been collected.
func Dedupe(ranked []RankedStop, limit int) []catalog.Stop {
	if limit <= 0 {
		return []catalog.Stop{}
	}

	seen := make(map[string]struct{}, limit)
	result := make([]catalog.Stop, 0, min(limit, len(ranked)))

	for _, rs := range ranked {
		key := DedupeKey(rs.Name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, rs.Stop)
		if len(result) == limit {
			break
		}
	}

	return result
}

// Nearest ranks stops around point and returns up to limit distinct locations.
func Nearest(point utils.Point, stops []catalog.Stop, limit int) []catalog.Stop {
	return Dedupe(Rank(point, stops), limit)
}
