package models

import (
	"buswisely.org/internal/arrivals"
	"buswisely.org/internal/feed"
)

// NearbyArrivalsData is the payload of the nearby-arrivals endpoint.
// Arrivals maps stop id to label to ascending minutes.
type NearbyArrivalsData struct {
	Stops       []StopModel                 `json:"stops"`
	Arrivals    map[string]map[string][]int `json:"arrivals"`
	Mode        string                      `json:"mode"`
	Stale       bool                        `json:"stale"`
	GeneratedAt int64                       `json:"generatedAt"`
}

// ArrivalsMap converts feed arrivals to a plain map so empty groups encode as {}.
func ArrivalsMap(a feed.Arrivals) map[string][]int {
	out := make(map[string][]int, len(a))
	for label, minutes := range a {
		out[label] = minutes
	}
	return out
}

func NewNearbyArrivalsData(agg *arrivals.Aggregation) NearbyArrivalsData {
	byStop := make(map[string]map[string][]int, len(agg.ByStop))
	for stopID, a := range agg.ByStop {
		byStop[stopID] = ArrivalsMap(a)
	}
	return NearbyArrivalsData{
		Stops:       NewStopModels(agg.Stops),
		Arrivals:    byStop,
		Mode:        string(agg.Mode),
		Stale:       agg.Stale,
		GeneratedAt: agg.GeneratedAt.UnixMilli(),
	}
}
