package models

import "buswisely.org/internal/catalog"

// StopModel keeps the record field names of the static stop data.
type StopModel struct {
	ID   string  `json:"stop_id"`
	Name string  `json:"stop_name"`
	Lat  float64 `json:"stop_lat"`
	Lon  float64 `json:"stop_lon"`
}

func NewStopModel(stop catalog.Stop) StopModel {
	return StopModel{
		ID:   stop.ID,
		Name: stop.Name,
		Lat:  stop.Lat,
		Lon:  stop.Lon,
	}
}

// NewStopModels converts stops, preserving order. The result is never nil.
func NewStopModels(stops []catalog.Stop) []StopModel {
	out := make([]StopModel, 0, len(stops))
	for _, s := range stops {
		out = append(out, NewStopModel(s))
	}
	return out
}
