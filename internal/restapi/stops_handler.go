package restapi

import (
	"log/slog"
	"net/http"

	"buswisely.org/internal/arrivals"
	"buswisely.org/internal/logging"
	"buswisely.org/internal/models"
)

// stopsHandler serves GET /api/stops?lat=&lon=: the nearest distinct stops.
func (api *RestAPI) stopsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	point, err := arrivals.ParseCoordinate(q.Get("lat"), q.Get("lon"))
	if err != nil {
		api.handleServiceError(w, r, err)
		return
	}

	stops, err := api.Arrivals.NearbyStops(r.Context(), point.Lat, point.Lon)
	if err != nil {
		api.handleServiceError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Debug("nearby stops resolved",
		slog.Float64("lat", point.Lat),
		slog.Float64("lon", point.Lon),
		slog.Int("count", len(stops)))

	api.sendOK(w, r, models.NewStopModels(stops))
}
