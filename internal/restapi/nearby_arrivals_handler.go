package restapi

import (
	"net/http"

	"buswisely.org/internal/arrivals"
	"buswisely.org/internal/models"
)

// nearbyArrivalsHandler serves GET /api/nearby-arrivals?lat=&lon=&mode=.
func (api *RestAPI) nearbyArrivalsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	point, err := arrivals.ParseCoordinate(q.Get("lat"), q.Get("lon"))
	if err != nil {
		api.handleServiceError(w, r, err)
		return
	}
	mode, err := arrivals.ParseMode(q.Get("mode"))
	if err != nil {
		api.handleServiceError(w, r, err)
		return
	}

	agg, err := api.Arrivals.Aggregate(r.Context(), point.Lat, point.Lon, mode)
	if err != nil {
		api.handleServiceError(w, r, err)
		return
	}

	api.sendOK(w, r, models.NewNearbyArrivalsData(agg))
}
