package restapi

import (
	"net/http"
	"strings"

	"buswisely.org/internal/arrivals"
	"buswisely.org/internal/models"
)

// arrivalsHandler serves GET /api/arrivals?stopNo=&mode=: minutes until
// arrival at one stop, grouped by route or headsign.
func (api *RestAPI) arrivalsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	stopID := strings.TrimSpace(q.Get("stopNo"))
	mode, err := arrivals.ParseMode(q.Get("mode"))
	if err != nil {
		api.handleServiceError(w, r, err)
		return
	}

	result, err := api.Arrivals.ArrivalsForStop(r.Context(), stopID, mode)
	if err != nil {
		api.handleServiceError(w, r, err)
		return
	}

	api.sendOK(w, r, models.ArrivalsMap(result))
}
