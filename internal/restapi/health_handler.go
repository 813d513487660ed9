package restapi

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse represents the JSON response from the health endpoint.
type HealthResponse struct {
	Status          string `json:"status"`
	Detail          string `json:"detail,omitempty"`
	Stops           int    `json:"stops,omitempty"`
	CatalogLoadedAt string `json:"catalogLoadedAt,omitempty"`
}

// healthHandler reports readiness. It returns 503 until a catalog is loaded;
// the realtime feed is not contacted.
func (api *RestAPI) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if api.Application == nil || api.Catalog == nil || api.Arrivals == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(HealthResponse{
			Status: "unavailable",
			Detail: "application not initialized",
		})
		return
	}

	if !api.Catalog.IsReady() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(HealthResponse{
			Status: "starting",
			Detail: "stop catalog is not loaded",
		})
		return
	}

	resp := HealthResponse{
		Status: "ok",
		Stops:  api.Catalog.Current().Stats().Stops,
	}
	if loaded := api.Catalog.LastUpdated(); !loaded.IsZero() {
		resp.CatalogLoadedAt = loaded.UTC().Format(time.RFC3339)
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
