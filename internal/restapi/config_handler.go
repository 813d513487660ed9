package restapi

import (
	"net/http"
	"runtime/debug"

	"buswisely.org/internal/models"
)

func buildProperties() models.BuildProperties {
	props := models.BuildProperties{
		Version:  "unknown",
		Revision: "unknown",
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return props
	}
	props.GoVersion = info.GoVersion
	if info.Main.Version != "" {
		props.Version = info.Main.Version
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			props.Revision = setting.Value
		case "vcs.time":
			props.BuildTime = setting.Value
		case "vcs.modified":
			props.Dirty = setting.Value
		}
	}
	return props
}

// configHandler serves GET /api/config: the effective public configuration.
// Credentials are never included.
func (api *RestAPI) configHandler(w http.ResponseWriter, r *http.Request) {
	cfg := api.Config
	entry := models.ConfigModel{
		BuildProperties: buildProperties(),
		Id:              "buswisely",
		Name:            "BusWisely arrivals",
		Env:             string(cfg.Env),
		GroupMode:       cfg.Feed.GroupMode,
		StopLimit:       cfg.Nearby.StopLimit,
		RouteCap:        cfg.Feed.RouteCap,
		HeadsignCap:     cfg.Feed.HeadsignCap,
	}
	if api.Fetcher != nil {
		entry.FeedURL = api.Fetcher.URL()
	}
	if api.Catalog != nil && api.Catalog.IsReady() {
		entry.Catalog = api.Catalog.Current().Stats()
		entry.CatalogLoadedAt = api.Catalog.LastUpdated().UnixMilli()
	}

	api.sendOK(w, r, entry)
}
