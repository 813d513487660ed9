package webui

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/davecgh/go-spew/spew"

	"buswisely.org/internal/appconf"
)

//go:embed debug_index.html
var templateFS embed.FS

var debugTemplate = template.Must(template.ParseFS(templateFS, "debug_index.html"))

const redacted = "[redacted]"

type debugData struct {
	Title string
	Pre   string
}

func writeDebugData(w http.ResponseWriter, title string, data interface{}) {
	content := spew.Sdump(data)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	dataStruct := debugData{
		Title: title,
		Pre:   content,
	}

	if err := debugTemplate.Execute(w, dataStruct); err != nil {
		slog.Error("failed to execute debug template", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// redactConfig blanks every credential before the config is dumped.
func redactConfig(cfg appconf.Config) appconf.Config {
	if cfg.Feed.APIKey != "" {
		cfg.Feed.APIKey = redacted
	}
	if cfg.Feed.AuthHeaderValue != "" {
		cfg.Feed.AuthHeaderValue = redacted
	}
	if cfg.Catalog.AuthHeaderValue != "" {
		cfg.Catalog.AuthHeaderValue = redacted
	}
	keys := make([]string, len(cfg.ApiKeys))
	for i := range keys {
		keys[i] = redacted
	}
	cfg.ApiKeys = keys
	return cfg
}

func (webUI *WebUI) debugIndexHandler(w http.ResponseWriter, r *http.Request) {
	if webUI.Config.Env == appconf.Production {
		http.NotFound(w, r)
		return
	}
	dataType := r.URL.Query().Get("dataType")

	var data interface{}
	var title string

	if dataType == "config" {
		writeDebugData(w, "Effective Configuration", redactConfig(webUI.Config))
		return
	}

	if webUI.Catalog == nil || webUI.Catalog.Current() == nil {
		writeDebugData(w, "Catalog not loaded", map[string]string{"error": "the stop catalog is not loaded yet"})
		return
	}
	idx := webUI.Catalog.Current()

	switch dataType {
	case "stops":
		data = idx.AllStops()
		title = "Static Catalog - Stops"
	case "trips":
		data = idx.Trips()
		title = "Static Catalog - Trips"
	case "routes":
		data = idx.Routes()
		title = "Static Catalog - Routes"
	case "realtime":
		title = "Realtime Feed - Snapshot"
		snap, err := webUI.Arrivals.Snapshot(r.Context())
		if err != nil {
			data = map[string]string{"error": err.Error()}
		} else {
			data = snap
		}
	default:
		data = map[string]string{
			"error": "Please use one of the following: stops, trips, routes, config, realtime.",
		}
		title = "Choose a data type"
	}

	writeDebugData(w, title, data)
}
