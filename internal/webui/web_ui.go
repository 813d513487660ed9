// Package webui serves the bundled lookup page and the developer debug
// pages.
package webui

import (
	"net/http"

	"buswisely.org/internal/app"
)

type WebUI struct {
	*app.Application
}

// SetWebUIRoutes registers the page, its assets and the debug dump on mux.
func (webUI *WebUI) SetWebUIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", webUI.indexHandler)
	mux.HandleFunc("GET /static/", webUI.staticHandler)
	mux.HandleFunc("GET /debug/", webUI.debugIndexHandler)
}
