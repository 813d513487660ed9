package webui

import (
	"bytes"
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"
)

//go:embed static
var staticFS embed.FS

// Embedded files carry no modification time; use process start so
// conditional requests still work.
var startedAt = time.Now()

var allowedExtensions = map[string]bool{
	".html": true, ".css": true, ".js": true,
	".png": true, ".jpg": true, ".jpeg": true, ".svg": true,
	".ico": true,
}

func (webUI *WebUI) indexHandler(w http.ResponseWriter, r *http.Request) {
	serveStatic(w, r, "index.html")
}

// staticHandler serves whitelisted assets from the embedded static directory.
// Anything else, including traversal attempts, is a plain 404.
func (webUI *WebUI) staticHandler(w http.ResponseWriter, r *http.Request) {
	fileName := path.Base(r.URL.Path)

	ext := strings.ToLower(path.Ext(fileName))
	if !allowedExtensions[ext] {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	if strings.Contains(fileName, "..") || strings.ContainsAny(fileName, "/\\\x00") {
		slog.Warn("potential path traversal attempt blocked", "path", r.URL.Path)
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	serveStatic(w, r, fileName)
}

func serveStatic(w http.ResponseWriter, r *http.Request, fileName string) {
	data, err := fs.ReadFile(staticFS, "static/"+fileName)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	http.ServeContent(w, r, fileName, startedAt, bytes.NewReader(data))
}
