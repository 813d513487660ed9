package models

import "buswisely.org/internal/catalog"

// BuildProperties describes the running binary.
type BuildProperties struct {
	Version   string `json:"build.version"`
	GoVersion string `json:"build.go.version"`
	Revision  string `json:"vcs.revision"`
	BuildTime string `json:"vcs.time"`
	Dirty     string `json:"vcs.modified"`
}

// ConfigModel is the public view of the service configuration.
type ConfigModel struct {
	BuildProperties BuildProperties `json:"buildProperties"`
	Id              string          `json:"id"`
	Name            string          `json:"name"`
	Env             string          `json:"env"`
	FeedURL         string          `json:"feedUrl"`
	GroupMode       string          `json:"groupMode"`
	StopLimit       int             `json:"stopLimit"`
	RouteCap        int             `json:"routeCap"`
	HeadsignCap     int             `json:"headsignCap"`
	Catalog         catalog.Stats   `json:"catalog"`
	CatalogLoadedAt int64           `json:"catalogLoadedAt"`
}
