package app

import (
	"crypto/subtle"
	"errors"
	"net/http"
)

// APIKeyParam is the query parameter inbound clients send their key in.
const APIKeyParam = "key"

var (
	ErrAPIKeyMissing = errors.New("api key missing")
	ErrAPIKeyUnknown = errors.New("api key not recognised")
)

// RequestAPIKey returns the key a request presents, or "".
func RequestAPIKey(r *http.Request) string {
	return r.URL.Query().Get(APIKeyParam)
}

// RequiresAPIKey reports whether inbound requests must carry a key. With no
// keys configured the API is open.
func (app *Application) RequiresAPIKey() bool {
	return len(app.Config.ApiKeys) > 0
}

// CheckAPIKey returns nil when r may use the API, ErrAPIKeyMissing when a key
// is required but absent and ErrAPIKeyUnknown when it matches no configured
// key.
func (app *Application) CheckAPIKey(r *http.Request) error {
	if !app.RequiresAPIKey() {
		return nil
	}
	key := RequestAPIKey(r)
	if key == "" {
		return ErrAPIKeyMissing
	}
	if !app.AcceptsAPIKey(key) {
		return ErrAPIKeyUnknown
	}
	return nil
}

// AcceptsAPIKey compares key against every configured key in constant time,
// so the time taken does not reveal which key, if any, matched.
func (app *Application) AcceptsAPIKey(key string) bool {
	if key == "" {
		return false
	}
	matched := 0
	for _, configured := range app.Config.ApiKeys {
		matched |= subtle.ConstantTimeCompare([]byte(key), []byte(configured))
	}
	return matched == 1
}
