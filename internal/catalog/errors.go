package catalog

import (
	"errors"
	"fmt"
)

// ErrNotModified is returned by a Source when the remote copy has not changed
// since the previous load.
var ErrNotModified = errors.New("catalog source not modified")

// LoadError reports a catalog source that is missing or malformed.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load catalog from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
