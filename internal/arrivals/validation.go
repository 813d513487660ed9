package arrivals

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"buswisely.org/internal/feed"
	"buswisely.org/internal/utils"
)

// MaxStopIDLength bounds accepted stop identifiers.
const MaxStopIDLength = 64

// ValidationError reports a missing or malformed query input. It is returned
// before any I/O is attempted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// FieldErrors renders the error in the {field: [messages]} shape used by the
// REST layer.
func (e *ValidationError) FieldErrors() map[string][]string {
	return map[string][]string{e.Field: {e.Message}}
}

// ParseCoordinate parses lat/lon query strings into a point.
func ParseCoordinate(latStr, lonStr string) (utils.Point, error) {
	lat, err := parseAxis("lat", latStr, 90)
	if err != nil {
		return utils.Point{}, err
	}
	lon, err := parseAxis("lon", lonStr, 180)
	if err != nil {
		return utils.Point{}, err
	}
	return utils.Point{Lat: lat, Lon: lon}, nil
}

func parseAxis(field, raw string, bound float64) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, &ValidationError{Field: field, Message: "is required"}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ValidationError{Field: field, Message: "must be a number"}
	}
	if v < -bound || v > bound {
		return 0, &ValidationError{Field: field, Message: fmt.Sprintf("must be between -%g and %g", bound, bound)}
	}
	return v, nil
}

func validatePoint(p utils.Point) error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return &ValidationError{Field: "lat", Message: "must be between -90 and 90"}
	}
	if math.IsNaN(p.Lon) || p.Lon < -180 || p.Lon > 180 {
		return &ValidationError{Field: "lon", Message: "must be between -180 and 180"}
	}
	return nil
}

// ValidateStopID rejects empty, oversized or non-printable stop identifiers.
func ValidateStopID(stopID string) error {
	if strings.TrimSpace(stopID) == "" {
		return &ValidationError{Field: "stopNo", Message: "is required"}
	}
	if len(stopID) > MaxStopIDLength {
		return &ValidationError{Field: "stopNo", Message: fmt.Sprintf("must be at most %d characters", MaxStopIDLength)}
	}
	for _, r := range stopID {
		if unicode.IsControl(r) {
			return &ValidationError{Field: "stopNo", Message: "contains invalid characters"}
		}
	}
	return nil
}

// ParseMode resolves the optional mode query parameter. Empty keeps the
// configured default.
func ParseMode(raw string) (feed.GroupMode, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	mode, err := feed.ParseGroupMode(raw)
	if err != nil {
		return "", &ValidationError{Field: "mode", Message: fmt.Sprintf("must be %q or %q", feed.GroupByRoute, feed.GroupByHeadsign)}
	}
	return mode, nil
}
