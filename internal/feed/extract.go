package feed

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// GroupMode selects the label arrivals are grouped under.
type GroupMode string

const (
	GroupByRoute    GroupMode = "route"
	GroupByHeadsign GroupMode = "headsign"
)

// ParseGroupMode accepts "route" or "headsign", case-insensitively.
func ParseGroupMode(s string) (GroupMode, error) {
	switch GroupMode(strings.ToLower(strings.TrimSpace(s))) {
	case GroupByRoute:
		return GroupByRoute, nil
	case GroupByHeadsign:
		return GroupByHeadsign, nil
	default:
		return "", fmt.Errorf("unknown group mode %q: expected %q or %q", s, GroupByRoute, GroupByHeadsign)
	}
}

// TripResolver maps a trip id to its rider-facing labels. catalog.Index
// satisfies it.
type TripResolver interface {
	ResolveTrip(tripID string) (routeShortName, headsign string)
}

// ExtractOptions carries the grouping mode and the per-mode caps.
// A cap of zero or less leaves groups untruncated.
type ExtractOptions struct {
	Mode        GroupMode
	RouteCap    int
	HeadsignCap int
}

// Cap is the truncation length for the active mode.
func (o ExtractOptions) Cap() int {
	if o.Mode == GroupByHeadsign {
		return o.HeadsignCap
	}
	return o.RouteCap
}

// WithMode returns a copy of o using mode. An empty mode keeps the current one.
func (o ExtractOptions) WithMode(mode GroupMode) ExtractOptions {
	if mode != "" {
		o.Mode = mode
	}
	return o
}

func (o ExtractOptions) label(r TripResolver, tripID string) string {
	routeShortName, headsign := r.ResolveTrip(tripID)
	if o.Mode == GroupByHeadsign {
		return headsign
	}
	return routeShortName
}

// Arrivals maps a label to ascending minutes until arrival.
type Arrivals map[string][]int

// Labels returns the group labels in sorted order.
func (a Arrivals) Labels() []string {
	labels := make([]string, 0, len(a))
	for label := range a {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// MinutesUntil converts an arrival time in epoch seconds to whole minutes from
// nowMs, rounded to nearest and never negative.
func MinutesUntil(arrivalEpochSeconds, nowMs int64) int {
	diff := float64(arrivalEpochSeconds*1000-nowMs) / 60000
	minutes := math.Round(diff)
	if minutes < 0 {
		return 0
	}
	return int(minutes)
}

// Extract groups the snapshot's predictions for stopID by label, sorts each
// group ascending and truncates it to the mode's cap.
func Extract(snap *Snapshot, stopID string, resolver TripResolver, opts ExtractOptions, nowMs int64) Arrivals {
	result := Arrivals{}
	if snap == nil {
		return result
	}

	for _, p := range snap.PredictionsForStop(stopID) {
		label := opts.label(resolver, p.TripID)
		result[label] = append(result[label], MinutesUntil(p.ArrivalTime.Unix(), nowMs))
	}

	limit := opts.Cap()
	for label, minutes := range result {
		sort.Ints(minutes)
		if limit > 0 && len(minutes) > limit {
			minutes = minutes[:limit:limit]
		}
		result[label] = minutes
	}

	return result
}

// ExtractRaw decodes raw and extracts arrivals for stopID in one step.
func ExtractRaw(raw []byte, stopID string, resolver TripResolver, opts ExtractOptions, nowMs int64) (Arrivals, error) {
	snap, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return Extract(snap, stopID, resolver, opts, nowMs), nil
}
