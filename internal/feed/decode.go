// Package feed fetches the GTFS-realtime trip update feed, decodes it once,
// and extracts per-stop arrival minutes from the decoded snapshot.
package feed

import (
	"time"

	gtfsrt "github.com/OneBusAway/go-gtfs/proto"
	"google.golang.org/protobuf/proto"
)

// Prediction is one predicted arrival of a trip at a stop.
type Prediction struct {
	StopID      string
	TripID      string
	ArrivalTime time.Time
}

// Snapshot is a decoded feed. It is read-only after Decode returns, so one
// snapshot can serve any number of concurrent extractions.
type Snapshot struct {
	// CreatedAt is the feed header timestamp. See HasTimestamp.
	CreatedAt   time.Time
	predictions []Prediction
	byStop      map[string][]int
}

// Decode parses raw GTFS-realtime bytes. Every stop-time update of every
// trip update entity is kept, in feed order, even when several entities
// carry the same trip id or none at all. Updates without a stop id or an
// arrival time are dropped.
func Decode(raw []byte) (*Snapshot, error) {
	msg := &gtfsrt.FeedMessage{}
	if err := proto.Unmarshal(raw, msg); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return newSnapshot(msg), nil
}

func newSnapshot(msg *gtfsrt.FeedMessage) *Snapshot {
	snap := &Snapshot{byStop: make(map[string][]int)}
	if ts := msg.GetHeader().GetTimestamp(); ts != 0 {
		snap.CreatedAt = time.Unix(int64(ts), 0).UTC()
	}

	for _, entity := range msg.GetEntity() {
		tripUpdate := entity.GetTripUpdate()
		if tripUpdate == nil || entity.GetIsDeleted() {
			continue
		}
		tripID := tripUpdate.GetTrip().GetTripId()

		for _, stu := range tripUpdate.GetStopTimeUpdate() {
			stopID := stu.GetStopId()
			if stopID == "" {
				continue
			}
			arrival := stu.GetArrival()
			if arrival == nil || arrival.Time == nil {
				continue
			}
			snap.byStop[stopID] = append(snap.byStop[stopID], len(snap.predictions))
			snap.predictions = append(snap.predictions, Prediction{
				StopID:      stopID,
				TripID:      tripID,
				ArrivalTime: time.Unix(arrival.GetTime(), 0).UTC(),
			})
		}
	}

	return snap
}

// HasTimestamp reports whether the feed header carried a timestamp.
func (s *Snapshot) HasTimestamp() bool {
	return !s.CreatedAt.IsZero() && s.CreatedAt.Unix() != 0
}

// Len is the number of usable predictions in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.predictions)
}

// PredictionsForStop returns the predictions for one stop in feed order.
func (s *Snapshot) PredictionsForStop(stopID string) []Prediction {
	indices := s.byStop[stopID]
	out := make([]Prediction, len(indices))
	for i, idx := range indices {
		out[i] = s.predictions[idx]
	}
	return out
}
