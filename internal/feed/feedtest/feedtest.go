// Package feedtest builds GTFS-realtime protobuf bodies for tests.
package feedtest

import (
	"fmt"
	"time"

	gtfsrt "github.com/OneBusAway/go-gtfs/proto"
	"google.golang.org/protobuf/proto"
)

// StopTime is one stop-time update inside a trip update.
type StopTime struct {
	StopID    string
	Arrival   *time.Time
	Departure *time.Time
}

// Arrive is a stop-time update with a predicted arrival.
func Arrive(stopID string, at time.Time) StopTime {
	return StopTime{StopID: stopID, Arrival: &at}
}

// Depart is a departure-only stop-time update.
func Depart(stopID string, at time.Time) StopTime {
	return StopTime{StopID: stopID, Departure: &at}
}

// Builder accumulates feed entities.
type Builder struct {
	msg *gtfsrt.FeedMessage
}

// NewBuilder starts a feed whose header carries timestamp. A zero timestamp
// leaves the header field unset.
func NewBuilder(timestamp time.Time) *Builder {
	header := &gtfsrt.FeedHeader{
		GtfsRealtimeVersion: proto.String("2.0"),
	}
	if !timestamp.IsZero() {
		header.Timestamp = proto.Uint64(uint64(timestamp.Unix()))
	}
	return &Builder{msg: &gtfsrt.FeedMessage{Header: header}}
}

func (b *Builder) nextID() *string {
	return proto.String(fmt.Sprintf("entity-%d", len(b.msg.Entity)+1))
}

// Trip adds a trip update entity. An empty tripID leaves trip_id unset.
func (b *Builder) Trip(tripID string, stops ...StopTime) *Builder {
	updates := make([]*gtfsrt.TripUpdate_StopTimeUpdate, 0, len(stops))
	for _, st := range stops {
		stu := &gtfsrt.TripUpdate_StopTimeUpdate{}
		if st.StopID != "" {
			stu.StopId = proto.String(st.StopID)
		}
		if st.Arrival != nil {
			stu.Arrival = &gtfsrt.TripUpdate_StopTimeEvent{Time: proto.Int64(st.Arrival.Unix())}
		}
		if st.Departure != nil {
			stu.Departure = &gtfsrt.TripUpdate_StopTimeEvent{Time: proto.Int64(st.Departure.Unix())}
		}
		updates = append(updates, stu)
	}

	descriptor := &gtfsrt.TripDescriptor{}
	if tripID != "" {
		descriptor.TripId = proto.String(tripID)
	}

	b.msg.Entity = append(b.msg.Entity, &gtfsrt.FeedEntity{
		Id: b.nextID(),
		TripUpdate: &gtfsrt.TripUpdate{
			Trip:           descriptor,
			StopTimeUpdate: updates,
		},
	})
	return b
}

// Vehicle adds a vehicle position entity with no trip update.
func (b *Builder) Vehicle(vehicleID string) *Builder {
	b.msg.Entity = append(b.msg.Entity, &gtfsrt.FeedEntity{
		Id: b.nextID(),
		Vehicle: &gtfsrt.VehiclePosition{
			Vehicle: &gtfsrt.VehicleDescriptor{Id: proto.String(vehicleID)},
		},
	})
	return b
}

// Bytes marshals the feed.
func (b *Builder) Bytes() ([]byte, error) {
	return proto.Marshal(b.msg)
}

// MustBytes marshals the feed and panics on failure.
func (b *Builder) MustBytes() []byte {
	raw, err := b.Bytes()
	if err != nil {
		panic(err)
	}
	return raw
}
