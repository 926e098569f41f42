package ingest

import "time"

// Event is one ride-lifecycle fact published to Kafka. The consumer folds
// these into Redis counters and a recent-activity feed.
type Event struct {
	Type      string    `json:"type"`
	RideID    string    `json:"ride_id"`
	RequestID string    `json:"request_id,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	At        time.Time `json:"at"`
}

const (
	EventRideCreated      = "ride_created"
	EventRequestSubmitted = "request_submitted"
	EventRequestAccepted  = "request_accepted"
	EventRequestRejected  = "request_rejected"
	EventRequestCancelled = "request_cancelled"
)
