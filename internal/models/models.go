package models

import "time"

// Coordinate is a WGS-84 point in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Direction of a search relative to the student's efterskole.
type Direction string

const (
	DirectionToSchool   Direction = "to_school"
	DirectionFromSchool Direction = "from_school"
)

type RideStatus string

const (
	RideActive    RideStatus = "active"
	RideCancelled RideStatus = "cancelled"
	RideCompleted RideStatus = "completed"
)

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestAccepted  RequestStatus = "accepted"
	RequestRejected  RequestStatus = "rejected"
	RequestCancelled RequestStatus = "cancelled"
)

// Ride is a driver-posted carpool offer between two locations at a fixed
// departure time. Coordinates are optional: rides created from free text
// carry only labels.
type Ride struct {
	ID                string      `json:"id"`
	DriverID          string      `json:"driver_id"`
	DepartureLocation string      `json:"departure_location"`
	DepartureCoord    *Coordinate `json:"departure_coord,omitempty"`
	Destination       string      `json:"destination"`
	DestinationCoord  *Coordinate `json:"destination_coord,omitempty"`
	DepartureTime     time.Time   `json:"departure_time"`
	AvailableSeats    int         `json:"available_seats"`
	PricePerSeat      *float64    `json:"price_per_seat,omitempty"`
	PickupSpots       []string    `json:"pickup_spots,omitempty"`
	Description       string      `json:"description,omitempty"`
	Status            RideStatus  `json:"status"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// RideRequest is a passenger's bid for seats on a ride. For a given
// (ride, passenger) pair at most one request may be pending or accepted at a
// time; the storage layer enforces this.
type RideRequest struct {
	ID             string        `json:"id"`
	RideID         string        `json:"ride_id"`
	PassengerID    string        `json:"passenger_id"`
	PickupLocation string        `json:"pickup_location"`
	SeatsRequested int           `json:"seats_requested"`
	Message        string        `json:"message,omitempty"`
	Status         RequestStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// SearchQuery is the ephemeral input to the match filter. Coordinates are set
// only when the user picked a geocoded suggestion; free-typed text leaves them
// nil and the filter falls back to substring matching.
type SearchQuery struct {
	Direction        Direction   `json:"direction"`
	Departure        string      `json:"departure"`
	DepartureCoord   *Coordinate `json:"departure_coord,omitempty"`
	Destination      string      `json:"destination"`
	DestinationCoord *Coordinate `json:"destination_coord,omitempty"`
	RadiusKm         float64     `json:"radius_km"`
}

// SearchRadiiKm are the radius choices offered by the UI.
var SearchRadiiKm = []float64{1, 5, 10, 20, 30, 50}

const DefaultRadiusKm = 10

// NormalizeRadius clamps unknown radius values to the default. The UI only
// ever sends the enumerated set, so anything else is a hand-crafted query.
func NormalizeRadius(r float64) float64 {
	for _, v := range SearchRadiiKm {
		if r == v {
			return r
		}
	}
	return DefaultRadiusKm
}

// Profile is the per-user record: school affiliation plus an optional saved
// home address used to prefill searches.
type Profile struct {
	ID          string      `json:"id"`
	FullName    string      `json:"full_name"`
	Phone       string      `json:"phone,omitempty"`
	SchoolID    string      `json:"school_id,omitempty"`
	SchoolName  string      `json:"school_name,omitempty"`
	HomeAddress string      `json:"home_address,omitempty"`
	HomeCoord   *Coordinate `json:"home_coord,omitempty"`
}

// School is one efterskole from the directory.
type School struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	City       string      `json:"city"`
	Address    string      `json:"address,omitempty"`
	PostalCode string      `json:"postal_code,omitempty"`
	Region     string      `json:"region,omitempty"`
	Coord      *Coordinate `json:"coord,omitempty"`
}

// DefaultQuery derives the search prefill from a profile and a direction:
// to_school searches home -> school, from_school the reverse. Pure function,
// no store access.
func DefaultQuery(p Profile, dir Direction) SearchQuery {
	q := SearchQuery{Direction: dir, RadiusKm: DefaultRadiusKm}
	switch dir {
	case DirectionFromSchool:
		q.Departure = p.SchoolName
		q.Destination = p.HomeAddress
		q.DestinationCoord = p.HomeCoord
	default:
		q.Departure = p.HomeAddress
		q.DepartureCoord = p.HomeCoord
		q.Destination = p.SchoolName
	}
	return q
}
