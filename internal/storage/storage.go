package storage

import (
	"context"
	"errors"
	"time"

	"github.com/example/efterskole-rides/internal/models"
)

var (
	// ErrNotFound is returned when a row does not exist or the caller does
	// not own it.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateLiveRequest is the uniqueness violation for a second
	// pending/accepted request on the same (ride, passenger) pair.
	ErrDuplicateLiveRequest = errors.New("live request already exists")
	// ErrConflict is returned by conditional updates whose precondition
	// status no longer holds.
	ErrConflict = errors.New("status conflict")
)

// RideStore persists rides and answers the candidate query the match filter
// runs over.
type RideStore interface {
	InsertRide(ctx context.Context, r *models.Ride) error
	GetRide(ctx context.Context, id string) (*models.Ride, error)
	// ListActiveUpcoming returns rides with status=active and a departure
	// time at or after now, ascending by departure time.
	ListActiveUpcoming(ctx context.Context, now time.Time) ([]models.Ride, error)
	ListRidesByDriver(ctx context.Context, driverID string) ([]models.Ride, error)
	// UpdateRideStatus transitions a ride owned by driverID; ErrNotFound
	// covers both a missing ride and a non-owner caller.
	UpdateRideStatus(ctx context.Context, rideID, driverID string, status models.RideStatus) error
}

// RequestStore persists ride requests. InsertRequest must be atomic with the
// live-request uniqueness check: two racing inserts for the same
// (ride, passenger) pair must not both succeed.
type RequestStore interface {
	InsertRequest(ctx context.Context, rr *models.RideRequest) error
	GetRequest(ctx context.Context, id string) (*models.RideRequest, error)
	FindLiveRequests(ctx context.Context, rideID, passengerID string) ([]models.RideRequest, error)
	// UpdateRequestStatus transitions a request only if it currently has
	// status from; returns ErrConflict otherwise.
	UpdateRequestStatus(ctx context.Context, id string, from, to models.RequestStatus) (*models.RideRequest, error)
	ListRequestsByPassenger(ctx context.Context, passengerID string) ([]models.RideRequest, error)
	ListRequestsByRide(ctx context.Context, rideID string) ([]models.RideRequest, error)
}

// ProfileStore serves user profiles and login credentials.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	UpdateHomeAddress(ctx context.Context, id, address string, coord *models.Coordinate) error
	// Credentials returns the user id and bcrypt hash for an email.
	Credentials(ctx context.Context, email string) (id, passwordHash string, err error)
}

// SchoolStore is the efterskole directory.
type SchoolStore interface {
	SearchSchools(ctx context.Context, query string, limit int) ([]models.School, error)
	GetSchoolByName(ctx context.Context, name string) (*models.School, error)
}

// Store bundles everything the HTTP layer needs.
type Store interface {
	RideStore
	RequestStore
	ProfileStore
	SchoolStore
}
