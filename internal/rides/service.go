// Package rides covers posting rides and searching them.
package rides

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/efterskole-rides/internal/geocode"
	"github.com/example/efterskole-rides/internal/ingest"
	"github.com/example/efterskole-rides/internal/match"
	"github.com/example/efterskole-rides/internal/models"
	"github.com/example/efterskole-rides/internal/observability"
	"github.com/example/efterskole-rides/internal/storage"
)

var (
	ErrValidation   = errors.New("invalid ride")
	ErrRideNotFound = errors.New("ride not found")
	ErrNotRideOwner = errors.New("caller does not own this ride")
)

type EventPublisher interface {
	Publish(ctx context.Context, ev ingest.Event) error
}

type Service struct {
	store    storage.RideStore
	schools  storage.SchoolStore
	resolver geocode.Resolver
	events   EventPublisher
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(store storage.RideStore, schools storage.SchoolStore, resolver geocode.Resolver, events EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, schools: schools, resolver: resolver, events: events, logger: logger, now: time.Now}
}

type CreateCommand struct {
	DriverID          string
	DepartureLocation string
	DepartureCoord    *models.Coordinate
	Destination       string
	DestinationCoord  *models.Coordinate
	DepartureTime     time.Time
	AvailableSeats    int
	PricePerSeat      *float64
	PickupSpots       []string
	Description       string
	// SchoolName, when set and no departure was given, fills the departure
	// from the school directory ("Name, City" plus its coordinates), the way
	// the offer-ride form does.
	SchoolName string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*models.Ride, error) {
	if cmd.DepartureLocation == "" && cmd.SchoolName != "" && s.schools != nil {
		if school, err := s.schools.GetSchoolByName(ctx, cmd.SchoolName); err == nil {
			cmd.DepartureLocation = fmt.Sprintf("%s, %s", school.Name, school.City)
			cmd.DepartureCoord = school.Coord
		}
	}
	if strings.TrimSpace(cmd.DepartureLocation) == "" {
		return nil, fmt.Errorf("%w: departure location required", ErrValidation)
	}
	if strings.TrimSpace(cmd.Destination) == "" {
		return nil, fmt.Errorf("%w: destination required", ErrValidation)
	}
	if cmd.AvailableSeats < 1 {
		return nil, fmt.Errorf("%w: available seats must be at least 1", ErrValidation)
	}
	if cmd.PricePerSeat != nil && *cmd.PricePerSeat < 0 {
		return nil, fmt.Errorf("%w: price per seat cannot be negative", ErrValidation)
	}
	if !cmd.DepartureTime.After(s.now()) {
		return nil, fmt.Errorf("%w: departure time must be in the future", ErrValidation)
	}
	if len(cmd.PickupSpots) == 0 {
		return nil, fmt.Errorf("%w: pick at least one pickup option", ErrValidation)
	}

	now := s.now()
	r := &models.Ride{
		ID:                uuid.NewString(),
		DriverID:          cmd.DriverID,
		DepartureLocation: cmd.DepartureLocation,
		DepartureCoord:    cmd.DepartureCoord,
		Destination:       cmd.Destination,
		DestinationCoord:  cmd.DestinationCoord,
		DepartureTime:     cmd.DepartureTime,
		AvailableSeats:    cmd.AvailableSeats,
		PricePerSeat:      cmd.PricePerSeat,
		PickupSpots:       cmd.PickupSpots,
		Description:       cmd.Description,
		Status:            models.RideActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.InsertRide(ctx, r); err != nil {
		return nil, err
	}
	observability.RidesCreated.Inc()
	if s.events != nil {
		if err := s.events.Publish(ctx, ingest.Event{Type: ingest.EventRideCreated, RideID: r.ID, ActorID: r.DriverID, At: now}); err != nil {
			s.logger.Warn("event publish failed", "type", ingest.EventRideCreated, "error", err)
		}
	}
	return r, nil
}

// Search resolves missing query coordinates when a geocoder is available,
// then runs the match filter over the active upcoming rides. A geocoder
// failure is not fatal: the search degrades to text-only matching.
func (s *Service) Search(ctx context.Context, q models.SearchQuery) ([]models.Ride, error) {
	q.RadiusKm = models.NormalizeRadius(q.RadiusKm)
	s.resolveCoords(ctx, &q)

	candidates, err := s.store.ListActiveUpcoming(ctx, s.now())
	if err != nil {
		return nil, err
	}
	results := match.Filter(q, candidates)
	observability.SearchesTotal.Inc()
	observability.SearchResults.Observe(float64(len(results)))
	return results, nil
}

func (s *Service) resolveCoords(ctx context.Context, q *models.SearchQuery) {
	if s.resolver == nil {
		return
	}
	if q.DepartureCoord == nil && strings.TrimSpace(q.Departure) != "" {
		if res, err := s.resolver.Resolve(ctx, q.Departure); err == nil {
			q.DepartureCoord = &res.Coord
		} else if !errors.Is(err, geocode.ErrNotFound) {
			s.logger.Warn("geocode departure failed", "error", err)
		}
	}
	if q.DestinationCoord == nil && strings.TrimSpace(q.Destination) != "" {
		if res, err := s.resolver.Resolve(ctx, q.Destination); err == nil {
			q.DestinationCoord = &res.Coord
		} else if !errors.Is(err, geocode.ErrNotFound) {
			s.logger.Warn("geocode destination failed", "error", err)
		}
	}
}

func (s *Service) Get(ctx context.Context, id string) (*models.Ride, error) {
	r, err := s.store.GetRide(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrRideNotFound
	}
	return r, err
}

func (s *Service) ListByDriver(ctx context.Context, driverID string) ([]models.Ride, error) {
	return s.store.ListRidesByDriver(ctx, driverID)
}

// SetStatus applies a driver's cancel/complete to their own ride.
func (s *Service) SetStatus(ctx context.Context, rideID, driverID string, status models.RideStatus) error {
	if status != models.RideCancelled && status != models.RideCompleted {
		return fmt.Errorf("%w: status must be cancelled or completed", ErrValidation)
	}
	err := s.store.UpdateRideStatus(ctx, rideID, driverID, status)
	if errors.Is(err, storage.ErrNotFound) {
		// Distinguish a stranger's ride from a missing one for the caller.
		if _, getErr := s.store.GetRide(ctx, rideID); getErr == nil {
			return ErrNotRideOwner
		}
		return ErrRideNotFound
	}
	return err
}
