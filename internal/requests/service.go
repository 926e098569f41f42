// Package requests implements the seat-request lifecycle: the submission
// guard that admits at most one live request per (ride, passenger) pair, the
// driver's accept/reject transition, and the passenger's cancel.
package requests

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/efterskole-rides/internal/ingest"
	"github.com/example/efterskole-rides/internal/models"
	"github.com/example/efterskole-rides/internal/observability"
	"github.com/example/efterskole-rides/internal/storage"
)

var (
	// ErrAlreadyPending and ErrAlreadyAccepted are the two faces of the
	// duplicate-live-request rejection; the UI shows a different message
	// for each.
	ErrAlreadyPending  = errors.New("request already pending for this ride")
	ErrAlreadyAccepted = errors.New("request already accepted for this ride")

	ErrRideNotFound    = errors.New("ride not found")
	ErrRequestNotFound = errors.New("request not found")
	ErrNotRideOwner    = errors.New("caller does not own this ride")
	ErrNotPassenger    = errors.New("caller did not submit this request")
	ErrInvalidDecision = errors.New("decision must be accepted or rejected")
	ErrNotPending      = errors.New("request is no longer pending")
)

// defaultMessage mirrors the message the webapp pre-fills for shy requesters.
const defaultMessage = "Hej! Jeg vil gerne med på denne tur."

// EventPublisher receives lifecycle events; nil disables publishing.
type EventPublisher interface {
	Publish(ctx context.Context, ev ingest.Event) error
}

// DriverNotifier pushes a payload to a connected driver; best-effort.
type DriverNotifier interface {
	Notify(driverID string, payload any) error
}

type Service struct {
	rides    storage.RideStore
	requests storage.RequestStore
	events   EventPublisher
	notify   DriverNotifier
	logger   *slog.Logger
}

func NewService(rides storage.RideStore, reqs storage.RequestStore, events EventPublisher, notify DriverNotifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{rides: rides, requests: reqs, events: events, notify: notify, logger: logger}
}

type SubmitCommand struct {
	RideID         string
	PassengerID    string
	PickupLocation string
	SeatsRequested int
	Message        string
}

// Submit runs the submission guard and persists a new pending request.
// The pre-check gives the caller a distinguished pending/accepted error; the
// storage layer's conditional insert closes the race two concurrent submits
// would otherwise win together.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (*models.RideRequest, error) {
	ride, err := s.rides.GetRide(ctx, cmd.RideID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRideNotFound
		}
		return nil, err
	}

	live, err := s.requests.FindLiveRequests(ctx, cmd.RideID, cmd.PassengerID)
	if err != nil {
		return nil, err
	}
	if err := blockingState(live); err != nil {
		return nil, err
	}

	seats := cmd.SeatsRequested
	if seats < 1 {
		seats = 1
	}
	if seats > ride.AvailableSeats {
		seats = ride.AvailableSeats
	}
	pickup := cmd.PickupLocation
	if pickup == "" {
		pickup = ride.DepartureLocation
	}
	message := cmd.Message
	if message == "" {
		message = defaultMessage
	}

	now := time.Now()
	rr := &models.RideRequest{
		ID:             uuid.NewString(),
		RideID:         cmd.RideID,
		PassengerID:    cmd.PassengerID,
		PickupLocation: pickup,
		SeatsRequested: seats,
		Message:        message,
		Status:         models.RequestPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.requests.InsertRequest(ctx, rr); err != nil {
		if errors.Is(err, storage.ErrDuplicateLiveRequest) {
			// Lost the race; re-read to report which state blocks.
			if live, qerr := s.requests.FindLiveRequests(ctx, cmd.RideID, cmd.PassengerID); qerr == nil {
				if berr := blockingState(live); berr != nil {
					return nil, berr
				}
			}
			return nil, ErrAlreadyPending
		}
		return nil, err
	}

	observability.RequestsSubmitted.Inc()
	s.publish(ctx, ingest.Event{
		Type:      ingest.EventRequestSubmitted,
		RideID:    rr.RideID,
		RequestID: rr.ID,
		ActorID:   rr.PassengerID,
		At:        now,
	})
	if s.notify != nil {
		if err := s.notify.Notify(ride.DriverID, RequestNotification{
			Type:           "request_submitted",
			RideID:         rr.RideID,
			RequestID:      rr.ID,
			PickupLocation: rr.PickupLocation,
			SeatsRequested: rr.SeatsRequested,
		}); err != nil {
			s.logger.Debug("driver notify skipped", "driver_id", ride.DriverID, "error", err)
		}
	}
	return rr, nil
}

// RequestNotification is the payload pushed to a driver's WebSocket session.
type RequestNotification struct {
	Type           string `json:"type"`
	RideID         string `json:"ride_id"`
	RequestID      string `json:"request_id"`
	PickupLocation string `json:"pickup_location"`
	SeatsRequested int    `json:"seats_requested"`
}

type RespondCommand struct {
	RequestID string
	DriverID  string
	Decision  models.RequestStatus
}

// Respond applies the owning driver's accept/reject to a pending request.
// Both outcomes are terminal. Seats on the ride are intentionally left
// untouched on acceptance.
func (s *Service) Respond(ctx context.Context, cmd RespondCommand) (*models.RideRequest, error) {
	if cmd.Decision != models.RequestAccepted && cmd.Decision != models.RequestRejected {
		return nil, ErrInvalidDecision
	}
	rr, err := s.requests.GetRequest(ctx, cmd.RequestID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	ride, err := s.rides.GetRide(ctx, rr.RideID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRideNotFound
		}
		return nil, err
	}
	if ride.DriverID != cmd.DriverID {
		return nil, ErrNotRideOwner
	}

	updated, err := s.requests.UpdateRequestStatus(ctx, cmd.RequestID, models.RequestPending, cmd.Decision)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrNotPending
		}
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	evType := ingest.EventRequestAccepted
	if cmd.Decision == models.RequestRejected {
		evType = ingest.EventRequestRejected
	}
	observability.RequestResponses.WithLabelValues(string(cmd.Decision)).Inc()
	s.publish(ctx, ingest.Event{
		Type:      evType,
		RideID:    updated.RideID,
		RequestID: updated.ID,
		ActorID:   cmd.DriverID,
		At:        time.Now(),
	})
	return updated, nil
}

// Cancel lets the passenger withdraw their own pending request.
func (s *Service) Cancel(ctx context.Context, requestID, passengerID string) (*models.RideRequest, error) {
	rr, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	if rr.PassengerID != passengerID {
		return nil, ErrNotPassenger
	}
	updated, err := s.requests.UpdateRequestStatus(ctx, requestID, models.RequestPending, models.RequestCancelled)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrNotPending
		}
		return nil, err
	}
	s.publish(ctx, ingest.Event{
		Type:      ingest.EventRequestCancelled,
		RideID:    updated.RideID,
		RequestID: updated.ID,
		ActorID:   passengerID,
		At:        time.Now(),
	})
	return updated, nil
}

func (s *Service) ListByPassenger(ctx context.Context, passengerID string) ([]models.RideRequest, error) {
	return s.requests.ListRequestsByPassenger(ctx, passengerID)
}

func (s *Service) ListByRide(ctx context.Context, rideID string) ([]models.RideRequest, error) {
	return s.requests.ListRequestsByRide(ctx, rideID)
}

func (s *Service) publish(ctx context.Context, ev ingest.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn("event publish failed", "type", ev.Type, "error", err)
	}
}

func blockingState(live []models.RideRequest) error {
	for _, rr := range live {
		if rr.Status == models.RequestAccepted {
			return ErrAlreadyAccepted
		}
	}
	if len(live) > 0 {
		return ErrAlreadyPending
	}
	return nil
}
