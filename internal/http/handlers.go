package httpapi

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/efterskole-rides/internal/models"
	"github.com/example/efterskole-rides/internal/requests"
	"github.com/example/efterskole-rides/internal/rides"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	p, err := s.profiles.GetProfile(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type saveHomeRequest struct {
	Address string   `json:"address"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

// handleSaveHomeAddress persists the address the user picked from the
// autocomplete so future searches prefill it.
func (s *Server) handleSaveHomeAddress(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req saveHomeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Address == "" {
		writeError(w, http.StatusBadRequest, "address required")
		return
	}
	if err := s.profiles.UpdateHomeAddress(r.Context(), userID, req.Address, coordFromPtrs(req.Lat, req.Lng)); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearchSchools(w http.ResponseWriter, r *http.Request) {
	result, err := s.schools.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if result == nil {
		result = []models.School{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"schools": result})
}

type createRideRequest struct {
	DepartureLocation string   `json:"departure_location"`
	DepartureLat      *float64 `json:"departure_lat"`
	DepartureLng      *float64 `json:"departure_lng"`
	Destination       string   `json:"destination"`
	DestinationLat    *float64 `json:"destination_lat"`
	DestinationLng    *float64 `json:"destination_lng"`
	DepartureTime     string   `json:"departure_time"`
	AvailableSeats    int      `json:"available_seats"`
	PricePerSeat      *float64 `json:"price_per_seat"`
	PickupSpots       []string `json:"pickup_spots"`
	Description       string   `json:"description"`
	SchoolName        string   `json:"school_name"`
}

func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req createRideRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	depTime, err := time.Parse(time.RFC3339, req.DepartureTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "departure_time must be RFC 3339")
		return
	}
	ride, err := s.rides.Create(r.Context(), rides.CreateCommand{
		DriverID:          userID,
		DepartureLocation: req.DepartureLocation,
		DepartureCoord:    coordFromPtrs(req.DepartureLat, req.DepartureLng),
		Destination:       req.Destination,
		DestinationCoord:  coordFromPtrs(req.DestinationLat, req.DestinationLng),
		DepartureTime:     depTime,
		AvailableSeats:    req.AvailableSeats,
		PricePerSeat:      req.PricePerSeat,
		PickupSpots:       req.PickupSpots,
		Description:       req.Description,
		SchoolName:        req.SchoolName,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ride)
}

func (s *Server) handleSearchRides(w http.ResponseWriter, r *http.Request) {
	q := parseSearchQuery(r.URL.Query(), s.defaultRadius)
	result, err := s.rides.Search(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rides": result, "count": len(result)})
}

func parseSearchQuery(vals url.Values, defaultRadius float64) models.SearchQuery {
	q := models.SearchQuery{
		Direction:   models.Direction(vals.Get("direction")),
		Departure:   vals.Get("departure"),
		Destination: vals.Get("destination"),
		RadiusKm:    defaultRadius,
	}
	if v := vals.Get("radius"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			q.RadiusKm = f
		}
	}
	q.DepartureCoord = coordFromQuery(vals, "departure_lat", "departure_lng")
	q.DestinationCoord = coordFromQuery(vals, "destination_lat", "destination_lng")
	return q
}

type setRideStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleSetRideStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req setRideStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rideID := mux.Vars(r)["ride_id"]
	if err := s.rides.SetStatus(r.Context(), rideID, userID, models.RideStatus(req.Status)); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submitRequestRequest struct {
	PickupLocation string `json:"pickup_location"`
	SeatsRequested int    `json:"seats_requested"`
	Message        string `json:"message"`
}

func (s *Server) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req submitRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rr, err := s.requests.Submit(r.Context(), requests.SubmitCommand{
		RideID:         mux.Vars(r)["ride_id"],
		PassengerID:    userID,
		PickupLocation: req.PickupLocation,
		SeatsRequested: req.SeatsRequested,
		Message:        req.Message,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rr)
}

// handleListRideRequests shows a driver the requests on one of their rides.
func (s *Server) handleListRideRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	rideID := mux.Vars(r)["ride_id"]
	ride, err := s.rides.Get(r.Context(), rideID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if ride.DriverID != userID {
		writeDomainError(w, rides.ErrNotRideOwner)
		return
	}
	list, err := s.requests.ListByRide(r.Context(), rideID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": list})
}

func (s *Server) handleMyRides(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	list, err := s.rides.ListByDriver(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rides": list})
}

func (s *Server) handleMyRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	list, err := s.requests.ListByPassenger(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": list})
}

type respondRequestRequest struct {
	Decision string `json:"decision"`
}

func (s *Server) handleRespondRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req respondRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rr, err := s.requests.Respond(r.Context(), requests.RespondCommand{
		RequestID: mux.Vars(r)["request_id"],
		DriverID:  userID,
		Decision:  models.RequestStatus(req.Decision),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rr)
}

func (s *Server) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	rr, err := s.requests.Cancel(r.Context(), mux.Vars(r)["request_id"], userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rr)
}

func coordFromPtrs(lat, lng *float64) *models.Coordinate {
	if lat == nil || lng == nil {
		return nil
	}
	return &models.Coordinate{Lat: *lat, Lng: *lng}
}

func coordFromQuery(vals url.Values, latKey, lngKey string) *models.Coordinate {
	latS, lngS := vals.Get(latKey), vals.Get(lngKey)
	if latS == "" || lngS == "" {
		return nil
	}
	lat, err1 := strconv.ParseFloat(latS, 64)
	lng, err2 := strconv.ParseFloat(lngS, 64)
	if err1 != nil || err2 != nil {
		return nil
	}
	return &models.Coordinate{Lat: lat, Lng: lng}
}
