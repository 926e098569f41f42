package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/example/efterskole-rides/internal/auth"
	"github.com/example/efterskole-rides/internal/dispatch"
	"github.com/example/efterskole-rides/internal/models"
	"github.com/example/efterskole-rides/internal/requests"
	"github.com/example/efterskole-rides/internal/rides"
	"github.com/example/efterskole-rides/internal/schools"
	"github.com/example/efterskole-rides/internal/storage"
)

type testEnv struct {
	srv   *Server
	store *storage.MemoryStore
	auth  *auth.Service
	t     *testing.T
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithRadius(t, 0)
}

func newTestEnvWithRadius(t *testing.T, radiusKm float64) *testEnv {
	t.Helper()
	store := storage.NewMemoryStore()
	authSvc := auth.NewService(store, "test-secret", time.Hour)
	srv := NewServer(Deps{
		Rides:           rides.NewService(store, store, nil, nil, nil),
		Requests:        requests.NewService(store, store, nil, nil, nil),
		Schools:         schools.NewService(store),
		Auth:            authSvc,
		Profiles:        store,
		WSReg:           dispatch.NewWSRegistry(nil),
		Logger:          nil,
		DefaultRadiusKm: radiusKm,
	})
	return &testEnv{srv: srv, store: store, auth: authSvc, t: t}
}

// login seeds a user and returns a bearer token for them.
func (e *testEnv) login(userID string) string {
	e.t.Helper()
	email := userID + "@example.dk"
	hash, err := bcrypt.GenerateFromPassword([]byte("kodeord"), bcrypt.MinCost)
	if err != nil {
		e.t.Fatal(err)
	}
	e.store.SeedCredential(email, userID, string(hash))
	e.store.SeedProfile(models.Profile{ID: userID, FullName: "Test " + userID})
	token, err := e.auth.Login(context.Background(), email, "kodeord")
	if err != nil {
		e.t.Fatal(err)
	}
	return token
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seedRide(id, driverID string) {
	e.t.Helper()
	err := e.store.InsertRide(context.Background(), &models.Ride{
		ID:                id,
		DriverID:          driverID,
		DepartureLocation: "Odense",
		Destination:       "Aarhus",
		DepartureTime:     time.Now().Add(24 * time.Hour),
		AvailableSeats:    3,
		PickupSpots:       []string{"Ved skolen"},
		Status:            models.RideActive,
	})
	if err != nil {
		e.t.Fatal(err)
	}
}

func TestLoginEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.login("u1")

	rec := env.do("POST", "/api/v1/auth/login", "", map[string]string{
		"email": "u1@example.dk", "password": "kodeord",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["token"] == "" {
		t.Fatal("no token in response")
	}

	rec = env.do("POST", "/api/v1/auth/login", "", map[string]string{
		"email": "u1@example.dk", "password": "forkert",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)
	for _, p := range []struct{ method, path string }{
		{"GET", "/api/v1/profile"},
		{"GET", "/api/v1/my/rides"},
		{"POST", "/api/v1/rides/r1/requests"},
	} {
		rec := env.do(p.method, p.path, "", map[string]string{})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want 401", p.method, p.path, rec.Code)
		}
	}
}

func TestCreateAndSearchRides(t *testing.T) {
	env := newTestEnv(t)
	token := env.login("driver-1")

	rec := env.do("POST", "/api/v1/rides", token, map[string]any{
		"departure_location": "Odense Banegård",
		"destination":        "København H",
		"departure_time":     time.Now().Add(48 * time.Hour).Format(time.RFC3339),
		"available_seats":    3,
		"pickup_spots":       []string{"Ved skolen"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}

	rec = env.do("GET", "/api/v1/rides/search?departure=odense&destination=københavn", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d", rec.Code)
	}
	var resp struct {
		Rides []models.Ride `json:"rides"`
		Count int           `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}
}

func TestSearchUsesConfiguredDefaultRadius(t *testing.T) {
	// Ride departs from Copenhagen; the query origin is Roskilde, roughly
	// 31 km away. Labels are chosen so the text branch cannot match.
	seed := func(env *testEnv) {
		err := env.store.InsertRide(context.Background(), &models.Ride{
			ID:                "r1",
			DriverID:          "driver-1",
			DepartureLocation: "Hovedstaden",
			DepartureCoord:    &models.Coordinate{Lat: 55.6761, Lng: 12.5683},
			Destination:       "Centrum",
			DestinationCoord:  &models.Coordinate{Lat: 55.6761, Lng: 12.5683},
			DepartureTime:     time.Now().Add(24 * time.Hour),
			AvailableSeats:    2,
			Status:            models.RideActive,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	path := "/api/v1/rides/search?departure=ukendt&destination=ukendt" +
		"&departure_lat=55.6415&departure_lng=12.0803" +
		"&destination_lat=55.6761&destination_lng=12.5683"

	count := func(env *testEnv) int {
		rec := env.do("GET", path, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		return resp.Count
	}

	wide := newTestEnvWithRadius(t, 50)
	seed(wide)
	if got := count(wide); got != 1 {
		t.Fatalf("50 km default: count = %d, want 1", got)
	}

	narrow := newTestEnv(t) // falls back to the 10 km default
	seed(narrow)
	if got := count(narrow); got != 0 {
		t.Fatalf("10 km default: count = %d, want 0", got)
	}
}

func TestCreateRideRejectsBadDepartureTime(t *testing.T) {
	env := newTestEnv(t)
	token := env.login("driver-1")
	rec := env.do("POST", "/api/v1/rides", token, map[string]any{
		"departure_location": "Odense",
		"destination":        "Aarhus",
		"departure_time":     "i morgen",
		"available_seats":    3,
		"pickup_spots":       []string{"Ved skolen"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSubmitDuplicateCarriesCode(t *testing.T) {
	env := newTestEnv(t)
	env.seedRide("r1", "driver-1")
	token := env.login("p1")
	driverToken := env.login("driver-1")

	rec := env.do("POST", "/api/v1/rides/r1/requests", token, map[string]any{"seats_requested": 1})
	if rec.Code != http.StatusCreated {
		t.Fatalf("first submit status = %d, body %s", rec.Code, rec.Body)
	}
	var created models.RideRequest
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	rec = env.do("POST", "/api/v1/rides/r1/requests", token, map[string]any{"seats_requested": 1})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", rec.Code)
	}
	var dup errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &dup); err != nil {
		t.Fatal(err)
	}
	if dup.Code != "already_pending" {
		t.Fatalf("code = %q, want already_pending", dup.Code)
	}

	rec = env.do("POST", fmt.Sprintf("/api/v1/requests/%s/response", created.ID), driverToken,
		map[string]string{"decision": "accepted"})
	if rec.Code != http.StatusOK {
		t.Fatalf("respond status = %d, body %s", rec.Code, rec.Body)
	}

	rec = env.do("POST", "/api/v1/rides/r1/requests", token, map[string]any{"seats_requested": 1})
	if rec.Code != http.StatusConflict {
		t.Fatalf("post-accept duplicate status = %d, want 409", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &dup); err != nil {
		t.Fatal(err)
	}
	if dup.Code != "already_accepted" {
		t.Fatalf("code = %q, want already_accepted", dup.Code)
	}
}

func TestRespondForbiddenForStranger(t *testing.T) {
	env := newTestEnv(t)
	env.seedRide("r1", "driver-1")
	passenger := env.login("p1")
	stranger := env.login("p2")

	rec := env.do("POST", "/api/v1/rides/r1/requests", passenger, map[string]any{"seats_requested": 1})
	var created models.RideRequest
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	rec = env.do("POST", fmt.Sprintf("/api/v1/requests/%s/response", created.ID), stranger,
		map[string]string{"decision": "accepted"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestListRideRequestsOnlyForOwner(t *testing.T) {
	env := newTestEnv(t)
	env.seedRide("r1", "driver-1")
	driver := env.login("driver-1")
	passenger := env.login("p1")

	env.do("POST", "/api/v1/rides/r1/requests", passenger, map[string]any{"seats_requested": 1})

	rec := env.do("GET", "/api/v1/rides/r1/requests", driver, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner list status = %d", rec.Code)
	}
	var resp struct {
		Requests []models.RideRequest `json:"requests"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Requests) != 1 {
		t.Fatalf("len = %d, want 1", len(resp.Requests))
	}

	rec = env.do("GET", "/api/v1/rides/r1/requests", passenger, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("stranger list status = %d, want 403", rec.Code)
	}
}

func TestSchoolsEndpointShortQuery(t *testing.T) {
	env := newTestEnv(t)
	env.store.SeedSchools([]models.School{{ID: "s1", Name: "Vesterlund Efterskole", City: "Vesterlund"}})

	rec := env.do("GET", "/api/v1/schools?q=v", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Schools []models.School `json:"schools"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Schools) != 0 {
		t.Fatalf("one-character query returned %d schools, want none", len(resp.Schools))
	}

	rec = env.do("GET", "/api/v1/schools?q=vester", "", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Schools) != 1 {
		t.Fatalf("got %d schools, want 1", len(resp.Schools))
	}
}

func TestSaveHomeAddress(t *testing.T) {
	env := newTestEnv(t)
	token := env.login("u1")

	rec := env.do("PUT", "/api/v1/profile/home", token, map[string]any{
		"address": "Nørregade 1, Odense", "lat": 55.40, "lng": 10.39,
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	rec = env.do("GET", "/api/v1/profile", token, nil)
	var p models.Profile
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if p.HomeAddress != "Nørregade 1, Odense" {
		t.Fatalf("home address = %q", p.HomeAddress)
	}
	if p.HomeCoord == nil || p.HomeCoord.Lat != 55.40 {
		t.Fatalf("home coord = %v", p.HomeCoord)
	}
}

func TestSaveHomeAddressWithoutCoordinates(t *testing.T) {
	env := newTestEnv(t)
	token := env.login("u1")

	rec := env.do("PUT", "/api/v1/profile/home", token, map[string]any{
		"address": "Poste restante, Odense",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	rec = env.do("GET", "/api/v1/profile", token, nil)
	var p models.Profile
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if p.HomeCoord != nil {
		t.Fatalf("home coord = %v, want nil when none was sent", p.HomeCoord)
	}

	// An explicit (0,0) is a real point, not an absent one.
	rec = env.do("PUT", "/api/v1/profile/home", token, map[string]any{
		"address": "Null Island", "lat": 0.0, "lng": 0.0,
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	rec = env.do("GET", "/api/v1/profile", token, nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if p.HomeCoord == nil || p.HomeCoord.Lat != 0 || p.HomeCoord.Lng != 0 {
		t.Fatalf("home coord = %v, want explicit (0,0)", p.HomeCoord)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do("GET", "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
