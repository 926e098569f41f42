package rides

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/efterskole-rides/internal/geocode"
	"github.com/example/efterskole-rides/internal/models"
	"github.com/example/efterskole-rides/internal/storage"
)

type fakeResolver struct {
	known map[string]models.Coordinate
	err   error
}

func (f *fakeResolver) Resolve(ctx context.Context, text string) (*geocode.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.known[text]
	if !ok {
		return nil, geocode.ErrNotFound
	}
	return &geocode.Result{Label: text, Coord: c}, nil
}

func validCreate() CreateCommand {
	return CreateCommand{
		DriverID:          "driver-1",
		DepartureLocation: "Odense",
		Destination:       "København",
		DepartureTime:     time.Now().Add(48 * time.Hour),
		AvailableSeats:    3,
		PickupSpots:       []string{"Ved skolen"},
	}
}

func TestCreateValidation(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewService(store, store, nil, nil, nil)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateCommand)
	}{
		{"missing departure", func(c *CreateCommand) { c.DepartureLocation = " " }},
		{"missing destination", func(c *CreateCommand) { c.Destination = "" }},
		{"zero seats", func(c *CreateCommand) { c.AvailableSeats = 0 }},
		{"negative price", func(c *CreateCommand) { p := -10.0; c.PricePerSeat = &p }},
		{"past departure", func(c *CreateCommand) { c.DepartureTime = time.Now().Add(-time.Hour) }},
		{"no pickup spots", func(c *CreateCommand) { c.PickupSpots = nil }},
	}
	for _, tc := range cases {
		cmd := validCreate()
		tc.mutate(&cmd)
		if _, err := svc.Create(ctx, cmd); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: err = %v, want ErrValidation", tc.name, err)
		}
	}

	if _, err := svc.Create(ctx, validCreate()); err != nil {
		t.Fatalf("valid command rejected: %v", err)
	}
}

func TestCreateFillsDepartureFromSchool(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SeedSchools([]models.School{{
		ID:    "s1",
		Name:  "Vesterlund Efterskole",
		City:  "Vesterlund",
		Coord: &models.Coordinate{Lat: 55.94, Lng: 9.25},
	}})
	svc := NewService(store, store, nil, nil, nil)

	cmd := validCreate()
	cmd.DepartureLocation = ""
	cmd.SchoolName = "Vesterlund Efterskole"
	r, err := svc.Create(context.Background(), cmd)
	if err != nil {
		t.Fatal(err)
	}
	if r.DepartureLocation != "Vesterlund Efterskole, Vesterlund" {
		t.Fatalf("departure = %q", r.DepartureLocation)
	}
	if r.DepartureCoord == nil || r.DepartureCoord.Lat != 55.94 {
		t.Fatalf("departure coord = %v, want school coord", r.DepartureCoord)
	}
}

func TestSearchGeocodesQueryText(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewService(store, store, &fakeResolver{known: map[string]models.Coordinate{
		"Odense": {Lat: 55.40, Lng: 10.40},
		"Aarhus": {Lat: 56.16, Lng: 10.20},
	}}, nil, nil)

	ride := &models.Ride{
		ID:                "r1",
		DriverID:          "d1",
		DepartureLocation: "Banegårdspladsen 1",
		DepartureCoord:    &models.Coordinate{Lat: 55.41, Lng: 10.41},
		Destination:       "Hovedbanegården",
		DestinationCoord:  &models.Coordinate{Lat: 56.15, Lng: 10.21},
		DepartureTime:     time.Now().Add(time.Hour),
		AvailableSeats:    2,
		Status:            models.RideActive,
	}
	if err := store.InsertRide(context.Background(), ride); err != nil {
		t.Fatal(err)
	}

	// Labels do not substring-match, so only the geo branch can find this.
	results, err := svc.Search(context.Background(), models.SearchQuery{
		Departure: "Odense", Destination: "Aarhus", RadiusKm: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "r1" {
		t.Fatalf("results = %v, want the geocoded match", results)
	}
}

func TestSearchDegradesWhenGeocoderDown(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewService(store, store, &fakeResolver{err: geocode.ErrUnavailable}, nil, nil)

	ride := &models.Ride{
		ID:                "r1",
		DriverID:          "d1",
		DepartureLocation: "Odense Banegård",
		Destination:       "Aarhus H",
		DepartureTime:     time.Now().Add(time.Hour),
		AvailableSeats:    2,
		Status:            models.RideActive,
	}
	if err := store.InsertRide(context.Background(), ride); err != nil {
		t.Fatal(err)
	}

	results, err := svc.Search(context.Background(), models.SearchQuery{
		Departure: "odense", Destination: "aarhus", RadiusKm: 10,
	})
	if err != nil {
		t.Fatalf("search should survive a dead geocoder: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want text-only fallback match", len(results))
	}
}

func TestSearchSkipsInactiveAndPastRides(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewService(store, store, nil, nil, nil)
	ctx := context.Background()

	rides := []*models.Ride{
		{ID: "past", DepartureLocation: "Odense", Destination: "Aarhus", DepartureTime: time.Now().Add(-time.Hour), Status: models.RideActive},
		{ID: "cancelled", DepartureLocation: "Odense", Destination: "Aarhus", DepartureTime: time.Now().Add(time.Hour), Status: models.RideCancelled},
		{ID: "live", DepartureLocation: "Odense", Destination: "Aarhus", DepartureTime: time.Now().Add(time.Hour), Status: models.RideActive},
	}
	for _, r := range rides {
		if err := store.InsertRide(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	results, err := svc.Search(ctx, models.SearchQuery{Departure: "odense", Destination: "aarhus"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "live" {
		t.Fatalf("results = %v, want only the live upcoming ride", results)
	}
}

func TestSetStatus(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewService(store, store, nil, nil, nil)
	ctx := context.Background()

	r, err := svc.Create(ctx, validCreate())
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.SetStatus(ctx, r.ID, "driver-1", models.RideActive); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation for active", err)
	}
	if err := svc.SetStatus(ctx, r.ID, "stranger", models.RideCancelled); !errors.Is(err, ErrNotRideOwner) {
		t.Fatalf("err = %v, want ErrNotRideOwner", err)
	}
	if err := svc.SetStatus(ctx, "missing", "driver-1", models.RideCancelled); !errors.Is(err, ErrRideNotFound) {
		t.Fatalf("err = %v, want ErrRideNotFound", err)
	}
	if err := svc.SetStatus(ctx, r.ID, "driver-1", models.RideCancelled); err != nil {
		t.Fatal(err)
	}
	got, err := svc.Get(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.RideCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
}
