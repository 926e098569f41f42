package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/example/efterskole-rides/internal/models"
)

// PostgresStore backs the repositories with Postgres via database/sql.
// The live-request invariant is enforced by a partial unique index over
// (ride_id, passenger_id) WHERE status IN ('pending','accepted'); see
// migrations/004_create_ride_requests.sql. Inserts that lose the race come
// back as a 23505 and surface as ErrDuplicateLiveRequest.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreWithDB wraps an existing handle; used by tests.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Close() error { return p.db.Close() }

const rideColumns = `id, driver_id, departure_location, departure_lat, departure_lng,
	destination, destination_lat, destination_lng, departure_time,
	available_seats, price_per_seat, pickup_spots, description, status,
	created_at, updated_at`

func (p *PostgresStore) InsertRide(ctx context.Context, r *models.Ride) error {
	depLat, depLng := coordVals(r.DepartureCoord)
	dstLat, dstLng := coordVals(r.DestinationCoord)
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO rides (`+rideColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		r.ID, r.DriverID, r.DepartureLocation, depLat, depLng,
		r.Destination, dstLat, dstLng, r.DepartureTime,
		r.AvailableSeats, r.PricePerSeat, pq.Array(r.PickupSpots), r.Description, r.Status,
		r.CreatedAt, r.UpdatedAt)
	return err
}

func (p *PostgresStore) GetRide(ctx context.Context, id string) (*models.Ride, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, id)
	return scanRide(row)
}

func (p *PostgresStore) ListActiveUpcoming(ctx context.Context, now time.Time) ([]models.Ride, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+rideColumns+` FROM rides
		WHERE status = 'active' AND departure_time >= $1
		ORDER BY departure_time ASC`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRides(rows)
}

func (p *PostgresStore) ListRidesByDriver(ctx context.Context, driverID string) ([]models.Ride, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+rideColumns+` FROM rides
		WHERE driver_id = $1
		ORDER BY departure_time ASC`, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRides(rows)
}

func (p *PostgresStore) UpdateRideStatus(ctx context.Context, rideID, driverID string, status models.RideStatus) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE rides SET status = $1, updated_at = now()
		WHERE id = $2 AND driver_id = $3`, status, rideID, driverID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const requestColumns = `id, ride_id, passenger_id, pickup_location, seats_requested,
	message, status, created_at, updated_at`

func (p *PostgresStore) InsertRequest(ctx context.Context, rr *models.RideRequest) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO ride_requests (`+requestColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		rr.ID, rr.RideID, rr.PassengerID, rr.PickupLocation, rr.SeatsRequested,
		rr.Message, rr.Status, rr.CreatedAt, rr.UpdatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicateLiveRequest
	}
	return err
}

func (p *PostgresStore) GetRequest(ctx context.Context, id string) (*models.RideRequest, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM ride_requests WHERE id = $1`, id)
	return scanRequest(row)
}

func (p *PostgresStore) FindLiveRequests(ctx context.Context, rideID, passengerID string) ([]models.RideRequest, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+requestColumns+` FROM ride_requests
		WHERE ride_id = $1 AND passenger_id = $2 AND status IN ('pending','accepted')`,
		rideID, passengerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (p *PostgresStore) UpdateRequestStatus(ctx context.Context, id string, from, to models.RequestStatus) (*models.RideRequest, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE ride_requests SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
		RETURNING `+requestColumns, to, id, from)
	rr, err := scanRequest(row)
	if errors.Is(err, ErrNotFound) {
		// Row missing or precondition failed; tell them apart for the caller.
		if _, getErr := p.GetRequest(ctx, id); getErr == nil {
			return nil, ErrConflict
		}
		return nil, ErrNotFound
	}
	return rr, err
}

func (p *PostgresStore) ListRequestsByPassenger(ctx context.Context, passengerID string) ([]models.RideRequest, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+requestColumns+` FROM ride_requests
		WHERE passenger_id = $1
		ORDER BY created_at DESC`, passengerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (p *PostgresStore) ListRequestsByRide(ctx context.Context, rideID string) ([]models.RideRequest, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+requestColumns+` FROM ride_requests
		WHERE ride_id = $1
		ORDER BY created_at DESC`, rideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (p *PostgresStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT p.id, p.full_name, p.phone, COALESCE(p.school_id::text, ''), COALESCE(e.name, ''),
		       COALESCE(p.home_address, ''), p.home_lat, p.home_lng
		FROM profiles p
		LEFT JOIN efterskoler e ON e.id = p.school_id
		WHERE p.id = $1`, id)
	var prof models.Profile
	var homeLat, homeLng sql.NullFloat64
	err := row.Scan(&prof.ID, &prof.FullName, &prof.Phone, &prof.SchoolID, &prof.SchoolName,
		&prof.HomeAddress, &homeLat, &homeLng)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if homeLat.Valid && homeLng.Valid {
		prof.HomeCoord = &models.Coordinate{Lat: homeLat.Float64, Lng: homeLng.Float64}
	}
	return &prof, nil
}

func (p *PostgresStore) UpdateHomeAddress(ctx context.Context, id, address string, coord *models.Coordinate) error {
	lat, lng := coordVals(coord)
	res, err := p.db.ExecContext(ctx, `
		UPDATE profiles SET home_address = $1, home_lat = $2, home_lng = $3
		WHERE id = $4`, address, lat, lng, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) Credentials(ctx context.Context, email string) (string, string, error) {
	var id, hash string
	err := p.db.QueryRowContext(ctx, `
		SELECT id, password_hash FROM profiles WHERE lower(email) = lower($1)`, email).
		Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrNotFound
	}
	return id, hash, err
}

const schoolColumns = `id, name, city, COALESCE(address, ''), COALESCE(postal_code, ''),
	COALESCE(region, ''), latitude, longitude`

func (p *PostgresStore) SearchSchools(ctx context.Context, query string, limit int) ([]models.School, error) {
	pattern := "%" + query + "%"
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+schoolColumns+` FROM efterskoler
		WHERE name ILIKE $1 OR city ILIKE $1 OR address ILIKE $1
		ORDER BY name
		LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.School
	for rows.Next() {
		s, err := scanSchool(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) GetSchoolByName(ctx context.Context, name string) (*models.School, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+schoolColumns+` FROM efterskoler WHERE name ILIKE $1`, name)
	s, err := scanSchool(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*models.Ride, error) {
	var r models.Ride
	var depLat, depLng, dstLat, dstLng sql.NullFloat64
	var price sql.NullFloat64
	var desc sql.NullString
	err := row.Scan(&r.ID, &r.DriverID, &r.DepartureLocation, &depLat, &depLng,
		&r.Destination, &dstLat, &dstLng, &r.DepartureTime,
		&r.AvailableSeats, &price, pq.Array(&r.PickupSpots), &desc, &r.Status,
		&r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if depLat.Valid && depLng.Valid {
		r.DepartureCoord = &models.Coordinate{Lat: depLat.Float64, Lng: depLng.Float64}
	}
	if dstLat.Valid && dstLng.Valid {
		r.DestinationCoord = &models.Coordinate{Lat: dstLat.Float64, Lng: dstLng.Float64}
	}
	if price.Valid {
		v := price.Float64
		r.PricePerSeat = &v
	}
	r.Description = desc.String
	return &r, nil
}

func scanRides(rows *sql.Rows) ([]models.Ride, error) {
	var out []models.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRequest(row rowScanner) (*models.RideRequest, error) {
	var rr models.RideRequest
	var msg sql.NullString
	err := row.Scan(&rr.ID, &rr.RideID, &rr.PassengerID, &rr.PickupLocation, &rr.SeatsRequested,
		&msg, &rr.Status, &rr.CreatedAt, &rr.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rr.Message = msg.String
	return &rr, nil
}

func scanRequests(rows *sql.Rows) ([]models.RideRequest, error) {
	var out []models.RideRequest
	for rows.Next() {
		rr, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rr)
	}
	return out, rows.Err()
}

func scanSchool(row rowScanner) (*models.School, error) {
	var s models.School
	var lat, lng sql.NullFloat64
	err := row.Scan(&s.ID, &s.Name, &s.City, &s.Address, &s.PostalCode, &s.Region, &lat, &lng)
	if err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		s.Coord = &models.Coordinate{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &s, nil
}

func coordVals(c *models.Coordinate) (lat, lng sql.NullFloat64) {
	if c == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: c.Lat, Valid: true}, sql.NullFloat64{Float64: c.Lng, Valid: true}
}
