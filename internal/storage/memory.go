package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/efterskole-rides/internal/models"
)

// MemoryStore keeps everything in maps behind one mutex. Used for local runs
// without Postgres and throughout the tests. Holding the lock across the
// check-then-insert in InsertRequest is what makes the duplicate guard safe
// here; Postgres gets the same guarantee from a partial unique index.
type MemoryStore struct {
	mu       sync.Mutex
	rides    map[string]*models.Ride
	requests map[string]*models.RideRequest
	profiles map[string]*models.Profile
	creds    map[string]credential // keyed by email
	schools  []models.School
}

type credential struct {
	userID       string
	passwordHash string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rides:    make(map[string]*models.Ride),
		requests: make(map[string]*models.RideRequest),
		profiles: make(map[string]*models.Profile),
		creds:    make(map[string]credential),
	}
}

func (m *MemoryStore) InsertRide(ctx context.Context, r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rides[r.ID] = &cp
	return nil
}

func (m *MemoryStore) GetRide(ctx context.Context, id string) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) ListActiveUpcoming(ctx context.Context, now time.Time) ([]models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Ride
	for _, r := range m.rides {
		if r.Status == models.RideActive && !r.DepartureTime.Before(now) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartureTime.Before(out[j].DepartureTime) })
	return out, nil
}

func (m *MemoryStore) ListRidesByDriver(ctx context.Context, driverID string) ([]models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Ride
	for _, r := range m.rides {
		if r.DriverID == driverID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartureTime.Before(out[j].DepartureTime) })
	return out, nil
}

func (m *MemoryStore) UpdateRideStatus(ctx context.Context, rideID, driverID string, status models.RideStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok || r.DriverID != driverID {
		return ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) InsertRequest(ctx context.Context, rr *models.RideRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.requests {
		if ex.RideID == rr.RideID && ex.PassengerID == rr.PassengerID && isLive(ex.Status) {
			return ErrDuplicateLiveRequest
		}
	}
	cp := *rr
	m.requests[rr.ID] = &cp
	return nil
}

func (m *MemoryStore) GetRequest(ctx context.Context, id string) (*models.RideRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rr, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rr
	return &cp, nil
}

func (m *MemoryStore) FindLiveRequests(ctx context.Context, rideID, passengerID string) ([]models.RideRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RideRequest
	for _, rr := range m.requests {
		if rr.RideID == rideID && rr.PassengerID == passengerID && isLive(rr.Status) {
			out = append(out, *rr)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateRequestStatus(ctx context.Context, id string, from, to models.RequestStatus) (*models.RideRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rr, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if rr.Status != from {
		return nil, ErrConflict
	}
	rr.Status = to
	rr.UpdatedAt = time.Now()
	cp := *rr
	return &cp, nil
}

func (m *MemoryStore) ListRequestsByPassenger(ctx context.Context, passengerID string) ([]models.RideRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RideRequest
	for _, rr := range m.requests {
		if rr.PassengerID == passengerID {
			out = append(out, *rr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ListRequestsByRide(ctx context.Context, rideID string) ([]models.RideRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RideRequest
	for _, rr := range m.requests {
		if rr.RideID == rideID {
			out = append(out, *rr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) UpdateHomeAddress(ctx context.Context, id, address string, coord *models.Coordinate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return ErrNotFound
	}
	p.HomeAddress = address
	p.HomeCoord = coord
	return nil
}

func (m *MemoryStore) Credentials(ctx context.Context, email string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[strings.ToLower(email)]
	if !ok {
		return "", "", ErrNotFound
	}
	return c.userID, c.passwordHash, nil
}

func (m *MemoryStore) SearchSchools(ctx context.Context, query string, limit int) ([]models.School, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(query)
	var out []models.School
	for _, s := range m.schools {
		if strings.Contains(strings.ToLower(s.Name), q) ||
			strings.Contains(strings.ToLower(s.City), q) ||
			strings.Contains(strings.ToLower(s.Address), q) {
			out = append(out, s)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryStore) GetSchoolByName(ctx context.Context, name string) (*models.School, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.schools {
		if strings.EqualFold(s.Name, name) {
			cp := s
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// Seed helpers for local runs and tests.

func (m *MemoryStore) SeedProfile(p models.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p
	m.profiles[p.ID] = &cp
}

func (m *MemoryStore) SeedCredential(email, userID, passwordHash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[strings.ToLower(email)] = credential{userID: userID, passwordHash: passwordHash}
}

func (m *MemoryStore) SeedSchools(ss []models.School) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schools = append(m.schools, ss...)
}

func isLive(s models.RequestStatus) bool {
	return s == models.RequestPending || s == models.RequestAccepted
}
