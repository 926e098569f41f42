package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/efterskole-rides/internal/auth"
	"github.com/example/efterskole-rides/internal/dispatch"
	"github.com/example/efterskole-rides/internal/models"
	"github.com/example/efterskole-rides/internal/requests"
	"github.com/example/efterskole-rides/internal/rides"
	"github.com/example/efterskole-rides/internal/schools"
	"github.com/example/efterskole-rides/internal/storage"
)

type Deps struct {
	Rides    *rides.Service
	Requests *requests.Service
	Schools  *schools.Service
	Auth     *auth.Service
	Profiles storage.ProfileStore
	WSReg    *dispatch.WSRegistry
	Logger   *slog.Logger
	// DefaultRadiusKm applies to searches that carry no radius parameter.
	DefaultRadiusKm float64
}

type Server struct {
	rides         *rides.Service
	requests      *requests.Service
	schools       *schools.Service
	auth          *auth.Service
	profiles      storage.ProfileStore
	wsreg         *dispatch.WSRegistry
	logger        *slog.Logger
	defaultRadius float64
	mux           *mux.Router
}

func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	radius := d.DefaultRadiusKm
	if radius <= 0 {
		radius = models.DefaultRadiusKm
	}
	s := &Server{
		rides:         d.Rides,
		requests:      d.Requests,
		schools:       d.Schools,
		auth:          d.Auth,
		profiles:      d.Profiles,
		wsreg:         d.WSReg,
		logger:        logger,
		defaultRadius: radius,
		mux:           mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/login", s.handleLogin).Methods("POST")
	api.HandleFunc("/profile", s.handleGetProfile).Methods("GET")
	api.HandleFunc("/profile/home", s.handleSaveHomeAddress).Methods("PUT")
	api.HandleFunc("/schools", s.handleSearchSchools).Methods("GET")

	api.HandleFunc("/rides", s.handleCreateRide).Methods("POST")
	api.HandleFunc("/rides/search", s.handleSearchRides).Methods("GET")
	api.HandleFunc("/rides/{ride_id}/status", s.handleSetRideStatus).Methods("POST")
	api.HandleFunc("/rides/{ride_id}/requests", s.handleSubmitRequest).Methods("POST")
	api.HandleFunc("/rides/{ride_id}/requests", s.handleListRideRequests).Methods("GET")

	api.HandleFunc("/my/rides", s.handleMyRides).Methods("GET")
	api.HandleFunc("/my/requests", s.handleMyRequests).Methods("GET")

	api.HandleFunc("/requests/{request_id}/response", s.handleRespondRequest).Methods("POST")
	api.HandleFunc("/requests/{request_id}/cancel", s.handleCancelRequest).Methods("POST")

	s.mux.HandleFunc("/ws/{driver_id}", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

var upgrader = websocket.Upgrader{}

// handleWS registers a driver's notification channel. The driver must be
// authenticated as themselves; the read loop only exists to notice the close.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["driver_id"]
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if userID != driverID {
		writeError(w, http.StatusForbidden, "token does not match driver")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sess := s.wsreg.Add(driverID, conn)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.wsreg.Remove(driverID, sess)
				return
			}
		}
	}()
}
