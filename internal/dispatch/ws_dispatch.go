// Package dispatch pushes request notifications to connected drivers over
// WebSocket. Delivery is best-effort: a driver without a session simply
// finds the request in their list later.
package dispatch

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

var ErrNoSession = errors.New("no websocket session for driver")

// WSSession is one connected driver. Writes are serialized per connection.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(payload)
}

// WSRegistry holds driver sessions keyed by driver ID. A reconnect replaces
// the previous session.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
	logger   *slog.Logger
}

func NewWSRegistry(logger *slog.Logger) *WSRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSRegistry{sessions: make(map[string]*WSSession), logger: logger}
}

func (r *WSRegistry) Add(driverID string, conn *websocket.Conn) *WSSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sessions[driverID]; ok {
		_ = old.conn.Close()
	}
	s := &WSSession{conn: conn}
	r.sessions[driverID] = s
	return s
}

// Remove drops a session only while it is still the registered one. The read
// loop of a replaced connection fires its cleanup after Add has already
// swapped in the new session; without the identity check that stale cleanup
// would evict the reconnected driver.
func (r *WSRegistry) Remove(driverID string, s *WSSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[driverID]; ok && cur == s {
		_ = cur.conn.Close()
		delete(r.sessions, driverID)
	}
}

func (r *WSRegistry) Notify(driverID string, payload any) error {
	r.mu.RLock()
	s, ok := r.sessions[driverID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.Send(payload); err != nil {
		r.logger.Warn("ws send failed", "driver_id", driverID, "error", err)
		r.Remove(driverID, s)
		return err
	}
	return nil
}
