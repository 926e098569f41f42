package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/efterskole-rides/internal/auth"
	"github.com/example/efterskole-rides/internal/observability"
	"github.com/example/efterskole-rides/internal/requests"
	"github.com/example/efterskole-rides/internal/rides"
	"github.com/example/efterskole-rides/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps service errors onto the HTTP surface. Duplicate
// submissions carry a machine-readable code so the client can show the
// pending vs accepted message.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated), errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, requests.ErrAlreadyPending):
		observability.DuplicateRequests.WithLabelValues("pending").Inc()
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "already_pending"})
	case errors.Is(err, requests.ErrAlreadyAccepted):
		observability.DuplicateRequests.WithLabelValues("accepted").Inc()
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "already_accepted"})
	case errors.Is(err, requests.ErrNotPending):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, requests.ErrNotRideOwner), errors.Is(err, requests.ErrNotPassenger),
		errors.Is(err, rides.ErrNotRideOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, requests.ErrRideNotFound), errors.Is(err, requests.ErrRequestNotFound),
		errors.Is(err, rides.ErrRideNotFound), errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, rides.ErrValidation), errors.Is(err, requests.ErrInvalidDecision):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// requireUser pulls the authenticated user or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserID(r.Context())
	if !ok {
		writeDomainError(w, auth.ErrNotAuthenticated)
		return "", false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}
