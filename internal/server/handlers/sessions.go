package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/feedlens/feedlens/internal/core"
)

// SessionSource provides read-only access to persisted collection sessions.
type SessionSource interface {
	ListSessions(ctx context.Context, subject string, status core.SessionStatus, limit int) ([]core.CollectionSession, error)
	GetSession(ctx context.Context, id string) (*core.CollectionSession, error)
}

var sessionSource SessionSource

// SetSessionSource injects the session store used by the session endpoints.
func SetSessionSource(source SessionSource) {
	sessionSource = source
}

const defaultSessionListLimit = 50

// SessionsListHandler returns recent sessions, newest first. Supports
// ?subject=, ?status=, and ?limit= query filters.
func SessionsListHandler(w http.ResponseWriter, r *http.Request) {
	if sessionSource == nil {
		respondWithError(w, r, errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "session store not configured"))
		return
	}

	query := r.URL.Query()
	subject := strings.TrimSpace(query.Get("subject"))

	var status core.SessionStatus
	if value := strings.TrimSpace(query.Get("status")); value != "" {
		status = core.SessionStatus(value)
	}

	limit := defaultSessionListLimit
	if value := strings.TrimSpace(query.Get("limit")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			respondWithError(w, r, errors.NewErrorEnvelope("INVALID_INPUT", "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	sessions, err := sessionSource.ListSessions(r.Context(), subject, status, limit)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// SessionShowHandler returns one session by id.
func SessionShowHandler(w http.ResponseWriter, r *http.Request) {
	if sessionSource == nil {
		respondWithError(w, r, errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "session store not configured"))
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondWithError(w, r, errors.NewErrorEnvelope("INVALID_INPUT", "session id is required"))
		return
	}

	session, err := sessionSource.GetSession(r.Context(), id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if session == nil {
		respondWithError(w, r, errors.NewErrorEnvelope("NOT_FOUND", "session "+id+" not found"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(session)
}
