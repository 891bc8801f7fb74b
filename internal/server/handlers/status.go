package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/feedlens/feedlens/internal/core"
)

// PacingRow is one persisted per-scope pacing record.
type PacingRow struct {
	Scope string           `json:"scope"`
	State core.PacingState `json:"state"`
}

var (
	statusSource func() core.RateLimitStatus
	pacingSource func(ctx context.Context) ([]PacingRow, error)
)

// SetStatusSource injects the admission controller snapshot used by the
// rate-limit endpoint.
func SetStatusSource(source func() core.RateLimitStatus) {
	statusSource = source
}

// SetPacingSource injects the persisted pacing-state lister.
func SetPacingSource(source func(ctx context.Context) ([]PacingRow, error)) {
	pacingSource = source
}

// RateLimitStatusHandler returns the live controller snapshot plus the
// persisted per-scope pacing state.
func RateLimitStatusHandler(w http.ResponseWriter, r *http.Request) {
	if statusSource == nil {
		respondWithError(w, r, errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "admission controller not configured"))
		return
	}

	payload := map[string]any{
		"controller": statusSource(),
	}

	if pacingSource != nil {
		rows, err := pacingSource(r.Context())
		if err != nil {
			respondWithError(w, r, err)
			return
		}
		payload["pacing"] = rows
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(payload)
}

// ProfilesHandler returns the built-in pacing catalog.
func ProfilesHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"default":  core.DefaultProfile,
		"profiles": core.BuiltInProfiles,
	})
}
