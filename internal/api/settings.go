package api

import (
	"log/slog"
	"net/http"
)

type availabilityRequest struct {
	Enabled *bool `json:"enabled"`
}

func handleGetAvailability(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := deps.Gate.Get(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read availability: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, f)
	}
}

func handlePutAvailability(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req availabilityRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Enabled == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "enabled is required")
			return
		}

		f, err := deps.Gate.SetEnabled(r.Context(), *req.Enabled)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update availability: %v", err)
			return
		}
		slog.Info("assistant availability changed", "enabled", f.Enabled, "by", userID(r))
		writeJSON(w, http.StatusOK, f)
	}
}
