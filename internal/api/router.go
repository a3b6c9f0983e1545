package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/deskmate/internal/chat"
	"github.com/kalambet/deskmate/internal/gate"
	"github.com/kalambet/deskmate/internal/ingest"
	"github.com/kalambet/deskmate/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

type AppDeps struct {
	Chat      *chat.Orchestrator
	Gate      *gate.Gate
	Store     *storage.Store
	Extractor ingest.DocumentExtractor
	Learner   ingest.ExchangeLearner
	Token     string

	// RatePerMinute caps chat messages per user; 0 disables the limit.
	RatePerMinute int
}

// NewAppHandler returns the HTTP API. /health is open; every other route
// requires the bearer token, and admin routes additionally require the
// admin role header.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.With(RateLimit(deps.RatePerMinute)).Post("/chat/message", handleChatMessage(deps))
		r.Get("/chat/history", handleChatHistory(deps))
		r.With(RequireAdmin).Delete("/chat/history", handlePruneHistory(deps))

		r.Get("/settings/ai", handleGetAvailability(deps))
		r.With(RequireAdmin).Put("/settings/ai", handlePutAvailability(deps))

		r.Get("/faq", handleListFaq(deps))
		r.Get("/faq/{id}", handleGetFaq(deps))
		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Post("/faq", handleAddFaq(deps))
			r.Delete("/faq/{id}", handleDeleteFaq(deps))
			r.Post("/faq/extract", handleExtractFaq(deps))
			r.Post("/faq/learn", handleLearnFaq(deps))
			r.Get("/faq/jobs/{id}", handleGetJob(deps))
		})
	})

	return r
}

type healthResponse struct {
	Status        string `json:"status"`
	SchemaVersion int    `json:"schema_version,omitempty"`
}

// handleHealth reports ok with the latest applied migration, or 503 when the
// database cannot be read.
func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		versions, err := deps.Store.AppliedMigrations()
		if err != nil {
			slog.Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "error"})
			return
		}
		resp := healthResponse{Status: "ok"}
		if n := len(versions); n > 0 {
			resp.SchemaVersion = versions[n-1]
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
