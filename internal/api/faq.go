package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/deskmate/internal/ingest"
	"github.com/kalambet/deskmate/internal/storage"
)

type addFaqRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type extractRequest struct {
	Document string `json:"document"`
	Async    bool   `json:"async"`
}

type extractResponse struct {
	Entries []storage.FaqEntry `json:"entries"`
}

type learnResponse struct {
	Saved bool              `json:"saved"`
	Entry *storage.FaqEntry `json:"entry,omitempty"`
}

type jobResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
}

func handleListFaq(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			entries []storage.FaqEntry
			err     error
		)
		if src := r.URL.Query().Get("source"); src != "" {
			source := storage.FaqSource(src)
			if !source.Valid() {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown source %q", src)
				return
			}
			entries, err = deps.Store.ListFaqEntriesBySource(r.Context(), source)
		} else {
			entries, err = deps.Store.ListFaqEntries(r.Context())
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list FAQ entries: %v", err)
			return
		}
		if entries == nil {
			entries = []storage.FaqEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func handleAddFaq(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addFaqRequest
		if !decodeBody(w, r, &req) {
			return
		}

		e, err := deps.Store.AddFaqEntry(r.Context(), req.Question, req.Answer, storage.SourceManual)
		if errors.Is(err, storage.ErrInvalidFaq) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question and answer are required")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save FAQ entry: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

func handleGetFaq(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := deps.Store.GetFaqEntry(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "FAQ entry not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get FAQ entry: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func handleDeleteFaq(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := deps.Store.DeleteFaqEntry(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "FAQ entry not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete FAQ entry: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleExtractFaq(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req extractRequest
		if !decodeBody(w, r, &req) {
			return
		}
		doc := strings.TrimSpace(req.Document)
		if doc == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "document is required")
			return
		}

		if req.Async {
			jobID, err := ingest.EnqueueExtract(r.Context(), deps.Store, doc)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue extraction: %v", err)
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{
				"job_id": jobID,
				"status": "queued",
			})
			return
		}

		pairs := deps.Extractor.Extract(r.Context(), doc)
		saved, err := ingest.SavePairs(r.Context(), deps.Store, pairs, storage.SourcePDF)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "saved %d of %d entries: %v", len(saved), len(pairs), err)
			return
		}
		writeJSON(w, http.StatusOK, extractResponse{Entries: saved})
	}
}

func handleLearnFaq(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addFaqRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.Answer) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question and answer are required")
			return
		}

		p := deps.Learner.Consider(r.Context(), req.Question, req.Answer)
		if p == nil {
			writeJSON(w, http.StatusOK, learnResponse{Saved: false})
			return
		}

		e, err := deps.Store.AddFaqEntry(r.Context(), p.Question, p.Answer, storage.SourceConversation)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save learned entry: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, learnResponse{Saved: true, Entry: &e})
	}
}

func handleGetJob(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		j, err := deps.Store.GetJob(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get job: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, jobResponse{
			ID:        j.ID,
			Type:      j.Type,
			Status:    j.Status,
			Attempts:  j.Attempts,
			LastError: j.LastError,
		})
	}
}
