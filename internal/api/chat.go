package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kalambet/deskmate/internal/chat"
	"github.com/kalambet/deskmate/internal/generator"
	"github.com/kalambet/deskmate/internal/storage"
)

const maxHistoryLimit = 100

type chatMessageRequest struct {
	Message string `json:"message"`
}

type chatMessageResponse struct {
	Response string `json:"response"`
}

func handleChatMessage(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// A disabled assistant rejects every request the same way, even one
		// whose body would not decode. Gate read errors are left to HandleMessage.
		if enabled, err := deps.Gate.IsEnabled(r.Context()); err == nil && !enabled {
			writeChatError(w, chat.ErrAIDisabled)
			return
		}

		var req chatMessageRequest
		if !decodeBody(w, r, &req) {
			return
		}

		reply, err := deps.Chat.HandleMessage(r.Context(), userID(r), req.Message)
		if err != nil {
			writeChatError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, chatMessageResponse{Response: reply})
	}
}

func handleChatHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 0, maxHistoryLimit)

		turns, err := deps.Chat.History(r.Context(), userID(r), limit)
		if err != nil {
			writeChatError(w, err)
			return
		}
		if turns == nil {
			turns = []storage.MemoryTurn{}
		}
		writeJSON(w, http.StatusOK, turns)
	}
}

type pruneResponse struct {
	UserID    string `json:"user_id"`
	Deleted   int    `json:"deleted"`
	Remaining int    `json:"remaining"`
}

// handlePruneHistory drops all but the newest keep turns of the user named
// by the user header.
func handlePruneHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := userID(r)
		if strings.TrimSpace(user) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%s header is required", headerUserID)
			return
		}
		keep := parseIntParam(r, "keep", 0, 0)

		deleted, err := deps.Store.PruneTurns(r.Context(), user, keep)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to prune history: %v", err)
			return
		}
		remaining, err := deps.Store.CountTurns(r.Context(), user)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count turns: %v", err)
			return
		}
		slog.Info("conversation history pruned", "user_id", user, "keep", keep, "deleted", deleted)
		writeJSON(w, http.StatusOK, pruneResponse{UserID: user, Deleted: deleted, Remaining: remaining})
	}
}

// writeChatError maps orchestrator errors to HTTP responses. Backend details
// never reach the client.
func writeChatError(w http.ResponseWriter, err error) {
	var genErr *generator.GenerationError
	switch {
	case errors.Is(err, chat.ErrAIDisabled):
		httpError(w, http.StatusServiceUnavailable, "ai_disabled", "%s", err.Error())
	case errors.Is(err, chat.ErrValidation):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", err.Error())
	case errors.As(err, &genErr):
		httpError(w, http.StatusInternalServerError, "generation_error", "%s", genErr.Error())
	default:
		slog.Error("chat request failed", "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", "internal error")
	}
}
