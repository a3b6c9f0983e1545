// Package chat answers one user message at a time: it checks the
// availability gate, loads the user's recent turns and the FAQ set, composes
// a prompt, generates a reply and records the exchange.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kalambet/deskmate/internal/composer"
	"github.com/kalambet/deskmate/internal/storage"
)

var (
	// ErrAIDisabled is returned when an admin has switched the assistant off.
	ErrAIDisabled = errors.New("the AI assistant is currently disabled")
	// ErrValidation wraps every rejected input.
	ErrValidation = errors.New("invalid chat message")
)

const (
	// DefaultHistoryLimit is how many recent turns are loaded per message.
	DefaultHistoryLimit = 10
	// DefaultMaxMessageChars caps a message's length in runes.
	DefaultMaxMessageChars = 4000
)

// Gate reports whether the assistant is switched on.
type Gate interface {
	IsEnabled(ctx context.Context) (bool, error)
}

// TurnStore reads and appends a user's conversation memory.
type TurnStore interface {
	ListRecentTurns(ctx context.Context, userID string, limit int) ([]storage.MemoryTurn, error)
	AppendTurn(ctx context.Context, userID, message, response string) (storage.MemoryTurn, error)
}

// FaqStore lists the shared knowledge base.
type FaqStore interface {
	ListFaqEntries(ctx context.Context) ([]storage.FaqEntry, error)
}

// Generator turns a composed prompt into a reply.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// JobQueue accepts background learning jobs.
type JobQueue interface {
	EnqueueJob(ctx context.Context, job storage.Job) error
}

// Options tunes an Orchestrator. Zero values select the defaults.
type Options struct {
	Persona         string
	HistoryLimit    int
	MaxMessageChars int

	// LearningEnabled queues every LearnEveryN-th successful exchange for
	// background conversation learning.
	LearningEnabled bool
	LearnEveryN     int
}

// Orchestrator handles chat messages end to end.
type Orchestrator struct {
	gate      Gate
	turns     TurnStore
	faqs      FaqStore
	composer  *composer.Composer
	generator Generator
	queue     JobQueue
	opts      Options

	turnCount atomic.Uint64
}

// New creates an Orchestrator. queue may be nil when learning is disabled.
func New(g Gate, turns TurnStore, faqs FaqStore, comp *composer.Composer, gen Generator, queue JobQueue, opts Options) *Orchestrator {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.MaxMessageChars <= 0 {
		opts.MaxMessageChars = DefaultMaxMessageChars
	}
	if opts.LearnEveryN <= 0 {
		opts.LearnEveryN = 1
	}
	return &Orchestrator{
		gate:      g,
		turns:     turns,
		faqs:      faqs,
		composer:  comp,
		generator: gen,
		queue:     queue,
		opts:      opts,
	}
}

// HandleMessage returns the assistant's reply to message and records exactly
// one turn for userID. Nothing is recorded when any step fails.
//
// Errors: ErrAIDisabled when the gate is off, ErrValidation for bad input,
// *generator.GenerationError when the backend fails.
func (o *Orchestrator) HandleMessage(ctx context.Context, userID, message string) (string, error) {
	enabled, err := o.gate.IsEnabled(ctx)
	if err != nil {
		return "", fmt.Errorf("checking availability: %w", err)
	}
	if !enabled {
		slog.Debug("chat rejected: assistant disabled", "user_id", userID)
		return "", ErrAIDisabled
	}

	if err := o.validate(userID, message); err != nil {
		return "", err
	}

	recent, err := o.turns.ListRecentTurns(ctx, userID, o.opts.HistoryLimit)
	if err != nil {
		return "", fmt.Errorf("loading history: %w", err)
	}
	slices.Reverse(recent)

	faqs, err := o.faqs.ListFaqEntries(ctx)
	if err != nil {
		slog.Warn("loading FAQ entries failed, composing without knowledge base", "error", err)
		faqs = nil
	}

	prompt := o.composer.Compose(o.opts.Persona, faqs, recent, message)
	slog.Debug("prompt composed",
		"user_id", userID,
		"history_turns", len(recent),
		"faq_entries", len(faqs),
		"estimated_tokens", composer.EstimateTokens(prompt),
	)

	response, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	turn, err := o.turns.AppendTurn(ctx, userID, message, response)
	if err != nil {
		return "", fmt.Errorf("saving turn: %w", err)
	}

	o.maybeQueueLearning(ctx, turn)
	return response, nil
}

// History returns up to limit of the user's turns, oldest first.
func (o *Orchestrator) History(ctx context.Context, userID string, limit int) ([]storage.MemoryTurn, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if limit <= 0 {
		limit = o.opts.HistoryLimit
	}
	turns, err := o.turns.ListRecentTurns(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	slices.Reverse(turns)
	return turns, nil
}

func (o *Orchestrator) validate(userID, message string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("%w: message must not be empty", ErrValidation)
	}
	if n := utf8.RuneCountInString(message); n > o.opts.MaxMessageChars {
		return fmt.Errorf("%w: message is %d characters, limit is %d", ErrValidation, n, o.opts.MaxMessageChars)
	}
	return nil
}

func (o *Orchestrator) maybeQueueLearning(ctx context.Context, turn storage.MemoryTurn) {
	if !o.opts.LearningEnabled || o.queue == nil {
		return
	}
	if n := o.turnCount.Add(1); n%uint64(o.opts.LearnEveryN) != 0 {
		return
	}

	payload, err := json.Marshal(storage.LearnPayload{
		TurnID:   turn.ID,
		Question: turn.Message,
		Answer:   turn.Response,
	})
	if err != nil {
		slog.Warn("encoding learning job failed", "error", err)
		return
	}
	job := storage.Job{
		ID:          uuid.New().String(),
		Type:        storage.JobFaqLearn,
		PayloadJSON: string(payload),
	}
	if err := o.queue.EnqueueJob(ctx, job); err != nil {
		slog.Warn("queueing learning job failed", "turn_id", turn.ID, "error", err)
		return
	}
	slog.Debug("learning job queued", "job_id", job.ID, "turn_id", turn.ID)
}
