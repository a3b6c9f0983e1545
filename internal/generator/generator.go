// Package generator turns a composed prompt into the assistant's reply.
package generator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/deskmate/internal/llm"
)

const DefaultTimeout = 30 * time.Second

// FallbackResponse is returned when the backend produces no text.
const FallbackResponse = "I'm sorry, I couldn't come up with an answer to that. Could you rephrase your question?"

const unavailableMessage = "The assistant is temporarily unavailable. Please try again later."

// GenerationError reports a failed backend call. Its message is safe to show
// to end users; the underlying cause is only reachable through Unwrap.
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string { return unavailableMessage }

func (e *GenerationError) Unwrap() error { return e.Cause }

// Generator issues exactly one backend call per prompt.
type Generator struct {
	backend llm.Backend
	timeout time.Duration
}

// New creates a Generator. A non-positive timeout selects DefaultTimeout.
func New(backend llm.Backend, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Generator{backend: backend, timeout: timeout}
}

// Generate returns the backend's text for prompt, or FallbackResponse when
// the text is blank. Backend failures, including the timeout, are returned
// as *GenerationError.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	c, err := g.backend.Complete(ctx, prompt)
	if err != nil {
		slog.Error("response generation failed", "error", err, "elapsed", time.Since(start))
		return "", &GenerationError{Cause: err}
	}

	text := strings.TrimSpace(c.Text)
	if text == "" {
		slog.Warn("backend returned empty text, using fallback response")
		return FallbackResponse, nil
	}
	slog.Debug("response generated", "chars", len(text), "elapsed", time.Since(start))
	return text, nil
}
