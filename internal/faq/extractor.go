package faq

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/deskmate/internal/llm"
	"github.com/kalambet/deskmate/internal/llmjson"
)

const (
	DefaultMaxDocumentChars = 60000
	// DefaultCallTimeout bounds one extraction or learning backend call.
	DefaultCallTimeout = 2 * time.Minute
)

// Loader resolves a document reference to its text.
type Loader interface {
	Load(ctx context.Context, ref string) (Document, error)
}

// Extractor asks the backend for the FAQ pairs contained in a document.
type Extractor struct {
	backend  llm.Backend
	loader   Loader
	maxChars int
	timeout  time.Duration
}

// NewExtractor creates an Extractor. Document text longer than maxChars runes
// is truncated before prompting; maxChars <= 0 selects DefaultMaxDocumentChars.
func NewExtractor(backend llm.Backend, loader Loader, maxChars int) *Extractor {
	if maxChars <= 0 {
		maxChars = DefaultMaxDocumentChars
	}
	return &Extractor{backend: backend, loader: loader, maxChars: maxChars, timeout: DefaultCallTimeout}
}

// SetTimeout bounds each backend call; d <= 0 restores DefaultCallTimeout.
func (e *Extractor) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultCallTimeout
	}
	e.timeout = d
}

// Extract loads the referenced document and returns its FAQ pairs. It never
// fails: an unreadable document or unusable reply yields an empty slice.
func (e *Extractor) Extract(ctx context.Context, ref string) []Pair {
	doc, err := e.loader.Load(ctx, ref)
	if err != nil {
		slog.Warn("loading document for FAQ extraction failed", "document", ref, "error", err)
		return []Pair{}
	}
	return e.ExtractText(ctx, doc.Text)
}

// ExtractText returns the FAQ pairs found in text.
func (e *Extractor) ExtractText(ctx context.Context, text string) []Pair {
	text = strings.TrimSpace(text)
	if text == "" {
		return []Pair{}
	}
	if r := []rune(text); len(r) > e.maxChars {
		slog.Debug("truncating document for FAQ extraction", "chars", len(r), "max", e.maxChars)
		text = string(r[:e.maxChars])
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	c, err := e.backend.Complete(callCtx, BuildExtractionPrompt(text))
	if err != nil {
		slog.Warn("FAQ extraction backend call failed", "error", err)
		return []Pair{}
	}

	var raw []Pair
	if err := llmjson.DecodeArray(c.Text, &raw); err != nil {
		slog.Warn("failed to parse FAQ pairs from model reply", "error", err, "response", c.Text)
		return []Pair{}
	}

	pairs := make([]Pair, 0, len(raw))
	for _, p := range raw {
		np, ok := p.normalized()
		if !ok {
			continue
		}
		pairs = append(pairs, np)
	}
	if dropped := len(raw) - len(pairs); dropped > 0 {
		slog.Warn("dropped incomplete FAQ pairs", "count", dropped)
	}
	return pairs
}
