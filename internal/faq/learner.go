package faq

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/deskmate/internal/llm"
	"github.com/kalambet/deskmate/internal/llmjson"
)

type learnReply struct {
	ShouldSave *bool  `json:"shouldSave"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
}

// wantsSave reports whether the verdict asks for a save: an explicit
// shouldSave true, or a refined question or answer with shouldSave absent.
func (r learnReply) wantsSave() bool {
	if r.ShouldSave != nil {
		return *r.ShouldSave
	}
	return strings.TrimSpace(r.Question) != "" || strings.TrimSpace(r.Answer) != ""
}

// Learner judges whether a completed exchange is reusable FAQ knowledge.
type Learner struct {
	backend llm.Backend
	timeout time.Duration
}

func NewLearner(backend llm.Backend) *Learner {
	return &Learner{backend: backend, timeout: DefaultCallTimeout}
}

// SetTimeout bounds each backend call; d <= 0 restores DefaultCallTimeout.
func (l *Learner) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultCallTimeout
	}
	l.timeout = d
}

// Consider returns a refined pair for a FAQ-worthy exchange, or nil. Every
// failure is nil: nothing is saved on doubt. A saving reply missing the
// refined question or answer falls back to the original text.
func (l *Learner) Consider(ctx context.Context, question, answer string) *Pair {
	if strings.TrimSpace(question) == "" || strings.TrimSpace(answer) == "" {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	c, err := l.backend.Complete(callCtx, BuildLearningPrompt(question, answer))
	if err != nil {
		slog.Warn("conversation learning backend call failed", "error", err)
		return nil
	}

	var reply learnReply
	if err := llmjson.DecodeObject(c.Text, &reply); err != nil {
		slog.Warn("failed to parse learning verdict from model reply", "error", err, "response", c.Text)
		return nil
	}
	if !reply.wantsSave() {
		slog.Debug("exchange judged not FAQ-worthy")
		return nil
	}

	p := Pair{Question: reply.Question, Answer: reply.Answer}
	if strings.TrimSpace(p.Question) == "" {
		p.Question = question
	}
	if strings.TrimSpace(p.Answer) == "" {
		p.Answer = answer
	}
	np, ok := p.normalized()
	if !ok {
		return nil
	}
	return &np
}
