package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/deskmate/internal/composer"
	"github.com/kalambet/deskmate/internal/gate"
	"github.com/kalambet/deskmate/internal/generator"
	"github.com/kalambet/deskmate/internal/llm"
	"github.com/kalambet/deskmate/internal/storage"
)

// mockBackend implements llm.Backend for testing.
type mockBackend struct {
	text    string
	err     error
	calls   int
	prompts []string
}

func (m *mockBackend) Complete(ctx context.Context, prompt string) (llm.Completion, error) {
	m.calls++
	m.prompts = append(m.prompts, prompt)
	return llm.Completion{Text: m.text}, m.err
}

// countingTurns wraps the store and counts writes.
type countingTurns struct {
	*storage.Store
	appends   int
	appendErr error
}

func (c *countingTurns) AppendTurn(ctx context.Context, userID, message, response string) (storage.MemoryTurn, error) {
	c.appends++
	if c.appendErr != nil {
		return storage.MemoryTurn{}, c.appendErr
	}
	return c.Store.AppendTurn(ctx, userID, message, response)
}

type failingFaqs struct{}

func (failingFaqs) ListFaqEntries(ctx context.Context) ([]storage.FaqEntry, error) {
	return nil, errors.New("disk I/O error")
}

type fixture struct {
	store   *storage.Store
	turns   *countingTurns
	backend *mockBackend
	gate    *gate.Gate
	orch    *Orchestrator
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	f := &fixture{
		store:   s,
		turns:   &countingTurns{Store: s},
		backend: &mockBackend{text: "Go to Settings > Security."},
		gate:    gate.New(s),
	}
	f.orch = New(f.gate, f.turns, s, composer.New(5), generator.New(f.backend, time.Second), s, opts)
	return f
}

func TestHandleMessage_EndToEnd(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	f.store.AppendTurn(ctx, "u1", "Hi", "Hello! How can I help?")
	f.store.AppendTurn(ctx, "u1", "I can't log in", "Have you tried resetting your password?")
	f.store.AddFaqEntry(ctx, "Where is billing?", "Under Account > Billing.", storage.SourceManual)

	got, err := f.orch.HandleMessage(ctx, "u1", "How do I reset my password?")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if got != "Go to Settings > Security." {
		t.Errorf("response = %q", got)
	}

	if f.turns.appends != 1 {
		t.Errorf("appends = %d, want 1", f.turns.appends)
	}
	n, _ := f.store.CountTurns(ctx, "u1")
	if n != 3 {
		t.Errorf("CountTurns = %d, want 3", n)
	}
	latest, _ := f.store.ListRecentTurns(ctx, "u1", 1)
	if latest[0].Message != "How do I reset my password?" || latest[0].Response != "Go to Settings > Security." {
		t.Errorf("latest turn = %+v", latest[0])
	}

	prompt := f.backend.prompts[0]
	first := strings.Index(prompt, "User: Hi\n")
	second := strings.Index(prompt, "User: I can't log in\n")
	if first < 0 || second < 0 || first > second {
		t.Errorf("history not rendered oldest-first:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Q: Where is billing?") {
		t.Error("prompt missing FAQ entry")
	}
}

func TestHandleMessage_GateOff(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.gate.SetEnabled(ctx, false)

	_, err := f.orch.HandleMessage(ctx, "u1", "hello")
	if !errors.Is(err, ErrAIDisabled) {
		t.Fatalf("err = %v, want ErrAIDisabled", err)
	}
	if f.backend.calls != 0 {
		t.Errorf("backend called %d times, want 0", f.backend.calls)
	}
	if f.turns.appends != 0 {
		t.Errorf("appends = %d, want 0", f.turns.appends)
	}
}

func TestHandleMessage_GenerationErrorWritesNothing(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.store.AppendTurn(ctx, "u1", "earlier", "reply")
	f.backend.err = errors.New("connection reset")

	_, err := f.orch.HandleMessage(ctx, "u1", "How do I reset my password?")

	var genErr *generator.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("err = %v, want *GenerationError", err)
	}
	if f.turns.appends != 0 {
		t.Errorf("appends = %d, want 0", f.turns.appends)
	}
	if n, _ := f.store.CountTurns(ctx, "u1"); n != 1 {
		t.Errorf("CountTurns = %d, want 1", n)
	}
}

func TestHandleMessage_Validation(t *testing.T) {
	f := newFixture(t, Options{MaxMessageChars: 10})
	tests := []struct {
		name    string
		userID  string
		message string
	}{
		{"empty message", "u1", ""},
		{"blank message", "u1", "  \n\t"},
		{"missing user", "", "hello"},
		{"too long", "u1", "hello world!"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.orch.HandleMessage(context.Background(), tc.userID, tc.message)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
	if f.backend.calls != 0 {
		t.Errorf("backend called %d times, want 0", f.backend.calls)
	}
}

func TestHandleMessage_FaqFailureDegrades(t *testing.T) {
	f := newFixture(t, Options{})
	orch := New(f.gate, f.turns, failingFaqs{}, composer.New(5), generator.New(f.backend, time.Second), nil, Options{})

	got, err := orch.HandleMessage(context.Background(), "u1", "hello")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if got == "" {
		t.Error("empty response")
	}
	if strings.Contains(f.backend.prompts[0], "Knowledge base") {
		t.Error("prompt rendered FAQ block despite read failure")
	}
}

func TestHandleMessage_PersistFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.turns.appendErr = errors.New("database is locked")

	got, err := f.orch.HandleMessage(context.Background(), "u1", "hello")
	if err == nil {
		t.Fatal("expected error when the turn cannot be saved")
	}
	if got != "" {
		t.Errorf("response = %q returned without a record", got)
	}
}

func TestHandleMessage_QueuesLearningEveryN(t *testing.T) {
	f := newFixture(t, Options{LearningEnabled: true, LearnEveryN: 2})
	ctx := context.Background()

	for _, msg := range []string{"one", "two", "three"} {
		if _, err := f.orch.HandleMessage(ctx, "u1", msg); err != nil {
			t.Fatalf("HandleMessage(%q): %v", msg, err)
		}
	}

	job, err := f.store.ClaimNextJob(ctx, []string{storage.JobFaqLearn})
	if err != nil || job == nil {
		t.Fatalf("ClaimNextJob = %v, %v; want a job", job, err)
	}
	var p storage.LearnPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.Question != "two" || p.Answer != "Go to Settings > Security." || p.TurnID == "" {
		t.Errorf("payload = %+v", p)
	}

	if next, _ := f.store.ClaimNextJob(ctx, []string{storage.JobFaqLearn}); next != nil {
		t.Errorf("unexpected second job %+v", next)
	}
}

func TestHandleMessage_LearningDisabledQueuesNothing(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	f.orch.HandleMessage(ctx, "u1", "hello")
	if job, _ := f.store.ClaimNextJob(ctx, []string{storage.JobFaqLearn}); job != nil {
		t.Errorf("job queued with learning disabled: %+v", job)
	}
}

func TestHistory_OldestFirst(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	for _, m := range []string{"a", "b", "c"} {
		f.store.AppendTurn(ctx, "u1", m, "r")
	}
	f.store.AppendTurn(ctx, "u2", "other", "r")

	turns, err := f.orch.History(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(turns) != 2 || turns[0].Message != "b" || turns[1].Message != "c" {
		t.Errorf("History = %+v", turns)
	}

	if _, err := f.orch.History(ctx, "", 2); !errors.Is(err, ErrValidation) {
		t.Errorf("History(no user) err = %v", err)
	}
}
