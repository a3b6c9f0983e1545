package faq

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/deskmate/internal/llm"
)

// mockBackend implements llm.Backend for testing.
type mockBackend struct {
	text   string
	err    error
	calls  int
	prompt string
	// hang blocks Complete until ctx is done.
	hang bool
}

func (m *mockBackend) Complete(ctx context.Context, prompt string) (llm.Completion, error) {
	m.calls++
	m.prompt = prompt
	if m.hang {
		<-ctx.Done()
		return llm.Completion{}, ctx.Err()
	}
	return llm.Completion{Text: m.text}, m.err
}

type fakeLoader struct {
	doc Document
	err error
}

func (f fakeLoader) Load(ctx context.Context, ref string) (Document, error) {
	return f.doc, f.err
}

func newTestExtractor(text string, err error) (*Extractor, *mockBackend) {
	mock := &mockBackend{text: text, err: err}
	loader := fakeLoader{doc: Document{Name: "guide.txt", Kind: KindText, Text: "Password resets live under Settings."}}
	return NewExtractor(mock, loader, 0), mock
}

func TestExtract_FencedArray(t *testing.T) {
	e, _ := newTestExtractor("```json\n[{\"question\":\"Q1\",\"answer\":\"A1\"}]\n```", nil)
	got := e.Extract(context.Background(), "guide.txt")

	want := []Pair{{Question: "Q1", Answer: "A1"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %+v, want %+v", got, want)
	}
}

func TestExtract_DegradesToEmpty(t *testing.T) {
	tests := []struct {
		name string
		text string
		err  error
	}{
		{"not json", "not json", nil},
		{"object instead of array", `{"question":"Q","answer":"A"}`, nil},
		{"empty reply", "", nil},
		{"backend error", "", errors.New("timeout")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, _ := newTestExtractor(tc.text, tc.err)
			got := e.Extract(context.Background(), "guide.txt")
			if got == nil || len(got) != 0 {
				t.Errorf("Extract() = %#v, want empty non-nil slice", got)
			}
		})
	}
}

func TestExtract_DropsIncompletePairs(t *testing.T) {
	e, _ := newTestExtractor(`[{"question":"  Q1 ","answer":"A1"},{"question":"","answer":"A2"},{"question":"Q3"}]`, nil)
	got := e.Extract(context.Background(), "guide.txt")

	want := []Pair{{Question: "Q1", Answer: "A1"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %+v, want %+v", got, want)
	}
}

func TestExtract_LoadFailureSkipsBackend(t *testing.T) {
	mock := &mockBackend{text: `[{"question":"Q","answer":"A"}]`}
	e := NewExtractor(mock, fakeLoader{err: errors.New("no such file")}, 0)

	if got := e.Extract(context.Background(), "missing.pdf"); len(got) != 0 {
		t.Errorf("Extract() = %+v, want empty", got)
	}
	if mock.calls != 0 {
		t.Errorf("backend called %d times, want 0", mock.calls)
	}
}

func TestExtractText_PromptAndTruncation(t *testing.T) {
	mock := &mockBackend{text: "[]"}
	e := NewExtractor(mock, fakeLoader{}, 10)

	e.ExtractText(context.Background(), "0123456789ABCDEF")
	if !strings.Contains(mock.prompt, "0123456789") {
		t.Errorf("prompt missing document text:\n%s", mock.prompt)
	}
	if strings.Contains(mock.prompt, "ABCDEF") {
		t.Error("document text was not truncated")
	}
	if !strings.Contains(mock.prompt, "output an empty array") {
		t.Error("prompt lacks empty-array instruction")
	}
}

func TestExtractText_EmptyDocument(t *testing.T) {
	mock := &mockBackend{text: "[]"}
	e := NewExtractor(mock, fakeLoader{}, 0)
	if got := e.ExtractText(context.Background(), "   "); len(got) != 0 {
		t.Errorf("ExtractText() = %+v", got)
	}
	if mock.calls != 0 {
		t.Errorf("backend called for empty document")
	}
}

func TestConsider(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		want  *Pair
	}{
		{"should not save", `{"shouldSave": false}`, nil, nil},
		{"refined pair", `{"question":"Q","answer":"A"}`, nil, &Pair{Question: "Q", Answer: "A"}},
		{"missing question", `{"answer":"A"}`, nil, &Pair{Question: "How do I reset my password?", Answer: "A"}},
		{"missing answer", "```json\n{\"question\":\"Q\"}\n```", nil, &Pair{Question: "Q", Answer: "Go to Settings > Security."}},
		{"explicit save", `{"shouldSave": true, "question":"Q","answer":"A"}`, nil, &Pair{Question: "Q", Answer: "A"}},
		{"parse failure", "I think this is worth saving", nil, nil},
		{"array reply", `[{"question":"Q","answer":"A"}]`, nil, nil},
		{"null reply", "null", nil, nil},
		{"empty object", `{}`, nil, nil},
		{"null verdict", `{"shouldSave": null}`, nil, nil},
		{"blank fields", `{"question":" ","answer":""}`, nil, nil},
		{"save without fields", `{"shouldSave": true}`, nil, &Pair{Question: "How do I reset my password?", Answer: "Go to Settings > Security."}},
		{"backend error", "", errors.New("503"), nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLearner(&mockBackend{text: tc.reply, err: tc.err})
			got := l.Consider(context.Background(), "How do I reset my password?", "Go to Settings > Security.")
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Consider() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestConsider_EmptyInputSkipsBackend(t *testing.T) {
	mock := &mockBackend{text: `{"question":"Q","answer":"A"}`}
	l := NewLearner(mock)

	if got := l.Consider(context.Background(), " ", "answer"); got != nil {
		t.Errorf("Consider(empty question) = %+v", got)
	}
	if got := l.Consider(context.Background(), "question", ""); got != nil {
		t.Errorf("Consider(empty answer) = %+v", got)
	}
	if mock.calls != 0 {
		t.Errorf("backend called %d times, want 0", mock.calls)
	}
}

func TestConsider_PromptContainsExchange(t *testing.T) {
	mock := &mockBackend{text: `{"shouldSave": false}`}
	NewLearner(mock).Consider(context.Background(), "Where are invoices?", "Under Billing.")

	for _, s := range []string{"Where are invoices?", "Under Billing.", `{"shouldSave": false}`} {
		if !strings.Contains(mock.prompt, s) {
			t.Errorf("prompt missing %q", s)
		}
	}
}

func TestBackendCallsAreBounded(t *testing.T) {
	mock := &mockBackend{hang: true}

	e := NewExtractor(mock, fakeLoader{}, 0)
	e.SetTimeout(20 * time.Millisecond)
	start := time.Now()
	if got := e.ExtractText(context.Background(), "Password resets live under Settings."); len(got) != 0 {
		t.Errorf("ExtractText() = %+v, want empty", got)
	}

	l := NewLearner(mock)
	l.SetTimeout(20 * time.Millisecond)
	if got := l.Consider(context.Background(), "How do I reset my password?", "Go to Settings > Security."); got != nil {
		t.Errorf("Consider() = %+v, want nil", got)
	}

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("hung backend held calls for %v", elapsed)
	}
	if mock.calls != 2 {
		t.Errorf("backend calls = %d, want 2", mock.calls)
	}
}
