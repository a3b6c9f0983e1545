package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/kalambet/deskmate/internal/ollama"
	"github.com/kalambet/deskmate/internal/proxy"
)

type mockChatter struct {
	model    string
	messages []ollama.Message
	response string
	err      error
}

func (m *mockChatter) Chat(ctx context.Context, model string, messages []ollama.Message) (string, error) {
	m.model = model
	m.messages = messages
	return m.response, m.err
}

type mockCompleter struct {
	req      proxy.ChatRequest
	response string
	err      error
}

func (m *mockCompleter) Complete(ctx context.Context, req proxy.ChatRequest) (string, error) {
	m.req = req
	return m.response, m.err
}

func TestOllama_SingleUserMessage(t *testing.T) {
	mock := &mockChatter{response: "hi there"}
	c, err := NewOllama(mock, "llama3.2").Complete(context.Background(), "PROMPT")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if c.Text != "hi there" {
		t.Errorf("Text = %q", c.Text)
	}
	if mock.model != "llama3.2" {
		t.Errorf("model = %q", mock.model)
	}
	if len(mock.messages) != 1 || mock.messages[0].Role != "user" || mock.messages[0].Content != "PROMPT" {
		t.Errorf("messages = %+v", mock.messages)
	}
}

func TestOllama_PropagatesError(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := NewOllama(&mockChatter{err: boom}, "m").Complete(context.Background(), "p")
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestOpenRouter_SingleUserMessage(t *testing.T) {
	mock := &mockCompleter{response: "answer"}
	c, err := NewOpenRouter(mock, "openai/gpt-4o").Complete(context.Background(), "PROMPT")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if c.Text != "answer" {
		t.Errorf("Text = %q", c.Text)
	}
	if mock.req.Model != "openai/gpt-4o" || len(mock.req.Messages) != 1 || mock.req.Messages[0].Content != "PROMPT" {
		t.Errorf("request = %+v", mock.req)
	}
}

func TestNew_ProviderSelection(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		want    string
		wantErr bool
	}{
		{"default is ollama", Options{OllamaBaseURL: "http://localhost:11434"}, "ollama", false},
		{"explicit ollama", Options{Provider: ProviderOllama}, "ollama", false},
		{"openrouter", Options{Provider: ProviderOpenRouter, OpenRouterAPIKey: "k"}, "openrouter", false},
		{"openrouter without key", Options{Provider: ProviderOpenRouter}, "", true},
		{"unknown", Options{Provider: "gemini"}, "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b, err := New(tc.opts)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			switch b.(type) {
			case *Ollama:
				if tc.want != "ollama" {
					t.Errorf("got Ollama, want %s", tc.want)
				}
			case *OpenRouter:
				if tc.want != "openrouter" {
					t.Errorf("got OpenRouter, want %s", tc.want)
				}
			default:
				t.Errorf("unexpected backend %T", b)
			}
		})
	}
}
