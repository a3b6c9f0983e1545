// Package llm defines the port through which deskmate talks to a remote
// generative model, and the adapters that implement it.
//
// Consumers (generator, FAQ extractor, conversation learner) depend only on
// Backend so the provider can be chosen by configuration.
package llm

import (
	"context"
	"fmt"

	"github.com/kalambet/deskmate/internal/ollama"
	"github.com/kalambet/deskmate/internal/proxy"
)

// Completion is the text produced for a prompt.
type Completion struct {
	Text string
}

// Backend turns a single text prompt into a completion.
type Backend interface {
	Complete(ctx context.Context, prompt string) (Completion, error)
}

const (
	ProviderOllama     = "ollama"
	ProviderOpenRouter = "openrouter"
)

// Options holds the provider settings needed to build a Backend.
type Options struct {
	Provider         string
	OllamaBaseURL    string
	OllamaModel      string
	OpenRouterAPIKey string
	OpenRouterModel  string
}

// New returns the Backend selected by opts.Provider. An empty provider
// selects Ollama.
func New(opts Options) (Backend, error) {
	switch opts.Provider {
	case "", ProviderOllama:
		return NewOllama(ollama.New(opts.OllamaBaseURL), opts.OllamaModel), nil
	case ProviderOpenRouter:
		if opts.OpenRouterAPIKey == "" {
			return nil, fmt.Errorf("provider %s requires an API key", ProviderOpenRouter)
		}
		return NewOpenRouter(proxy.NewClient(opts.OpenRouterAPIKey), opts.OpenRouterModel), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}
}
