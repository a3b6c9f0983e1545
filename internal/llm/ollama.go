package llm

import (
	"context"

	"github.com/kalambet/deskmate/internal/ollama"
)

// OllamaChatter is the subset of ollama.Client used by the adapter.
type OllamaChatter interface {
	Chat(ctx context.Context, model string, messages []ollama.Message) (string, error)
}

// Ollama sends each prompt as a single user message to a local Ollama model.
type Ollama struct {
	client OllamaChatter
	model  string
}

func NewOllama(client OllamaChatter, model string) *Ollama {
	return &Ollama{client: client, model: model}
}

func (o *Ollama) Complete(ctx context.Context, prompt string) (Completion, error) {
	text, err := o.client.Chat(ctx, o.model, []ollama.Message{
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return Completion{}, err
	}
	return Completion{Text: text}, nil
}
