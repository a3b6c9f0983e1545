package llm

import (
	"context"

	"github.com/kalambet/deskmate/internal/proxy"
)

// Completer is the subset of proxy.Client used by the adapter.
type Completer interface {
	Complete(ctx context.Context, req proxy.ChatRequest) (string, error)
}

// OpenRouter sends each prompt as a single user message through OpenRouter.
type OpenRouter struct {
	client Completer
	model  string
}

func NewOpenRouter(client Completer, model string) *OpenRouter {
	return &OpenRouter{client: client, model: model}
}

func (o *OpenRouter) Complete(ctx context.Context, prompt string) (Completion, error) {
	text, err := o.client.Complete(ctx, proxy.ChatRequest{
		Model:    o.model,
		Messages: []proxy.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return Completion{}, err
	}
	return Completion{Text: text}, nil
}
