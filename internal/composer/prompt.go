package composer

import (
	"fmt"
	"strings"

	"github.com/kalambet/deskmate/internal/storage"
)

const defaultPromptTurns = 5

// NoHistoryMarker is rendered in place of the history block when the user
// has no prior turns, so the model does not invent earlier context.
const NoHistoryMarker = "(no previous conversation)"

// DefaultPersona is the system preamble used when none is configured.
const DefaultPersona = `You are the support assistant of a ticketing help desk. You help users understand the platform, troubleshoot problems, and decide when to open or update a support ticket. Be friendly, concise, and accurate. If you are not sure about something, say so and suggest filing a ticket so a human administrator can help.`

const faqInstruction = "Use the knowledge base naturally when it is relevant to the user's question. Do not quote it verbatim or mention that it exists."

const finalInstruction = "Respond helpfully to the user's latest message, staying consistent with the conversation so far."

// Composer assembles the single text prompt sent to the generative backend
// from a persona, the FAQ knowledge base, recent conversation turns and the
// new user message.
type Composer struct {
	// PromptTurns caps how many of the supplied turns are rendered.
	PromptTurns int
}

// New creates a Composer that renders at most promptTurns history turns.
// If promptTurns <= 0, the default (5) is used.
func New(promptTurns int) *Composer {
	if promptTurns <= 0 {
		promptTurns = defaultPromptTurns
	}
	return &Composer{PromptTurns: promptTurns}
}

// Compose builds the prompt. history must be oldest-first; only the most
// recent PromptTurns entries are kept. An empty persona falls back to
// DefaultPersona.
func (c *Composer) Compose(persona string, faqs []storage.FaqEntry, history []storage.MemoryTurn, message string) string {
	if strings.TrimSpace(persona) == "" {
		persona = DefaultPersona
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(persona))

	if len(faqs) > 0 {
		sb.WriteString("\n\nKnowledge base (frequently asked questions):\n")
		for i, f := range faqs {
			fmt.Fprintf(&sb, "%d. Q: %s\n   A: %s\n", i+1, f.Question, f.Answer)
		}
		sb.WriteString(faqInstruction)
	}

	sb.WriteString("\n\nConversation history:\n")
	recent := c.recent(history)
	if len(recent) == 0 {
		sb.WriteString(NoHistoryMarker)
		sb.WriteString("\n")
	}
	for _, t := range recent {
		fmt.Fprintf(&sb, "User: %s\nAssistant: %s\n", t.Message, t.Response)
	}

	fmt.Fprintf(&sb, "\nUser: %s\n\n", message)
	sb.WriteString(finalInstruction)

	return sb.String()
}

func (c *Composer) recent(history []storage.MemoryTurn) []storage.MemoryTurn {
	limit := c.PromptTurns
	if limit <= 0 {
		limit = defaultPromptTurns
	}
	if len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
