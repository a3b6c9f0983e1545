package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/deskmate/internal/chat"
	"github.com/kalambet/deskmate/internal/gate"
	"github.com/kalambet/deskmate/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Chat  *chat.Orchestrator
	Gate  *gate.Gate
	Store *storage.Store
}

// NewMCPServer creates an MCP server exposing the assistant and the FAQ
// knowledge base to MCP clients.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"deskmate",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("deskmate: help desk assistant with a shared FAQ knowledge base."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_assistant",
			mcp.WithDescription("Ask the help desk assistant a question on behalf of a user. The exchange is stored in that user's conversation memory."),
			mcp.WithString("user_id", mcp.Description("Id of the user asking"), mcp.Required()),
			mcp.WithString("message", mcp.Description("The user's message"), mcp.Required()),
		),
		mcpAskAssistant(deps),
	)

	s.AddTool(
		mcp.NewTool("list_faq",
			mcp.WithDescription("List all FAQ entries in the knowledge base."),
			mcp.WithString("source", mcp.Description("Optional source filter: manual, pdf or conversation")),
		),
		mcpListFaq(deps),
	)

	s.AddTool(
		mcp.NewTool("add_faq",
			mcp.WithDescription("Add a question and answer to the FAQ knowledge base."),
			mcp.WithString("question", mcp.Description("The question"), mcp.Required()),
			mcp.WithString("answer", mcp.Description("The answer"), mcp.Required()),
		),
		mcpAddFaq(deps),
	)

	s.AddTool(
		mcp.NewTool("set_availability",
			mcp.WithDescription("Enable or disable the assistant for all users."),
			mcp.WithBoolean("enabled", mcp.Description("true to enable, false to disable"), mcp.Required()),
		),
		mcpSetAvailability(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"faq://entries",
			"FAQ Entries",
			mcp.WithResourceDescription("All FAQ entries as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceFaq(deps),
	)

	return s
}

func mcpAskAssistant(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		user, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		reply, err := deps.Chat.HandleMessage(ctx, user, message)
		if err != nil {
			if !errors.Is(err, chat.ErrAIDisabled) && !errors.Is(err, chat.ErrValidation) {
				return mcpError("the assistant could not answer right now"), nil
			}
			return mcpError(err.Error()), nil
		}
		return mcpText(reply), nil
	}
}

func mcpListFaq(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var (
			entries []storage.FaqEntry
			err     error
		)
		if src := req.GetString("source", ""); src != "" {
			source := storage.FaqSource(src)
			if !source.Valid() {
				return mcpError(fmt.Sprintf("unknown source %q", src)), nil
			}
			entries, err = deps.Store.ListFaqEntriesBySource(ctx, source)
		} else {
			entries, err = deps.Store.ListFaqEntries(ctx)
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list FAQ entries: %v", err)), nil
		}
		if len(entries) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(entries)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal entries: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAddFaq(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}
		answer, err := req.RequireString("answer")
		if err != nil {
			return mcpError("answer is required"), nil
		}

		e, err := deps.Store.AddFaqEntry(ctx, question, answer, storage.SourceManual)
		if errors.Is(err, storage.ErrInvalidFaq) {
			return mcpError("question and answer must not be blank"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to save: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Stored FAQ entry %s", e.ID)), nil
	}
}

func mcpSetAvailability(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		enabled, err := req.RequireBool("enabled")
		if err != nil {
			return mcpError("enabled is required"), nil
		}

		f, err := deps.Gate.SetEnabled(ctx, enabled)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to update availability: %v", err)), nil
		}
		state := "disabled"
		if f.Enabled {
			state = "enabled"
		}
		return mcpText("Assistant " + state), nil
	}
}

func mcpResourceFaq(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		entries, err := deps.Store.ListFaqEntries(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list FAQ entries: %w", err)
		}
		if entries == nil {
			entries = []storage.FaqEntry{}
		}

		b, err := json.Marshal(entries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal entries: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
