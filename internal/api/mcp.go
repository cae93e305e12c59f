package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/baseplus/skinquiz/internal/session"
	"github.com/baseplus/skinquiz/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Saga     Checkouter
	Attempts AttemptStore
}

// NewMCPServer creates an MCP server exposing cart summaries, checkout and
// the attempt ledger.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"skinquiz",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("skinquiz: assemble the quiz cart and check it out on the storefront."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("cart_summary",
			mcp.WithDescription("Describe a quiz session's cart: product type, button label, total and variation."),
			mcp.WithString("session", mcp.Description("Session snapshot as JSON"), mcp.Required()),
		),
		mcpCartSummary(),
	)

	s.AddTool(
		mcp.NewTool("checkout",
			mcp.WithDescription("Create the bespoke product, write the quiz records and return the storefront checkout URL."),
			mcp.WithString("session", mcp.Description("Session snapshot as JSON"), mcp.Required()),
		),
		mcpCheckout(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"attempts://recent",
			"Recent Checkout Attempts",
			mcp.WithResourceDescription("Last 10 checkout attempts with per-step outcomes"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecentAttempts(deps),
	)

	return s
}

func parseSessionArg(req mcp.CallToolRequest) (session.Snapshot, *mcp.CallToolResult) {
	raw, err := req.RequireString("session")
	if err != nil {
		return session.Snapshot{}, mcpError("session is required")
	}
	var snap session.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return session.Snapshot{}, mcpError(fmt.Sprintf("invalid session JSON: %v", err))
	}
	return snap, nil
}

func mcpCartSummary() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap, errResult := parseSessionArg(req)
		if errResult != nil {
			return errResult, nil
		}
		sum, err := Summarize(snap)
		if err != nil {
			return mcpError(fmt.Sprintf("summary failed: %v", err)), nil
		}
		b, err := json.Marshal(sum)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal summary: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpCheckout(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap, errResult := parseSessionArg(req)
		if errResult != nil {
			return errResult, nil
		}
		resp, _, err := Checkout(ctx, deps.Saga, snap)
		if err != nil {
			return mcpError(fmt.Sprintf("checkout rejected: %v", err)), nil
		}
		b, err := json.Marshal(resp)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		if resp.Error != nil {
			return mcpError(string(b)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecentAttempts(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		attempts, err := deps.Attempts.ListAttempts("", 10)
		if err != nil {
			return nil, fmt.Errorf("failed to list attempts: %w", err)
		}
		if attempts == nil {
			attempts = []storage.Attempt{}
		}

		b, err := json.Marshal(attempts)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal attempts: %w", err)
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
