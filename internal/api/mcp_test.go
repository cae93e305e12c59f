package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/baseplus/skinquiz/internal/saga"
	"github.com/baseplus/skinquiz/internal/session"
	"github.com/baseplus/skinquiz/internal/storage"
)

func newTestMCPDeps(t *testing.T, c Checkouter) (MCPDeps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return MCPDeps{Saga: c, Attempts: store}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPTool_CartSummary(t *testing.T) {
	handler := mcpCartSummary()

	result, err := handler(context.Background(), makeCallToolRequest("cart_summary", map[string]interface{}{
		"session": bundleSnapshot,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var sum Summary
	if err := json.Unmarshal([]byte(toolText(t, result)), &sum); err != nil {
		t.Fatalf("parsing summary: %v", err)
	}
	if sum.Total != "55.50" || sum.Type != "bundle" {
		t.Errorf("got %+v", sum)
	}
}

func TestMCPTool_CartSummary_MissingSession(t *testing.T) {
	handler := mcpCartSummary()

	result, err := handler(context.Background(), makeCallToolRequest("cart_summary", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result")
	}
}

func TestMCPTool_CartSummary_InvalidJSON(t *testing.T) {
	handler := mcpCartSummary()

	result, _ := handler(context.Background(), makeCallToolRequest("cart_summary", map[string]interface{}{
		"session": "{not json",
	}))
	if !result.IsError || !strings.Contains(toolText(t, result), "invalid session JSON") {
		t.Errorf("got %+v", result)
	}
}

func TestMCPTool_Checkout(t *testing.T) {
	c := &mockCheckouter{result: saga.Result{Outcome: saga.OutcomeRedirecting, RedirectURL: "https://baseplus.co.uk/checkout?add-to-cart=42"}}
	deps, _ := newTestMCPDeps(t, c)

	result, err := mcpCheckout(deps)(context.Background(), makeCallToolRequest("checkout", map[string]interface{}{
		"session": moisturiserSnapshot,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	var resp CheckoutResponse
	if err := json.Unmarshal([]byte(toolText(t, result)), &resp); err != nil {
		t.Fatalf("parsing: %v", err)
	}
	if resp.RedirectURL != c.result.RedirectURL {
		t.Errorf("RedirectURL = %q", resp.RedirectURL)
	}
}

func TestMCPTool_Checkout_Failure(t *testing.T) {
	c := &mockCheckouter{result: saga.Result{
		Outcome: saga.OutcomeFailed,
		Error:   &session.ErrorState{Error: true, Code: 500, UIMessage: "Sorry Ana we weren't able to create your product"},
	}}
	deps, _ := newTestMCPDeps(t, c)

	result, _ := mcpCheckout(deps)(context.Background(), makeCallToolRequest("checkout", map[string]interface{}{
		"session": moisturiserSnapshot,
	}))
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if !strings.Contains(toolText(t, result), "weren't able to create") {
		t.Errorf("text = %s", toolText(t, result))
	}
}

func TestMCPResource_RecentAttempts(t *testing.T) {
	deps, store := newTestMCPDeps(t, &mockCheckouter{})
	if err := store.SaveAttempt(storage.Attempt{ID: "a1", CorrelationID: "c1", ProductType: "serum", Outcome: "failed"}); err != nil {
		t.Fatalf("SaveAttempt: %v", err)
	}

	contents, err := mcpResourceRecentAttempts(deps)(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "attempts://recent"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	var attempts []storage.Attempt
	if err := json.Unmarshal([]byte(tc.Text), &attempts); err != nil {
		t.Fatalf("parsing: %v", err)
	}
	if len(attempts) != 1 || attempts[0].ID != "a1" {
		t.Errorf("got %+v", attempts)
	}
}
