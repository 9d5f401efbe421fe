package mcp

import (
	"encoding/json"
	"testing"

	"github.com/forgewell/acengine/core"
)

func TestParseToolDefinition_MarksRequiredParameters(t *testing.T) {
	var wire toolSchemaWire
	wire.Name = "search"
	wire.Description = "search the web"
	wire.InputSchema.Required = []string{"query"}
	wire.InputSchema.Properties = map[string]struct {
		Type        string        `json:"type"`
		Description string        `json:"description"`
		Default     interface{}   `json:"default"`
		Enum        []interface{} `json:"enum"`
	}{
		"query": {Type: "string", Description: "search query"},
		"limit": {Type: "number"},
	}

	def := parseToolDefinition(wire, "server-a")
	if def.Name != "search" || def.ServerName != "server-a" {
		t.Fatalf("unexpected definition: %+v", def)
	}
	byName := make(map[string]ToolParameter, len(def.Parameters))
	for _, p := range def.Parameters {
		byName[p.Name] = p
	}
	if !byName["query"].Required {
		t.Errorf("expected query to be required")
	}
	if byName["limit"].Required {
		t.Errorf("expected limit to be optional")
	}
}

func TestParseToolDefinition_DefaultsMissingTypeToString(t *testing.T) {
	var wire toolSchemaWire
	wire.InputSchema.Properties = map[string]struct {
		Type        string        `json:"type"`
		Description string        `json:"description"`
		Default     interface{}   `json:"default"`
		Enum        []interface{} `json:"enum"`
	}{"untyped": {}}

	def := parseToolDefinition(wire, "server-a")
	if len(def.Parameters) != 1 || def.Parameters[0].Type != "string" {
		t.Errorf("expected untyped parameter to default to string, got %+v", def.Parameters)
	}
}

func TestParseToolResult_ClassifiesContentByPresentField(t *testing.T) {
	raw := json.RawMessage(`{
		"content": [
			{"type": "text", "text": "hello"},
			{"type": "image", "data": "base64data", "mimeType": "image/png"},
			{"type": "resource", "uri": "file:///tmp/x.txt"}
		],
		"isError": false
	}`)

	result, err := parseToolResult(raw)
	if err != nil {
		t.Fatalf("parseToolResult: %v", err)
	}
	if len(result.Content) != 3 {
		t.Fatalf("expected 3 content items, got %d", len(result.Content))
	}
	if result.Content[0].Type != ContentText {
		t.Errorf("expected first item to be text, got %v", result.Content[0].Type)
	}
	if result.Content[1].Type != ContentImage {
		t.Errorf("expected second item to be image, got %v", result.Content[1].Type)
	}
	if result.Content[2].Type != ContentResource {
		t.Errorf("expected third item to be resource, got %v", result.Content[2].Type)
	}
}

func TestParseToolResult_PropagatesIsError(t *testing.T) {
	raw := json.RawMessage(`{"content": [], "isError": true}`)
	result, err := parseToolResult(raw)
	if err != nil {
		t.Fatalf("parseToolResult: %v", err)
	}
	if !result.IsError {
		t.Errorf("expected isError to propagate as true")
	}
}

func TestClassifyRPCError_NotFoundIsKindTool(t *testing.T) {
	err := classifyRPCError("call_tool", &jsonRPCError{Code: -32601, Message: "tool not found"})
	ce, ok := err.(*core.Error)
	if !ok {
		t.Fatalf("expected a *core.Error, got %T", err)
	}
	if ce.Kind != core.KindTool {
		t.Errorf("expected KindTool for a not-found server error, got %v", ce.Kind)
	}
}

func TestClassifyRPCError_OtherIsKindConnection(t *testing.T) {
	err := classifyRPCError("call_tool", &jsonRPCError{Code: -32000, Message: "internal server error"})
	ce, ok := err.(*core.Error)
	if !ok {
		t.Fatalf("expected a *core.Error, got %T", err)
	}
	if ce.Kind != core.KindConnection {
		t.Errorf("expected KindConnection for a generic server error, got %v", ce.Kind)
	}
}
