package mcp

import (
	"context"
	"encoding/json"
)

// Client is the abstract MCP tool-server client contract (spec §6).
// Implementations connect over some transport (stdio, SSE, HTTP);
// this engine ships StdioClient, the transport every local MCP server
// in practice uses.
type Client interface {
	Connect(ctx context.Context) (ServerInfo, error)
	Disconnect(ctx context.Context) error
	IsConnected() bool

	ListTools(ctx context.Context) ([]ToolDefinition, error)
	CallTool(ctx context.Context, name string, arguments map[string]interface{}) (ToolResult, error)
	ListResources(ctx context.Context) ([]ResourceDefinition, error)
	ReadResource(ctx context.Context, uri string) (ResourceContent, error)
	ListPrompts(ctx context.Context) ([]PromptDefinition, error)
	GetPrompt(ctx context.Context, name string, arguments map[string]string) (string, error)
}

// toolSchemaWire is the MCP wire shape for a tool's inputSchema.
type toolSchemaWire struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema struct {
		Properties map[string]struct {
			Type        string        `json:"type"`
			Description string        `json:"description"`
			Default     interface{}   `json:"default"`
			Enum        []interface{} `json:"enum"`
		} `json:"properties"`
		Required []string `json:"required"`
	} `json:"inputSchema"`
}

func parseToolDefinition(w toolSchemaWire, serverName string) ToolDefinition {
	required := make(map[string]struct{}, len(w.InputSchema.Required))
	for _, r := range w.InputSchema.Required {
		required[r] = struct{}{}
	}

	params := make([]ToolParameter, 0, len(w.InputSchema.Properties))
	for name, p := range w.InputSchema.Properties {
		typ := p.Type
		if typ == "" {
			typ = "string"
		}
		_, isRequired := required[name]
		params = append(params, ToolParameter{
			Name: name, Type: typ, Description: p.Description,
			Required: isRequired, Default: p.Default, Enum: p.Enum,
		})
	}

	return ToolDefinition{Name: w.Name, Description: w.Description, Parameters: params, ServerName: serverName}
}

type contentItemWire struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
	URI      string `json:"uri"`
}

func parseToolResult(raw json.RawMessage) (ToolResult, error) {
	var wire struct {
		Content []contentItemWire `json:"content"`
		IsError bool              `json:"isError"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return ToolResult{}, err
	}

	items := make([]ContentItem, 0, len(wire.Content))
	for _, c := range wire.Content {
		typ := ContentText
		switch {
		case c.Data != "":
			typ = ContentImage
		case c.URI != "":
			typ = ContentResource
		}
		items = append(items, ContentItem{Type: typ, Text: c.Text, Data: c.Data, MimeType: c.MimeType, URI: c.URI})
	}
	return ToolResult{Content: items, IsError: wire.IsError}, nil
}
