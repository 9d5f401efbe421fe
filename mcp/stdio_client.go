package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/forgewell/acengine/core"
)

// StdioClient implements Client over a subprocess's stdin/stdout using
// line-delimited JSON-RPC 2.0, the transport the MCP spec requires
// every local tool server to support. Grounded almost directly on
// _examples/theRebelliousNerd-codenerd/internal/mcp/transport_stdio.go.
type StdioClient struct {
	config ServerConfig
	logger core.Logger

	mu          sync.Mutex
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	stdout      io.ReadCloser
	connected   bool
	serverInfo  ServerInfo
	pendingReqs map[int]chan *jsonRPCResponse
	nextID      int

	wg sync.WaitGroup
}

func NewStdioClient(config ServerConfig, logger core.Logger) *StdioClient {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("engine/mcp")
	}
	return &StdioClient{
		config:      config,
		logger:      logger,
		pendingReqs: make(map[int]chan *jsonRPCResponse),
		nextID:      1,
	}
}

// Connect starts the server subprocess and performs the MCP
// initialize handshake, returning the negotiated ServerInfo.
func (c *StdioClient) Connect(ctx context.Context) (ServerInfo, error) {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return c.serverInfo, nil
	}
	if c.config.Command == "" {
		c.mu.Unlock()
		return ServerInfo{}, core.Newf("mcp.Connect", core.KindConfig, "empty command for stdio transport")
	}

	cmd := exec.CommandContext(ctx, c.config.Command, c.config.Args...)
	if len(c.config.Env) > 0 {
		env := make([]string, 0, len(c.config.Env))
		for k, v := range c.config.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		c.mu.Unlock()
		return ServerInfo{}, core.New("mcp.Connect", core.KindConnection, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.mu.Unlock()
		return ServerInfo{}, core.New("mcp.Connect", core.KindConnection, err)
	}
	if err := cmd.Start(); err != nil {
		c.mu.Unlock()
		return ServerInfo{}, core.New("mcp.Connect", core.KindConnection, err)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.stdout = stdout
	c.connected = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.readLoop()

	info, err := c.initialize(ctx)
	if err != nil {
		_ = c.Disconnect(ctx)
		return ServerInfo{}, err
	}
	c.mu.Lock()
	c.serverInfo = info
	c.mu.Unlock()
	c.logger.InfoWithContext(ctx, "mcp server connected", map[string]interface{}{"server": c.config.Name})
	return info, nil
}

func (c *StdioClient) readLoop() {
	defer c.wg.Done()
	scanner := bufio.NewScanner(c.stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var peek struct {
			ID *int `json:"id"`
		}
		if err := json.Unmarshal(line, &peek); err != nil || peek.ID == nil {
			continue // notification or malformed line, not a response we're waiting on
		}

		var resp jsonRPCResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			continue
		}

		c.mu.Lock()
		ch, ok := c.pendingReqs[*peek.ID]
		if ok {
			delete(c.pendingReqs, *peek.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- &resp
		}
	}
}

func (c *StdioClient) call(ctx context.Context, method string, params interface{}) (*jsonRPCResponse, error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil, core.New("mcp.call", core.KindConnection, fmt.Errorf("not connected to mcp server %q", c.config.Name))
	}
	id := c.nextID
	c.nextID++
	ch := make(chan *jsonRPCResponse, 1)
	c.pendingReqs[id] = ch

	data, err := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		delete(c.pendingReqs, id)
		c.mu.Unlock()
		return nil, core.New("mcp.call", core.KindProvider, err)
	}
	if _, err := c.stdin.Write(append(data, '\n')); err != nil {
		delete(c.pendingReqs, id)
		c.mu.Unlock()
		return nil, core.New("mcp.call", core.KindConnection, err)
	}
	c.mu.Unlock()

	select {
	case resp := <-ch:
		if resp == nil {
			return nil, core.New("mcp.call", core.KindConnection, fmt.Errorf("connection closed"))
		}
		if resp.Error != nil {
			return nil, classifyRPCError(method, resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pendingReqs, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

// classifyRPCError reports "not found"/"unknown tool" server errors as
// non-retriable (spec §6), everything else as a retriable connection error.
func classifyRPCError(method string, rpcErr *jsonRPCError) error {
	msg := strings.ToLower(rpcErr.Message)
	if strings.Contains(msg, "not found") || strings.Contains(msg, "unknown tool") {
		return core.New("mcp."+method, core.KindTool, fmt.Errorf("%s: %w", rpcErr.Message, core.ErrNotFound))
	}
	return core.Newf("mcp."+method, core.KindConnection, "mcp error %d: %s", rpcErr.Code, rpcErr.Message)
}

func (c *StdioClient) initialize(ctx context.Context) (ServerInfo, error) {
	resp, err := c.call(ctx, "initialize", map[string]interface{}{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]interface{}{},
		"clientInfo":      map[string]string{"name": "acengine", "version": "1.0.0"},
	})
	if err != nil {
		return ServerInfo{}, err
	}

	var result struct {
		Capabilities Capabilities `json:"capabilities"`
		ServerInfo   struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"serverInfo"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return ServerInfo{}, core.New("mcp.initialize", core.KindProvider, err)
	}

	notification, _ := json.Marshal(map[string]interface{}{"jsonrpc": "2.0", "method": "notifications/initialized"})
	c.mu.Lock()
	if c.stdin != nil {
		_, _ = c.stdin.Write(append(notification, '\n'))
	}
	c.mu.Unlock()

	return ServerInfo{
		Name:         result.ServerInfo.Name,
		Version:      result.ServerInfo.Version,
		Capabilities: result.Capabilities,
	}, nil
}

func (c *StdioClient) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	if c.stdin != nil {
		_ = c.stdin.Close()
	}
	for id, ch := range c.pendingReqs {
		close(ch)
		delete(c.pendingReqs, id)
	}
	c.mu.Unlock()
	c.wg.Wait()
	return nil
}

func (c *StdioClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *StdioClient) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	resp, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Tools []toolSchemaWire `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, core.New("mcp.ListTools", core.KindProvider, err)
	}
	out := make([]ToolDefinition, 0, len(result.Tools))
	for _, t := range result.Tools {
		out = append(out, parseToolDefinition(t, c.config.Name))
	}
	return out, nil
}

func (c *StdioClient) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (ToolResult, error) {
	resp, err := c.call(ctx, "tools/call", map[string]interface{}{"name": name, "arguments": arguments})
	if err != nil {
		return ToolResult{}, err
	}
	return parseToolResult(resp.Result)
}

func (c *StdioClient) ListResources(ctx context.Context) ([]ResourceDefinition, error) {
	resp, err := c.call(ctx, "resources/list", nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Resources []struct {
			URI         string `json:"uri"`
			Name        string `json:"name"`
			Description string `json:"description"`
			MimeType    string `json:"mimeType"`
		} `json:"resources"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, core.New("mcp.ListResources", core.KindProvider, err)
	}
	out := make([]ResourceDefinition, 0, len(result.Resources))
	for _, r := range result.Resources {
		out = append(out, ResourceDefinition{URI: r.URI, Name: r.Name, Description: r.Description, MimeType: r.MimeType})
	}
	return out, nil
}

func (c *StdioClient) ReadResource(ctx context.Context, uri string) (ResourceContent, error) {
	resp, err := c.call(ctx, "resources/read", map[string]interface{}{"uri": uri})
	if err != nil {
		return ResourceContent{}, err
	}
	var result struct {
		Contents []struct {
			Text     string `json:"text"`
			Blob     string `json:"blob"`
			MimeType string `json:"mimeType"`
		} `json:"contents"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return ResourceContent{}, core.New("mcp.ReadResource", core.KindProvider, err)
	}
	if len(result.Contents) == 0 {
		return ResourceContent{}, core.New("mcp.ReadResource", core.KindTool, core.ErrNotFound).WithID(uri)
	}
	first := result.Contents[0]
	return ResourceContent{URI: uri, Text: first.Text, Blob: []byte(first.Blob), MimeType: first.MimeType}, nil
}

func (c *StdioClient) ListPrompts(ctx context.Context) ([]PromptDefinition, error) {
	resp, err := c.call(ctx, "prompts/list", nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Prompts []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Arguments   []struct {
				Name        string `json:"name"`
				Description string `json:"description"`
				Required    bool   `json:"required"`
			} `json:"arguments"`
		} `json:"prompts"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, core.New("mcp.ListPrompts", core.KindProvider, err)
	}
	out := make([]PromptDefinition, 0, len(result.Prompts))
	for _, p := range result.Prompts {
		args := make([]PromptArgument, 0, len(p.Arguments))
		for _, a := range p.Arguments {
			args = append(args, PromptArgument{Name: a.Name, Description: a.Description, Required: a.Required})
		}
		out = append(out, PromptDefinition{Name: p.Name, Description: p.Description, Arguments: args})
	}
	return out, nil
}

func (c *StdioClient) GetPrompt(ctx context.Context, name string, arguments map[string]string) (string, error) {
	resp, err := c.call(ctx, "prompts/get", map[string]interface{}{"name": name, "arguments": arguments})
	if err != nil {
		return "", err
	}
	var result struct {
		Messages []struct {
			Content struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return "", core.New("mcp.GetPrompt", core.KindProvider, err)
	}
	texts := make([]string, 0, len(result.Messages))
	for _, m := range result.Messages {
		if m.Content.Text != "" {
			texts = append(texts, m.Content.Text)
		}
	}
	return strings.Join(texts, "\n"), nil
}

var _ Client = (*StdioClient)(nil)
