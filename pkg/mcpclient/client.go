package mcpclient

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/harun/tabgate/pkg/tooladapter"
)

// JSON-RPC framing for the MCP stdio transport.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      interface{} `json:"id,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      interface{}     `json:"id"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Config holds client configuration. Command is the MCP server executable;
// the client owns its lifecycle.
type Config struct {
	Command        string
	Args           []string
	RequestTimeout time.Duration
	Logger         zerolog.Logger
}

// Client is a stdio MCP client. It lazily starts the server on first use and
// multiplexes concurrent requests over the single pipe pair.
type Client struct {
	cfg Config

	mu      sync.Mutex
	process *exec.Cmd
	stdin   io.WriteCloser
	id      int
	pending map[int]chan *rpcResponse
	started bool
}

// New creates a client for the given MCP server command.
func New(cfg Config) (*Client, error) {
	if cfg.Command == "" {
		return nil, errors.New("mcp server command is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &Client{
		cfg:     cfg,
		pending: make(map[int]chan *rpcResponse),
	}, nil
}

// Start launches the server process and performs the initialize handshake.
// Safe to call more than once.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}

	// The server process outlives any single request: Start can be reached
	// lazily from CallTool with a request-scoped ctx, which must not kill
	// the server when the request finishes. ctx only bounds the handshake.
	cmd := exec.Command(c.cfg.Command, c.cfg.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("start %s: %w", c.cfg.Command, err)
	}

	c.process = cmd
	c.stdin = stdin
	c.started = true
	c.mu.Unlock()

	go c.listen(bufio.NewScanner(stdout))

	if err := c.initialize(ctx); err != nil {
		_ = c.Close()
		return err
	}
	c.cfg.Logger.Info().Str("command", c.cfg.Command).Msg("MCP server started")
	return nil
}

func (c *Client) listen(scanner *bufio.Scanner) {
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var resp rpcResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			c.cfg.Logger.Error().Err(err).Msg("Failed to unmarshal MCP response")
			continue
		}
		id, ok := resp.ID.(float64)
		if !ok {
			// notification or malformed id; nothing waits on it
			continue
		}
		c.mu.Lock()
		ch, exists := c.pending[int(id)]
		if exists {
			delete(c.pending, int(id))
			ch <- &resp
		}
		c.mu.Unlock()
	}
	c.failPending(errors.New("mcp server closed its output"))
}

// failPending wakes every in-flight caller after the pipe dies.
func (c *Client) failPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- &rpcResponse{Error: &rpcError{Code: -1, Message: err.Error()}}
	}
	c.started = false
}

func (c *Client) initialize(ctx context.Context) error {
	params := map[string]interface{}{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]interface{}{},
		"clientInfo": map[string]interface{}{
			"name":    "tabgate",
			"version": "0.1.0",
		},
	}
	_, err := c.call(ctx, "initialize", params)
	return err
}

func (c *Client) call(ctx context.Context, method string, params interface{}) (*rpcResponse, error) {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil, errors.New("mcp client is not started")
	}
	c.id++
	id := c.id
	ch := make(chan *rpcResponse, 1)
	c.pending[id] = ch
	stdin := c.stdin
	c.mu.Unlock()

	data, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: id})
	if err != nil {
		return nil, err
	}
	if _, err := stdin.Write(append(data, '\n')); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("write request: %w", err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, fmt.Errorf("mcp error (%d): %s", resp.Error.Code, resp.Error.Message)
		}
		return resp, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	case <-time.After(c.cfg.RequestTimeout):
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("mcp request %s timed out", method)
	}
}

// CallTool invokes a tool on the server. Tool-reported failures come back in
// the result's IsError flag, not as a Go error, matching ToolCaller's
// contract.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	resp, err := c.call(ctx, "tools/call", map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return nil, err
	}
	return parseToolResult(resp.Result)
}

// ListTools returns the names of every tool the server advertises.
func (c *Client) ListTools(ctx context.Context) ([]string, error) {
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	resp, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var listResult struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &listResult); err != nil {
		return nil, fmt.Errorf("decode tools/list: %w", err)
	}
	names := make([]string, 0, len(listResult.Tools))
	for _, t := range listResult.Tools {
		names = append(names, t.Name)
	}
	return names, nil
}

// Capabilities discovers which browser tools the server exposes.
func (c *Client) Capabilities(ctx context.Context) (tooladapter.Capabilities, error) {
	names, err := c.ListTools(ctx)
	if err != nil {
		return tooladapter.Capabilities{}, err
	}
	return tooladapter.DetectCapabilities(names), nil
}

// Close kills the server process. In-flight calls fail through the listener.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = false
	if c.stdin != nil {
		_ = c.stdin.Close()
	}
	if c.process != nil && c.process.Process != nil {
		return c.process.Process.Kill()
	}
	return nil
}

// parseToolResult decodes a tools/call result into mcp-go's type. Only text
// content blocks are retained; the engine reads nothing else.
func parseToolResult(raw json.RawMessage) (*mcp.CallToolResult, error) {
	var body struct {
		IsError bool `json:"isError"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode tools/call result: %w", err)
	}
	out := &mcp.CallToolResult{IsError: body.IsError}
	for _, c := range body.Content {
		if c.Type == "text" {
			out.Content = append(out.Content, mcp.NewTextContent(c.Text))
		}
	}
	return out, nil
}
