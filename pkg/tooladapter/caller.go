package tooladapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolCaller invokes a named capability on the browser automation tool.
// Implementations wrap an MCP server, an in-process Rod browser, or a fake in
// tests; the engine only ever sees this interface.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
}

// ResultText flattens every text content block of a tool result into one
// string.
func ResultText(res *mcp.CallToolResult) string {
	if res == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range res.Content {
		switch tc := c.(type) {
		case mcp.TextContent:
			b.WriteString(tc.Text)
		case *mcp.TextContent:
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// ResultError turns a tool-reported failure into a Go error, or nil when the
// result is a success.
func ResultError(name string, res *mcp.CallToolResult) error {
	if res == nil || !res.IsError {
		return nil
	}
	text := strings.TrimSpace(ResultText(res))
	if text == "" {
		text = "tool reported an error without detail"
	}
	return fmt.Errorf("%s: %s", name, text)
}
