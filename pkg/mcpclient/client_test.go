package mcpclient

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/tabgate/pkg/tooladapter"
)

func TestNew_RequiresCommand(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorContains(t, err, "command")
}

func TestParseToolResult_Text(t *testing.T) {
	raw := json.RawMessage(`{"content":[{"type":"text","text":"- 0: (current) [Tab] (about:blank)"}]}`)
	res, err := parseToolResult(raw)
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "- 0: (current) [Tab] (about:blank)", tooladapter.ResultText(res))
}

func TestParseToolResult_Error(t *testing.T) {
	raw := json.RawMessage(`{"isError":true,"content":[{"type":"text","text":"no tab at index 4"}]}`)
	res, err := parseToolResult(raw)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.ErrorContains(t, tooladapter.ResultError("browser_tabs", res), "no tab at index 4")
}

func TestParseToolResult_SkipsNonText(t *testing.T) {
	raw := json.RawMessage(`{"content":[{"type":"image","data":"..."},{"type":"text","text":"ok"}]}`)
	res, err := parseToolResult(raw)
	require.NoError(t, err)
	assert.Equal(t, "ok", tooladapter.ResultText(res))
}

func TestParseToolResult_Malformed(t *testing.T) {
	_, err := parseToolResult(json.RawMessage(`"not an object"`))
	assert.Error(t, err)
}

// fakeServerScript answers the initialize handshake and one tools/call, then
// stays alive so process-lifetime behavior is observable.
const fakeServerScript = `
read line
printf '{"jsonrpc":"2.0","id":1,"result":{"protocolVersion":"2024-11-05"}}\n'
read line
printf '{"jsonrpc":"2.0","id":2,"result":{"content":[{"type":"text","text":"pong"}]}}\n'
sleep 30
`

func TestCallTool_SurvivesStartContextCancel(t *testing.T) {
	c, err := New(Config{
		Command:        "sh",
		Args:           []string{"-c", fakeServerScript},
		RequestTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx))
	cancel() // the ctx that launched the server ends here

	res, callErr := c.CallTool(context.Background(), "browser_tabs", map[string]interface{}{"action": "list"})
	require.NoError(t, callErr)
	assert.Equal(t, "pong", tooladapter.ResultText(res))
}

func TestCallTool_NotStartedWithoutProcess(t *testing.T) {
	c, err := New(Config{Command: "/nonexistent/mcp-server"})
	require.NoError(t, err)
	_, callErr := c.call(context.Background(), "tools/list", nil)
	assert.ErrorContains(t, callErr, "not started")
}
