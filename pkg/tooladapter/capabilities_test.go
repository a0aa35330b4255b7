package tooladapter

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
)

func TestDetectCapabilities(t *testing.T) {
	caps := DetectCapabilities([]string{
		"mcp__chrome__browser_tabs",
		"mcp__chrome__browser_navigate",
		"mcp__chrome__browser_navigate_back",
		"mcp__chrome__browser_screenshot",
	})

	assert.Equal(t, "mcp__chrome__browser_tabs", caps.TabsTool)
	assert.Equal(t, "mcp__chrome__browser_navigate", caps.NavigateTool)
	assert.Equal(t, "mcp__chrome__browser_navigate_back", caps.NavigateBackTool)
	assert.True(t, caps.HasTabs())
	assert.True(t, caps.HasNavigate())
}

func TestDetectCapabilities_BackNotSwallowedByNavigate(t *testing.T) {
	caps := DetectCapabilities([]string{"browser_navigate_back"})

	assert.Empty(t, caps.NavigateTool)
	assert.Equal(t, "browser_navigate_back", caps.NavigateBackTool)
}

func TestDetectCapabilities_None(t *testing.T) {
	caps := DetectCapabilities([]string{"bash", "read_file"})

	assert.False(t, caps.HasTabs())
	assert.False(t, caps.HasNavigate())
}

func TestResultTextAndError(t *testing.T) {
	res := &mcp.CallToolResult{Content: []mcp.Content{
		mcp.NewTextContent("line one\n"),
		mcp.NewTextContent("line two"),
	}}

	assert.Equal(t, "line one\nline two", ResultText(res))
	assert.NoError(t, ResultError("browser_tabs", res))

	res.IsError = true
	err := ResultError("browser_tabs", res)
	assert.ErrorContains(t, err, "browser_tabs")
	assert.ErrorContains(t, err, "line one")

	assert.Empty(t, ResultText(nil))
	assert.NoError(t, ResultError("x", nil))
}
