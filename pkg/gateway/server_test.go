package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/tabgate/pkg/reconciler"
	"github.com/harun/tabgate/pkg/tabstate"
	"github.com/harun/tabgate/pkg/tooladapter"
)

// fakeEngine records calls and returns canned results.
type fakeEngine struct {
	lastSel    reconciler.Selector
	lastURL    string
	lastAction string
	lastText   string
	result     reconciler.TabResult
	err        error
}

func (f *fakeEngine) SelectOrCreateTab(_ context.Context, sel reconciler.Selector) (reconciler.TabResult, error) {
	f.lastSel = sel
	return f.result, f.err
}

func (f *fakeEngine) Navigate(_ context.Context, sel reconciler.Selector, url string) (reconciler.TabResult, error) {
	f.lastSel, f.lastURL = sel, url
	return f.result, f.err
}

func (f *fakeEngine) NavigateBack(_ context.Context, sel reconciler.Selector) (reconciler.TabResult, error) {
	f.lastSel = sel
	return f.result, f.err
}

func (f *fakeEngine) CloseTab(_ context.Context, sel reconciler.Selector) (reconciler.TabResult, error) {
	f.lastSel = sel
	return f.result, f.err
}

func (f *fakeEngine) Status(_ context.Context, sel reconciler.Selector) (reconciler.TabStatus, error) {
	f.lastSel = sel
	return reconciler.TabStatus{HasState: true, URL: "https://a.example", TabCount: 1}, f.err
}

func (f *fakeEngine) SyncTabMappingFromTabsToolCall(_ context.Context, sel reconciler.Selector, action string, _ map[string]interface{}, result *mcp.CallToolResult) {
	f.lastSel, f.lastAction = sel, action
	f.lastText = tooladapter.ResultText(result)
}

func (f *fakeEngine) SyncNavigationFromToolCall(_ context.Context, sel reconciler.Selector, url string) {
	f.lastSel, f.lastURL = sel, url
}

func (f *fakeEngine) PendingOperations() int { return 0 }

func newTestServer(t *testing.T, engine Engine) *Server {
	t.Helper()
	s, err := NewServer(Config{
		Port:         18080,
		SharedSecret: "secret",
		Engine:       engine,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)
	return s
}

func postRPC(t *testing.T, s *Server, secret string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(data))
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	w := httptest.NewRecorder()
	s.handleRPC(w, req)
	return w
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(Config{SharedSecret: "s", Engine: &fakeEngine{}})
	assert.ErrorContains(t, err, "port")

	_, err = NewServer(Config{Port: 1, Engine: &fakeEngine{}})
	assert.ErrorContains(t, err, "secret")

	_, err = NewServer(Config{Port: 1, SharedSecret: "s"})
	assert.ErrorContains(t, err, "engine")
}

func TestHandleRPC_RejectsBadSecret(t *testing.T) {
	s := newTestServer(t, &fakeEngine{})
	w := postRPC(t, s, "wrong", map[string]interface{}{"id": "1", "method": "server.status"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleRPC_RejectsGet(t *testing.T) {
	s := newTestServer(t, &fakeEngine{})
	req := httptest.NewRequest(http.MethodGet, "/rpc", nil)
	w := httptest.NewRecorder()
	s.handleRPC(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleRPC_SelectOrCreateTab(t *testing.T) {
	engine := &fakeEngine{result: reconciler.TabResult{
		Success:  true,
		TabIndex: tabstate.Some(2),
		URL:      "https://a.example",
	}}
	s := newTestServer(t, engine)

	w := postRPC(t, s, "secret", map[string]interface{}{
		"id":     "1",
		"method": "browser.selectOrCreateTab",
		"params": map[string]interface{}{
			"agentId":        "agent",
			"userId":         "user",
			"conversationId": "conv",
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp RPCResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Nil(t, resp.Error)

	result := resp.Result.(map[string]interface{})
	assert.Equal(t, true, result["success"])
	assert.Equal(t, float64(2), result["tabIndex"])
	assert.Equal(t, "https://a.example", result["url"])
	assert.Equal(t, "conv", engine.lastSel.ConversationID)
}

func TestHandleRPC_MissingParamsRejected(t *testing.T) {
	s := newTestServer(t, &fakeEngine{})

	w := postRPC(t, s, "secret", map[string]interface{}{
		"id":     "1",
		"method": "browser.navigate",
		"params": map[string]interface{}{
			"agentId":        "agent",
			"userId":         "user",
			"conversationId": "conv",
			// url missing
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp RPCResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidParams, resp.Error.Code)
}

func TestHandleRPC_Navigate(t *testing.T) {
	engine := &fakeEngine{result: reconciler.TabResult{Success: true, URL: "https://b.example"}}
	s := newTestServer(t, engine)

	w := postRPC(t, s, "secret", map[string]interface{}{
		"id":     "1",
		"method": "browser.navigate",
		"params": map[string]interface{}{
			"agentId":        "agent",
			"userId":         "user",
			"conversationId": "conv",
			"url":            "https://b.example",
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://b.example", engine.lastURL)
}

func TestHandleRPC_EngineFailureMapped(t *testing.T) {
	engine := &fakeEngine{err: &reconciler.Failure{Kind: reconciler.FailToolUnavailable, Op: "navigate"}}
	s := newTestServer(t, engine)

	w := postRPC(t, s, "secret", map[string]interface{}{
		"id":     "1",
		"method": "browser.navigateBack",
		"params": map[string]interface{}{
			"agentId":        "agent",
			"userId":         "user",
			"conversationId": "conv",
		},
	})
	var resp RPCResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ToolUnavailable, resp.Error.Code)
}

func TestHandleRPC_Status(t *testing.T) {
	s := newTestServer(t, &fakeEngine{})

	w := postRPC(t, s, "secret", map[string]interface{}{
		"id":     "1",
		"method": "browser.status",
		"params": map[string]interface{}{
			"agentId":        "agent",
			"userId":         "user",
			"conversationId": "conv",
		},
	})
	var resp RPCResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]interface{})
	assert.Equal(t, true, result["hasState"])
	assert.Equal(t, "https://a.example", result["url"])
}

func TestHandleRPC_SyncToolCall_Tabs(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(t, engine)

	w := postRPC(t, s, "secret", map[string]interface{}{
		"id":     "1",
		"method": "browser.syncToolCall",
		"params": map[string]interface{}{
			"agentId":        "agent",
			"userId":         "user",
			"conversationId": "conv",
			"tool":           "browser_tabs",
			"action":         "close",
			"args":           map[string]interface{}{"index": 1},
			"resultText":     "ok",
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "close", engine.lastAction)
	assert.Equal(t, "ok", engine.lastText)
}

func TestHandleRPC_SyncToolCall_Navigation(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(t, engine)

	postRPC(t, s, "secret", map[string]interface{}{
		"id":     "1",
		"method": "browser.syncToolCall",
		"params": map[string]interface{}{
			"agentId":        "agent",
			"userId":         "user",
			"conversationId": "conv",
			"tool":           "browser_navigate",
			"url":            "https://moved.example",
		},
	})
	assert.Equal(t, "https://moved.example", engine.lastURL)
}

func TestHandleRPC_ServerStatus(t *testing.T) {
	s := newTestServer(t, &fakeEngine{})

	w := postRPC(t, s, "secret", map[string]interface{}{"id": "1", "method": "server.status"})
	var resp RPCResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]interface{})
	assert.Equal(t, "ok", result["status"])
}
