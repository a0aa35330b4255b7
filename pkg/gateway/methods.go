package gateway

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/harun/tabgate/pkg/reconciler"
)

// Engine is the reconciliation surface the gateway fronts.
type Engine interface {
	SelectOrCreateTab(ctx context.Context, sel reconciler.Selector) (reconciler.TabResult, error)
	Navigate(ctx context.Context, sel reconciler.Selector, url string) (reconciler.TabResult, error)
	NavigateBack(ctx context.Context, sel reconciler.Selector) (reconciler.TabResult, error)
	CloseTab(ctx context.Context, sel reconciler.Selector) (reconciler.TabResult, error)
	Status(ctx context.Context, sel reconciler.Selector) (reconciler.TabStatus, error)
	SyncTabMappingFromTabsToolCall(ctx context.Context, sel reconciler.Selector, action string, args map[string]interface{}, result *mcp.CallToolResult)
	SyncNavigationFromToolCall(ctx context.Context, sel reconciler.Selector, url string)
	PendingOperations() int
}

const selectorProps = `
	"agentId":        {"type": "string", "minLength": 1},
	"userId":         {"type": "string", "minLength": 1},
	"conversationId": {"type": "string", "minLength": 1}`

const selectorSchema = `{
	"type": "object",
	"properties": {` + selectorProps + `},
	"required": ["agentId", "userId", "conversationId"]
}`

const navigateSchema = `{
	"type": "object",
	"properties": {` + selectorProps + `,
		"url": {"type": "string", "minLength": 1}
	},
	"required": ["agentId", "userId", "conversationId", "url"]
}`

const syncToolCallSchema = `{
	"type": "object",
	"properties": {` + selectorProps + `,
		"tool":       {"type": "string", "minLength": 1},
		"action":     {"type": "string"},
		"args":       {"type": "object"},
		"resultText": {"type": "string"},
		"isError":    {"type": "boolean"},
		"url":        {"type": "string"}
	},
	"required": ["agentId", "userId", "conversationId", "tool"]
}`

// registerBuiltinMethods wires the browser.* method surface.
func (s *Server) registerBuiltinMethods() {
	must := func(name, schema string, handler RequestHandler) {
		if err := s.router.RegisterMethod(name, schema, handler); err != nil {
			// schemas are compile-time constants; a failure here is a programming error
			panic(err)
		}
	}

	must("browser.selectOrCreateTab", selectorSchema, s.handleSelectOrCreateTab)
	must("browser.navigate", navigateSchema, s.handleNavigate)
	must("browser.navigateBack", selectorSchema, s.handleNavigateBack)
	must("browser.closeTab", selectorSchema, s.handleCloseTab)
	must("browser.status", selectorSchema, s.handleStatus)
	must("browser.syncToolCall", syncToolCallSchema, s.handleSyncToolCall)
	must("server.status", "", s.handleServerStatus)
	must("server.methods", "", s.handleServerMethods)
}

func selectorFromParams(params map[string]interface{}) reconciler.Selector {
	str := func(key string) string {
		v, _ := params[key].(string)
		return v
	}
	return reconciler.Selector{
		AgentID:        str("agentId"),
		UserID:         str("userId"),
		ConversationID: str("conversationId"),
	}
}

// tabResultPayload adds the numeric index to the wire form; TabIndex itself
// is deliberately not serialized by the engine.
func tabResultPayload(res reconciler.TabResult) map[string]interface{} {
	payload := map[string]interface{}{
		"success": res.Success,
		"shared":  res.Shared,
	}
	if idx, ok := res.TabIndex.Get(); ok {
		payload["tabIndex"] = idx
	}
	if res.URL != "" {
		payload["url"] = res.URL
	}
	return payload
}

func (s *Server) handleSelectOrCreateTab(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	sel := selectorFromParams(params)
	res, err := s.engine.SelectOrCreateTab(ctx, sel)
	if err != nil {
		return nil, err
	}
	s.broadcaster.Broadcast("browser.tabSelected", map[string]interface{}{
		"conversationId": sel.ConversationID,
		"url":            res.URL,
	})
	return tabResultPayload(res), nil
}

func (s *Server) handleNavigate(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	sel := selectorFromParams(params)
	url, _ := params["url"].(string)
	res, err := s.engine.Navigate(ctx, sel, url)
	if err != nil {
		return nil, err
	}
	s.broadcaster.Broadcast("browser.navigated", map[string]interface{}{
		"conversationId": sel.ConversationID,
		"url":            res.URL,
	})
	return tabResultPayload(res), nil
}

func (s *Server) handleNavigateBack(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	sel := selectorFromParams(params)
	res, err := s.engine.NavigateBack(ctx, sel)
	if err != nil {
		return nil, err
	}
	s.broadcaster.Broadcast("browser.navigated", map[string]interface{}{
		"conversationId": sel.ConversationID,
		"url":            res.URL,
		"direction":      "back",
	})
	return tabResultPayload(res), nil
}

func (s *Server) handleCloseTab(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	sel := selectorFromParams(params)
	res, err := s.engine.CloseTab(ctx, sel)
	if err != nil {
		return nil, err
	}
	s.broadcaster.Broadcast("browser.tabClosed", map[string]interface{}{
		"conversationId": sel.ConversationID,
	})
	return tabResultPayload(res), nil
}

func (s *Server) handleStatus(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	status, err := s.engine.Status(ctx, selectorFromParams(params))
	if err != nil {
		return nil, err
	}
	payload := map[string]interface{}{
		"hasState":      status.HasState,
		"shared":        status.Shared,
		"tabId":         string(status.TabID),
		"url":           status.URL,
		"historyLen":    status.HistoryLen,
		"historyCursor": status.HistoryCursor,
		"tabCount":      status.TabCount,
	}
	if idx, ok := status.LiveIndex.Get(); ok {
		payload["tabIndex"] = idx
	}
	return payload, nil
}

// handleSyncToolCall folds an AI-driven tool call the caller already executed
// into this conversation's state. The tool name decides the sync path.
func (s *Server) handleSyncToolCall(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	sel := selectorFromParams(params)
	tool, _ := params["tool"].(string)

	if url, ok := params["url"].(string); ok && url != "" && tool != "browser_tabs" {
		s.engine.SyncNavigationFromToolCall(ctx, sel, url)
		return map[string]interface{}{"synced": true}, nil
	}

	action, _ := params["action"].(string)
	args, _ := params["args"].(map[string]interface{})
	resultText, _ := params["resultText"].(string)
	isError, _ := params["isError"].(bool)

	result := &mcp.CallToolResult{IsError: isError}
	if resultText != "" {
		result.Content = append(result.Content, mcp.NewTextContent(resultText))
	}
	s.engine.SyncTabMappingFromTabsToolCall(ctx, sel, action, args, result)
	return map[string]interface{}{"synced": true}, nil
}

func (s *Server) handleServerStatus(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{
		"status":            "ok",
		"clients":           s.clients.Count(),
		"pendingOperations": s.engine.PendingOperations(),
	}, nil
}

func (s *Server) handleServerMethods(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"methods": s.router.GetMethods()}, nil
}
