package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/tabgate/pkg/reconciler"
)

func okHandler(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"ok": true}, nil
}

func TestRegisterMethod_NilHandler(t *testing.T) {
	r := NewRPCRouter()
	assert.Error(t, r.RegisterMethod("m", "", nil))
}

func TestRegisterMethod_BadSchema(t *testing.T) {
	r := NewRPCRouter()
	assert.Error(t, r.RegisterMethod("m", `{"type": nope}`, okHandler))
}

func TestParseRequest(t *testing.T) {
	r := NewRPCRouter()

	req, err := r.ParseRequest([]byte(`{"id":"1","method":"browser.status"}`))
	require.NoError(t, err)
	assert.Equal(t, "2.0", req.JSONRPC)

	_, err = r.ParseRequest([]byte(`{"method":"x"}`))
	assert.ErrorContains(t, err, "missing id")

	_, err = r.ParseRequest([]byte(`{"id":"1"}`))
	assert.ErrorContains(t, err, "missing method")

	_, err = r.ParseRequest([]byte(`not json`))
	require.Error(t, err)
	rpcErr, ok := err.(*RPCError)
	require.True(t, ok)
	assert.Equal(t, ParseError, rpcErr.Code)
}

func TestRouteRequest_MethodNotFound(t *testing.T) {
	r := NewRPCRouter()
	resp := r.RouteRequest(context.Background(), &RPCRequest{ID: "1", Method: "nope", JSONRPC: "2.0"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, MethodNotFound, resp.Error.Code)
}

func TestRouteRequest_SchemaRejectsParams(t *testing.T) {
	r := NewRPCRouter()
	require.NoError(t, r.RegisterMethod("m", selectorSchema, okHandler))

	resp := r.RouteRequest(context.Background(), &RPCRequest{
		ID:      "1",
		Method:  "m",
		JSONRPC: "2.0",
		Params:  map[string]interface{}{"agentId": "a"},
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidParams, resp.Error.Code)
	assert.Equal(t, "1", resp.ID)
}

func TestRouteRequest_SchemaAcceptsParams(t *testing.T) {
	r := NewRPCRouter()
	require.NoError(t, r.RegisterMethod("m", selectorSchema, okHandler))

	resp := r.RouteRequest(context.Background(), &RPCRequest{
		ID:      "1",
		Method:  "m",
		JSONRPC: "2.0",
		Params: map[string]interface{}{
			"agentId":        "a",
			"userId":         "u",
			"conversationId": "c",
		},
	})
	require.Nil(t, resp.Error)
	assert.Equal(t, map[string]interface{}{"ok": true}, resp.Result)
}

func TestRouteRequest_ErrorCodeMapping(t *testing.T) {
	r := NewRPCRouter()
	require.NoError(t, r.RegisterMethod("unavailable", "", func(context.Context, map[string]interface{}) (interface{}, error) {
		return nil, &reconciler.Failure{Kind: reconciler.FailToolUnavailable, Op: "navigate", Err: errors.New("no capability")}
	}))
	require.NoError(t, r.RegisterMethod("corrupt", "", func(context.Context, map[string]interface{}) (interface{}, error) {
		return nil, &reconciler.Failure{Kind: reconciler.FailStateInvariant, Op: "persist", Err: errors.New("bad state")}
	}))
	require.NoError(t, r.RegisterMethod("plain", "", func(context.Context, map[string]interface{}) (interface{}, error) {
		return nil, errors.New("boom")
	}))

	resp := r.RouteRequest(context.Background(), &RPCRequest{ID: "1", Method: "unavailable", JSONRPC: "2.0"})
	assert.Equal(t, ToolUnavailable, resp.Error.Code)

	resp = r.RouteRequest(context.Background(), &RPCRequest{ID: "2", Method: "corrupt", JSONRPC: "2.0"})
	assert.Equal(t, StateCorrupt, resp.Error.Code)

	resp = r.RouteRequest(context.Background(), &RPCRequest{ID: "3", Method: "plain", JSONRPC: "2.0"})
	assert.Equal(t, InternalError, resp.Error.Code)
}

func TestRouteRequest_IdempotencyReplaysResponse(t *testing.T) {
	r := NewRPCRouter()
	calls := 0
	require.NoError(t, r.RegisterMethod("m", "", func(context.Context, map[string]interface{}) (interface{}, error) {
		calls++
		return calls, nil
	}))

	first := r.RouteRequest(context.Background(), &RPCRequest{ID: "1", Method: "m", JSONRPC: "2.0", IdempotencyKey: "k"})
	second := r.RouteRequest(context.Background(), &RPCRequest{ID: "2", Method: "m", JSONRPC: "2.0", IdempotencyKey: "k"})

	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Result, second.Result)
	assert.Equal(t, "2", second.ID, "replayed response carries the new request id")
}

func TestRouteRequest_IdempotencyKeysScopedByMethod(t *testing.T) {
	r := NewRPCRouter()
	calls := 0
	handler := func(context.Context, map[string]interface{}) (interface{}, error) {
		calls++
		return calls, nil
	}
	require.NoError(t, r.RegisterMethod("a", "", handler))
	require.NoError(t, r.RegisterMethod("b", "", handler))

	r.RouteRequest(context.Background(), &RPCRequest{ID: "1", Method: "a", JSONRPC: "2.0", IdempotencyKey: "k"})
	r.RouteRequest(context.Background(), &RPCRequest{ID: "2", Method: "b", JSONRPC: "2.0", IdempotencyKey: "k"})

	assert.Equal(t, 2, calls)
}

func TestHasMethodAndUnregister(t *testing.T) {
	r := NewRPCRouter()
	require.NoError(t, r.RegisterMethod("m", "", okHandler))
	assert.True(t, r.HasMethod("m"))
	r.UnregisterMethod("m")
	assert.False(t, r.HasMethod("m"))
}
