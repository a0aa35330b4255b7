package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/harun/tabgate/pkg/reconciler"
)

// RPCRouter registers method handlers with their parameter schemas and routes
// requests to them. Responses for requests carrying an idempotency key are
// cached, so a retried mutation replays its original outcome instead of
// re-running.
type RPCRouter struct {
	mu               sync.RWMutex
	methods          map[string]methodEntry
	idempotencyTTL   time.Duration
	idempotencyCache map[string]cachedRPCResponse
}

type methodEntry struct {
	handler RequestHandler
	schema  *gojsonschema.Schema
}

type cachedRPCResponse struct {
	response  RPCResponse
	expiresAt time.Time
}

// NewRPCRouter creates a new RPC router
func NewRPCRouter() *RPCRouter {
	return &RPCRouter{
		methods:          make(map[string]methodEntry),
		idempotencyTTL:   5 * time.Minute,
		idempotencyCache: make(map[string]cachedRPCResponse),
	}
}

// RegisterMethod registers a handler. A non-empty schemaJSON is compiled and
// enforced against every request's params before the handler runs.
func (r *RPCRouter) RegisterMethod(name string, schemaJSON string, handler RequestHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}
	entry := methodEntry{handler: handler}
	if schemaJSON != "" {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
		if err != nil {
			return fmt.Errorf("compile schema for %s: %w", name, err)
		}
		entry.schema = schema
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[name] = entry
	return nil
}

// UnregisterMethod removes an RPC method handler
func (r *RPCRouter) UnregisterMethod(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.methods, name)
}

// ParseRequest parses and validates a JSON-RPC request
func (r *RPCRouter) ParseRequest(data []byte) (*RPCRequest, error) {
	var req RPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &RPCError{Code: ParseError, Message: "Parse error", Data: err.Error()}
	}
	if req.ID == "" {
		return nil, &RPCError{Code: InvalidRequest, Message: "Invalid request: missing id field"}
	}
	if req.Method == "" {
		return nil, &RPCError{Code: InvalidRequest, Message: "Invalid request: missing method field"}
	}
	if req.JSONRPC == "" {
		req.JSONRPC = "2.0"
	}
	return &req, nil
}

// RouteRequest routes a request to the appropriate handler.
func (r *RPCRouter) RouteRequest(ctx context.Context, req *RPCRequest) *RPCResponse {
	if req == nil {
		return errorResponse("", InvalidRequest, "invalid request", nil)
	}

	cacheKey := idempotencyCacheKey(req.Method, req.IdempotencyKey)
	if cacheKey != "" {
		if cached, ok := r.getCachedResponse(cacheKey); ok {
			cached.ID = req.ID
			return &cached
		}
	}

	r.mu.RLock()
	entry, exists := r.methods[req.Method]
	r.mu.RUnlock()
	if !exists {
		return errorResponse(req.ID, MethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
	}

	if entry.schema != nil {
		if rpcErr := validateParams(entry.schema, req.Params); rpcErr != nil {
			rpcErr.ID = req.ID
			return rpcErr
		}
	}

	result, err := entry.handler(ctx, req.Params)
	var response *RPCResponse
	if err != nil {
		response = errorResponse(req.ID, errorCodeFor(err), err.Error(), nil)
	} else {
		response = &RPCResponse{ID: req.ID, JSONRPC: "2.0", Result: result}
	}

	if cacheKey != "" {
		r.cacheResponse(cacheKey, *response)
	}
	return response
}

// validateParams checks params against the method schema and folds every
// violation into one InvalidParams error.
func validateParams(schema *gojsonschema.Schema, params map[string]interface{}) *RPCResponse {
	if params == nil {
		params = map[string]interface{}{}
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return errorResponse("", InvalidParams, "Invalid params", err.Error())
	}
	if result.Valid() {
		return nil
	}
	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return errorResponse("", InvalidParams, "Invalid params", strings.Join(details, "; "))
}

// errorCodeFor maps engine failures onto RPC error codes.
func errorCodeFor(err error) int {
	switch reconciler.FailureKindOf(err) {
	case reconciler.FailToolUnavailable:
		return ToolUnavailable
	case reconciler.FailStateInvariant:
		return StateCorrupt
	}
	return InternalError
}

func errorResponse(id string, code int, message string, data interface{}) *RPCResponse {
	return &RPCResponse{
		ID:      id,
		JSONRPC: "2.0",
		Error:   &RPCError{Code: code, Message: message, Data: data},
	}
}

// HasMethod checks if a method is registered
func (r *RPCRouter) HasMethod(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.methods[name]
	return exists
}

// GetMethods returns all registered method names
func (r *RPCRouter) GetMethods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	methods := make([]string, 0, len(r.methods))
	for name := range r.methods {
		methods = append(methods, name)
	}
	return methods
}

func idempotencyCacheKey(method string, idempotencyKey string) string {
	if idempotencyKey == "" {
		return ""
	}
	return method + ":" + idempotencyKey
}

func (r *RPCRouter) getCachedResponse(key string) (RPCResponse, bool) {
	r.mu.RLock()
	entry, exists := r.idempotencyCache[key]
	r.mu.RUnlock()
	if !exists {
		return RPCResponse{}, false
	}

	now := time.Now()
	if now.After(entry.expiresAt) {
		r.mu.Lock()
		if current, ok := r.idempotencyCache[key]; ok && now.After(current.expiresAt) {
			delete(r.idempotencyCache, key)
		}
		r.mu.Unlock()
		return RPCResponse{}, false
	}
	return cloneRPCResponse(entry.response), true
}

func (r *RPCRouter) cacheResponse(key string, response RPCResponse) {
	now := time.Now()
	r.mu.Lock()
	r.idempotencyCache[key] = cachedRPCResponse{
		response:  cloneRPCResponse(response),
		expiresAt: now.Add(r.idempotencyTTL),
	}
	for cacheKey, entry := range r.idempotencyCache {
		if now.After(entry.expiresAt) {
			delete(r.idempotencyCache, cacheKey)
		}
	}
	r.mu.Unlock()
}

func cloneRPCResponse(src RPCResponse) RPCResponse {
	cloned := RPCResponse{
		ID:      src.ID,
		Result:  src.Result,
		JSONRPC: src.JSONRPC,
	}
	if src.Error != nil {
		errCopy := *src.Error
		cloned.Error = &errCopy
	}
	return cloned
}
