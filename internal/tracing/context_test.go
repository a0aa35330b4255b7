package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestTraceIDRoundTrip(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-1")
	assert.Equal(t, "trace-1", GetTraceID(ctx))
}

func TestGetTraceID_Empty(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
}

func TestNewRequestContext_GeneratesTraceID(t *testing.T) {
	ctx := NewRequestContext(context.Background())
	assert.NotEmpty(t, GetTraceID(ctx))
}

func TestNewTraceID_Unique(t *testing.T) {
	assert.NotEqual(t, NewTraceID(), NewTraceID())
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithConversationID(ctx, "conv-1")
	ctx = WithRequestID(ctx, "req-1")

	ctxLogger := LoggerFromContext(ctx, logger)
	ctxLogger.Info().Msg("hello")

	out := buf.String()
	assert.Contains(t, out, `"trace_id":"trace-1"`)
	assert.Contains(t, out, `"conversation_id":"conv-1"`)
	assert.Contains(t, out, `"request_id":"req-1"`)
}

func TestLoggerFromContext_NoIdentity(t *testing.T) {
	var buf bytes.Buffer
	plain := LoggerFromContext(context.Background(), zerolog.New(&buf))
	plain.Info().Msg("hello")
	assert.NotContains(t, buf.String(), "trace_id")
}
