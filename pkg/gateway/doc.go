// Package gateway exposes the reconciliation engine over JSON-RPC 2.0, both
// on a WebSocket stream with challenge-response authentication and on a
// single-shot HTTP endpoint guarded by a shared secret header.
//
// Every method's parameters are validated against a JSON Schema before the
// handler runs, and mutating methods honor idempotency keys so client retries
// cannot double-apply a browser operation.
package gateway
