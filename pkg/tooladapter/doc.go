// Package tooladapter is the boundary to the external browser automation
// tool: capability discovery by tool-name pattern and parsing of the tool's
// heterogeneous free-text/JSON output into structured tab records.
//
// Invariants:
// - Parsing is best-effort: fields that cannot be extracted stay unset, never
//   guessed.
// - Capability detection is purely name-based; the adapter assumes nothing
//   about the tool's implementation.
package tooladapter
