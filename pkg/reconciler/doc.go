// Package reconciler keeps a conversation's persisted logical tab in
// agreement with the live physical tab layout of a shared browser.
//
// The browser tool addresses tabs by ephemeral numeric indices that shift on
// every close and vanish on restart, and it offers no compare-and-swap: a
// previously known index is never assumed valid, only re-verified. The engine
// self-heals drift through a fixed recovery chain (exact URL match, blank-tab
// reuse, create) and serializes all work per conversation through a
// pending-operation slot, which is the only concurrency control.
//
// Invariants:
// - Every success path persists the updated state before returning.
// - Tool failures leave no partial persistence, except CloseTab, which always
//   releases local state.
// - The tabs-list cache is never used for a mutating decision without a
//   forced refresh.
package reconciler
