package reconciler

import (
	"context"
	"sync"
)

// opSlots is the per-conversation pending-operation table, the engine's only
// concurrency control. One slot exists per conversation while an operation is
// in flight; it is released when the operation settles, success or failure.
type opSlots struct {
	mu    sync.Mutex
	slots map[string]*opSlot
}

type opSlot struct {
	done chan struct{}
	res  TabResult
	err  error
}

func newOpSlots() *opSlots {
	return &opSlots{slots: make(map[string]*opSlot)}
}

// join runs fn under the conversation's slot. A caller that finds a slot
// already in flight waits for it and shares its result instead of starting a
// duplicate reconciliation; this is what keeps two racing callers from
// creating two physical tabs.
func (s *opSlots) join(ctx context.Context, key string, fn func() (TabResult, error)) (TabResult, error) {
	s.mu.Lock()
	if existing, ok := s.slots[key]; ok {
		s.mu.Unlock()
		select {
		case <-existing.done:
			return existing.res, existing.err
		case <-ctx.Done():
			return TabResult{}, ctx.Err()
		}
	}
	slot := s.claim(key)
	res, err := fn()
	s.settle(key, slot, res, err)
	return res, err
}

// exclusive runs fn under the conversation's slot, waiting out any in-flight
// operation first. Unlike join, every caller gets its own execution; used by
// the mutating operations that must not be deduplicated.
func (s *opSlots) exclusive(ctx context.Context, key string, fn func() (TabResult, error)) (TabResult, error) {
	for {
		s.mu.Lock()
		existing, ok := s.slots[key]
		if !ok {
			slot := s.claim(key)
			res, err := fn()
			s.settle(key, slot, res, err)
			return res, err
		}
		s.mu.Unlock()
		select {
		case <-existing.done:
		case <-ctx.Done():
			return TabResult{}, ctx.Err()
		}
	}
}

// claim must be called with s.mu held; it releases the mutex.
func (s *opSlots) claim(key string) *opSlot {
	slot := &opSlot{done: make(chan struct{})}
	s.slots[key] = slot
	s.mu.Unlock()
	return slot
}

func (s *opSlots) settle(key string, slot *opSlot, res TabResult, err error) {
	slot.res = res
	slot.err = err
	s.mu.Lock()
	delete(s.slots, key)
	s.mu.Unlock()
	close(slot.done)
}

// pending reports how many slots are currently in flight.
func (s *opSlots) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}
