package oss

import (
	"context"
	"sync"
)

// Event is an edge-triggered flag with set/clear/wait semantics. It mirrors
// the asyncio.Event the source polls in its monitor loops: Wait returns as
// soon as the flag is set and does not auto-reset — the caller must Clear
// it after fully draining whatever intent the flag is guarding (spec §9).
type Event struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewEvent returns a cleared Event.
func NewEvent() *Event {
	return &Event{ch: make(chan struct{})}
}

// Set marks the flag, waking every current and future Wait call until the
// next Clear. Safe to call when already set.
func (e *Event) Set() {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.ch:
	default:
		close(e.ch)
	}
}

// Clear resets the flag to unset.
func (e *Event) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.ch:
		e.ch = make(chan struct{})
	default:
	}
}

// IsSet reports the current state without blocking.
func (e *Event) IsSet() bool {
	e.mu.Lock()
	ch := e.ch
	e.mu.Unlock()
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Wait blocks until the flag is set or ctx is cancelled.
func (e *Event) Wait(ctx context.Context) error {
	e.mu.Lock()
	ch := e.ch
	e.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
