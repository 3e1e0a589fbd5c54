// Package abort owns per-action cancellation. Every registered action
// gets a context bound 1:1 to its record; invoking Abort flips the record
// to aborted immediately and signals whatever process the adapter
// registered, asynchronously.
package abort

import (
	"context"
	"sync"

	"github.com/arthur-debert/runlet/pkg/errors"
	"github.com/arthur-debert/runlet/pkg/logging"
	"github.com/arthur-debert/runlet/pkg/store"
	"github.com/arthur-debert/runlet/pkg/types"
)

// Coordinator tracks one cancellation token per action. The cancel side
// is owned here; everything else only ever sees the read-only context.
type Coordinator struct {
	mu      sync.Mutex
	entries map[string]*entry
	records *store.Store
}

type entry struct {
	ctx    context.Context
	cancel context.CancelFunc
	kill   func()
}

// New creates a coordinator mutating statuses through the given store.
func New(records *store.Store) *Coordinator {
	return &Coordinator{
		entries: make(map[string]*entry),
		records: records,
	}
}

// Bind creates the cancellation context for an action under parent.
// Binding twice returns the existing context.
func (c *Coordinator) Bind(parent context.Context, id string) context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok {
		return e.ctx
	}
	ctx, cancel := context.WithCancel(parent)
	c.entries[id] = &entry{ctx: ctx, cancel: cancel}
	return ctx
}

// Context returns the action's cancellation context, or the background
// context when the action was never bound.
func (c *Coordinator) Context(id string) context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok {
		return e.ctx
	}
	return context.Background()
}

// RegisterKill attaches the adapter-side termination hook, typically a
// process-group kill. Called by adapters once their process is in flight.
func (c *Coordinator) RegisterKill(id string, kill func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok {
		e.kill = kill
	}
}

// Aborted reports whether the action's context has been cancelled.
func (c *Coordinator) Aborted(id string) bool {
	return c.Context(id).Err() != nil
}

// Abort cancels an action. The status flip happens synchronously; the
// underlying process is signalled on its own goroutine so a stuck process
// cannot stall the caller. Aborting an already-terminal action is a no-op.
func (c *Coordinator) Abort(id string) error {
	c.mu.Lock()
	e, ok := c.entries[id]
	c.mu.Unlock()
	if !ok {
		// Released entries outlive their bookkeeping: the record is still
		// in the store, and aborting a terminal action is a no-op.
		action, exists := c.records.Get(id)
		if !exists {
			return errors.Newf(errors.ErrActionNotFound, "no action with id %q", id)
		}
		if !action.Status.IsTerminal() {
			return c.records.Transition(id, types.StatusAborted)
		}
		return nil
	}

	logger := logging.GetLogger("abort")

	action, exists := c.records.Get(id)
	if exists && !action.Status.IsTerminal() {
		if err := c.records.Transition(id, types.StatusAborted); err != nil {
			// Lost the race against a concurrent terminal transition.
			logger.Debug().Err(err).Str("id", id).Msg("Abort transition skipped")
		}
	}

	e.cancel()
	if e.kill != nil {
		go e.kill()
	}

	logger.Info().Str("id", id).Msg("Action aborted")
	return nil
}

// Release drops the coordinator's bookkeeping for an action once it has
// reached a terminal state. The record itself stays in the store.
func (c *Coordinator) Release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok {
		e.cancel()
		delete(c.entries, id)
	}
}
