// Package engine is the public face of runlet: a session-scoped action
// execution engine. The hosting application constructs one Engine per
// session, submits descriptors as the upstream generator emits them, and
// observes progress through the alert channels and status queries.
//
// All state lives on the Engine instance; nothing here is global, so a
// host can run many sessions side by side and tests can wire fake
// environments freely.
package engine

import (
	"context"

	"github.com/arthur-debert/runlet/pkg/abort"
	"github.com/arthur-debert/runlet/pkg/adapters"
	"github.com/arthur-debert/runlet/pkg/alerts"
	"github.com/arthur-debert/runlet/pkg/config"
	"github.com/arthur-debert/runlet/pkg/logging"
	"github.com/arthur-debert/runlet/pkg/scheduler"
	"github.com/arthur-debert/runlet/pkg/store"
	"github.com/arthur-debert/runlet/pkg/types"
)

// Engine orchestrates the record store, abort coordinator, adapters and
// scheduler for one session.
type Engine struct {
	cfg     *config.Config
	records *store.Store
	aborts  *abort.Coordinator
	emitter *alerts.Emitter
	set     *adapters.Set
	sched   *scheduler.Scheduler

	ctx    context.Context
	cancel context.CancelFunc
}

// Option customizes engine construction.
type Option func(*options)

type options struct {
	recorder scheduler.Recorder
}

// WithRecorder attaches a recorder (typically the sqlite journal) that
// receives every action reaching a terminal state.
func WithRecorder(r scheduler.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// New wires an engine against a host environment and terminal. The sink's
// callbacks may be nil to ignore a channel.
func New(ctx context.Context, cfg *config.Config, env types.Environment, terminal types.Terminal, sink types.AlertSink, opts ...Option) *Engine {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(ctx)

	records := store.New()
	aborts := abort.New(records)
	emitter := alerts.New(sink)
	set := adapters.NewSet(cfg, env, terminal, aborts, emitter)

	return &Engine{
		cfg:     cfg,
		records: records,
		aborts:  aborts,
		emitter: emitter,
		set:     set,
		sched:   scheduler.New(cfg, records, aborts, emitter, set, o.recorder),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit registers a descriptor, creating a pending record and its
// cancellation token. Submitting an id twice is a no-op returning the
// existing record untouched.
func (e *Engine) Submit(desc types.Descriptor) (types.Action, error) {
	action, created, err := e.records.Register(desc)
	if err != nil {
		return types.Action{}, err
	}
	if created {
		e.aborts.Bind(e.ctx, action.ID)
	}
	return action, nil
}

// Run appends the action to the execution chain with intent to finalize
// and waits for this item's dispatch to finish. The returned error is
// non-nil only for Build failures; every other failure is reported
// through status and alerts alone.
func (e *Engine) Run(id string) error {
	result, err := e.sched.Enqueue(id, true)
	if err != nil {
		return err
	}
	return <-result
}

// Execute is Submit followed by Run, for hosts that receive complete
// descriptors rather than streams.
func (e *Engine) Execute(desc types.Descriptor) (types.Action, error) {
	action, err := e.Submit(desc)
	if err != nil {
		return types.Action{}, err
	}
	if err := e.Run(action.ID); err != nil {
		return action, err
	}
	refreshed, _ := e.records.Get(action.ID)
	return refreshed, nil
}

// StreamFile re-dispatches a provisional write for a File action whose
// upstream content is still streaming in. The action stays running and
// unfinalized.
func (e *Engine) StreamFile(id, content string) error {
	if err := e.records.UpdateContent(id, content); err != nil {
		return err
	}
	result, err := e.sched.Enqueue(id, false)
	if err != nil {
		return err
	}
	return <-result
}

// Finalize replaces a streaming action's content with the complete
// payload and runs it one last time, marking it executed.
func (e *Engine) Finalize(id, content string) error {
	if err := e.records.UpdateContent(id, content); err != nil {
		return err
	}
	return e.Run(id)
}

// Abort cancels an action. Safe to call in any state.
func (e *Engine) Abort(id string) error {
	return e.aborts.Abort(id)
}

// Status returns a snapshot of one action.
func (e *Engine) Status(id string) (types.Action, bool) {
	return e.records.Get(id)
}

// Actions returns snapshots of all actions in registration order.
func (e *Engine) Actions() []types.Action {
	return e.records.Actions()
}

// Close tears the session down: every in-flight action is aborted via
// the session context (long-lived start processes included), then the
// scheduler drains and start resolutions are awaited. The record store
// survives Close so the host can still query final statuses.
func (e *Engine) Close() error {
	for _, action := range e.records.Actions() {
		if !action.Status.IsTerminal() {
			_ = e.aborts.Abort(action.ID)
		}
	}
	e.cancel()
	err := e.sched.Close()
	logger := logging.GetLogger("engine")
	logger.Debug().Int("actions", e.records.Len()).Msg("Engine closed")
	return err
}
