// Package scheduler serializes action execution. A single worker
// goroutine drains a queue of work items, so at most one action executes
// at a time; the lone exception is Start actions, which are handed off to
// their own goroutine while the worker only holds the chain for a fixed
// settle delay.
package scheduler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arthur-debert/runlet/pkg/abort"
	"github.com/arthur-debert/runlet/pkg/adapters"
	"github.com/arthur-debert/runlet/pkg/alerts"
	"github.com/arthur-debert/runlet/pkg/config"
	"github.com/arthur-debert/runlet/pkg/errors"
	"github.com/arthur-debert/runlet/pkg/logging"
	"github.com/arthur-debert/runlet/pkg/store"
	"github.com/arthur-debert/runlet/pkg/types"
)

// Recorder receives actions that reached a terminal state. The journal
// implements it; a nil recorder disables recording.
type Recorder interface {
	Record(action types.Action) error
}

type item struct {
	id       string
	finalize bool
	result   chan error
}

// Scheduler owns the continuation chain. Construct one per session with
// New and shut it down with Close.
type Scheduler struct {
	queue    chan item
	records  *store.Store
	aborts   *abort.Coordinator
	emitter  *alerts.Emitter
	adapters *adapters.Set
	settle   time.Duration
	recorder Recorder

	starts errgroup.Group

	mu      sync.Mutex
	closed  bool
	senders sync.WaitGroup
	done    chan struct{}
}

// New creates a scheduler and starts its worker.
func New(cfg *config.Config, records *store.Store, aborts *abort.Coordinator, emitter *alerts.Emitter, set *adapters.Set, recorder Recorder) *Scheduler {
	s := &Scheduler{
		queue:    make(chan item, cfg.QueueCapacity),
		records:  records,
		aborts:   aborts,
		emitter:  emitter,
		adapters: set,
		settle:   cfg.SettleDelay,
		recorder: recorder,
		done:     make(chan struct{}),
	}
	go s.loop()
	return s
}

// Enqueue appends an action to the chain. The returned channel receives
// exactly one value once this item's dispatch has finished: nil for
// everything except a Build failure, which is surfaced to the caller as
// an error in addition to its alerts.
func (s *Scheduler) Enqueue(id string, finalize bool) (<-chan error, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.New(errors.ErrSchedulerClosed, "scheduler is closed")
	}
	s.senders.Add(1)
	s.mu.Unlock()
	defer s.senders.Done()

	// The send happens outside the critical section: a full queue blocks
	// this caller but never anyone else, and the worker keeps draining.
	result := make(chan error, 1)
	s.queue <- item{id: id, finalize: finalize, result: result}
	return result, nil
}

// Close drains the queue and waits for the worker and any in-flight
// start resolutions. It returns the first start failure observed, for
// hosts that want to notice dead servers at teardown.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	// New Enqueue calls are rejected above; wait for the ones already
	// past the flag before closing the channel under them.
	s.senders.Wait()
	close(s.queue)

	<-s.done
	return s.starts.Wait()
}

func (s *Scheduler) loop() {
	defer close(s.done)
	for it := range s.queue {
		s.dispatch(it)
	}
}

func (s *Scheduler) dispatch(it item) {
	logger := logging.GetLogger("scheduler").With().Str("id", it.id).Logger()

	rec, ok := s.records.Get(it.id)
	if !ok {
		it.result <- errors.Newf(errors.ErrActionNotFound, "no action with id %q", it.id)
		return
	}

	// Idempotent execution guard: a finalized action never reaches its
	// adapter again.
	if rec.Executed {
		logger.Debug().Msg("Action already finalized, skipping dispatch")
		it.result <- nil
		return
	}

	// Abort precedence: an action aborted while pending never runs.
	if rec.Status == types.StatusAborted || s.aborts.Aborted(it.id) {
		logger.Debug().Msg("Action aborted before dispatch")
		it.result <- nil
		return
	}

	adapter, ok := s.adapters.For(rec.Kind)
	if !ok {
		_ = s.records.Fail(it.id, "no adapter for kind", string(rec.Kind))
		it.result <- nil
		return
	}

	if rec.Status == types.StatusPending {
		if err := s.records.Transition(it.id, types.StatusRunning); err != nil {
			logger.Debug().Err(err).Msg("Action left pending state concurrently")
			it.result <- nil
			return
		}
	}

	ctx := s.aborts.Context(it.id)

	// Streaming file write: provisional, no finalize, no terminal
	// transition. The action stays running until the stream completes.
	if rec.Kind == types.KindFile && !it.finalize {
		adapter.Execute(ctx, rec)
		it.result <- nil
		return
	}

	if err := s.records.MarkExecuted(it.id); err != nil {
		it.result <- err
		return
	}

	if rec.Kind == types.KindStart {
		s.starts.Go(func() error {
			return s.resolveStart(ctx, adapter, rec)
		})
		s.settleWait(ctx)
		it.result <- nil
		return
	}

	outcome := adapter.Execute(ctx, rec)
	it.result <- s.finish(rec, outcome)
}

// finish translates an adapter outcome into a state transition, alerting
// per kind. Only Build failures propagate to the caller.
func (s *Scheduler) finish(rec types.Action, outcome types.Outcome) error {
	logger := logging.GetLogger("scheduler").With().Str("id", rec.ID).Logger()

	// An intentional abort mid-flight is not a fault: the record is
	// already terminal and the adapter's failure outcome is discarded.
	if s.aborts.Aborted(rec.ID) {
		logger.Debug().Msg("Action aborted mid-flight")
		s.record(rec.ID)
		s.aborts.Release(rec.ID)
		return nil
	}

	defer s.aborts.Release(rec.ID)

	switch outcome.State {
	case types.OutcomeSuccess, types.OutcomePending:
		if err := s.records.Transition(rec.ID, types.StatusComplete); err != nil {
			logger.Debug().Err(err).Msg("Completion transition rejected")
		}
		s.record(rec.ID)
		return nil

	case types.OutcomeFailure:
		if err := s.records.Fail(rec.ID, outcome.Header, outcome.Output); err != nil {
			logger.Debug().Err(err).Msg("Failure transition rejected")
		}
		logger.Info().Str("header", outcome.Header).Msg("Action failed")

		// Migration raises its own database alerts and must not be
		// double-reported on the generic channel.
		switch rec.Kind {
		case types.KindShell, types.KindStart, types.KindBuild:
			s.emitter.Alert(types.Alert{
				Type:        types.AlertError,
				Title:       outcome.Header,
				Description: "Action " + rec.ID + " failed",
				Content:     outcome.Output,
			})
		}
		s.record(rec.ID)

		if rec.Kind == types.KindBuild {
			return errors.New(errors.ErrBuildExit, outcome.Header).WithDetail("output", outcome.Output)
		}
		return nil
	}

	return nil
}

// resolveStart waits for a long-lived process off the chain and settles
// the record asynchronously. The returned error only reaches callers of
// Close.
func (s *Scheduler) resolveStart(ctx context.Context, adapter adapters.Adapter, rec types.Action) error {
	outcome := adapter.Execute(ctx, rec)
	aborted := s.aborts.Aborted(rec.ID)
	if err := s.finish(rec, outcome); err != nil {
		return err
	}
	if outcome.State == types.OutcomeFailure && !aborted {
		return errors.Newf(errors.ErrTerminalExecute, "start action %s failed", rec.ID)
	}
	return nil
}

// settleWait holds the chain after a start dispatch so two starts never
// race for the shared terminal. Aborting the start releases the wait.
func (s *Scheduler) settleWait(ctx context.Context) {
	if s.settle <= 0 {
		return
	}
	timer := time.NewTimer(s.settle)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (s *Scheduler) record(id string) {
	if s.recorder == nil {
		return
	}
	rec, ok := s.records.Get(id)
	if !ok || !rec.Status.IsTerminal() {
		return
	}
	if err := s.recorder.Record(rec); err != nil {
		logger := logging.GetLogger("scheduler")
		logger.Warn().Err(err).Str("id", id).Msg("Failed to record action")
	}
}
