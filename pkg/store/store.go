// Package store holds the action record store: the single source of truth
// for every action's current state. Records are created on registration
// and mutated only through the transition methods here, which enforce the
// lifecycle state machine.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arthur-debert/runlet/pkg/errors"
	"github.com/arthur-debert/runlet/pkg/logging"
	"github.com/arthur-debert/runlet/pkg/types"
)

// Store maps action id to its record. One Store exists per session.
type Store struct {
	mu      sync.RWMutex
	actions map[string]*types.Action
	order   []string
}

// New creates an empty store.
func New() *Store {
	return &Store{
		actions: make(map[string]*types.Action),
	}
}

// Register creates a record for a descriptor with status pending. If a
// record already exists for the id, the call is a no-op and the existing
// record is returned with created == false. Descriptors without an id are
// assigned one.
func (s *Store) Register(desc types.Descriptor) (types.Action, bool, error) {
	kind, err := types.ParseKind(desc.Kind)
	if err != nil {
		return types.Action{}, false, errors.Wrap(err, errors.ErrActionInvalid, "cannot register action")
	}

	var op types.MigrationOp
	if kind == types.KindMigration {
		switch types.MigrationOp(desc.Operation) {
		case types.OpMigration, types.OpQuery:
			op = types.MigrationOp(desc.Operation)
		default:
			return types.Action{}, false, errors.Newf(errors.ErrMigrationOp, "unknown migration operation: %q", desc.Operation)
		}
	}

	id := desc.ID
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.actions[id]; ok {
		return *existing, false, nil
	}

	action := &types.Action{
		ID:        id,
		Kind:      kind,
		Command:   desc.Content,
		Content:   desc.Content,
		FilePath:  desc.FilePath,
		Operation: op,
		Status:    types.StatusPending,
		CreatedAt: time.Now(),
	}
	s.actions[id] = action
	s.order = append(s.order, id)

	logger := logging.GetLogger("store")
	logger.Debug().
		Str("id", id).
		Str("kind", string(kind)).
		Msg("Action registered")

	return *action, true, nil
}

// Get returns a snapshot of the record for id.
func (s *Store) Get(id string) (types.Action, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	action, ok := s.actions[id]
	if !ok {
		return types.Action{}, false
	}
	return *action, true
}

// Actions returns snapshots of every record in registration order.
func (s *Store) Actions() []types.Action {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Action, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.actions[id])
	}
	return out
}

// Transition moves an action to the next status, enforcing the state
// machine. Illegal transitions are rejected.
func (s *Store) Transition(id string, next types.ActionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	action, ok := s.actions[id]
	if !ok {
		return errors.Newf(errors.ErrActionNotFound, "no action with id %q", id)
	}
	if !action.Status.CanTransition(next) {
		return errors.Newf(errors.ErrActionTransition, "action %s cannot move %s → %s", id, action.Status, next)
	}

	action.Status = next
	if next.IsTerminal() {
		action.FinishedAt = time.Now()
	}

	logger := logging.GetLogger("store")
	logger.Debug().
		Str("id", id).
		Str("status", string(next)).
		Msg("Action transitioned")

	return nil
}

// Fail moves an action to failed and records why. Output carries captured
// process output for command-type failures.
func (s *Store) Fail(id, message, output string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	action, ok := s.actions[id]
	if !ok {
		return errors.Newf(errors.ErrActionNotFound, "no action with id %q", id)
	}
	if !action.Status.CanTransition(types.StatusFailed) {
		return errors.Newf(errors.ErrActionTransition, "action %s cannot move %s → failed", id, action.Status)
	}

	action.Err = &types.ActionError{Message: message, Output: output}
	action.Status = types.StatusFailed
	action.FinishedAt = time.Now()

	logger := logging.GetLogger("store")
	logger.Debug().
		Str("id", id).
		Str("reason", message).
		Msg("Action failed")

	return nil
}

// MarkExecuted finalizes an action: it has been dispatched with intent to
// finalize and, for non-File kinds, may never be dispatched again.
func (s *Store) MarkExecuted(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	action, ok := s.actions[id]
	if !ok {
		return errors.Newf(errors.ErrActionNotFound, "no action with id %q", id)
	}
	action.Executed = true
	return nil
}

// UpdateContent replaces the streaming payload of a not-yet-finalized
// action. Finalized actions are immutable.
func (s *Store) UpdateContent(id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	action, ok := s.actions[id]
	if !ok {
		return errors.Newf(errors.ErrActionNotFound, "no action with id %q", id)
	}
	if action.Executed {
		return errors.Newf(errors.ErrActionFinalized, "action %s is finalized", id)
	}
	action.Content = content
	action.Command = content
	return nil
}

// Len returns the number of registered actions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.actions)
}
