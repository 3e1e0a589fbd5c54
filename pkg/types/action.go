package types

import (
	"fmt"
	"time"
)

// ActionKind identifies the closed set of work item variants the engine
// knows how to execute. The set is deliberately closed: the scheduler
// matches exhaustively on it, so a new kind cannot ship without an adapter.
type ActionKind string

const (
	KindShell     ActionKind = "shell"
	KindFile      ActionKind = "file"
	KindStart     ActionKind = "start"
	KindBuild     ActionKind = "build"
	KindMigration ActionKind = "migration"
)

// ParseKind validates a descriptor's kind field.
func ParseKind(s string) (ActionKind, error) {
	switch ActionKind(s) {
	case KindShell, KindFile, KindStart, KindBuild, KindMigration:
		return ActionKind(s), nil
	}
	return "", fmt.Errorf("unknown action kind: %q", s)
}

// ActionStatus is the lifecycle state of an action.
type ActionStatus string

const (
	StatusPending  ActionStatus = "pending"
	StatusRunning  ActionStatus = "running"
	StatusComplete ActionStatus = "complete"
	StatusAborted  ActionStatus = "aborted"
	StatusFailed   ActionStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s ActionStatus) IsTerminal() bool {
	switch s {
	case StatusComplete, StatusAborted, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether the state machine permits moving from s
// to next. Transitions are monotonic: pending → running → terminal, with
// abort allowed from any non-terminal state.
func (s ActionStatus) CanTransition(next ActionStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusAborted || next == StatusFailed
	case StatusRunning:
		return next.IsTerminal()
	}
	return false
}

// MigrationOp distinguishes the two database operation variants carried by
// a Migration action.
type MigrationOp string

const (
	OpMigration MigrationOp = "migration"
	OpQuery     MigrationOp = "query"
)

// ActionError captures why an action failed. Output holds captured process
// output for command-type failures and is empty otherwise.
type ActionError struct {
	Message string
	Output  string
}

func (e *ActionError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Output)
	}
	return e.Message
}

// Action is the unit of work tracked by the record store. Records are
// created when a descriptor first arrives and persist for the life of the
// session; they are mutated only by the store's transition methods and by
// abort invocation.
type Action struct {
	ID   string
	Kind ActionKind

	// Kind-specific payload. Shell and Start carry Command; File carries
	// FilePath and Content; Migration carries Operation plus Content and
	// optionally FilePath; Build carries nothing.
	Command   string
	FilePath  string
	Content   string
	Operation MigrationOp

	Status ActionStatus

	// Executed is set once the action has been dispatched with intent to
	// finalize. For every kind except File it is terminal: no further
	// dispatch happens for the id. A File action may be re-dispatched
	// while upstream content is still streaming (Executed stays false)
	// and is finalized exactly once.
	Executed bool

	Err *ActionError

	CreatedAt  time.Time
	FinishedAt time.Time
}

// Descriptor is the external JSON shape of an incoming action, as emitted
// by the upstream generator.
type Descriptor struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Content   string `json:"content"`
	FilePath  string `json:"filePath,omitempty"`
	Operation string `json:"operation,omitempty"`
}
