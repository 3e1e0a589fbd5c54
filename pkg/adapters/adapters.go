package adapters

import (
	"context"

	"github.com/arthur-debert/runlet/pkg/abort"
	"github.com/arthur-debert/runlet/pkg/alerts"
	"github.com/arthur-debert/runlet/pkg/config"
	"github.com/arthur-debert/runlet/pkg/types"
)

// Adapter executes a single action against the external environment.
type Adapter interface {
	Execute(ctx context.Context, action types.Action) types.Outcome
}

// Set holds one adapter per action kind. The set is closed: the scheduler
// dispatches exhaustively over it.
type Set struct {
	shell     *Shell
	file      *File
	start     *Start
	build     *Build
	migration *Migration
}

// NewSet wires the full adapter set against a host environment.
func NewSet(cfg *config.Config, env types.Environment, terminal types.Terminal, aborts *abort.Coordinator, emitter *alerts.Emitter) *Set {
	file := NewFile(env)
	return &Set{
		shell:     NewShell(terminal, aborts),
		file:      file,
		start:     NewStart(terminal, aborts),
		build:     NewBuild(env, cfg.Build, emitter),
		migration: NewMigration(file, emitter, cfg.MigrationsDir),
	}
}

// For returns the adapter responsible for a kind. The bool result is
// false only for a kind outside the closed set, which Register already
// rejects.
func (s *Set) For(kind types.ActionKind) (Adapter, bool) {
	switch kind {
	case types.KindShell:
		return s.shell, true
	case types.KindFile:
		return s.file, true
	case types.KindStart:
		return s.start, true
	case types.KindBuild:
		return s.build, true
	case types.KindMigration:
		return s.migration, true
	}
	return nil, false
}

// File returns the file adapter for streaming writes, which bypass the
// scheduler's finalize path.
func (s *Set) File() *File {
	return s.file
}
