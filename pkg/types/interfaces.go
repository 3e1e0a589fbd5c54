package types

import (
	"context"
	"io/fs"
)

// FS is the filesystem surface the engine requires from the execution
// environment. Paths handed to it are already resolved against the
// environment's working directory.
type FS interface {
	Stat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error
	MkdirAll(path string, perm fs.FileMode) error
	ReadDir(name string) ([]fs.DirEntry, error)
	Remove(name string) error
	RemoveAll(path string) error
}

// CommandResult is the result of a terminal round trip.
type CommandResult struct {
	ExitCode int
	Output   string
}

// Terminal is the shared shell abstraction commands are submitted
// through. Only one command may be in flight at a time; the scheduler is
// responsible for honoring that.
//
// ExecuteCommand registers onAbort so that a cancellation initiated on
// the terminal side (for example a user pressing stop in the hosting UI)
// flows back into the action's own abort path.
type Terminal interface {
	Ready(ctx context.Context) error
	ExecuteCommand(ctx context.Context, runID, command string, onAbort func()) (CommandResult, error)
}

// SpawnResult is the result of a direct process spawn, used for builds.
type SpawnResult struct {
	ExitCode int
	Output   string
}

// Environment is the sandboxed execution runtime the engine drives but
// does not implement.
type Environment interface {
	// Spawn runs a command to completion outside the interactive
	// terminal, accumulating combined output.
	Spawn(ctx context.Context, command string) (SpawnResult, error)

	// FS returns the environment's filesystem rooted at WorkDir.
	FS() FS

	// WorkDir returns the root all relative action paths resolve against.
	WorkDir() string
}
