// Package environment provides the reference host adapter: a local
// process/filesystem runtime the engine can drive directly. Hosting
// applications with their own sandbox supply their own implementations
// of types.Environment and types.Terminal instead.
package environment

import (
	"context"
	"os/exec"

	"github.com/arthur-debert/runlet/pkg/filesystem"
	"github.com/arthur-debert/runlet/pkg/logging"
	"github.com/arthur-debert/runlet/pkg/types"
)

// Local runs commands as child processes rooted at a working directory.
type Local struct {
	workDir string
	fs      types.FS
}

// NewLocal creates a local environment rooted at workDir.
func NewLocal(workDir string) *Local {
	return &Local{
		workDir: workDir,
		fs:      filesystem.NewOS(),
	}
}

// Spawn runs a command to completion through the shell, accumulating
// combined output.
func (l *Local) Spawn(ctx context.Context, command string) (types.SpawnResult, error) {
	logger := logging.GetLogger("environment").With().Str("command", command).Logger()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = l.workDir

	output, err := cmd.CombinedOutput()
	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			logger.Error().Err(err).Msg("Failed to spawn process")
			return types.SpawnResult{}, err
		}
	}

	logger.Debug().Int("exitCode", exitCode).Msg("Process exited")
	return types.SpawnResult{ExitCode: exitCode, Output: string(output)}, nil
}

// FS returns the environment's filesystem.
func (l *Local) FS() types.FS {
	return l.fs
}

// WorkDir returns the root all relative action paths resolve against.
func (l *Local) WorkDir() string {
	return l.workDir
}
