package adapters

import (
	"context"

	"github.com/arthur-debert/runlet/pkg/abort"
	"github.com/arthur-debert/runlet/pkg/logging"
	"github.com/arthur-debert/runlet/pkg/types"
)

// ShellFailureHeader is the structured failure header for shell commands.
const ShellFailureHeader = "Failed To Execute Shell Command"

// Shell runs one-shot commands through the shared terminal and awaits
// their exit code.
type Shell struct {
	terminal types.Terminal
	aborts   *abort.Coordinator
}

// NewShell creates the shell adapter.
func NewShell(terminal types.Terminal, aborts *abort.Coordinator) *Shell {
	return &Shell{terminal: terminal, aborts: aborts}
}

// Execute submits the action's command and waits for the exit code. A
// terminal-side cancellation (user stop) is routed back into the action's
// own abort path via the onAbort callback.
func (a *Shell) Execute(ctx context.Context, action types.Action) types.Outcome {
	logger := logging.GetLogger("adapters.shell").With().Str("id", action.ID).Logger()

	if err := a.terminal.Ready(ctx); err != nil {
		logger.Error().Err(err).Msg("Terminal not ready")
		return types.Failure(ShellFailureHeader, err.Error())
	}

	onAbort := func() {
		if err := a.aborts.Abort(action.ID); err != nil {
			logger.Debug().Err(err).Msg("Terminal abort for unknown action")
		}
	}

	logger.Debug().Str("command", action.Command).Msg("Executing shell command")
	result, err := a.terminal.ExecuteCommand(ctx, action.ID, action.Command, onAbort)
	if err != nil {
		return types.Failure(ShellFailureHeader, err.Error())
	}
	if result.ExitCode != 0 {
		logger.Info().Int("exitCode", result.ExitCode).Msg("Shell command failed")
		return types.Failure(ShellFailureHeader, result.Output)
	}

	return types.Success(result.Output)
}
