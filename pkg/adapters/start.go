package adapters

import (
	"context"

	"github.com/arthur-debert/runlet/pkg/abort"
	"github.com/arthur-debert/runlet/pkg/logging"
	"github.com/arthur-debert/runlet/pkg/types"
)

// StartFailureHeader is the structured failure header for start actions.
const StartFailureHeader = "Failed To Start Application"

// Start launches long-lived processes (dev servers) through the same
// terminal transport as Shell. The adapter itself is synchronous; the
// scheduler dispatches it on its own goroutine and only holds the chain
// for the settle delay, which is what makes start actions fire-and-forget.
type Start struct {
	terminal types.Terminal
	aborts   *abort.Coordinator
}

// NewStart creates the start adapter.
func NewStart(terminal types.Terminal, aborts *abort.Coordinator) *Start {
	return &Start{terminal: terminal, aborts: aborts}
}

// Execute submits the command and blocks until the process exits, which
// for a healthy server is indefinitely.
func (a *Start) Execute(ctx context.Context, action types.Action) types.Outcome {
	logger := logging.GetLogger("adapters.start").With().Str("id", action.ID).Logger()

	if err := a.terminal.Ready(ctx); err != nil {
		logger.Error().Err(err).Msg("Terminal not ready")
		return types.Failure(StartFailureHeader, err.Error())
	}

	onAbort := func() {
		if err := a.aborts.Abort(action.ID); err != nil {
			logger.Debug().Err(err).Msg("Terminal abort for unknown action")
		}
	}

	logger.Debug().Str("command", action.Command).Msg("Starting application")
	result, err := a.terminal.ExecuteCommand(ctx, action.ID, action.Command, onAbort)
	if err != nil {
		return types.Failure(StartFailureHeader, err.Error())
	}
	if result.ExitCode != 0 {
		logger.Info().Int("exitCode", result.ExitCode).Msg("Application exited with failure")
		return types.Failure(StartFailureHeader, result.Output)
	}

	return types.Success(result.Output)
}
