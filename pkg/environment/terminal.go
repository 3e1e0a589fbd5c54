package environment

import (
	"context"
	"io"
	"os/exec"
	"sync"
	"syscall"

	"github.com/arthur-debert/runlet/pkg/errors"
	"github.com/arthur-debert/runlet/pkg/logging"
	"github.com/arthur-debert/runlet/pkg/types"
)

// Terminal is the local implementation of the shared shell abstraction.
// Commands run in their own process group so an abort can take down the
// whole tree, not just the shell.
type Terminal struct {
	workDir string

	mu      sync.Mutex
	current *running
}

type running struct {
	runID   string
	cmd     *exec.Cmd
	onAbort func()
}

// NewTerminal creates a local terminal rooted at workDir.
func NewTerminal(workDir string) *Terminal {
	return &Terminal{workDir: workDir}
}

// Ready reports whether the terminal can accept a command.
func (t *Terminal) Ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrTerminalNotReady, "terminal context cancelled")
	}
	return nil
}

// ExecuteCommand runs a command and waits for its exit code. The command
// is killed (process group and all) when ctx is cancelled. onAbort is
// invoked when the termination originates on the terminal side, via
// Interrupt, so external stops flow back into the action's abort path.
func (t *Terminal) ExecuteCommand(ctx context.Context, runID, command string, onAbort func()) (types.CommandResult, error) {
	logger := logging.GetLogger("environment.terminal").With().Str("runId", runID).Logger()

	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = t.workDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return types.CommandResult{}, errors.Wrap(err, errors.ErrTerminalExecute, "failed to open stdout pipe")
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return types.CommandResult{}, errors.Wrap(err, errors.ErrTerminalExecute, "failed to start command")
	}

	t.mu.Lock()
	t.current = &running{runID: runID, cmd: cmd, onAbort: onAbort}
	t.mu.Unlock()

	// Kill the process group on ctx cancellation. The done channel keeps
	// the watcher from outliving the command.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			t.kill(cmd)
		case <-done:
		}
	}()

	data, _ := io.ReadAll(stdout)
	output := string(data)
	waitErr := cmd.Wait()

	t.mu.Lock()
	t.current = nil
	t.mu.Unlock()

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	if waitErr != nil {
		if _, ok := waitErr.(*exec.ExitError); !ok {
			return types.CommandResult{}, errors.Wrap(waitErr, errors.ErrTerminalExecute, "command did not run")
		}
	}

	logger.Debug().Int("exitCode", exitCode).Msg("Command finished")
	return types.CommandResult{ExitCode: exitCode, Output: output}, nil
}

// Interrupt terminates the command currently running under runID, if
// any, and notifies the action's abort path. This is the hook a hosting
// UI wires its stop button to.
func (t *Terminal) Interrupt(runID string) {
	t.mu.Lock()
	cur := t.current
	t.mu.Unlock()

	if cur == nil || cur.runID != runID {
		return
	}

	t.kill(cur.cmd)
	if cur.onAbort != nil {
		cur.onAbort()
	}
}

func (t *Terminal) kill(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	// Negative pid targets the whole process group.
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		logger := logging.GetLogger("environment.terminal")
		logger.Debug().Err(err).Msg("Process group kill failed")
	}
}
