package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/arthur-debert/runlet/pkg/types"
)

// FakeTerminal is a scripted types.Terminal. Results are keyed by
// command; unknown commands succeed with exit 0 and empty output.
type FakeTerminal struct {
	mu      sync.Mutex
	results map[string]types.CommandResult
	errs    map[string]error
	holds   map[string]chan struct{}
	calls   []string
	aborts  map[string]func()

	// NotReady makes Ready fail.
	NotReady error
}

// NewFakeTerminal creates an empty scripted terminal.
func NewFakeTerminal() *FakeTerminal {
	return &FakeTerminal{
		results: make(map[string]types.CommandResult),
		errs:    make(map[string]error),
		holds:   make(map[string]chan struct{}),
		aborts:  make(map[string]func()),
	}
}

// Hold makes one command block until the returned channel is closed or
// the action's context is cancelled. Other commands run unblocked. Used
// to simulate long-lived start processes.
func (t *FakeTerminal) Hold(command string) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan struct{})
	t.holds[command] = ch
	return ch
}

// Script sets the result returned for a command.
func (t *FakeTerminal) Script(command string, exitCode int, output string) *FakeTerminal {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.results[command] = types.CommandResult{ExitCode: exitCode, Output: output}
	return t
}

// ScriptErr makes a command fail with a transport error.
func (t *FakeTerminal) ScriptErr(command string, err error) *FakeTerminal {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errs[command] = err
	return t
}

// Calls returns the commands executed, in order.
func (t *FakeTerminal) Calls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.calls))
	copy(out, t.calls)
	return out
}

// TriggerAbort simulates a terminal-side stop for a run, invoking the
// abort callback the adapter registered.
func (t *FakeTerminal) TriggerAbort(runID string) {
	t.mu.Lock()
	onAbort := t.aborts[runID]
	t.mu.Unlock()
	if onAbort != nil {
		onAbort()
	}
}

func (t *FakeTerminal) Ready(ctx context.Context) error {
	return t.NotReady
}

func (t *FakeTerminal) ExecuteCommand(ctx context.Context, runID, command string, onAbort func()) (types.CommandResult, error) {
	t.mu.Lock()
	t.calls = append(t.calls, command)
	t.aborts[runID] = onAbort
	result, scripted := t.results[command]
	err := t.errs[command]
	hold := t.holds[command]
	t.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return types.CommandResult{ExitCode: -1, Output: "killed"}, nil
		}
	}

	if err != nil {
		return types.CommandResult{}, err
	}
	if !scripted {
		return types.CommandResult{ExitCode: 0}, nil
	}
	return result, nil
}

// StubEnvironment is a types.Environment backed by a MemoryFS.
type StubEnvironment struct {
	Dir        string
	Filesystem types.FS

	mu          sync.Mutex
	spawnResult types.SpawnResult
	spawnErr    error
	spawnCalls  []string
}

// NewStubEnvironment creates an environment rooted at dir with a fresh
// MemoryFS.
func NewStubEnvironment(dir string) *StubEnvironment {
	return &StubEnvironment{Dir: dir, Filesystem: NewMemoryFS()}
}

// ScriptSpawn sets the result of every subsequent Spawn call.
func (s *StubEnvironment) ScriptSpawn(exitCode int, output string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spawnResult = types.SpawnResult{ExitCode: exitCode, Output: output}
	s.spawnErr = err
}

// SpawnCalls returns the commands spawned, in order.
func (s *StubEnvironment) SpawnCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.spawnCalls))
	copy(out, s.spawnCalls)
	return out
}

func (s *StubEnvironment) Spawn(ctx context.Context, command string) (types.SpawnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spawnCalls = append(s.spawnCalls, command)
	return s.spawnResult, s.spawnErr
}

func (s *StubEnvironment) FS() types.FS {
	return s.Filesystem
}

func (s *StubEnvironment) WorkDir() string {
	return s.Dir
}

// CaptureSink records every alert delivered on any channel. Delivery is
// asynchronous, so assertions go through the Wait helpers.
type CaptureSink struct {
	mu          sync.Mutex
	alerts      []types.Alert
	database    []types.DatabaseAlert
	deployments []types.DeploymentAlert
}

// NewCaptureSink creates an empty capture sink.
func NewCaptureSink() *CaptureSink {
	return &CaptureSink{}
}

// Sink returns the AlertSink wiring all three channels into the capture.
func (c *CaptureSink) Sink() types.AlertSink {
	return types.AlertSink{
		OnAlert: func(a types.Alert) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.alerts = append(c.alerts, a)
		},
		OnDatabase: func(a types.DatabaseAlert) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.database = append(c.database, a)
		},
		OnDeployment: func(a types.DeploymentAlert) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.deployments = append(c.deployments, a)
		},
	}
}

// Alerts returns a copy of the captured generic alerts.
func (c *CaptureSink) Alerts() []types.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Alert, len(c.alerts))
	copy(out, c.alerts)
	return out
}

// Database returns a copy of the captured database alerts.
func (c *CaptureSink) Database() []types.DatabaseAlert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.DatabaseAlert, len(c.database))
	copy(out, c.database)
	return out
}

// Deployments returns a copy of the captured deployment alerts.
func (c *CaptureSink) Deployments() []types.DeploymentAlert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.DeploymentAlert, len(c.deployments))
	copy(out, c.deployments)
	return out
}

// WaitAlerts polls until at least n generic alerts arrived or the
// timeout expires.
func (c *CaptureSink) WaitAlerts(n int, timeout time.Duration) bool {
	return c.wait(timeout, func() bool { return len(c.alerts) >= n })
}

// WaitDatabase polls until at least n database alerts arrived.
func (c *CaptureSink) WaitDatabase(n int, timeout time.Duration) bool {
	return c.wait(timeout, func() bool { return len(c.database) >= n })
}

// WaitDeployments polls until at least n deployment alerts arrived.
func (c *CaptureSink) WaitDeployments(n int, timeout time.Duration) bool {
	return c.wait(timeout, func() bool { return len(c.deployments) >= n })
}

func (c *CaptureSink) wait(timeout time.Duration, done func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		c.mu.Lock()
		ok := done()
		c.mu.Unlock()
		if ok {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}
