package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/runlet/pkg/adapters"
	"github.com/arthur-debert/runlet/pkg/config"
	"github.com/arthur-debert/runlet/pkg/engine"
	"github.com/arthur-debert/runlet/pkg/errors"
	"github.com/arthur-debert/runlet/pkg/testutil"
	"github.com/arthur-debert/runlet/pkg/types"
)

type fixture struct {
	engine *engine.Engine
	sink   *testutil.CaptureSink
	term   *testutil.FakeTerminal
	env    *testutil.StubEnvironment
}

func newFixture(t *testing.T, opts ...engine.Option) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.SettleDelay = 10 * time.Millisecond

	f := &fixture{
		sink: testutil.NewCaptureSink(),
		term: testutil.NewFakeTerminal(),
		env:  testutil.NewStubEnvironment("/work"),
	}
	f.engine = engine.New(context.Background(), cfg, f.env, f.term, f.sink.Sink(), opts...)
	return f
}

func TestExecuteShell(t *testing.T) {
	f := newFixture(t)
	defer f.engine.Close()

	f.term.Script("npm install", 0, "added 3 packages")

	action, err := f.engine.Execute(types.Descriptor{ID: "a1", Kind: "shell", Content: "npm install"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusComplete, action.Status)
	assert.True(t, action.Executed)
	assert.Equal(t, []string{"npm install"}, f.term.Calls())
}

func TestSubmitTwiceIsNoOp(t *testing.T) {
	f := newFixture(t)
	defer f.engine.Close()

	first, err := f.engine.Submit(types.Descriptor{ID: "a1", Kind: "shell", Content: "ls"})
	require.NoError(t, err)

	second, err := f.engine.Submit(types.Descriptor{ID: "a1", Kind: "shell", Content: "rm -rf /"})
	require.NoError(t, err)
	assert.Equal(t, first.Command, second.Command)
	assert.Len(t, f.engine.Actions(), 1)
}

func TestShellFailureReportsThroughStatusNotError(t *testing.T) {
	f := newFixture(t)
	defer f.engine.Close()

	f.term.Script("chmod 000 /", 1, "permission denied")

	action, err := f.engine.Execute(types.Descriptor{ID: "a1", Kind: "shell", Content: "chmod 000 /"})
	require.NoError(t, err)

	assert.Equal(t, types.StatusFailed, action.Status)
	require.NotNil(t, action.Err)
	assert.Equal(t, adapters.ShellFailureHeader, action.Err.Message)
	assert.Equal(t, "permission denied", action.Err.Output)

	require.True(t, f.sink.WaitAlerts(1, time.Second))
}

func TestBuildFailureIsTheOnlyCallerError(t *testing.T) {
	f := newFixture(t)
	defer f.engine.Close()

	f.env.ScriptSpawn(1, "webpack exited", nil)

	_, err := f.engine.Execute(types.Descriptor{ID: "b1", Kind: "build"})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrBuildExit))
}

func TestStreamedFileLifecycle(t *testing.T) {
	f := newFixture(t)
	defer f.engine.Close()

	_, err := f.engine.Submit(types.Descriptor{ID: "f1", Kind: "file", FilePath: "src/index.js", Content: ""})
	require.NoError(t, err)

	require.NoError(t, f.engine.StreamFile("f1", "import React"))
	require.NoError(t, f.engine.StreamFile("f1", "import React from 'react';"))

	action, ok := f.engine.Status("f1")
	require.True(t, ok)
	assert.Equal(t, types.StatusRunning, action.Status)
	assert.False(t, action.Executed)

	require.NoError(t, f.engine.Finalize("f1", "import React from 'react';\nexport default 1;"))

	action, _ = f.engine.Status("f1")
	assert.Equal(t, types.StatusComplete, action.Status)
	assert.True(t, action.Executed)

	data, err := f.env.Filesystem.ReadFile("/work/src/index.js")
	require.NoError(t, err)
	assert.Equal(t, "import React from 'react';\nexport default 1;", string(data))
	assert.Equal(t, 3, f.env.Filesystem.(*testutil.MemoryFS).WriteCount())
}

func TestStreamAfterFinalizeIsRejected(t *testing.T) {
	f := newFixture(t)
	defer f.engine.Close()

	_, err := f.engine.Submit(types.Descriptor{ID: "f1", Kind: "file", FilePath: "a.txt", Content: "done"})
	require.NoError(t, err)
	require.NoError(t, f.engine.Run("f1"))

	err = f.engine.StreamFile("f1", "late chunk")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrActionFinalized))
}

func TestAbortBeforeRun(t *testing.T) {
	f := newFixture(t)
	defer f.engine.Close()

	_, err := f.engine.Submit(types.Descriptor{ID: "a1", Kind: "shell", Content: "echo hi"})
	require.NoError(t, err)
	require.NoError(t, f.engine.Abort("a1"))
	require.NoError(t, f.engine.Run("a1"))

	action, _ := f.engine.Status("a1")
	assert.Equal(t, types.StatusAborted, action.Status)
	assert.Empty(t, f.term.Calls())
}

func TestAbortAfterCompletionIsNoOp(t *testing.T) {
	f := newFixture(t)
	defer f.engine.Close()

	action, err := f.engine.Execute(types.Descriptor{ID: "a1", Kind: "shell", Content: "ls"})
	require.NoError(t, err)
	require.Equal(t, types.StatusComplete, action.Status)

	// Safe to call in any state, terminal included.
	require.NoError(t, f.engine.Abort("a1"))

	action, _ = f.engine.Status("a1")
	assert.Equal(t, types.StatusComplete, action.Status)
}

func TestCloseStopsRunningStarts(t *testing.T) {
	f := newFixture(t)

	f.term.Hold("npm run dev")
	_, err := f.engine.Submit(types.Descriptor{ID: "s1", Kind: "start", Content: "npm run dev"})
	require.NoError(t, err)
	require.NoError(t, f.engine.Run("s1"))

	action, _ := f.engine.Status("s1")
	require.Equal(t, types.StatusRunning, action.Status)

	require.NoError(t, f.engine.Close())

	action, _ = f.engine.Status("s1")
	assert.Equal(t, types.StatusAborted, action.Status)
}

type memoryRecorder struct {
	actions []types.Action
}

func (r *memoryRecorder) Record(action types.Action) error {
	r.actions = append(r.actions, action)
	return nil
}

func TestRecorderOptionReceivesTerminalActions(t *testing.T) {
	recorder := &memoryRecorder{}
	f := newFixture(t, engine.WithRecorder(recorder))

	_, err := f.engine.Execute(types.Descriptor{ID: "a1", Kind: "shell", Content: "ls"})
	require.NoError(t, err)
	require.NoError(t, f.engine.Close())

	require.Len(t, recorder.actions, 1)
	assert.Equal(t, "a1", recorder.actions[0].ID)
	assert.Equal(t, types.StatusComplete, recorder.actions[0].Status)
}

func TestActionsSnapshotOrder(t *testing.T) {
	f := newFixture(t)
	defer f.engine.Close()

	for _, id := range []string{"c", "a", "b"} {
		_, err := f.engine.Submit(types.Descriptor{ID: id, Kind: "shell", Content: "ls"})
		require.NoError(t, err)
	}

	actions := f.engine.Actions()
	require.Len(t, actions, 3)
	assert.Equal(t, "c", actions[0].ID)
	assert.Equal(t, "a", actions[1].ID)
	assert.Equal(t, "b", actions[2].ID)
}
