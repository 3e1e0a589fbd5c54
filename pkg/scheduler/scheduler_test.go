package scheduler_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/runlet/pkg/abort"
	"github.com/arthur-debert/runlet/pkg/adapters"
	"github.com/arthur-debert/runlet/pkg/alerts"
	"github.com/arthur-debert/runlet/pkg/config"
	"github.com/arthur-debert/runlet/pkg/errors"
	"github.com/arthur-debert/runlet/pkg/scheduler"
	"github.com/arthur-debert/runlet/pkg/store"
	"github.com/arthur-debert/runlet/pkg/testutil"
	"github.com/arthur-debert/runlet/pkg/types"
)

// harness wires a scheduler against fakes with a short settle delay.
type harness struct {
	records *store.Store
	aborts  *abort.Coordinator
	sink    *testutil.CaptureSink
	term    *testutil.FakeTerminal
	env     *testutil.StubEnvironment
	sched   *scheduler.Scheduler
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := config.Default()
	cfg.SettleDelay = 10 * time.Millisecond

	h := &harness{
		records: store.New(),
		sink:    testutil.NewCaptureSink(),
		term:    testutil.NewFakeTerminal(),
		env:     testutil.NewStubEnvironment("/work"),
	}
	h.aborts = abort.New(h.records)
	emitter := alerts.New(h.sink.Sink())
	set := adapters.NewSet(cfg, h.env, h.term, h.aborts, emitter)
	h.sched = scheduler.New(cfg, h.records, h.aborts, emitter, set, nil)
	return h
}

func (h *harness) submit(t *testing.T, desc types.Descriptor) string {
	t.Helper()
	action, _, err := h.records.Register(desc)
	require.NoError(t, err)
	h.aborts.Bind(context.Background(), action.ID)
	return action.ID
}

func (h *harness) run(t *testing.T, id string) error {
	t.Helper()
	result, err := h.sched.Enqueue(id, true)
	require.NoError(t, err)
	select {
	case err := <-result:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("dispatch of %s never finished", id)
		return nil
	}
}

func (h *harness) status(t *testing.T, id string) types.ActionStatus {
	t.Helper()
	action, ok := h.records.Get(id)
	require.True(t, ok)
	return action.Status
}

func TestDispatchFollowsEnqueueOrder(t *testing.T) {
	h := newHarness(t)
	defer h.sched.Close()

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, h.submit(t, types.Descriptor{
			ID: fmt.Sprintf("a%d", i), Kind: "shell", Content: fmt.Sprintf("echo %d", i),
		}))
	}

	var results []<-chan error
	for _, id := range ids {
		result, err := h.sched.Enqueue(id, true)
		require.NoError(t, err)
		results = append(results, result)
	}
	for _, result := range results {
		require.NoError(t, <-result)
	}

	want := []string{"echo 0", "echo 1", "echo 2", "echo 3", "echo 4"}
	assert.Equal(t, want, h.term.Calls())
	for _, id := range ids {
		assert.Equal(t, types.StatusComplete, h.status(t, id))
	}
}

func TestExecutedActionIsNeverDispatchedTwice(t *testing.T) {
	h := newHarness(t)
	defer h.sched.Close()

	id := h.submit(t, types.Descriptor{ID: "a1", Kind: "shell", Content: "echo once"})

	require.NoError(t, h.run(t, id))
	require.NoError(t, h.run(t, id))

	assert.Equal(t, []string{"echo once"}, h.term.Calls())
}

func TestAbortedPendingActionNeverRuns(t *testing.T) {
	h := newHarness(t)
	defer h.sched.Close()

	id := h.submit(t, types.Descriptor{ID: "a1", Kind: "shell", Content: "echo nope"})
	require.NoError(t, h.aborts.Abort(id))

	require.NoError(t, h.run(t, id))

	assert.Empty(t, h.term.Calls())
	assert.Equal(t, types.StatusAborted, h.status(t, id))
}

func TestShellFailureSurfacesOutputAndAlert(t *testing.T) {
	h := newHarness(t)
	defer h.sched.Close()

	h.term.Script("rm -rf /protected", 1, "permission denied")
	id := h.submit(t, types.Descriptor{ID: "a1", Kind: "shell", Content: "rm -rf /protected"})

	// A shell failure is not an error for the caller; it lives in status
	// and on the alert channel.
	require.NoError(t, h.run(t, id))

	action, _ := h.records.Get(id)
	assert.Equal(t, types.StatusFailed, action.Status)
	require.NotNil(t, action.Err)
	assert.Equal(t, adapters.ShellFailureHeader, action.Err.Message)
	assert.Equal(t, "permission denied", action.Err.Output)

	require.True(t, h.sink.WaitAlerts(1, time.Second))
	alert := h.sink.Alerts()[0]
	assert.Equal(t, types.AlertError, alert.Type)
	assert.Equal(t, adapters.ShellFailureHeader, alert.Title)
	assert.Equal(t, "permission denied", alert.Content)
}

func TestBuildFailurePropagatesToCaller(t *testing.T) {
	h := newHarness(t)
	defer h.sched.Close()

	h.env.ScriptSpawn(1, "module not found", nil)
	id := h.submit(t, types.Descriptor{ID: "b1", Kind: "build"})

	err := h.run(t, id)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrBuildExit))
	assert.Equal(t, types.StatusFailed, h.status(t, id))

	// Build failures report on both the generic and deployment channels.
	require.True(t, h.sink.WaitAlerts(1, time.Second))
	require.True(t, h.sink.WaitDeployments(2, time.Second))
}

func TestStartDoesNotBlockTheChain(t *testing.T) {
	h := newHarness(t)

	hold := h.term.Hold("npm run dev")
	startID := h.submit(t, types.Descriptor{ID: "s1", Kind: "start", Content: "npm run dev"})
	shellID := h.submit(t, types.Descriptor{ID: "a1", Kind: "shell", Content: "echo after"})

	require.NoError(t, h.run(t, startID))

	// The chain moved on after the settle delay while the server is still
	// up: the start record is running, not terminal.
	assert.Equal(t, types.StatusRunning, h.status(t, startID))
	require.NoError(t, h.run(t, shellID))
	assert.Equal(t, types.StatusComplete, h.status(t, shellID))

	// Releasing the held process lets it exit cleanly.
	close(hold)
	require.NoError(t, h.sched.Close())
	assert.Equal(t, types.StatusComplete, h.status(t, startID))
}

func TestAbortedStartIsNotAFailure(t *testing.T) {
	h := newHarness(t)

	h.term.Hold("npm run dev")
	id := h.submit(t, types.Descriptor{ID: "s1", Kind: "start", Content: "npm run dev"})

	require.NoError(t, h.run(t, id))
	require.NoError(t, h.aborts.Abort(id))

	// The fake reports a kill exit once its context dies; the scheduler
	// must treat that as an intentional stop, not a dead server.
	require.NoError(t, h.sched.Close())
	assert.Equal(t, types.StatusAborted, h.status(t, id))
	assert.Empty(t, h.sink.Alerts())
}

func TestCrashedStartSurfacesAtClose(t *testing.T) {
	h := newHarness(t)

	h.term.Script("npm run dev", 1, "EADDRINUSE")
	id := h.submit(t, types.Descriptor{ID: "s1", Kind: "start", Content: "npm run dev"})

	require.NoError(t, h.run(t, id))

	err := h.sched.Close()
	require.Error(t, err)
	assert.Equal(t, types.StatusFailed, h.status(t, id))
}

func TestMigrationQueryCompletesWithoutGenericAlert(t *testing.T) {
	h := newHarness(t)
	defer h.sched.Close()

	id := h.submit(t, types.Descriptor{
		ID: "q1", Kind: "migration", Operation: "query", Content: "SELECT 1",
	})

	require.NoError(t, h.run(t, id))

	assert.Equal(t, types.StatusComplete, h.status(t, id))
	require.True(t, h.sink.WaitDatabase(1, time.Second))
	assert.Empty(t, h.sink.Alerts())
}

func TestStreamingFileDispatchKeepsActionOpen(t *testing.T) {
	h := newHarness(t)
	defer h.sched.Close()

	id := h.submit(t, types.Descriptor{ID: "f1", Kind: "file", FilePath: "app.js", Content: "const a"})

	result, err := h.sched.Enqueue(id, false)
	require.NoError(t, err)
	require.NoError(t, <-result)

	action, _ := h.records.Get(id)
	assert.Equal(t, types.StatusRunning, action.Status)
	assert.False(t, action.Executed)

	data, err := h.env.Filesystem.ReadFile("/work/app.js")
	require.NoError(t, err)
	assert.Equal(t, "const a", string(data))

	require.NoError(t, h.records.UpdateContent(id, "const a = 1;"))
	require.NoError(t, h.run(t, id))

	action, _ = h.records.Get(id)
	assert.Equal(t, types.StatusComplete, action.Status)
	assert.True(t, action.Executed)

	data, err = h.env.Filesystem.ReadFile("/work/app.js")
	require.NoError(t, err)
	assert.Equal(t, "const a = 1;", string(data))
}

func TestEnqueueUnknownAction(t *testing.T) {
	h := newHarness(t)
	defer h.sched.Close()

	result, err := h.sched.Enqueue("ghost", true)
	require.NoError(t, err)
	err = <-result
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrActionNotFound))
}

func TestEnqueueAfterClose(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sched.Close())

	_, err := h.sched.Enqueue("a1", true)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrSchedulerClosed))
}

func TestFullQueueDoesNotWedgeOtherCallers(t *testing.T) {
	cfg := config.Default()
	cfg.SettleDelay = time.Millisecond
	cfg.QueueCapacity = 1

	records := store.New()
	aborts := abort.New(records)
	emitter := alerts.New(types.AlertSink{})
	env := testutil.NewStubEnvironment("/work")
	term := testutil.NewFakeTerminal()
	sched := scheduler.New(cfg, records, aborts, emitter, adapters.NewSet(cfg, env, term, aborts, emitter), nil)

	hold := term.Hold("slow command")
	ids := []string{"a1", "a2", "a3"}
	contents := []string{"slow command", "echo b", "echo c"}
	for i, id := range ids {
		_, _, err := records.Register(types.Descriptor{ID: id, Kind: "shell", Content: contents[i]})
		require.NoError(t, err)
		aborts.Bind(context.Background(), id)
	}

	// a1 occupies the worker, a2 fills the one-slot buffer, a3 blocks in
	// its send. None of them may hold a lock that wedges Close.
	results := make(chan error, len(ids))
	var pending sync.WaitGroup
	for _, id := range ids {
		pending.Add(1)
		go func(id string) {
			defer pending.Done()
			result, err := sched.Enqueue(id, true)
			if err != nil {
				results <- err
				return
			}
			results <- <-result
		}(id)
	}

	time.Sleep(50 * time.Millisecond)
	close(hold)
	pending.Wait()

	for range ids {
		require.NoError(t, <-results)
	}
	require.NoError(t, sched.Close())
	for _, id := range ids {
		action, ok := records.Get(id)
		require.True(t, ok)
		assert.Equal(t, types.StatusComplete, action.Status)
	}
}

type captureRecorder struct {
	ids []string
}

func (r *captureRecorder) Record(action types.Action) error {
	r.ids = append(r.ids, action.ID)
	return nil
}

func TestRecorderSeesTerminalActions(t *testing.T) {
	cfg := config.Default()
	cfg.SettleDelay = time.Millisecond

	records := store.New()
	aborts := abort.New(records)
	emitter := alerts.New(types.AlertSink{})
	env := testutil.NewStubEnvironment("/work")
	term := testutil.NewFakeTerminal()
	recorder := &captureRecorder{}
	sched := scheduler.New(cfg, records, aborts, emitter, adapters.NewSet(cfg, env, term, aborts, emitter), recorder)

	action, _, err := records.Register(types.Descriptor{ID: "a1", Kind: "shell", Content: "ls"})
	require.NoError(t, err)
	aborts.Bind(context.Background(), action.ID)

	result, err := sched.Enqueue("a1", true)
	require.NoError(t, err)
	require.NoError(t, <-result)
	require.NoError(t, sched.Close())

	// The worker is the sole writer, so no lock is needed after Close.
	assert.Equal(t, []string{"a1"}, recorder.ids)
}
