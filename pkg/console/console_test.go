package console

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseline/pulseline/pkg/history"
	"github.com/pulseline/pulseline/pkg/models"
	"github.com/pulseline/pulseline/pkg/notify"
	"github.com/pulseline/pulseline/pkg/progress"
	"github.com/pulseline/pulseline/pkg/reconcile"
)

type fakeTransport struct {
	ch          chan []byte
	connected   bool
	reconnected chan struct{}
}

func newFakeTransport(connected bool) *fakeTransport {
	return &fakeTransport{
		ch:          make(chan []byte, 16),
		connected:   connected,
		reconnected: make(chan struct{}, 1),
	}
}

func (f *fakeTransport) Messages(_ context.Context) (<-chan []byte, error) {
	return f.ch, nil
}

func (f *fakeTransport) Connected() bool { return f.connected }

func (f *fakeTransport) Reconnected() <-chan struct{} { return f.reconnected }

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) push(t *testing.T, msg map[string]any) {
	t.Helper()

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	f.ch <- raw
}

type fakeExecutor struct {
	mu        sync.Mutex
	status    *reconcile.ExecutionStatus
	cancelled []string
}

func (f *fakeExecutor) ExecutionStatus(_ context.Context, _ string) (*reconcile.ExecutionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.status, nil
}

func (f *fakeExecutor) ExecutionDetail(_ context.Context, _ string) (*reconcile.ExecutionDetail, error) {
	return &reconcile.ExecutionDetail{}, nil
}

func (f *fakeExecutor) CancelExecution(_ context.Context, executionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cancelled = append(f.cancelled, executionID)

	return nil
}

func newTestConsole(trans *fakeTransport, executor *fakeExecutor) (*Console, *progress.Engine, *history.MemoryStore) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := progress.NewEngine(logger, notify.NopNotifier{})
	store := history.NewMemoryStore()
	reconciler := reconcile.NewReconciler(logger, executor, executor, engine, 10*time.Millisecond)

	return New(logger, engine, trans, reconciler, executor, store), engine, store
}

func TestConsole_PrepareGatesInvalidGraph(t *testing.T) {
	console, _, _ := newTestConsole(newFakeTransport(true), &fakeExecutor{})

	verdict, err := console.Prepare(context.Background(), &models.Graph{})

	require.ErrorIs(t, err, ErrGraphNotExecutable)
	assert.False(t, verdict.CanExecute)
}

func TestConsole_PrepareResetsEngine(t *testing.T) {
	console, engine, _ := newTestConsole(newFakeTransport(true), &fakeExecutor{})

	engine.Dispatch(context.Background(), map[string]any{
		"type": "execution_started", "execution_id": "exec-stale",
	})

	verdict, err := console.Prepare(context.Background(), &models.Graph{
		Nodes: []*models.GraphNode{
			{ID: "A", Category: models.CategoryTypeInput},
			{ID: "B", Category: models.CategoryTypeOutput},
		},
		Edges: []*models.Edge{{Source: "A", Target: "B"}},
	})

	require.NoError(t, err)
	assert.True(t, verdict.CanExecute)
	assert.Equal(t, models.RunStatusIdle, engine.Run().Status)
	assert.Empty(t, engine.BoundExecutionID())
}

func TestConsole_WatchUntilTerminal(t *testing.T) {
	trans := newFakeTransport(true)
	console, _, store := newTestConsole(trans, &fakeExecutor{})

	console.Track("exec-1")

	trans.push(t, map[string]any{"type": "execution_started", "execution_id": "exec-1"})
	trans.push(t, map[string]any{"type": "node_start", "execution_id": "exec-1", "node_id": "n1"})
	trans.push(t, map[string]any{"type": "node_end", "execution_id": "exec-1", "node_id": "n1"})
	trans.push(t, map[string]any{"type": "execution_end", "execution_id": "exec-1"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	run, err := console.Watch(ctx)

	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 100.0, run.ProgressPercentage)

	// The finished run is archived for later inspection.
	archive, err := store.Get(context.Background(), "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, archive.Run.Status)
	assert.NotEmpty(t, archive.Timeline)
}

func TestConsole_WatchFallsBackToPolling(t *testing.T) {
	trans := newFakeTransport(false)
	executor := &fakeExecutor{
		status: &reconcile.ExecutionStatus{Status: models.RunStatusCompleted, ProgressPercentage: 100},
	}
	console, engine, _ := newTestConsole(trans, executor)

	console.Track("exec-1")
	engine.Dispatch(context.Background(), map[string]any{
		"type": "execution_started", "execution_id": "exec-1",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// No push messages arrive; the reconciler settles the run.
	run, err := console.Watch(ctx)

	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
}

func TestConsole_WatchSurvivesStreamClose(t *testing.T) {
	trans := newFakeTransport(true)
	executor := &fakeExecutor{
		status: &reconcile.ExecutionStatus{Status: models.RunStatusFailed},
	}
	console, _, _ := newTestConsole(trans, executor)

	console.Track("exec-1")

	trans.push(t, map[string]any{"type": "execution_started", "execution_id": "exec-1"})
	close(trans.ch)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	run, err := console.Watch(ctx)

	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
}

func TestConsole_Cancel(t *testing.T) {
	executor := &fakeExecutor{}
	console, engine, _ := newTestConsole(newFakeTransport(true), executor)

	engine.Dispatch(context.Background(), map[string]any{
		"type": "execution_started", "execution_id": "exec-1",
	})

	require.NoError(t, console.Cancel(context.Background()))

	assert.Equal(t, models.RunStatusCancelled, engine.Run().Status)
	assert.Equal(t, []string{"exec-1"}, executor.cancelled)
}
