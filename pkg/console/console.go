// Package console wires the progress engine, transport, reconciler and
// history store into one watchable run session.
package console

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pulseline/pulseline/pkg/graph"
	"github.com/pulseline/pulseline/pkg/history"
	"github.com/pulseline/pulseline/pkg/models"
	"github.com/pulseline/pulseline/pkg/otelhelper"
	"github.com/pulseline/pulseline/pkg/progress"
	"github.com/pulseline/pulseline/pkg/reconcile"
	"github.com/pulseline/pulseline/pkg/transport"
)

var ErrGraphNotExecutable = errors.New("graph failed validation")

// Canceler sends an advisory stop request toward the remote executor.
type Canceler interface {
	CancelExecution(ctx context.Context, executionID string) error
}

// Console drives one run at a time: validate, start, watch, archive.
type Console struct {
	logger     *slog.Logger
	engine     *progress.Engine
	transport  transport.Transport
	reconciler *reconcile.Reconciler
	canceler   Canceler
	store      history.Store
	tracer     trace.Tracer
}

func New(
	logger *slog.Logger,
	engine *progress.Engine,
	trans transport.Transport,
	reconciler *reconcile.Reconciler,
	canceler Canceler,
	store history.Store,
) *Console {
	return &Console{
		logger:     logger,
		engine:     engine,
		transport:  trans,
		reconciler: reconciler,
		canceler:   canceler,
		store:      store,
	}
}

// WithTracer enables span emission around watched runs.
func (c *Console) WithTracer(tracer trace.Tracer) *Console {
	c.tracer = tracer

	return c
}

// Prepare validates a declared graph and resets the engine for a new
// run. The verdict gates the start: an invalid graph never reaches the
// executor.
func (c *Console) Prepare(ctx context.Context, g *models.Graph) (models.Verdict, error) {
	if c.tracer != nil {
		var span trace.Span

		nodes, edges := 0, 0
		if g != nil {
			nodes, edges = len(g.Nodes), len(g.Edges)
		}

		_, span = otelhelper.StartSpan(ctx, c.tracer, "console.prepare",
			attribute.Int(otelhelper.GraphNodesKey, nodes),
			attribute.Int(otelhelper.GraphEdgesKey, edges),
		)
		defer span.End()
	}

	verdict := graph.Validate(g)
	if !verdict.CanExecute {
		return verdict, ErrGraphNotExecutable
	}

	c.engine.Reset()

	return verdict, nil
}

// Track binds the engine to a run the executor already acknowledged.
func (c *Console) Track(executionID string) {
	c.engine.MarkStarting(executionID)
}

// Watch consumes the live message stream until the run reaches a
// terminal state or the context ends. The reconciliation loop is started
// whenever delivery is not confirmed, and again after every reconnect
// while the run still looks live locally.
func (c *Console) Watch(ctx context.Context) (*models.Run, error) {
	var span trace.Span

	if c.tracer != nil {
		ctx, span = otelhelper.StartSpan(ctx, c.tracer, "console.watch",
			attribute.String(otelhelper.ExecutionIDKey, c.engine.BoundExecutionID()),
		)
		defer span.End()
	}

	messages, err := c.transport.Messages(ctx)
	if err != nil {
		if span != nil {
			otelhelper.SetError(span, err)
		}

		return nil, err
	}

	if !c.transport.Connected() {
		c.startReconcile(ctx)
	}

	// The reconciler may settle the run while the push stream stays
	// silent, so terminal state is also checked on a ticker.
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-ticker.C:
			if run := c.engine.Run(); run.Status.IsTerminal() {
				c.reconciler.Stop()
				c.archive(ctx, run)

				return &run, nil
			}

		case <-c.transport.Reconnected():
			if c.engine.Run().Status == models.RunStatusRunning {
				c.startReconcile(ctx)
			}

		case payload, ok := <-messages:
			if !ok {
				// Stream ended without a terminal event: fall back to
				// polling until the executor settles the run.
				c.startReconcile(ctx)

				return c.awaitTerminal(ctx)
			}

			c.engine.DispatchRaw(ctx, payload)

			if run := c.engine.Run(); run.Status.IsTerminal() {
				if span != nil {
					span.SetAttributes(attribute.String(otelhelper.RunStatusKey, string(run.Status)))
				}

				c.reconciler.Stop()
				c.archive(ctx, run)

				return &run, nil
			}
		}
	}
}

// Cancel marks the run cancelled locally and sends the advisory stop
// request. It does not wait for remote acknowledgment.
func (c *Console) Cancel(ctx context.Context) error {
	executionID := c.engine.BoundExecutionID()

	c.reconciler.Stop()
	c.engine.Dispatch(ctx, map[string]any{
		"type":         "run",
		"subtype":      "end",
		"status":       string(models.RunStatusCancelled),
		"execution_id": executionID,
	})

	if c.canceler == nil || executionID == "" {
		return nil
	}

	return c.canceler.CancelExecution(ctx, executionID)
}

// Snapshot exposes the engine's read-only state for rendering.
func (c *Console) Snapshot() progress.Snapshot {
	return c.engine.Snapshot()
}

func (c *Console) startReconcile(ctx context.Context) {
	executionID := c.engine.BoundExecutionID()
	if executionID == "" {
		return
	}

	c.reconciler.Start(ctx, executionID)
}

// awaitTerminal waits for the reconciler to settle the run after the
// push stream has gone away.
func (c *Console) awaitTerminal(ctx context.Context) (*models.Run, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			if run := c.engine.Run(); run.Status.IsTerminal() {
				c.reconciler.Stop()
				c.archive(ctx, run)

				return &run, nil
			}
		}
	}
}

func (c *Console) archive(ctx context.Context, run models.Run) {
	if c.store == nil || run.ExecutionID == "" {
		return
	}

	snap := c.engine.Snapshot()

	err := c.store.Save(ctx, &history.Archive{
		ExecutionID: run.ExecutionID,
		Run:         run,
		Timeline:    snap.Timeline,
		ArchivedAt:  time.Now().UTC(),
	})
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to archive run", "execution_id", run.ExecutionID, "error", err)
	}
}
