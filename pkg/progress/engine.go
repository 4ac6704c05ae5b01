// Package progress turns the raw executor message stream into consistent
// hierarchical run state: run, stages, sub-tasks, token streams, agent
// actions and an append-only timeline.
package progress

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pulseline/pulseline/pkg/events"
	"github.com/pulseline/pulseline/pkg/models"
	"github.com/pulseline/pulseline/pkg/notify"
)

// tokenTimelineStride throttles token chunks on the timeline: streams can
// emit hundreds of chunks per run, and unthrottled the timeline becomes
// the dominant memory cost.
const tokenTimelineStride = 10

// Engine owns the hierarchical state for exactly one run at a time.
// Events are processed to completion in delivery order; a whole batch is
// applied before any other message is accepted. All reads go through
// snapshot copies, so the engine is the single mutation path.
type Engine struct {
	mu sync.Mutex

	logger   *slog.Logger
	notifier notify.Notifier

	boundID       string
	onExecutionID func(executionID string)
	discovered    bool

	run      models.Run
	stages   map[string]*models.Stage
	stageIDs []string
	subTasks map[string]*models.SubTask
	streams  map[models.TokenStreamKey]*models.TokenStream
	actions  []models.AgentAction
	timeline *timeline
}

func NewEngine(logger *slog.Logger, notifier notify.Notifier) *Engine {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}

	engine := &Engine{
		logger:   logger,
		notifier: notifier,
		timeline: newTimeline(),
	}
	engine.resetLocked()

	return engine
}

// Bind fixes the execution id the engine follows. Callers that already
// know their id from the start-run response bind it up front; otherwise
// the engine captures the id of the first run-start event.
func (e *Engine) Bind(executionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.boundID == "" {
		e.boundID = executionID
	}
}

// OnExecutionDiscovered registers a one-shot callback fired when the
// engine captures an execution id from the stream. Start-run requests can
// return their id asynchronously, racing with the first progress event;
// the callback lets the caller learn the id from whichever side wins.
func (e *Engine) OnExecutionDiscovered(fn func(executionID string)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.onExecutionID = fn
}

// MarkStarting flags the run as requested but not yet confirmed by the
// executor. The console calls it right after issuing a start request so
// views show movement before the first progress event lands.
func (e *Engine) MarkStarting(executionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.boundID == "" && executionID != "" {
		e.boundID = executionID
	}

	if e.run.Status == models.RunStatusIdle {
		e.run.Status = models.RunStatusStarting
		e.run.ExecutionID = e.boundID
	}
}

// BoundExecutionID returns the currently bound execution id, if any.
func (e *Engine) BoundExecutionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.boundID
}

// DispatchRaw decodes a JSON payload and dispatches it.
func (e *Engine) DispatchRaw(ctx context.Context, payload []byte) {
	msg, err := events.Decode(payload)
	if err != nil {
		e.logger.WarnContext(ctx, "Dropping undecodable message", "error", err)

		return
	}

	e.Dispatch(ctx, msg)
}

// Dispatch feeds one raw message through unbatching, normalization,
// identity gating and the level reducers. Malformed or unrecognized
// messages are logged and dropped; they never fail the engine.
func (e *Engine) Dispatch(ctx context.Context, msg map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.dispatchLocked(ctx, msg)
}

func (e *Engine) dispatchLocked(ctx context.Context, msg map[string]any) {
	if events.IsBatch(msg) {
		subMessages, err := events.Unbatch(msg)
		if err != nil {
			e.logger.WarnContext(ctx, "Dropping malformed batch envelope", "error", err)

			return
		}

		for _, sub := range subMessages {
			e.dispatchLocked(ctx, sub)
		}

		return
	}

	event, err := events.Normalize(msg)
	if err != nil {
		e.logger.WarnContext(ctx, "Dropping unrecognized message", "error", err)

		return
	}

	e.handleLocked(ctx, event)
}

func (e *Engine) handleLocked(ctx context.Context, event *events.Event) {
	if !e.admitLocked(ctx, event) {
		return
	}

	switch event.Level {
	case events.LevelRun:
		e.reduceRun(ctx, event)
	case events.LevelStage:
		e.reduceStage(ctx, event)
	case events.LevelSubTask:
		e.reduceSubTask(ctx, event)
	case events.LevelTokenStream:
		e.reduceTokenStream(ctx, event)
	case events.LevelAgent:
		e.reduceAgent(ctx, event)
	}
}

// admitLocked is the execution-identity gate. The first run-start event
// binds the engine when no id is known yet; afterwards any event carrying
// a different id is discarded without touching state.
func (e *Engine) admitLocked(ctx context.Context, event *events.Event) bool {
	if e.boundID == "" && event.Level == events.LevelRun && event.Subtype == events.SubtypeStart {
		if event.ExecutionID != "" {
			e.boundID = event.ExecutionID

			if e.onExecutionID != nil && !e.discovered {
				e.discovered = true
				e.onExecutionID(event.ExecutionID)
			}
		}

		return true
	}

	if e.boundID != "" && event.ExecutionID != "" && event.ExecutionID != e.boundID {
		e.logger.DebugContext(ctx, "Discarding event for foreign execution",
			"bound_execution_id", e.boundID,
			"event_execution_id", event.ExecutionID,
			"level", string(event.Level),
			"subtype", string(event.Subtype),
		)

		return false
	}

	return true
}

// Reset wipes every map, the timeline and the bound execution id. It is
// the only operation that removes entries.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.resetLocked()
}

func (e *Engine) resetLocked() {
	e.boundID = ""
	e.discovered = false
	e.run = models.Run{Status: models.RunStatusIdle}
	e.stages = make(map[string]*models.Stage)
	e.stageIDs = e.stageIDs[:0]
	e.subTasks = make(map[string]*models.SubTask)
	e.streams = make(map[models.TokenStreamKey]*models.TokenStream)
	e.actions = e.actions[:0]
	e.timeline.reset()
}

func (e *Engine) notifyLocked(ctx context.Context, kind notify.Kind, details map[string]any) {
	if err := e.notifier.Notify(ctx, kind, e.boundID, details); err != nil {
		e.logger.WarnContext(ctx, "Notifier failed", "kind", string(kind), "error", err)
	}
}
