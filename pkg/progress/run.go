package progress

import (
	"context"
	"fmt"

	"github.com/pulseline/pulseline/pkg/events"
	"github.com/pulseline/pulseline/pkg/models"
	"github.com/pulseline/pulseline/pkg/notify"
)

func (e *Engine) reduceRun(ctx context.Context, event *events.Event) {
	switch event.Subtype {
	case events.SubtypeStart:
		e.runStart(ctx, event)
	case events.SubtypeProgress:
		e.runProgress(event)
	case events.SubtypeEnd:
		e.runEnd(ctx, event)
	case events.SubtypeError:
		e.runError(ctx, event)
	}
}

func (e *Engine) runStart(ctx context.Context, event *events.Event) {
	// Terminal states are sticky at the run level too: a duplicate or
	// late start for a finished run must not resurrect it. Only Reset
	// clears the record.
	if e.run.Status.IsTerminal() {
		return
	}

	startedAt := event.Timestamp

	e.run = models.Run{
		ExecutionID: e.boundID,
		Status:      models.RunStatusRunning,
		Message:     event.String("message"),
		StartedAt:   &startedAt,
	}

	e.timeline.append(string(event.Level), string(event.Subtype), "Run started", "", "", event.Timestamp)
	e.notifyLocked(ctx, notify.KindRunStarted, map[string]any{"message": e.run.Message})
}

func (e *Engine) runProgress(event *events.Event) {
	if e.run.Status.IsTerminal() {
		return
	}

	// Progress is monotone within a run and stays inside [0,100]: a late,
	// smaller percentage never rolls the bar backwards, and an executor
	// overshooting 100 is capped.
	if pct, ok := event.Float("progress"); ok && pct > e.run.ProgressPercentage {
		e.run.ProgressPercentage = min(pct, 100)
	}

	if msg := event.String("message"); msg != "" {
		e.run.Message = msg
	}

	if step := event.String("current_step"); step != "" {
		e.run.CurrentStep = step
	}

	content := e.run.Message
	if content == "" {
		content = fmt.Sprintf("Run progress %.0f%%", e.run.ProgressPercentage)
	}

	e.timeline.append(string(event.Level), string(event.Subtype), content, "", "", event.Timestamp)
}

func (e *Engine) runEnd(ctx context.Context, event *events.Event) {
	// The push stream and the reconciliation poller can both deliver the
	// terminal transition; whichever lands first wins.
	if e.run.Status.IsTerminal() {
		return
	}

	finishedAt := event.Timestamp
	e.run.FinishedAt = &finishedAt

	if result := event.Map("final_result"); result != nil {
		e.run.FinalResult = result
	} else if result := event.Map("result"); result != nil {
		e.run.FinalResult = result
	}

	if errMsg := event.String("error"); errMsg != "" {
		e.run.Status = models.RunStatusFailed
		e.run.Error = errMsg
		e.run.ErrorType = event.String("error_type")

		e.timeline.append(string(event.Level), string(event.Subtype), "Run failed: "+errMsg, "", "", event.Timestamp)
		e.notifyLocked(ctx, notify.KindRunFailed, map[string]any{"error": errMsg})

		return
	}

	if event.String("status") == string(models.RunStatusCancelled) {
		e.run.Status = models.RunStatusCancelled

		e.timeline.append(string(event.Level), string(event.Subtype), "Run cancelled", "", "", event.Timestamp)

		return
	}

	e.run.Status = models.RunStatusCompleted
	e.run.ProgressPercentage = 100

	e.timeline.append(string(event.Level), string(event.Subtype), "Run completed", "", "", event.Timestamp)
	e.notifyLocked(ctx, notify.KindRunCompleted, map[string]any{"result": e.run.FinalResult})
}

func (e *Engine) runError(ctx context.Context, event *events.Event) {
	if e.run.Status.IsTerminal() {
		return
	}

	finishedAt := event.Timestamp

	e.run.Status = models.RunStatusFailed
	e.run.Error = event.String("error")
	e.run.ErrorType = event.String("error_type")
	e.run.FinishedAt = &finishedAt

	content := "Run failed"
	if e.run.Error != "" {
		content = "Run failed: " + e.run.Error
	}

	e.timeline.append(string(event.Level), string(event.Subtype), content, "", "", event.Timestamp)
	e.notifyLocked(ctx, notify.KindRunFailed, map[string]any{
		"error":      e.run.Error,
		"error_type": e.run.ErrorType,
	})
}
