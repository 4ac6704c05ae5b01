package progress

import (
	"context"

	"github.com/pulseline/pulseline/pkg/events"
	"github.com/pulseline/pulseline/pkg/models"
	"github.com/pulseline/pulseline/pkg/notify"
)

func (e *Engine) reduceStage(ctx context.Context, event *events.Event) {
	stageID := firstString(event, "node_id", "stage_id", "id")
	if stageID == "" {
		e.logger.WarnContext(ctx, "Dropping stage event without id", "subtype", string(event.Subtype))

		return
	}

	switch event.Subtype {
	case events.SubtypeStart:
		e.stageStart(event, stageID)
	case events.SubtypeProgress:
		e.stageProgress(event, stageID)
	case events.SubtypeEnd:
		e.stageEnd(event, stageID)
	case events.SubtypeError:
		e.stageError(ctx, event, stageID)
	}
}

func (e *Engine) stageStart(event *events.Event, stageID string) {
	if existing, ok := e.stages[stageID]; ok && existing.Status.IsTerminal() {
		// Terminal states are sticky: a stray late start for a finished
		// stage must not resurrect it.
		return
	}

	startedAt := event.Timestamp
	stepNumber, _ := event.Int("step_number")

	label := firstString(event, "label", "node_label", "name")
	if label == "" {
		label = stageID
	}

	stage := &models.Stage{
		ID:         stageID,
		Label:      label,
		Status:     models.StageStatusRunning,
		StepNumber: stepNumber,
		StartedAt:  &startedAt,
	}

	if _, seen := e.stages[stageID]; !seen {
		e.stageIDs = append(e.stageIDs, stageID)
	} else {
		// Re-run of a non-terminal stage keeps its accumulated sub-tasks.
		stage.SubTasks = e.stages[stageID].SubTasks
	}

	e.stages[stageID] = stage
	e.run.CurrentStep = stageID

	e.timeline.append(string(event.Level), string(event.Subtype), "Stage started: "+label, stageID, "", event.Timestamp)
}

func (e *Engine) stageProgress(event *events.Event, stageID string) {
	stage, ok := e.stages[stageID]
	if !ok {
		return
	}

	// Merge incremental fields only; unrelated fields stay untouched.
	if result := event.Map("result"); result != nil {
		if stage.Result == nil {
			stage.Result = make(map[string]any, len(result))
		}

		for k, v := range result {
			stage.Result[k] = v
		}
	}

	content := event.String("message")
	if content == "" {
		content = "Stage progress: " + stage.Label
	}

	e.timeline.append(string(event.Level), string(event.Subtype), content, stageID, "", event.Timestamp)
}

func (e *Engine) stageEnd(event *events.Event, stageID string) {
	stage, ok := e.stages[stageID]
	if !ok {
		// An end for an unseen stage still records the execution; the
		// start may have been lost across a reconnect.
		stage = &models.Stage{ID: stageID, Label: stageID}
		e.stages[stageID] = stage
		e.stageIDs = append(e.stageIDs, stageID)
	}

	if stage.Status.IsTerminal() {
		return
	}

	finishedAt := event.Timestamp
	stage.FinishedAt = &finishedAt
	stage.HasExecuted = true

	if execTime, ok := event.Float("execution_time"); ok {
		stage.ExecutionTime = execTime
	}

	if result := event.Map("result"); result != nil {
		stage.Result = result
	}

	if errMsg := event.String("error"); errMsg != "" {
		stage.Status = models.StageStatusError
		stage.Error = errMsg
		stage.ErrorType = event.String("error_type")

		e.timeline.append(string(event.Level), string(event.Subtype), "Stage failed: "+stage.Label, stageID, "", event.Timestamp)

		return
	}

	stage.Status = models.StageStatusCompleted
	e.timeline.append(string(event.Level), string(event.Subtype), "Stage completed: "+stage.Label, stageID, "", event.Timestamp)
}

func (e *Engine) stageError(ctx context.Context, event *events.Event, stageID string) {
	stage, ok := e.stages[stageID]
	if !ok {
		stage = &models.Stage{ID: stageID, Label: stageID}
		e.stages[stageID] = stage
		e.stageIDs = append(e.stageIDs, stageID)
	}

	finishedAt := event.Timestamp

	stage.Status = models.StageStatusError
	stage.Error = event.String("error")
	stage.ErrorType = event.String("error_type")
	stage.HasExecuted = true
	stage.FinishedAt = &finishedAt

	content := "Stage failed: " + stage.Label
	if stage.Error != "" {
		content += " (" + stage.Error + ")"
	}

	e.timeline.append(string(event.Level), string(event.Subtype), content, stageID, "", event.Timestamp)

	// A stage failure is localized: it alerts, but only an explicit
	// run-level error fails the whole run.
	e.notifyLocked(ctx, notify.KindStageFailed, map[string]any{
		"stage_id": stageID,
		"error":    stage.Error,
	})
}

func firstString(event *events.Event, keys ...string) string {
	for _, key := range keys {
		if v := event.String(key); v != "" {
			return v
		}
	}

	return ""
}
