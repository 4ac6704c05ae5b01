package progress

import (
	"context"

	"github.com/pulseline/pulseline/pkg/events"
	"github.com/pulseline/pulseline/pkg/models"
	"github.com/pulseline/pulseline/pkg/notify"
)

func (e *Engine) reduceSubTask(ctx context.Context, event *events.Event) {
	name := firstString(event, "tool", "tool_name", "name")
	if name == "" {
		e.logger.WarnContext(ctx, "Dropping sub-task event without name", "subtype", string(event.Subtype))

		return
	}

	switch event.Subtype {
	case events.SubtypeStart:
		e.subTaskStart(event, name)
	case events.SubtypeProgress:
		e.subTaskProgress(event, name)
	case events.SubtypeEnd:
		e.subTaskEnd(event, name)
	case events.SubtypeError:
		e.subTaskError(ctx, event, name)
	}
}

func (e *Engine) subTaskStart(event *events.Event, name string) {
	startedAt := event.Timestamp

	task := &models.SubTask{
		Name:      name,
		Status:    models.SubTaskStatusRunning,
		StartedAt: &startedAt,
	}

	// The top-level map keys by name alone and a new start overwrites the
	// previous occurrence. The owning stage additionally appends every
	// occurrence, so per-stage history is collision-free.
	e.subTasks[name] = task

	if stage := e.owningStage(event); stage != nil {
		stage.SubTasks = append(stage.SubTasks, task)
	}

	e.timeline.append(string(event.Level), string(event.Subtype), "Sub-task started: "+name, e.stageRef(event), name, event.Timestamp)
}

func (e *Engine) subTaskProgress(event *events.Event, name string) {
	task, ok := e.subTasks[name]
	if !ok {
		return
	}

	if size, ok := event.Int("output_size"); ok {
		task.OutputSize = size
	}

	content := event.String("message")
	if content == "" {
		content = "Sub-task progress: " + name
	}

	e.timeline.append(string(event.Level), string(event.Subtype), content, e.stageRef(event), name, event.Timestamp)
}

func (e *Engine) subTaskEnd(event *events.Event, name string) {
	task, ok := e.subTasks[name]
	if !ok {
		return
	}

	if task.Status.IsTerminal() {
		return
	}

	finishedAt := event.Timestamp
	task.FinishedAt = &finishedAt

	if size, ok := event.Int("output_size"); ok {
		task.OutputSize = size
	} else if output := event.String("output"); output != "" {
		task.OutputSize = len(output)
	}

	if errMsg := event.String("error"); errMsg != "" {
		task.Status = models.SubTaskStatusFailed
		task.Error = errMsg

		e.timeline.append(string(event.Level), string(event.Subtype), "Sub-task failed: "+name, e.stageRef(event), name, event.Timestamp)

		return
	}

	task.Status = models.SubTaskStatusCompleted
	e.timeline.append(string(event.Level), string(event.Subtype), "Sub-task completed: "+name, e.stageRef(event), name, event.Timestamp)
}

func (e *Engine) subTaskError(ctx context.Context, event *events.Event, name string) {
	task, ok := e.subTasks[name]
	if !ok {
		task = &models.SubTask{Name: name}
		e.subTasks[name] = task

		if stage := e.owningStage(event); stage != nil {
			stage.SubTasks = append(stage.SubTasks, task)
		}
	}

	finishedAt := event.Timestamp

	task.Status = models.SubTaskStatusFailed
	task.Error = event.String("error")
	task.FinishedAt = &finishedAt

	content := "Sub-task failed: " + name
	if task.Error != "" {
		content += " (" + task.Error + ")"
	}

	e.timeline.append(string(event.Level), string(event.Subtype), content, e.stageRef(event), name, event.Timestamp)
	e.notifyLocked(ctx, notify.KindSubTaskFailed, map[string]any{
		"sub_task": name,
		"error":    task.Error,
	})
}

// owningStage resolves the stage a sub-task event belongs to: an explicit
// node id wins, otherwise the run's current step.
func (e *Engine) owningStage(event *events.Event) *models.Stage {
	if id := firstString(event, "node_id", "stage_id"); id != "" {
		return e.stages[id]
	}

	if e.run.CurrentStep != "" {
		return e.stages[e.run.CurrentStep]
	}

	return nil
}

func (e *Engine) stageRef(event *events.Event) string {
	if stage := e.owningStage(event); stage != nil {
		return stage.ID
	}

	return ""
}
