package progress

import (
	"context"

	"github.com/pulseline/pulseline/pkg/events"
	"github.com/pulseline/pulseline/pkg/models"
)

func (e *Engine) reduceAgent(ctx context.Context, event *events.Event) {
	switch event.Subtype {
	case events.SubtypeAction:
		e.agentAction(event)
	case events.SubtypeFinish:
		e.agentFinish(event)
	default:
		e.logger.WarnContext(ctx, "Dropping agent event", "subtype", string(event.Subtype))
	}
}

func (e *Engine) agentAction(event *events.Event) {
	name := firstString(event, "action", "tool", "name")

	// Agent actions are write-once: appended at creation, never updated.
	action := models.AgentAction{
		Name:      name,
		Input:     event.Map("input"),
		Rationale: firstString(event, "rationale", "thought", "log"),
		CreatedAt: event.Timestamp,
	}

	e.actions = append(e.actions, action)

	if name != "" {
		e.run.CurrentStep = name
	}

	content := "Agent action: " + name
	if action.Rationale != "" {
		content += " (" + action.Rationale + ")"
	}

	e.timeline.append(string(event.Level), string(event.Subtype), content, "", "", event.Timestamp)
}

func (e *Engine) agentFinish(event *events.Event) {
	if result := event.Map("return_values"); result != nil {
		e.run.FinalResult = result
	} else if result := event.Map("output"); result != nil {
		e.run.FinalResult = result
	}

	e.timeline.append(string(event.Level), string(event.Subtype), "Agent finished", "", "", event.Timestamp)
}
