package progress

import (
	"github.com/pulseline/pulseline/pkg/models"
)

// Snapshot is a point-in-time copy of the engine's hierarchical state.
// Reading a snapshot never mutates the engine, and later engine mutations
// never show through an already-taken snapshot.
type Snapshot struct {
	Run          models.Run                                   `json:"run"`
	Stages       []models.Stage                               `json:"stages"`
	SubTasks     map[string]models.SubTask                    `json:"sub_tasks"`
	TokenStreams map[models.TokenStreamKey]models.TokenStream `json:"-"`
	AgentActions []models.AgentAction                         `json:"agent_actions"`
	Timeline     []models.TimelineEntry                       `json:"timeline"`
}

// Snapshot returns a deep copy of the current state. Stages are returned
// in first-seen order.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Run:          e.run,
		Stages:       make([]models.Stage, 0, len(e.stageIDs)),
		SubTasks:     make(map[string]models.SubTask, len(e.subTasks)),
		TokenStreams: make(map[models.TokenStreamKey]models.TokenStream, len(e.streams)),
		AgentActions: append([]models.AgentAction(nil), e.actions...),
		Timeline:     e.timeline.snapshot(),
	}

	for _, id := range e.stageIDs {
		stage := *e.stages[id]
		stage.SubTasks = copySubTasks(stage.SubTasks)
		snap.Stages = append(snap.Stages, stage)
	}

	for name, task := range e.subTasks {
		snap.SubTasks[name] = *task
	}

	for key, stream := range e.streams {
		copied := *stream
		copied.Chunks = append([]string(nil), stream.Chunks...)
		snap.TokenStreams[key] = copied
	}

	return snap
}

// Progress returns the run's current progress percentage.
func (e *Engine) Progress() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.run.ProgressPercentage
}

// Run returns a copy of the current run record.
func (e *Engine) Run() models.Run {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.run
}

func copySubTasks(tasks []*models.SubTask) []*models.SubTask {
	if tasks == nil {
		return nil
	}

	out := make([]*models.SubTask, len(tasks))

	for i, task := range tasks {
		copied := *task
		out[i] = &copied
	}

	return out
}
