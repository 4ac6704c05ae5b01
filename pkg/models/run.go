// Package models defines the core domain models for run-progress tracking.
package models

import "time"

// RunStatus represents the lifecycle state of a run.
type RunStatus string

const (
	RunStatusIdle      RunStatus = "idle"
	RunStatusStarting  RunStatus = "starting"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether the status ends a run.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// Run is the top-level record for one remote execution.
type Run struct {
	ExecutionID        string         `json:"execution_id"`
	Status             RunStatus      `json:"status"`
	ProgressPercentage float64        `json:"progress_percentage"`
	Message            string         `json:"message,omitempty"`
	CurrentStep        string         `json:"current_step,omitempty"`
	StartedAt          *time.Time     `json:"started_at,omitempty"`
	FinishedAt         *time.Time     `json:"finished_at,omitempty"`
	Error              string         `json:"error,omitempty"`
	ErrorType          string         `json:"error_type,omitempty"`
	FinalResult        map[string]any `json:"final_result,omitempty"`
}

// StageStatus defines the possible states of a stage execution.
type StageStatus string

const (
	StageStatusRunning   StageStatus = "running"
	StageStatusCompleted StageStatus = "completed"
	StageStatusError     StageStatus = "error"
)

// IsTerminal reports whether the stage reached a final state.
func (s StageStatus) IsTerminal() bool {
	return s == StageStatusCompleted || s == StageStatusError
}

// Stage is one declared step of a run: a graph node or an agent step.
type Stage struct {
	ID            string         `json:"id"`
	Label         string         `json:"label"`
	Status        StageStatus    `json:"status"`
	StepNumber    int            `json:"step_number"`
	ExecutionTime float64        `json:"execution_time,omitempty"`
	Error         string         `json:"error,omitempty"`
	ErrorType     string         `json:"error_type,omitempty"`
	HasExecuted   bool           `json:"has_executed"`
	SubTasks      []*SubTask     `json:"sub_tasks,omitempty"`
	Result        map[string]any `json:"result,omitempty"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	FinishedAt    *time.Time     `json:"finished_at,omitempty"`
}

// SubTaskStatus defines the possible states of a sub-task execution.
type SubTaskStatus string

const (
	SubTaskStatusRunning   SubTaskStatus = "running"
	SubTaskStatusCompleted SubTaskStatus = "completed"
	SubTaskStatusFailed    SubTaskStatus = "failed"
)

// IsTerminal reports whether the sub-task reached a final state.
func (s SubTaskStatus) IsTerminal() bool {
	return s == SubTaskStatusCompleted || s == SubTaskStatusFailed
}

// SubTask is one tool invocation performed within a stage.
type SubTask struct {
	Name       string        `json:"name"`
	Status     SubTaskStatus `json:"status"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	OutputSize int           `json:"output_size,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// TokenStreamKey identifies one streaming text-generation session.
// The source name alone is not unique: the same source may stream in
// several steps, so the step number is part of the identity.
type TokenStreamKey struct {
	Source     string `json:"source"`
	StepNumber int    `json:"step_number"`
}

// TokenStreamStatus defines the possible states of a token stream.
type TokenStreamStatus string

const (
	TokenStreamStatusStreaming TokenStreamStatus = "streaming"
	TokenStreamStatusCompleted TokenStreamStatus = "completed"
	TokenStreamStatusError     TokenStreamStatus = "error"
)

// IsTerminal reports whether the stream reached a final state.
func (s TokenStreamStatus) IsTerminal() bool {
	return s == TokenStreamStatusCompleted || s == TokenStreamStatusError
}

// TokenStream is one streaming text-generation session tied to a
// (source, step) pair.
type TokenStream struct {
	Key              TokenStreamKey    `json:"key"`
	Status           TokenStreamStatus `json:"status"`
	Chunks           []string          `json:"chunks"`
	ChunkCount       int               `json:"chunk_count"`
	StartedAt        *time.Time        `json:"started_at,omitempty"`
	FirstChunkAt     *time.Time        `json:"first_chunk_at,omitempty"`
	ElapsedTime      float64           `json:"elapsed_time,omitempty"`
	TimeToFirstChunk float64           `json:"time_to_first_chunk,omitempty"`
	Error            string            `json:"error,omitempty"`
}

// AgentAction is a write-once record of one autonomous-agent decision.
type AgentAction struct {
	Name      string         `json:"name"`
	Input     map[string]any `json:"input,omitempty"`
	Rationale string         `json:"rationale,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
