// Package web provides the read-only HTTP surface of the console:
// snapshots, timeline, run history, graph validation and raw ingest.
package web

import (
	"sort"

	"github.com/pulseline/pulseline/pkg/models"
	"github.com/pulseline/pulseline/pkg/progress"
)

// ValidateGraphRequest is the body of POST /graphs/validate.
type ValidateGraphRequest struct {
	Nodes []*models.GraphNode `json:"nodes" validate:"required,dive"`
	Edges []*models.Edge      `json:"edges" validate:"dive"`
}

// SnapshotResponse is the JSON form of an engine snapshot. Token streams
// are flattened to a slice because their map key is composite.
type SnapshotResponse struct {
	Run          models.Run                `json:"run"`
	Stages       []models.Stage            `json:"stages"`
	SubTasks     map[string]models.SubTask `json:"sub_tasks"`
	TokenStreams []models.TokenStream      `json:"token_streams"`
	AgentActions []models.AgentAction      `json:"agent_actions"`
}

func newSnapshotResponse(snap progress.Snapshot) SnapshotResponse {
	streams := make([]models.TokenStream, 0, len(snap.TokenStreams))
	for _, stream := range snap.TokenStreams {
		streams = append(streams, stream)
	}

	sort.Slice(streams, func(i, j int) bool {
		if streams[i].Key.StepNumber != streams[j].Key.StepNumber {
			return streams[i].Key.StepNumber < streams[j].Key.StepNumber
		}

		return streams[i].Key.Source < streams[j].Key.Source
	})

	return SnapshotResponse{
		Run:          snap.Run,
		Stages:       snap.Stages,
		SubTasks:     snap.SubTasks,
		TokenStreams: streams,
		AgentActions: snap.AgentActions,
	}
}
