package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_LegacyAliases(t *testing.T) {
	tests := []struct {
		legacyType string
		level      Level
		subtype    Subtype
	}{
		{"execution_started", LevelRun, SubtypeStart},
		{"execution_start", LevelRun, SubtypeStart},
		{"execution_progress", LevelRun, SubtypeProgress},
		{"execution_end", LevelRun, SubtypeEnd},
		{"execution_error", LevelRun, SubtypeError},
		{"node_start", LevelStage, SubtypeStart},
		{"node_progress", LevelStage, SubtypeProgress},
		{"node_end", LevelStage, SubtypeEnd},
		{"node_error", LevelStage, SubtypeError},
		{"tool_start", LevelSubTask, SubtypeStart},
		{"tool_progress", LevelSubTask, SubtypeProgress},
		{"tool_end", LevelSubTask, SubtypeEnd},
		{"tool_error", LevelSubTask, SubtypeError},
		{"llm_start", LevelTokenStream, SubtypeStart},
		{"llm_token", LevelTokenStream, SubtypeToken},
		{"agent_thinking", LevelTokenStream, SubtypeToken},
		{"sentiment_analysis_progress", LevelTokenStream, SubtypeToken},
		{"insight_thinking", LevelTokenStream, SubtypeToken},
		{"llm_end", LevelTokenStream, SubtypeEnd},
		{"llm_error", LevelTokenStream, SubtypeError},
		{"agent_action", LevelAgent, SubtypeAction},
		{"agent_finish", LevelAgent, SubtypeFinish},
	}

	for _, tc := range tests {
		t.Run(tc.legacyType, func(t *testing.T) {
			event, err := Normalize(map[string]any{"type": tc.legacyType})

			require.NoError(t, err)
			assert.Equal(t, tc.level, event.Level)
			assert.Equal(t, tc.subtype, event.Subtype)
		})
	}
}

func TestNormalize_UnifiedShape(t *testing.T) {
	event, err := Normalize(map[string]any{
		"type":         "stage",
		"subtype":      "start",
		"execution_id": "exec-1",
		"node_id":      "n1",
	})

	require.NoError(t, err)
	assert.Equal(t, LevelStage, event.Level)
	assert.Equal(t, SubtypeStart, event.Subtype)
	assert.Equal(t, "exec-1", event.ExecutionID)
	assert.Equal(t, "n1", event.Fields["node_id"])
}

func TestNormalize_DataFieldsWinOnConflict(t *testing.T) {
	event, err := Normalize(map[string]any{
		"type":    "run",
		"subtype": "progress",
		"message": "outer",
		"data": map[string]any{
			"message":  "inner",
			"progress": 42.0,
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "inner", event.Fields["message"])
	assert.Equal(t, 42.0, event.Fields["progress"])
}

func TestNormalize_ExecutionIDFromData(t *testing.T) {
	event, err := Normalize(map[string]any{
		"type": "execution_started",
		"data": map[string]any{"execution_id": "exec-9"},
	})

	require.NoError(t, err)
	assert.Equal(t, "exec-9", event.ExecutionID)
}

func TestNormalize_CamelCaseExecutionID(t *testing.T) {
	event, err := Normalize(map[string]any{
		"type":        "execution_started",
		"executionId": "exec-camel",
	})

	require.NoError(t, err)
	assert.Equal(t, "exec-camel", event.ExecutionID)
}

func TestNormalize_UnknownTypeIsDropped(t *testing.T) {
	_, err := Normalize(map[string]any{"type": "mystery_event"})
	require.ErrorIs(t, err, ErrUnknownType)

	_, err = Normalize(map[string]any{"type": "run", "subtype": "mystery"})
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestNormalize_MissingType(t *testing.T) {
	_, err := Normalize(map[string]any{"subtype": "start"})
	require.ErrorIs(t, err, ErrMissingType)
}

func TestUnbatch_PreservesOrder(t *testing.T) {
	batch := map[string]any{
		"type": BatchType,
		"messages": []any{
			map[string]any{"type": "node_start", "node_id": "a"},
			map[string]any{"type": "node_end", "node_id": "a"},
			map[string]any{"type": "node_start", "node_id": "b"},
		},
	}

	messages, err := Unbatch(batch)

	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "node_start", messages[0]["type"])
	assert.Equal(t, "a", messages[0]["node_id"])
	assert.Equal(t, "node_end", messages[1]["type"])
	assert.Equal(t, "node_start", messages[2]["type"])
	assert.Equal(t, "b", messages[2]["node_id"])
}

func TestUnbatch_MessagesUnderData(t *testing.T) {
	batch := map[string]any{
		"type": BatchType,
		"data": map[string]any{
			"messages": []any{
				map[string]any{"type": "llm_token", "token": "x"},
			},
		},
	}

	messages, err := Unbatch(batch)

	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "llm_token", messages[0]["type"])
}

func TestUnbatch_RejectsNonBatch(t *testing.T) {
	_, err := Unbatch(map[string]any{"type": "node_start"})
	require.ErrorIs(t, err, ErrNotBatch)
}

func TestDecode(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"llm_token","token":"hi"}`))

	require.NoError(t, err)
	assert.Equal(t, "llm_token", msg["type"])

	_, err = Decode([]byte(`{not json`))
	require.Error(t, err)
}
