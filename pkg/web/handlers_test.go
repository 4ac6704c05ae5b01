package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseline/pulseline/pkg/history"
	"github.com/pulseline/pulseline/pkg/models"
	"github.com/pulseline/pulseline/pkg/notify"
	"github.com/pulseline/pulseline/pkg/progress"
	"github.com/pulseline/pulseline/pkg/web"
)

func setupTestApp(t *testing.T) (*fiber.App, *progress.Engine, *history.MemoryStore) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := progress.NewEngine(logger, notify.NopNotifier{})
	store := history.NewMemoryStore()
	validate := validator.New(validator.WithRequiredStructEnabled())

	app := fiber.New()
	web.NewAPIHandlers(engine, store, validate).Register(app)

	return app, engine, store
}

func doRequest(t *testing.T, app *fiber.App, method, target string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, payload
}

func TestHealthCheck(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp, body := doRequest(t, app, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "healthy", payload["status"])
}

func TestGetCurrentExecution(t *testing.T) {
	app, engine, _ := setupTestApp(t)

	engine.Dispatch(context.Background(), map[string]any{
		"type":         "execution_started",
		"execution_id": "exec-1",
	})
	engine.Dispatch(context.Background(), map[string]any{
		"type":         "llm_token",
		"execution_id": "exec-1",
		"source":       "writer",
		"step_number":  1,
		"token":        "hi",
	})

	resp, body := doRequest(t, app, http.MethodGet, "/executions/current", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload web.SnapshotResponse
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "exec-1", payload.Run.ExecutionID)
	require.Len(t, payload.TokenStreams, 1)
	assert.Equal(t, "writer", payload.TokenStreams[0].Key.Source)
}

func TestGetTimeline(t *testing.T) {
	app, engine, _ := setupTestApp(t)

	engine.Dispatch(context.Background(), map[string]any{
		"type":         "execution_started",
		"execution_id": "exec-1",
	})

	resp, body := doRequest(t, app, http.MethodGet, "/executions/current/timeline", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		ExecutionID string                 `json:"execution_id"`
		Timeline    []models.TimelineEntry `json:"timeline"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "exec-1", payload.ExecutionID)
	assert.NotEmpty(t, payload.Timeline)
}

func TestIngest(t *testing.T) {
	app, engine, _ := setupTestApp(t)

	resp, _ := doRequest(t, app, http.MethodPost, "/ingest", map[string]any{
		"type":         "execution_started",
		"execution_id": "exec-ingest",
	})

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "exec-ingest", engine.Run().ExecutionID)
}

func TestIngest_BatchEnvelope(t *testing.T) {
	app, engine, _ := setupTestApp(t)

	resp, _ := doRequest(t, app, http.MethodPost, "/ingest", map[string]any{
		"type": "batch",
		"messages": []any{
			map[string]any{"type": "execution_started", "execution_id": "exec-1"},
			map[string]any{"type": "execution_end", "execution_id": "exec-1"},
		},
	})

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, models.RunStatusCompleted, engine.Run().Status)
}

func TestIngest_InvalidJSON(t *testing.T) {
	app, _, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestValidateGraph(t *testing.T) {
	app, _, _ := setupTestApp(t)

	tests := []struct {
		name           string
		body           any
		expectedStatus int
		expectedType   models.ValidationType
	}{
		{
			name: "valid graph",
			body: web.ValidateGraphRequest{
				Nodes: []*models.GraphNode{
					{ID: "A", Category: models.CategoryTypeInput},
					{ID: "B", Category: models.CategoryTypeOutput},
				},
				Edges: []*models.Edge{{Source: "A", Target: "B"}},
			},
			expectedStatus: http.StatusOK,
			expectedType:   models.ValidationTypeValid,
		},
		{
			name: "structural failure",
			body: web.ValidateGraphRequest{
				Nodes: []*models.GraphNode{
					{ID: "A", Category: models.CategoryTypeInput},
				},
			},
			expectedStatus: http.StatusOK,
			expectedType:   models.ValidationTypeStructural,
		},
		{
			name:           "missing nodes",
			body:           map[string]any{"edges": []any{}},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := doRequest(t, app, http.MethodPost, "/graphs/validate", tc.body)

			assert.Equal(t, tc.expectedStatus, resp.StatusCode)

			if tc.expectedStatus != http.StatusOK {
				return
			}

			var verdict models.Verdict
			require.NoError(t, json.Unmarshal(body, &verdict))
			assert.Equal(t, tc.expectedType, verdict.ValidationType)
		})
	}
}

func TestHistoryRoutes(t *testing.T) {
	app, _, store := setupTestApp(t)

	archive := &history.Archive{
		ExecutionID: "exec-1",
		Run:         models.Run{ExecutionID: "exec-1", Status: models.RunStatusCompleted},
		ArchivedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.Save(context.Background(), archive))

	resp, body := doRequest(t, app, http.MethodGet, "/history", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Archives   []history.Archive `json:"archives"`
		TotalCount int               `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, 1, list.TotalCount)

	resp, body = doRequest(t, app, http.MethodGet, "/history/exec-1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got history.Archive
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "exec-1", got.ExecutionID)

	resp, _ = doRequest(t, app, http.MethodGet, "/history/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
