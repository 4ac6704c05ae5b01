package web

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/pulseline/pulseline/pkg/graph"
	"github.com/pulseline/pulseline/pkg/history"
	"github.com/pulseline/pulseline/pkg/models"
	"github.com/pulseline/pulseline/pkg/progress"
)

type APIHandlers struct {
	engine    *progress.Engine
	store     history.Store
	validator *validator.Validate
}

func NewAPIHandlers(engine *progress.Engine, store history.Store, validate *validator.Validate) *APIHandlers {
	return &APIHandlers{
		engine:    engine,
		store:     store,
		validator: validate,
	}
}

// Register mounts every route on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)
	app.Get("/executions/current", h.GetCurrentExecution)
	app.Get("/executions/current/timeline", h.GetTimeline)
	app.Get("/history", h.ListHistory)
	app.Get("/history/:id", h.GetHistory)
	app.Post("/graphs/validate", h.ValidateGraph)
	app.Post("/ingest", h.Ingest)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetCurrentExecution(c fiber.Ctx) error {
	return c.JSON(newSnapshotResponse(h.engine.Snapshot()))
}

func (h *APIHandlers) GetTimeline(c fiber.Ctx) error {
	snap := h.engine.Snapshot()

	return c.JSON(fiber.Map{
		"execution_id": snap.Run.ExecutionID,
		"timeline":     snap.Timeline,
	})
}

func (h *APIHandlers) ListHistory(c fiber.Ctx) error {
	archives, err := h.store.List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"archives":    archives,
		"total_count": len(archives),
	})
}

func (h *APIHandlers) GetHistory(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	archive, err := h.store.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return notFound(c, "Run archive not found")
		}

		return internalError(c, err)
	}

	return c.JSON(archive)
}

func (h *APIHandlers) ValidateGraph(c fiber.Ctx) error {
	var req ValidateGraphRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	verdict := graph.Validate(&models.Graph{Nodes: req.Nodes, Edges: req.Edges})

	return c.JSON(verdict)
}

// Ingest accepts one raw envelope (single message or batch) and feeds it
// through the engine. Unrecognized messages are dropped by the engine,
// not rejected here, so executors can evolve their event set without
// breaking ingestion.
func (h *APIHandlers) Ingest(c fiber.Ctx) error {
	var msg map[string]any
	if err := c.Bind().JSON(&msg); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	h.engine.Dispatch(c.Context(), msg)

	return c.SendStatus(fiber.StatusAccepted)
}
