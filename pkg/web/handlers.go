package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/dukex/conveyor/pkg/eventbus"
	"github.com/dukex/conveyor/pkg/events"
	"github.com/dukex/conveyor/pkg/graph"
	"github.com/dukex/conveyor/pkg/persistence"
	"github.com/dukex/conveyor/pkg/trigger/schedule"
	"github.com/dukex/conveyor/pkg/workflow"
)

type APIHandlers struct {
	store     persistence.Persistence
	loader    *workflow.Loader
	publisher eventbus.EventPublisher
	validator *validator.Validate
}

func NewAPIHandlers(
	store persistence.Persistence,
	publisher eventbus.EventPublisher,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		store:     store,
		loader:    workflow.NewLoader(),
		publisher: publisher,
		validator: validate,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.store.Workflows(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows": workflows,
		"count":     len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	wf, err := h.store.WorkflowByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(wf)
}

// SaveWorkflow accepts a full workflow definition. The body goes through
// schema and struct validation, the dependency graph is built to reject
// cycles and unknown needs, and schedule expressions are parsed before
// anything is stored.
func (h *APIHandlers) SaveWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	wf, err := h.loader.Parse(c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}

	wf.ID = id

	if _, err := graph.Build(wf.Jobs); err != nil {
		return badRequest(c, err.Error())
	}

	if err := schedule.Validate(wf); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.store.SaveWorkflow(c.Context(), wf); err != nil {
		return handleStoreError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(wf)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.store.DeleteWorkflow(c.Context(), id); err != nil {
		return handleStoreError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// DispatchWorkflow publishes a RunRequested event for a stored workflow.
// The run id is allocated here so the caller can poll for the result.
func (h *APIHandlers) DispatchWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req DispatchRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}

		if err := h.validator.Struct(req); err != nil {
			return badRequest(c, err.Error())
		}
	}

	wf, err := h.store.WorkflowByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	runID := uuid.New().String()

	event := events.RunRequested{
		BaseEvent: events.BaseEvent{
			ID:         uuid.New().String(),
			Type:       events.RunRequestedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: wf.ID,
			RunID:      runID,
		},
		TriggerSource: "dispatch",
		Ref:           req.Ref,
		Inputs:        req.Inputs,
	}

	if err := h.publisher.Publish(c.Context(), wf.ID, event); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(DispatchResponse{
		RunID:      runID,
		WorkflowID: wf.ID,
	})
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	runID := c.Params("runId")
	if runID == "" {
		return badRequest(c, "Run ID is required")
	}

	result, err := h.store.RunResultByID(c.Context(), runID)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetWorkflowRuns(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	results, err := h.store.RunResultsByWorkflow(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(fiber.Map{
		"runs":  results,
		"count": len(results),
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Conveyor API is healthy"
	httpStatus := http.StatusOK

	if err := h.store.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		message = "Conveyor API is unhealthy: " + err.Error()
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}
