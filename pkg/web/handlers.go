// Package web provides the HTTP surface over the flow service: thin CRUD,
// run history, and the manual run entrypoint.
package web

import (
	"net/http"

	"github.com/gofiber/fiber/v3"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/services"
)

type APIHandlers struct {
	flowService *services.FlowService
}

func NewAPIHandlers(flowService *services.FlowService) *APIHandlers {
	return &APIHandlers{
		flowService: flowService,
	}
}

func (h *APIHandlers) GetFlows(c fiber.Ctx) error {
	flows, err := h.flowService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"flows": flows,
		"count": len(flows),
	})
}

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	// Structural validation on the raw document first: unknown step types
	// and malformed unions read better as schema violations than as JSON
	// decoding errors.
	err := models.ValidateFlowDocument(c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req services.CreateFlowRequest

	err = c.Bind().JSON(&req)
	if err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	created, err := h.flowService.Create(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	flow, err := h.flowService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) UpdateFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	var req services.UpdateFlowRequest

	err := c.Bind().JSON(&req)
	if err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	updated, err := h.flowService.Update(c.Context(), id, req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	err := h.flowService.Delete(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// RunFlow executes a flow immediately with trigger=manual and returns the
// persisted run record.
func (h *APIHandlers) RunFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	record, err := h.flowService.Execute(c.Context(), id, models.TriggerManual)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(record)
}

func (h *APIHandlers) GetRuns(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	runs, err := h.flowService.Runs(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"runs":  runs,
		"count": len(runs),
	})
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	id := c.Params("id")
	runID := c.Params("runId")

	if id == "" || runID == "" {
		return badRequest(c, "Flow ID and run ID are required")
	}

	record, err := h.flowService.Run(c.Context(), id, runID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(record)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	storeCheck, ok := h.flowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Routine API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "Routine API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"store": storeCheck,
		},
	})
}
