package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/donorflow/donorflow/pkg/automation"
	"github.com/donorflow/donorflow/pkg/models"
	"github.com/donorflow/donorflow/pkg/persistence"
	"github.com/donorflow/donorflow/pkg/registry"
)

type APIHandlers struct {
	persistence persistence.Persistence
	engine      *automation.Engine
	registry    *registry.Registry
	validator   *validator.Validate
	logger      *slog.Logger
}

func NewAPIHandlers(
	p persistence.Persistence,
	engine *automation.Engine,
	registry *registry.Registry,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		persistence: p,
		engine:      engine,
		registry:    registry,
		validator:   validator,
		logger:      logger.With("module", "api"),
	}
}

// RegisterRoutes mounts all API routes on the app.
func (h *APIHandlers) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	app.Get("/automations", h.ListAutomations)
	app.Post("/automations", h.CreateAutomation)
	app.Get("/automations/:id", h.GetAutomation)
	app.Patch("/automations/:id", h.UpdateAutomation)
	app.Delete("/automations/:id", h.DeactivateAutomation)

	app.Get("/automations/:id/executions", h.ListExecutions)
	app.Post("/automations/:id/fire", h.FireAutomation)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	err := h.persistence.HealthCheck(c.Context())
	if err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) ListAutomations(c fiber.Ctx) error {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		return badRequest(c, "tenant_id query parameter is required")
	}

	automations, err := h.persistence.AutomationRepository().ListByTenant(c.Context(), tenantID)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"automations": automations,
		"total_count": len(automations),
	})
}

func (h *APIHandlers) GetAutomation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Automation ID is required")
	}

	found, err := h.persistence.AutomationRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleRepositoryError(c, err)
	}

	return c.JSON(found)
}

func (h *APIHandlers) CreateAutomation(c fiber.Ctx) error {
	var req CreateAutomationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := time.Now().UTC()
	a := &models.Automation{
		ID:            uuid.New().String(),
		TenantID:      req.TenantID,
		Name:          req.Name,
		TriggerKind:   models.TriggerKind(req.TriggerKind),
		TriggerConfig: req.TriggerConfig,
		Active:        active,
		Steps:         make([]models.Step, 0, len(req.Steps)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for i, step := range req.Steps {
		a.Steps = append(a.Steps, step.toModel(i))
	}

	if err := h.saveAutomation(c, a); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(a)
}

func (h *APIHandlers) UpdateAutomation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Automation ID is required")
	}

	var req UpdateAutomationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.persistence.AutomationRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleRepositoryError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.TriggerKind != nil {
		existing.TriggerKind = models.TriggerKind(*req.TriggerKind)
	}

	if req.TriggerConfig != nil {
		existing.TriggerConfig = req.TriggerConfig
	}

	if req.Active != nil {
		existing.Active = *req.Active
	}

	if req.Steps != nil {
		existing.Steps = make([]models.Step, 0, len(req.Steps))
		for i, step := range req.Steps {
			existing.Steps = append(existing.Steps, step.toModel(i))
		}
	}

	existing.UpdatedAt = time.Now().UTC()

	if err := h.saveAutomation(c, existing); err != nil {
		return err
	}

	return c.JSON(existing)
}

func (h *APIHandlers) DeactivateAutomation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Automation ID is required")
	}

	err := h.persistence.AutomationRepository().Deactivate(c.Context(), id)
	if err != nil {
		return handleRepositoryError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ListExecutions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Automation ID is required")
	}

	if _, err := h.persistence.AutomationRepository().GetByID(c.Context(), id); err != nil {
		return handleRepositoryError(c, err)
	}

	executions, err := h.persistence.ExecutionRepository().ListByAutomation(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions":  executions,
		"total_count": len(executions),
	})
}

// FireAutomation starts one run of the automation directly, bypassing trigger
// matching. The run is launched asynchronously; the response carries only the
// execution id.
func (h *APIHandlers) FireAutomation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Automation ID is required")
	}

	var req FireRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	executionID, err := h.engine.FireAutomation(c.Context(), id, req.Context)
	if err != nil {
		if persistence.IsAutomationNotFound(err) {
			return notFound(c, "Automation not found")
		}

		return badRequest(c, err.Error())
	}

	return c.Status(fiber.StatusAccepted).JSON(FireResponse{ExecutionID: executionID})
}

// saveAutomation runs domain validation, per-step schema validation, and the
// actual save. It writes the error response itself and returns it.
func (h *APIHandlers) saveAutomation(c fiber.Ctx, a *models.Automation) error {
	if err := a.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	for _, step := range a.Steps {
		if err := h.registry.ValidateStepConfig(step.ActionKind, step.Config); err != nil {
			return badRequest(c, err.Error())
		}
	}

	if err := h.persistence.AutomationRepository().Save(c.Context(), a); err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to save automation", "automation_id", a.ID, "error", err)

		return internalError(c, err)
	}

	return nil
}
