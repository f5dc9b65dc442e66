package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/donorflow/donorflow/pkg/persistence"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleRepositoryError maps persistence errors onto problem responses.
func handleRepositoryError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsAutomationNotFound(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("automation_not_found").
			WithDetail("automation not found")

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case persistence.IsExecutionNotFound(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("execution_not_found").
			WithDetail("execution not found")

		return c.Status(fiber.StatusNotFound).JSON(problem)

	default:
		return internalError(c, err)
	}
}
