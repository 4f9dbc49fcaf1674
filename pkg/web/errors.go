package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/appforge/flowcanvas/pkg/backend"
	"github.com/appforge/flowcanvas/pkg/compiler"
	"github.com/appforge/flowcanvas/pkg/editor"
	"github.com/appforge/flowcanvas/pkg/persistence"
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

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func badGateway(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(502).
		WithInstance(c.Path()).
		WithType("upstream_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadGateway).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleEditorError maps editor, compile, persistence, and upstream API
// errors onto problem responses.
func handleEditorError(c fiber.Ctx, err error) error {
	var apiErr *backend.APIError

	switch {
	case errors.Is(err, editor.ErrStepNotFound):
		return notFound(c, "step not found")

	case errors.Is(err, editor.ErrRerouteRejected):
		return badRequest(c, "Unable to apply wire reroute target")

	case errors.Is(err, editor.ErrGestureActive),
		errors.Is(err, editor.ErrNoActiveGesture):
		return conflict(c, err.Error())

	case errors.Is(err, compiler.ErrNoActionStep),
		errors.Is(err, compiler.ErrStepInvalid),
		errors.Is(err, compiler.ErrTriggerInvalid),
		errors.Is(err, compiler.ErrPayloadInvalid):
		return badRequest(c, err.Error())

	case persistence.IsDraftNotFound(err):
		return notFound(c, "workflow draft not found")

	case errors.As(err, &apiErr):
		return badGateway(c, apiErr.Message)

	default:
		return internalError(c, err)
	}
}
