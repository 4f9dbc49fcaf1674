// Package main provides the flowcanvas editor API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/appforge/flowcanvas/pkg/backend"
	"github.com/appforge/flowcanvas/pkg/eventbus"
	"github.com/appforge/flowcanvas/pkg/persistence"
	"github.com/appforge/flowcanvas/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	backend     *backend.Client
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	backendClient *backend.Client,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		backend:     backendClient,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(
		web.NewSessionStore(),
		a.persistence,
		a.backend,
		a.eventBus,
		a.validate,
		a.logger,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowcanvas API")
	})

	app.Get("/health", handlers.HealthCheck)
	app.Get("/templates", handlers.GetTemplates)

	d := app.Group("/drafts")
	d.Get("/", handlers.GetDrafts)
	d.Post("/", handlers.CreateDraft)
	d.Get("/:id", handlers.GetDraft)
	d.Delete("/:id", handlers.DeleteDraft)

	s := app.Group("/sessions")
	s.Post("/", handlers.OpenSession)
	s.Get("/:id", handlers.GetSession)
	s.Delete("/:id", handlers.CloseSession)
	s.Get("/:id/graph", handlers.GetGraph)

	s.Post("/:id/steps", handlers.InsertStep)
	s.Patch("/:id/steps/:stepId", handlers.UpdateStep)
	s.Delete("/:id/steps/:stepId", handlers.DeleteStep)
	s.Post("/:id/steps/:stepId/duplicate", handlers.DuplicateStep)
	s.Post("/:id/steps/:stepId/reroute", handlers.RerouteStep)

	s.Put("/:id/trigger", handlers.PutTrigger)
	s.Put("/:id/positions", handlers.MoveNodes)
	s.Post("/:id/selection", handlers.SelectNode)
	s.Post("/:id/selection/marquee", handlers.MarqueeSelect)
	s.Delete("/:id/selection", handlers.ClearSelection)

	s.Post("/:id/undo", handlers.Undo)
	s.Post("/:id/redo", handlers.Redo)

	s.Post("/:id/save", handlers.SaveSession)
	s.Post("/:id/submit", handlers.SubmitSession)
	s.Post("/:id/execute", handlers.ExecuteSession)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
