// Package main provides the DonorFlow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/donorflow/donorflow/pkg/automation"
	"github.com/donorflow/donorflow/pkg/persistence"
	"github.com/donorflow/donorflow/pkg/registry"
	"github.com/donorflow/donorflow/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	engine      *automation.Engine
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	engine *automation.Engine,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		registry:    registry,
		engine:      engine,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.persistence, a.engine, a.registry, a.validate, a.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("DonorFlow API")
	})

	handlers.RegisterRoutes(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
