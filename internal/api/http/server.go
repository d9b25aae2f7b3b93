package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/install-tickets/internal/config"
	"github.com/spec-kit/install-tickets/internal/observability"
)

// NewServer builds the Fiber application with middlewares and routes attached.
func NewServer(cfg config.AppConfig, logger *zap.Logger, metrics *observability.Metrics, routes RouteConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               cfg.Name,
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(logger, metrics, cfg.ExposeErrorDetail),
	})
	RegisterMiddlewares(app, logger, metrics, cfg.RequestTimeout(), cfg.ExposeErrorDetail)
	routes.Metrics = metrics
	RegisterRoutes(app, routes)
	return app
}
