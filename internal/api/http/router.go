package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/install-tickets/internal/api/http/handlers"
	"github.com/spec-kit/install-tickets/internal/auth"
	"github.com/spec-kit/install-tickets/internal/domain"
	"github.com/spec-kit/install-tickets/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Clients        *handlers.ClientsHandler
	Tickets        *handlers.TicketsHandler
	Reports        *handlers.ReportsHandler
	AuthMiddleware *auth.AuthMiddleware
	LoginLimiter   fiber.Handler
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	limiter := cfg.LoginLimiter
	if limiter == nil {
		limiter = func(c *fiber.Ctx) error { return c.Next() }
	}
	app.Post("/login", limiter, cfg.Users.Login)

	authed := cfg.AuthMiddleware.Handle
	admin := auth.RequireRoles(domain.RoleAdmin)
	adminOrSeller := auth.RequireRoles(domain.RoleAdmin, domain.RoleSeller)

	users := app.Group("/users", authed)
	users.Get("/", admin, cfg.Users.List)
	users.Post("/", admin, cfg.Users.Create)
	users.Get("/technicians", adminOrSeller, cfg.Users.Technicians)
	users.Put("/:id/password", cfg.Users.ChangePassword)
	users.Put("/:id/push-token", cfg.Users.UpdatePushToken)

	clients := app.Group("/clients", authed)
	clients.Get("/search", adminOrSeller, cfg.Clients.Search)

	tickets := app.Group("/tickets", authed)
	tickets.Post("/", auth.RequireRoles(domain.RoleSeller), cfg.Tickets.Create)
	tickets.Get("/", admin, cfg.Tickets.ListAll)
	tickets.Get("/requested/:id", cfg.Tickets.ListRequested)
	tickets.Get("/assigned/:id", cfg.Tickets.ListAssigned)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Get("/:id/history", cfg.Tickets.History)
	tickets.Put("/:id/approve", admin, cfg.Tickets.Approve)
	tickets.Put("/:id/reject", admin, cfg.Tickets.Reject)
	tickets.Put("/:id/tech-status", auth.RequireRoles(domain.RoleTech), cfg.Tickets.SetTechStatus)

	reports := app.Group("/reports", authed, admin)
	reports.Get("/tech-summary", cfg.Reports.TechSummary)

	app.Use(NotFoundHandler)
}
