package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/chat-escalation/internal/api/http/handlers"
	"github.com/spec-kit/chat-escalation/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Operators      *handlers.OperatorsHandler
	Tenants        *handlers.TenantsHandler
	Events         *handlers.EventsHandler
	Reports        *handlers.ReportsHandler
	AuthMiddleware *auth.AuthMiddleware
	GatewayToken   string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/operators/register", cfg.Operators.Register)
	authGroup.Post("/operators/login", cfg.Operators.Login)

	tenants := app.Group("/tenants", cfg.AuthMiddleware.Handle)
	tenants.Post("", cfg.Tenants.Create)
	tenants.Get("", cfg.Tenants.List)
	tenants.Get("/:id", cfg.Tenants.Get)
	tenants.Put("/:id", cfg.Tenants.Update)
	tenants.Post("/:id/reports/preview", cfg.Reports.Preview)
	tenants.Post("/:id/reports/send", cfg.Reports.Send)

	// Gateway webhooks authenticate with a shared token, not operator JWTs.
	events := app.Group("/gateway/tenants/:id/events", gatewayTokenMiddleware(cfg.GatewayToken))
	events.Post("/messages/inbound", cfg.Events.InboundMessage)
	events.Post("/messages/outbound", cfg.Events.OutboundMessage)
	events.Post("/connection", cfg.Events.ConnectionStatus)
}
