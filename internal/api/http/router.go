package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fixmypidge/case-service/internal/api/http/handlers"
	"github.com/fixmypidge/case-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Cases          *handlers.CasesHandler
	Webhook        *handlers.WebhookHandler
	AuthMiddleware *auth.AuthMiddleware
	WebhookSecret  string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	cases := app.Group("/cases", cfg.AuthMiddleware.Handle)
	cases.Get("", cfg.Cases.ListCases)
	cases.Post("", cfg.Cases.CreateCase)
	cases.Get("/:id", cfg.Cases.GetCase)
	cases.Post("/:id/messages", cfg.Cases.SendMessage)
	cases.Post("/:id/photos", cfg.Cases.UploadPhoto)

	webhooks := app.Group("/webhooks", auth.WebhookSecret(cfg.WebhookSecret))
	webhooks.Post("/automation", cfg.Webhook.HandleEvent)
}
