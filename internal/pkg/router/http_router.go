package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/johnnybasgallop/DMOTelegramBot/app/controllers"
)

type HttpRouter struct {
	webhook *controllers.WebhookController
}

func NewHttpRouter(webhook *controllers.WebhookController) *HttpRouter {
	return &HttpRouter{webhook: webhook}
}

func (h *HttpRouter) InstallRouter(app *fiber.App) {
	app.Post("/webhook", h.webhook.HandleProviderWebhook)
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
}
