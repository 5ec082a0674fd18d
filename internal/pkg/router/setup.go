package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/johnnybasgallop/DMOTelegramBot/app/controllers"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

func InstallRouter(app *fiber.App, webhook *controllers.WebhookController) {
	setup(app, NewHttpRouter(webhook))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
