package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mweidner/JadeFrame/app/controllers"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter registers all route groups against one shared handler set.
func InstallRouter(app *fiber.App) {
	api := controllers.NewAPIFromGlobals()
	setup(app, NewApiRouter(api), NewWebhookRouter(api))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
