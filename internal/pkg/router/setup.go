package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PropFox/app/controllers"
	"github.com/ManuelReschke/PropFox/app/repository"
)

// Router installs a set of routes on the app
type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter registers the health check and the REST API. storage backs
// the rate limiter and queue feeds the health report; both may be nil.
func InstallRouter(app *fiber.App, api *controllers.API, tenants repository.TenantRepository, storage fiber.Storage, queue QueueMonitor) {
	setup(app, NewHealthRouter(queue), NewApiRouter(api, tenants, storage))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
