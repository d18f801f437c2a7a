package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/greatplr/membersync/app/controllers"
	"github.com/greatplr/membersync/app/repository"
	"github.com/greatplr/membersync/internal/pkg/config"
	"github.com/greatplr/membersync/internal/pkg/entitlements"
	"github.com/greatplr/membersync/internal/pkg/jobqueue"
	"github.com/greatplr/membersync/internal/pkg/reconcile"
)

// Dependencies carries the constructed components the routes need.
type Dependencies struct {
	Repos        *repository.Repositories
	Engine       *reconcile.Engine
	Queue        *jobqueue.Queue
	Entitlements *entitlements.Service
	Settings     config.Settings
}

// WebhookRouter installs the ingestion endpoint on the configured prefix.
type WebhookRouter struct {
	deps Dependencies
}

func NewWebhookRouter(deps Dependencies) *WebhookRouter {
	return &WebhookRouter{deps: deps}
}

func (h *WebhookRouter) InstallRouter(app *fiber.App) {
	wc := controllers.NewWebhookController(h.deps.Repos, h.deps.Engine, h.deps.Queue, h.deps.Settings)
	app.Post(h.deps.Settings.WebhookRoutePrefix, wc.HandleWebhook)
}
