package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/greatplr/membersync/app/controllers"
	"github.com/greatplr/membersync/internal/pkg/cache"
	"github.com/greatplr/membersync/internal/pkg/env"
)

// ApiRouter installs the read-only entitlement API and queue introspection.
type ApiRouter struct {
	deps Dependencies
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}

func (h *ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Storage:    newLimiterStorage(),
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "membersync api",
		})
	})

	v1 := api.Group("/v1")

	access := controllers.NewApiAccessController(h.deps.Entitlements)
	v1.Get("/users/:email/access", access.HandleGetAccess)
	v1.Get("/users/:email/access/product/:id", access.HandleCheckProductAccess)
	v1.Get("/users/:email/access/tier/:tier", access.HandleCheckTierAccess)
	v1.Get("/users/:email/access/feature/:feature", access.HandleCheckFeatureAccess)

	installations := controllers.NewInstallationController(h.deps.Repos.Installation)
	v1.Get("/installations", installations.HandleListInstallations)
	v1.Get("/installations/:slug", installations.HandleGetInstallation)

	queue := controllers.NewQueueController(h.deps.Queue)
	v1.Get("/queue/stats", queue.HandleQueueStats)
	v1.Get("/queue/failed", queue.HandleFailedJobs)
}

// newLimiterStorage backs the rate limiter with redis so limits hold across
// instances. Database 1 keeps limiter keys out of the cache keyspace.
func newLimiterStorage() fiber.Storage {
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")

	if client := cache.GetClient(); client != nil {
		if h, p, err := net.SplitHostPort(client.Options().Addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := client.Options().Password; p != "" {
			password = p
		}
	}

	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})
}
