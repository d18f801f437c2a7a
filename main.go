package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/greatplr/membersync/app/repository"
	"github.com/greatplr/membersync/internal/pkg/cache"
	"github.com/greatplr/membersync/internal/pkg/config"
	"github.com/greatplr/membersync/internal/pkg/database"
	"github.com/greatplr/membersync/internal/pkg/entitlements"
	"github.com/greatplr/membersync/internal/pkg/env"
	"github.com/greatplr/membersync/internal/pkg/jobqueue"
	"github.com/greatplr/membersync/internal/pkg/notify"
	"github.com/greatplr/membersync/internal/pkg/reconcile"
	"github.com/greatplr/membersync/internal/pkg/router"
)

func main() {
	app, manager := NewApplication()

	// graceful shutdown: drain workers before closing the listener
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("Shutting down...")
		manager.Stop()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
	if err := app.Listen(addr); err != nil {
		log.Fatal(err)
	}
}

// NewApplication wires env, database, cache, queue and routes.
func NewApplication() (*fiber.App, *jobqueue.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	settings := config.Load()

	repos := repository.NewRepositories(database.GetDB())
	access := entitlements.NewService(repos, *settings)
	notifier := notify.NewRedisNotifier(cache.GetClient())
	engine := reconcile.NewEngine(database.GetDB(), notifier, access, *settings)

	processor := jobqueue.NewWebhookProcessor(engine, repos)
	queue := jobqueue.NewQueue(processor, settings.QueueWorkers, settings.WebhookMaxRetries, settings.WebhookRetryDelay)
	manager := jobqueue.NewManager(queue)
	if settings.WebhookUseQueue {
		manager.Start()
	}

	app := fiber.New(fiber.Config{
		AppName: "membersync",
	})

	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./docs/v1/openapi.json",
		Path:     "v1",
	}))

	// ROUTER
	router.InstallRouter(app, router.Dependencies{
		Repos:        repos,
		Engine:       engine,
		Queue:        queue,
		Entitlements: access,
		Settings:     *settings,
	})

	return app, manager
}
