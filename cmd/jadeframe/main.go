package main

import (
	"fmt"
	"log"
	"strconv"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mweidner/JadeFrame/app/repository"
	"github.com/mweidner/JadeFrame/internal/pkg/admission"
	"github.com/mweidner/JadeFrame/internal/pkg/cache"
	"github.com/mweidner/JadeFrame/internal/pkg/database"
	"github.com/mweidner/JadeFrame/internal/pkg/dispatch"
	"github.com/mweidner/JadeFrame/internal/pkg/env"
	"github.com/mweidner/JadeFrame/internal/pkg/metrics"
	"github.com/mweidner/JadeFrame/internal/pkg/provider"
	"github.com/mweidner/JadeFrame/internal/pkg/reconcile"
	"github.com/mweidner/JadeFrame/internal/pkg/router"
	"github.com/mweidner/JadeFrame/internal/pkg/scheduler"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	metrics.Registry()

	app := fiber.New(fiber.Config{
		BodyLimit: 1 << 20, // 1 MiB, requests are JSON only
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// prometheus scrape endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// fiber runtime monitor
	app.Get("/monitor", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("MONITOR_USER", "admin"): env.GetEnv("MONITOR_PASSWORD", "test"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app)

	startScheduler()

	return app
}

// startScheduler launches the admission and reconciliation sweeps that drain
// the queue and track in-flight provider work.
func startScheduler() {
	jobs := repository.GetGlobalFactory().GetJobRepository()
	client := provider.NewClientFromEnv()

	maxActive, err := strconv.Atoi(env.GetEnv("MAX_ACTIVE_JOBS", "3"))
	if err != nil {
		maxActive = 3
	}

	s := scheduler.New(
		jobs,
		admission.New(jobs, maxActive),
		dispatch.New(jobs, client),
		reconcile.New(jobs, client),
	)
	if err := s.Start(); err != nil {
		log.Fatalf("starting scheduler: %v", err)
	}
}
