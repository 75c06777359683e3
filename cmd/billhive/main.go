package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	apiv1 "github.com/tobiaslindner/billhive/internal/api/v1"
	"github.com/tobiaslindner/billhive/internal/pkg/cache"
	"github.com/tobiaslindner/billhive/internal/pkg/catalog"
	"github.com/tobiaslindner/billhive/internal/pkg/credits"
	"github.com/tobiaslindner/billhive/internal/pkg/database"
	"github.com/tobiaslindner/billhive/internal/pkg/env"
	"github.com/tobiaslindner/billhive/internal/pkg/invite"
	"github.com/tobiaslindner/billhive/internal/pkg/proration"
	"github.com/tobiaslindner/billhive/internal/pkg/router"
	"github.com/tobiaslindner/billhive/internal/pkg/scheduler"
	"github.com/tobiaslindner/billhive/internal/pkg/subscription"
	"github.com/tobiaslindner/billhive/internal/pkg/team"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()

	db, err := database.SetupDatabase()
	if err != nil {
		log.Fatalf("database setup failed: %v", err)
	}
	cache.SetupCache()

	// service wiring, bottom-up
	catalogSvc := catalog.NewServiceFromDB(db)
	calc := proration.NewCalculator(catalogSvc)

	creditRepo := credits.NewRepository(db)
	creditSvc := credits.NewService(creditRepo)

	ledger := subscription.NewLedger(subscription.NewRepository(db), calc, catalogSvc, creditSvc)
	teamSvc := team.NewService(team.NewRepository(db), ledger)
	inviteSvc := invite.NewService(invite.NewRepository(db), teamSvc)
	transfers := credits.NewTransferEngine(creditRepo, teamSvc, ledger)

	sched := scheduler.New(inviteSvc.ExpireStale)
	if err := sched.Start(); err != nil {
		log.Fatalf("scheduler start failed: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName: "BillHive",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	server := apiv1.NewAPIServer(catalogSvc, calc, creditSvc, transfers, ledger, teamSvc, inviteSvc)
	router.InstallRouter(app, server)

	return app
}
