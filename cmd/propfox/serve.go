package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	"github.com/ManuelReschke/PropFox/app/controllers"
	"github.com/ManuelReschke/PropFox/app/repository"
	"github.com/ManuelReschke/PropFox/internal/pkg/archive"
	"github.com/ManuelReschke/PropFox/internal/pkg/audit"
	"github.com/ManuelReschke/PropFox/internal/pkg/billing"
	"github.com/ManuelReschke/PropFox/internal/pkg/cache"
	"github.com/ManuelReschke/PropFox/internal/pkg/database"
	"github.com/ManuelReschke/PropFox/internal/pkg/env"
	"github.com/ManuelReschke/PropFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/PropFox/internal/pkg/notify"
	"github.com/ManuelReschke/PropFox/internal/pkg/router"
	"github.com/ManuelReschke/PropFox/internal/pkg/scheduling"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API together with the background job workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, manager, err := NewApplication(cmd.Context())
			if err != nil {
				return err
			}

			manager.Start()
			defer manager.Stop()

			go func() {
				quit := make(chan os.Signal, 1)
				signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
				<-quit
				log.Info("[Server] Shutting down")
				if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
					log.Errorf("[Server] Shutdown failed: %v", err)
				}
			}()

			cfg := env.GetConfig()
			return app.Listen(fmt.Sprintf("%s:%s", cfg.AppHost, cfg.AppPort))
		},
	}
}

// NewApplication wires storage, engines, queue processors and routes.
func NewApplication(ctx context.Context) (*fiber.App, *jobqueue.Manager, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	repository.InitializeFactory(db)
	factory := repository.GetGlobalFactory()
	repos := factory.GetRepositories()

	manager := jobqueue.GetManager()
	queue := manager.GetQueue()

	billingSvc, err := billing.NewServiceFromDB(db, queue)
	if err != nil {
		return nil, nil, err
	}
	schedulingSvc := scheduling.NewServiceFromDB(db, queue, billingSvc)

	if err := registerProcessors(ctx, queue, factory, billingSvc); err != nil {
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		AppName:   "PropFox",
		BodyLimit: 4 * 1024 * 1024,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// ROUTER
	api := controllers.NewAPI(billingSvc, schedulingSvc, audit.NewFeed(repos))
	router.InstallRouter(app, api, repos.Tenant, router.NewLimiterStorage(), queue)

	return app, manager, nil
}

func registerProcessors(ctx context.Context, queue *jobqueue.Queue, factory *repository.Factory, billingSvc *billing.Service) error {
	queue.RegisterProcessor(jobqueue.JobTypeHistoryReplay, audit.ReplayProcessor(factory.GetHistoryRepository()))
	queue.RegisterProcessor(jobqueue.JobTypeCustomerNotification, notify.Processor(factory.GetNotificationRepository()))
	queue.RegisterProcessor(jobqueue.JobTypeBillingSweep, billing.SweepProcessor(billingSvc))

	cfg, err := archive.LoadConfig()
	if err != nil {
		return err
	}
	if !cfg.Enabled {
		log.Info("[Archive] Invoice archive disabled")
		queue.RegisterProcessor(jobqueue.JobTypeInvoiceArchive, func(ctx context.Context, job *jobqueue.Job) error {
			return nil
		})
		return nil
	}

	client, err := archive.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("invoice archive: %w", err)
	}
	queue.RegisterProcessor(jobqueue.JobTypeInvoiceArchive, archive.Processor(factory.GetInvoiceRepository(), client))
	return nil
}
