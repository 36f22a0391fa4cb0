package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"subscription-mailer-be/internal/bootstrap"
	"subscription-mailer-be/internal/config"
	"subscription-mailer-be/internal/server"
	"subscription-mailer-be/internal/tracer"
	"subscription-mailer-be/pkg/database"

	"gorm.io/gorm"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Tracer
	shutdownTracer := tracer.InitTracer(cfg.Tracing)
	defer shutdownTracer(context.Background())

	// 3. Initialize Database (only for the postgres store)
	var gormDB *gorm.DB
	if cfg.Tracker.Store == "gorm" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection, !cfg.IsProduction())
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
		gormDB = db
	}

	// 4. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Start Background Services
	// The consumer subscribes before any poller publishes.
	if err := container.ObservationBus.Consume(ctx); err != nil {
		log.Fatalf("Failed to start observation consumer: %v", err)
	}

	if container.NotificationService != nil {
		if err := container.NotificationService.Start(ctx); err != nil {
			log.Printf("Background Notification Error: %v", err)
		}
	}

	if container.SnapshotPoller != nil {
		go func() {
			log.Printf("Background: Polling Stripe every %s...", cfg.Stripe.PollInterval)
			container.SnapshotPoller.Run(ctx, cfg.Stripe.PollInterval)
		}()
	}

	if container.CSVWatcher != nil {
		go func() {
			log.Printf("Background: Watching %s every %s...", cfg.Stripe.SnapshotPath, cfg.Watcher.Interval)
			container.CSVWatcher.Start(ctx, cfg.Watcher.Interval)
		}()
	}

	// 6. Initialize Server
	srv := server.New(cfg, container)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// 7. Run Server
	if err := srv.Run(); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}
