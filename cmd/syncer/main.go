package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/allotter/internal/app"
	"github.com/shrimpsizemoose/allotter/internal/schedule"
)

func main() {
	var (
		configPath = flag.String("config", "config.toml", "Path to config file")
		once       = flag.Bool("once", false, "Run a single sync and exit")
		timeout    = flag.Duration("timeout", 5*time.Minute, "Timeout for one sync run")
	)
	flag.Parse()

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}
	defer service.Close()

	run := func(ctx context.Context) error {
		res, err := service.Sync(ctx)
		if err != nil {
			return err
		}
		logger.Info.Printf("Synced %d rows from %q (header row %d)", res.Count, res.SheetTitle, res.HeaderRow)
		return nil
	}

	if *once {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()
		if err := run(ctx); err != nil {
			logger.Error.Fatalf("Sync failed: %v", err)
		}
		return
	}

	if service.Config.Sync.Schedule == "" {
		logger.Error.Fatalf("No [sync] schedule configured, use -once for a single run")
	}

	scheduler, err := schedule.New(service.Config.Sync.Schedule, *timeout, run)
	if err != nil {
		logger.Error.Fatalf("Failed to schedule sync: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	if service.Config.Sync.RunOnStart {
		scheduler.RunNow()
	}
	logger.Info.Printf("Sync scheduled with %q, next run at %s", service.Config.Sync.Schedule, scheduler.NextRun().Format(time.RFC3339))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info.Println("Syncer stopped")
}
