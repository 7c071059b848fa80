package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/geo-workbench/client/internal/api"
	"github.com/geo-workbench/client/internal/controller"
	"github.com/geo-workbench/client/internal/eventbus"
	"github.com/geo-workbench/client/internal/mapview"
	"github.com/geo-workbench/client/internal/metrics"
	"github.com/geo-workbench/client/internal/panels"
	"github.com/geo-workbench/client/internal/push"
	"github.com/geo-workbench/client/internal/settings"
	"github.com/geo-workbench/client/internal/status"
	"github.com/geo-workbench/client/internal/store"
	"github.com/geo-workbench/client/pkg/config"
	appLogger "github.com/geo-workbench/client/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Geo Workbench client")

	metrics.Init()

	persisted, err := settings.Open(cfg.Settings.Path)
	if err != nil {
		appLogger.Fatal("Failed to open settings store", zap.Error(err))
	}
	defer persisted.Close()

	bus := eventbus.New()
	apiClient := api.NewClient(cfg.API.BaseURL, time.Duration(cfg.API.TimeoutSec)*time.Second)
	channel := push.NewChannel(cfg.Socket.URL)
	st := store.New(bus, apiClient, persisted)

	viewport := mapview.NewHeadless(cfg.Map.Style)
	mapctl := mapview.NewController(viewport, st, apiClient, bus, mapview.Options{
		DefaultCollection: cfg.Extraction.Collection,
	})

	pm := panels.NewManager(st, bus, cfg.Panels.Buttons)
	mapctl.SetContextProvider(pm)

	app := controller.New(bus, st, apiClient, channel, pm, mapctl, controller.Options{})

	var statusServer *status.Server
	if cfg.Status.Enabled {
		statusServer = status.New(st, cfg.Status.Host, cfg.Status.Port)
		statusServer.Start()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down gracefully...")
	cancel()
	channel.Close()
	app.Wait()
	if statusServer != nil {
		statusServer.Shutdown()
	}
	appLogger.Info("Stopped")
}
