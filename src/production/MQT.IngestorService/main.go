package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	container "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Container"
	"gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.IngestorService/controllers"
	"gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.IngestorService/middleware"
)

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	cfg := ctr.GetConfig()
	logger.Info("Starting sensor ingestor service")

	if err := ctr.InitializeDatabase(context.Background()); err != nil {
		logger.FatalWithError(err, "Failed to initialize database")
	}
	if err := ctr.Build(); err != nil {
		logger.FatalWithError(err, "Failed to build service graph")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ing := ctr.GetIngestor()
	if err := ing.Start(ctx); err != nil {
		logger.FatalWithError(err, "Failed to start MQTT ingestor")
	}

	wd := ctr.GetWatchdog()
	wd.Start(ctx)

	if gin.Mode() == gin.DebugMode && cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	healthController := controllers.NewHealthController(ctr.GetHealthChecker())
	healthController.AddDetail("relay_circuit_breaker", ctr.RelayCircuitBreakerStatus)
	healthController.AddDetail("queue", func() interface{} { return ing.QueueStats() })
	healthController.RegisterRoutes(router)

	simulateController := controllers.NewSimulateController(ing, logger)
	simulateController.RegisterRoutes(router, middleware.ServiceAuthMiddleware(cfg.InternalAPISecret))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Logger.Info().Str("port", cfg.Server.Port).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalWithError(err, "HTTP server failed")
		}
	}()

	logger.Info("Sensor ingestor running... press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "HTTP server shutdown failed")
	}

	wd.Stop()
	ing.Stop()
	cancel()
}
