package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruimcosta/investrack-backend/internal/adapter/httpapi"
	"github.com/ruimcosta/investrack-backend/internal/adapter/pricing"
	"github.com/ruimcosta/investrack-backend/internal/adapter/repository/postgres"
	"github.com/ruimcosta/investrack-backend/internal/config"
	"github.com/ruimcosta/investrack-backend/internal/logger"
	"github.com/ruimcosta/investrack-backend/internal/usecase/accountview"
	"github.com/ruimcosta/investrack-backend/internal/usecase/cascade"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	// 1. Setup Database
	db, err := postgres.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.L.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.L.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Repositories (Postgres)
	movementRepo := postgres.NewMovementRepository(db)
	snapshotRepo := postgres.NewSnapshotRepository(db)

	// 3. Initialize Services (Use Cases)
	priceClient := pricing.NewClient(cfg.PriceAPIBaseURL, cfg.PriceCacheTTL, cfg.PriceRequestsPerSecond)
	cascadeService := cascade.NewService(movementRepo, snapshotRepo, priceClient)
	accountViewService := accountview.NewService(snapshotRepo)

	// 4. Start HTTP Server
	api := httpapi.NewServer(movementRepo, cascadeService, accountViewService)
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.Router(cfg.APIToken),
	}

	go func() {
		logger.L.Info("http server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	waitForShutdown(server)
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the server
func waitForShutdown(server *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logger.L.Info("shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.L.Error("shutdown error", "error", err)
	}
	logger.L.Info("http server stopped")
}
