package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"libristack/internal/adapters/http/middleware"
	"libristack/internal/adapters/http/routes"
	"libristack/internal/app"
	"libristack/internal/config"
	"libristack/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	_ "libristack/docs" // Swagger docs
)

// @title LibriStack API
// @version 1.0
// @description Library catalog and lending API
// @termsOfService http://swagger.io/terms/

// @contact.name API Support

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.AppMode, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	a, err := app.New(cfg, zl, true)
	if err != nil {
		zl.Fatal("failed to initialise application", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.Tasks != nil {
		a.Tasks.Start(ctx)
	}

	if cfg.Scanner.Enabled {
		if err := a.Scanner.Start(ctx); err != nil {
			zl.Fatal("failed to start overdue scanner", zap.Error(err))
		}
	}

	// Create Fiber app
	server := fiber.New(fiber.Config{
		AppName:      "LibriStack API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	middleware.Setup(server, cfg, zl)

	routes.Setup(server, &routes.Services{
		Auth:        a.Auth,
		Users:       a.Users,
		Catalog:     a.Catalog,
		Lending:     a.Lending,
		Contact:     a.Contact,
		BulkMail:    a.BulkMail,
		Dashboard:   a.Dashboard,
		HealthCheck: config.HealthCheck,
	}, cfg)

	go gracefulShutdown(server, zl)

	zl.Info("server starting", zap.String("port", cfg.Port), zap.String("mode", cfg.AppMode))
	if err := server.Listen(":" + cfg.Port); err != nil {
		zl.Error("server stopped with error", zap.Error(err))
	}

	// Listen has returned; stop background work before releasing the database
	a.Scanner.Stop()
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	a.Close(stopCtx)
	zl.Info("server stopped gracefully")
}

// gracefulShutdown stops accepting requests on SIGINT/SIGTERM
func gracefulShutdown(server *fiber.App, zl *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down server")
	if err := server.ShutdownWithTimeout(shutdownTimeout); err != nil {
		zl.Error("error during shutdown", zap.Error(err))
	}
}
