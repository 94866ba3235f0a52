// Command main is the entry point for the CreditFeed API server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"creditfeed/internal/bootstrap"
	"creditfeed/internal/config"
	"creditfeed/internal/featureflags"
	"creditfeed/internal/middleware"
	"creditfeed/internal/models"
	"creditfeed/internal/server"

	"github.com/gofiber/fiber/v2"
)

// @title CreditFeed API
// @version 1.0
// @description Gamified content feed: earn credits for logging in, completing a profile and engaging with Twitter and Reddit content.

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8375
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	rt, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	srv, err := server.NewServerWithDeps(cfg, rt.DB, rt.Redis, bootstrap.Suppliers(cfg, rt.Redis, rt.Flags))
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:   "CreditFeed API",
		BodyLimit: 1 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "Unhandled request error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	srv.SetupMiddleware(app)
	srv.SetupRoutes(app)

	schedCtx, stopScheduler := context.WithCancel(context.Background())
	if interval := cfg.FeedRefreshInterval(); interval > 0 && rt.Flags.On(featureflags.ScheduledRefresh) {
		go srv.FeedService().RunScheduler(schedCtx, interval)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		middleware.Logger.Info("Shutting down server")
		stopScheduler()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("Server shutdown error", "error", err)
		}
		rt.Close(ctx)
	}()

	middleware.Logger.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "flags", rt.Flags.String())
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
	<-done
}
