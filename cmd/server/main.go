package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"careerprep/internal/config"
	"careerprep/internal/handler"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}
	// Wiring
	container, err := config.NewContainer()
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	// Handlers
	authHandler := handler.NewAuthHandler(container.SubscriptionSource, container.Logger)
	entitlementHandler := handler.NewEntitlementHandler(container.Entitlements, container.Logger)
	challengeHandler := handler.NewChallengeHandler(container.Sessions, container.Logger)
	eventHandler := handler.NewEventHandler(container.Notifications, container.Logger)

	authMiddleware := handler.NewAuthMiddleware(
		container.AuthService,
		container.Logger,
	)

	// Router
	router := handler.NewRouter(
		container.Config.GetAllowedOrigins(),
		authHandler,
		entitlementHandler,
		challengeHandler,
		eventHandler,
		authMiddleware.Middleware,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// Request contexts derive from gctx so open event streams end on shutdown.
	server := &http.Server{
		Addr:              ":" + container.Config.GetServerPort(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		container.Logger.Info("Server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return container.Notifications.Run(gctx, container.EventSource)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		container.Logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			container.Logger.Warn("Forcing server close", "error", err)
			_ = server.Close()
		}
		return container.Close()
	})

	if err := g.Wait(); err != nil {
		container.Logger.Error("Server stopped with error", err)
		os.Exit(1)
	}
	container.Logger.Info("Server exited")
}
