package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"fotochallenge-api/internal/config"
	"fotochallenge-api/internal/container"
	"fotochallenge-api/internal/handler"
	"fotochallenge-api/internal/middleware"
	"fotochallenge-api/pkg/logger"
)

// Resources holds all resources that need cleanup
type Resources struct {
	container *container.Container
	server    *http.Server
	log       *logger.Logger
	mu        sync.Mutex
	closed    bool
}

// Cleanup gracefully closes all resources
func (r *Resources) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error

	r.log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server first to stop accepting new requests
	if r.server != nil {
		if err := r.server.Shutdown(ctx); err != nil {
			r.log.WithError(err).Error("Failed to shutdown HTTP server")
			errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
		} else {
			r.log.Info("HTTP server shutdown complete")
		}
	}

	// Stop the phase watcher
	if err := r.container.PhaseWatcher.Stop(ctx); err != nil {
		r.log.WithError(err).Error("Failed to stop phase watcher")
		errs = append(errs, fmt.Errorf("phase watcher shutdown: %w", err))
	}

	// Let in-flight remote mirrors settle before closing the backends
	r.container.Gateway.Flush()

	if r.container.RedisClient != nil {
		if err := r.container.RedisClient.Close(); err != nil {
			r.log.WithError(err).Error("Failed to close Redis connection")
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		} else {
			r.log.Info("Redis connection closed")
		}
	}

	if err := r.container.LocalCache.Close(); err != nil {
		r.log.WithError(err).Error("Failed to close local cache")
		errs = append(errs, fmt.Errorf("local cache close: %w", err))
	}

	if len(errs) > 0 {
		r.log.WithField("error_count", len(errs)).Error("Cleanup completed with errors")
		return fmt.Errorf("cleanup completed with %d errors: %v", len(errs), errs)
	}

	r.log.Info("Graceful shutdown completed successfully")
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithFields(map[string]interface{}{
		"port":        cfg.Port,
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
	}).Info("Starting fotochallenge-api server")

	c, err := container.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create container")
	}

	// Load persisted collections (remote first, local fallback) and seed
	// the default challenge and accounts on first start.
	ctx := context.Background()
	if err := c.Contest.Bootstrap(ctx); err != nil {
		log.WithError(err).Fatal("Failed to bootstrap domain store")
	}

	if err := c.PhaseWatcher.Start(ctx); err != nil {
		log.WithError(err).Fatal("Failed to start phase watcher")
	}

	router := setupRouter(c)

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 16 << 20, // photo uploads arrive as JSON data URIs
	}

	resources := &Resources{
		container: c,
		server:    server,
		log:       log,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := resources.Cleanup(cleanupCtx); err != nil {
			log.WithError(err).Error("Cleanup completed with errors")
		}
	}()

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Server starting on port " + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Server error occurred")
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-serverErrChan:
		log.WithError(err).Error("Server failed, initiating shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := resources.Cleanup(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown completed with errors")
		os.Exit(1)
	}

	log.Info("Application shutdown complete")
}

// setupRouter configures and returns the HTTP router
func setupRouter(c *container.Container) *chi.Mux {
	cfg := c.Config
	log := c.Logger

	r := chi.NewRouter()

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.AllowedOrigins

	r.Use(middleware.CORS(corsConfig, log))
	r.Use(middleware.RequestID(log))
	r.Use(middleware.Identity())
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Compress(5))
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	healthHandler := handler.NewHealthHandler(c)
	challengeHandler := handler.NewChallengeHandler(c.Contest, log)
	photoHandler := handler.NewPhotoHandler(c.Contest, log)
	userHandler := handler.NewUserHandler(c.Contest, log)
	storageHandler := handler.NewStorageHandler(c.Contest, log)
	blobHandler := handler.NewBlobHandler(c.BlobStore, log)

	r.Get("/health", healthHandler.Check)

	r.Route("/api", func(r chi.Router) {
		r.Route("/challenges", func(r chi.Router) {
			r.Get("/", challengeHandler.List)
			r.Post("/", challengeHandler.Create)
			r.Get("/{challengeID}", challengeHandler.Get)
			r.Get("/{challengeID}/photos", challengeHandler.Photos)
			r.Get("/{challengeID}/leaderboard", challengeHandler.Leaderboard)
			r.Post("/{challengeID}/photos", photoHandler.Upload)
		})

		r.Route("/photos", func(r chi.Router) {
			r.Get("/{photoID}", photoHandler.Get)
			r.Post("/{photoID}/rate", photoHandler.Rate)
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", userHandler.Login)
			r.Post("/register", userHandler.Register)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", userHandler.List)
			r.Post("/{userID}/approve", userHandler.Approve)
			r.Put("/{userID}/role", userHandler.ChangeRole)
		})

		r.Post("/storage/clear", storageHandler.Clear)
		r.Get("/blob", blobHandler.Get)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"error":{"type":"not_found","message":"Endpoint not found"}}`))
	})

	log.Info("Router configured successfully")
	return r
}
