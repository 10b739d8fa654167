package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dinehub/printrouter/internal/api/handlers"
	"github.com/dinehub/printrouter/internal/api/middleware"
	"github.com/dinehub/printrouter/internal/config"
	"github.com/dinehub/printrouter/internal/core"
	"github.com/dinehub/printrouter/internal/db"
	"github.com/dinehub/printrouter/internal/logging"
	"github.com/dinehub/printrouter/internal/webhook"
	"github.com/dinehub/printrouter/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "printrouter: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logging.New(cfg.Logging)

	store, err := db.Open(db.Config{Path: cfg.Database.Path})
	if err != nil {
		return err
	}
	defer store.Close()

	tracker := core.NewTracker(store, cfg.Queue.MaxRetries, log)
	dispatcher := core.NewDispatcher(store, tracker, cfg.Dispatch, log)

	hub := ws.NewHub(log)
	go hub.Run()
	defer hub.Stop()
	dispatcher.AddNotifier(hub)

	sender := webhook.NewSender(cfg.Webhooks, log)
	sender.Start()
	defer sender.Stop()
	dispatcher.AddNotifier(sender)

	if err := dispatcher.Start(); err != nil {
		return err
	}
	defer dispatcher.Stop()

	router := core.NewRouter(store, dispatcher, log)

	auth, err := middleware.NewAuthMiddleware(store)
	if err != nil {
		return fmt.Errorf("failed to initialize auth: %w", err)
	}

	engine := buildEngine(store, router, tracker, dispatcher, hub, auth, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "port", cfg.Server.Port, "simulate", cfg.Dispatch.Simulate)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func buildEngine(store *db.Store, router *core.Router, tracker *core.Tracker, dispatcher *core.Dispatcher, hub *ws.Hub, auth *middleware.AuthMiddleware, log *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	routing := handlers.NewRoutingHandler(router)
	jobs := handlers.NewJobHandler(store, tracker, dispatcher)
	printers := handlers.NewPrinterHandler(store)
	mappings := handlers.NewMappingHandler(store)
	wsHandler := handlers.NewWSHandler(hub, log)

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/setup", auth.SetupHandler)
			authGroup.POST("/login", auth.LoginHandler)
			authGroup.POST("/logout", auth.LogoutHandler)
			authGroup.GET("/status", auth.StatusHandler)
		}

		api.POST("/print/orders", routing.RouteOrder)

		api.GET("/jobs", jobs.ListJobs)
		api.GET("/jobs/stats", jobs.GetStats)
		api.GET("/jobs/:id", jobs.GetJob)
		api.POST("/jobs/:id/retry", jobs.RetryJob)

		api.GET("/printers", printers.ListPrinters)
		api.GET("/printers/:id", printers.GetPrinter)

		api.GET("/mappings", mappings.ListMappings)

		admin := api.Group("")
		admin.Use(auth.RequireAuth())
		{
			admin.POST("/printers", printers.CreatePrinter)
			admin.PUT("/printers/:id", printers.UpdatePrinter)
			admin.DELETE("/printers/:id", printers.DeletePrinter)

			admin.POST("/mappings", mappings.CreateMapping)
			admin.PUT("/mappings/:id", mappings.UpdateMapping)
			admin.DELETE("/mappings/:id", mappings.DeleteMapping)
		}
	}

	engine.GET("/ws", wsHandler.Handle)

	return engine
}
