package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"materiel-inventory-api/internal/config"
	"materiel-inventory-api/internal/database"
	"materiel-inventory-api/internal/handler"
	"materiel-inventory-api/internal/notification"
	"materiel-inventory-api/internal/router"
	"materiel-inventory-api/internal/service"
	"materiel-inventory-api/internal/storage"
)

func main() {
	envFile := flag.String("env-file", ".env", "Environment file to load")
	port := flag.Int("port", 0, "Listen port (overrides PORT)")
	backend := flag.String("storage", "", "Storage backend: file or postgres (overrides STORAGE_BACKEND)")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *backend != "" {
		cfg.Storage.Backend = *backend
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := zerolog.New(os.Stdout).Level(cfg.Level()).With().Timestamp().Str("service", "materiel-inventory-api").Logger()

	// Initialize storage
	st, db, err := openStorage(cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("Failed to initialize storage")
	}
	if db != nil {
		defer db.Close()
	}

	// Notifications are optional
	var notifier notification.Notifier
	if cfg.NotificationService.Enabled() {
		notifier = notification.NewNotifier(notification.NotificationConfig{
			URL:            cfg.NotificationService.URL,
			Timeout:        cfg.NotificationService.Timeout,
			RetryAttempts:  cfg.NotificationService.RetryAttempts,
			RetryDelay:     cfg.NotificationService.RetryDelay,
			MaxPayloadSize: cfg.NotificationService.MaxPayloadSize,
		}, logger)
	}

	svc := service.NewInventoryService(st, notifier, logger, service.Config{
		MaxEntries:     cfg.History.MaxEntries,
		Actor:          cfg.History.Actor,
		PersistTimeout: cfg.Storage.PersistTimeout,
	})

	status := svc.Load(context.Background())
	event := logger.Info()
	if !status.OK {
		event = logger.Warn().Str("error", status.Error)
	}
	event.Int("records", status.Records).
		Int("entries", status.Entries).
		Bool("first_run", status.FirstRun).
		Strs("skipped_ids", status.SkippedIDs).
		Msg("Inventory loaded")

	h := handler.NewMaterielHandler(svc, notifier, logger)
	r := router.NewRouter(h, cfg, logger)

	// Configure server with security settings
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Port),
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	// Channel to listen for interrupt signal to gracefully shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info().
			Int("port", cfg.Port).
			Str("storage", cfg.Storage.Backend).
			Int("rate_limit_rps", cfg.Security.RateLimitRPS).
			Int("rate_limit_burst", cfg.Security.RateLimitBurst).
			Bool("cors", cfg.Security.EnableCORS).
			Dur("request_timeout", cfg.Security.RequestTimeout).
			Msg("Starting server")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-done
	logger.Info().Msg("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Security.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	} else {
		logger.Info().Msg("Server exited gracefully")
	}

	// Flush pending notifications before the process exits
	svc.Close()
}

// openStorage builds the configured backend. The returned pool is nil for
// the file backend.
func openStorage(cfg *config.Config) (storage.Storage, *sql.DB, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		db, err := database.InitDB(cfg)
		if err != nil {
			return nil, nil, err
		}
		pg := storage.NewPostgresStorage(db)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			db.Close()
			return nil, nil, err
		}
		return pg, db, nil
	default:
		fs := storage.NewFileStorage(cfg.Storage.DataDir, cfg.Storage.RecordsFile, cfg.Storage.HistoryFile)
		return fs, nil, nil
	}
}
