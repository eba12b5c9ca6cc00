// Package main runs the tic-tac-toe room server: a WebSocket endpoint for
// play and a REST API for room creation and long-poll watching.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tictactoe/cmd/ttt-server/cli"
	"tictactoe/internal/server/broadcast"
	"tictactoe/internal/server/config"
	resthttp "tictactoe/internal/server/http"
	"tictactoe/internal/server/processor"
	"tictactoe/internal/server/service"
	"tictactoe/internal/server/storage"
	"tictactoe/internal/server/ws"
)

const gracefulShutdownTimeout = 5 * time.Second

func main() {
	// Database maintenance commands
	if len(os.Args) > 1 && os.Args[1] == "db" {
		if err := cli.Run(os.Args[2:], os.Stdout); err != nil {
			log.Fatalf("CLI error: %v", err)
		}
		os.Exit(0)
	}

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(cfg *config.Config) (err error) {
	logger := cfg.Logger(os.Stderr)
	slog.SetDefault(logger)

	if cfg.PIDPath != "" {
		pid, err := writePIDFile(cfg.PIDPath, cfg.PIDLock)
		if err != nil {
			return fmt.Errorf("pid file: %w", err)
		}
		defer pid.Release()
		logger.Info("PID file created", "path", cfg.PIDPath, "lock", cfg.PIDLock)
	}

	// 1. Storage
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}

	// 2. Broadcast hub, injected into the coordinator as its publisher
	hub := broadcast.NewHub(logger)

	// 3. Coordinator and event processor
	svc := service.New(store, hub, logger, service.WithStoreTimeout(cfg.StoreTimeout))
	proc := processor.New(svc, logger)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	go svc.RunCleanupJob(cleanupCtx, cfg.CleanupInterval, cfg.RoomTTL)

	// 4. Transports
	wsHandler := ws.NewHandler(proc, hub, logger, ws.Options{
		RateBurst:      cfg.RateBurst,
		RatePerSecond:  cfg.RatePerSecond,
		AllowedOrigins: cfg.Origins(),
	})
	mux := http.NewServeMux()
	mux.Handle("/ws", wsHandler)
	wsServer := &http.Server{
		Addr:              cfg.WSAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	app := resthttp.NewFiberApp(svc, hub, resthttp.Config{
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.HTTPRateLimit,
		AccessLog:      cfg.AccessLog,
	})

	errChan := make(chan error, 2)
	go func() {
		logger.Info("WebSocket server starting", "addr", "ws://"+cfg.WSAddr()+"/ws",
			"rate_burst", cfg.RateBurst, "rate_per_second", cfg.RatePerSecond)
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("websocket server: %w", err)
		}
	}()
	go func() {
		logger.Info("API server starting", "addr", "http://"+cfg.APIAddr(),
			"store", cfg.Store, "storage_path", cfg.StoragePath)
		if err := app.Listen(cfg.APIAddr()); err != nil {
			errChan <- fmt.Errorf("api server: %w", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down servers...")
	case err = <-errChan:
		logger.Error("Server failed, shutting down", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer shutdownCancel()

	// Stop intake first, then release waiters and subscribers, then storage
	var errs []error
	errs = append(errs, err)
	if e := app.ShutdownWithContext(shutdownCtx); e != nil {
		errs = append(errs, fmt.Errorf("api shutdown: %w", e))
	}
	if e := wsServer.Shutdown(shutdownCtx); e != nil {
		errs = append(errs, fmt.Errorf("websocket shutdown: %w", e))
	}
	wsHandler.Shutdown()
	cleanupCancel()
	if e := hub.Shutdown(gracefulShutdownTimeout); e != nil {
		errs = append(errs, fmt.Errorf("hub shutdown: %w", e))
	}
	if e := store.Close(); e != nil {
		errs = append(errs, fmt.Errorf("store close: %w", e))
	}

	logger.Info("Servers exited")
	return errors.Join(errs...)
}

// openStore builds the configured room store backend
func openStore(cfg *config.Config, logger *slog.Logger) (service.RoomStore, error) {
	switch cfg.Store {
	case "badger":
		logger.Info("Opening badger store", "dir", cfg.StoragePath)
		store, err := storage.NewBadgerStore(cfg.StoragePath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		return store, nil
	default:
		if cfg.StoragePath == "" {
			logger.Info("Persistent storage disabled, rooms kept in memory (use -storage-path to persist)")
		} else {
			logger.Info("Initializing persistent storage", "path", cfg.StoragePath)
		}
		store, err := storage.NewStore(cfg.StoragePath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		if err := store.InitDB(); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
		return store, nil
	}
}
