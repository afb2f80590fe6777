package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"playerhub/internal/api"
	"playerhub/internal/auth"
	"playerhub/internal/config"
	"playerhub/internal/db"
	"playerhub/internal/logging"
	"playerhub/internal/websocket"
)

func main() {
	// Parse command line flags
	isLoadTest := flag.Bool("loadtest", false, "Run server with load testing configuration")
	configFile := flag.String("config", "", "Optional YAML config file")
	flag.Parse()

	if err := run(*configFile, *isLoadTest); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configFile string, isLoadTest bool) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	base, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer base.Sync()
	logger := base.Named("server")
	logger.Info("starting server")

	// Modify database path for load testing
	if isLoadTest {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		loadTestDir := filepath.Join(cwd, "loadtest")
		if err := os.MkdirAll(loadTestDir, 0755); err != nil {
			return fmt.Errorf("failed to create loadtest directory: %w", err)
		}

		loadTestPath := filepath.Join(loadTestDir, "loadtest.db")
		cfg.UpdateDatabasePath(loadTestPath)
		logger.Info("using load testing database", zap.String("path", loadTestPath))
	}

	logger.Info("loaded configuration",
		zap.String("address", cfg.ServerAddress),
		zap.String("database", cfg.CleanDatabasePath()),
		zap.String("allowed_origin", cfg.AllowedOrigin),
		zap.String("upload_dir", cfg.UploadDir))

	database, err := db.NewDB(cfg.CleanDatabasePath())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	logger.Info("database connection established")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub(database, base.Named("websocket"))
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	provider := auth.NewProvider(cfg.JWTSecret, cfg.SessionSecret, cfg.TokenTTL, cfg.SecureCookies)
	handlers := api.NewHandlers(database, hub, provider, base.Named("api"), api.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		UploadDir:     cfg.UploadDir,
		ActiveWindow:  cfg.ActiveWindow,
	})

	server := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      api.NewRouter(handlers),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("address", cfg.ServerAddress))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			stop()
			<-hubDone
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
	<-hubDone

	logger.Info("server stopped")
	return nil
}
