package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"timereport/api/internal/app"
	"timereport/api/internal/config"
	"timereport/api/internal/logging"
	"timereport/api/internal/redmine"
	"timereport/api/internal/report"
)

func main() {
	cfg := config.Load()
	if path := os.Getenv("REPORTS_CONFIG_FILE"); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			slog.Error("config file failed", "path", path, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	client := redmine.New(redmine.Config{
		BaseURL: cfg.RedmineURL,
		APIKey:  cfg.RedmineAPIKey,
		Timeout: cfg.RedmineTimeout,
	}, logger)
	logger.Info("redmine backend configured", "redmine", client)

	service := app.New(cfg, report.NewService(client, logger), client, logger)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RedmineTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("report API listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
