package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avoronov/newsmux/app/api"
	"github.com/avoronov/newsmux/app/cfg"
	"github.com/avoronov/newsmux/app/channel"
	"github.com/avoronov/newsmux/app/database"
	"github.com/avoronov/newsmux/app/oracle"
	"github.com/avoronov/newsmux/app/pipeline"
	"github.com/avoronov/newsmux/app/source"
	"github.com/avoronov/newsmux/app/telegram"
	"github.com/avoronov/newsmux/app/textproc"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		os.Exit(1)
	}
	if c == nil {
		// Help was shown.
		return
	}

	logLevel := slog.LevelInfo
	if c.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting newsmux", "version", cfg.GetVersion())

	db, err := database.NewConnection(c.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", c.DBPath, "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err.Error())
		os.Exit(1)
	}
	slog.Info("Database ready", "path", c.DBPath, "schema_version", version, "dirty", dirty)

	configCache := channel.NewConfigCache(c.ChannelsDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load channel configurations", "dir", c.ChannelsDir, "error", err.Error())
		os.Exit(1)
	}
	slog.Info("Channel configurations loaded", "count", configCache.GetConfigCount())

	ingestedRepo := database.NewIngestedRepository(db)
	outgoingRepo := database.NewOutgoingRepository(db)
	settingsRepo := database.NewSettingsRepository(db)

	var transport telegram.Transport
	if c.Mock {
		slog.Info("Mock transport enabled, messages will be logged instead of sent")
		transport = telegram.NewMock()
	} else {
		transport = telegram.NewClient()
	}

	reader := source.NewReader(&http.Client{Timeout: 30 * time.Second}, c.UserAgent, c.MessageLimit)
	orchestrator := pipeline.NewOrchestrator(configCache, ingestedRepo, outgoingRepo, settingsRepo,
		reader, textproc.NewCleaner(), textproc.NewLinkExtractor(), textproc.NewURLMetaResolver(),
		oracle.NewClient(), transport)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go orchestrator.Run(ctx)

	handler := api.NewHandler(configCache, ingestedRepo, outgoingRepo, orchestrator)
	server := api.NewServer(handler, c.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + c.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", c.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("HTTP server error", "error", err.Error())
	}

	slog.Info("Shutting down gracefully")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err.Error())
	}

	slog.Info("Shutdown complete")
}
