package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CZERTAINLY/CBOM-Repository/internal/env"
	"github.com/CZERTAINLY/CBOM-Repository/internal/health"
	internalHttp "github.com/CZERTAINLY/CBOM-Repository/internal/http"
	"github.com/CZERTAINLY/CBOM-Repository/internal/log"
	"github.com/CZERTAINLY/CBOM-Repository/internal/metadata"
	"github.com/CZERTAINLY/CBOM-Repository/internal/retention"
	"github.com/CZERTAINLY/CBOM-Repository/internal/store"
)

func main() {
	// get configuration from environment variables
	cfg, err := env.New()
	if err != nil {
		panic(err)
	}
	initializeLogging(cfg.LogLevel)
	slog.Debug("Service configuration read from environment variables.")

	repo := store.New(store.Config{Directory: cfg.Directory})
	slog.Debug("Filesystem store initialized.", slog.String("directory", cfg.Directory))

	interval, err := time.ParseDuration(cfg.Retention.Interval)
	if err != nil {
		slog.Error("Invalid RETENTION__INTERVAL.", slog.String("error", err.Error()))
		os.Exit(1)
	}
	tmpMaxAge, err := time.ParseDuration(cfg.Retention.TmpMaxAge)
	if err != nil {
		slog.Error("Invalid RETENTION__TMPMAXAGE.", slog.String("error", err.Error()))
		os.Exit(1)
	}

	sweeper := retention.New(repo, retention.Policy{
		MaxVersionsPerSerial: cfg.Retention.MaxVersions,
		MaxAgeDays:           cfg.Retention.MaxAgeDays,
	}, tmpMaxAge)

	metadataSvc := metadata.New(repo, sweeper)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := metadataSvc.Start(ctx, interval); err != nil {
		slog.Error("Starting metadata/retention service failed.", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Debug("Metadata service and retention sweeper started.", slog.Duration("interval", interval))

	storageChecker := health.NewStorageChecker(repo)
	healthSvc := health.NewService(storageChecker)
	slog.Debug("Health service initialized.")

	srv := internalHttp.New(repo, metadataSvc, healthSvc, cfg.AllowedMethods)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: srv.Router(),
	}

	go func() {
		<-ctx.Done()
		slog.Info("Shutdown signal received, stopping retention sweeper and http server.")
		metadataSvc.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed.", slog.String("error", err.Error()))
		}
	}()

	slog.Info("Starting http server.", slog.Int("port", cfg.Port))

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("`ListenAndServe()` failed.", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func initializeLogging(level slog.Level) {
	base := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		AddSource: false,
		Level:     level,
	})
	ctxHandler := log.New(base)
	slog.SetDefault(slog.New(ctxHandler))
}
