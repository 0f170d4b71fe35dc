package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MimeLyc/syncdub/internal/config"
	"github.com/MimeLyc/syncdub/internal/httpapi"
	"github.com/MimeLyc/syncdub/internal/jobs"
	"github.com/MimeLyc/syncdub/internal/persistence"
	"github.com/MimeLyc/syncdub/internal/service"
	"github.com/MimeLyc/syncdub/pkg/log"
)

const shutdownTimeout = 10 * time.Second

type sweepScheduler interface {
	ScheduleCacheSweep(ctx context.Context) error
}

type cronRunner interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func newServeCommand() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dubbing daemon and its HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			log.InitLogger(log.ParseLevel(os.Getenv("LOG_LEVEL")))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before reading configuration")
	return cmd
}

func runServe(ctx context.Context) error {
	settingsPath := config.RuntimeSettingsFilePath()
	opts := []config.Option{}
	saved, err := config.LoadRuntimeSettingsFile(settingsPath)
	switch {
	case err == nil:
		opts = append(opts, config.WithRuntimeSettings(saved))
		log.Info("Loaded runtime settings from %s", settingsPath)
	case errors.Is(err, os.ErrNotExist):
	default:
		log.Warn("Ignoring runtime settings file %s: %v", settingsPath, err)
	}

	cfg, err := config.NewFromEnv(opts...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	settings, err := config.NewRuntimeSettingsStore(settingsPath, cfg.RuntimeSettings())
	if err != nil {
		return fmt.Errorf("failed to create settings store: %w", err)
	}

	pool := jobs.NewPool(cfg.Dub.Workers)
	pool.Start()
	defer pool.Stop()

	cronEngine := cron.New()
	svcOpts := []service.Option{service.WithCron(cronEngine), service.WithExecutor(pool)}
	if cfg.Storage.DBPath != "" {
		store, err := persistence.NewSQLiteStore(cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open subtitle cache: %w", err)
		}
		defer store.Close()
		svcOpts = append(svcOpts, service.WithCache(store))
		log.Info("Subtitle cache at %s", cfg.Storage.DBPath)
	}

	svc := service.NewService(*cfg, svcOpts...)
	defer svc.Stop()

	server := httpapi.NewServer(svc,
		httpapi.WithUI(cfg.HTTP.UIStaticDir, cfg.HTTP.UIEnabled),
		httpapi.WithRuntimeSettingsStore(settings),
		httpapi.WithRuntimeSettingsApplier(svc.ApplySettings),
	)
	return runWithComponents(ctx, cfg, svc, cronEngine, server)
}

// runWithComponents schedules the cache sweep, runs cron and the HTTP server
// and shuts both down when ctx ends.
func runWithComponents(ctx context.Context, cfg *config.Config, sched sweepScheduler, cronEngine cronRunner, httpSrv httpServer) error {
	if err := sched.ScheduleCacheSweep(ctx); err != nil {
		return fmt.Errorf("failed to schedule cache sweep: %w", err)
	}
	cronEngine.Start()
	defer cronEngine.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP server listening on %s", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
