package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"civicpulse.app/engagement/internal/app"
	"civicpulse.app/engagement/internal/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "engine",
		Short:         "Civic engagement scoring and petition moderation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newSweepCmd(), newMigrateCmd())
	return root
}

// loadConfig reads the environment and applies APP_LOG_LEVEL.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if level, err := log.ParseLevel(cfg.AppLogLevel); err == nil {
		log.SetLevel(level)
	}
	if cfg.AppEnv == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	}
	return cfg, nil
}

// signalContext is cancelled on Ctrl+C or docker stop.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the scheduled moderation sweep",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				log.WithError(err).Error("Failed to load configuration")
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			log.Info("=== Engine starting ===")
			application, err := app.New(ctx, cfg)
			if err != nil {
				log.WithError(err).Error("Failed to initialize the engine")
				return err
			}
			defer application.Close()

			if err := application.Run(ctx); err != nil {
				log.WithError(err).Error("Engine stopped with an error")
				return err
			}
			log.Info("=== Engine stopped ===")
			return nil
		},
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one moderation sweep and print the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				log.WithError(err).Error("Failed to load configuration")
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			application, err := app.New(ctx, cfg)
			if err != nil {
				log.WithError(err).Error("Failed to initialize the engine")
				return err
			}
			defer application.Close()

			report, err := application.Sweep(ctx)
			if err != nil {
				log.WithError(err).Error("Moderation sweep failed")
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				log.WithError(err).Error("Failed to load configuration")
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			if err := app.Migrate(ctx, cfg); err != nil {
				log.WithError(err).Error("Migrations failed")
				return err
			}
			log.Info("Migrations up to date")
			return nil
		},
	}
}
