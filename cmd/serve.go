package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gambitlabs/gambit/internal/api"
	"github.com/gambitlabs/gambit/internal/app"
	"github.com/gambitlabs/gambit/internal/config"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()
	logger.Info("starting gambit", "version", Version)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	srv := api.NewServer(api.Config{
		Flow:        a.Flow,
		Runner:      a.Agent,
		Sessions:    a.Sessions,
		Knowledge:   a.Knowledge,
		DB:          a.DBPool,
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
	})

	addr := serveAddr
	if addr == "" {
		addr = cfg.ListenAddr
	}
	return srv.Run(ctx, addr)
}
