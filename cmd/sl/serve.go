package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/sessionlens/internal/api"
	"github.com/zulandar/sessionlens/internal/refresh"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the session inspector API",
		Long: `Launches the HTTP inspector API with live refresh events. Session changes
in the record store are pushed to /api/events after a short debounce.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to sessionlens config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config, 8080)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	logger := newLogger(cmd.ErrOrStderr(), slog.LevelInfo)
	a, err := openApp(configPath, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if port <= 0 {
		port = a.cfg.Server.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	watcher, err := refresh.NewWatcher(refresh.WatcherOpts{
		DB:           a.db,
		PollInterval: a.cfg.Refresh.PollInterval(),
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	hub := refresh.NewHub()

	refreshErr := make(chan error, 1)
	go func() {
		refreshErr <- refresh.Run(ctx, refresh.RunOpts{
			Watcher:     watcher,
			Debounce:    a.cfg.Refresh.Debounce(),
			AutoRefresh: a.cfg.Refresh.AutoRefresh,
			Hub:         hub,
			Logger:      logger,
		})
	}()

	err = api.Start(ctx, api.StartOpts{
		Inspector: a.svc,
		Hub:       hub,
		Port:      port,
		Out:       cmd.OutOrStdout(),
		Logger:    logger,
	})
	cancel()
	if rerr := <-refreshErr; rerr != nil && !errors.Is(rerr, context.Canceled) {
		logger.Warn("refresh stopped", "error", rerr)
	}
	return err
}
