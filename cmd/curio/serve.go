// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/curio-dev/curio/internal/config"
	"github.com/curio-dev/curio/internal/secrets"
	curioerr "github.com/curio-dev/curio/pkg/errors"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the curio gateway",
		Long:  "Load configuration, open the corpus and vector index, and serve the recommendation API over HTTP.",
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("server.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(viper.GetBool("verbose"))

	cfgPath := viper.ConfigFileUsed()
	if cfgPath != "" {
		config.WarnInsecurePermissions(cfgPath)
	}

	cfg, err := config.LoadResolved(cfgPath, secrets.NewKeyringStore())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Apply any flag/env overrides that Viper resolved.
	if listen := viper.GetString("server.listen"); listen != "" {
		cfg.Server.Listen = listen
	}

	dataDir, err := resolveDataDir(cfg)
	if err != nil {
		return err
	}

	gw, err := WireGateway(cfg, dataDir)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := gw.Close(); cerr != nil {
			slog.Warn("shutdown cleanup failed", "error", cerr)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting curio gateway",
		"listen", cfg.Server.Listen,
		"corpus_backend", cfg.Storage.CorpusBackend,
		"index_backend", cfg.Storage.IndexBackend,
		"data_dir", dataDir,
		"config_version", cfg.Models.Version,
	)

	if err := gw.Server.Start(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	slog.Info("curio gateway stopped")
	return nil
}

// setupLogging installs the process-wide slog handler. Verbose enables debug
// level, including per-stage pipeline transitions.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// resolveDataDir picks the data directory: storage.path from config or flags
// when set, otherwise the platform default.
func resolveDataDir(cfg *config.Config) (string, error) {
	if cfg.Storage.Path != "" {
		return cfg.Storage.Path, nil
	}
	dir, err := config.DefaultDataDir()
	if err != nil {
		return "", curioerr.Errorf(curioerr.CodeCLISetupFailure, "resolving data directory: %w", err)
	}
	return dir, nil
}
