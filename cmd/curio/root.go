// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/curio-dev/curio/internal/config"
	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// NewRootCmd creates the root curio command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "curio",
		Short:         "Curio — retrieval-augmented recommendation gateway",
		Long:          "Curio serves vector-retrieval recommendations over a local item corpus, with optional LLM-generated explanations.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	// Global flags — these map to viper keys via initViper.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	// Register subcommands
	root.AddCommand(
		newInitCmd(),
		newServeCmd(),
		newIndexCmd(),
		newQueryCmd(),
		newStatusCmd(),
		newSecretCmd(),
		newVersionCmd(),
		newDoctorCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	cfgFile, _ := cmd.Flags().GetString("config")
	if err := loadConfigFile(v, cfgFile); err != nil {
		return err
	}
	return bindGlobalFlags(v, cmd.Root())
}

// loadConfigFile reads the explicitly named config file, or discovers
// curio.yaml in the standard locations, bootstrapping a commented default on
// first run when none exists.
func loadConfigFile(v *viper.Viper, explicit string) error {
	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return curioerr.Errorf(curioerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
		return nil
	}

	// SetConfigType is intentionally omitted: when set, Viper also tries the
	// bare config name without extension, which collides with the ./curio
	// binary in the project root.
	v.SetConfigName("curio")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/curio")
	v.AddConfigPath("/etc/curio")

	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) {
		// Parse and permission errors must surface; only a missing file is fine.
		return curioerr.Errorf(curioerr.CodeConfigLoadReadFailure, "reading config: %w", err)
	}

	// First run: write a commented default to ~/.config/curio/ and load it.
	// Bootstrap failure is nonfatal, defaults and env vars still apply.
	path := config.BootstrapConfig()
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return curioerr.Errorf(curioerr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
	}
	return nil
}

// bindGlobalFlags maps the persistent flags onto their viper keys.
func bindGlobalFlags(v *viper.Viper, root *cobra.Command) error {
	for flag, key := range map[string]string{
		"data-dir": "storage.path",
		"verbose":  "verbose",
	} {
		if err := v.BindPFlag(key, root.PersistentFlags().Lookup(flag)); err != nil {
			return curioerr.Errorf(curioerr.CodeCLISetupFailure, "binding %s flag: %w", flag, err)
		}
	}
	return nil
}
