// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	curioerr "github.com/curio-dev/curio/pkg/errors"
)

//go:embed curio.yaml.default
var DefaultConfigYAML []byte

// userPath joins parts beneath the user's home directory.
func userPath(parts ...string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", curioerr.Errorf(curioerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(append([]string{home}, parts...)...), nil
}

// DefaultConfigPath returns ~/.config/curio/curio.yaml.
func DefaultConfigPath() (string, error) {
	return userPath(".config", "curio", "curio.yaml")
}

// DefaultDataDir returns ~/.local/share/curio, where the corpus and index
// databases live unless storage.path overrides it.
func DefaultDataDir() (string, error) {
	return userPath(".local", "share", "curio")
}

// BootstrapConfig writes the default commented config to the default path on
// first run. Returns the path written, or "" when the file already exists or
// the write fails. Failure here is never fatal: the loader falls back to
// built-in defaults, so this only logs at debug.
func BootstrapConfig() string {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}
	if _, err := os.Stat(cfgPath); err == nil {
		return ""
	}
	if err := writeDefaultConfig(cfgPath); err != nil {
		slog.Debug("skipping config bootstrap", "path", cfgPath, "error", err)
		return ""
	}
	slog.Info("created default config", "path", cfgPath)
	return cfgPath
}

// writeDefaultConfig creates the parent directory and the config file with
// owner-only permissions. The config may later hold keyring URIs and a bearer
// token, so it starts life as 0600.
func writeDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, DefaultConfigYAML, 0o600)
}
