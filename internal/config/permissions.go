// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

//go:build !windows

package config

import (
	"log/slog"
	"os"
)

// WarnInsecurePermissions logs a warning when the config file at path is
// readable by group or world. The file may carry a bearer token or keyring
// URIs, so anything looser than 0600 deserves a nudge. Best effort: startup
// proceeds regardless of what we find here.
func WarnInsecurePermissions(path string) {
	if path == "" {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		slog.Debug("could not stat config file for permission check", "path", path, "error", err)
		return
	}
	if info.Mode().Perm()&0o044 == 0 {
		return
	}
	slog.Warn("config file has insecure permissions, readable by other users",
		"path", path,
		"mode", info.Mode().Perm().String(),
		"recommended", "0600",
	)
}
