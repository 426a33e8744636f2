// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

//go:build windows

package config

import "log/slog"

// WarnInsecurePermissions does nothing on Windows, where file access is
// governed by ACLs rather than Unix mode bits.
func WarnInsecurePermissions(path string) {
	if path == "" {
		return
	}
	slog.Debug("skipping config permission check", "path", path, "reason", "mode bits not meaningful on Windows")
}
