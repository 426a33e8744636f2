// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

//go:build !windows

package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLog redirects the default slog logger into a buffer for the
// duration of the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

// writeConfigWithMode creates a throwaway config file and chmods it
// explicitly, since the mode passed to os.WriteFile is filtered by umask.
func writeConfigWithMode(t *testing.T, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "curio.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  listen: \"127.0.0.1:8821\"\n"), 0o600))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestWarnInsecurePermissions(t *testing.T) {
	tests := []struct {
		name     string
		perm     os.FileMode
		wantWarn bool
	}{
		{"owner read-write", 0o600, false},
		{"owner read-only", 0o400, false},
		{"group readable", 0o640, true},
		{"world readable", 0o604, true},
		{"wide open", 0o666, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigWithMode(t, tt.perm)
			buf := captureLog(t)

			WarnInsecurePermissions(path)

			if !tt.wantWarn {
				assert.NotContains(t, buf.String(), "insecure permissions")
				return
			}
			assert.Contains(t, buf.String(), "insecure permissions")
			assert.Contains(t, buf.String(), path)
			assert.Contains(t, buf.String(), "0600")
		})
	}
}

func TestWarnInsecurePermissions_NoConfigFile(t *testing.T) {
	buf := captureLog(t)

	// Empty path means the loader ran on defaults alone; nothing to check.
	WarnInsecurePermissions("")
	assert.Empty(t, buf.String())

	// A missing file logs at debug, never warns.
	WarnInsecurePermissions(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.NotContains(t, buf.String(), "insecure permissions")
}
