// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"

	"github.com/curio-dev/curio/internal/config"
	"github.com/curio-dev/curio/internal/secrets"
	curioerr "github.com/curio-dev/curio/pkg/errors"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check binary health, gateway reachability, config, stored provider keys, data files, and disk space.",
		RunE:  runDoctor,
	}

	cmd.Flags().String("address", "127.0.0.1:8821", "gateway address to check")
	cmd.Flags().String("token", "", "bearer token for the gateway status check")

	return cmd
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	addr, _ := cmd.Flags().GetString("address")
	token, _ := cmd.Flags().GetString("token")
	dataDir := doctorDataDir()

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Gateway", func() string { return checkGateway(addr, token) }},
		{"Config", checkConfig},
		{"Data", func() string { return checkData(dataDir) }},
		{"Provider Keys", checkProviderKeys},
		{"Disk Space", func() string { return checkDiskSpace(dataDir) }},
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

// doctorDataDir returns the data directory from viper or the default.
func doctorDataDir() string {
	if dir := viper.GetString("storage.path"); dir != "" {
		return dir
	}
	dir, err := config.DefaultDataDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "curio")
	}
	return dir
}

func checkBinary() string {
	return fmt.Sprintf("curio %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkGateway(addr, token string) string {
	gw := newGatewayClient(addr, token)
	var body struct {
		Status string `json:"status"`
	}
	if err := gw.getJSON("/api/v1/status", &body); err != nil {
		if curioerr.HasCode(err, curioerr.CodeCLIGatewayNotRunning) {
			return fmt.Sprintf("not running at %s (run 'curio serve')", addr)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s at %s", body.Status, addr)
}

func checkConfig() string {
	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		return "using defaults (no config file found)"
	}

	info, err := os.Stat(cfgFile)
	if err != nil {
		return fmt.Sprintf("error reading %s: %s", cfgFile, err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		return fmt.Sprintf("loaded from %s (warning: permissions %04o, want 0600)", cfgFile, info.Mode().Perm())
	}
	return fmt.Sprintf("loaded from %s", cfgFile)
}

func checkData(dataDir string) string {
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		return fmt.Sprintf("not created yet at %s (run 'curio serve' or 'curio index')", dataDir)
	}

	var present []string
	for _, name := range []string{"corpus.db", "index.db"} {
		if _, err := os.Stat(filepath.Join(dataDir, name)); err == nil {
			present = append(present, name)
		}
	}
	if len(present) == 0 {
		return fmt.Sprintf("no data files yet in %s", dataDir)
	}
	return fmt.Sprintf("%d data file(s) in %s", len(present), dataDir)
}

func checkProviderKeys() string {
	store := secretStoreFactory()
	keys, err := store.List(secrets.DefaultService)
	if err != nil {
		return fmt.Sprintf("unable to check keyring: %s", err)
	}
	if len(keys) == 0 {
		return "no provider keys stored (run 'curio init')"
	}
	return fmt.Sprintf("%d key(s) stored in keyring", len(keys))
}

func checkDiskSpace(dataDir string) string {
	path := dataDir
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Fall back to home directory if data dir doesn't exist yet.
		path, _ = os.UserHomeDir()
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
