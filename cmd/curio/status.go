// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// statusBody mirrors the gateway's status response.
type statusBody struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	ConfigVersion string `json:"config_version"`
	CorpusBackend string `json:"corpus_backend"`
	IndexBackend  string `json:"index_backend"`
	Items         int64  `json:"items"`
	Providers     []struct {
		Provider  string `json:"provider"`
		Available bool   `json:"available"`
		Message   string `json:"message"`
	} `json:"providers"`
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show gateway status",
		Long:  "Check the running gateway's status endpoint and display corpus, index, and provider information.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", "127.0.0.1:8821", "gateway address to check")
	cmd.Flags().String("token", "", "bearer token for an auth-enabled gateway")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	token, _ := cmd.Flags().GetString("token")
	out := cmd.OutOrStdout()

	gw := newGatewayClient(addr, token)
	var body statusBody
	if err := gw.getJSON("/api/v1/status", &body); err != nil {
		if curioerr.HasCode(err, curioerr.CodeCLIGatewayNotRunning) {
			_, _ = fmt.Fprintf(out, "Gateway at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Gateway at %s: %s\n", addr, err)
		return nil
	}

	_, _ = fmt.Fprintf(out, "Gateway at %s: %s (version %s)\n", addr, body.Status, body.Version)
	_, _ = fmt.Fprintf(out, "  Config:    %s\n", body.ConfigVersion)
	_, _ = fmt.Fprintf(out, "  Corpus:    %d items (%s)\n", body.Items, body.CorpusBackend)
	_, _ = fmt.Fprintf(out, "  Index:     %s\n", body.IndexBackend)

	if len(body.Providers) == 0 {
		_, _ = fmt.Fprintf(out, "  Providers: none configured\n")
		return nil
	}
	for _, p := range body.Providers {
		state := "available"
		if !p.Available {
			state = "unavailable"
			if p.Message != "" {
				state += " (" + p.Message + ")"
			}
		}
		_, _ = fmt.Fprintf(out, "  Provider:  %s %s\n", p.Provider, state)
	}
	return nil
}
