// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// recommendResponse mirrors the gateway's recommend response.
type recommendResponse struct {
	RequestID string `json:"request_id"`
	Query     string `json:"query"`
	Items     []struct {
		ID          string  `json:"id"`
		Category    string  `json:"category"`
		Price       float64 `json:"price"`
		Description string  `json:"description"`
		Similarity  float64 `json:"similarity"`
		Score       float64 `json:"score"`
		Position    int     `json:"position"`
	} `json:"items"`
	Explanation       string `json:"explanation"`
	ExplanationStatus string `json:"explanation_status"`
	ConfigVersion     string `json:"config_version"`
	DurationMS        int64  `json:"duration_ms"`
}

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Recommend items for a query",
		Long: `Send a recommendation query to a running gateway and print the ranked
results. Filters take key=value form; range bounds use the _min/_max key
suffixes, e.g. --filter category=footwear --filter price_max=120.`,
		Args: cobra.ExactArgs(1),
		RunE: runQuery,
	}

	cmd.Flags().String("address", "127.0.0.1:8821", "gateway address")
	cmd.Flags().String("token", "", "bearer token for an auth-enabled gateway")
	cmd.Flags().IntP("k", "k", 0, "number of results (0 uses the gateway default)")
	cmd.Flags().StringArrayP("filter", "f", nil, "attribute filter as key=value, repeatable")
	cmd.Flags().Bool("explain", false, "request a natural-language explanation")
	cmd.Flags().Bool("json", false, "print the raw JSON response")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("address")
	token, _ := cmd.Flags().GetString("token")
	k, _ := cmd.Flags().GetInt("k")
	rawFilters, _ := cmd.Flags().GetStringArray("filter")
	explain, _ := cmd.Flags().GetBool("explain")
	asJSON, _ := cmd.Flags().GetBool("json")

	filters, err := parseFilterFlags(rawFilters)
	if err != nil {
		return err
	}

	reqBody := map[string]any{"query": args[0]}
	if len(filters) > 0 {
		reqBody["filters"] = filters
	}
	if k > 0 {
		reqBody["k"] = k
	}
	if explain {
		reqBody["explain"] = true
	}

	gw := newGatewayClient(addr, token)
	var resp recommendResponse
	if err := gw.postJSON("/api/v1/recommend", reqBody, &resp); err != nil {
		if curioerr.HasCode(err, curioerr.CodeCLIGatewayNotRunning) {
			return curioerr.Errorf(curioerr.CodeCLIGatewayNotRunning,
				"gateway is not running at %s (run 'curio serve')", addr)
		}
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if len(resp.Items) == 0 {
		_, _ = fmt.Fprintf(out, "No results for %q.\n", resp.Query)
		return nil
	}

	for _, item := range resp.Items {
		desc := item.Description
		if len(desc) > 60 {
			desc = desc[:57] + "..."
		}
		_, _ = fmt.Fprintf(out, "%2d. %-20s %-12s %8.2f  score=%.3f  %s\n",
			item.Position, item.ID, item.Category, item.Price, item.Score, desc)
	}

	if resp.Explanation != "" {
		_, _ = fmt.Fprintf(out, "\n%s\n", resp.Explanation)
	}
	_, _ = fmt.Fprintf(out, "\n%d result(s) in %dms (config %s, request %s)\n",
		len(resp.Items), resp.DurationMS, resp.ConfigVersion, resp.RequestID)
	return nil
}

// parseFilterFlags turns key=value pairs into the recommend API's filter
// map. Values that parse as numbers are sent as numbers so numeric fields
// and range bounds compare correctly.
func parseFilterFlags(raw []string) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	filters := make(map[string]any, len(raw))
	for _, pair := range raw {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, curioerr.Errorf(curioerr.CodeCLIInputInvalid,
				"invalid filter %q: expected key=value", pair)
		}
		value = strings.TrimSpace(value)
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			filters[key] = n
		} else {
			filters[key] = value
		}
	}
	return filters, nil
}
