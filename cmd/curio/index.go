// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/curio-dev/curio/internal/config"
	"github.com/curio-dev/curio/internal/corpus"
	"github.com/curio-dev/curio/internal/secrets"
	curioerr "github.com/curio-dev/curio/pkg/errors"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [file]",
		Short: "Bulk ingest items into the corpus and vector index",
		Long: `Load items from a YAML or JSON seed file into the corpus and vector index,
embedding descriptions through the configured embedder. The file holds a list
of items:

  - id: sku-001
    category: kitchen
    price: 34.99
    description: "10-inch cast iron skillet, pre-seasoned"
    signals:
      popularity: 0.92

Items without an id are assigned a generated one. Items that carry an
"embedding" list skip the embedding call.

With --rebuild the corpus is re-embedded from scratch instead: every stored
item's description is run through the configured embedder and the vector
index entry is replaced. Use it after changing models.embedder. Changing to
an embedder with a different dimensionality also needs --reset, which drops
the sqlite-vec index file before rebuilding (its dimensionality is fixed at
creation).`,
		Args: cobra.MaximumNArgs(1),
		RunE: runIndex,
	}

	cmd.Flags().Bool("rebuild", false, "re-embed every corpus item and rebuild the vector index")
	cmd.Flags().Bool("reset", false, "drop the on-disk vector index before opening it")

	return cmd
}

func runIndex(cmd *cobra.Command, args []string) error {
	setupLogging(viper.GetBool("verbose"))

	rebuild, _ := cmd.Flags().GetBool("rebuild")
	reset, _ := cmd.Flags().GetBool("reset")

	if len(args) == 0 && !rebuild {
		return curioerr.New(curioerr.CodeCLIInputInvalid, "provide a seed file or --rebuild")
	}
	if len(args) > 0 && rebuild {
		return curioerr.New(curioerr.CodeCLIInputInvalid, "--rebuild takes no seed file; run the two steps separately")
	}

	cfg, err := config.LoadResolved(viper.ConfigFileUsed(), secrets.NewKeyringStore())
	if err != nil {
		return err
	}

	dataDir, err := resolveDataDir(cfg)
	if err != nil {
		return err
	}

	if reset {
		if err := resetIndexFile(dataDir); err != nil {
			return err
		}
	}

	deps, err := WireIngest(cfg, dataDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			slog.Warn("error during shutdown", "error", err)
		}
	}()

	if rebuild {
		return rebuildIndex(cmd.Context(), deps, cmd.OutOrStdout())
	}
	return ingestSeedFile(cmd.Context(), deps, args[0], cmd.OutOrStdout())
}

// resetIndexFile removes the on-disk vector index so the next open recreates
// it empty. Needed when the embedder dimensionality changes: sqlite-vec fixes
// the vector width when the table is created.
func resetIndexFile(dataDir string) error {
	path := filepath.Join(dataDir, "index.db")
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return curioerr.Errorf(curioerr.CodeCLISetupFailure, "removing vector index %s: %w", path, err)
	}
	slog.Info("removed vector index", "path", path)
	return nil
}

func ingestSeedFile(ctx context.Context, deps *IngestDeps, path string, out io.Writer) error {
	items, err := loadSeedFile(path)
	if err != nil {
		return err
	}

	var ok, failed int
	var firstErr error
	for _, it := range items {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		if _, err := deps.Ingestor.Upsert(ctx, it); err != nil {
			slog.Warn("failed to ingest item", "id", it.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			failed++
			continue
		}
		ok++
	}

	_, _ = fmt.Fprintf(out, "Ingested %d item(s) from %s\n", ok, path)
	if failed > 0 {
		return curioerr.Wrapf(firstErr, curioerr.CodeOf(firstErr), "%d of %d item(s) failed", failed, len(items))
	}
	return nil
}

// loadSeedFile parses a YAML or JSON list of items, picking the codec by
// file extension.
func loadSeedFile(path string) ([]*corpus.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, curioerr.Errorf(curioerr.CodeCLIInputInvalid, "reading seed file: %w", err)
	}

	var items []*corpus.Item
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &items); err != nil {
			return nil, curioerr.Errorf(curioerr.CodeCLIInputInvalid, "parsing %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, curioerr.Errorf(curioerr.CodeCLIInputInvalid, "parsing %s: %w", path, err)
		}
	default:
		return nil, curioerr.Errorf(curioerr.CodeCLIInputInvalid, "unsupported seed file extension %q (want .yaml, .yml, or .json)", ext)
	}

	if len(items) == 0 {
		return nil, curioerr.New(curioerr.CodeCLIInputInvalid, "seed file contains no items")
	}
	return items, nil
}

// rebuildIndex re-embeds every corpus item and replaces its index entry.
// Items without a description cannot be re-embedded and are skipped with a
// warning; their old index entries are left alone.
func rebuildIndex(ctx context.Context, deps *IngestDeps, out io.Writer) error {
	// Collect first. Upserting while iterating would mutate the store
	// under the iteration.
	var items []*corpus.Item
	err := deps.Corpus.ForEach(ctx, func(it *corpus.Item) error {
		items = append(items, it.Clone())
		return nil
	})
	if err != nil {
		return curioerr.Errorf(curioerr.CodeCLISetupFailure, "scanning corpus: %w", err)
	}

	var ok, skipped, failed int
	var firstErr error
	for _, it := range items {
		if it.Description == "" {
			slog.Warn("skipping item with no description, cannot re-embed", "id", it.ID)
			skipped++
			continue
		}
		it.Embedding = nil // force a fresh embedding from the configured embedder
		if _, err := deps.Ingestor.Upsert(ctx, it); err != nil {
			slog.Warn("failed to re-embed item", "id", it.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			failed++
			continue
		}
		ok++
	}

	_, _ = fmt.Fprintf(out, "Rebuilt index: %d re-embedded, %d skipped, %d failed\n", ok, skipped, failed)
	if failed > 0 {
		return curioerr.Wrapf(firstErr, curioerr.CodeOf(firstErr), "%d of %d item(s) failed", failed, len(items))
	}
	return nil
}
