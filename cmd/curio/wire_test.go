// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curio-dev/curio/internal/config"
	"github.com/curio-dev/curio/internal/corpus"
	"github.com/curio-dev/curio/internal/provider"
)

// testGatewayConfig wires everything against in-memory backends. The model
// refs point at a stub provider that is never registered; wiring tolerates
// unroutable refs so a gateway can start before any API key is configured.
func testGatewayConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Listen:         "127.0.0.1:0",
			RateLimitBurst: 30,
		},
		Storage: config.StorageConfig{
			CorpusBackend: "memory",
			IndexBackend:  "memory",
			Dimensions:    3,
			Metric:        "cosine",
		},
		Models: config.ModelsConfig{
			Version:  "test",
			Embedder: "stub/embed-1",
		},
		Ranking: config.RankingConfig{
			SimilarityWeight: 1,
			MMRLambda:        1,
		},
	}
}

func TestWireGateway(t *testing.T) {
	gw, err := WireGateway(testGatewayConfig(), t.TempDir())
	require.NoError(t, err)

	assert.NotNil(t, gw.Server)
	assert.NotNil(t, gw.Corpus)
	assert.NotNil(t, gw.Index)
	assert.NotNil(t, gw.Registry)
	assert.NotNil(t, gw.Pipeline)
	assert.NotNil(t, gw.Ingestor)

	assert.NoError(t, gw.Close())
}

func TestWireIngest(t *testing.T) {
	deps, err := WireIngest(testGatewayConfig(), t.TempDir())
	require.NoError(t, err)
	defer func() { _ = deps.Close() }()

	assert.NotNil(t, deps.Corpus)
	assert.NotNil(t, deps.Index)
	assert.NotNil(t, deps.Registry)
	assert.NotNil(t, deps.Ingestor)

	// Items carrying their own embedding never touch a provider, so the
	// write path works with an empty registry.
	ctx := context.Background()
	_, err = deps.Ingestor.Upsert(ctx, &corpus.Item{
		ID:        "sku-1",
		Category:  "kitchen",
		Price:     10,
		Embedding: []float32{1, 0, 0},
	})
	require.NoError(t, err)

	n, err := deps.Ingestor.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestWireIngest_SQLiteBackendsCreateFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := testGatewayConfig()
	cfg.Storage.CorpusBackend = "sqlite"
	cfg.Storage.IndexBackend = "sqlitevec"

	deps, err := WireIngest(cfg, dir)
	require.NoError(t, err)
	require.NoError(t, deps.Close())

	for _, name := range []string{"corpus.db", "index.db"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, "%s should exist under the data dir", name)
	}
}

func TestWireGateway_StatusRouteServes(t *testing.T) {
	gw, err := WireGateway(testGatewayConfig(), t.TempDir())
	require.NoError(t, err)
	defer func() { _ = gw.Close() }()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	gw.Server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
	assert.Contains(t, w.Body.String(), "memory")
}

func TestWireGateway_RecommendRouteRegistered(t *testing.T) {
	gw, err := WireGateway(testGatewayConfig(), t.TempDir())
	require.NoError(t, err)
	defer func() { _ = gw.Close() }()

	// An empty object fails the operation's schema validation with 422,
	// which only a registered operation produces; an unregistered path
	// would 404 instead.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommend", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	gw.Server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "query")
}

func TestWireGateway_ItemRoutesRegistered(t *testing.T) {
	gw, err := WireGateway(testGatewayConfig(), t.TempDir())
	require.NoError(t, err)
	defer func() { _ = gw.Close() }()

	// Round-trip an item through the HTTP surface.
	body := `{"category": "kitchen", "price": 10, "embedding": [1, 0, 0]}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/items/sku-1", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	gw.Server.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, "upsert failed: %s", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/v1/items/sku-1", nil)
	w = httptest.NewRecorder()
	gw.Server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sku-1")
}

func TestWireGateway_ProviderRegistration(t *testing.T) {
	cfg := testGatewayConfig()
	cfg.Providers = map[string]config.ProviderConfig{
		"anthropic": {APIKey: "test-key-anthropic"},
		"openai":    {APIKey: "test-key-openai"},
		"google":    {APIKey: "test-key-google"},
	}

	gw, err := WireGateway(cfg, t.TempDir())
	require.NoError(t, err)
	defer func() { _ = gw.Close() }()

	// All three providers should be registered.
	for _, name := range []string{"anthropic", "openai", "google"} {
		p, err := gw.Registry.Get(name)
		assert.NoError(t, err, "provider %q should be registered", name)
		assert.NotNil(t, p, "provider %q should not be nil", name)
	}
}

func TestWireGateway_ProviderSkipsEmptyAPIKey(t *testing.T) {
	cfg := testGatewayConfig()
	cfg.Providers = map[string]config.ProviderConfig{
		"anthropic": {APIKey: ""}, // empty — should be skipped
	}

	gw, err := WireGateway(cfg, t.TempDir())
	require.NoError(t, err)
	defer func() { _ = gw.Close() }()

	_, err = gw.Registry.Get("anthropic")
	assert.Error(t, err, "provider with empty API key should not be registered")
}

func TestWireGateway_ProviderCreationFailureSkipped(t *testing.T) {
	// Inject a factory that always fails to exercise the err != nil path.
	orig := builtinProviderFactories["anthropic"]
	builtinProviderFactories["anthropic"] = func(_ config.ProviderConfig) (provider.Provider, error) {
		return nil, fmt.Errorf("injected failure")
	}
	t.Cleanup(func() { builtinProviderFactories["anthropic"] = orig })

	cfg := testGatewayConfig()
	cfg.Providers = map[string]config.ProviderConfig{
		"anthropic": {APIKey: "test-key"},
	}

	gw, err := WireGateway(cfg, t.TempDir())
	require.NoError(t, err, "provider creation failure should not prevent startup")
	defer func() { _ = gw.Close() }()

	_, err = gw.Registry.Get("anthropic")
	assert.Error(t, err, "failed provider should not be registered")
}

func TestWireGateway_UnknownProviderSkipped(t *testing.T) {
	cfg := testGatewayConfig()
	cfg.Providers = map[string]config.ProviderConfig{
		"unknown-provider": {APIKey: "some-key"},
	}

	gw, err := WireGateway(cfg, t.TempDir())
	require.NoError(t, err, "unknown provider should not cause startup failure")
	defer func() { _ = gw.Close() }()

	_, err = gw.Registry.Get("unknown-provider")
	assert.Error(t, err, "unknown provider should not be registered")
}
