// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_WritesSpecFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "api", "spec.json")
	require.NoError(t, run(out))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "paths")
}

func TestGenerateSpec_CoversEveryRoute(t *testing.T) {
	spec, err := generateSpec()
	require.NoError(t, err)

	var doc struct {
		OpenAPI string         `json:"openapi"`
		Paths   map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(spec, &doc))
	assert.True(t, strings.HasPrefix(doc.OpenAPI, "3.1"), "huma emits OpenAPI 3.1, got %q", doc.OpenAPI)

	for _, p := range []string{
		"/api/v1/recommend",
		"/api/v1/items/{id}",
		"/api/v1/status",
		"/api/v1/config/providers",
		"/healthz",
	} {
		assert.Contains(t, doc.Paths, p)
	}
}
