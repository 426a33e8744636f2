// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// testHome points HOME at a temp dir and resets the global viper, so command
// runs can neither read nor write the developer's real config. Every test
// that executes a subcommand (anything beyond --help) should call this first.
func testHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	viper.Reset()
	t.Cleanup(viper.Reset)
	return home
}

// testSetupGateway starts a mock gateway, points defaultHTTPClient at it,
// and returns the server address (host:port).
func testSetupGateway(t *testing.T, handler http.Handler) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	old := defaultHTTPClient
	defaultHTTPClient = srv.Client()
	t.Cleanup(func() {
		defaultHTTPClient = old
		srv.Close()
	})
	return srv.URL[len("http://"):]
}

func TestRootCommand_Help(t *testing.T) {
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"--help"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "curio")
	assert.Contains(t, buf.String(), "serve")
	assert.Contains(t, buf.String(), "query")
	assert.Contains(t, buf.String(), "status")
	assert.Contains(t, buf.String(), "version")
}

func TestRootCommand_GlobalFlags(t *testing.T) {
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"--help"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "--config")
	assert.Contains(t, buf.String(), "--data-dir")
	assert.Contains(t, buf.String(), "--verbose")
}

func TestVersionCommand(t *testing.T) {
	testHome(t)

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"version"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "curio")
	assert.Contains(t, buf.String(), "commit")
}

func TestServeCommand_MissingConfigFile(t *testing.T) {
	testHome(t)

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"serve", "--config", "/nonexistent/path.yaml"})

	err := root.Execute()
	require.Error(t, err)
	assert.True(t, curioerr.HasCode(err, curioerr.CodeConfigLoadReadFailure))
}

func TestStatusCommand_HealthyGateway(t *testing.T) {
	testHome(t)
	addr := testSetupGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/status" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":         "ok",
			"version":        "1.2.3",
			"config_version": "v1",
			"corpus_backend": "memory",
			"index_backend":  "memory",
			"items":          3,
			"providers": []map[string]any{
				{"provider": "openai", "available": true},
				{"provider": "anthropic", "available": false, "message": "cooling down"},
			},
		})
	}))

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"status", "--address", addr})

	err := root.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "ok (version 1.2.3)")
	assert.Contains(t, output, "3 items (memory)")
	assert.Contains(t, output, "openai available")
	assert.Contains(t, output, "anthropic unavailable (cooling down)")
}

func TestStatusCommand_GatewayDown(t *testing.T) {
	testHome(t)

	// An address that refuses connections.
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"status", "--address", "127.0.0.1:1"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "not running")
}

func TestStatusCommand_GatewayError(t *testing.T) {
	testHome(t)
	addr := testSetupGateway(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{"title": "Internal Server Error", "detail": "corpus unavailable"})
	}))

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"status", "--address", addr})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "corpus unavailable")
}

func TestStatusCommand_SendsBearerToken(t *testing.T) {
	testHome(t)

	var gotAuth string
	addr := testSetupGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}))

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"status", "--address", addr, "--token", "secret-token"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", gotAuth)
}
