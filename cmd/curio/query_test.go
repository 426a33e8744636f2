// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	curioerr "github.com/curio-dev/curio/pkg/errors"
)

func TestParseFilterFlags(t *testing.T) {
	tests := []struct {
		name    string
		raw     []string
		want    map[string]any
		wantErr bool
	}{
		{
			name: "empty",
			raw:  nil,
			want: nil,
		},
		{
			name: "string value",
			raw:  []string{"category=footwear"},
			want: map[string]any{"category": "footwear"},
		},
		{
			name: "numeric value becomes float",
			raw:  []string{"price_max=120"},
			want: map[string]any{"price_max": float64(120)},
		},
		{
			name: "decimal value",
			raw:  []string{"rating_min=4.5"},
			want: map[string]any{"rating_min": 4.5},
		},
		{
			name: "multiple filters",
			raw:  []string{"category=audio", "price_max=200"},
			want: map[string]any{"category": "audio", "price_max": float64(200)},
		},
		{
			name: "whitespace trimmed",
			raw:  []string{"size = 10"},
			want: map[string]any{"size": float64(10)},
		},
		{
			name:    "missing equals",
			raw:     []string{"noequals"},
			wantErr: true,
		},
		{
			name:    "empty key",
			raw:     []string{"=value"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFilterFlags(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, curioerr.HasCode(err, curioerr.CodeCLIInputInvalid))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQueryCommand_PostsRequestAndFormats(t *testing.T) {
	testHome(t)

	var got struct {
		Query   string         `json:"query"`
		Filters map[string]any `json:"filters"`
		K       int            `json:"k"`
		Explain bool           `json:"explain"`
	}
	addr := testSetupGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/recommend", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"request_id": "req-1",
			"query": "running shoes",
			"items": [
				{"id": "sku-1", "category": "footwear", "price": 89.99, "description": "Lightweight trail runner", "similarity": 0.93, "score": 0.91, "position": 1},
				{"id": "sku-2", "category": "footwear", "price": 119.00, "description": "Cushioned road shoe", "similarity": 0.88, "score": 0.85, "position": 2}
			],
			"explanation": "Both picks favor lightweight cushioning for daily runs.",
			"explanation_status": "ok",
			"config_version": "v1",
			"duration_ms": 42
		}`))
	}))

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{
		"query", "running shoes",
		"--address", addr,
		"-f", "category=footwear",
		"-f", "price_max=120",
		"-k", "2",
		"--explain",
	})

	require.NoError(t, root.Execute())

	assert.Equal(t, "running shoes", got.Query)
	assert.Equal(t, "footwear", got.Filters["category"])
	assert.Equal(t, float64(120), got.Filters["price_max"])
	assert.Equal(t, 2, got.K)
	assert.True(t, got.Explain)

	output := buf.String()
	assert.Contains(t, output, "sku-1")
	assert.Contains(t, output, "sku-2")
	assert.Contains(t, output, "score=0.910")
	assert.Contains(t, output, "Both picks favor lightweight cushioning for daily runs.")
	assert.Contains(t, output, "2 result(s) in 42ms (config v1, request req-1)")
}

func TestQueryCommand_JSONOutput(t *testing.T) {
	testHome(t)

	addr := testSetupGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"request_id": "req-1", "query": "headphones", "items": [], "config_version": "v1", "duration_ms": 7}`))
	}))

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"query", "headphones", "--address", addr, "--json"})

	require.NoError(t, root.Execute())

	var resp recommendResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, "headphones", resp.Query)
}

func TestQueryCommand_NoResults(t *testing.T) {
	testHome(t)

	addr := testSetupGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"request_id": "req-2", "query": "x", "items": [], "config_version": "v1", "duration_ms": 3}`))
	}))

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"query", "x", "--address", addr})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), `No results for "x".`)
}

func TestQueryCommand_GatewayDown(t *testing.T) {
	testHome(t)

	root := NewRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"query", "anything", "--address", "127.0.0.1:1"})

	err := root.Execute()
	require.Error(t, err)
	assert.True(t, curioerr.HasCode(err, curioerr.CodeCLIGatewayNotRunning))
	assert.Contains(t, err.Error(), "run 'curio serve'")
}

func TestQueryCommand_InvalidFilter(t *testing.T) {
	testHome(t)

	root := NewRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"query", "shoes", "--address", "127.0.0.1:1", "-f", "bad"})

	err := root.Execute()
	require.Error(t, err)
	assert.True(t, curioerr.HasCode(err, curioerr.CodeCLIInputInvalid))
}

func TestQueryCommand_ServerError(t *testing.T) {
	testHome(t)

	addr := testSetupGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"title": "Bad Request", "detail": "filter field \"nope\" is not filterable"}`))
	}))

	root := NewRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"query", "shoes", "--address", addr})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway returned status 400")
	assert.Contains(t, err.Error(), `filter field "nope" is not filterable`)
}
