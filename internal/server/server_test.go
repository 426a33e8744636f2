// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curio-dev/curio/internal/server"
	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// preflight sends a CORS preflight for POST /api/v1/recommend from origin.
func preflight(h http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/recommend", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_New(t *testing.T) {
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	assert.NotNil(t, srv.Handler())
	assert.NotNil(t, srv.API())
}

func TestServer_New_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     server.Config
		wantErr string
	}{
		{
			name:    "missing listen address",
			cfg:     server.Config{},
			wantErr: "listen address is required",
		},
		{
			name: "rate without burst",
			cfg: server.Config{
				ListenAddr: "127.0.0.1:0",
				RateLimit:  server.RateLimitConfig{RequestsPerSecond: 10},
			},
			wantErr: "burst",
		},
		{
			name: "unparsable trusted proxy",
			cfg: server.Config{
				ListenAddr:     "127.0.0.1:0",
				TrustedProxies: []string{"not-a-cidr"},
			},
			wantErr: "not-a-cidr",
		},
		{
			name: "wildcard CORS origin",
			cfg: server.Config{
				ListenAddr:  "127.0.0.1:0",
				CORSOrigins: []string{"*"},
			},
			wantErr: "CORS origin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := server.New(tt.cfg)
			require.Error(t, err)
			assert.True(t, curioerr.HasCode(err, curioerr.CodeServerConfigInvalid),
				"expected CodeServerConfigInvalid, got %s", curioerr.CodeOf(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestServer_HealthAndUnknownRoutes(t *testing.T) {
	srv := newTestServer(t, &server.Services{})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_OpenAPISpec(t *testing.T) {
	srv := newTestServer(t, &server.Services{})
	srv.RegisterConfigDeps(&server.ConfigDeps{})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/openapi.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "openapi")

	// The served document must describe the whole gateway surface.
	for _, want := range []string{
		"/api/v1/recommend",
		"/api/v1/items/{id}",
		"/api/v1/config/providers",
		"gateway-status",
	} {
		assert.Contains(t, rec.Body.String(), want)
	}
}

func TestServer_DefaultHeaders(t *testing.T) {
	srv := newTestServer(t, &server.Services{})
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
		"X-XSS-Protection":       "0",
	}
	for header, value := range want {
		assert.Equal(t, value, rec.Header().Get(header), header)
	}

	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"),
		"HSTS is opt-in; the gateway often runs behind plain HTTP on localhost")
}

func TestServer_HSTSWhenEnabled(t *testing.T) {
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0", EnableHSTS: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=")
}

func TestServer_CORS(t *testing.T) {
	srv, err := server.New(server.Config{
		ListenAddr:  "127.0.0.1:0",
		CORSOrigins: []string{"https://shop.example.com"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	rec := preflight(srv.Handler(), "https://shop.example.com")
	assert.Equal(t, "https://shop.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = preflight(srv.Handler(), "https://evil.example.com")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_CORSDeniedWithoutAllowlist(t *testing.T) {
	srv := newTestServer(t, &server.Services{})

	rec := preflight(srv.Handler(), "http://localhost:5173")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"),
		"no configured origins means no cross-origin access")
}

func TestServer_GracefulShutdown(t *testing.T) {
	srv := newTestServer(t, &server.Services{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	// Give the listener a moment, then cancel to trigger shutdown.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err, "cancelled context shuts down cleanly")
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down within timeout")
	}
}

func TestServer_CloseIsIdempotent(t *testing.T) {
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)

	require.NoError(t, srv.Close())
	require.NoError(t, srv.Close())
}
