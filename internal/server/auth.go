// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// publicPaths are reachable without credentials so probes and API tooling
// keep working when auth is enabled.
var publicPaths = map[string]bool{
	"/healthz":      true,
	"/openapi.json": true,
	"/openapi.yaml": true,
	"/docs":         true,
}

// authMiddleware enforces a static bearer token on every non-public route.
// An empty token disables authentication entirely.
func authMiddleware(token string) func(http.Handler) http.Handler {
	if token == "" {
		return func(next http.Handler) http.Handler { return next }
	}

	// Comparing fixed-size digests keeps the comparison constant-time even
	// when the presented token has a different length.
	want := sha256.Sum256([]byte(token))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				writeAuthError(w, "authorization header required")
				return
			}

			presented, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || presented == "" {
				writeAuthError(w, "authorization header must use the Bearer scheme")
				return
			}

			got := sha256.Sum256([]byte(presented))
			if subtle.ConstantTimeCompare(want[:], got[:]) != 1 {
				slog.Warn("rejected request with invalid token",
					"path", r.URL.Path,
					"remote", r.RemoteAddr,
				)
				writeAuthError(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if _, err := w.Write([]byte(`{"error":"` + msg + `"}`)); err != nil {
		slog.Warn("failed to write auth error response", "error", err)
	}
}
