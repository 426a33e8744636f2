// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// parseTrustedProxies parses CIDR strings into networks. Blank entries are
// skipped; an invalid CIDR or an all-blank list is a configuration error.
func parseTrustedProxies(cidrs []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, curioerr.Errorf(curioerr.CodeServerConfigInvalid,
				"invalid trusted proxy CIDR %q: %w", cidr, err)
		}
		nets = append(nets, ipNet)
	}
	if len(nets) == 0 {
		return nil, curioerr.New(curioerr.CodeServerConfigInvalid,
			"trusted_proxies must contain at least one valid CIDR range")
	}
	return nets, nil
}

// isTrustedProxy reports whether ip falls inside any trusted range.
func isTrustedProxy(ip net.IP, trusted []*net.IPNet) bool {
	for _, n := range trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// trustedProxyRealIP rewrites r.RemoteAddr from X-Forwarded-For (or
// X-Real-IP) only when the direct peer is a trusted proxy. Forwarded headers
// from any other peer are ignored, so clients cannot spoof the address the
// rate limiter keys on.
func trustedProxyRealIP(trusted []*net.IPNet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			peer, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				// RemoteAddr may carry no port.
				peer = r.RemoteAddr
			}

			ip := net.ParseIP(peer)
			if ip == nil {
				slog.Warn("could not parse peer address, ignoring proxy headers",
					"remote_addr", r.RemoteAddr)
				next.ServeHTTP(w, r)
				return
			}
			if !isTrustedProxy(ip, trusted) {
				next.ServeHTTP(w, r)
				return
			}

			if client := forwardedClientIP(r); client != "" {
				r.RemoteAddr = client + ":0"
			}
			next.ServeHTTP(w, r)
		})
	}
}

// forwardedClientIP extracts the original client IP from proxy headers.
// X-Forwarded-For lists client first, then each proxy hop; the leftmost
// entry is the client. Returns "" when neither header holds a parseable IP.
func forwardedClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		client := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(client) != nil {
			return client
		}
		slog.Warn("invalid IP in X-Forwarded-For, keeping peer address", "xff", client)
		return ""
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}
	return ""
}
