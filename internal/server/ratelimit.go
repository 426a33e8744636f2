// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate per IP. Zero disables limiting.
	RequestsPerSecond float64
	// Burst is the maximum burst size per IP.
	Burst int
	// MaxVisitors caps how many IPs are tracked at once; the sweep evicts the
	// oldest buckets above the cap. Zero applies the default of 10000.
	MaxVisitors int
}

// Validate checks the config and applies the MaxVisitors default.
func (c *RateLimitConfig) Validate() error {
	switch {
	case c.RequestsPerSecond < 0:
		return curioerr.Errorf(curioerr.CodeServerConfigInvalid,
			"rate limit requests per second must not be negative (got %g)",
			c.RequestsPerSecond)
	case c.RequestsPerSecond > 0 && c.Burst <= 0:
		return curioerr.Errorf(curioerr.CodeServerConfigInvalid,
			"rate limit burst must be positive when rate is set (got burst=%d, rate=%g)",
			c.Burst, c.RequestsPerSecond)
	case c.MaxVisitors < 0:
		return curioerr.Errorf(curioerr.CodeServerConfigInvalid,
			"rate limit max visitors must not be negative (got %d)", c.MaxVisitors)
	}
	if c.MaxVisitors == 0 {
		c.MaxVisitors = 10000
	}
	return nil
}

// bucket is one IP's token bucket. touched doubles as the refill anchor and
// the staleness marker: both advance on every request.
type bucket struct {
	tokens  float64
	touched time.Time
}

// ipLimiter tracks a token bucket per client IP.
type ipLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   float64
	maxIPs  int
}

func newIPLimiter(cfg RateLimitConfig) *ipLimiter {
	return &ipLimiter{
		buckets: make(map[string]*bucket),
		rate:    cfg.RequestsPerSecond,
		burst:   float64(cfg.Burst),
		maxIPs:  cfg.MaxVisitors,
	}
}

// allow refills ip's bucket for the elapsed time and takes one token. When
// the bucket is empty it returns false and the whole seconds to wait before
// the next token arrives, for the Retry-After header.
func (l *ipLimiter) allow(ip string, now time.Time) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{tokens: l.burst}
		l.buckets[ip] = b
	} else {
		b.tokens = min(l.burst, b.tokens+now.Sub(b.touched).Seconds()*l.rate)
	}
	b.touched = now

	if b.tokens < 1 {
		return false, int(math.Ceil((1 - b.tokens) / l.rate))
	}
	b.tokens--
	return true, 0
}

// sweep drops buckets idle past the threshold, then evicts the oldest
// remaining ones above the IP cap.
func (l *ipLimiter) sweep(now time.Time) {
	const idleThreshold = 10 * time.Minute

	l.mu.Lock()
	defer l.mu.Unlock()

	type aged struct {
		ip      string
		touched time.Time
	}
	live := make([]aged, 0, len(l.buckets))
	for ip, b := range l.buckets {
		if now.Sub(b.touched) > idleThreshold {
			delete(l.buckets, ip)
			continue
		}
		live = append(live, aged{ip: ip, touched: b.touched})
	}

	if l.maxIPs <= 0 || len(live) <= l.maxIPs {
		return
	}
	slices.SortFunc(live, func(a, b aged) int { return a.touched.Compare(b.touched) })
	evict := len(live) - l.maxIPs
	for _, e := range live[:evict] {
		delete(l.buckets, e.ip)
	}
	slog.Warn("rate limiter IP cap enforced",
		"evicted", evict, "max_visitors", l.maxIPs, "tracked", len(l.buckets))
}

// rateLimitMiddleware enforces per-IP request limits. A zero rate returns a
// pass-through middleware. The done channel stops the sweep goroutine on
// shutdown.
func rateLimitMiddleware(cfg RateLimitConfig, done <-chan struct{}) func(http.Handler) http.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	lim := newIPLimiter(cfg)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				lim.sweep(time.Now())
			case <-done:
				return
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Limit by IP, not by connection: several connections from
			// ephemeral ports on one host must share a single bucket.
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			ok, retryAfter := lim.allow(ip, time.Now())
			if !ok {
				slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.WriteHeader(http.StatusTooManyRequests)
				if _, err := w.Write([]byte(`{"error":"rate limit exceeded"}`)); err != nil {
					slog.Warn("failed to write rate limit response", "error", err)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
