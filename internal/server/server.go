// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

// Package server exposes the recommendation pipeline and the item write path
// over HTTP. Routes are registered through huma so the OpenAPI document stays
// in lockstep with the handlers.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// Config carries the gateway's listener address and middleware settings.
type Config struct {
	ListenAddr string

	// AuthToken enables bearer authentication on /api routes when non-empty.
	AuthToken string

	CORSOrigins []string

	// TrustedProxies lists CIDR ranges whose X-Forwarded-For header is
	// honored. Empty means forwarded headers are ignored and the direct
	// peer address is used.
	TrustedProxies []string

	RateLimit RateLimitConfig

	// Version is reported by /api/v1/status and the OpenAPI document.
	// Empty defaults to "dev".
	Version string

	// CorpusBackend and IndexBackend name the configured storage backends
	// for the status endpoint.
	CorpusBackend string
	IndexBackend  string

	// EnableHSTS adds a Strict-Transport-Security header. Only enable when
	// the gateway terminates TLS or sits behind a TLS-terminating proxy.
	EnableHSTS bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server wraps a chi router with a huma API and an HTTP server.
type Server struct {
	router   chi.Router
	api      huma.API
	cfg      Config
	services *Services

	configDeps *ConfigDeps

	// done stops the rate limiter's cleanup goroutine on shutdown.
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a Server with routing middleware, CORS, optional bearer auth,
// optional per-IP rate limiting, and the health endpoint. API routes are
// added by RegisterServices.
func New(cfg Config) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, curioerr.New(curioerr.CodeServerConfigInvalid, "listen address is required")
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Explanation generation can hold a request open for its full
		// timeout, so the write window must comfortably exceed it.
		cfg.WriteTimeout = 60 * time.Second
	}
	if err := cfg.RateLimit.Validate(); err != nil {
		return nil, err
	}
	for _, origin := range cfg.CORSOrigins {
		// A wildcard origin combined with credentials would let any site
		// replay authenticated requests.
		if origin == "*" {
			return nil, curioerr.New(curioerr.CodeServerConfigInvalid,
				"wildcard CORS origin is not allowed; list origins explicitly")
		}
	}

	done := make(chan struct{})

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if len(cfg.TrustedProxies) > 0 {
		trusted, err := parseTrustedProxies(cfg.TrustedProxies)
		if err != nil {
			return nil, err
		}
		r.Use(trustedProxyRealIP(trusted))
	}
	r.Use(securityHeaders(cfg.EnableHSTS))
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware(cfg.RateLimit, done))
	r.Use(authMiddleware(cfg.AuthToken))

	humaConfig := huma.DefaultConfig("Curio Gateway", cfg.Version)
	humaConfig.Info.Description = "Retrieval-augmented recommendation gateway API"
	api := humachi.New(r, humaConfig)

	huma.Register(api, huma.Operation{
		OperationID: "healthz",
		Method:      http.MethodGet,
		Path:        "/healthz",
		Summary:     "Liveness check",
		Tags:        []string{"system"},
	}, handleHealthz)

	return &Server{
		router: r,
		api:    api,
		cfg:    cfg,
		done:   done,
	}, nil
}

// Handler exposes the routing tree, primarily for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API exposes the huma registry so callers can attach further operations.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources for servers that were never started.
// Safe to call more than once and after Start has returned.
func (s *Server) Close() error {
	s.stopOnce.Do(func() { close(s.done) })
	return nil
}

// Start listens on the configured address and serves until ctx is cancelled,
// then drains in-flight requests before returning.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopOnce.Do(func() { close(s.done) })

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return curioerr.Wrapf(err, curioerr.CodeServerStartFailure, "listening on %s", s.cfg.ListenAddr)
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return curioerr.Wrap(err, curioerr.CodeServerShutdownFailure, "shutting down")
	}

	return <-errCh
}

// HealthBody is the /healthz payload.
type HealthBody struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

// HealthResponse is the huma output wrapper for /healthz.
type HealthResponse struct {
	Body HealthBody
}

// handleHealthz answers liveness probes. It deliberately checks nothing:
// a 200 here means only that the process is up and serving.
func handleHealthz(_ context.Context, _ *struct{}) (*HealthResponse, error) {
	return &HealthResponse{Body: HealthBody{Status: "ok"}}, nil
}

// securityHeaders sets conservative browser-facing defaults on every
// response. The API serves JSON only, so framing and sniffing are denied
// outright and responses are never cached.
func securityHeaders(hsts bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Cache-Control", "no-store")
			h.Set("X-XSS-Protection", "0")
			if hsts {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		// Browser callers need to read the backoff hint on 429 responses.
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
