// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/curio-dev/curio/internal/provider"
	"github.com/curio-dev/curio/internal/secrets"
	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// ProviderKeyValidator checks a candidate API key against its vendor before
// anything is stored. Tests substitute this to avoid real network probes.
type ProviderKeyValidator func(ctx context.Context, providerName provider.ProviderName, key string) error

// ConfigDeps holds dependencies for the configuration endpoints. Separated
// from Services because they need secret storage and a validation probe, not
// the pipeline services.
type ConfigDeps struct {
	Secrets          secrets.Store
	ValidateProvider ProviderKeyValidator
}

// DefaultProviderKeyValidator returns a ProviderKeyValidator that probes the
// real provider API.
func DefaultProviderKeyValidator(client *http.Client) ProviderKeyValidator {
	return func(ctx context.Context, providerName provider.ProviderName, key string) error {
		return provider.ValidateKey(ctx, client, providerName, key)
	}
}

// RegisterConfigDeps sets the configuration dependencies and registers the
// provider key endpoints.
func (s *Server) RegisterConfigDeps(deps *ConfigDeps) {
	s.configDeps = deps
	s.registerConfigRoutes()
}

// apiKeySuffix names provider key entries in the keyring: <provider>-api-key.
const apiKeySuffix = "-api-key"

type configureProviderInput struct {
	Body struct {
		Type   string `json:"type" doc:"Provider type" enum:"anthropic,openai,google" required:"true"`
		APIKey string `json:"api_key" doc:"Provider API key" minLength:"1" required:"true"`
	}
}

type configureProviderOutput struct {
	Body struct {
		Status   string `json:"status" doc:"Always ok on success" example:"ok"`
		Provider string `json:"provider" doc:"Provider the key was stored for"`
		Key      string `json:"key" doc:"Keyring URI the config can reference"`
	}
}

type providerKeyInfo struct {
	Provider string `json:"provider" doc:"Provider the key belongs to"`
	URI      string `json:"uri" doc:"Keyring URI the config can reference"`
}

type listProviderKeysOutput struct {
	Body struct {
		Keys []providerKeyInfo `json:"keys" doc:"Stored provider API keys, never their values"`
	}
}

func (s *Server) registerConfigRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "store-provider-key",
		Method:      http.MethodPost,
		Path:        "/api/v1/config/providers",
		Summary:     "Validate and store a provider API key",
		Tags:        []string{"config"},
		Errors:      []int{http.StatusBadRequest, http.StatusBadGateway, http.StatusServiceUnavailable},
	}, s.handleConfigureProvider)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-provider-keys",
		Method:      http.MethodGet,
		Path:        "/api/v1/config/providers",
		Summary:     "List stored provider API key names",
		Tags:        []string{"config"},
		Errors:      []int{http.StatusInternalServerError, http.StatusServiceUnavailable},
	}, s.handleListProviderKeys)
}

// handleConfigureProvider probes the key against the provider's API and, on
// success, stores it in the OS keyring where keyring:// config URIs resolve
// it. The key itself never lands in the YAML config.
func (s *Server) handleConfigureProvider(ctx context.Context, input *configureProviderInput) (*configureProviderOutput, error) {
	if s.configDeps == nil {
		slog.Error("config endpoint called but ConfigDeps not registered")
		return nil, huma.Error503ServiceUnavailable("provider key service not configured")
	}

	vendor := input.Body.Type
	if err := s.configDeps.ValidateProvider(ctx, provider.ProviderName(vendor), input.Body.APIKey); err != nil {
		if curioerr.HasCode(err, curioerr.CodeProviderKeyUnauthorized) {
			return nil, huma.Error400BadRequest(fmt.Sprintf("invalid %s API key", vendor))
		}
		slog.Error("provider key validation failed", "provider", vendor, "error", err)
		return nil, huma.Error502BadGateway(fmt.Sprintf("could not validate %s API key", vendor))
	}

	keyName := vendor + apiKeySuffix
	if err := s.configDeps.Secrets.Store(secrets.DefaultService, keyName, input.Body.APIKey); err != nil {
		slog.Error("failed to store provider key in keyring", "provider", vendor, "error", err)
		return nil, huma.Error500InternalServerError("could not store the key in the keyring")
	}

	uri := secrets.URI(secrets.DefaultService, keyName)
	slog.Info("provider API key configured", "provider", vendor, "uri", uri)

	out := &configureProviderOutput{}
	out.Body.Status = "ok"
	out.Body.Provider = vendor
	out.Body.Key = uri
	return out, nil
}

// handleListProviderKeys reports which provider keys are stored, as names and
// keyring URIs only. Key material is never returned over HTTP.
func (s *Server) handleListProviderKeys(_ context.Context, _ *struct{}) (*listProviderKeysOutput, error) {
	if s.configDeps == nil {
		slog.Error("config endpoint called but ConfigDeps not registered")
		return nil, huma.Error503ServiceUnavailable("provider key service not configured")
	}

	names, err := s.configDeps.Secrets.List(secrets.DefaultService)
	if err != nil {
		slog.Error("failed to list provider keys", "error", err)
		return nil, huma.Error500InternalServerError("failed to list provider keys")
	}

	keys := make([]providerKeyInfo, 0, len(names))
	for _, name := range names {
		vendor, ok := strings.CutSuffix(name, apiKeySuffix)
		if !ok {
			continue // unrelated keyring entry
		}
		keys = append(keys, providerKeyInfo{
			Provider: vendor,
			URI:      secrets.URI(secrets.DefaultService, name),
		})
	}
	slices.SortFunc(keys, func(a, b providerKeyInfo) int {
		return strings.Compare(a.Provider, b.Provider)
	})

	out := &listProviderKeysOutput{}
	out.Body.Keys = keys
	return out, nil
}
