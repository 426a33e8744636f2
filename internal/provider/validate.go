// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package provider

import (
	"context"
	"io"
	"net/http"

	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// ProviderName identifies a supported vendor for key validation.
type ProviderName string

const (
	ProviderAnthropic ProviderName = "anthropic"
	ProviderOpenAI    ProviderName = "openai"
	ProviderGoogle    ProviderName = "google"
)

// authHeaders returns the header scheme a vendor expects for API-key auth.
// Google is absent: its API authenticates via query parameter only.
func authHeaders(p ProviderName, key string) map[string]string {
	switch p {
	case ProviderAnthropic:
		return map[string]string{
			"x-api-key":         key,
			"anthropic-version": "2023-06-01",
		}
	case ProviderOpenAI:
		return map[string]string{"Authorization": "Bearer " + key}
	default:
		return nil
	}
}

// endpointFor returns the vendor's models endpoint and auth headers for a key
// probe. The Google key rides in the URL and will therefore appear in HTTP
// proxy and CDN access logs; the API offers no header-based alternative.
func endpointFor(p ProviderName, key string) (string, map[string]string, error) {
	switch p {
	case ProviderAnthropic:
		return "https://api.anthropic.com/v1/models", authHeaders(p, key), nil
	case ProviderOpenAI:
		return "https://api.openai.com/v1/models", authHeaders(p, key), nil
	case ProviderGoogle:
		return "https://generativelanguage.googleapis.com/v1/models?key=" + key, nil, nil
	default:
		return "", nil, curioerr.Errorf(curioerr.CodeProviderNotFound, "unknown provider: %s", p)
	}
}

// probeKey issues the GET and classifies the response: 401/403 means the key
// is bad, any other 4xx/5xx means the upstream could not confirm it.
func probeKey(ctx context.Context, client *http.Client, p ProviderName, url string, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return curioerr.Errorf(curioerr.CodeProviderUpstreamFailure, "building validation request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return curioerr.Errorf(curioerr.CodeProviderUpstreamFailure, "validating %s key: %w", p, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return curioerr.Errorf(curioerr.CodeProviderKeyUnauthorized, "invalid %s API key (HTTP %d)", p, resp.StatusCode)
	case resp.StatusCode >= 400:
		return curioerr.Errorf(curioerr.CodeProviderUpstreamFailure, "%s validation failed (HTTP %d)", p, resp.StatusCode)
	}
	return nil
}

// ValidateKey makes a lightweight call to the provider's models endpoint to
// confirm the API key is valid.
func ValidateKey(ctx context.Context, client *http.Client, provider ProviderName, key string) error {
	url, headers, err := endpointFor(provider, key)
	if err != nil {
		return err
	}
	return probeKey(ctx, client, provider, url, headers)
}

// ValidateKeyWithURL is ValidateKey with an explicit endpoint, for tests and
// OpenAI-compatible gateways. An empty url falls back to the vendor default.
// Extra headers are merged over the vendor's auth scheme.
func ValidateKeyWithURL(ctx context.Context, client *http.Client, provider ProviderName, key, url string, headers map[string]string) error {
	if url == "" {
		return ValidateKey(ctx, client, provider, key)
	}

	merged := authHeaders(provider, key)
	if merged == nil {
		merged = make(map[string]string, len(headers))
	}
	for k, v := range headers {
		merged[k] = v
	}
	return probeKey(ctx, client, provider, url, merged)
}
