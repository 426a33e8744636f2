// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// defaultHTTPClient is the package-level HTTP client used by gateway commands.
// Overridden in tests via httptest.
var defaultHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

// gatewayClient provides HTTP access to a running Curio gateway.
type gatewayClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// newGatewayClient creates a client targeting the given host:port address.
// A non-empty token is sent as a bearer credential on every request.
func newGatewayClient(addr, token string) *gatewayClient {
	return &gatewayClient{
		baseURL: "http://" + addr,
		token:   token,
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET request and decodes the JSON response into dest.
func (c *gatewayClient) getJSON(path string, dest any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return curioerr.Errorf(curioerr.CodeCLIRequestFailure, "building request: %w", err)
	}
	return c.do(req, dest)
}

// postJSON performs a POST request with a JSON body and decodes the JSON
// response into dest.
func (c *gatewayClient) postJSON(path string, body, dest any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return curioerr.Errorf(curioerr.CodeCLIRequestFailure, "encoding request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return curioerr.Errorf(curioerr.CodeCLIRequestFailure, "building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dest)
}

func (c *gatewayClient) do(req *http.Request, dest any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isDialError(err) {
			return curioerr.Errorf(curioerr.CodeCLIGatewayNotRunning,
				"gateway is not running at %s (connection refused)", c.baseURL)
		}
		return curioerr.Errorf(curioerr.CodeCLIRequestFailure, "request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return curioerr.Errorf(curioerr.CodeCLIRequestFailure,
			"gateway returned status %d: %s", resp.StatusCode, summarizeErrorBody(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return curioerr.Errorf(curioerr.CodeCLIResponseInvalid, "invalid response: %w", err)
	}
	return nil
}

// summarizeErrorBody extracts the detail from an RFC 7807 problem body,
// falling back to the raw text.
func summarizeErrorBody(body []byte) string {
	var problem struct {
		Detail string `json:"detail"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(body, &problem); err == nil {
		if problem.Detail != "" {
			return problem.Detail
		}
		if problem.Title != "" {
			return problem.Title
		}
	}
	return string(body)
}

// isDialError returns true if err is a net dial error (connection refused, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
