// Copyright 2025 The AP Engine Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cliutil holds the apengine command line's shared plumbing:
// the HTTP client that talks to a running apengined, the local bearer
// token cache backing "apengine auth", exit codes, and terminal
// styling. It is deliberately one package rather than a deeper
// internal/commands/<verb> layout, since this CLI has a dozen flat
// verbs against a single API rather than a larger command surface.
package cliutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/weaver-engine/ap-engine/internal/secrets"
)

// cliAuthTokenKey is the resolver key "apengine auth login/logout/status"
// store the cached bearer token under.
const cliAuthTokenKey = "cli/auth_token"

var (
	tokenResolverOnce sync.Once
	tokenResolver     *secrets.Resolver
)

// authTokenResolver lazily builds the backend chain behind the local
// token cache: the OS keychain when reachable, falling back to the
// encrypted file store (internal/secrets.FileBackend) when no keychain
// service is available, e.g. a headless CI runner with APENGINE_MASTER_KEY
// set instead.
func authTokenResolver() *secrets.Resolver {
	tokenResolverOnce.Do(func() {
		backends := []secrets.SecretBackend{secrets.NewKeychainBackend()}
		if fileBackend, err := secrets.NewFileBackend("", ""); err == nil {
			backends = append(backends, fileBackend)
		}
		tokenResolver = secrets.NewResolver(backends...)
	})
	return tokenResolver
}

// AuthToken returns the bearer token to attach to a daemon request:
// APENGINE_TOKEN when set, otherwise whatever "apengine auth login"
// cached locally. Returns "" if neither source has a token.
func AuthToken() string {
	if token := os.Getenv("APENGINE_TOKEN"); token != "" {
		return token
	}
	token, err := authTokenResolver().Get(context.Background(), cliAuthTokenKey)
	if err != nil {
		return ""
	}
	return token
}

// CacheAuthToken stores token in the local credential cache so later
// commands don't need APENGINE_TOKEN set. It returns the name of the
// backend the token landed in ("keychain" or "file").
func CacheAuthToken(token string) (string, error) {
	resolver := authTokenResolver()
	if err := resolver.Set(context.Background(), cliAuthTokenKey, token, ""); err != nil {
		return "", err
	}
	return CachedAuthTokenSource(), nil
}

// ClearCachedAuthToken removes any locally cached bearer token. It is a
// no-op, not an error, if nothing was cached.
func ClearCachedAuthToken() error {
	err := authTokenResolver().Delete(context.Background(), cliAuthTokenKey, "")
	if errors.Is(err, secrets.ErrSecretNotFound) {
		return nil
	}
	return err
}

// CachedAuthTokenSource reports which backend currently holds a cached
// token ("keychain", "file") or "" if none is cached.
func CachedAuthTokenSource() string {
	for _, backend := range authTokenResolver().Backends() {
		if _, err := backend.Get(context.Background(), cliAuthTokenKey); err == nil {
			return backend.Name()
		}
	}
	return ""
}

// resetAuthTokenResolver clears the cached resolver singleton so a test
// can rebuild it against a different APENGINE_MASTER_KEY/HOME.
func resetAuthTokenResolver() {
	tokenResolverOnce = sync.Once{}
	tokenResolver = nil
}

// BuildURL constructs a full apengined URL, sourcing the base address
// from APENGINE_URL (falling back to http://localhost:8080) and
// attaching query parameters.
func BuildURL(path string, params map[string]string) string {
	baseURL := os.Getenv("APENGINE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	u, err := url.Parse(baseURL + path)
	if err != nil {
		return baseURL + path
	}
	if len(params) > 0 {
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Request issues an HTTP request against apengined, attaching a bearer
// token (see AuthToken) and an extra header (e.g. Prefer:
// respond-async) when non-empty.
func Request(method, url string, body []byte, extraHeader, extraValue string) ([]byte, int, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := AuthToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if extraHeader != "" {
		req.Header.Set(extraHeader, extraValue)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}
