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

package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/weaver-engine/ap-engine/internal/model"
)

// SecretResolver resolves a request-options auth value that may carry a
// scheme-prefixed secret reference (env:VAR, file:/path) into
// its plaintext form. Implemented by *secrets.Registry; a nil resolver
// leaves auth values untouched, which is what every literal-credential
// deployment wants.
type SecretResolver interface {
	Resolve(ctx context.Context, reference string) (string, error)
}

// HTTPScheme resolves http:// and https:// references through a client
// built from a RequestOptions policy: bounded retries with exponential
// backoff, a connection-pooled transport, and optional auth headers.
type HTTPScheme struct {
	client   *http.Client
	opts     model.RequestOptions
	resolver SecretResolver
}

// NewHTTPScheme builds an HTTPScheme whose client applies opts to every
// request (retry budget, TLS verification, timeout, auth). Auth values
// are used as literal credentials; use NewHTTPSchemeWithSecrets to
// resolve scheme-prefixed references instead.
func NewHTTPScheme(opts model.RequestOptions) *HTTPScheme {
	return NewHTTPSchemeWithSecrets(opts, nil)
}

// NewHTTPSchemeWithSecrets is NewHTTPScheme with a SecretResolver
// consulted for every auth field before it is applied to a request.
func NewHTTPSchemeWithSecrets(opts model.RequestOptions, resolver SecretResolver) *HTTPScheme {
	base := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: !opts.VerifyTLS,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	transport := newRetryTransport(base, opts)

	return &HTTPScheme{
		client:   &http.Client{Transport: transport, Timeout: opts.Timeout},
		opts:     opts,
		resolver: resolver,
	}
}

func (s *HTTPScheme) Fetch(ctx context.Context, uri *url.URL, destDir string) (Staged, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), nil)
	if err != nil {
		return Staged{}, err
	}
	if err := s.applyAuth(ctx, req); err != nil {
		return Staged{}, fmt.Errorf("resolving auth for %s: %w", uri, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Staged{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Staged{}, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, uri)
	}

	base := path.Base(uri.Path)
	if base == "" || base == "." || base == "/" {
		base = "payload"
	}

	return copyToFile(destDir, base, resp.Body, resp.Header.Get("Content-Type"))
}

func (s *HTTPScheme) applyAuth(ctx context.Context, req *http.Request) error {
	auth := s.opts.Auth
	if auth == nil {
		return nil
	}
	switch auth.Type {
	case "basic":
		user, err := s.resolve(ctx, auth.User)
		if err != nil {
			return err
		}
		pass, err := s.resolve(ctx, auth.Pass)
		if err != nil {
			return err
		}
		req.SetBasicAuth(user, pass)
	case "bearer":
		token, err := s.resolve(ctx, auth.Token)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	case "header":
		if auth.Header != "" {
			value, err := s.resolve(ctx, auth.Value)
			if err != nil {
				return err
			}
			req.Header.Set(auth.Header, value)
		}
	}
	return nil
}

// resolve passes v through the configured SecretResolver, or returns it
// unchanged when no resolver is configured.
func (s *HTTPScheme) resolve(ctx context.Context, v string) (string, error) {
	if s.resolver == nil || v == "" {
		return v, nil
	}
	return s.resolver.Resolve(ctx, v)
}
