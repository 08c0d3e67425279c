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
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaver-engine/ap-engine/internal/model"
)

// fakeResolver maps a reference to a plaintext value, the shape a
// *secrets.Registry satisfies without importing that package here.
type fakeResolver map[string]string

func (f fakeResolver) Resolve(ctx context.Context, reference string) (string, error) {
	return f[reference], nil
}

func TestHTTPScheme_BearerAuth_ResolvesSecretReference(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	opts := model.DefaultRequestOptions()
	opts.Auth = &model.RequestAuth{Type: "bearer", Token: "env:PROVIDER_TOKEN"}
	resolver := fakeResolver{"env:PROVIDER_TOKEN": "resolved-secret"}

	scheme := NewHTTPSchemeWithSecrets(opts, resolver)
	uri, err := url.Parse(srv.URL)
	require.NoError(t, err)

	_, err = scheme.Fetch(context.Background(), uri, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "Bearer resolved-secret", gotAuth)
}

func TestHTTPScheme_BearerAuth_LiteralWithoutResolver(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	opts := model.DefaultRequestOptions()
	opts.Auth = &model.RequestAuth{Type: "bearer", Token: "literal-token"}

	scheme := NewHTTPScheme(opts)
	uri, err := url.Parse(srv.URL)
	require.NoError(t, err)

	_, err = scheme.Fetch(context.Background(), uri, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "Bearer literal-token", gotAuth)
}

func TestHTTPScheme_BasicAuth_ResolvesBothFields(t *testing.T) {
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	opts := model.DefaultRequestOptions()
	opts.Auth = &model.RequestAuth{Type: "basic", User: "file:/etc/user", Pass: "file:/etc/pass"}
	resolver := fakeResolver{"file:/etc/user": "alice", "file:/etc/pass": "hunter2"}

	scheme := NewHTTPSchemeWithSecrets(opts, resolver)
	uri, err := url.Parse(srv.URL)
	require.NoError(t, err)

	_, err = scheme.Fetch(context.Background(), uri, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "alice", gotUser)
	assert.Equal(t, "hunter2", gotPass)
}
