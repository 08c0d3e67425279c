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

/*
Package secrets resolves secret references, caches them per job, caches a
CLI auth token locally, and masks secret-shaped values out of logs. It is
four subsystems sharing one package rather than one system:

# Scheme-prefixed resolution

SecretProvider/SecretProviderRegistry (provider.go, registry.go) resolve
"scheme:reference" strings such as "env:API_KEY" or "file:/run/secrets/key"
against a registered provider for that scheme (env_provider.go,
file_provider.go, keychain_provider.go). This is the resolution path
request-options auth (internal/fetch) and the daemon's SMTP credentials
(cmd/apengined) use:

	registry := secrets.NewRegistry()
	registry.Register(secrets.NewEnvProvider(secrets.InheritEnvConfig{}))
	value, err := registry.Resolve(ctx, "env:SMTP_PASSWORD")

# Per-job cache

Cache (cache.go) wraps a SecretProviderRegistry with an in-memory,
per-run-ID cache so a job that dereferences the same secret reference
many times (e.g. retried HTTP fetches) only resolves it once. CacheResolver
(runcache.go) adapts Cache to the single-argument Resolve signature
internal/fetch expects, reading the run ID off the context via
ContextWithRunID/RunIDFromContext. internal/dispatch clears a job's bucket
(Cache.Clear) when its run completes.

# Local credential store

SecretBackend (backend.go) is a lower-level, non-scheme-prefixed
key/value store — EnvBackend, KeychainBackend (backed by an OS keychain
via go-keyring), and FileBackend (AES-256-GCM encrypted file) each
implement it. Resolver (resolver.go) aggregates backends by priority,
querying the highest-priority available backend first. cmd/apengine's
"auth" command (login/logout/status) is the one consumer: it caches the
daemon's bearer token in the keychain or encrypted file rather than
requiring APENGINE_TOKEN on every invocation.

	type SecretBackend interface {
	    Name() string
	    Priority() int
	    Available() bool
	    Get(ctx context.Context, key string) (string, error)
	    Set(ctx context.Context, key, value string) error
	    Delete(ctx context.Context, key string) error
	    List(ctx context.Context) ([]string, error)
	}

# Masking

Masker (masker.go) redacts registered secret values and
pattern-matched environment variables (names ending in _TOKEN, _SECRET,
_KEY, _PASSWORD, _PASS, or _PWD) out of arbitrary strings. internal/log's RedactingHandler wraps
an slog.Handler with a Masker so any value registered via AddSecret is
scrubbed from every subsequent log line.

# Errors

Common errors:

  - ErrSecretNotFound: the reference or key doesn't exist in any
    provider/backend consulted
  - ErrBackendUnavailable: no backend in a Resolver's chain is available
*/
package secrets
