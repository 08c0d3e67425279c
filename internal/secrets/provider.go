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

package secrets

import (
	"context"
	"fmt"
)

// SecretProvider resolves a reference string into a plaintext secret value.
// Providers are registered with a scheme (env, file, keychain, plain) and
// are consulted by a Registry when a request-options auth entry or a
// notification credential carries a reference of that scheme.
type SecretProvider interface {
	// Scheme returns the provider's URI scheme identifier, e.g. "env", "file".
	Scheme() string

	// Resolve retrieves the secret value for the given reference.
	// The reference format is provider-specific: the env provider takes a
	// bare variable name, the file provider an absolute path. Implementations
	// must respect ctx cancellation and must not log the resolved value.
	Resolve(ctx context.Context, reference string) (string, error)
}

// SecretProviderRegistry routes a scheme-prefixed reference to the provider
// registered for that scheme.
type SecretProviderRegistry interface {
	Register(provider SecretProvider) error
	Resolve(ctx context.Context, reference string) (string, error)
	GetProvider(scheme string) SecretProvider
}

// ErrorCategory classifies a secret-resolution failure for remediation
// guidance in CLI/API error responses.
type ErrorCategory string

const (
	ErrorCategoryNotFound      ErrorCategory = "NOT_FOUND"
	ErrorCategoryAccessDenied  ErrorCategory = "ACCESS_DENIED"
	ErrorCategoryTimeout       ErrorCategory = "TIMEOUT"
	ErrorCategoryInvalidSyntax ErrorCategory = "INVALID_SYNTAX"
	ErrorCategoryCircularRef   ErrorCategory = "CIRCULAR_REF"
)

// SecretResolutionError is a sanitized error from a provider lookup: the
// reference is truncated so a log line or API response never leaks a path
// or key fragment long enough to reconstruct the original secret locator.
type SecretResolutionError struct {
	Category      ErrorCategory
	Reference     string
	Provider      string
	Message       string
	OriginalError error
}

func (e *SecretResolutionError) Error() string {
	return fmt.Sprintf("secret resolution failed (%s): %s (provider: %s, ref: %s)",
		e.Category, e.Message, e.Provider, e.Reference)
}

func (e *SecretResolutionError) Unwrap() error {
	return e.OriginalError
}

// CircularReferenceError indicates a request-options auth chain that
// resolves back into itself (e.g. an env provider referencing a file
// reference that in turn references the same env var).
type CircularReferenceError struct {
	Chain []string
}

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("circular secret reference detected: %v", e.Chain)
}

// TruncateReference shortens a secret reference for safe inclusion in an
// error message: enough to identify the scheme, never enough to leak the
// secret locator in full.
func TruncateReference(ref string) string {
	if len(ref) <= 8 {
		return "***"
	}
	if len(ref) > 20 {
		return ref[:8] + "***" + ref[len(ref)-4:]
	}
	return ref[:4] + "***" + ref[len(ref)-4:]
}

// NewSecretResolutionError builds a SecretResolutionError with its
// reference already truncated.
func NewSecretResolutionError(category ErrorCategory, reference, provider, message string, originalErr error) *SecretResolutionError {
	return &SecretResolutionError{
		Category:      category,
		Reference:     TruncateReference(reference),
		Provider:      provider,
		Message:       message,
		OriginalError: originalErr,
	}
}

// InheritEnvConfig controls whether the env provider may fall back to the
// process environment when resolving a request-options auth or
// notification-credential reference, and which variable names it may read.
// Accepts either a bare boolean or an object with an allowlist in YAML.
type InheritEnvConfig struct {
	Enabled   bool     `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Allowlist []string `yaml:"allowlist,omitempty" json:"allowlist,omitempty"`
}

// UnmarshalYAML accepts both `inherit_env: true` and the allowlist object form.
func (c *InheritEnvConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var boolValue bool
	if err := unmarshal(&boolValue); err == nil {
		c.Enabled = boolValue
		c.Allowlist = nil
		return nil
	}

	type plain InheritEnvConfig
	return unmarshal((*plain)(c))
}
