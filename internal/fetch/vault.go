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
	"fmt"
	"net/url"
	"strings"
	"sync"

	vaultapi "github.com/hashicorp/vault/api"
)

// VaultLogical is the subset of the Vault client used for reading
// secret payloads, kept narrow so tests can substitute a fake.
type VaultLogical interface {
	ReadWithContext(ctx context.Context, path string) (*vaultapi.Secret, error)
}

// VaultScheme resolves vault:// references of the form
// vault://secret/data/path#field. Every reference is one-shot: once
// consumed, a second fetch of the same reference through the same
// VaultScheme (from any job) fails closed rather than re-reading the
// secret (spec.md §6, one-shot token consumption).
type VaultScheme struct {
	logical VaultLogical

	mu       sync.Mutex
	consumed map[string]bool
}

// NewVaultScheme wraps an already-authenticated Vault client's Logical
// API.
func NewVaultScheme(logical VaultLogical) *VaultScheme {
	return &VaultScheme{logical: logical, consumed: make(map[string]bool)}
}

func (s *VaultScheme) Fetch(ctx context.Context, uri *url.URL, destDir string) (Staged, error) {
	key := uri.String()
	s.mu.Lock()
	if s.consumed[key] {
		s.mu.Unlock()
		return Staged{}, fmt.Errorf("vault reference %s already consumed", key)
	}
	s.mu.Unlock()

	path := strings.TrimPrefix(uri.Path, "/")
	field := uri.Fragment

	secret, err := s.logical.ReadWithContext(ctx, path)
	if err != nil {
		return Staged{}, err
	}
	if secret == nil || secret.Data == nil {
		return Staged{}, fmt.Errorf("vault path %s returned no data", path)
	}

	value, err := extractField(secret.Data, field)
	if err != nil {
		return Staged{}, err
	}

	s.mu.Lock()
	s.consumed[key] = true
	s.mu.Unlock()

	return copyToFile(destDir, "secret", strings.NewReader(value), "text/plain")
}

func extractField(data map[string]any, field string) (string, error) {
	// KV v2 nests the actual secret under a "data" key.
	if nested, ok := data["data"].(map[string]any); ok {
		data = nested
	}
	if field == "" {
		if len(data) != 1 {
			return "", fmt.Errorf("vault secret has %d fields, a fragment field name is required", len(data))
		}
		for _, v := range data {
			return fmt.Sprintf("%v", v), nil
		}
	}
	v, ok := data[field]
	if !ok {
		return "", fmt.Errorf("vault secret has no field %q", field)
	}
	return fmt.Sprintf("%v", v), nil
}
