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

package notify

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// scrypt cost parameters. N=1<<15 matches the library's own recommended
// interactive-login cost as of this writing; r/p are its documented
// defaults.
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 16
)

// HashNotificationEmail derives model.Job.NotificationEmailToken from a
// plaintext address supplied on an execute request, so the address
// itself is never persisted. The returned token embeds its own salt
// (self-describing, so no separate salt column is needed) in the form
// "<base64 salt>$<base64 derived key>".
func HashNotificationEmail(address string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("notify: generate salt: %w", err)
	}
	key, err := scrypt.Key([]byte(address), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("notify: derive token: %w", err)
	}
	return base64.RawStdEncoding.EncodeToString(salt) + "$" + base64.RawStdEncoding.EncodeToString(key), nil
}

// VerifyNotificationEmail reports whether address hashes to token,
// re-deriving the key with the salt embedded in token and comparing in
// constant time.
func VerifyNotificationEmail(token, address string) (bool, error) {
	saltPart, keyPart, ok := strings.Cut(token, "$")
	if !ok {
		return false, fmt.Errorf("notify: malformed token")
	}
	salt, err := base64.RawStdEncoding.DecodeString(saltPart)
	if err != nil {
		return false, fmt.Errorf("notify: decode salt: %w", err)
	}
	want, err := base64.RawStdEncoding.DecodeString(keyPart)
	if err != nil {
		return false, fmt.Errorf("notify: decode token: %w", err)
	}
	got, err := scrypt.Key([]byte(address), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return false, fmt.Errorf("notify: derive token: %w", err)
	}
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
