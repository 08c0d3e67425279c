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

package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/weaver-engine/ap-engine/internal/secrets"
)

func TestNewRedacted_MasksRegisteredSecretInMessageAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	masker := secrets.NewMasker()
	masker.AddSecret("hunter2")

	logger := NewRedacted(&Config{Level: "info", Format: FormatJSON, Output: &buf}, masker)
	logger.Info("smtp login failed", String("password", "hunter2"))

	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Fatalf("expected secret to be masked, got: %s", out)
	}
	if !strings.Contains(out, "***") {
		t.Fatalf("expected mask marker in output, got: %s", out)
	}
}

func TestNewRedacted_SecretRegisteredAfterLoggerBuiltStillMasks(t *testing.T) {
	var buf bytes.Buffer
	masker := secrets.NewMasker()

	logger := NewRedacted(&Config{Level: "info", Format: FormatJSON, Output: &buf}, masker)
	masker.AddSecret("late-secret")
	logger.Info("connecting", String("token", "late-secret"))

	if strings.Contains(buf.String(), "late-secret") {
		t.Fatalf("expected secret registered after logger construction to still be masked, got: %s", buf.String())
	}
}

func TestNewRedacted_NilMaskerBehavesLikeNew(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRedacted(&Config{Level: "info", Format: FormatJSON, Output: &buf}, nil)
	logger.Info("hello")

	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("expected message to pass through unmasked, got: %s", buf.String())
	}
}

func TestNewRedacted_WithAttrsStillMasks(t *testing.T) {
	var buf bytes.Buffer
	masker := secrets.NewMasker()
	masker.AddSecret("carried-secret")

	logger := NewRedacted(&Config{Level: "info", Format: FormatJSON, Output: &buf}, masker).With("api_key", "carried-secret")
	logger.Info("request sent")

	if strings.Contains(buf.String(), "carried-secret") {
		t.Fatalf("expected attribute bound via With to be masked, got: %s", buf.String())
	}
}
