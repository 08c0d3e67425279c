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

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInputs_LiteralsAndJSON(t *testing.T) {
	out, err := parseInputs([]string{"count=3", "name=hello", "flag=true"}, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(3), out["count"])
	assert.Equal(t, "hello", out["name"])
	assert.Equal(t, true, out["flag"])
}

func TestParseInputs_Refs(t *testing.T) {
	out, err := parseInputs(nil, []string{"data=s3://bucket/key"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"href": "s3://bucket/key"}, out["data"])
}

func TestParseInputs_MalformedLiteral(t *testing.T) {
	_, err := parseInputs([]string{"noequals"}, nil)
	assert.Error(t, err)
}

func TestParseInputs_MalformedRef(t *testing.T) {
	_, err := parseInputs(nil, []string{"noequals"})
	assert.Error(t, err)
}

func TestNewExecuteCommand_Flags(t *testing.T) {
	cmd := newExecuteCommand()
	assert.Equal(t, "execute <process-id>", cmd.Use)
	for _, name := range []string{"input", "input-ref", "wait", "async", "notification-email", "success-uri"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "--%s flag should be defined", name)
	}
}
