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

package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_PlainStringPassesThroughWhenDisabled(t *testing.T) {
	ev := New(false)
	out, err := ev.Render("plain text", Env{})
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)
}

func TestRender_DisabledRejectsReferences(t *testing.T) {
	ev := New(false)
	_, err := ev.Render("$(inputs.x)", Env{})
	require.ErrorIs(t, err, ErrDisabled)
}

func TestRender_InputsReference(t *testing.T) {
	ev := New(true)
	out, err := ev.Render("value=$(inputs.x)", Env{Inputs: map[string]any{"x": "hello"}})
	require.NoError(t, err)
	assert.Equal(t, "value=hello", out)
}

func TestRender_SelfAndRuntime(t *testing.T) {
	ev := New(true)
	out, err := ev.Render("$(self) in $(runtime.outdir)", Env{
		Self:    "result.txt",
		Runtime: Runtime{OutDir: "/work/out"},
	})
	require.NoError(t, err)
	assert.Equal(t, "result.txt in /work/out", out)
}

func TestEvaluate_UnknownIdentifierFails(t *testing.T) {
	ev := New(true)
	_, err := ev.Evaluate("inputs.missing.nested", Env{Inputs: map[string]any{}})
	require.Error(t, err)
}

func TestEvaluate_CachesCompiledProgram(t *testing.T) {
	ev := New(true)
	env := Env{Inputs: map[string]any{"n": 1}}
	_, err := ev.Evaluate("inputs.n", env)
	require.NoError(t, err)
	assert.Len(t, ev.cache, 1)
	_, err = ev.Evaluate("inputs.n", env)
	require.NoError(t, err)
	assert.Len(t, ev.cache, 1)
}

func TestBuiltinJoinAndSplit(t *testing.T) {
	ev := New(true)
	out, err := ev.Render(`$(join(split(inputs.csv, ","), "-"))`, Env{Inputs: map[string]any{"csv": "a,b,c"}})
	require.NoError(t, err)
	assert.Equal(t, "a-b-c", out)
}
