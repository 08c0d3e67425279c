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

package cliutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitError_Error(t *testing.T) {
	withCause := &ExitError{Code: ExitExecutionFailed, Message: "failed", Cause: errors.New("boom")}
	assert.Equal(t, "failed: boom", withCause.Error())

	withoutCause := &ExitError{Code: ExitNotFound, Message: "missing"}
	assert.Equal(t, "missing", withoutCause.Error())
}

func TestExitError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &ExitError{Code: ExitExecutionFailed, Cause: cause}
	assert.ErrorIs(t, err, cause)
}

func TestConstructors_Codes(t *testing.T) {
	assert.Equal(t, ExitExecutionFailed, NewExecutionError("x", nil).Code)
	assert.Equal(t, ExitInvalidRequest, NewInvalidRequestError("x", nil).Code)
	assert.Equal(t, ExitNotFound, NewNotFoundError("x", nil).Code)
	assert.Equal(t, ExitProviderError, NewProviderError("x", nil).Code)
}
