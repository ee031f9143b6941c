/*
  Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.

  Licensed under the Apache License, Version 2.0 (the "License").
  You may not use this file except in compliance with the License.
  You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

  Unless required by applicable law or agreed to in writing, software
  distributed under the License is distributed on an "AS IS" BASIS,
  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
  See the License for the specific language governing permissions and
  limitations under the License.
*/

package error_util

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsType(t *testing.T) {
	err := NewIllegalArgumentError("bad argument")

	assert.True(t, IsType(err, IllegalArgumentErrorType))
	assert.False(t, IsType(err, LoginErrorType))

	// Wrapped errors are still recognized.
	wrapped := fmt.Errorf("connect: %w", err)
	assert.True(t, IsType(wrapped, IllegalArgumentErrorType))

	assert.False(t, IsType(errors.New("plain error"), IllegalArgumentErrorType))
	assert.False(t, IsType(nil, IllegalArgumentErrorType))
}

func TestIsFailoverErrorType(t *testing.T) {
	assert.True(t, FailoverSuccessError.IsFailoverErrorType())
	assert.True(t, TransactionResolutionUnknownError.IsFailoverErrorType())
	assert.True(t, NewFailoverFailedError("failover failed").IsFailoverErrorType())
	assert.False(t, NewGenericClusterSqlError("generic").IsFailoverErrorType())
	assert.False(t, InternalQueryTimeoutError.IsFailoverErrorType())
}

func TestFailoverSentinelsDetectableWithErrorsIs(t *testing.T) {
	wrapped := fmt.Errorf("execute: %w", FailoverSuccessError)
	assert.True(t, errors.Is(wrapped, FailoverSuccessError))
	assert.True(t, IsType(wrapped, FailoverSuccessErrorType))
}

func TestGetMessageFormatsArguments(t *testing.T) {
	message := GetMessage("HostMonitoringPlugin.unavailableHost", "instance-1")
	assert.Contains(t, message, "instance-1")

	// Unknown ids resolve to an empty message rather than failing.
	assert.Equal(t, "", GetMessage("No.suchMessageId"))
}
