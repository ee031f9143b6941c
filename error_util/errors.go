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

import "errors"

type ClusterSqlErrorType int

const (
	GenericClusterSqlErrorType            ClusterSqlErrorType = 0
	UnsupportedStrategyErrorType          ClusterSqlErrorType = 1
	UnsupportedMethodErrorType            ClusterSqlErrorType = 2
	IllegalArgumentErrorType              ClusterSqlErrorType = 3
	LoginErrorType                        ClusterSqlErrorType = 4
	InternalQueryTimeoutErrorType         ClusterSqlErrorType = 5
	UnavailableHostErrorType              ClusterSqlErrorType = 6
	DsnParsingErrorType                   ClusterSqlErrorType = 7
	ConfigurationErrorType                ClusterSqlErrorType = 8
	FailoverSuccessErrorType              ClusterSqlErrorType = 300
	FailoverFailedErrorType               ClusterSqlErrorType = 301
	TransactionResolutionUnknownErrorType ClusterSqlErrorType = 302
)

type ClusterSqlError struct {
	Message   string
	ErrorType ClusterSqlErrorType
}

func (c *ClusterSqlError) Error() string {
	return c.Message
}

func (c *ClusterSqlError) IsType(errorType ClusterSqlErrorType) bool {
	return c.ErrorType == errorType
}

func (c *ClusterSqlError) IsFailoverErrorType() bool {
	return c.ErrorType >= 300
}

// IsType reports whether err is a ClusterSqlError of the given type.
func IsType(err error, errorType ClusterSqlErrorType) bool {
	var clusterSqlErr *ClusterSqlError
	if errors.As(err, &clusterSqlErr) {
		return clusterSqlErr.IsType(errorType)
	}
	return false
}

func NewGenericClusterSqlError(message string) *ClusterSqlError {
	return &ClusterSqlError{message, GenericClusterSqlErrorType}
}

func NewUnsupportedStrategyError(message string) *ClusterSqlError {
	return &ClusterSqlError{message, UnsupportedStrategyErrorType}
}

func NewUnsupportedMethodError(methodName string) *ClusterSqlError {
	return &ClusterSqlError{GetMessage("Conn.unsupportedMethodError", methodName), UnsupportedMethodErrorType}
}

func NewIllegalArgumentError(message string) *ClusterSqlError {
	return &ClusterSqlError{message, IllegalArgumentErrorType}
}

func NewLoginError(message string) *ClusterSqlError {
	return &ClusterSqlError{message, LoginErrorType}
}

func NewConfigurationError(message string) *ClusterSqlError {
	return &ClusterSqlError{message, ConfigurationErrorType}
}

func NewUnavailableHostError(host string) *ClusterSqlError {
	return &ClusterSqlError{GetMessage("HostMonitoringPlugin.unavailableHost", host), UnavailableHostErrorType}
}

func NewDsnParsingError(message string) *ClusterSqlError {
	return &ClusterSqlError{message, DsnParsingErrorType}
}

func NewFailoverFailedError(message string) *ClusterSqlError {
	return &ClusterSqlError{message, FailoverFailedErrorType}
}

var FailoverSuccessError = &ClusterSqlError{GetMessage("Failover.connectionChangedError"), FailoverSuccessErrorType}

var TransactionResolutionUnknownError = &ClusterSqlError{
	GetMessage("Failover.transactionResolutionUnknownError"),
	TransactionResolutionUnknownErrorType}

var InternalQueryTimeoutError = &ClusterSqlError{GetMessage("Failover.timeoutError"), InternalQueryTimeoutErrorType}

var ShouldNotBeCalledError = &ClusterSqlError{"Shouldn't be called.", GenericClusterSqlErrorType}

// ErrorHandler classifies driver errors so that failover and host monitoring
// can tell a dead network path apart from a rejected login.
type ErrorHandler interface {
	IsNetworkError(err error) bool
	IsLoginError(err error) bool
}
