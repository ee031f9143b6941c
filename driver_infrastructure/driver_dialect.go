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

package driver_infrastructure

import (
	"database/sql/driver"

	"clustersql/host_info_util"
	"clustersql/utils"
)

var REQUIRED_METHODS = []string{
	utils.CONN_PREPARE,
	utils.CONN_PREPARE_CONTEXT,
	utils.CONN_CLOSE,
	utils.CONN_BEGIN,
	utils.CONN_BEGIN_TX,
	utils.CONN_QUERY_CONTEXT,
	utils.CONN_EXEC_CONTEXT,
	utils.CONN_PING,
	utils.CONN_IS_VALID,
	utils.CONN_RESET_SESSION,
	utils.CONN_CHECK_NAMED_VALUE,
	utils.STMT_CLOSE,
	utils.STMT_EXEC,
	utils.STMT_EXEC_CONTEXT,
	utils.STMT_NUM_INPUT,
	utils.STMT_QUERY,
	utils.STMT_QUERY_CONTEXT,
	utils.STMT_CHECK_NAMED_VALUE,
	utils.RESULT_LAST_INSERT_ID,
	utils.RESULT_ROWS_AFFECTED,
	utils.TX_COMMIT,
	utils.TX_ROLLBACK,
	utils.ROWS_CLOSE,
	utils.ROWS_COLUMNS,
	utils.ROWS_NEXT,
	utils.ROWS_COLUMN_TYPE_PRECISION_SCALE,
	utils.ROWS_COLUMN_TYPE_DATABASE_TYPE_NAME,
}

// DriverDialect adapts the wrapper to a specific target driver: how its DSN
// is formatted, which optional driver interfaces it implements, and how its
// errors are classified.
type DriverDialect interface {
	IsDialect(targetDriver driver.Driver) bool
	GetAllowedOnConnectionMethodNames() []string
	PrepareDsn(properties map[string]string, hostInfo *host_info_util.HostInfo) string
	IsNetworkError(err error) bool
	IsLoginError(err error) bool
	IsDriverRegistered(drivers map[string]driver.Driver) bool
	RegisterDriver()
}
