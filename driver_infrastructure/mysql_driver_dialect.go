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
	"database/sql"
	"database/sql/driver"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"clustersql/error_util"
	"clustersql/host_info_util"
	"clustersql/property_util"
	"clustersql/utils"
)

const (
	MYSQL_DRIVER_CLASS_NAME        = "mysql.MySQLDriver"
	MYSQL_DRIVER_REGISTRATION_NAME = "mysql"
)

type MySQLDriverDialect struct {
	errorHandler error_util.ErrorHandler
}

func NewMySQLDriverDialect() *MySQLDriverDialect {
	return &MySQLDriverDialect{errorHandler: MySQLErrorHandler{}}
}

func (m MySQLDriverDialect) IsDialect(targetDriver driver.Driver) bool {
	typeName := reflect.TypeOf(targetDriver).String()
	return typeName == MYSQL_DRIVER_CLASS_NAME || typeName == "*"+MYSQL_DRIVER_CLASS_NAME
}

func (m MySQLDriverDialect) GetAllowedOnConnectionMethodNames() []string {
	return append(REQUIRED_METHODS,
		utils.ROWS_HAS_NEXT_RESULT_SET,
		utils.ROWS_NEXT_RESULT_SET,
		utils.ROWS_COLUMN_TYPE_SCAN_TYPE,
		utils.ROWS_COLUMN_TYPE_NULLABLE)
}

func (m MySQLDriverDialect) IsNetworkError(err error) bool {
	return m.errorHandler.IsNetworkError(err)
}

func (m MySQLDriverDialect) IsLoginError(err error) bool {
	return m.errorHandler.IsLoginError(err)
}

func (m MySQLDriverDialect) IsDriverRegistered(drivers map[string]driver.Driver) bool {
	for driverName := range drivers {
		if driverName == MYSQL_DRIVER_REGISTRATION_NAME {
			return true
		}
	}
	return false
}

func (m MySQLDriverDialect) RegisterDriver() {
	sql.Register(MYSQL_DRIVER_REGISTRATION_NAME, &mysql.MySQLDriver{})
}

func (m MySQLDriverDialect) PrepareDsn(properties map[string]string, hostInfo *host_info_util.HostInfo) string {
	var builder strings.Builder

	username := properties[property_util.USER.Name]
	password := properties[property_util.PASSWORD.Name]
	address := properties[property_util.HOST.Name]
	database := properties[property_util.DATABASE.Name]
	net := properties[property_util.NET.Name]
	port := properties[property_util.PORT.Name]

	if !hostInfo.IsNil() {
		address = hostInfo.Host
		if hostInfo.IsPortSpecified() {
			port = strconv.Itoa(hostInfo.Port)
		}
	}

	if username != "" {
		if password != "" {
			password = ":" + password
		}
		builder.WriteString(fmt.Sprintf("%s%s@", username, password))
	}

	if net != "" {
		builder.WriteString(net)
	}

	if address != "" {
		if port != "" {
			port = ":" + port
		}
		builder.WriteString(fmt.Sprintf("(%s%s)", address, port))
	}

	builder.WriteString("/")

	if database != "" {
		builder.WriteString(url.PathEscape(database))
	}

	var params strings.Builder
	copyProps := property_util.RemoveInternalClusterSqlProperties(properties)
	for k, v := range copyProps {
		if !property_util.ALL_CLUSTER_SQL_PROPERTIES[k] {
			if params.Len() != 0 {
				params.WriteString("&")
			}
			params.WriteString(fmt.Sprintf("%s=%s", k, v))
		}
	}

	if params.Len() != 0 {
		builder.WriteString(fmt.Sprintf("?%s", params.String()))
	}
	return builder.String()
}
