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

package mysql_driver

import (
	"database/sql"
	"database/sql/driver"

	"github.com/go-sql-driver/mysql"

	clusterDriver "clustersql/driver"
	"clustersql/driver_infrastructure"
)

type MySQLDriver struct {
	clusterSqlDriver clusterDriver.ClusterSqlDriver
}

func (d *MySQLDriver) Open(dsn string) (driver.Conn, error) {
	d.clusterSqlDriver.DriverDialect = driver_infrastructure.NewMySQLDriverDialect()
	d.clusterSqlDriver.UnderlyingDriver = &mysql.MySQLDriver{}
	return d.clusterSqlDriver.Open(dsn)
}

func ClearCaches() {
	clusterDriver.ClearCaches()
}

func init() {
	sql.Register(
		"clustersql-mysql",
		&MySQLDriver{})
}
