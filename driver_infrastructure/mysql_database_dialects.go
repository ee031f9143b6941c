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
	"context"
	"database/sql/driver"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"clustersql/error_util"
	"clustersql/host_info_util"
	"clustersql/utils"
)

var mysqlUseStatementPattern = regexp.MustCompile(`^(?i)use\s+(\w+)`)

type MySQLDatabaseDialect struct {
}

func (m *MySQLDatabaseDialect) GetDialectUpdateCandidates() []string {
	return []string{AURORA_MYSQL_DIALECT, RDS_MYSQL_DIALECT}
}

func (m *MySQLDatabaseDialect) GetDefaultPort() int {
	return 3306
}

func (m *MySQLDatabaseDialect) GetHostAliasQuery() string {
	return "SELECT CONCAT(@@hostname, ':', @@port)"
}

func (m *MySQLDatabaseDialect) GetServerVersionQuery() string {
	return "SHOW VARIABLES LIKE 'version_comment'"
}

func (m *MySQLDatabaseDialect) IsDialect(conn driver.Conn) bool {
	// Community MySQL reports a version_comment of "MySQL Community Server (GPL)",
	// RDS MySQL reports "Source distribution".
	row := utils.GetFirstRowFromQueryAsString(conn, m.GetServerVersionQuery())
	if len(row) > 1 && strings.Contains(row[1], "MySQL") {
		return true
	}
	return false
}

func (m *MySQLDatabaseDialect) GetHostListProvider(
	props map[string]string,
	initialDsn string,
	hostListProviderService HostListProviderService,
	stores *TopologyStores) HostListProvider {
	return HostListProvider(NewDsnHostListProvider(props, initialDsn, hostListProviderService))
}

func (m *MySQLDatabaseDialect) DoesStatementSetAutoCommit(statement string) (bool, bool) {
	lowercaseStatement := strings.ToLower(statement)
	if strings.HasPrefix(lowercaseStatement, "set autocommit") {
		sections := strings.Split(lowercaseStatement, "=")
		if len(sections) < 2 {
			return false, false
		}
		result, err := strconv.ParseBool(strings.TrimSpace(sections[1]))
		if err != nil {
			return false, false
		}
		return result, true
	}

	return false, false
}

func (m *MySQLDatabaseDialect) DoesStatementSetReadOnly(statement string) (bool, bool) {
	lowercaseStatement := strings.ToLower(statement)
	if strings.HasPrefix(lowercaseStatement, "set session transaction read only") {
		return true, true
	}

	if strings.HasPrefix(lowercaseStatement, "set session transaction read write") {
		return false, true
	}

	return false, false
}

func (m *MySQLDatabaseDialect) DoesStatementSetCatalog(statement string) (string, bool) {
	matches := mysqlUseStatementPattern.FindStringSubmatch(statement)
	if len(matches) < 2 {
		return "", false
	}
	return matches[1], true
}

func (m *MySQLDatabaseDialect) DoesStatementSetSchema(statement string) (string, bool) {
	return "", false
}

func (m *MySQLDatabaseDialect) DoesStatementSetTransactionIsolation(statement string) (TransactionIsolationLevel, bool) {
	lowercaseStatement := strings.ToLower(statement)
	if strings.Contains(lowercaseStatement, "set session transaction isolation level read uncommitted") {
		return TRANSACTION_READ_UNCOMMITTED, true
	}
	if strings.Contains(lowercaseStatement, "set session transaction isolation level read committed") {
		return TRANSACTION_READ_COMMITTED, true
	}
	if strings.Contains(lowercaseStatement, "set session transaction isolation level repeatable read") {
		return TRANSACTION_REPEATABLE_READ, true
	}
	if strings.Contains(lowercaseStatement, "set session transaction isolation level serializable") {
		return TRANSACTION_SERIALIZABLE, true
	}

	return TRANSACTION_READ_UNCOMMITTED, false
}

func (m *MySQLDatabaseDialect) GetSetAutoCommitQuery(autoCommit bool) (string, error) {
	return fmt.Sprintf("set autocommit=%v", autoCommit), nil
}

func (m *MySQLDatabaseDialect) GetSetReadOnlyQuery(readOnly bool) (string, error) {
	readOnlyStr := "only"
	if !readOnly {
		readOnlyStr = "write"
	}
	return fmt.Sprintf("set session transaction read %v", readOnlyStr), nil
}

func (m *MySQLDatabaseDialect) GetSetCatalogQuery(catalog string) (string, error) {
	return fmt.Sprintf("use %v", catalog), nil
}

func (m *MySQLDatabaseDialect) GetSetSchemaQuery(schema string) (string, error) {
	return "", error_util.NewGenericClusterSqlError(error_util.GetMessage("DatabaseDialect.setStateNotSupported", "SetSchema", fmt.Sprintf("%T", m)))
}

func (m *MySQLDatabaseDialect) GetSetTransactionIsolationQuery(level TransactionIsolationLevel) (string, error) {
	levelStr := ""
	switch level {
	case TRANSACTION_READ_UNCOMMITTED:
		levelStr = "READ UNCOMMITTED"
	case TRANSACTION_READ_COMMITTED:
		levelStr = "READ COMMITTED"
	case TRANSACTION_REPEATABLE_READ:
		levelStr = "REPEATABLE READ"
	case TRANSACTION_SERIALIZABLE:
		levelStr = "SERIALIZABLE"
	default:
		return "", error_util.NewGenericClusterSqlError(error_util.GetMessage("DatabaseDialect.invalidTransactionIsolationLevel", level))
	}
	return fmt.Sprintf("set session transaction isolation level %v", levelStr), nil
}

type RdsMySQLDatabaseDialect struct {
	MySQLDatabaseDialect
}

func (m *RdsMySQLDatabaseDialect) GetDialectUpdateCandidates() []string {
	return []string{AURORA_MYSQL_DIALECT}
}

func (m *RdsMySQLDatabaseDialect) IsDialect(conn driver.Conn) bool {
	row := utils.GetFirstRowFromQueryAsString(conn, m.GetServerVersionQuery())
	if len(row) > 1 && strings.Contains(row[1], "Source distribution") {
		return true
	}
	return false
}

type AuroraMySQLDatabaseDialect struct {
	RdsMySQLDatabaseDialect
}

func (m *AuroraMySQLDatabaseDialect) GetDialectUpdateCandidates() []string {
	return []string{}
}

func (m *AuroraMySQLDatabaseDialect) IsDialect(conn driver.Conn) bool {
	row := utils.GetFirstRowFromQueryAsString(conn, "SHOW VARIABLES LIKE 'aurora_version'")
	// The variable only exists on Aurora.
	return row != nil
}

func (m *AuroraMySQLDatabaseDialect) GetHostListProvider(
	props map[string]string,
	initialDsn string,
	hostListProviderService HostListProviderService,
	stores *TopologyStores) HostListProvider {
	return HostListProvider(NewClusterHostListProvider(hostListProviderService, m, props, initialDsn, stores))
}

func (m *AuroraMySQLDatabaseDialect) GetHostName(conn driver.Conn) string {
	res := utils.GetFirstRowFromQueryAsString(conn, "SELECT @@aurora_server_id")
	if len(res) > 0 {
		return res[0]
	}
	return ""
}

func (m *AuroraMySQLDatabaseDialect) GetWriterHostName(conn driver.Conn) (string, error) {
	hostIdQuery := "SELECT server_id " +
		"FROM information_schema.replica_host_status " +
		"WHERE SESSION_ID = 'MASTER_SESSION_ID' AND SERVER_ID = @@aurora_server_id"
	res := utils.GetFirstRowFromQueryAsString(conn, hostIdQuery)
	if res == nil {
		return "", error_util.NewGenericClusterSqlError(error_util.GetMessage("DatabaseDialect.writerHostUnknown"))
	}
	if len(res) > 0 {
		return res[0], nil
	}
	return "", nil
}

func (m *AuroraMySQLDatabaseDialect) GetHostRole(conn driver.Conn) host_info_util.HostRole {
	res := utils.GetFirstRowFromQuery(conn, "SELECT @@innodb_read_only")
	if len(res) > 0 {
		isReader, ok := res[0].(int64)
		if ok {
			if isReader == 1 {
				return host_info_util.READER
			}
			return host_info_util.WRITER
		}
	}

	return host_info_util.UNKNOWN
}

func (m *AuroraMySQLDatabaseDialect) GetTopology(conn driver.Conn, provider HostListProvider) ([]*host_info_util.HostInfo, error) {
	topologyQuery := "SELECT server_id, CASE WHEN SESSION_ID = 'MASTER_SESSION_ID' THEN TRUE ELSE FALSE END as is_writer, " +
		"cpu, REPLICA_LAG_IN_MILLISECONDS as 'lag', LAST_UPDATE_TIMESTAMP as last_update_timestamp " +
		"FROM information_schema.replica_host_status " +
		// Filter out hosts that haven't been updated in the last 5 minutes.
		"WHERE time_to_sec(timediff(now(), LAST_UPDATE_TIMESTAMP)) <= 300 OR SESSION_ID = 'MASTER_SESSION_ID' "

	queryerCtx, ok := conn.(driver.QueryerContext)
	if !ok {
		return nil, error_util.NewGenericClusterSqlError(error_util.GetMessage("Conn.doesNotImplementRequiredInterface", "driver.QueryerContext"))
	}

	rows, err := queryerCtx.QueryContext(context.Background(), topologyQuery, nil)
	if err != nil {
		return nil, err
	}

	hosts := []*host_info_util.HostInfo{}
	if rows == nil {
		return hosts, nil
	}
	defer rows.Close()

	row := make([]driver.Value, len(rows.Columns()))
	err = rows.Next(row)

	for err == nil && len(row) > 4 {
		hostNameAsBytes, ok1 := row[0].([]uint8)
		isWriterAsInt, ok2 := row[1].(int64)
		cpu, ok3 := row[2].(float64)
		lag, ok4 := row[3].(float64)
		lastUpdateTimeAsBytes, ok5 := row[4].([]uint8)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			// Unable to use information from row to create a host, try next row.
			err = rows.Next(row)
			continue
		}

		var lastUpdateTime time.Time
		if ok5 {
			lastUpdateTime, err = time.Parse("2006-01-02 15:04:05.999999", string(lastUpdateTimeAsBytes))
		}
		if !ok5 || err != nil {
			// Unable to get or convert last update time, use current time.
			lastUpdateTime = time.Now()
		}
		role := host_info_util.READER
		if isWriterAsInt == 1 {
			role = host_info_util.WRITER
		}
		hosts = append(hosts, provider.CreateHost(string(hostNameAsBytes), role, lag, cpu, lastUpdateTime))
		err = rows.Next(row)
	}
	return hosts, nil
}
