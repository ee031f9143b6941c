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
	"strings"
	"time"

	"clustersql/error_util"
	"clustersql/host_info_util"
	"clustersql/utils"
)

var pgSearchPathPattern = regexp.MustCompile(`(?i)set search_path( to |\s?=\s?)("?.+"?)`)

type PgDatabaseDialect struct {
}

func (p *PgDatabaseDialect) GetDialectUpdateCandidates() []string {
	return []string{AURORA_PG_DIALECT, RDS_PG_DIALECT}
}

func (p *PgDatabaseDialect) GetDefaultPort() int {
	return 5432
}

func (p *PgDatabaseDialect) GetHostAliasQuery() string {
	return "SELECT CONCAT(inet_server_addr(), ':', inet_server_port())"
}

func (p *PgDatabaseDialect) GetServerVersionQuery() string {
	return "SELECT 'version', VERSION()"
}

func (p *PgDatabaseDialect) IsDialect(conn driver.Conn) bool {
	row := utils.GetFirstRowFromQuery(conn, "SELECT 1 FROM pg_proc LIMIT 1")
	// If the pg_proc table exists then it's a PostgreSQL server.
	return row != nil
}

func (p *PgDatabaseDialect) GetHostListProvider(
	props map[string]string,
	initialDsn string,
	hostListProviderService HostListProviderService,
	stores *TopologyStores) HostListProvider {
	return HostListProvider(NewDsnHostListProvider(props, initialDsn, hostListProviderService))
}

func (p *PgDatabaseDialect) DoesStatementSetAutoCommit(_ string) (bool, bool) {
	return false, false
}

func (p *PgDatabaseDialect) DoesStatementSetReadOnly(statement string) (bool, bool) {
	lowercaseStatement := strings.ToLower(statement)
	if strings.HasPrefix(lowercaseStatement, "set session characteristics as transaction read only") {
		return true, true
	}

	if strings.HasPrefix(lowercaseStatement, "set session characteristics as transaction read write") {
		return false, true
	}

	return false, false
}

func (p *PgDatabaseDialect) DoesStatementSetCatalog(_ string) (string, bool) {
	return "", false
}

func (p *PgDatabaseDialect) DoesStatementSetSchema(statement string) (string, bool) {
	matches := pgSearchPathPattern.FindStringSubmatch(statement)
	if len(matches) < 3 {
		return "", false
	}
	schema := strings.TrimSpace(matches[2])
	if len(schema) > 1 && schema[0] == '"' && schema[len(schema)-1] == '"' {
		return schema[1 : len(schema)-1], true
	}
	return schema, true
}

func (p *PgDatabaseDialect) DoesStatementSetTransactionIsolation(statement string) (TransactionIsolationLevel, bool) {
	lowercaseStatement := strings.ToLower(statement)
	if strings.Contains(lowercaseStatement, "set session characteristics as transaction isolation level read uncommitted") {
		return TRANSACTION_READ_UNCOMMITTED, true
	}
	if strings.Contains(lowercaseStatement, "set session characteristics as transaction isolation level read committed") {
		return TRANSACTION_READ_COMMITTED, true
	}
	if strings.Contains(lowercaseStatement, "set session characteristics as transaction isolation level repeatable read") {
		return TRANSACTION_REPEATABLE_READ, true
	}
	if strings.Contains(lowercaseStatement, "set session characteristics as transaction isolation level serializable") {
		return TRANSACTION_SERIALIZABLE, true
	}

	return TRANSACTION_READ_UNCOMMITTED, false
}

func (p *PgDatabaseDialect) GetSetAutoCommitQuery(_ bool) (string, error) {
	return "", error_util.NewGenericClusterSqlError(error_util.GetMessage("DatabaseDialect.setStateNotSupported", "SetAutoCommit", fmt.Sprintf("%T", p)))
}

func (p *PgDatabaseDialect) GetSetReadOnlyQuery(readOnly bool) (string, error) {
	readOnlyStr := "only"
	if !readOnly {
		readOnlyStr = "write"
	}
	return fmt.Sprintf("set session characteristics as transaction read %v", readOnlyStr), nil
}

func (p *PgDatabaseDialect) GetSetCatalogQuery(_ string) (string, error) {
	return "", error_util.NewGenericClusterSqlError(error_util.GetMessage("DatabaseDialect.setStateNotSupported", "SetCatalog", fmt.Sprintf("%T", p)))
}

func (p *PgDatabaseDialect) GetSetSchemaQuery(schema string) (string, error) {
	if strings.Contains(schema, " ") && !strings.HasPrefix(schema, "\"") && !strings.HasSuffix(schema, "\"") {
		return fmt.Sprintf("set search_path to \"%v\"", schema), nil
	}
	return fmt.Sprintf("set search_path to %v", schema), nil
}

func (p *PgDatabaseDialect) GetSetTransactionIsolationQuery(level TransactionIsolationLevel) (string, error) {
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
	return fmt.Sprintf("set session characteristics as transaction isolation level %v", levelStr), nil
}

type RdsPgDatabaseDialect struct {
	PgDatabaseDialect
}

func (r *RdsPgDatabaseDialect) GetDialectUpdateCandidates() []string {
	return []string{AURORA_PG_DIALECT}
}

func (r *RdsPgDatabaseDialect) IsDialect(conn driver.Conn) bool {
	if !r.PgDatabaseDialect.IsDialect(conn) {
		return false
	}
	hasExtensions := utils.GetFirstRowFromQuery(
		conn,
		"SELECT (setting LIKE '%rds_tools%') AS rds_tools, (setting LIKE '%aurora_stat_utils%') AS aurora_stat_utils FROM pg_settings "+
			"WHERE name='rds.extensions'")
	// aurora_stat_utils means the server should be treated as Aurora, not plain RDS.
	return hasExtensions != nil && len(hasExtensions) > 1 && hasExtensions[0] == true && hasExtensions[1] == false
}

type AuroraPgDatabaseDialect struct {
	RdsPgDatabaseDialect
}

func (a *AuroraPgDatabaseDialect) GetDialectUpdateCandidates() []string {
	return []string{}
}

func (a *AuroraPgDatabaseDialect) IsDialect(conn driver.Conn) bool {
	if !a.PgDatabaseDialect.IsDialect(conn) {
		return false
	}
	hasExtensions := utils.GetFirstRowFromQuery(
		conn,
		"SELECT (setting LIKE '%aurora_stat_utils%') AS aurora_stat_utils FROM pg_settings WHERE name='rds.extensions'")
	hasTopology := utils.GetFirstRowFromQuery(conn, "SELECT 1 FROM aurora_replica_status() LIMIT 1")
	return hasExtensions != nil && len(hasExtensions) > 0 && hasExtensions[0] == true && hasTopology != nil
}

func (a *AuroraPgDatabaseDialect) GetHostListProvider(
	props map[string]string,
	initialDsn string,
	hostListProviderService HostListProviderService,
	stores *TopologyStores) HostListProvider {
	return HostListProvider(NewClusterHostListProvider(hostListProviderService, a, props, initialDsn, stores))
}

func (a *AuroraPgDatabaseDialect) GetHostName(conn driver.Conn) string {
	res := utils.GetFirstRowFromQuery(conn, "SELECT aurora_db_instance_identifier()")
	if len(res) > 0 {
		instanceId, ok := (res[0]).(string)
		if ok {
			return instanceId
		}
	}
	return ""
}

func (a *AuroraPgDatabaseDialect) GetWriterHostName(conn driver.Conn) (string, error) {
	hostIdQuery := "SELECT server_id " +
		"FROM aurora_replica_status() " +
		"WHERE SESSION_ID = 'MASTER_SESSION_ID' AND server_id = aurora_db_instance_identifier()"
	res := utils.GetFirstRowFromQueryAsString(conn, hostIdQuery)
	if res == nil {
		return "", error_util.NewGenericClusterSqlError(error_util.GetMessage("DatabaseDialect.writerHostUnknown"))
	}
	if len(res) > 0 {
		return res[0], nil
	}
	return "", nil
}

func (a *AuroraPgDatabaseDialect) GetHostRole(conn driver.Conn) host_info_util.HostRole {
	res := utils.GetFirstRowFromQuery(conn, "SELECT pg_is_in_recovery()")
	if len(res) > 0 {
		isReader, ok := (res[0]).(bool)
		if ok {
			if isReader {
				return host_info_util.READER
			}
			return host_info_util.WRITER
		}
	}
	return host_info_util.UNKNOWN
}

func (a *AuroraPgDatabaseDialect) GetTopology(conn driver.Conn, provider HostListProvider) ([]*host_info_util.HostInfo, error) {
	topologyQuery := "SELECT server_id, CASE WHEN SESSION_ID = 'MASTER_SESSION_ID' THEN TRUE ELSE FALSE END AS is_writer, " +
		"CPU, COALESCE(REPLICA_LAG_IN_MSEC, 0) AS lag, LAST_UPDATE_TIMESTAMP " +
		"FROM aurora_replica_status() " +
		// Filter out hosts that haven't been updated in the last 5 minutes.
		"WHERE EXTRACT(EPOCH FROM(NOW() - LAST_UPDATE_TIMESTAMP)) <= 300 OR SESSION_ID = 'MASTER_SESSION_ID' " +
		"OR LAST_UPDATE_TIMESTAMP IS NULL"

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
		hostName, ok1 := row[0].(string)
		isWriter, ok2 := row[1].(bool)
		cpu, ok3 := row[2].(float64)
		lag, ok4 := row[3].(float64)
		lastUpdateTime, ok5 := row[4].(time.Time)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			// Unable to use information from row to create a host, try next row.
			err = rows.Next(row)
			continue
		}
		if !ok5 {
			// Not able to get last update time, use current time.
			lastUpdateTime = time.Now()
		}
		hostRole := host_info_util.READER
		if isWriter {
			hostRole = host_info_util.WRITER
		}
		hosts = append(hosts, provider.CreateHost(hostName, hostRole, lag, cpu, lastUpdateTime))
		err = rows.Next(row)
	}
	return hosts, nil
}
