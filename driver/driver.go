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

package driver

import (
	"context"
	"database/sql/driver"
	"errors"
	"log/slog"
	"reflect"

	"clustersql/driver_infrastructure"
	"clustersql/error_util"
	"clustersql/plugin_helpers"
	"clustersql/property_util"
	"clustersql/services"
	"clustersql/utils"
)

// ClusterSqlDriver wraps a target driver with cluster awareness. Every
// database/sql call is routed through the plugin chain, so the failover and
// efm plugins see each network bound method before the target driver does.
type ClusterSqlDriver struct {
	DriverDialect    driver_infrastructure.DriverDialect
	UnderlyingDriver driver.Driver
	Services         *services.Services
}

func (d *ClusterSqlDriver) Open(dsn string) (driver.Conn, error) {
	if d.UnderlyingDriver == nil || d.DriverDialect == nil {
		return nil, error_util.NewGenericClusterSqlError(error_util.GetMessage("Driver.missingUnderlyingDriverOrDialect"))
	}

	props, parseErr := utils.ParseDsn(dsn)
	if parseErr != nil {
		return nil, parseErr
	}
	slog.Debug(error_util.GetMessage("Driver.initializingDatabaseHandle", property_util.MaskProperties(props)))

	sharedServices := d.Services
	if sharedServices == nil {
		sharedServices = services.DefaultServices()
	}

	defaultConnProvider := driver_infrastructure.NewDriverConnectionProvider(d.UnderlyingDriver)
	connectionProviderManager := driver_infrastructure.ConnectionProviderManager{DefaultProvider: defaultConnProvider}

	pluginManager := plugin_helpers.NewPluginManagerImpl(d.UnderlyingDriver, props, connectionProviderManager)
	pluginServiceImpl, err := plugin_helpers.NewPluginServiceImpl(pluginManager, d.DriverDialect, sharedServices.TopologyStores, props, dsn)
	if err != nil {
		return nil, err
	}
	pluginService := driver_infrastructure.PluginService(pluginServiceImpl)

	pluginChainBuilder := ConnectionPluginChainBuilder{}
	currentPlugins, err := pluginChainBuilder.GetPlugins(pluginService, pluginManager, sharedServices, props)
	if err != nil {
		return nil, err
	}

	err = pluginManager.Init(pluginService, currentPlugins)
	if err != nil {
		return nil, err
	}

	hostListProviderService := driver_infrastructure.HostListProviderService(pluginServiceImpl)
	provider := hostListProviderService.CreateHostListProvider(props)
	hostListProviderService.SetHostListProvider(provider)

	err = pluginManager.InitHostProvider(props, hostListProviderService)
	if err != nil {
		return nil, err
	}

	refreshErr := pluginService.RefreshHostList(nil)
	if refreshErr != nil {
		return nil, refreshErr
	}

	dbEngine, dbEngineErr := GetDatabaseEngine(props)
	if dbEngineErr != nil {
		return nil, dbEngineErr
	}

	conn := pluginService.GetCurrentConnection()
	if conn == nil {
		var connErr error
		conn, connErr = pluginManager.Connect(pluginService.GetInitialConnectionHostInfo(), pluginService.GetProperties(), true, nil)
		if connErr != nil {
			return nil, connErr
		}

		if conn == nil {
			return nil, error_util.NewGenericClusterSqlError(error_util.GetMessage("Driver.connectionNotOpen"))
		}

		err = pluginService.SetCurrentConnection(conn, pluginService.GetInitialConnectionHostInfo(), nil)
		if err != nil {
			return nil, err
		}

		refreshErr = pluginService.RefreshHostList(conn)
		if refreshErr != nil {
			return nil, refreshErr
		}
	}

	return NewClusterSqlConn(pluginManager, pluginService, dbEngine), nil
}

// ClearCaches cleans up all long standing shared state. To be called at the
// end of the program, not each time a Conn is closed.
func ClearCaches() {
	services.DefaultServices().ClearCaches()
}

type ClusterSqlConn struct {
	pluginManager driver_infrastructure.PluginManager
	pluginService driver_infrastructure.PluginService
	engine        driver_infrastructure.DatabaseEngine
}

func NewClusterSqlConn(
	pluginManager driver_infrastructure.PluginManager,
	pluginService driver_infrastructure.PluginService,
	engine driver_infrastructure.DatabaseEngine) *ClusterSqlConn {
	return &ClusterSqlConn{pluginManager, pluginService, engine}
}

func (c *ClusterSqlConn) Prepare(query string) (driver.Stmt, error) {
	prepareFunc := func() (any, any, bool, error) {
		result, err := c.pluginService.GetCurrentConnection().Prepare(query)
		return result, nil, false, err
	}
	return prepareWithPlugins(c.pluginService.GetCurrentConnection(), c.pluginManager, utils.CONN_PREPARE, prepareFunc, *c, query)
}

func (c *ClusterSqlConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	prepareFunc := func() (any, any, bool, error) {
		prepareCtx, ok := c.pluginService.GetCurrentConnection().(driver.ConnPrepareContext)
		if !ok {
			return nil, nil, false, errors.New(error_util.GetMessage("Conn.doesNotImplementRequiredInterface", "driver.ConnPrepareContext"))
		}
		result, err := prepareCtx.PrepareContext(ctx, query)
		return result, nil, false, err
	}
	return prepareWithPlugins(c.pluginService.GetCurrentConnection(), c.pluginManager, utils.CONN_PREPARE_CONTEXT, prepareFunc, *c, query)
}

func (c *ClusterSqlConn) Close() error {
	closeFunc := func() (any, any, bool, error) { return nil, nil, false, c.pluginService.GetCurrentConnection().Close() }
	_, _, _, err := ExecuteWithPlugins(c.pluginService.GetCurrentConnection(), c.pluginManager, utils.CONN_CLOSE, closeFunc)
	pluginManager, ok := c.pluginManager.(driver_infrastructure.CanReleaseResources)
	if ok {
		pluginManager.ReleaseResources()
	}
	return err
}

func (c *ClusterSqlConn) Begin() (driver.Tx, error) {
	beginFunc := func() (any, any, bool, error) {
		result, err := c.pluginService.GetCurrentConnection().Begin() //nolint:all
		return result, nil, false, err
	}
	return beginWithPlugins(c.pluginService.GetCurrentConnection(), c.pluginManager, c.pluginService, utils.CONN_BEGIN, beginFunc)
}

func (c *ClusterSqlConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	beginFunc := func() (any, any, bool, error) {
		beginTx, ok := c.pluginService.GetCurrentConnection().(driver.ConnBeginTx)
		if !ok {
			return nil, nil, false, errors.New(error_util.GetMessage("Conn.doesNotImplementRequiredInterface", "driver.ConnBeginTx"))
		}
		result, err := beginTx.BeginTx(ctx, opts)
		return result, nil, false, err
	}
	return beginWithPlugins(c.pluginService.GetCurrentConnection(), c.pluginManager, c.pluginService, utils.CONN_BEGIN_TX, beginFunc)
}

func (c *ClusterSqlConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	queryFunc := func() (any, any, bool, error) {
		queryerCtx, ok := c.pluginService.GetCurrentConnection().(driver.QueryerContext)
		if !ok {
			return nil, nil, false, errors.New(error_util.GetMessage("Conn.doesNotImplementRequiredInterface", "driver.QueryerContext"))
		}
		result, err := queryerCtx.QueryContext(ctx, query, args)
		return result, nil, false, err
	}
	return queryWithPlugins(c.pluginService.GetCurrentConnection(), c.pluginManager, utils.CONN_QUERY_CONTEXT, queryFunc, c.engine, query)
}

func (c *ClusterSqlConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	execFunc := func() (any, any, bool, error) {
		execerCtx, ok := c.pluginService.GetCurrentConnection().(driver.ExecerContext)
		if !ok {
			return nil, nil, false, errors.New(error_util.GetMessage("Conn.doesNotImplementRequiredInterface", "driver.ExecerContext"))
		}
		result, err := execerCtx.ExecContext(ctx, query, args)
		return result, nil, false, err
	}
	return execWithPlugins(c.pluginService.GetCurrentConnection(), c.pluginManager, utils.CONN_EXEC_CONTEXT, execFunc, query)
}

func (c *ClusterSqlConn) Ping(ctx context.Context) error {
	pingFunc := func() (any, any, bool, error) {
		pinger, ok := c.pluginService.GetCurrentConnection().(driver.Pinger)
		if !ok {
			return nil, nil, false, errors.New(error_util.GetMessage("Conn.doesNotImplementRequiredInterface", "driver.Pinger"))
		}
		return nil, nil, false, pinger.Ping(ctx)
	}
	_, _, _, err := ExecuteWithPlugins(c.pluginService.GetCurrentConnection(), c.pluginManager, utils.CONN_PING, pingFunc)
	return err
}

func (c *ClusterSqlConn) IsValid() bool {
	isValidFunc := func() (any, any, bool, error) {
		validator, ok := c.pluginService.GetCurrentConnection().(driver.Validator)
		if ok {
			return nil, nil, validator.IsValid(), nil
		}
		return nil, nil, true, nil
	}
	_, _, result, _ := ExecuteWithPlugins(c.pluginService.GetCurrentConnection(), c.pluginManager, utils.CONN_IS_VALID, isValidFunc)
	return result
}

func (c *ClusterSqlConn) ResetSession(ctx context.Context) error {
	resetSessionFunc := func() (any, any, bool, error) {
		resetter, ok := c.pluginService.GetCurrentConnection().(driver.SessionResetter)
		if !ok {
			return nil, nil, false, errors.New(error_util.GetMessage("Conn.doesNotImplementRequiredInterface", "driver.SessionResetter"))
		}
		return nil, nil, false, resetter.ResetSession(ctx)
	}
	_, _, _, err := ExecuteWithPlugins(c.pluginService.GetCurrentConnection(), c.pluginManager, utils.CONN_RESET_SESSION, resetSessionFunc)
	return err
}

func (c *ClusterSqlConn) CheckNamedValue(val *driver.NamedValue) error {
	checkNamedValueFunc := func() (any, any, bool, error) {
		namedValueChecker, ok := c.pluginService.GetCurrentConnection().(driver.NamedValueChecker)
		if !ok {
			return nil, nil, false, errors.New(error_util.GetMessage("Conn.doesNotImplementRequiredInterface", "driver.NamedValueChecker"))
		}
		return nil, nil, false, namedValueChecker.CheckNamedValue(val)
	}
	_, _, _, err := ExecuteWithPlugins(c.pluginService.GetCurrentConnection(), c.pluginManager, utils.CONN_CHECK_NAMED_VALUE, checkNamedValueFunc)
	return err
}

type ClusterSqlStmt struct {
	underlyingConn driver.Conn
	underlyingStmt driver.Stmt
	pluginManager  driver_infrastructure.PluginManager
	conn           ClusterSqlConn
}

func (s *ClusterSqlStmt) Close() error {
	closeFunc := func() (any, any, bool, error) { return nil, nil, false, s.underlyingStmt.Close() }
	_, _, _, err := ExecuteWithPlugins(s.underlyingConn, s.pluginManager, utils.STMT_CLOSE, closeFunc)
	return err
}

func (s *ClusterSqlStmt) Exec(args []driver.Value) (driver.Result, error) {
	execFunc := func() (any, any, bool, error) {
		result, err := s.underlyingStmt.Exec(args) //nolint:all
		return result, nil, false, err
	}
	return execWithPlugins(s.underlyingConn, s.pluginManager, utils.STMT_EXEC, execFunc)
}

func (s *ClusterSqlStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	execerCtx, ok := s.underlyingStmt.(driver.StmtExecContext)
	if !ok {
		return nil, errors.New(error_util.GetMessage("Stmt.underlyingStmtDoesNotImplementRequiredInterface", "driver.StmtExecContext"))
	}
	execFunc := func() (any, any, bool, error) {
		result, err := execerCtx.ExecContext(ctx, args)
		return result, nil, false, err
	}
	return execWithPlugins(s.underlyingConn, s.pluginManager, utils.STMT_EXEC_CONTEXT, execFunc)
}

func (s *ClusterSqlStmt) NumInput() int {
	numInputFunc := func() (any, any, bool, error) { return s.underlyingStmt.NumInput(), nil, false, nil }
	result, _, _, _ := ExecuteWithPlugins(s.underlyingConn, s.pluginManager, utils.STMT_NUM_INPUT, numInputFunc)
	num, ok := result.(int)
	if ok {
		return num
	}
	return -1
}

func (s *ClusterSqlStmt) Query(args []driver.Value) (driver.Rows, error) {
	queryFunc := func() (any, any, bool, error) {
		result, err := s.underlyingStmt.Query(args) //nolint:all
		return result, nil, false, err
	}
	return queryWithPlugins(s.underlyingConn, s.pluginManager, utils.STMT_QUERY, queryFunc, s.conn.engine)
}

func (s *ClusterSqlStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	queryerCtx, ok := s.underlyingStmt.(driver.StmtQueryContext)
	if !ok {
		return nil, errors.New(error_util.GetMessage("Stmt.underlyingStmtDoesNotImplementRequiredInterface", "driver.StmtQueryContext"))
	}
	queryFunc := func() (any, any, bool, error) {
		result, err := queryerCtx.QueryContext(ctx, args)
		return result, nil, false, err
	}
	return queryWithPlugins(s.underlyingConn, s.pluginManager, utils.STMT_QUERY_CONTEXT, queryFunc, s.conn.engine)
}

func (s *ClusterSqlStmt) CheckNamedValue(val *driver.NamedValue) error {
	namedValueChecker, ok := s.underlyingStmt.(driver.NamedValueChecker)
	if !ok {
		// If underlyingStmt does not implement the NamedValueChecker interface, fallback to the conn the statement was prepared from.
		return s.conn.CheckNamedValue(val)
	}
	checkNamedValueFunc := func() (any, any, bool, error) { return nil, nil, false, namedValueChecker.CheckNamedValue(val) }
	_, _, _, err := ExecuteWithPlugins(s.underlyingConn, s.pluginManager, utils.STMT_CHECK_NAMED_VALUE, checkNamedValueFunc)
	return err
}

type ClusterSqlResult struct {
	underlyingConn   driver.Conn
	underlyingResult driver.Result
	pluginManager    driver_infrastructure.PluginManager
}

func (r *ClusterSqlResult) LastInsertId() (int64, error) {
	execFunc := func() (any, any, bool, error) {
		result, err := r.underlyingResult.LastInsertId()
		return result, nil, false, err
	}
	result, _, _, err := ExecuteWithPlugins(r.underlyingConn, r.pluginManager, utils.RESULT_LAST_INSERT_ID, execFunc)
	if err == nil {
		num, ok := result.(int64)
		if ok {
			return num, nil
		}
		err = errors.New(error_util.GetMessage("ExecuteWithPlugins.unableToCastResult", "int64"))
	}
	return -1, err
}

func (r *ClusterSqlResult) RowsAffected() (int64, error) {
	execFunc := func() (any, any, bool, error) {
		result, err := r.underlyingResult.RowsAffected()
		return result, nil, false, err
	}
	result, _, _, err := ExecuteWithPlugins(r.underlyingConn, r.pluginManager, utils.RESULT_ROWS_AFFECTED, execFunc)
	if err == nil {
		num, ok := result.(int64)
		if ok {
			return num, nil
		}
		err = errors.New(error_util.GetMessage("ExecuteWithPlugins.unableToCastResult", "int64"))
	}
	return -1, err
}

type ClusterSqlTx struct {
	underlyingConn driver.Conn
	underlyingTx   driver.Tx
	pluginManager  driver_infrastructure.PluginManager
	pluginService  driver_infrastructure.PluginService
}

func (t *ClusterSqlTx) Commit() error {
	commitFunc := func() (any, any, bool, error) { return nil, nil, false, t.underlyingTx.Commit() }
	_, _, _, err := ExecuteWithPlugins(t.underlyingConn, t.pluginManager, utils.TX_COMMIT, commitFunc)
	t.pluginService.SetCurrentTx(nil)
	return err
}

func (t *ClusterSqlTx) Rollback() error {
	rollbackFunc := func() (any, any, bool, error) { return nil, nil, false, t.underlyingTx.Rollback() }
	_, _, _, err := ExecuteWithPlugins(t.underlyingConn, t.pluginManager, utils.TX_ROLLBACK, rollbackFunc)
	t.pluginService.SetCurrentTx(nil)
	return err
}

type ClusterSqlRows struct {
	underlyingConn driver.Conn
	underlyingRows driver.Rows
	pluginManager  driver_infrastructure.PluginManager
}

func (r *ClusterSqlRows) Close() error {
	closeFunc := func() (any, any, bool, error) { return nil, nil, false, r.underlyingRows.Close() }
	_, _, _, err := ExecuteWithPlugins(r.underlyingConn, r.pluginManager, utils.ROWS_CLOSE, closeFunc)
	return err
}

func (r *ClusterSqlRows) Columns() []string {
	columnsFunc := func() (any, any, bool, error) { return r.underlyingRows.Columns(), nil, false, nil }
	result, _, _, _ := ExecuteWithPlugins(r.underlyingConn, r.pluginManager, utils.ROWS_COLUMNS, columnsFunc)
	cols, ok := result.([]string)
	if ok {
		return cols
	}
	return nil
}

func (r *ClusterSqlRows) Next(dest []driver.Value) error {
	nextFunc := func() (any, any, bool, error) { return nil, nil, false, r.underlyingRows.Next(dest) }
	_, _, _, err := ExecuteWithPlugins(r.underlyingConn, r.pluginManager, utils.ROWS_NEXT, nextFunc)
	return err
}

func (r *ClusterSqlRows) ColumnTypePrecisionScale(index int) (int64, int64, bool) {
	rowInterface, ok := r.underlyingRows.(driver.RowsColumnTypePrecisionScale)
	if ok {
		rowFunc := func() (any, any, bool, error) {
			result1, result2, boolean := rowInterface.ColumnTypePrecisionScale(index)
			return result1, result2, boolean, nil
		}
		p, s, ok, _ := ExecuteWithPlugins(r.underlyingConn, r.pluginManager, utils.ROWS_COLUMN_TYPE_PRECISION_SCALE, rowFunc)
		precision, pOk := p.(int64)
		scale, sOk := s.(int64)
		if sOk && pOk {
			return precision, scale, ok
		}
	}
	return -1, -1, false
}

func (r *ClusterSqlRows) ColumnTypeDatabaseTypeName(index int) string {
	rowInterface, ok := r.underlyingRows.(driver.RowsColumnTypeDatabaseTypeName)
	if ok {
		rowFunc := func() (any, any, bool, error) { return rowInterface.ColumnTypeDatabaseTypeName(index), nil, false, nil }
		result, _, _, _ := ExecuteWithPlugins(r.underlyingConn, r.pluginManager, utils.ROWS_COLUMN_TYPE_DATABASE_TYPE_NAME, rowFunc)
		str, ok := result.(string)
		if ok {
			return str
		}
	}
	return ""
}

type ClusterSqlPgRows struct {
	ClusterSqlRows
}

func (r *ClusterSqlPgRows) ColumnTypeLength(index int) (int64, bool) {
	rowInterface, ok := r.underlyingRows.(driver.RowsColumnTypeLength)
	if ok {
		rowFunc := func() (any, any, bool, error) {
			result, boolean := rowInterface.ColumnTypeLength(index)
			return result, nil, boolean, nil
		}
		result, _, ok, _ := ExecuteWithPlugins(r.underlyingConn, r.pluginManager, utils.ROWS_COLUMN_TYPE_LENGTH, rowFunc)
		num, numOk := result.(int64)
		if numOk {
			return num, ok
		}
	}
	return -1, false
}

type ClusterSqlMySQLRows struct {
	ClusterSqlRows
}

func (r *ClusterSqlMySQLRows) HasNextResultSet() bool {
	rowInterface, ok := r.underlyingRows.(driver.RowsNextResultSet)
	if !ok {
		return false
	}
	rowFunc := func() (any, any, bool, error) { return nil, nil, rowInterface.HasNextResultSet(), nil }
	_, _, ok, _ = ExecuteWithPlugins(r.underlyingConn, r.pluginManager, utils.ROWS_HAS_NEXT_RESULT_SET, rowFunc)
	return ok
}

func (r *ClusterSqlMySQLRows) NextResultSet() error {
	rowInterface, ok := r.underlyingRows.(driver.RowsNextResultSet)
	if !ok {
		return errors.New(error_util.GetMessage("Rows.underlyingRowsDoNotImplementRequiredInterface", "driver.RowsNextResultSet"))
	}
	rowFunc := func() (any, any, bool, error) { return nil, nil, false, rowInterface.NextResultSet() }
	_, _, _, err := ExecuteWithPlugins(r.underlyingConn, r.pluginManager, utils.ROWS_NEXT_RESULT_SET, rowFunc)
	return err
}

func (r *ClusterSqlMySQLRows) ColumnTypeScanType(index int) reflect.Type {
	rowInterface, ok := r.underlyingRows.(driver.RowsColumnTypeScanType)
	if ok {
		rowFunc := func() (any, any, bool, error) { return rowInterface.ColumnTypeScanType(index), nil, false, nil }
		result, _, _, _ := ExecuteWithPlugins(r.underlyingConn, r.pluginManager, utils.ROWS_COLUMN_TYPE_SCAN_TYPE, rowFunc)
		reflectType, ok := result.(reflect.Type)
		if ok {
			return reflectType
		}
	}
	return nil
}

func (r *ClusterSqlMySQLRows) ColumnTypeNullable(index int) (bool, bool) {
	rowInterface, ok := r.underlyingRows.(driver.RowsColumnTypeNullable)
	if ok {
		rowFunc := func() (any, any, bool, error) {
			boolean1, boolean2 := rowInterface.ColumnTypeNullable(index)
			return nil, boolean1, boolean2, nil
		}
		_, result, ok, _ := ExecuteWithPlugins(r.underlyingConn, r.pluginManager, utils.ROWS_COLUMN_TYPE_NULLABLE, rowFunc)
		nullable, boolOk := result.(bool)
		if boolOk {
			return nullable, ok
		}
	}
	return false, false
}
