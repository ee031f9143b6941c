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
	"log/slog"

	"clustersql/error_util"
	"clustersql/property_util"
	"clustersql/utils"
)

// SessionStateService tracks session attributes set through the wrapper so
// they can be replayed on a new connection after a connection switch, and
// restored to their pristine values before an internal connection is
// returned to the pool.
type SessionStateService struct {
	SessionState     *SessionState
	copySessionState *SessionState
	pluginService    PluginService
	props            map[string]string
}

func NewSessionStateService(pluginService PluginService, props map[string]string) *SessionStateService {
	return &SessionStateService{
		SessionState:     &SessionState{},
		copySessionState: nil,
		pluginService:    pluginService,
		props:            props,
	}
}

func (sss *SessionStateService) transferStateEnabledSetting() bool {
	return property_util.GetVerifiedPropertyValue[bool](sss.props, property_util.TRANSFER_SESSION_STATE_ON_SWITCH)
}

func (sss *SessionStateService) resetStateEnabledSetting() bool {
	return property_util.GetVerifiedPropertyValue[bool](sss.props, property_util.RESET_SESSION_STATE_ON_CLOSE)
}

// setupPristineField snapshots the current value as pristine. It is a no-op
// when a pristine value has already been captured.
func setupPristineField[T comparable](ssf *SessionStateField[T]) {
	if ssf.GetPristineValue() != nil {
		return
	}
	current := ssf.GetValue()
	if current == nil {
		ssf.ResetPristineValue()
		return
	}
	ssf.SetPristineValue(*current)
}

func setupPristineFieldWithVal[T comparable](ssf *SessionStateField[T], val T) {
	if ssf.GetPristineValue() != nil {
		return
	}
	ssf.SetPristineValue(val)
}

func (sss *SessionStateService) GetAutoCommit() *bool {
	return sss.SessionState.AutoCommit.GetValue()
}

func (sss *SessionStateService) SetAutoCommit(val bool) {
	if !sss.transferStateEnabledSetting() {
		return
	}
	sss.SessionState.AutoCommit.SetValue(val)
}

func (sss *SessionStateService) SetupPristineAutoCommit() {
	if !sss.transferStateEnabledSetting() {
		return
	}
	setupPristineField(&sss.SessionState.AutoCommit)
	sss.logCurrentState()
}

func (sss *SessionStateService) SetupPristineAutoCommitWithVal(val bool) {
	if !sss.transferStateEnabledSetting() {
		return
	}
	setupPristineFieldWithVal(&sss.SessionState.AutoCommit, val)
	sss.logCurrentState()
}

func (sss *SessionStateService) GetReadOnly() *bool {
	return sss.SessionState.ReadOnly.GetValue()
}

func (sss *SessionStateService) SetReadOnly(val bool) {
	if !sss.transferStateEnabledSetting() {
		return
	}
	sss.SessionState.ReadOnly.SetValue(val)
}

func (sss *SessionStateService) SetupPristineReadOnly() {
	if !sss.transferStateEnabledSetting() {
		return
	}
	setupPristineField(&sss.SessionState.ReadOnly)
	sss.logCurrentState()
}

func (sss *SessionStateService) SetupPristineReadOnlyWithVal(val bool) {
	if !sss.transferStateEnabledSetting() {
		return
	}
	setupPristineFieldWithVal(&sss.SessionState.ReadOnly, val)
	sss.logCurrentState()
}

func (sss *SessionStateService) GetCatalog() *string {
	return sss.SessionState.Catalog.GetValue()
}

func (sss *SessionStateService) SetCatalog(val string) {
	if !sss.transferStateEnabledSetting() {
		return
	}
	sss.SessionState.Catalog.SetValue(val)
}

func (sss *SessionStateService) SetupPristineCatalog() {
	if !sss.transferStateEnabledSetting() {
		return
	}
	setupPristineField(&sss.SessionState.Catalog)
	sss.logCurrentState()
}

func (sss *SessionStateService) SetupPristineCatalogWithVal(val string) {
	if !sss.transferStateEnabledSetting() {
		return
	}
	setupPristineFieldWithVal(&sss.SessionState.Catalog, val)
	sss.logCurrentState()
}

func (sss *SessionStateService) GetSchema() *string {
	return sss.SessionState.Schema.GetValue()
}

func (sss *SessionStateService) SetSchema(val string) {
	if !sss.transferStateEnabledSetting() {
		return
	}
	sss.SessionState.Schema.SetValue(val)
}

func (sss *SessionStateService) SetupPristineSchema() {
	if !sss.transferStateEnabledSetting() {
		return
	}
	setupPristineField(&sss.SessionState.Schema)
	sss.logCurrentState()
}

func (sss *SessionStateService) SetupPristineSchemaWithVal(val string) {
	if !sss.transferStateEnabledSetting() {
		return
	}
	setupPristineFieldWithVal(&sss.SessionState.Schema, val)
	sss.logCurrentState()
}

func (sss *SessionStateService) GetTransactionIsolation() *TransactionIsolationLevel {
	return sss.SessionState.TransactionIsolation.GetValue()
}

func (sss *SessionStateService) SetTransactionIsolation(val TransactionIsolationLevel) {
	if !sss.transferStateEnabledSetting() {
		return
	}
	sss.SessionState.TransactionIsolation.SetValue(val)
}

func (sss *SessionStateService) SetupPristineTransactionIsolation() {
	if !sss.transferStateEnabledSetting() {
		return
	}
	setupPristineField(&sss.SessionState.TransactionIsolation)
	sss.logCurrentState()
}

func (sss *SessionStateService) SetupPristineTransactionIsolationWithVal(val TransactionIsolationLevel) {
	if !sss.transferStateEnabledSetting() {
		return
	}
	setupPristineFieldWithVal(&sss.SessionState.TransactionIsolation, val)
	sss.logCurrentState()
}

// transferField re-snapshots the pristine value from the current value and
// replays the current value on newConn using the dialect-provided statement.
func transferField[T comparable](
	ssf *SessionStateField[T],
	newConn driver.Conn,
	getQuery func(T) (string, error)) error {
	if ssf.GetValue() == nil {
		return nil
	}
	ssf.ResetPristineValue()
	setupPristineField(ssf)
	query, err := getQuery(*ssf.GetValue())
	if err != nil {
		return err
	}
	return utils.ExecQueryDirectly(newConn, query)
}

// ApplyCurrentSessionState replays the tracked session attributes on a new
// connection so that a connection switch is transparent to the caller.
func (sss *SessionStateService) ApplyCurrentSessionState(newConn driver.Conn) error {
	if !sss.transferStateEnabledSetting() {
		return nil
	}

	dialect := sss.pluginService.GetDialect()

	if err := transferField(&sss.SessionState.AutoCommit, newConn, dialect.GetSetAutoCommitQuery); err != nil {
		return err
	}
	if err := transferField(&sss.SessionState.ReadOnly, newConn, dialect.GetSetReadOnlyQuery); err != nil {
		return err
	}
	if err := transferField(&sss.SessionState.Catalog, newConn, dialect.GetSetCatalogQuery); err != nil {
		return err
	}
	if err := transferField(&sss.SessionState.Schema, newConn, dialect.GetSetSchemaQuery); err != nil {
		return err
	}
	return transferField(&sss.SessionState.TransactionIsolation, newConn, dialect.GetSetTransactionIsolationQuery)
}

func restorePristineField[T comparable](
	ssf *SessionStateField[T],
	conn driver.Conn,
	getQuery func(T) (string, error)) error {
	if !ssf.CanRestorePristine() || ssf.GetPristineValue() == nil {
		return nil
	}
	query, err := getQuery(*ssf.GetPristineValue())
	if err != nil {
		return err
	}
	return utils.ExecQueryDirectly(conn, query)
}

// ApplyPristineSessionState restores any attributes that have diverged from
// their pristine values on conn, using the snapshot captured by Begin.
func (sss *SessionStateService) ApplyPristineSessionState(conn driver.Conn) error {
	if !sss.resetStateEnabledSetting() {
		return nil
	}

	if sss.copySessionState == nil {
		return nil
	}

	dialect := sss.pluginService.GetDialect()

	if err := restorePristineField(&sss.copySessionState.AutoCommit, conn, dialect.GetSetAutoCommitQuery); err != nil {
		return err
	}
	if err := restorePristineField(&sss.copySessionState.ReadOnly, conn, dialect.GetSetReadOnlyQuery); err != nil {
		return err
	}
	if err := restorePristineField(&sss.copySessionState.Catalog, conn, dialect.GetSetCatalogQuery); err != nil {
		return err
	}
	if err := restorePristineField(&sss.copySessionState.Schema, conn, dialect.GetSetSchemaQuery); err != nil {
		return err
	}
	return restorePristineField(&sss.copySessionState.TransactionIsolation, conn, dialect.GetSetTransactionIsolationQuery)
}

// Begin snapshots the session state ahead of a connection transfer. Complete
// must be called once the transfer has finished.
func (sss *SessionStateService) Begin() error {
	sss.logCurrentState()

	if !sss.transferStateEnabledSetting() && !sss.resetStateEnabledSetting() {
		return nil
	}

	if sss.copySessionState != nil {
		return error_util.NewGenericClusterSqlError(error_util.GetMessage("SessionStateService.transferIncomplete"))
	}

	sss.copySessionState = sss.SessionState.Copy()
	return nil
}

func (sss *SessionStateService) Complete() {
	sss.copySessionState = nil
}

func (sss *SessionStateService) Reset() {
	if sss.SessionState != nil {
		sss.SessionState.AutoCommit.Reset()
		sss.SessionState.ReadOnly.Reset()
		sss.SessionState.Catalog.Reset()
		sss.SessionState.Schema.Reset()
		sss.SessionState.TransactionIsolation.Reset()
	}
}

func (sss *SessionStateService) logCurrentState() {
	slog.Debug(error_util.GetMessage("SessionStateService.logState", sss.SessionState.String()))
}
