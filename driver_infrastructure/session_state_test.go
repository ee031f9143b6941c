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
	"testing"

	"clustersql/property_util"

	"github.com/stretchr/testify/assert"
)

type recordingConn struct {
	executedQueries []string
}

func (c *recordingConn) Prepare(query string) (driver.Stmt, error) { return nil, nil }
func (c *recordingConn) Close() error                              { return nil }
func (c *recordingConn) Begin() (driver.Tx, error)                 { return nil, nil }
func (c *recordingConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.executedQueries = append(c.executedQueries, query)
	return nil, nil
}

type stubSessionDialect struct {
	DatabaseDialect
}

func (d *stubSessionDialect) GetSetAutoCommitQuery(val bool) (string, error) {
	return fmt.Sprintf("set autocommit %t", val), nil
}

func (d *stubSessionDialect) GetSetReadOnlyQuery(val bool) (string, error) {
	return fmt.Sprintf("set read only %t", val), nil
}

func (d *stubSessionDialect) GetSetCatalogQuery(val string) (string, error) {
	return "set catalog " + val, nil
}

func (d *stubSessionDialect) GetSetSchemaQuery(val string) (string, error) {
	return "set schema " + val, nil
}

func (d *stubSessionDialect) GetSetTransactionIsolationQuery(val TransactionIsolationLevel) (string, error) {
	return fmt.Sprintf("set isolation %d", val), nil
}

type sessionStatePluginService struct {
	PluginService
	dialect DatabaseDialect
}

func (s *sessionStatePluginService) GetDialect() DatabaseDialect {
	return s.dialect
}

func newSessionStateTestService(props map[string]string) *SessionStateService {
	return NewSessionStateService(&sessionStatePluginService{dialect: &stubSessionDialect{}}, props)
}

func TestSessionStateFieldPristine(t *testing.T) {
	field := SessionStateField[bool]{}
	assert.Nil(t, field.GetValue())
	assert.False(t, field.CanRestorePristine())

	// With a pristine value but no current value the restore is inconclusive,
	// so it proceeds.
	field.SetPristineValue(true)
	assert.True(t, field.CanRestorePristine())

	field.SetValue(true)
	assert.False(t, field.CanRestorePristine())

	field.SetValue(false)
	assert.True(t, field.CanRestorePristine())

	field.Reset()
	assert.Nil(t, field.GetValue())
	assert.Nil(t, field.GetPristineValue())
}

func TestSessionStateCopy(t *testing.T) {
	state := &SessionState{}
	state.AutoCommit.SetValue(true)
	state.Catalog.SetValue("someCatalog")

	stateCopy := state.Copy()
	assert.Equal(t, true, *stateCopy.AutoCommit.GetValue())
	assert.Equal(t, "someCatalog", *stateCopy.Catalog.GetValue())
	assert.Nil(t, stateCopy.ReadOnly.GetValue())

	// The copy is detached from the original.
	state.Catalog.SetValue("otherCatalog")
	assert.Equal(t, "someCatalog", *stateCopy.Catalog.GetValue())
}

func TestSessionStateServiceTracksValues(t *testing.T) {
	service := newSessionStateTestService(map[string]string{})

	service.SetAutoCommit(false)
	service.SetReadOnly(true)
	service.SetCatalog("someCatalog")
	service.SetSchema("someSchema")

	assert.Equal(t, false, *service.GetAutoCommit())
	assert.Equal(t, true, *service.GetReadOnly())
	assert.Equal(t, "someCatalog", *service.GetCatalog())
	assert.Equal(t, "someSchema", *service.GetSchema())

	service.Reset()
	assert.Nil(t, service.GetAutoCommit())
	assert.Nil(t, service.GetReadOnly())
}

func TestSessionStateServiceTransferDisabled(t *testing.T) {
	props := map[string]string{property_util.TRANSFER_SESSION_STATE_ON_SWITCH.Name: "false"}
	service := newSessionStateTestService(props)

	service.SetAutoCommit(false)
	assert.Nil(t, service.GetAutoCommit())
}

func TestSessionStateServiceBeginTwiceFails(t *testing.T) {
	service := newSessionStateTestService(map[string]string{})

	assert.NoError(t, service.Begin())
	assert.Error(t, service.Begin())

	service.Complete()
	assert.NoError(t, service.Begin())
}

func TestApplyCurrentSessionState(t *testing.T) {
	service := newSessionStateTestService(map[string]string{})
	service.SetReadOnly(true)
	service.SetSchema("someSchema")

	conn := &recordingConn{}
	err := service.ApplyCurrentSessionState(conn)

	assert.NoError(t, err)
	assert.Equal(t, []string{"set read only true", "set schema someSchema"}, conn.executedQueries)
}

func TestSetupPristineValues(t *testing.T) {
	service := newSessionStateTestService(map[string]string{})

	service.SetupPristineReadOnlyWithVal(false)
	assert.Equal(t, false, *service.SessionState.ReadOnly.GetPristineValue())

	// A captured pristine value is not overwritten.
	service.SetupPristineReadOnlyWithVal(true)
	assert.Equal(t, false, *service.SessionState.ReadOnly.GetPristineValue())

	service.SetCatalog("someCatalog")
	service.SetupPristineCatalog()
	assert.Equal(t, "someCatalog", *service.SessionState.Catalog.GetPristineValue())
}

func TestApplyPristineSessionState(t *testing.T) {
	service := newSessionStateTestService(map[string]string{})

	snapshot := &SessionState{}
	snapshot.ReadOnly.SetPristineValue(false)
	snapshot.ReadOnly.SetValue(true)
	snapshot.Catalog.SetPristineValue("someCatalog")
	snapshot.Catalog.SetValue("someCatalog")
	service.copySessionState = snapshot

	conn := &recordingConn{}
	err := service.ApplyPristineSessionState(conn)
	service.Complete()

	// Only the diverged attribute is restored.
	assert.NoError(t, err)
	assert.Equal(t, []string{"set read only false"}, conn.executedQueries)
}
