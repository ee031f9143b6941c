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

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDoesOpenTransaction(t *testing.T) {
	assert.True(t, DoesOpenTransaction(CONN_BEGIN))
	assert.True(t, DoesOpenTransaction(CONN_BEGIN_TX))
	assert.True(t, DoesOpenTransaction(CONN_EXEC_CONTEXT, "BEGIN"))
	assert.True(t, DoesOpenTransaction(CONN_EXEC_CONTEXT, "  Start Transaction Read Only"))
	assert.True(t, DoesOpenTransaction(CONN_EXEC_CONTEXT, "SET autocommit = 0"))
	assert.True(t, DoesOpenTransaction(CONN_EXEC_CONTEXT, "SELECT 1; BEGIN"))
	assert.True(t, DoesOpenTransaction(CONN_EXEC_CONTEXT, "/* comment */ begin"))

	assert.False(t, DoesOpenTransaction(CONN_EXEC_CONTEXT, "SELECT 1"))
	assert.False(t, DoesOpenTransaction(CONN_EXEC_CONTEXT, "SET autocommit = 1"))
	assert.False(t, DoesOpenTransaction(CONN_EXEC_CONTEXT))
	assert.False(t, DoesOpenTransaction(CONN_EXEC_CONTEXT, 42))
}

func TestDoesCloseTransaction(t *testing.T) {
	assert.True(t, DoesCloseTransaction(TX_COMMIT))
	assert.True(t, DoesCloseTransaction(TX_ROLLBACK))
	assert.True(t, DoesCloseTransaction(CONN_EXEC_CONTEXT, "COMMIT"))
	assert.True(t, DoesCloseTransaction(CONN_EXEC_CONTEXT, "  rollback"))
	assert.True(t, DoesCloseTransaction(CONN_EXEC_CONTEXT, "END"))
	assert.True(t, DoesCloseTransaction(CONN_EXEC_CONTEXT, "ABORT"))
	assert.True(t, DoesCloseTransaction(CONN_EXEC_CONTEXT, "SELECT 1; COMMIT"))

	assert.False(t, DoesCloseTransaction(CONN_EXEC_CONTEXT, "SELECT 1"))
	assert.False(t, DoesCloseTransaction(CONN_EXEC_CONTEXT))
}

func TestGetQueryFromSqlOrMethodArgs(t *testing.T) {
	assert.Equal(t, "SELECT 1", GetQueryFromSqlOrMethodArgs("SELECT 1", "SELECT 2"))
	assert.Equal(t, "SELECT 2", GetQueryFromSqlOrMethodArgs("", "SELECT 2"))
	assert.Equal(t, "", GetQueryFromSqlOrMethodArgs("", 42))
	assert.Equal(t, "", GetQueryFromSqlOrMethodArgs(""))
}

func TestGetSeparateSqlStatements(t *testing.T) {
	assert.Equal(t, []string{"SELECT 1"}, GetSeparateSqlStatements("SELECT 1"))
	assert.Equal(t, []string{"SELECT 1", "COMMIT"}, GetSeparateSqlStatements("SELECT 1; COMMIT;"))
	assert.Equal(t, []string{"begin"}, GetSeparateSqlStatements("/* leading comment */ begin"))
	assert.Equal(t, []string{"SELECT 1"}, GetSeparateSqlStatements("  SELECT\n\t1  "))
	assert.Nil(t, GetSeparateSqlStatements("   "))
}
