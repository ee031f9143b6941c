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
	"regexp"
	"strings"
)

const setAutocommitOff = "set autocommit = 0"

var (
	sqlCommentPattern = regexp.MustCompile(`\s*/\*(.*?)\*/\s*`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// DoesOpenTransaction reports whether invoking methodName with methodArgs
// starts an explicit transaction on the connection.
func DoesOpenTransaction(methodName string, methodArgs ...any) bool {
	if methodName == CONN_BEGIN || methodName == CONN_BEGIN_TX {
		return true
	}
	if len(methodArgs) == 0 {
		return false
	}
	query, ok := methodArgs[0].(string)
	if !ok || query == "" {
		return false
	}

	for _, statement := range GetSeparateSqlStatements(query) {
		lowerStatement := strings.ToLower(statement)
		if strings.HasPrefix(lowerStatement, "begin") ||
			strings.HasPrefix(lowerStatement, "start transaction") ||
			lowerStatement == setAutocommitOff {
			return true
		}
	}
	return false
}

// DoesCloseTransaction reports whether invoking methodName with methodArgs
// ends the current transaction.
func DoesCloseTransaction(methodName string, methodArgs ...any) bool {
	if methodName == TX_COMMIT || methodName == TX_ROLLBACK {
		return true
	}
	if len(methodArgs) == 0 {
		return false
	}
	query, ok := methodArgs[0].(string)
	if !ok {
		return false
	}

	for _, statement := range GetSeparateSqlStatements(query) {
		lowerStatement := strings.ToLower(statement)
		if strings.HasPrefix(lowerStatement, "commit") ||
			strings.HasPrefix(lowerStatement, "rollback") ||
			strings.HasPrefix(lowerStatement, "end") ||
			strings.HasPrefix(lowerStatement, "abort") {
			return true
		}
	}
	return false
}

// GetQueryFromSqlOrMethodArgs prefers the given sql string and falls back to
// the first method argument when it is a query.
func GetQueryFromSqlOrMethodArgs(sql string, methodArgs ...any) string {
	if sql != "" {
		return sql
	}
	if len(methodArgs) > 0 {
		if query, ok := methodArgs[0].(string); ok {
			return query
		}
	}
	return ""
}

// GetSeparateSqlStatements splits a possibly multi-statement query into
// individual statements with comments and extra whitespace removed.
func GetSeparateSqlStatements(query string) []string {
	query = strings.TrimSpace(whitespacePattern.ReplaceAllString(query, " "))
	if query == "" {
		return nil
	}

	var statements []string
	for _, statement := range strings.Split(query, ";") {
		stmt := strings.TrimSpace(sqlCommentPattern.ReplaceAllString(statement, " "))
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}
