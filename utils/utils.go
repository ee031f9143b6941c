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
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"clustersql/error_util"
	"clustersql/host_info_util"
)

func LogTopology(hosts []*host_info_util.HostInfo, msgPrefix string) string {
	var sb strings.Builder

	if len(hosts) != 0 {
		sb.WriteString("\n")
		for _, host := range hosts {
			sb.WriteString(host.String())
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString("<nil>")
	}

	return fmt.Sprintf("%s\n %s%s", msgPrefix, "Topology: ", sb.String())
}

// GetFirstRowFromQuery directly executes query on conn and returns the first
// row, or nil if no row could be obtained.
func GetFirstRowFromQuery(conn driver.Conn, query string) []driver.Value {
	queryerCtx, ok := conn.(driver.QueryerContext)
	if !ok {
		return nil
	}

	rows, err := queryerCtx.QueryContext(context.Background(), query, nil)
	if err != nil {
		return nil
	}
	if rows != nil {
		defer rows.Close()
	}

	row := make([]driver.Value, len(rows.Columns()))
	if err = rows.Next(row); err != nil {
		return nil
	}
	return row
}

// GetFirstRowFromQueryAsString directly executes query on conn and converts
// each value of the first row to a string. Values that cannot be converted
// are returned as "". Returns nil if no row could be obtained.
func GetFirstRowFromQueryAsString(conn driver.Conn, query string) []string {
	row := GetFirstRowFromQuery(conn, query)
	if row == nil {
		return nil
	}
	res := make([]string, len(row))
	for i := range row {
		switch value := row[i].(type) {
		case []uint8:
			res[i] = string(value)
		case uint64:
			res[i] = strconv.FormatUint(value, 10)
		case int64:
			res[i] = strconv.FormatInt(value, 10)
		case string:
			res[i] = value
		default:
		}
	}
	return res
}

func ConvertDriverValueToString(value driver.Value) (string, bool) {
	valueAsString, ok := value.(string)
	if !ok {
		valueAsBytes, ok := value.([]uint8)
		if ok {
			return string(valueAsBytes), true
		}
	}
	return valueAsString, ok
}

// ExecQueryDirectly executes query on conn, bypassing the plugin pipeline.
func ExecQueryDirectly(conn driver.Conn, query string) error {
	execerCtx, ok := conn.(driver.ExecerContext)
	if !ok {
		return error_util.NewGenericClusterSqlError(error_util.GetMessage("Utils.missingExecerContext"))
	}
	_, err := execerCtx.ExecContext(context.Background(), query, nil)
	return err
}

// IsReachable executes a no-op statement on conn to verify connectivity.
func IsReachable(conn driver.Conn, ctx context.Context) bool {
	execer, ok := conn.(driver.ExecerContext)
	if ok {
		_, err := execer.ExecContext(ctx, "-- ping", []driver.NamedValue{})
		return err == nil
	}
	return false
}

// Rollback ends the open transaction on conn, preferring the driver Tx when
// one is available.
func Rollback(conn driver.Conn, currentTx driver.Tx) {
	if currentTx != nil {
		if err := currentTx.Rollback(); err != nil {
			slog.Info(error_util.GetMessage("Utils.rollbackError", err.Error()))
		}
		return
	}

	execerContext, ok := conn.(driver.ExecerContext)
	if ok {
		if _, err := execerContext.ExecContext(context.TODO(), "rollback", nil); err != nil {
			slog.Info(error_util.GetMessage("Utils.rollbackError", err.Error()))
		}
	}
}

// IsConnectionLost pings conn when the driver supports it. A failed ping
// means the connection is lost; anything else is inconclusive.
func IsConnectionLost(conn driver.Conn) bool {
	connectionPinger, ok := conn.(driver.Pinger)
	if ok {
		if err := connectionPinger.Ping(context.Background()); err != nil {
			return true
		}
	}
	return false
}

func FilterSlice[T any](slice []T, filter func(T) bool) []T {
	var result []T
	for _, v := range slice {
		if filter(v) {
			result = append(result, v)
		}
	}
	return result
}

func IndexOf[T any](slice []T, item T, compareFunc func(T, T) bool) int {
	for i, v := range slice {
		if compareFunc(v, item) {
			return i
		}
	}
	return -1
}

func RemoveFromSlice[T any](slice []T, item T, compareFunc func(T, T) bool) []T {
	index := IndexOf(slice, item, compareFunc)
	if index == -1 {
		return slice
	}
	return append(slice[:index], slice[index+1:]...)
}

func SliceAndMapHaveCommonElement[T comparable, V any](sliceA []T, mapOfKeysAndValues map[T]V) bool {
	for item := range mapOfKeysAndValues {
		for _, sliceItem := range sliceA {
			if sliceItem == item {
				return true
			}
		}
	}
	return false
}

func AllKeys[K comparable, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	return keys
}

func CreateMapCopy[K comparable, V any](mapToCopy map[K]V) map[K]V {
	mapCopy := make(map[K]V, len(mapToCopy))
	for key, value := range mapToCopy {
		mapCopy[key] = value
	}
	return mapCopy
}

func CombineMaps[K comparable, V any](base map[K]V, overrides map[K]V) map[K]V {
	combined := CreateMapCopy(base)
	for key, value := range overrides {
		combined[key] = value
	}
	return combined
}

func LengthOfSyncMap(syncMap *sync.Map) int {
	if syncMap == nil {
		return 0
	}
	var i int
	syncMap.Range(func(key, value interface{}) bool {
		i++
		return true
	})
	return i
}

func GetStructName(v any) string {
	return strings.ReplaceAll(fmt.Sprintf("%T", v), "*", "")
}

// GetHostNameFromEndpoint returns the first DNS label of an endpoint.
func GetHostNameFromEndpoint(endpoint string) string {
	parsedEndpoint := strings.SplitN(endpoint, ".", 2)
	if len(parsedEndpoint) < 1 {
		return ""
	}
	return parsedEndpoint[0]
}

func FindRegisteredDriver(driverName string) bool {
	for _, registeredDriver := range sql.Drivers() {
		if registeredDriver == driverName {
			return true
		}
	}
	return false
}
