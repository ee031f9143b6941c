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

package property_util

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"clustersql/error_util"
)

const DEFAULT_PLUGINS = "failover,efm"

// MONITORING_PROPERTY_PREFIX marks properties that apply only to monitoring
// connections. Prefixed values override the regular property of the same name
// when a monitoring connection is opened.
const MONITORING_PROPERTY_PREFIX = "monitoring-"

var PREFIXES = []string{
	MONITORING_PROPERTY_PREFIX,
}

type ClusterSqlPropertyType int

const (
	PROPERTY_TYPE_INT    ClusterSqlPropertyType = 1
	PROPERTY_TYPE_STRING ClusterSqlPropertyType = 2
	PROPERTY_TYPE_BOOL   ClusterSqlPropertyType = 3
)

type ClusterSqlProperty struct {
	Name         string
	description  string
	defaultValue string
	propertyType ClusterSqlPropertyType
}

func (prop *ClusterSqlProperty) Get(props map[string]string) string {
	result, ok := props[prop.Name]
	if !ok {
		return prop.defaultValue
	}
	return result
}

func (prop *ClusterSqlProperty) Set(props map[string]string, val string) {
	props[prop.Name] = val
}

// GetVerifiedPropertyValue parses the property value into its declared type,
// falling back to the property default when parsing fails.
func GetVerifiedPropertyValue[T any](props map[string]string, property ClusterSqlProperty) T {
	propValue := property.Get(props)
	var parsedValue any
	var err error
	switch property.propertyType {
	case PROPERTY_TYPE_INT:
		parsedValue, err = strconv.Atoi(propValue)
		if err != nil {
			slog.Warn(fmt.Sprintf("Using default value '%s' for property '%s' after encountering an error: '%s'.", property.defaultValue, property.Name, err.Error()))
			parsedValue, _ = strconv.Atoi(property.defaultValue)
		}
	case PROPERTY_TYPE_BOOL:
		parsedValue, err = strconv.ParseBool(propValue)
		if err != nil {
			slog.Warn(fmt.Sprintf("Using default value '%s' for property '%s' after encountering an error: '%s'.", property.defaultValue, property.Name, err.Error()))
			parsedValue, _ = strconv.ParseBool(property.defaultValue)
		}
	default: // Default type is: PROPERTY_TYPE_STRING.
		parsedValue = propValue
	}

	result, ok := parsedValue.(T)
	if !ok {
		slog.Warn(error_util.GetMessage("ClusterSqlProperty.unexpectedType", property.Name, propValue))
	}
	return result
}

func GetPositiveIntProperty(props map[string]string, property ClusterSqlProperty) (int, error) {
	val := GetVerifiedPropertyValue[int](props, property)
	if val < 0 {
		return 0, error_util.NewGenericClusterSqlError(error_util.GetMessage("ClusterSqlProperty.requiresNonNegativeIntValue", property.Name))
	}
	return val, nil
}

func GetExpirationValue(props map[string]string, property ClusterSqlProperty) int {
	val := GetVerifiedPropertyValue[int](props, property)
	if val <= 0 {
		slog.Error(error_util.GetMessage("ClusterSqlProperty.noExpirationValue", property.Name, val))
	}
	return val
}

func GetRefreshRateValue(props map[string]string, property ClusterSqlProperty) int {
	val := GetVerifiedPropertyValue[int](props, property)
	if val <= 0 {
		slog.Error(error_util.GetMessage("ClusterSqlProperty.noRefreshRateValue", property.Name, val))
	}
	return val
}

var USER = ClusterSqlProperty{
	Name:         "user",
	description:  "The user name that the driver will use to connect to database.",
	propertyType: PROPERTY_TYPE_STRING,
}

var PASSWORD = ClusterSqlProperty{
	Name:         "password",
	description:  "The password that the driver will use to connect to database.",
	propertyType: PROPERTY_TYPE_STRING,
}

var HOST = ClusterSqlProperty{
	Name:         "host",
	description:  "The host name of the database server the driver will connect to.",
	propertyType: PROPERTY_TYPE_STRING,
}

var PORT = ClusterSqlProperty{
	Name:         "port",
	description:  "The port of the database server the driver will connect to.",
	propertyType: PROPERTY_TYPE_INT,
}

var DATABASE = ClusterSqlProperty{
	Name:         "database",
	description:  "The name of the database the driver will connect to.",
	propertyType: PROPERTY_TYPE_STRING,
}

var DRIVER_PROTOCOL = ClusterSqlProperty{
	Name:         "protocol",
	description:  "The underlying driver protocol the driver will connect using.",
	propertyType: PROPERTY_TYPE_STRING,
}

var NET = ClusterSqlProperty{
	Name:         "net",
	description:  "The named network to connect with.",
	propertyType: PROPERTY_TYPE_STRING,
}

var SINGLE_WRITER_DSN = ClusterSqlProperty{
	Name: "singleWriterDsn",
	description: "Set to true if you are providing a dsn with multiple comma-delimited hosts and your cluster has only one writer. " +
		"The writer must be the first host in the dsn.",
	defaultValue: "false",
	propertyType: PROPERTY_TYPE_BOOL,
}

var PLUGINS = ClusterSqlProperty{
	Name:         "plugins",
	description:  "Comma separated list of connection plugin codes.",
	defaultValue: DEFAULT_PLUGINS,
	propertyType: PROPERTY_TYPE_STRING,
}

var AUTO_SORT_PLUGIN_ORDER = ClusterSqlProperty{
	Name: "autoSortPluginOrder",
	description: "This flag is enabled by default, meaning that the plugins order will be automatically adjusted. Disable it at your own " +
		"risk or if you really need plugins to be executed in a particular order.",
	defaultValue: "true",
	propertyType: PROPERTY_TYPE_BOOL,
}

var DIALECT = ClusterSqlProperty{
	Name:         "databaseDialect",
	description:  "A unique identifier for the supported database dialect.",
	propertyType: PROPERTY_TYPE_STRING,
}

var TARGET_DRIVER_DIALECT = ClusterSqlProperty{
	Name:         "targetDriverDialect",
	description:  "A unique identifier for the target driver dialect.",
	propertyType: PROPERTY_TYPE_STRING,
}

var TARGET_DRIVER_AUTO_REGISTER = ClusterSqlProperty{
	Name:         "targetDriverAutoRegister",
	description:  "Allows the driver to auto-register a target driver.",
	defaultValue: "true",
	propertyType: PROPERTY_TYPE_BOOL,
}

var CLUSTER_TOPOLOGY_REFRESH_RATE_MS = ClusterSqlProperty{
	Name: "clusterTopologyRefreshRateMs",
	description: "Cluster topology refresh rate in millis. " +
		"The cached topology for the cluster will be invalidated after the specified time, " +
		"after which it will be updated during the next interaction with the connection.",
	defaultValue: "30000",
	propertyType: PROPERTY_TYPE_INT,
}

var CLUSTER_ID = ClusterSqlProperty{
	Name: "clusterId",
	description: "A unique identifier for the cluster. " +
		"Connections with the same cluster id share a cluster topology cache. " +
		"If unspecified, a cluster id is automatically created for clusters with recognized DNS endpoints.",
	propertyType: PROPERTY_TYPE_STRING,
}

var CLUSTER_INSTANCE_HOST_PATTERN = ClusterSqlProperty{
	Name: "clusterInstanceHostPattern",
	description: "The cluster instance DNS pattern that will be used to build a complete instance endpoint. " +
		"A \"?\" character in this pattern should be used as a placeholder for cluster instance names. " +
		"This pattern is required to be specified for IP address or custom domain connections. " +
		"Otherwise, if unspecified, the pattern will be automatically created for recognized cluster endpoints.",
	propertyType: PROPERTY_TYPE_STRING,
}

var CLUSTER_TOPOLOGY_HIGH_REFRESH_RATE_MS = ClusterSqlProperty{
	Name:         "clusterTopologyHighRefreshRateMs",
	description:  "Cluster topology high refresh rate in milliseconds, used while a writer is being rediscovered.",
	defaultValue: "100",
	propertyType: PROPERTY_TYPE_INT,
}

var FAILURE_DETECTION_ENABLED = ClusterSqlProperty{
	Name:         "failureDetectionEnabled",
	description:  "Enable failure detection logic in the efm plugin.",
	defaultValue: "true",
	propertyType: PROPERTY_TYPE_BOOL,
}

var FAILURE_DETECTION_TIME_MS = ClusterSqlProperty{
	Name:         "failureDetectionTimeMs",
	description:  "Interval in millis between sending SQL to the server and the first probe to database host.",
	defaultValue: "30000",
	propertyType: PROPERTY_TYPE_INT,
}

var FAILURE_DETECTION_INTERVAL_MS = ClusterSqlProperty{
	Name:         "failureDetectionIntervalMs",
	description:  "Interval in millis between probes to database host.",
	defaultValue: "5000",
	propertyType: PROPERTY_TYPE_INT,
}

var FAILURE_DETECTION_COUNT = ClusterSqlProperty{
	Name:         "failureDetectionCount",
	description:  "Number of failed connection checks before considering database host unhealthy.",
	defaultValue: "3",
	propertyType: PROPERTY_TYPE_INT,
}

var MONITOR_DISPOSAL_TIME_MS = ClusterSqlProperty{
	Name:         "monitorDisposalTimeMs",
	description:  "Interval in milliseconds for a monitor to be considered inactive and to be disposed.",
	defaultValue: "600000", // 10 minutes.
	propertyType: PROPERTY_TYPE_INT,
}

var FAILOVER_TIMEOUT_MS = ClusterSqlProperty{
	Name:         "failoverTimeoutMs",
	description:  "Maximum allowed time for the failover process.",
	defaultValue: "60000",
	propertyType: PROPERTY_TYPE_INT,
}

var FAILOVER_MODE = ClusterSqlProperty{
	Name:         "failoverMode",
	description:  "Set host role to follow during failover.",
	defaultValue: "",
	propertyType: PROPERTY_TYPE_STRING,
}

var FAILOVER_READER_CONNECT_TIMEOUT_MS = ClusterSqlProperty{
	Name:         "failoverReaderConnectTimeoutMs",
	description:  "Maximum allowed time for a single reader connection attempt during reader failover.",
	defaultValue: "30000",
	propertyType: PROPERTY_TYPE_INT,
}

var FAILOVER_CLUSTER_TOPOLOGY_REFRESH_RATE_MS = ClusterSqlProperty{
	Name:         "failoverClusterTopologyRefreshRateMs",
	description:  "Interval in millis between topology refreshes while waiting for a new writer to appear during writer failover.",
	defaultValue: "2000",
	propertyType: PROPERTY_TYPE_INT,
}

var FAILOVER_WRITER_RECONNECT_INTERVAL_MS = ClusterSqlProperty{
	Name:         "failoverWriterReconnectIntervalMs",
	description:  "Interval in millis between attempts to reconnect to the original writer during writer failover.",
	defaultValue: "2000",
	propertyType: PROPERTY_TYPE_INT,
}

var ENABLE_CONNECT_FAILOVER = ClusterSqlProperty{
	Name: "enableConnectFailover",
	description: "Enable/disable cluster-aware failover if the initial connection to the database fails due to a " +
		"network error. Note that this may result in a connection to a different instance in the cluster " +
		"than was specified by the DSN.",
	defaultValue: "true",
	propertyType: PROPERTY_TYPE_BOOL,
}

var WEIGHTED_RANDOM_HOST_WEIGHT_PAIRS = ClusterSqlProperty{
	Name:         "weightedRandomHostWeightPairs",
	description:  "Comma separated list of database host-weight pairs in the format of `<host>:<weight>`.",
	defaultValue: "",
	propertyType: PROPERTY_TYPE_STRING,
}

var TRANSFER_SESSION_STATE_ON_SWITCH = ClusterSqlProperty{
	Name:         "transferSessionStateOnSwitch",
	description:  "Enables session state transfer to a new connection.",
	defaultValue: "true",
	propertyType: PROPERTY_TYPE_BOOL,
}

var RESET_SESSION_STATE_ON_CLOSE = ClusterSqlProperty{
	Name:         "resetSessionStateOnClose",
	description:  "Enables resetting connection session state before closing it.",
	defaultValue: "true",
	propertyType: PROPERTY_TYPE_BOOL,
}

var ROLLBACK_ON_SWITCH = ClusterSqlProperty{
	Name:         "rollbackOnSwitch",
	description:  "Enables rollback of an in progress transaction when switching to a new connection.",
	defaultValue: "true",
	propertyType: PROPERTY_TYPE_BOOL,
}

var ALL_CLUSTER_SQL_PROPERTIES = map[string]bool{
	USER.Name:                                      true,
	PASSWORD.Name:                                  true,
	HOST.Name:                                      true,
	PORT.Name:                                      true,
	DATABASE.Name:                                  true,
	DRIVER_PROTOCOL.Name:                           true,
	NET.Name:                                       true,
	SINGLE_WRITER_DSN.Name:                         true,
	PLUGINS.Name:                                   true,
	AUTO_SORT_PLUGIN_ORDER.Name:                    true,
	DIALECT.Name:                                   true,
	TARGET_DRIVER_DIALECT.Name:                     true,
	TARGET_DRIVER_AUTO_REGISTER.Name:               true,
	CLUSTER_TOPOLOGY_REFRESH_RATE_MS.Name:          true,
	CLUSTER_ID.Name:                                true,
	CLUSTER_INSTANCE_HOST_PATTERN.Name:             true,
	CLUSTER_TOPOLOGY_HIGH_REFRESH_RATE_MS.Name:     true,
	FAILURE_DETECTION_ENABLED.Name:                 true,
	FAILURE_DETECTION_TIME_MS.Name:                 true,
	FAILURE_DETECTION_INTERVAL_MS.Name:             true,
	FAILURE_DETECTION_COUNT.Name:                   true,
	MONITOR_DISPOSAL_TIME_MS.Name:                  true,
	FAILOVER_TIMEOUT_MS.Name:                       true,
	FAILOVER_MODE.Name:                             true,
	FAILOVER_READER_CONNECT_TIMEOUT_MS.Name:        true,
	FAILOVER_CLUSTER_TOPOLOGY_REFRESH_RATE_MS.Name: true,
	FAILOVER_WRITER_RECONNECT_INTERVAL_MS.Name:     true,
	ENABLE_CONNECT_FAILOVER.Name:                   true,
	WEIGHTED_RANDOM_HOST_WEIGHT_PAIRS.Name:         true,
	TRANSFER_SESSION_STATE_ON_SWITCH.Name:          true,
	RESET_SESSION_STATE_ON_CLOSE.Name:              true,
	ROLLBACK_ON_SWITCH.Name:                        true,
}

// RemoveInternalClusterSqlProperties returns a copy of props without any
// internal prefixed properties.
func RemoveInternalClusterSqlProperties(props map[string]string) map[string]string {
	copyProps := map[string]string{}
	for key, value := range props {
		if !startsWithPrefix(key) {
			copyProps[key] = value
		}
	}
	return copyProps
}

// GetMonitoringProperties returns the properties a monitoring connection
// should use: regular properties with any "monitoring-" prefixed overrides
// applied and the prefixed originals removed.
func GetMonitoringProperties(props map[string]string) map[string]string {
	monitoringProps := map[string]string{}
	for key, value := range props {
		if startsWithPrefix(key) {
			continue
		}
		monitoringProps[key] = value
	}
	for key, value := range props {
		if trimmed, found := strings.CutPrefix(key, MONITORING_PROPERTY_PREFIX); found {
			monitoringProps[trimmed] = value
		}
	}
	return monitoringProps
}

func startsWithPrefix(key string) bool {
	for _, prefix := range PREFIXES {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

var SENSITIVE_PROPERTIES = map[string]struct{}{
	PASSWORD.Name: {},
}

// MaskProperties returns a copy of props with sensitive values replaced.
func MaskProperties(props map[string]string) map[string]string {
	maskedProps := make(map[string]string, len(props))
	for key, value := range props {
		if _, exists := SENSITIVE_PROPERTIES[key]; exists {
			maskedProps[key] = "***"
		} else {
			maskedProps[key] = value
		}
	}
	return maskedProps
}
