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

package efm

import (
	"database/sql/driver"
	"log/slog"
	"slices"

	"clustersql/driver_infrastructure"
	"clustersql/error_util"
	"clustersql/host_info_util"
	"clustersql/plugin_helpers"
	"clustersql/plugins"
	"clustersql/property_util"
	"clustersql/utils"
)

// HostMonitoringPlugin keeps a monitor watching the current host for the
// duration of every network bound call. When the monitor declares the host
// dead the in-flight connection is aborted and the call fails with an
// unavailable host error instead of hanging on a dead socket.
type HostMonitoringPlugin struct {
	plugins.BaseConnectionPlugin
	pluginService      driver_infrastructure.PluginService
	props              map[string]string
	monitoringHostInfo *host_info_util.HostInfo
	monitorService     MonitorService
}

func NewHostMonitoringPlugin(
	pluginService driver_infrastructure.PluginService,
	props map[string]string,
	monitorService MonitorService) (*HostMonitoringPlugin, error) {
	if pluginService == nil {
		return nil, error_util.NewIllegalArgumentError(error_util.GetMessage("HostMonitoringPlugin.illegalArgument", "pluginService"))
	}
	if monitorService == nil {
		return nil, error_util.NewIllegalArgumentError(error_util.GetMessage("HostMonitoringPlugin.illegalArgument", "monitorService"))
	}
	return &HostMonitoringPlugin{pluginService: pluginService, props: props, monitorService: monitorService}, nil
}

func (p *HostMonitoringPlugin) GetPluginCode() string {
	return driver_infrastructure.EFM_PLUGIN_CODE
}

func (p *HostMonitoringPlugin) GetSubscribedMethods() []string {
	return []string{plugin_helpers.ALL_METHODS}
}

func (p *HostMonitoringPlugin) Connect(
	hostInfo *host_info_util.HostInfo,
	props map[string]string,
	isInitialConnection bool,
	connectFunc driver_infrastructure.ConnectFunc) (driver.Conn, error) {
	conn, err := connectFunc(props)
	if err != nil {
		return nil, err
	}
	if utils.IdentifyRdsUrlType(hostInfo.Host).IsRds {
		hostInfo.ResetAliases()
		p.pluginService.FillAliases(conn, hostInfo)
	}
	return conn, err
}

func (p *HostMonitoringPlugin) NotifyConnectionChanged(
	changes map[driver_infrastructure.HostChangeOptions]bool) driver_infrastructure.OldConnectionSuggestedAction {
	_, hostNameChanged := changes[driver_infrastructure.HOSTNAME]
	_, hostChanged := changes[driver_infrastructure.HOST_CHANGED]
	if hostNameChanged || hostChanged {
		// Reset monitoringHostInfo as the associated connection has changed.
		p.monitoringHostInfo = nil
	}

	return driver_infrastructure.NO_OPINION
}

func (p *HostMonitoringPlugin) Execute(
	_ driver.Conn,
	methodName string,
	executeFunc driver_infrastructure.ExecuteFunc,
	methodArgs ...any) (wrappedReturnValue any, wrappedReturnValue2 any, wrappedOk bool, wrappedErr error) {
	isEnabled := property_util.GetVerifiedPropertyValue[bool](p.props, property_util.FAILURE_DETECTION_ENABLED)

	if !isEnabled || !slices.Contains(utils.NETWORK_BOUND_METHODS, methodName) {
		return executeFunc()
	}

	failureDetectionTimeMillis := property_util.GetVerifiedPropertyValue[int](p.props, property_util.FAILURE_DETECTION_TIME_MS)
	failureDetectionIntervalMillis := property_util.GetVerifiedPropertyValue[int](p.props, property_util.FAILURE_DETECTION_INTERVAL_MS)
	failureDetectionCount := property_util.GetVerifiedPropertyValue[int](p.props, property_util.FAILURE_DETECTION_COUNT)

	monitoringHostInfo, err := p.getMonitoringHostInfo()
	if err != nil {
		slog.Warn(error_util.GetMessage("HostMonitoringPlugin.errorGettingMonitoringHostInfo", err.Error()))
		return nil, nil, false, err
	}

	slog.Debug(error_util.GetMessage("HostMonitoringPlugin.activatedMonitoring", methodName))
	monitorState, err := p.monitorService.StartMonitoring(
		p.pluginService.GetCurrentConnectionRef(), monitoringHostInfo, p.props,
		failureDetectionTimeMillis, failureDetectionIntervalMillis, failureDetectionCount)
	if err != nil {
		slog.Warn(err.Error())
		return nil, nil, false, err
	}

	wrappedReturnValue, wrappedReturnValue2, wrappedOk, wrappedErr = executeFunc()

	p.monitorService.StopMonitoring(monitorState, p.pluginService.GetCurrentConnection())
	if monitorState.IsHostUnhealthy() {
		// The monitor aborted the connection mid-call.
		return nil, nil, false, error_util.NewUnavailableHostError(monitoringHostInfo.Host)
	}
	slog.Debug(error_util.GetMessage("HostMonitoringPlugin.monitoringDeactivated", methodName))

	return wrappedReturnValue, wrappedReturnValue2, wrappedOk, wrappedErr
}

func (p *HostMonitoringPlugin) getMonitoringHostInfo() (*host_info_util.HostInfo, error) {
	if !p.monitoringHostInfo.IsNil() {
		return p.monitoringHostInfo, nil
	}

	monitoringHostInfo, err := p.pluginService.GetCurrentHostInfo()
	if err != nil {
		return nil, error_util.NewGenericClusterSqlError(error_util.GetMessage(
			"HostMonitoringPlugin.errorIdentifyingConnection", err.Error()))
	}

	if !monitoringHostInfo.IsNil() && utils.IsRdsClusterDns(monitoringHostInfo.Host) {
		// Monitoring requires an instance endpoint, not the cluster endpoint.
		slog.Debug(error_util.GetMessage("HostMonitoringPlugin.clusterHostInfoRequired"))
		instanceHostInfo, err := p.pluginService.IdentifyConnection(p.pluginService.GetCurrentConnection())
		if err != nil {
			return nil, error_util.NewGenericClusterSqlError(error_util.GetMessage(
				"HostMonitoringPlugin.unableToIdentifyConnection", monitoringHostInfo.Host, err.Error()))
		}
		monitoringHostInfo = instanceHostInfo
	}

	if monitoringHostInfo.IsNil() {
		return nil, error_util.NewGenericClusterSqlError(error_util.GetMessage(
			"HostMonitoringPlugin.unableToIdentifyConnection", "<nil>", "monitoring host info is nil"))
	}

	p.monitoringHostInfo = monitoringHostInfo
	return p.monitoringHostInfo, nil
}
