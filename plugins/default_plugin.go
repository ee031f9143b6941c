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

package plugins

import (
	"database/sql/driver"

	"clustersql/driver_infrastructure"
	"clustersql/error_util"
	"clustersql/host_info_util"
	"clustersql/plugin_helpers"
	"clustersql/utils"
)

// DefaultPlugin terminates every plugin chain. It performs the physical
// connection through the connection provider and keeps the transaction and
// session bookkeeping current.
type DefaultPlugin struct {
	PluginService       driver_infrastructure.PluginService
	DefaultConnProvider driver_infrastructure.ConnectionProvider
	ConnProviderManager driver_infrastructure.ConnectionProviderManager
}

func (d *DefaultPlugin) GetPluginCode() string {
	return driver_infrastructure.DEFAULT_PLUGIN_CODE
}

func (d *DefaultPlugin) GetSubscribedMethods() []string {
	return []string{plugin_helpers.ALL_METHODS}
}

func (d *DefaultPlugin) InitHostProvider(
	props map[string]string,
	hostListProviderService driver_infrastructure.HostListProviderService,
	initHostProviderFunc func() error) error {
	// This plugin is always last in the chain, initHostProviderFunc can be omitted.
	return nil
}

func (d *DefaultPlugin) Execute(
	connInvokedOn driver.Conn,
	methodName string,
	executeFunc driver_infrastructure.ExecuteFunc,
	methodArgs ...any) (wrappedReturnValue any, wrappedReturnValue2 any, wrappedOk bool, wrappedErr error) {
	wrappedReturnValue, wrappedReturnValue2, wrappedOk, wrappedErr = executeFunc()
	if wrappedErr != nil {
		return
	}

	if utils.DoesOpenTransaction(methodName, methodArgs...) {
		d.PluginService.SetInTransaction(true)
	} else if utils.DoesCloseTransaction(methodName, methodArgs...) {
		d.PluginService.SetInTransaction(false)
	}

	d.PluginService.UpdateState("", methodArgs...)

	return
}

func (d *DefaultPlugin) Connect(
	hostInfo *host_info_util.HostInfo,
	props map[string]string,
	isInitialConnection bool,
	connectFunc driver_infrastructure.ConnectFunc) (driver.Conn, error) {
	// This plugin is always last in the chain, connectFunc can be ignored.
	connProvider := d.ConnProviderManager.GetConnectionProvider(hostInfo, props)
	return d.connectInternal(hostInfo, props, connProvider, isInitialConnection)
}

func (d *DefaultPlugin) ForceConnect(
	hostInfo *host_info_util.HostInfo,
	props map[string]string,
	isInitialConnection bool,
	forceConnectFunc driver_infrastructure.ConnectFunc) (driver.Conn, error) {
	return d.connectInternal(hostInfo, props, d.DefaultConnProvider, isInitialConnection)
}

func (d *DefaultPlugin) connectInternal(
	hostInfo *host_info_util.HostInfo,
	props map[string]string,
	connProvider driver_infrastructure.ConnectionProvider,
	isInitialConnection bool) (driver.Conn, error) {
	conn, err := connProvider.Connect(hostInfo, props, d.PluginService)
	if err == nil {
		d.PluginService.SetAvailability(hostInfo.AllAliases, host_info_util.AVAILABLE)
		if isInitialConnection {
			d.PluginService.UpdateDialect(conn)
		}
	}
	return conn, err
}

func (d *DefaultPlugin) AcceptsStrategy(strategy string) bool {
	return d.ConnProviderManager.AcceptsStrategy(strategy)
}

func (d *DefaultPlugin) GetHostInfoByStrategy(
	role host_info_util.HostRole,
	strategy string,
	hosts []*host_info_util.HostInfo) (*host_info_util.HostInfo, error) {
	if len(hosts) == 0 {
		return nil, error_util.NewGenericClusterSqlError(error_util.GetMessage("DefaultConnectionPlugin.noHostsAvailable"))
	}
	return d.ConnProviderManager.GetHostInfoByStrategy(hosts, role, strategy, d.PluginService.GetProperties())
}

func (d *DefaultPlugin) GetHostSelectorStrategy(strategy string) (driver_infrastructure.HostSelector, error) {
	return d.ConnProviderManager.GetHostSelectorStrategy(strategy)
}

func (d *DefaultPlugin) NotifyConnectionChanged(
	changes map[driver_infrastructure.HostChangeOptions]bool) driver_infrastructure.OldConnectionSuggestedAction {
	return driver_infrastructure.NO_OPINION
}

func (d *DefaultPlugin) NotifyHostListChanged(changes map[string]map[driver_infrastructure.HostChangeOptions]bool) {
	// Do nothing.
}
