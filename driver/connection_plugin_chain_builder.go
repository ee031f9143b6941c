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
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"clustersql/driver_infrastructure"
	"clustersql/error_util"
	"clustersql/plugins"
	"clustersql/plugins/efm"
	"clustersql/plugins/failover"
	"clustersql/property_util"
	"clustersql/services"
)

type PluginConstructor func(
	pluginService driver_infrastructure.PluginService,
	props map[string]string,
	sharedServices *services.Services) (driver_infrastructure.ConnectionPlugin, error)

var pluginConstructorByCode = map[string]PluginConstructor{
	driver_infrastructure.FAILOVER_PLUGIN_CODE: func(
		pluginService driver_infrastructure.PluginService,
		props map[string]string,
		_ *services.Services) (driver_infrastructure.ConnectionPlugin, error) {
		return failover.NewFailoverPlugin(pluginService, props), nil
	},
	driver_infrastructure.EFM_PLUGIN_CODE: func(
		pluginService driver_infrastructure.PluginService,
		props map[string]string,
		sharedServices *services.Services) (driver_infrastructure.ConnectionPlugin, error) {
		return efm.NewHostMonitoringPlugin(pluginService, props, sharedServices.MonitorService(pluginService))
	},
}

var pluginWeightByCode = map[string]int{
	driver_infrastructure.FAILOVER_PLUGIN_CODE: 700,
	driver_infrastructure.EFM_PLUGIN_CODE:      800,
}

type pluginConstructorWeight struct {
	code        string
	constructor PluginConstructor
	weight      int
}

type ConnectionPluginChainBuilder struct {
}

// GetPlugins turns the plugins property into the ordered plugin chain. The
// default plugin always terminates the chain. With autoSortPluginOrder set,
// an explicit plugin list is rearranged into the canonical weight order.
func (builder *ConnectionPluginChainBuilder) GetPlugins(
	pluginService driver_infrastructure.PluginService,
	pluginManager driver_infrastructure.PluginManager,
	sharedServices *services.Services,
	props map[string]string) ([]driver_infrastructure.ConnectionPlugin, error) {
	var resultPlugins []driver_infrastructure.ConnectionPlugin
	var constructorWeights []pluginConstructorWeight
	usingDefault := false

	pluginCodes := property_util.GetVerifiedPropertyValue[string](props, property_util.PLUGINS)
	if pluginCodes == property_util.DEFAULT_PLUGINS {
		usingDefault = true
	}

	pluginCodes = strings.ReplaceAll(strings.TrimSpace(pluginCodes), " ", "")
	var pluginCodesSlice []string
	if len(pluginCodes) != 0 && strings.ToLower(pluginCodes) != "none" {
		pluginCodesSlice = strings.Split(pluginCodes, ",")
	}
	for _, pluginCode := range pluginCodesSlice {
		if pluginCode == "" {
			continue
		}
		constructor, ok := pluginConstructorByCode[pluginCode]
		if !ok {
			return nil, error_util.NewGenericClusterSqlError(error_util.GetMessage("ConnectionPluginChainBuilder.unknownPluginCode", pluginCode))
		}
		constructorWeights = append(constructorWeights, pluginConstructorWeight{pluginCode, constructor, pluginWeightByCode[pluginCode]})
	}

	autoSort := property_util.GetVerifiedPropertyValue[bool](props, property_util.AUTO_SORT_PLUGIN_ORDER)
	pluginsSorted := false
	if !usingDefault && len(constructorWeights) > 1 && autoSort {
		sort.Slice(constructorWeights, func(i, j int) bool {
			return constructorWeights[i].weight < constructorWeights[j].weight
		})
		pluginsSorted = true
	}

	for _, constructorWeight := range constructorWeights {
		plugin, err := constructorWeight.constructor(pluginService, props, sharedServices)
		if err != nil {
			return nil, err
		}
		if plugin != nil {
			resultPlugins = append(resultPlugins, plugin)
		}
	}

	defaultPlugin := driver_infrastructure.ConnectionPlugin(&plugins.DefaultPlugin{
		PluginService:       pluginService,
		DefaultConnProvider: pluginManager.GetDefaultConnectionProvider(),
		ConnProviderManager: pluginManager.GetConnectionProviderManager(),
	})
	resultPlugins = append(resultPlugins, defaultPlugin)
	if pluginsSorted {
		slog.Info(fmt.Sprintf("Plugins order has been rearranged. The following order is in effect: '%v'.", getPluginOrder(resultPlugins)))
	}

	return resultPlugins, nil
}

func getPluginOrder(resultPlugins []driver_infrastructure.ConnectionPlugin) string {
	var pluginCodes []string
	for _, plugin := range resultPlugins {
		pluginCodes = append(pluginCodes, plugin.GetPluginCode())
	}
	return strings.Join(pluginCodes, ",")
}
