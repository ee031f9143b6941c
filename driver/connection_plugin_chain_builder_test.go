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
	"testing"

	"clustersql/driver_infrastructure"
	"clustersql/property_util"
	"clustersql/services"

	"github.com/stretchr/testify/assert"
)

type stubPluginService struct {
	driver_infrastructure.PluginService
}

type stubPluginManager struct {
	driver_infrastructure.PluginManager
}

func (m *stubPluginManager) GetDefaultConnectionProvider() driver_infrastructure.ConnectionProvider {
	return nil
}

func (m *stubPluginManager) GetConnectionProviderManager() driver_infrastructure.ConnectionProviderManager {
	return driver_infrastructure.ConnectionProviderManager{}
}

func buildPlugins(t *testing.T, props map[string]string) ([]driver_infrastructure.ConnectionPlugin, error) {
	t.Helper()
	builder := &ConnectionPluginChainBuilder{}
	return builder.GetPlugins(&stubPluginService{}, &stubPluginManager{}, services.NewServices(), props)
}

func pluginCodes(chain []driver_infrastructure.ConnectionPlugin) []string {
	var codes []string
	for _, plugin := range chain {
		codes = append(codes, plugin.GetPluginCode())
	}
	return codes
}

func TestGetPluginsDefaultList(t *testing.T) {
	chain, err := buildPlugins(t, map[string]string{})

	assert.NoError(t, err)
	assert.Equal(t,
		[]string{
			driver_infrastructure.FAILOVER_PLUGIN_CODE,
			driver_infrastructure.EFM_PLUGIN_CODE,
			driver_infrastructure.DEFAULT_PLUGIN_CODE,
		},
		pluginCodes(chain))
}

func TestGetPluginsNone(t *testing.T) {
	chain, err := buildPlugins(t, map[string]string{property_util.PLUGINS.Name: "none"})

	assert.NoError(t, err)
	// Only the terminating default plugin remains.
	assert.Equal(t, []string{driver_infrastructure.DEFAULT_PLUGIN_CODE}, pluginCodes(chain))
}

func TestGetPluginsExplicitList(t *testing.T) {
	chain, err := buildPlugins(t, map[string]string{property_util.PLUGINS.Name: "efm"})

	assert.NoError(t, err)
	assert.Equal(t,
		[]string{driver_infrastructure.EFM_PLUGIN_CODE, driver_infrastructure.DEFAULT_PLUGIN_CODE},
		pluginCodes(chain))
}

func TestGetPluginsUnknownPluginCode(t *testing.T) {
	_, err := buildPlugins(t, map[string]string{property_util.PLUGINS.Name: "bogus"})
	assert.Error(t, err)
}

func TestGetPluginsAutoSort(t *testing.T) {
	props := map[string]string{
		property_util.PLUGINS.Name:                "efm, failover",
		property_util.AUTO_SORT_PLUGIN_ORDER.Name: "true",
	}

	chain, err := buildPlugins(t, props)

	assert.NoError(t, err)
	// The explicit list is rearranged into the canonical weight order.
	assert.Equal(t,
		[]string{
			driver_infrastructure.FAILOVER_PLUGIN_CODE,
			driver_infrastructure.EFM_PLUGIN_CODE,
			driver_infrastructure.DEFAULT_PLUGIN_CODE,
		},
		pluginCodes(chain))
}

func TestGetPluginsAutoSortDisabled(t *testing.T) {
	props := map[string]string{
		property_util.PLUGINS.Name:                "efm, failover",
		property_util.AUTO_SORT_PLUGIN_ORDER.Name: "false",
	}

	chain, err := buildPlugins(t, props)

	assert.NoError(t, err)
	assert.Equal(t,
		[]string{
			driver_infrastructure.EFM_PLUGIN_CODE,
			driver_infrastructure.FAILOVER_PLUGIN_CODE,
			driver_infrastructure.DEFAULT_PLUGIN_CODE,
		},
		pluginCodes(chain))
}
