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

package services

import (
	"sync"

	"clustersql/driver_infrastructure"
	"clustersql/plugins/efm"
	"clustersql/utils"
)

// Services bundles the state shared across connections: the topology stores
// every host list provider reads from and the cache of host monitors. The
// driver constructs one default instance per process; tests construct their
// own to stay isolated.
type Services struct {
	TopologyStores *driver_infrastructure.TopologyStores
	MonitorCache   *utils.SlidingExpirationCache[efm.Monitor]
}

func NewServices() *Services {
	return &Services{
		TopologyStores: driver_infrastructure.NewTopologyStores(),
		MonitorCache:   efm.NewMonitorCache(),
	}
}

var defaultServices *Services
var defaultServicesOnce sync.Once

// DefaultServices returns the process-wide container, creating it on first use.
func DefaultServices() *Services {
	defaultServicesOnce.Do(func() {
		defaultServices = NewServices()
	})
	return defaultServices
}

// MonitorService builds a monitor service backed by this container's cache.
func (s *Services) MonitorService(pluginService driver_infrastructure.PluginService) efm.MonitorService {
	return efm.NewMonitorServiceImpl(pluginService, s.MonitorCache)
}

// ClearCaches drops all shared state. Intended for tests and for callers
// tearing the driver down.
func (s *Services) ClearCaches() {
	s.TopologyStores.Clear()
	s.MonitorCache.Clear()
}
