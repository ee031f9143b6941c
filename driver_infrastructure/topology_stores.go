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
	"time"

	"clustersql/host_info_util"
	"clustersql/utils"
)

// TopologyStores bundles the caches shared by every host list provider that
// watches the same process: discovered topologies keyed by cluster id, the set
// of cluster ids known to be primary, cross-cluster primary suggestions, and
// last observed host availability keyed by host:port. A single instance is
// created by the driver and handed to each provider, so two connections to the
// same cluster share one topology entry.
type TopologyStores struct {
	topologyCache            *utils.CacheMap[[]*host_info_util.HostInfo]
	primaryClusterIdCache    *utils.CacheMap[bool]
	suggestedPrimaryClusters *utils.CacheMap[string]
	hostAvailabilityCache    *utils.CacheMap[host_info_util.HostAvailability]
}

func NewTopologyStores() *TopologyStores {
	return &TopologyStores{
		topologyCache:            utils.NewCacheMap[[]*host_info_util.HostInfo](),
		primaryClusterIdCache:    utils.NewCacheMap[bool](),
		suggestedPrimaryClusters: utils.NewCacheMap[string](),
		hostAvailabilityCache:    utils.NewCacheMap[host_info_util.HostAvailability](),
	}
}

func (t *TopologyStores) GetCachedTopology(clusterId string) ([]*host_info_util.HostInfo, bool) {
	return t.topologyCache.Get(clusterId)
}

func (t *TopologyStores) PutTopology(clusterId string, hosts []*host_info_util.HostInfo, itemExpiration time.Duration) {
	t.topologyCache.Put(clusterId, hosts, itemExpiration)
}

// GetAllTopologyEntries includes expired entries, they are still useful for
// cluster membership checks.
func (t *TopologyStores) GetAllTopologyEntries() map[string][]*host_info_util.HostInfo {
	return t.topologyCache.GetAllEntries()
}

func (t *TopologyStores) IsPrimaryClusterId(clusterId string) bool {
	isPrimary, ok := t.primaryClusterIdCache.Get(clusterId)
	return ok && isPrimary
}

func (t *TopologyStores) MarkPrimaryClusterId(clusterId string, itemExpiration time.Duration) {
	t.primaryClusterIdCache.Put(clusterId, true, itemExpiration)
}

func (t *TopologyStores) GetSuggestedPrimaryClusterId(clusterId string) (string, bool) {
	return t.suggestedPrimaryClusters.Get(clusterId)
}

func (t *TopologyStores) SuggestPrimaryClusterId(clusterId string, suggestedClusterId string, itemExpiration time.Duration) {
	t.suggestedPrimaryClusters.Put(clusterId, suggestedClusterId, itemExpiration)
}

func (t *TopologyStores) GetHostAvailability(hostAndPort string) (host_info_util.HostAvailability, bool) {
	return t.hostAvailabilityCache.Get(hostAndPort)
}

func (t *TopologyStores) PutHostAvailability(
	hostAndPort string, availability host_info_util.HostAvailability, itemExpiration time.Duration) {
	t.hostAvailabilityCache.Put(hostAndPort, availability, itemExpiration)
}

func (t *TopologyStores) Clear() {
	t.topologyCache.Clear()
	t.primaryClusterIdCache.Clear()
	t.suggestedPrimaryClusters.Clear()
	t.hostAvailabilityCache.Clear()
}
