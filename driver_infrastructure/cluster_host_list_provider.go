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
	"database/sql/driver"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"clustersql/error_util"
	"clustersql/host_info_util"
	"clustersql/property_util"
	"clustersql/utils"
)

// ClusterHostListProvider discovers cluster topology by querying the database
// through a TopologyAwareDialect and caches it in the injected TopologyStores
// under a cluster id shared by every connection to the same cluster.
type ClusterHostListProvider struct {
	hostListProviderService HostListProviderService
	databaseDialect         TopologyAwareDialect
	properties              map[string]string
	originalDsn             string
	stores                  *TopologyStores
	isInitialized           bool
	initialHostList         []*host_info_util.HostInfo
	initialHostInfo         *host_info_util.HostInfo
	IsPrimaryClusterId      bool
	clusterId               string
	clusterInstanceTemplate *host_info_util.HostInfo
	refreshRateNanos        time.Duration
	lock                    sync.Mutex
}

func NewClusterHostListProvider(
	hostListProviderService HostListProviderService,
	databaseDialect TopologyAwareDialect,
	properties map[string]string,
	originalDsn string,
	stores *TopologyStores) *ClusterHostListProvider {
	return &ClusterHostListProvider{
		hostListProviderService: hostListProviderService,
		databaseDialect:         databaseDialect,
		properties:              properties,
		originalDsn:             originalDsn,
		stores:                  stores,
	}
}

func (c *ClusterHostListProvider) init() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.isInitialized {
		return nil
	}
	c.refreshRateNanos = time.Millisecond *
		time.Duration(property_util.GetVerifiedPropertyValue[int](c.properties, property_util.CLUSTER_TOPOLOGY_REFRESH_RATE_MS))
	hostListFromDsn, err := utils.GetHostsFromDsn(c.originalDsn, false)
	if err != nil || len(hostListFromDsn) == 0 {
		return error_util.NewGenericClusterSqlError(error_util.GetMessage("ClusterHostListProvider.parsedListEmpty", utils.MaskSensitiveInfoFromDsn(c.originalDsn)))
	}
	c.initialHostList = hostListFromDsn
	c.initialHostInfo = c.initialHostList[0]
	c.hostListProviderService.SetInitialConnectionHostInfo(c.initialHostInfo)

	clusterInstancePattern := property_util.GetVerifiedPropertyValue[string](c.properties, property_util.CLUSTER_INSTANCE_HOST_PATTERN)
	defaultTemplate, _ := host_info_util.NewHostInfoBuilder().
		SetHost(utils.GetRdsInstanceHostPattern(c.initialHostInfo.Host)).
		SetPort(c.initialHostInfo.Port).
		SetHostId(c.initialHostInfo.HostId).
		Build()
	if clusterInstancePattern != "" {
		c.clusterInstanceTemplate, err = utils.ParseHostPortPair(clusterInstancePattern, host_info_util.HOST_NO_PORT)
	}
	if err == nil && !c.clusterInstanceTemplate.IsNil() {
		rdsUrlType := utils.IdentifyRdsUrlType(c.clusterInstanceTemplate.Host)
		if rdsUrlType == utils.RDS_PROXY || rdsUrlType == utils.RDS_CUSTOM_CLUSTER || !strings.Contains(c.clusterInstanceTemplate.Host, "?") {
			// Host can not be used as instance pattern.
			slog.Warn(error_util.GetMessage("ClusterHostListProvider.givenTemplateInvalid"))
			c.clusterInstanceTemplate = defaultTemplate
		}
	} else {
		c.clusterInstanceTemplate = defaultTemplate
	}

	c.clusterId = uuid.New().String()
	c.IsPrimaryClusterId = false
	rdsUrlType := utils.IdentifyRdsUrlType(c.initialHostInfo.Host)
	clusterIdSetting := property_util.GetVerifiedPropertyValue[string](c.properties, property_util.CLUSTER_ID)

	if clusterIdSetting != "" {
		c.clusterId = clusterIdSetting
	} else if rdsUrlType == utils.RDS_PROXY {
		c.clusterId = c.initialHostInfo.GetUrl()
	} else if rdsUrlType.IsRds {
		suggestedClusterId, isPrimary := c.getSuggestedClusterId(c.initialHostInfo.GetHostAndPort())
		if suggestedClusterId != "" {
			c.clusterId = suggestedClusterId
			c.IsPrimaryClusterId = isPrimary
		} else {
			clusterRdsHostUrl := utils.GetRdsClusterHostUrl(c.initialHostInfo.Host)
			if clusterRdsHostUrl != "" {
				if c.clusterInstanceTemplate.Port != host_info_util.HOST_NO_PORT {
					c.clusterId = fmt.Sprintf("%s:%d", clusterRdsHostUrl, c.clusterInstanceTemplate.Port)
				} else {
					c.clusterId = clusterRdsHostUrl
				}
				c.IsPrimaryClusterId = true
				c.stores.MarkPrimaryClusterId(c.clusterId, utils.CleanupIntervalNanos)
			}
		}
	}

	c.isInitialized = true
	return nil
}

func (c *ClusterHostListProvider) Refresh(conn driver.Conn) ([]*host_info_util.HostInfo, error) {
	if err := c.init(); err != nil {
		return nil, err
	}
	if conn == nil {
		conn = c.hostListProviderService.GetCurrentConnection()
	}
	hosts, isCachedData, err := c.getTopology(conn, false)
	if err != nil {
		return nil, err
	}
	msgPrefix := "From SQL Query"
	if isCachedData {
		msgPrefix = "From cache"
	}
	utils.LogTopology(hosts, msgPrefix)
	return hosts, nil
}

func (c *ClusterHostListProvider) ForceRefresh(conn driver.Conn) ([]*host_info_util.HostInfo, error) {
	if err := c.init(); err != nil {
		return nil, err
	}
	if conn == nil {
		conn = c.hostListProviderService.GetCurrentConnection()
	}
	hosts, _, err := c.getTopology(conn, true)
	if err != nil {
		return nil, err
	}
	utils.LogTopology(hosts, "From ForceRefresh")
	return hosts, nil
}

func (c *ClusterHostListProvider) GetClusterId() (string, error) {
	if err := c.init(); err != nil {
		return "", err
	}
	return c.clusterId, nil
}

func (c *ClusterHostListProvider) GetHostRole(conn driver.Conn) host_info_util.HostRole {
	return c.databaseDialect.GetHostRole(conn)
}

func (c *ClusterHostListProvider) IdentifyConnection(conn driver.Conn) (*host_info_util.HostInfo, error) {
	instanceName := c.databaseDialect.GetHostName(conn)
	if instanceName == "" {
		return nil, error_util.NewGenericClusterSqlError(error_util.GetMessage("ClusterHostListProvider.unableToIdentifyConnection"))
	}
	topology, err := c.Refresh(conn)
	forcedRefresh := false
	if err != nil || len(topology) == 0 {
		topology, err = c.ForceRefresh(conn)
		if err != nil {
			return nil, err
		}
		forcedRefresh = true
	}
	if len(topology) == 0 {
		return nil, error_util.NewGenericClusterSqlError(error_util.GetMessage("ClusterHostListProvider.unableToIdentifyConnection"))
	}
	foundHost := host_info_util.FindHostInTopology(topology, instanceName, c.getHostEndpoint(instanceName))

	if foundHost.IsNil() && !forcedRefresh {
		topology, err = c.ForceRefresh(conn)
		if err != nil {
			return nil, err
		}
		foundHost = host_info_util.FindHostInTopology(topology, instanceName, c.getHostEndpoint(instanceName))
	}
	if foundHost.IsNil() {
		return nil, error_util.NewGenericClusterSqlError(error_util.GetMessage("ClusterHostListProvider.unableToIdentifyConnection"))
	}
	return foundHost, nil
}

func (c *ClusterHostListProvider) IsStaticHostListProvider() bool {
	return false
}

// getTopology returns the cluster topology using the first available source:
// the unexpired cache entry, a live topology query, a stale cache entry, and
// finally the hosts parsed from the DSN. Results always honor the
// single-writer invariant.
func (c *ClusterHostListProvider) getTopology(conn driver.Conn, forceUpdate bool) (hosts []*host_info_util.HostInfo, isCachedData bool, err error) {
	c.lock.Lock()
	suggestedPrimaryId, ok := c.stores.GetSuggestedPrimaryClusterId(c.clusterId)
	if ok && suggestedPrimaryId != "" && c.clusterId != suggestedPrimaryId {
		c.clusterId = suggestedPrimaryId
		c.IsPrimaryClusterId = true
	}
	c.lock.Unlock()

	cachedHosts, ok := c.stores.GetCachedTopology(c.clusterId)

	// If this cluster id is primary and about to create a new entry in the
	// cache, it needs to be suggested to the other non-primary clusters.
	needToSuggest := (!ok || len(cachedHosts) == 0) && c.IsPrimaryClusterId

	if (!ok || forceUpdate || len(cachedHosts) == 0) && conn != nil {
		hosts, err = c.databaseDialect.GetTopology(conn, c)
		if err != nil {
			return nil, false, err
		}
		hosts = host_info_util.VerifyWriter(hosts)
		if len(hosts) > 0 {
			c.stores.PutTopology(c.clusterId, hosts, c.refreshRateNanos)
			if needToSuggest {
				c.suggestPrimaryCluster(hosts)
			}
			return hosts, false, nil
		}
	}
	if len(cachedHosts) > 0 {
		return cachedHosts, true, nil
	}
	return c.initialHostList, false, nil
}

// getSuggestedClusterId scans cached topologies for a cluster this host
// already belongs to, so a second provider pointed at the same cluster
// through a different endpoint reuses its cache entry.
func (c *ClusterHostListProvider) getSuggestedClusterId(url string) (string, bool) {
	for key, hosts := range c.stores.GetAllTopologyEntries() {
		isPrimaryCluster := c.stores.IsPrimaryClusterId(key)
		if isPrimaryCluster && key == url {
			return url, true
		}
		if len(hosts) == 0 {
			continue
		}
		for _, host := range hosts {
			if host.GetHostAndPort() == url {
				slog.Info(error_util.GetMessage("ClusterHostListProvider.suggestedClusterId", key, url))
				return key, isPrimaryCluster
			}
		}
	}
	return "", false
}

// suggestPrimaryCluster records this provider's cluster id as the suggested
// primary for any non-primary cached cluster that shares an instance with the
// given topology.
func (c *ClusterHostListProvider) suggestPrimaryCluster(primaryClusterHosts []*host_info_util.HostInfo) {
	if len(primaryClusterHosts) == 0 {
		return
	}

	primaryClusterHostUrls := map[string]bool{}
	for _, hostInfo := range primaryClusterHosts {
		primaryClusterHostUrls[hostInfo.GetUrl()] = true
	}

	for clusterId, clusterHosts := range c.stores.GetAllTopologyEntries() {
		if c.stores.IsPrimaryClusterId(clusterId) || len(clusterHosts) == 0 {
			continue
		}
		if suggested, ok := c.stores.GetSuggestedPrimaryClusterId(clusterId); ok && suggested != "" {
			continue
		}

		for _, host := range clusterHosts {
			if primaryClusterHostUrls[host.GetUrl()] {
				// An instance of this cluster matches one instance of the
				// primary cluster. Suggest the primary cluster id.
				c.stores.SuggestPrimaryClusterId(clusterId, c.clusterId, utils.CleanupIntervalNanos)
				break
			}
		}
	}
}

func (c *ClusterHostListProvider) CreateHost(
	hostName string,
	hostRole host_info_util.HostRole,
	lag float64,
	cpu float64,
	lastUpdateTime time.Time) *host_info_util.HostInfo {
	weight := int(math.Round(lag)*100 + math.Round(cpu))
	var port int
	if c.clusterInstanceTemplate.Port != host_info_util.HOST_NO_PORT {
		port = c.clusterInstanceTemplate.Port
	} else {
		port = c.initialHostInfo.Port
	}

	hostInfo, _ := host_info_util.NewHostInfoBuilder().
		SetHost(c.getHostEndpoint(hostName)).
		SetHostId(hostName).
		SetPort(port).
		SetRole(hostRole).
		SetAvailability(host_info_util.AVAILABLE).
		SetWeight(weight).
		SetLastUpdateTime(lastUpdateTime).
		Build()
	return hostInfo
}

func (c *ClusterHostListProvider) getHostEndpoint(hostName string) string {
	host := c.clusterInstanceTemplate.Host
	return strings.Replace(host, "?", hostName, -1)
}
