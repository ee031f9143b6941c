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
	"log/slog"
	"math"
	"time"

	"clustersql/error_util"
	"clustersql/host_info_util"
	"clustersql/property_util"
	"clustersql/utils"
)

// DsnHostListProvider serves the host list parsed from the DSN as-is. It is
// used for connections that have no topology source.
type DsnHostListProvider struct {
	isSingleWriterDsn       bool
	dsn                     string
	hostListProviderService HostListProviderService
	isInitialized           bool
	hostList                []*host_info_util.HostInfo
	initialHost             string
}

func NewDsnHostListProvider(props map[string]string, dsn string, hostListProviderService HostListProviderService) *DsnHostListProvider {
	isSingleWriterDsn := property_util.GetVerifiedPropertyValue[bool](props, property_util.SINGLE_WRITER_DSN)
	initialHost := property_util.GetVerifiedPropertyValue[string](props, property_util.HOST)
	return &DsnHostListProvider{
		isSingleWriterDsn:       isSingleWriterDsn,
		dsn:                     dsn,
		hostListProviderService: hostListProviderService,
		hostList:                []*host_info_util.HostInfo{},
		initialHost:             initialHost,
	}
}

func (c *DsnHostListProvider) init() error {
	if c.isInitialized {
		return nil
	}

	hosts, _ := utils.GetHostsFromDsn(c.dsn, c.isSingleWriterDsn)
	c.hostList = append(c.hostList, hosts...)

	if len(c.hostList) == 0 {
		return error_util.NewGenericClusterSqlError(error_util.GetMessage("DsnHostListProvider.parsedListEmpty"))
	}

	c.hostListProviderService.SetInitialConnectionHostInfo(c.hostList[0])
	c.isInitialized = true
	return nil
}

func (c *DsnHostListProvider) IsStaticHostListProvider() bool {
	return true
}

func (c *DsnHostListProvider) Refresh(_ driver.Conn) ([]*host_info_util.HostInfo, error) {
	err := c.init()
	return c.hostList, err
}

func (c *DsnHostListProvider) ForceRefresh(_ driver.Conn) ([]*host_info_util.HostInfo, error) {
	err := c.init()
	return c.hostList, err
}

func (c *DsnHostListProvider) GetHostRole(_ driver.Conn) host_info_util.HostRole {
	slog.Warn(error_util.GetMessage("DsnHostListProvider.unsupportedGetHostRole"))
	return host_info_util.UNKNOWN
}

func (c *DsnHostListProvider) IdentifyConnection(_ driver.Conn) (*host_info_util.HostInfo, error) {
	return nil, error_util.NewGenericClusterSqlError(error_util.GetMessage("DsnHostListProvider.unsupportedIdentifyConnection"))
}

func (c *DsnHostListProvider) GetClusterId() (string, error) {
	return "", error_util.NewGenericClusterSqlError(error_util.GetMessage("DsnHostListProvider.unsupportedGetClusterId"))
}

func (c *DsnHostListProvider) CreateHost(
	_ string,
	hostRole host_info_util.HostRole,
	lag float64,
	cpu float64,
	lastUpdateTime time.Time) *host_info_util.HostInfo {
	builder := host_info_util.NewHostInfoBuilder()
	weight := int(math.Round(lag)*100 + math.Round(cpu))
	port := c.hostListProviderService.GetDialect().GetDefaultPort()
	builder.SetHost(c.initialHost).SetPort(port).SetRole(hostRole).
		SetAvailability(host_info_util.AVAILABLE).SetWeight(weight).SetLastUpdateTime(lastUpdateTime)
	hostInfo, _ := builder.Build()
	return hostInfo
}
