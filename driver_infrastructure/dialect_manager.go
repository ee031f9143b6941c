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
	"strings"
	"time"

	"clustersql/error_util"
	"clustersql/property_util"
	"clustersql/utils"
)

var knownDialectsByCode map[string]DatabaseDialect = map[string]DatabaseDialect{
	MYSQL_DIALECT:        &MySQLDatabaseDialect{},
	PG_DIALECT:           &PgDatabaseDialect{},
	RDS_MYSQL_DIALECT:    &RdsMySQLDatabaseDialect{},
	RDS_PG_DIALECT:       &RdsPgDatabaseDialect{},
	AURORA_MYSQL_DIALECT: &AuroraMySQLDatabaseDialect{},
	AURORA_PG_DIALECT:    &AuroraPgDatabaseDialect{},
}

var ENDPOINT_CACHE_EXPIRATION = time.Hour * 24

type DialectProvider interface {
	GetDialect(dsn string, props map[string]string) (DatabaseDialect, error)
	GetDialectForUpdate(conn driver.Conn, originalHost string, newHost string) DatabaseDialect
}

// DialectManager guesses an initial dialect from the DSN and refines it after
// the first connection by probing the dialect update candidates. Confirmed
// endpoint dialects are remembered so later connections skip the probe.
type DialectManager struct {
	canUpdate             bool
	dialect               DatabaseDialect
	dialectCode           string
	knownEndpointDialects *utils.CacheMap[string]
}

func NewDialectManager() *DialectManager {
	return &DialectManager{knownEndpointDialects: utils.NewCacheMap[string]()}
}

func (d *DialectManager) GetDialect(dsn string, props map[string]string) (DatabaseDialect, error) {
	userDialectSetting := property_util.DIALECT.Get(props)
	if userDialectSetting != "" {
		userDialect := knownDialectsByCode[userDialectSetting]
		if userDialect == nil {
			return nil, error_util.NewConfigurationError(
				error_util.GetMessage("DialectManager.unknownDialectCode", userDialectSetting))
		}
		d.canUpdate = false
		d.dialectCode = userDialectSetting
		d.dialect = userDialect
		d.logCurrentDialect()
		return userDialect, nil
	}

	dialectCode, ok := d.knownEndpointDialects.Get(dsn)
	if ok && dialectCode != "" {
		knownDialect := knownDialectsByCode[dialectCode]
		if knownDialect != nil {
			d.dialectCode = dialectCode
			d.dialect = knownDialect
			d.logCurrentDialect()
			return knownDialect, nil
		}
	}

	driverProtocol := property_util.DRIVER_PROTOCOL.Get(props)

	hostString := dsn
	hostInfoList, err := utils.GetHostsFromDsn(dsn, true)
	if err == nil && len(hostInfoList) > 0 {
		hostString = hostInfoList[0].Host
	}
	rdsUrlType := utils.IdentifyRdsUrlType(hostString)
	if strings.Contains(driverProtocol, "mysql") {
		switch {
		case rdsUrlType.IsRdsCluster:
			d.canUpdate = true
			d.dialectCode = AURORA_MYSQL_DIALECT
		case rdsUrlType.IsRds:
			d.canUpdate = true
			d.dialectCode = RDS_MYSQL_DIALECT
		default:
			d.canUpdate = true
			d.dialectCode = MYSQL_DIALECT
		}
		d.dialect = knownDialectsByCode[d.dialectCode]
		d.logCurrentDialect()
		return d.dialect, nil
	}
	if strings.Contains(driverProtocol, "postgres") {
		switch {
		case rdsUrlType.IsRdsCluster:
			d.canUpdate = false
			d.dialectCode = AURORA_PG_DIALECT
		case rdsUrlType.IsRds:
			d.canUpdate = true
			d.dialectCode = RDS_PG_DIALECT
		default:
			d.canUpdate = true
			d.dialectCode = PG_DIALECT
		}
		d.dialect = knownDialectsByCode[d.dialectCode]
		d.logCurrentDialect()
		return d.dialect, nil
	}
	return nil, error_util.NewGenericClusterSqlError(error_util.GetMessage("DialectManager.getDialectError"))
}

func (d *DialectManager) GetDialectForUpdate(conn driver.Conn, originalHost string, newHost string) DatabaseDialect {
	if !d.canUpdate {
		return d.dialect
	}
	dialectCandidateCodes := d.dialect.GetDialectUpdateCandidates()
	for _, candidateCode := range dialectCandidateCodes {
		dialectCandidate := knownDialectsByCode[candidateCode]
		if dialectCandidate != nil && dialectCandidate.IsDialect(conn) {
			d.canUpdate = false
			d.dialectCode = candidateCode
			d.dialect = dialectCandidate

			d.knownEndpointDialects.Put(originalHost, d.dialectCode, ENDPOINT_CACHE_EXPIRATION)
			d.knownEndpointDialects.Put(newHost, d.dialectCode, ENDPOINT_CACHE_EXPIRATION)

			d.logCurrentDialect()
			return d.dialect
		}
	}

	d.canUpdate = false
	d.knownEndpointDialects.Put(originalHost, d.dialectCode, ENDPOINT_CACHE_EXPIRATION)
	d.knownEndpointDialects.Put(newHost, d.dialectCode, ENDPOINT_CACHE_EXPIRATION)

	d.logCurrentDialect()
	return d.dialect
}

func (d *DialectManager) logCurrentDialect() {
	slog.Debug(fmt.Sprintf("Current dialect: %s, %T, canUpdate: %t.", d.dialectCode, d.dialect, d.canUpdate))
}
