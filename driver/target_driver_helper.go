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
	"clustersql/driver_infrastructure"
	"clustersql/error_util"
	"clustersql/property_util"
	"clustersql/utils"
)

func GetDatabaseEngine(props map[string]string) (driver_infrastructure.DatabaseEngine, error) {
	switch props[property_util.DRIVER_PROTOCOL.Name] {
	case utils.MYSQL_DRIVER_PROTOCOL:
		return driver_infrastructure.MYSQL, nil
	case utils.PGX_DRIVER_PROTOCOL:
		return driver_infrastructure.PG, nil
	}
	return "", error_util.NewGenericClusterSqlError(
		error_util.GetMessage("TargetDriverHelper.invalidProtocol", props[property_util.DRIVER_PROTOCOL.Name]))
}
