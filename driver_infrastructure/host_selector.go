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
	"errors"
	"regexp"
	"strconv"
	"strings"

	"clustersql/error_util"
	"clustersql/host_info_util"
)

const (
	SELECTOR_HIGHEST_WEIGHT  = "highestWeight"
	SELECTOR_RANDOM          = "random"
	SELECTOR_WEIGHTED_RANDOM = "weightedRandom"
)

// Example host weight pair patterns: "host0:3,host1:02,host2:1", "host.com:50000".
var HOST_WEIGHT_PAIR_PATTERN = regexp.MustCompile("^(?P<host>[^:]+):(?P<weight>[0-9]+)$")

type HostSelector interface {
	GetHost(hosts []*host_info_util.HostInfo, role host_info_util.HostRole, props map[string]string) (*host_info_util.HostInfo, error)
}

type WeightedHostSelector interface {
	HostSelector
	SetHostWeights(hostWeightMap map[string]int)
	ClearHostWeights()
}

func GetHostWeightMapFromString(hostWeightMapString string) (map[string]int, error) {
	hostWeightMap := make(map[string]int)
	if strings.TrimSpace(hostWeightMapString) == "" {
		return hostWeightMap, nil
	}
	for _, hostWeightPair := range strings.Split(hostWeightMapString, ",") {
		hostWeightPair = strings.TrimSpace(hostWeightPair)
		matches := HOST_WEIGHT_PAIR_PATTERN.FindStringSubmatch(hostWeightPair)
		if matches == nil {
			return nil, errors.New(error_util.GetMessage("HostSelector.invalidHostWeightPairs"))
		}
		hostName := matches[1]
		hostWeight, err := strconv.Atoi(matches[2])
		if hostName == "" || err != nil || hostWeight <= 0 {
			return nil, errors.New(error_util.GetMessage("HostSelector.invalidHostWeightPairs"))
		}
		hostWeightMap[hostName] = hostWeight
	}
	return hostWeightMap, nil
}
