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
	"testing"

	"clustersql/host_info_util"

	"github.com/stretchr/testify/assert"
)

func buildSelectorTestHost(t *testing.T, host string, role host_info_util.HostRole,
	availability host_info_util.HostAvailability, weight int) *host_info_util.HostInfo {
	t.Helper()
	hostInfo, err := host_info_util.NewHostInfoBuilder().
		SetHost(host).
		SetRole(role).
		SetAvailability(availability).
		SetWeight(weight).
		Build()
	assert.NoError(t, err)
	return hostInfo
}

func TestRandomHostSelector(t *testing.T) {
	writer := buildSelectorTestHost(t, "writer", host_info_util.WRITER, host_info_util.AVAILABLE, 100)
	reader := buildSelectorTestHost(t, "reader", host_info_util.READER, host_info_util.AVAILABLE, 100)
	downReader := buildSelectorTestHost(t, "down-reader", host_info_util.READER, host_info_util.UNAVAILABLE, 100)
	hosts := []*host_info_util.HostInfo{writer, reader, downReader}

	selector := &RandomHostSelector{}

	// Only one available reader exists, so the result is deterministic.
	selected, err := selector.GetHost(hosts, host_info_util.READER, nil)
	assert.NoError(t, err)
	assert.Equal(t, reader, selected)

	selected, err = selector.GetHost(hosts, host_info_util.WRITER, nil)
	assert.NoError(t, err)
	assert.Equal(t, writer, selected)

	_, err = selector.GetHost([]*host_info_util.HostInfo{downReader}, host_info_util.READER, nil)
	assert.Error(t, err)
}

func TestHighestWeightHostSelector(t *testing.T) {
	readerA := buildSelectorTestHost(t, "reader-a", host_info_util.READER, host_info_util.AVAILABLE, 10)
	readerB := buildSelectorTestHost(t, "reader-b", host_info_util.READER, host_info_util.AVAILABLE, 50)
	downReader := buildSelectorTestHost(t, "down-reader", host_info_util.READER, host_info_util.UNAVAILABLE, 100)
	hosts := []*host_info_util.HostInfo{readerA, readerB, downReader}

	selector := &HighestWeightHostSelector{}

	selected, err := selector.GetHost(hosts, host_info_util.READER, nil)
	assert.NoError(t, err)
	assert.Equal(t, readerB, selected)

	_, err = selector.GetHost(hosts, host_info_util.WRITER, nil)
	assert.Error(t, err)
}

func TestWeightedRandomHostSelector(t *testing.T) {
	readerA := buildSelectorTestHost(t, "reader-a", host_info_util.READER, host_info_util.AVAILABLE, 100)
	readerB := buildSelectorTestHost(t, "reader-b", host_info_util.READER, host_info_util.AVAILABLE, 100)
	hosts := []*host_info_util.HostInfo{readerA, readerB}

	selector := &WeightedRandomHostSelector{}
	selector.SetHostWeights(map[string]int{"reader-a": 3, "reader-b": 1})

	// reader-a occupies numbers 1-3 and reader-b number 4.
	selector.SetRandomNumberFunc(func(int) int { return 0 })
	selected, err := selector.GetHost(hosts, host_info_util.READER, nil)
	assert.NoError(t, err)
	assert.Equal(t, readerA, selected)

	selector.SetRandomNumberFunc(func(int) int { return 2 })
	selected, err = selector.GetHost(hosts, host_info_util.READER, nil)
	assert.NoError(t, err)
	assert.Equal(t, readerA, selected)

	selector.SetRandomNumberFunc(func(int) int { return 3 })
	selected, err = selector.GetHost(hosts, host_info_util.READER, nil)
	assert.NoError(t, err)
	assert.Equal(t, readerB, selected)
}

func TestWeightedRandomHostSelectorFromProperties(t *testing.T) {
	reader := buildSelectorTestHost(t, "reader-a", host_info_util.READER, host_info_util.AVAILABLE, 100)

	selector := &WeightedRandomHostSelector{}
	selector.SetRandomNumberFunc(func(int) int { return 0 })

	props := map[string]string{"weightedRandomHostWeightPairs": "reader-a:5"}
	selected, err := selector.GetHost([]*host_info_util.HostInfo{reader}, host_info_util.READER, props)
	assert.NoError(t, err)
	assert.Equal(t, reader, selected)

	selector.ClearHostWeights()
	props["weightedRandomHostWeightPairs"] = "reader-a:bad:pair"
	_, err = selector.GetHost([]*host_info_util.HostInfo{reader}, host_info_util.READER, props)
	assert.Error(t, err)
}

func TestGetHostWeightMapFromString(t *testing.T) {
	weights, err := GetHostWeightMapFromString("host0:3,host1:02, host2:1")
	assert.NoError(t, err)
	assert.Equal(t, map[string]int{"host0": 3, "host1": 2, "host2": 1}, weights)

	weights, err = GetHostWeightMapFromString("  ")
	assert.NoError(t, err)
	assert.Empty(t, weights)

	_, err = GetHostWeightMapFromString("host0")
	assert.Error(t, err)

	_, err = GetHostWeightMapFromString("host0:0")
	assert.Error(t, err)

	_, err = GetHostWeightMapFromString("host0:-1")
	assert.Error(t, err)
}
