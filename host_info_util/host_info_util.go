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

package host_info_util

import "sort"

func AreHostListsEqual(s1 []*HostInfo, s2 []*HostInfo) bool {
	if len(s1) != len(s2) {
		return false
	}
	for i := 0; i < len(s1); i++ {
		if !s1[i].Equals(s2[i]) {
			return false
		}
	}
	return true
}

func GetWriter(hosts []*HostInfo) *HostInfo {
	for _, host := range hosts {
		if host.Role == WRITER {
			return host
		}
	}
	return nil
}

func GetReaders(hosts []*HostInfo) []*HostInfo {
	var readers []*HostInfo
	for _, host := range hosts {
		if host.Role == READER {
			readers = append(readers, host)
		}
	}
	return readers
}

// VerifyWriter enforces the single-writer invariant on a freshly fetched
// topology. Zero writers makes the topology invalid (nil is returned). With
// more than one writer, the row with the greatest LastUpdateTime keeps the
// WRITER role and the rest are demoted to readers.
func VerifyWriter(hosts []*HostInfo) []*HostInfo {
	if len(hosts) == 0 {
		return nil
	}

	var writers []*HostInfo
	var readers []*HostInfo
	for _, host := range hosts {
		if host.Role == WRITER {
			writers = append(writers, host)
		} else {
			readers = append(readers, host)
		}
	}

	if len(writers) == 0 {
		return nil
	}

	if len(writers) > 1 {
		sort.Slice(writers, func(i, j int) bool {
			return writers[i].LastUpdateTime.After(writers[j].LastUpdateTime)
		})
		for _, demoted := range writers[1:] {
			readers = append(readers, demoted.MakeCopyWithRole(READER))
		}
	}

	result := make([]*HostInfo, 0, len(readers)+1)
	result = append(result, writers[0])
	return append(result, readers...)
}

// FindHostInTopology matches a host by id, by name, or by endpoint url.
func FindHostInTopology(topology []*HostInfo, hostName string, hostEndpoint string) *HostInfo {
	for _, host := range topology {
		if host.HostId == hostName || host.Host == hostName || host.Host == hostEndpoint {
			return host
		}
	}
	return nil
}
