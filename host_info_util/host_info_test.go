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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHostInfoBuilderDefaults(t *testing.T) {
	hostInfo, err := NewHostInfoBuilder().SetHost("instance-1").Build()

	assert.NoError(t, err)
	assert.Equal(t, "instance-1", hostInfo.Host)
	assert.Equal(t, HOST_NO_PORT, hostInfo.Port)
	assert.Equal(t, AVAILABLE, hostInfo.Availability)
	assert.Equal(t, WRITER, hostInfo.Role)
	assert.Equal(t, HOST_DEFAULT_WEIGHT, hostInfo.Weight)
	assert.True(t, hostInfo.AllAliases["instance-1"])
}

func TestHostInfoBuilderEmptyHost(t *testing.T) {
	hostInfo, err := NewHostInfoBuilder().Build()
	assert.Error(t, err)
	assert.Nil(t, hostInfo)
}

func TestHostInfoBuilderCopyFrom(t *testing.T) {
	original, err := NewHostInfoBuilder().
		SetHost("instance-1").
		SetPort(5432).
		SetRole(READER).
		SetAvailability(UNAVAILABLE).
		SetWeight(42).
		Build()
	assert.NoError(t, err)

	hostInfoCopy, err := NewHostInfoBuilder().CopyFrom(original).Build()
	assert.NoError(t, err)
	assert.True(t, original.Equals(hostInfoCopy))
}

func TestGetHostAndPort(t *testing.T) {
	hostInfo, err := NewHostInfoBuilder().SetHost("instance-1").SetPort(5432).Build()
	assert.NoError(t, err)
	assert.Equal(t, "instance-1:5432", hostInfo.GetHostAndPort())
	assert.Equal(t, "instance-1:5432/", hostInfo.GetUrl())

	noPort, err := NewHostInfoBuilder().SetHost("instance-1").Build()
	assert.NoError(t, err)
	assert.False(t, noPort.IsPortSpecified())
	assert.Equal(t, "instance-1", noPort.GetHostAndPort())

	var nilHost *HostInfo
	assert.Equal(t, "", nilHost.GetHostAndPort())
	assert.Equal(t, "", nilHost.GetHost())
}

func TestHostInfoAliases(t *testing.T) {
	hostInfo, err := NewHostInfoBuilder().SetHost("instance-1").SetPort(5432).Build()
	assert.NoError(t, err)

	hostInfo.AddAlias("alias-1")
	assert.True(t, hostInfo.Aliases["alias-1"])
	assert.True(t, hostInfo.AllAliases["alias-1"])

	hostInfo.ResetAliases()
	assert.Empty(t, hostInfo.Aliases)
	// The host and port alias is restored after a reset.
	assert.Equal(t, map[string]bool{"instance-1:5432": true}, hostInfo.AllAliases)
}

func TestMakeCopyWithRole(t *testing.T) {
	hostInfo, err := NewHostInfoBuilder().SetHost("instance-1").SetPort(5432).Build()
	assert.NoError(t, err)

	reader := hostInfo.MakeCopyWithRole(READER)
	assert.Equal(t, READER, reader.Role)
	assert.Equal(t, hostInfo.Host, reader.Host)
	assert.Equal(t, hostInfo.Port, reader.Port)
	assert.Equal(t, WRITER, hostInfo.Role)
}

func TestHostInfoIsNil(t *testing.T) {
	var nilHost *HostInfo
	assert.True(t, nilHost.IsNil())
	assert.True(t, (&HostInfo{}).IsNil())

	hostInfo, err := NewHostInfoBuilder().SetHost("instance-1").Build()
	assert.NoError(t, err)
	assert.False(t, hostInfo.IsNil())
}

func TestGetWriterAndReaders(t *testing.T) {
	writer, err := NewHostInfoBuilder().SetHost("writer").SetRole(WRITER).Build()
	assert.NoError(t, err)
	readerA, err := NewHostInfoBuilder().SetHost("reader-a").SetRole(READER).Build()
	assert.NoError(t, err)
	readerB, err := NewHostInfoBuilder().SetHost("reader-b").SetRole(READER).Build()
	assert.NoError(t, err)

	hosts := []*HostInfo{readerA, writer, readerB}
	assert.Equal(t, writer, GetWriter(hosts))
	assert.Equal(t, []*HostInfo{readerA, readerB}, GetReaders(hosts))

	assert.Nil(t, GetWriter([]*HostInfo{readerA}))
	assert.Nil(t, GetWriter(nil))
}

func TestVerifyWriterSingleWriter(t *testing.T) {
	writer, err := NewHostInfoBuilder().SetHost("writer").SetRole(WRITER).Build()
	assert.NoError(t, err)
	reader, err := NewHostInfoBuilder().SetHost("reader").SetRole(READER).Build()
	assert.NoError(t, err)

	verified := VerifyWriter([]*HostInfo{reader, writer})
	assert.Len(t, verified, 2)
	assert.Equal(t, writer, verified[0])
}

func TestVerifyWriterNoWriter(t *testing.T) {
	reader, err := NewHostInfoBuilder().SetHost("reader").SetRole(READER).Build()
	assert.NoError(t, err)

	assert.Nil(t, VerifyWriter([]*HostInfo{reader}))
	assert.Nil(t, VerifyWriter(nil))
}

func TestVerifyWriterDemotesStaleWriters(t *testing.T) {
	staleWriter, err := NewHostInfoBuilder().
		SetHost("stale-writer").
		SetRole(WRITER).
		SetLastUpdateTime(time.Now().Add(-time.Minute)).
		Build()
	assert.NoError(t, err)
	currentWriter, err := NewHostInfoBuilder().
		SetHost("current-writer").
		SetRole(WRITER).
		SetLastUpdateTime(time.Now()).
		Build()
	assert.NoError(t, err)

	verified := VerifyWriter([]*HostInfo{staleWriter, currentWriter})

	// The most recently updated writer keeps the role and the stale one is
	// demoted to a reader.
	assert.Len(t, verified, 2)
	assert.Equal(t, "current-writer", verified[0].Host)
	assert.Equal(t, WRITER, verified[0].Role)
	assert.Equal(t, "stale-writer", verified[1].Host)
	assert.Equal(t, READER, verified[1].Role)
}

func TestAreHostListsEqual(t *testing.T) {
	hostA, err := NewHostInfoBuilder().SetHost("a").Build()
	assert.NoError(t, err)
	hostB, err := NewHostInfoBuilder().SetHost("b").Build()
	assert.NoError(t, err)
	hostACopy, err := NewHostInfoBuilder().CopyFrom(hostA).Build()
	assert.NoError(t, err)

	assert.True(t, AreHostListsEqual([]*HostInfo{hostA, hostB}, []*HostInfo{hostACopy, hostB}))
	assert.False(t, AreHostListsEqual([]*HostInfo{hostA, hostB}, []*HostInfo{hostB, hostA}))
	assert.False(t, AreHostListsEqual([]*HostInfo{hostA}, []*HostInfo{hostA, hostB}))
}

func TestFindHostInTopology(t *testing.T) {
	hostA, err := NewHostInfoBuilder().SetHost("instance-a.xyz.us-east-2.rds.amazonaws.com").SetHostId("instance-a").Build()
	assert.NoError(t, err)
	hostB, err := NewHostInfoBuilder().SetHost("instance-b.xyz.us-east-2.rds.amazonaws.com").SetHostId("instance-b").Build()
	assert.NoError(t, err)
	topology := []*HostInfo{hostA, hostB}

	assert.Equal(t, hostA, FindHostInTopology(topology, "instance-a", ""))
	assert.Equal(t, hostB, FindHostInTopology(topology, "", "instance-b.xyz.us-east-2.rds.amazonaws.com"))
	assert.Nil(t, FindHostInTopology(topology, "instance-c", ""))
}
