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

package failover

import (
	"database/sql/driver"
	"testing"
	"time"

	"clustersql/host_info_util"

	"github.com/stretchr/testify/assert"
)

type stubReaderFailoverHandler struct {
	result ReaderFailoverResult
	err    error
}

func (s *stubReaderFailoverHandler) GetReaderConnection(hosts []*host_info_util.HostInfo) (ReaderFailoverResult, error) {
	return s.result, s.err
}

func TestWriterFailoverNoWriterHost(t *testing.T) {
	readerA := buildTestHost(t, "reader-a", host_info_util.READER, host_info_util.AVAILABLE)
	hosts := []*host_info_util.HostInfo{readerA}

	pluginService := newMockPluginService(hosts)
	handler := NewClusterAwareWriterFailoverHandler(pluginService, &stubReaderFailoverHandler{}, map[string]string{}, 1000, 50, 50)

	result, err := handler.Failover(hosts)

	assert.NotNil(t, err)
	assert.False(t, result.IsConnected)
}

func TestWriterFailoverReconnectsToOriginalWriter(t *testing.T) {
	writer := buildTestHost(t, "writer-1", host_info_util.WRITER, host_info_util.AVAILABLE)
	readerA := buildTestHost(t, "reader-a", host_info_util.READER, host_info_util.AVAILABLE)
	hosts := []*host_info_util.HostInfo{writer, readerA}

	writerConn := &mockConn{}
	pluginService := newMockPluginService(hosts)
	pluginService.connectFunc = func(hostInfo *host_info_util.HostInfo) (driver.Conn, error) {
		if hostInfo.Host == "writer-1" {
			return writerConn, nil
		}
		return nil, errNetwork
	}
	pluginService.roleFunc = func(conn driver.Conn) host_info_util.HostRole {
		return host_info_util.WRITER
	}

	handler := NewClusterAwareWriterFailoverHandler(pluginService, &stubReaderFailoverHandler{}, map[string]string{}, 5000, 50, 50)
	result, err := handler.Failover(hosts)

	assert.Nil(t, err)
	assert.True(t, result.IsConnected)
	assert.Equal(t, RECONNECT_WRITER_TASK, result.TaskName)
	assert.False(t, result.IsNewHost)
	assert.Equal(t, writerConn, result.NewConnection)
	assert.Equal(t, "writer-1", result.NewHost.Host)
	assert.Equal(t, host_info_util.AVAILABLE, pluginService.getAvailability("writer-1"))
}

func TestWriterFailoverConnectsToNewWriter(t *testing.T) {
	originalWriter := buildTestHost(t, "writer-1", host_info_util.WRITER, host_info_util.AVAILABLE)
	readerA := buildTestHost(t, "reader-a", host_info_util.READER, host_info_util.AVAILABLE)
	hosts := []*host_info_util.HostInfo{originalWriter, readerA}

	newWriter := buildTestHost(t, "writer-2", host_info_util.WRITER, host_info_util.AVAILABLE)
	demotedWriter := buildTestHost(t, "writer-1", host_info_util.READER, host_info_util.AVAILABLE)
	newTopology := []*host_info_util.HostInfo{newWriter, demotedWriter, readerA}

	newWriterConn := &mockConn{}
	readerConn := &mockConn{}
	pluginService := newMockPluginService(hosts)
	pluginService.connectFunc = func(hostInfo *host_info_util.HostInfo) (driver.Conn, error) {
		if hostInfo.Host == "writer-2" {
			return newWriterConn, nil
		}
		return nil, errNetwork
	}
	pluginService.roleFunc = func(conn driver.Conn) host_info_util.HostRole {
		if conn == newWriterConn {
			return host_info_util.WRITER
		}
		return host_info_util.READER
	}
	pluginService.forceRefreshFunc = func(conn driver.Conn) error {
		pluginService.setHosts(newTopology)
		return nil
	}

	readerHandler := &stubReaderFailoverHandler{result: ReaderFailoverResult{Conn: readerConn, HostInfo: readerA}}
	handler := NewClusterAwareWriterFailoverHandler(pluginService, readerHandler, map[string]string{}, 5000, 50, 50)
	result, err := handler.Failover(hosts)

	assert.Nil(t, err)
	assert.True(t, result.IsConnected)
	assert.Equal(t, WAIT_NEW_WRITER_TASK, result.TaskName)
	assert.True(t, result.IsNewHost)
	assert.Equal(t, newWriterConn, result.NewConnection)
	assert.Equal(t, "writer-2", result.NewHost.Host)
	assert.Equal(t, host_info_util.AVAILABLE, pluginService.getAvailability("writer-2"))

	// The reader connection used for topology polling is released.
	time.Sleep(200 * time.Millisecond)
	assert.True(t, readerConn.isClosed())
}

func TestWriterFailoverDemotedWriterEndsReconnectTask(t *testing.T) {
	writer := buildTestHost(t, "writer-1", host_info_util.WRITER, host_info_util.AVAILABLE)
	hosts := []*host_info_util.HostInfo{writer}

	demotedConn := &mockConn{}
	pluginService := newMockPluginService(hosts)
	pluginService.connectFunc = func(hostInfo *host_info_util.HostInfo) (driver.Conn, error) {
		return demotedConn, nil
	}
	pluginService.roleFunc = func(conn driver.Conn) host_info_util.HostRole {
		return host_info_util.READER
	}

	// Task B cannot get a reader connection, so both tasks end without a writer.
	handler := NewClusterAwareWriterFailoverHandler(pluginService, &stubReaderFailoverHandler{}, map[string]string{}, 5000, 50, 50)
	result, err := handler.Failover(hosts)

	assert.NotNil(t, err)
	assert.False(t, result.IsConnected)
	// The connection to the demoted writer was discarded, not returned.
	assert.True(t, demotedConn.isClosed())
}
