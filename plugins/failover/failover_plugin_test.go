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
	"errors"
	"testing"

	"clustersql/error_util"
	"clustersql/host_info_util"
	"clustersql/plugin_helpers"
	"clustersql/property_util"
	"clustersql/utils"

	"github.com/stretchr/testify/assert"
)

func TestFailoverPluginSubscribedMethods(t *testing.T) {
	plugin := NewFailoverPlugin(newMockPluginService(nil), map[string]string{})

	methods := plugin.GetSubscribedMethods()

	assert.Contains(t, methods, plugin_helpers.CONNECT_METHOD)
	assert.Contains(t, methods, plugin_helpers.INIT_HOST_PROVIDER_METHOD)
	assert.Contains(t, methods, utils.CONN_QUERY_CONTEXT)
	assert.NotContains(t, methods, utils.CONN_CLOSE)
}

func TestInitFailoverModeWriterClusterDefault(t *testing.T) {
	pluginService := newMockPluginService(nil)
	pluginService.initialHost = buildTestHost(t, "database.cluster-xyz.us-east-2.rds.amazonaws.com", host_info_util.WRITER, host_info_util.AVAILABLE)
	plugin := NewFailoverPlugin(pluginService, map[string]string{})

	plugin.InitFailoverMode()

	assert.Equal(t, MODE_STRICT_WRITER, plugin.FailoverMode)
	assert.NotNil(t, plugin.readerFailoverHandler)
	assert.NotNil(t, plugin.writerFailoverHandler)
}

func TestInitFailoverModeReaderClusterDefault(t *testing.T) {
	pluginService := newMockPluginService(nil)
	pluginService.initialHost = buildTestHost(t, "database.cluster-ro-xyz.us-east-2.rds.amazonaws.com", host_info_util.WRITER, host_info_util.AVAILABLE)
	plugin := NewFailoverPlugin(pluginService, map[string]string{})

	plugin.InitFailoverMode()

	assert.Equal(t, MODE_READER_OR_WRITER, plugin.FailoverMode)
}

func TestInitFailoverModeExplicitSetting(t *testing.T) {
	pluginService := newMockPluginService(nil)
	pluginService.initialHost = buildTestHost(t, "database.cluster-xyz.us-east-2.rds.amazonaws.com", host_info_util.WRITER, host_info_util.AVAILABLE)
	props := map[string]string{property_util.FAILOVER_MODE.Name: "strict-reader"}
	plugin := NewFailoverPlugin(pluginService, props)

	plugin.InitFailoverMode()
	assert.Equal(t, MODE_STRICT_READER, plugin.FailoverMode)

	// A second call must not re-resolve the mode.
	props[property_util.FAILOVER_MODE.Name] = "strict-writer"
	plugin.InitFailoverMode()
	assert.Equal(t, MODE_STRICT_READER, plugin.FailoverMode)
}

func TestExecuteCloseBypassesFailover(t *testing.T) {
	pluginService := newMockPluginService(nil)
	plugin := NewFailoverPlugin(pluginService, map[string]string{})

	_, _, _, err := plugin.Execute(nil, utils.CONN_CLOSE, func() (any, any, bool, error) {
		return nil, nil, false, errNetwork
	})

	// Close is executed directly, the error passes through untouched.
	assert.Equal(t, errNetwork, err)
}

func TestDealWithErrorNonNetworkError(t *testing.T) {
	readerA := buildTestHost(t, "reader-a", host_info_util.READER, host_info_util.AVAILABLE)
	pluginService := newMockPluginService([]*host_info_util.HostInfo{readerA})
	plugin := NewFailoverPlugin(pluginService, map[string]string{})
	plugin.FailoverMode = MODE_STRICT_WRITER

	err := plugin.DealWithError(errAuth)

	assert.Equal(t, errAuth, err)
	// No host was marked unavailable because no failover was triggered.
	assert.Empty(t, pluginService.availability)
}

func TestDealWithErrorFailoverDisabledWithoutHosts(t *testing.T) {
	pluginService := newMockPluginService(nil)
	plugin := NewFailoverPlugin(pluginService, map[string]string{})
	plugin.FailoverMode = MODE_STRICT_WRITER

	err := plugin.DealWithError(errNetwork)

	// With an empty topology failover is disabled and the error passes through.
	assert.Equal(t, errNetwork, err)
}

func TestFailoverReaderSetsCurrentConnection(t *testing.T) {
	readerA := buildTestHost(t, "reader-a", host_info_util.READER, host_info_util.AVAILABLE)
	pluginService := newMockPluginService([]*host_info_util.HostInfo{readerA})
	plugin := NewFailoverPlugin(pluginService, map[string]string{})
	plugin.FailoverMode = MODE_READER_OR_WRITER

	readerConn := &mockConn{}
	plugin.readerFailoverHandler = &stubReaderFailoverHandler{result: ReaderFailoverResult{Conn: readerConn, HostInfo: readerA}}

	err := plugin.FailoverReader()

	assert.True(t, errors.Is(err, error_util.FailoverSuccessError))
	assert.Equal(t, readerConn, pluginService.GetCurrentConnection())
}

func TestFailoverReaderNoConnection(t *testing.T) {
	readerA := buildTestHost(t, "reader-a", host_info_util.READER, host_info_util.AVAILABLE)
	pluginService := newMockPluginService([]*host_info_util.HostInfo{readerA})
	plugin := NewFailoverPlugin(pluginService, map[string]string{})
	plugin.FailoverMode = MODE_READER_OR_WRITER
	plugin.readerFailoverHandler = &stubReaderFailoverHandler{}

	err := plugin.FailoverReader()

	assert.NotNil(t, err)
	assert.False(t, errors.Is(err, error_util.FailoverSuccessError))
}

type stubWriterFailoverHandler struct {
	result WriterFailoverResult
	err    error
}

func (s *stubWriterFailoverHandler) Failover(hosts []*host_info_util.HostInfo) (WriterFailoverResult, error) {
	return s.result, s.err
}

func TestFailoverWriterSetsCurrentConnection(t *testing.T) {
	writer := buildTestHost(t, "writer-1", host_info_util.WRITER, host_info_util.AVAILABLE)
	pluginService := newMockPluginService([]*host_info_util.HostInfo{writer})
	plugin := NewFailoverPlugin(pluginService, map[string]string{})
	plugin.FailoverMode = MODE_STRICT_WRITER

	writerConn := &mockConn{}
	plugin.writerFailoverHandler = &stubWriterFailoverHandler{result: WriterFailoverResult{
		IsConnected:   true,
		NewConnection: writerConn,
		NewHost:       writer,
		TaskName:      RECONNECT_WRITER_TASK,
	}}

	err := plugin.FailoverWriter()

	assert.True(t, errors.Is(err, error_util.FailoverSuccessError))
	assert.Equal(t, writerConn, pluginService.GetCurrentConnection())
}

func TestFailoverWriterInTransaction(t *testing.T) {
	writer := buildTestHost(t, "writer-1", host_info_util.WRITER, host_info_util.AVAILABLE)
	pluginService := newMockPluginService([]*host_info_util.HostInfo{writer})
	pluginService.inTransaction = true
	plugin := NewFailoverPlugin(pluginService, map[string]string{})
	plugin.FailoverMode = MODE_STRICT_WRITER

	plugin.writerFailoverHandler = &stubWriterFailoverHandler{result: WriterFailoverResult{
		IsConnected:   true,
		NewConnection: &mockConn{},
		NewHost:       writer,
		TaskName:      RECONNECT_WRITER_TASK,
	}}

	err := plugin.FailoverWriter()

	// An interrupted transaction surfaces as a distinct error so the caller
	// knows to retry the whole transaction.
	assert.True(t, errors.Is(err, error_util.TransactionResolutionUnknownError))
	assert.False(t, pluginService.IsInTransaction())
}
