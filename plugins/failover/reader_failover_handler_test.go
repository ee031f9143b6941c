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
	"errors"
	"sync"
	"testing"
	"time"

	"clustersql/driver_infrastructure"
	"clustersql/host_info_util"

	"github.com/stretchr/testify/assert"
)

var errNetwork = errors.New("connection refused")
var errAuth = errors.New("password authentication failed")

type mockConn struct {
	mu     sync.Mutex
	closed bool
}

func (m *mockConn) Prepare(query string) (driver.Stmt, error) {
	return nil, nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) Begin() (driver.Tx, error) {
	return nil, nil
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// mockPluginService implements the handful of PluginService methods the
// failover code paths exercise. Calls to anything else panic through the
// embedded nil interface.
type mockPluginService struct {
	driver_infrastructure.PluginService

	mu               sync.Mutex
	connectFunc      func(hostInfo *host_info_util.HostInfo) (driver.Conn, error)
	roleFunc         func(conn driver.Conn) host_info_util.HostRole
	forceRefreshFunc func(conn driver.Conn) error
	networkErrFunc   func(err error) bool
	hosts            []*host_info_util.HostInfo
	availability     map[string]host_info_util.HostAvailability
	initialHost      *host_info_util.HostInfo
	currentConn      driver.Conn
	currentHost      *host_info_util.HostInfo
	inTransaction    bool
}

func newMockPluginService(hosts []*host_info_util.HostInfo) *mockPluginService {
	return &mockPluginService{
		hosts:        hosts,
		availability: map[string]host_info_util.HostAvailability{},
	}
}

func (s *mockPluginService) ForceConnect(hostInfo *host_info_util.HostInfo, props map[string]string) (driver.Conn, error) {
	return s.connectFunc(hostInfo)
}

func (s *mockPluginService) GetHostRole(conn driver.Conn) host_info_util.HostRole {
	if s.roleFunc == nil {
		return host_info_util.READER
	}
	return s.roleFunc(conn)
}

func (s *mockPluginService) SetAvailability(hostAliases map[string]bool, availability host_info_util.HostAvailability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for alias := range hostAliases {
		s.availability[alias] = availability
	}
}

func (s *mockPluginService) IsNetworkError(err error) bool {
	if s.networkErrFunc != nil {
		return s.networkErrFunc(err)
	}
	return errors.Is(err, errNetwork)
}

func (s *mockPluginService) GetHosts() []*host_info_util.HostInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hosts
}

func (s *mockPluginService) setHosts(hosts []*host_info_util.HostInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hosts = hosts
}

func (s *mockPluginService) ForceRefreshHostList(conn driver.Conn) error {
	if s.forceRefreshFunc == nil {
		return nil
	}
	return s.forceRefreshFunc(conn)
}

func (s *mockPluginService) RefreshHostList(conn driver.Conn) error {
	return nil
}

func (s *mockPluginService) GetInitialConnectionHostInfo() *host_info_util.HostInfo {
	return s.initialHost
}

func (s *mockPluginService) GetCurrentConnection() driver.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentConn
}

func (s *mockPluginService) SetCurrentConnection(
	conn driver.Conn, hostInfo *host_info_util.HostInfo, _ driver_infrastructure.ConnectionPlugin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentConn = conn
	s.currentHost = hostInfo
	return nil
}

func (s *mockPluginService) GetCurrentHostInfo() (*host_info_util.HostInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentHost, nil
}

func (s *mockPluginService) IsInTransaction() bool {
	return s.inTransaction
}

func (s *mockPluginService) SetInTransaction(inTransaction bool) {
	s.inTransaction = inTransaction
}

func (s *mockPluginService) GetCurrentTx() driver.Tx {
	return nil
}

func (s *mockPluginService) getAvailability(host string) host_info_util.HostAvailability {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.availability[host]
}

func buildTestHost(t *testing.T, host string, role host_info_util.HostRole, availability host_info_util.HostAvailability) *host_info_util.HostInfo {
	hostInfo, err := host_info_util.NewHostInfoBuilder().SetHost(host).SetRole(role).SetAvailability(availability).Build()
	assert.Nil(t, err)
	return hostInfo
}

func TestReaderFailoverEmptyHostList(t *testing.T) {
	pluginService := newMockPluginService(nil)
	handler := NewClusterAwareReaderFailoverHandler(pluginService, map[string]string{}, 1000, 500, false)

	result, err := handler.GetReaderConnection(nil)

	assert.NotNil(t, err)
	assert.False(t, result.IsConnected())
}

func TestReaderFailoverHostsByPriority(t *testing.T) {
	writer := buildTestHost(t, "writer-1", host_info_util.WRITER, host_info_util.AVAILABLE)
	readerA := buildTestHost(t, "reader-a", host_info_util.READER, host_info_util.AVAILABLE)
	readerB := buildTestHost(t, "reader-b", host_info_util.READER, host_info_util.AVAILABLE)
	downReader := buildTestHost(t, "reader-c", host_info_util.READER, host_info_util.UNAVAILABLE)
	hosts := []*host_info_util.HostInfo{writer, readerA, downReader, readerB}

	pluginService := newMockPluginService(hosts)
	handler := NewClusterAwareReaderFailoverHandler(pluginService, map[string]string{}, 1000, 500, false)

	hostsByPriority := handler.buildHostsByPriority(hosts)

	assert.Equal(t, 4, len(hostsByPriority))
	// Active readers come first, in any order.
	activeReaders := []string{hostsByPriority[0].Host, hostsByPriority[1].Host}
	assert.ElementsMatch(t, []string{"reader-a", "reader-b"}, activeReaders)
	assert.Equal(t, "writer-1", hostsByPriority[2].Host)
	assert.Equal(t, "reader-c", hostsByPriority[3].Host)
}

func TestReaderFailoverHostsByPriorityStrictReader(t *testing.T) {
	writer := buildTestHost(t, "writer-1", host_info_util.WRITER, host_info_util.AVAILABLE)
	readerA := buildTestHost(t, "reader-a", host_info_util.READER, host_info_util.AVAILABLE)
	hosts := []*host_info_util.HostInfo{writer, readerA}

	pluginService := newMockPluginService(hosts)
	handler := NewClusterAwareReaderFailoverHandler(pluginService, map[string]string{}, 1000, 500, true)

	// The writer is excluded while reader candidates remain.
	hostsByPriority := handler.buildHostsByPriority(hosts)
	assert.Equal(t, 1, len(hostsByPriority))
	assert.Equal(t, "reader-a", hostsByPriority[0].Host)

	// With no readers left the writer is the candidate of last resort.
	hostsByPriority = handler.buildHostsByPriority([]*host_info_util.HostInfo{writer})
	assert.Equal(t, 1, len(hostsByPriority))
	assert.Equal(t, "writer-1", hostsByPriority[0].Host)
}

func TestReaderFailoverSuccess(t *testing.T) {
	writer := buildTestHost(t, "writer-1", host_info_util.WRITER, host_info_util.AVAILABLE)
	readerA := buildTestHost(t, "reader-a", host_info_util.READER, host_info_util.AVAILABLE)
	readerB := buildTestHost(t, "reader-b", host_info_util.READER, host_info_util.AVAILABLE)
	hosts := []*host_info_util.HostInfo{writer, readerA, readerB}

	readerConn := &mockConn{}
	pluginService := newMockPluginService(hosts)
	pluginService.connectFunc = func(hostInfo *host_info_util.HostInfo) (driver.Conn, error) {
		if hostInfo.Host == "reader-a" {
			return readerConn, nil
		}
		return nil, errNetwork
	}

	handler := NewClusterAwareReaderFailoverHandler(pluginService, map[string]string{}, 10000, 1000, false)
	result, err := handler.GetReaderConnection(hosts)

	assert.Nil(t, err)
	assert.True(t, result.IsConnected())
	assert.Equal(t, readerConn, result.Conn)
	assert.Equal(t, "reader-a", result.HostInfo.Host)
	// The role on the returned host reflects what the new connection reported.
	assert.Equal(t, host_info_util.READER, result.HostInfo.Role)
	assert.Equal(t, host_info_util.AVAILABLE, pluginService.getAvailability("reader-a"))
}

func TestReaderFailoverMarksFailedHostsUnavailable(t *testing.T) {
	readerA := buildTestHost(t, "reader-a", host_info_util.READER, host_info_util.AVAILABLE)
	readerB := buildTestHost(t, "reader-b", host_info_util.READER, host_info_util.AVAILABLE)
	hosts := []*host_info_util.HostInfo{readerA, readerB}

	readerConn := &mockConn{}
	pluginService := newMockPluginService(hosts)
	pluginService.connectFunc = func(hostInfo *host_info_util.HostInfo) (driver.Conn, error) {
		if hostInfo.Host == "reader-b" {
			return readerConn, nil
		}
		return nil, errNetwork
	}

	handler := NewClusterAwareReaderFailoverHandler(pluginService, map[string]string{}, 10000, 1000, false)
	result, err := handler.GetReaderConnection(hosts)

	assert.Nil(t, err)
	assert.True(t, result.IsConnected())
	assert.Equal(t, "reader-b", result.HostInfo.Host)
	assert.Equal(t, host_info_util.UNAVAILABLE, pluginService.getAvailability("reader-a"))
	assert.Equal(t, host_info_util.AVAILABLE, pluginService.getAvailability("reader-b"))
}

func TestReaderFailoverNonNetworkErrorAbortsImmediately(t *testing.T) {
	readerA := buildTestHost(t, "reader-a", host_info_util.READER, host_info_util.AVAILABLE)
	hosts := []*host_info_util.HostInfo{readerA}

	pluginService := newMockPluginService(hosts)
	pluginService.connectFunc = func(hostInfo *host_info_util.HostInfo) (driver.Conn, error) {
		return nil, errAuth
	}

	handler := NewClusterAwareReaderFailoverHandler(pluginService, map[string]string{}, 10000, 1000, false)
	result, err := handler.GetReaderConnection(hosts)

	// An error that is not a network error means failover cannot help. It is
	// surfaced to the caller instead of being retried.
	assert.Equal(t, errAuth, err)
	assert.False(t, result.IsConnected())
}

func TestReaderFailoverStrictReaderRejectsWriterRole(t *testing.T) {
	writer := buildTestHost(t, "writer-1", host_info_util.WRITER, host_info_util.AVAILABLE)
	hosts := []*host_info_util.HostInfo{writer}

	writerConn := &mockConn{}
	pluginService := newMockPluginService(hosts)
	pluginService.connectFunc = func(hostInfo *host_info_util.HostInfo) (driver.Conn, error) {
		return writerConn, nil
	}
	pluginService.roleFunc = func(conn driver.Conn) host_info_util.HostRole {
		return host_info_util.WRITER
	}

	handler := NewClusterAwareReaderFailoverHandler(pluginService, map[string]string{}, 300, 200, true)
	result, err := handler.GetReaderConnection(hosts)

	assert.NotNil(t, err)
	assert.False(t, result.IsConnected())
	time.Sleep(100 * time.Millisecond)
	// The connection with the wrong role was discarded.
	assert.True(t, writerConn.isClosed())
}
