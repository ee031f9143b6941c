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

package efm

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
	"weak"

	"clustersql/driver_infrastructure"
	"clustersql/error_util"
	"clustersql/host_info_util"
	"clustersql/property_util"
	"clustersql/utils"

	"github.com/stretchr/testify/assert"
)

type mockConn struct {
	mu         sync.Mutex
	closed     bool
	closeCount int
	isValid    bool
}

func (m *mockConn) Prepare(query string) (driver.Stmt, error) {
	return nil, nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.closeCount++
	return nil
}

func (m *mockConn) Begin() (driver.Tx, error) {
	return nil, nil
}

func (m *mockConn) IsValid() bool {
	return m.isValid
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockConn) closeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCount
}

type mockQueryerConn struct {
	queryErr error
}

func (m *mockQueryerConn) Prepare(query string) (driver.Stmt, error) {
	return nil, nil
}

func (m *mockQueryerConn) Close() error {
	return nil
}

func (m *mockQueryerConn) Begin() (driver.Tx, error) {
	return nil, nil
}

func (m *mockQueryerConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	return nil, m.queryErr
}

type bareConn struct{}

func (bareConn) Prepare(query string) (driver.Stmt, error) { return nil, nil }
func (bareConn) Close() error                              { return nil }
func (bareConn) Begin() (driver.Tx, error)                 { return nil, nil }

type mockPluginService struct {
	driver_infrastructure.PluginService

	mu            sync.Mutex
	connectFunc   func(hostInfo *host_info_util.HostInfo) (driver.Conn, error)
	availability  map[string]host_info_util.HostAvailability
	currentConn   driver.Conn
	currentHost   *host_info_util.HostInfo
	identifedHost *host_info_util.HostInfo
}

func newMockPluginService() *mockPluginService {
	return &mockPluginService{availability: map[string]host_info_util.HostAvailability{}}
}

func (s *mockPluginService) ForceConnect(hostInfo *host_info_util.HostInfo, props map[string]string) (driver.Conn, error) {
	if s.connectFunc == nil {
		return &mockConn{isValid: true}, nil
	}
	return s.connectFunc(hostInfo)
}

func (s *mockPluginService) SetAvailability(hostAliases map[string]bool, availability host_info_util.HostAvailability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for alias := range hostAliases {
		s.availability[alias] = availability
	}
}

func (s *mockPluginService) availabilityOf(alias string) host_info_util.HostAvailability {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.availability[alias]
}

func (s *mockPluginService) GetCurrentConnection() driver.Conn {
	return s.currentConn
}

func (s *mockPluginService) GetCurrentConnectionRef() *driver.Conn {
	return &s.currentConn
}

func (s *mockPluginService) GetCurrentHostInfo() (*host_info_util.HostInfo, error) {
	if s.currentHost == nil {
		return nil, errors.New("no current host")
	}
	return s.currentHost, nil
}

func (s *mockPluginService) IdentifyConnection(conn driver.Conn) (*host_info_util.HostInfo, error) {
	if s.identifedHost == nil {
		return nil, errors.New("unable to identify connection")
	}
	return s.identifedHost, nil
}

func (s *mockPluginService) FillAliases(conn driver.Conn, hostInfo *host_info_util.HostInfo) {
}

func buildTestHost(t *testing.T, host string) *host_info_util.HostInfo {
	hostInfo, err := host_info_util.NewHostInfoBuilder().SetHost(host).Build()
	assert.Nil(t, err)
	return hostInfo
}

func TestMonitorConnectionState(t *testing.T) {
	var conn driver.Conn = &mockConn{}
	state := NewMonitorConnectionState(&conn)

	assert.NotNil(t, state.GetConn())
	assert.True(t, state.IsActive())
	// A healthy host never calls for an abort.
	assert.False(t, state.ShouldAbort())

	state.SetHostUnhealthy(true)
	assert.True(t, state.IsHostUnhealthy())
	// An active connection on an unhealthy host should be aborted.
	assert.True(t, state.ShouldAbort())

	state.SetInactive()
	assert.Nil(t, state.GetConn())
	assert.False(t, state.IsActive())
	// Deactivation is terminal, nothing is left to abort.
	assert.False(t, state.ShouldAbort())

	runtime.KeepAlive(&conn)
}

func TestMonitorServiceStartMonitoring(t *testing.T) {
	monitors := NewMonitorCache()
	defer monitors.Clear()
	service := NewMonitorServiceImpl(newMockPluginService(), monitors)
	hostInfo := buildTestHost(t, "instance-1")
	var conn driver.Conn = &mockConn{isValid: true}

	_, err := service.StartMonitoring(nil, hostInfo, nil, 60000, 60000, 3)
	assert.NotNil(t, err)
	assert.True(t, strings.Contains(err.Error(), "conn"))

	_, err = service.StartMonitoring(&conn, nil, nil, 60000, 60000, 3)
	assert.NotNil(t, err)
	assert.True(t, strings.Contains(err.Error(), "hostInfo"))

	state, err := service.StartMonitoring(&conn, hostInfo, nil, 60000, 60000, 3)
	assert.Nil(t, err)
	assert.True(t, state.IsActive())
	assert.Equal(t, 1, monitors.Size())

	monitorKey := fmt.Sprintf("%d:%d:%d:%s", 60000, 60000, 3, hostInfo.GetUrl())
	monitor, ok := monitors.Get(monitorKey, time.Minute)
	assert.True(t, ok)
	assert.NotNil(t, monitor)

	// A second connection to the same host shares the monitor.
	state2, err := service.StartMonitoring(&conn, hostInfo, nil, 60000, 60000, 3)
	assert.Nil(t, err)
	assert.Equal(t, 1, monitors.Size())

	service.StopMonitoring(state2, conn)
	assert.False(t, state2.IsActive())
	// States are independent of each other.
	assert.True(t, state.IsActive())

	service.StopMonitoring(state, conn)
	assert.False(t, state.IsActive())

	runtime.KeepAlive(&conn)
}

func TestMonitorCanDispose(t *testing.T) {
	monitor := NewMonitorImpl(newMockPluginService(), buildTestHost(t, "instance-1"), nil, 60000, 60000, 3)
	monitor.Close()

	assert.True(t, monitor.CanDispose())

	monitor.NewStates[time.Time{}] = nil
	assert.False(t, monitor.CanDispose())

	var conn driver.Conn = &mockConn{}
	state := NewMonitorConnectionState(&conn)
	monitor.ActiveStates = append(monitor.ActiveStates, weak.Make(state))
	assert.False(t, monitor.CanDispose())

	delete(monitor.NewStates, time.Time{})
	assert.False(t, monitor.CanDispose())

	runtime.KeepAlive(&conn)
}

func TestMonitorCloseClosesMonitoringConn(t *testing.T) {
	monitor := NewMonitorImpl(newMockPluginService(), buildTestHost(t, "instance-1"), nil, 60000, 60000, 3)
	monitoringConn := &mockConn{}
	monitor.MonitoringConn = monitoringConn

	assert.False(t, monitor.Stopped)
	monitor.Close()

	assert.True(t, monitor.Stopped)
	assert.True(t, monitoringConn.isClosed())
}

func TestMonitorHealthFailureCountTrigger(t *testing.T) {
	monitor := NewMonitorImpl(newMockPluginService(), buildTestHost(t, "instance-1"), nil, 0, 10, 3)
	monitor.Close()

	start := time.Now()
	monitor.UpdateHostHealthStatus(false, start, start.Add(time.Millisecond))
	assert.Equal(t, 1, monitor.FailureCount)
	assert.False(t, monitor.HostUnhealthy)

	monitor.UpdateHostHealthStatus(false, start, start.Add(2*time.Millisecond))
	assert.Equal(t, 2, monitor.FailureCount)
	assert.False(t, monitor.HostUnhealthy)

	// The third consecutive failure reaches the detection count.
	monitor.UpdateHostHealthStatus(false, start, start.Add(3*time.Millisecond))
	assert.Equal(t, 3, monitor.FailureCount)
	assert.True(t, monitor.HostUnhealthy)
}

func TestMonitorHealthDurationTrigger(t *testing.T) {
	monitor := NewMonitorImpl(newMockPluginService(), buildTestHost(t, "instance-1"), nil, 0, 10, 3)
	monitor.Close()

	// A single failure lasting longer than interval * count is enough.
	start := time.Now()
	monitor.UpdateHostHealthStatus(false, start, start.Add(35*time.Millisecond))

	assert.Equal(t, 1, monitor.FailureCount)
	assert.True(t, monitor.HostUnhealthy)
}

func TestMonitorHealthRecovery(t *testing.T) {
	monitor := NewMonitorImpl(newMockPluginService(), buildTestHost(t, "instance-1"), nil, 0, 10, 3)
	monitor.Close()

	monitor.FailureCount = 2
	monitor.InvalidHostStartTime = time.Now()
	monitor.HostUnhealthy = true

	monitor.UpdateHostHealthStatus(true, time.Now(), time.Now())

	assert.Zero(t, monitor.FailureCount)
	assert.True(t, monitor.InvalidHostStartTime.IsZero())
	assert.False(t, monitor.HostUnhealthy)
}

func TestMonitorAbortsUnhealthyHostConnectionsOnce(t *testing.T) {
	pluginService := newMockPluginService()
	pluginService.connectFunc = func(hostInfo *host_info_util.HostInfo) (driver.Conn, error) {
		return nil, errors.New("connection refused")
	}
	monitor := NewMonitorImpl(pluginService, buildTestHost(t, "instance-1"), nil, 0, 100, 3)

	monitoredConn := &mockConn{}
	var conn driver.Conn = monitoredConn
	state := NewMonitorConnectionState(&conn)
	monitor.StartMonitoring(state)

	// Every probe fails, so once the state becomes active the host is
	// declared unhealthy and the monitored connection is aborted.
	deadline := time.Now().Add(5 * time.Second)
	for !monitoredConn.isClosed() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.True(t, monitoredConn.isClosed())
	assert.True(t, state.IsHostUnhealthy())
	assert.False(t, state.IsActive())
	assert.Equal(t, host_info_util.UNAVAILABLE, pluginService.availabilityOf("instance-1"))

	// The aborted state left active monitoring, so further probe passes have
	// nothing left to close.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, monitoredConn.closeCalls())

	monitor.Close()
	assert.Empty(t, monitor.ActiveStates)

	runtime.KeepAlive(&conn)
}

func TestMonitorConcurrentRegistration(t *testing.T) {
	pluginService := newMockPluginService()
	monitor := NewMonitorImpl(pluginService, buildTestHost(t, "instance-1"), nil, 0, 100, 3)

	// Registrations from multiple connections race against the promotion and
	// probe routines.
	conns := make([]driver.Conn, 10)
	states := make([]*MonitorConnectionState, 10)
	var wg sync.WaitGroup
	for i := range conns {
		conns[i] = &mockConn{isValid: true}
		states[i] = NewMonitorConnectionState(&conns[i])
		wg.Add(1)
		go func(state *MonitorConnectionState) {
			defer wg.Done()
			monitor.StartMonitoring(state)
		}(states[i])
	}
	wg.Wait()

	time.Sleep(200 * time.Millisecond)
	monitor.Close()

	// The host stayed healthy, so every state is still active.
	for _, state := range states {
		assert.True(t, state.IsActive())
	}

	for i := range conns {
		runtime.KeepAlive(&conns[i])
	}
}

func TestMonitorCheckConnectionStatusValidator(t *testing.T) {
	monitor := NewMonitorImpl(newMockPluginService(), buildTestHost(t, "instance-1"), nil, 0, 60000, 3)
	monitor.Close()

	monitor.MonitoringConn = &mockConn{isValid: true}
	assert.True(t, monitor.CheckConnectionStatus())
}

func TestMonitorCheckConnectionStatusQueryer(t *testing.T) {
	monitor := NewMonitorImpl(newMockPluginService(), buildTestHost(t, "instance-1"), nil, 0, 60000, 3)
	monitor.Close()

	monitor.MonitoringConn = &mockQueryerConn{}
	assert.True(t, monitor.CheckConnectionStatus())

	monitor.MonitoringConn = &mockQueryerConn{queryErr: errors.New("server closed the connection")}
	assert.False(t, monitor.CheckConnectionStatus())
}

func TestMonitorCheckConnectionStatusBareConn(t *testing.T) {
	monitor := NewMonitorImpl(newMockPluginService(), buildTestHost(t, "instance-1"), nil, 0, 60000, 3)
	monitor.Close()

	monitor.MonitoringConn = bareConn{}
	assert.False(t, monitor.CheckConnectionStatus())
}

func TestMonitorCheckConnectionStatusReconnects(t *testing.T) {
	pluginService := newMockPluginService()
	monitor := NewMonitorImpl(pluginService, buildTestHost(t, "instance-1"), nil, 0, 60000, 3)
	monitor.Close()

	// No monitoring connection yet, a new one is opened.
	assert.True(t, monitor.CheckConnectionStatus())
	assert.NotNil(t, monitor.MonitoringConn)

	pluginService.connectFunc = func(hostInfo *host_info_util.HostInfo) (driver.Conn, error) {
		return nil, errors.New("connection refused")
	}
	monitor.MonitoringConn = nil
	assert.False(t, monitor.CheckConnectionStatus())
}

type mockMonitorService struct {
	state      *MonitorConnectionState
	err        error
	startCalls int
	stopCalls  int
}

func (m *mockMonitorService) StartMonitoring(conn *driver.Conn, hostInfo *host_info_util.HostInfo, props map[string]string,
	failureDetectionTimeMillis int, failureDetectionIntervalMillis int, failureDetectionCount int) (*MonitorConnectionState, error) {
	m.startCalls++
	return m.state, m.err
}

func (m *mockMonitorService) StopMonitoring(state *MonitorConnectionState, connToAbort driver.Conn) {
	m.stopCalls++
}

func TestHostMonitoringPluginRequiresArguments(t *testing.T) {
	_, err := NewHostMonitoringPlugin(nil, map[string]string{}, &mockMonitorService{})
	assert.NotNil(t, err)
	assert.True(t, strings.Contains(err.Error(), "pluginService"))

	_, err = NewHostMonitoringPlugin(newMockPluginService(), map[string]string{}, nil)
	assert.NotNil(t, err)
	assert.True(t, strings.Contains(err.Error(), "monitorService"))
}

func TestHostMonitoringPluginExecuteDisabled(t *testing.T) {
	monitorService := &mockMonitorService{}
	props := map[string]string{property_util.FAILURE_DETECTION_ENABLED.Name: "false"}
	plugin, err := NewHostMonitoringPlugin(newMockPluginService(), props, monitorService)
	assert.Nil(t, err)

	executed := false
	_, _, _, err = plugin.Execute(nil, utils.CONN_QUERY_CONTEXT, func() (any, any, bool, error) {
		executed = true
		return nil, nil, false, nil
	})

	assert.Nil(t, err)
	assert.True(t, executed)
	// Monitoring never starts when failure detection is off.
	assert.Zero(t, monitorService.startCalls)
}

func TestHostMonitoringPluginExecuteNotNetworkBound(t *testing.T) {
	monitorService := &mockMonitorService{}
	plugin, err := NewHostMonitoringPlugin(newMockPluginService(), map[string]string{}, monitorService)
	assert.Nil(t, err)

	executed := false
	_, _, _, err = plugin.Execute(nil, utils.CONN_CLOSE, func() (any, any, bool, error) {
		executed = true
		return nil, nil, false, nil
	})

	assert.Nil(t, err)
	assert.True(t, executed)
	assert.Zero(t, monitorService.startCalls)
}

func TestHostMonitoringPluginExecuteHealthyHost(t *testing.T) {
	var conn driver.Conn = &mockConn{isValid: true}
	state := NewMonitorConnectionState(&conn)
	monitorService := &mockMonitorService{state: state}

	pluginService := newMockPluginService()
	pluginService.currentHost = buildTestHost(t, "instance-1.xyz.us-east-2.rds.amazonaws.com")
	plugin, err := NewHostMonitoringPlugin(pluginService, map[string]string{}, monitorService)
	assert.Nil(t, err)

	result, _, _, err := plugin.Execute(nil, utils.CONN_QUERY_CONTEXT, func() (any, any, bool, error) {
		return "rows", nil, true, nil
	})

	assert.Nil(t, err)
	assert.Equal(t, "rows", result)
	assert.Equal(t, 1, monitorService.startCalls)
	assert.Equal(t, 1, monitorService.stopCalls)

	runtime.KeepAlive(&conn)
}

func TestHostMonitoringPluginExecuteUnhealthyHost(t *testing.T) {
	var conn driver.Conn = &mockConn{}
	state := NewMonitorConnectionState(&conn)
	state.SetHostUnhealthy(true)
	monitorService := &mockMonitorService{state: state}

	pluginService := newMockPluginService()
	pluginService.currentHost = buildTestHost(t, "instance-1.xyz.us-east-2.rds.amazonaws.com")
	plugin, err := NewHostMonitoringPlugin(pluginService, map[string]string{}, monitorService)
	assert.Nil(t, err)

	_, _, _, err = plugin.Execute(nil, utils.CONN_QUERY_CONTEXT, func() (any, any, bool, error) {
		return nil, nil, false, errors.New("broken pipe")
	})

	// The monitor aborted the connection mid-call, the caller sees the host as unavailable.
	assert.NotNil(t, err)
	assert.True(t, error_util.IsType(err, error_util.UnavailableHostErrorType))

	runtime.KeepAlive(&conn)
}

func TestHostMonitoringPluginResolvesInstanceEndpoint(t *testing.T) {
	var conn driver.Conn = &mockConn{isValid: true}
	state := NewMonitorConnectionState(&conn)
	monitorService := &mockMonitorService{state: state}

	pluginService := newMockPluginService()
	pluginService.currentHost = buildTestHost(t, "database.cluster-xyz.us-east-2.rds.amazonaws.com")
	pluginService.identifedHost = buildTestHost(t, "instance-1.xyz.us-east-2.rds.amazonaws.com")
	plugin, err := NewHostMonitoringPlugin(pluginService, map[string]string{}, monitorService)
	assert.Nil(t, err)

	_, _, _, err = plugin.Execute(nil, utils.CONN_QUERY_CONTEXT, func() (any, any, bool, error) {
		return nil, nil, false, nil
	})

	assert.Nil(t, err)
	// Monitoring runs against the instance endpoint, not the cluster endpoint.
	assert.Equal(t, "instance-1.xyz.us-east-2.rds.amazonaws.com", plugin.monitoringHostInfo.Host)

	runtime.KeepAlive(&conn)
}

func TestHostMonitoringPluginNotifyConnectionChanged(t *testing.T) {
	plugin, err := NewHostMonitoringPlugin(newMockPluginService(), map[string]string{}, &mockMonitorService{})
	assert.Nil(t, err)
	plugin.monitoringHostInfo = buildTestHost(t, "instance-1")

	changes := map[driver_infrastructure.HostChangeOptions]bool{driver_infrastructure.HOST_CHANGED: true}
	action := plugin.NotifyConnectionChanged(changes)

	assert.Nil(t, plugin.monitoringHostInfo)
	assert.Equal(t, driver_infrastructure.NO_OPINION, action)
}
