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
	"database/sql/driver"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"weak"

	"clustersql/driver_infrastructure"
	"clustersql/error_util"
	"clustersql/host_info_util"
	"clustersql/property_util"
	"clustersql/utils"
)

type MonitorService interface {
	StartMonitoring(conn *driver.Conn, hostInfo *host_info_util.HostInfo, props map[string]string,
		failureDetectionTimeMillis int, failureDetectionIntervalMillis int, failureDetectionCount int) (*MonitorConnectionState, error)
	StopMonitoring(state *MonitorConnectionState, connToAbort driver.Conn)
}

// MonitorServiceImpl hands out shared monitors. Monitors are keyed by their
// detection settings and host url, so connections with the same settings to
// the same host share one probe loop. An unused monitor is disposed of after
// the monitor disposal time.
type MonitorServiceImpl struct {
	pluginService driver_infrastructure.PluginService
	monitors      *utils.SlidingExpirationCache[Monitor]
}

func NewMonitorServiceImpl(pluginService driver_infrastructure.PluginService, monitors *utils.SlidingExpirationCache[Monitor]) *MonitorServiceImpl {
	return &MonitorServiceImpl{pluginService: pluginService, monitors: monitors}
}

// NewMonitorCache builds the cache a MonitorServiceImpl stores monitors in.
func NewMonitorCache() *utils.SlidingExpirationCache[Monitor] {
	return utils.NewSlidingExpirationCache[Monitor](
		"efm_monitors",
		func(monitor Monitor) bool {
			monitor.Close()
			return false
		},
		func(monitor Monitor) bool {
			return monitor.CanDispose()
		})
}

func (m *MonitorServiceImpl) StartMonitoring(conn *driver.Conn, hostInfo *host_info_util.HostInfo, props map[string]string,
	failureDetectionTimeMillis int, failureDetectionIntervalMillis int, failureDetectionCount int) (*MonitorConnectionState, error) {
	if conn == nil {
		return nil, error_util.NewIllegalArgumentError(error_util.GetMessage("MonitorServiceImpl.illegalArgument", "conn"))
	}
	if hostInfo.IsNil() {
		return nil, error_util.NewIllegalArgumentError(error_util.GetMessage("MonitorServiceImpl.illegalArgument", "hostInfo"))
	}
	monitor := m.getMonitor(hostInfo, props, failureDetectionTimeMillis, failureDetectionIntervalMillis, failureDetectionCount)
	state := NewMonitorConnectionState(conn)
	monitor.StartMonitoring(state)
	return state, nil
}

func (m *MonitorServiceImpl) StopMonitoring(state *MonitorConnectionState, connToAbort driver.Conn) {
	if state.ShouldAbort() {
		state.SetInactive()
		err := connToAbort.Close()
		if err != nil {
			slog.Debug(error_util.GetMessage("MonitorServiceImpl.errorAbortingConn", err.Error()))
		}
	} else {
		state.SetInactive()
	}
}

func (m *MonitorServiceImpl) getMonitor(hostInfo *host_info_util.HostInfo, props map[string]string, failureDetectionTimeMillis int,
	failureDetectionIntervalMillis int, failureDetectionCount int) Monitor {
	monitorKey := fmt.Sprintf("%d:%d:%d:%s", failureDetectionTimeMillis, failureDetectionIntervalMillis, failureDetectionCount, hostInfo.GetUrl())
	cacheExpiration := time.Millisecond * time.Duration(property_util.GetVerifiedPropertyValue[int](props, property_util.MONITOR_DISPOSAL_TIME_MS))
	return m.monitors.ComputeIfAbsent(
		monitorKey,
		func() Monitor {
			return NewMonitorImpl(m.pluginService, hostInfo, props, failureDetectionTimeMillis, failureDetectionIntervalMillis, failureDetectionCount)
		},
		cacheExpiration)
}

// MonitorConnectionState tracks one driver connection for the duration of a
// network bound call. The monitor holds it weakly, so a state that the
// wrapper lets go of just falls out of monitoring.
type MonitorConnectionState struct {
	hostUnhealthy  bool
	connToAbortRef weak.Pointer[driver.Conn]
	connLock       sync.RWMutex
	hostHealthLock sync.RWMutex
}

func NewMonitorConnectionState(connToAbort *driver.Conn) *MonitorConnectionState {
	return &MonitorConnectionState{hostUnhealthy: false, connToAbortRef: weak.Make(connToAbort)}
}

func (m *MonitorConnectionState) SetHostUnhealthy(hostUnhealthy bool) {
	m.hostHealthLock.Lock()
	defer m.hostHealthLock.Unlock()
	m.hostUnhealthy = hostUnhealthy
}

func (m *MonitorConnectionState) IsHostUnhealthy() bool {
	m.hostHealthLock.RLock()
	defer m.hostHealthLock.RUnlock()
	return m.hostUnhealthy
}

// SetInactive takes the state out of monitoring. Deactivation is terminal.
func (m *MonitorConnectionState) SetInactive() {
	m.connLock.Lock()
	defer m.connLock.Unlock()

	var nilPointer *driver.Conn
	m.connToAbortRef = weak.Make(nilPointer)
}

func (m *MonitorConnectionState) ShouldAbort() bool {
	m.connLock.RLock()
	m.hostHealthLock.RLock()
	defer m.connLock.RUnlock()
	defer m.hostHealthLock.RUnlock()

	return m.hostUnhealthy && m.connToAbortRef.Value() != nil
}

func (m *MonitorConnectionState) GetConn() *driver.Conn {
	m.connLock.RLock()
	defer m.connLock.RUnlock()

	return m.connToAbortRef.Value()
}

func (m *MonitorConnectionState) IsActive() bool {
	m.connLock.RLock()
	defer m.connLock.RUnlock()

	return m.connToAbortRef.Value() != nil
}
