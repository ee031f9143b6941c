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
	"log/slog"
	"math"
	"sync"
	"time"
	"weak"

	"clustersql/driver_infrastructure"
	"clustersql/error_util"
	"clustersql/host_info_util"
	"clustersql/property_util"
	"clustersql/utils"
)

var EFM_ROUTINE_SLEEP_DURATION = 100 * time.Millisecond

type Monitor interface {
	StartMonitoring(state *MonitorConnectionState)
	CanDispose() bool
	Close()
}

// MonitorImpl probes a single host out of band. Connection states registered
// through StartMonitoring become active after the failure detection grace
// period passes; probe results before that do not count against the host.
// Once the host is declared unhealthy every active state's connection is
// aborted.
type MonitorImpl struct {
	hostInfo                 *host_info_util.HostInfo
	MonitoringConn           driver.Conn
	pluginService            driver_infrastructure.PluginService
	monitoringProps          map[string]string
	failureDetectionTime     time.Duration
	failureDetectionInterval time.Duration
	FailureCount             int
	failureDetectionCount    int
	InvalidHostStartTime     time.Time
	ActiveStates             []weak.Pointer[MonitorConnectionState]
	NewStates                map[time.Time][]weak.Pointer[MonitorConnectionState]
	Stopped                  bool
	HostUnhealthy            bool
	lock                     sync.RWMutex
	wg                       sync.WaitGroup
}

func NewMonitorImpl(pluginService driver_infrastructure.PluginService, hostInfo *host_info_util.HostInfo, props map[string]string,
	failureDetectionTimeMillis int, failureDetectionIntervalMillis int, failureDetectionCount int) *MonitorImpl {
	monitor := &MonitorImpl{
		hostInfo:                 hostInfo,
		monitoringProps:          property_util.GetMonitoringProperties(utils.CreateMapCopy(props)),
		pluginService:            pluginService,
		failureDetectionTime:     time.Millisecond * time.Duration(failureDetectionTimeMillis),
		failureDetectionInterval: time.Millisecond * time.Duration(failureDetectionIntervalMillis),
		failureDetectionCount:    failureDetectionCount,
		NewStates:                map[time.Time][]weak.Pointer[MonitorConnectionState]{}}

	monitor.wg.Add(2)
	go monitor.newStateRun()
	go monitor.run()

	return monitor
}

func (m *MonitorImpl) CanDispose() bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.ActiveStates) == 0 && len(m.NewStates) == 0
}

func (m *MonitorImpl) Close() {
	m.lock.Lock()
	m.Stopped = true
	m.lock.Unlock()

	m.wg.Wait()

	slog.Debug(error_util.GetMessage("MonitorImpl.stopped", m.hostInfo.Host))
}

func (m *MonitorImpl) StartMonitoring(state *MonitorConnectionState) {
	if m.isStopped() {
		slog.Warn(error_util.GetMessage("MonitorImpl.monitorIsStopped", m.hostInfo.Host))
	}

	startMonitoringTime := time.Now().Add(m.failureDetectionTime)
	m.lock.Lock()
	m.NewStates[startMonitoringTime] = append(m.NewStates[startMonitoringTime], weak.Make(state))
	m.lock.Unlock()
}

// newStateRun promotes queued states to active monitoring once their grace
// period has elapsed.
func (m *MonitorImpl) newStateRun() {
	slog.Debug(error_util.GetMessage("MonitorImpl.startMonitoringRoutineNewState", m.hostInfo.Host))
	defer m.wg.Done()

	for !m.isStopped() {
		currentTime := time.Now()
		m.lock.Lock()
		for startMonitoringTime, queuedStates := range m.NewStates {
			if startMonitoringTime.Before(currentTime) {
				for _, stateWeakRef := range queuedStates {
					state := stateWeakRef.Value()
					if state != nil && state.IsActive() {
						m.ActiveStates = append(m.ActiveStates, stateWeakRef)
					}
				}
				delete(m.NewStates, startMonitoringTime)
			}
		}
		m.lock.Unlock()
		time.Sleep(time.Second)
	}

	slog.Debug(error_util.GetMessage("MonitorImpl.stopMonitoringRoutineNewState", m.hostInfo.Host))
}

func (m *MonitorImpl) run() {
	slog.Debug(error_util.GetMessage("MonitorImpl.startMonitoringRoutine", m.hostInfo.Host))
	defer m.wg.Done()

	for !m.isStopped() {
		m.lock.RLock()
		activeStates := make([]weak.Pointer[MonitorConnectionState], len(m.ActiveStates))
		copy(activeStates, m.ActiveStates)
		m.lock.RUnlock()

		if len(activeStates) == 0 && !m.HostUnhealthy {
			time.Sleep(EFM_ROUTINE_SLEEP_DURATION)
			continue
		}

		statusCheckStartTime := time.Now()
		connIsValid := m.CheckConnectionStatus()
		statusCheckEndTime := time.Now()
		m.UpdateHostHealthStatus(connIsValid, statusCheckStartTime, statusCheckEndTime)

		if m.HostUnhealthy {
			m.pluginService.SetAvailability(m.hostInfo.AllAliases, host_info_util.UNAVAILABLE)
		}

		var remainingActiveStates []weak.Pointer[MonitorConnectionState]
		for _, stateWeakRef := range activeStates {
			if m.isStopped() {
				break
			}

			state := stateWeakRef.Value()
			if state == nil {
				continue
			}

			if m.HostUnhealthy {
				state.SetHostUnhealthy(true)
				connToAbort := state.GetConn()
				state.SetInactive()
				if connToAbort != nil {
					_ = (*connToAbort).Close()
				}
			} else if state.IsActive() {
				remainingActiveStates = append(remainingActiveStates, stateWeakRef)
			}
		}
		// States promoted while this pass ran are carried over untouched.
		m.lock.Lock()
		m.ActiveStates = append(remainingActiveStates, m.ActiveStates[len(activeStates):]...)
		m.lock.Unlock()

		delayDuration := m.failureDetectionInterval - (statusCheckEndTime.Sub(statusCheckStartTime))
		if delayDuration < EFM_ROUTINE_SLEEP_DURATION {
			delayDuration = EFM_ROUTINE_SLEEP_DURATION
		}
		time.Sleep(delayDuration)
	}
	if m.MonitoringConn != nil {
		_ = m.MonitoringConn.Close()
	}
	slog.Debug(error_util.GetMessage("MonitorImpl.stopMonitoringRoutine", m.hostInfo.Host))
}

// UpdateHostHealthStatus declares the host unhealthy when consecutive probe
// failures reach failureDetectionCount, or when the host has been failing for
// at least failureDetectionInterval * failureDetectionCount. A single
// successful probe resets both.
func (m *MonitorImpl) UpdateHostHealthStatus(connIsValid bool, statusCheckStartTime time.Time, statusCheckEndTime time.Time) {
	if !connIsValid {
		m.FailureCount++

		if m.InvalidHostStartTime.IsZero() {
			m.InvalidHostStartTime = statusCheckStartTime
		}

		invalidHostDuration := statusCheckEndTime.Sub(m.InvalidHostStartTime)
		maxInvalidDuration := m.failureDetectionInterval * time.Duration(math.Max(0, float64(m.failureDetectionCount)))

		if m.FailureCount >= m.failureDetectionCount || invalidHostDuration >= maxInvalidDuration {
			slog.Debug(error_util.GetMessage("MonitorImpl.hostDead", m.hostInfo.Host))
			m.HostUnhealthy = true
			return
		}

		slog.Debug(error_util.GetMessage("MonitorImpl.hostNotResponding", m.hostInfo.Host))
		return
	}

	if m.FailureCount > 0 {
		// Host is back alive.
		slog.Debug(error_util.GetMessage("MonitorImpl.hostAlive", m.hostInfo.Host))
	}

	m.FailureCount = 0
	m.InvalidHostStartTime = time.Time{}
	m.HostUnhealthy = false
}

func (m *MonitorImpl) CheckConnectionStatus() bool {
	if m.MonitoringConn == nil || utils.IsConnectionLost(m.MonitoringConn) {
		// Open a new connection.
		slog.Debug(error_util.GetMessage("MonitorImpl.openingMonitoringConnection", m.hostInfo.Host))
		newMonitoringConn, err := m.pluginService.ForceConnect(m.hostInfo, m.monitoringProps)
		if err != nil || newMonitoringConn == nil {
			return false
		}
		m.MonitoringConn = newMonitoringConn
		slog.Debug(error_util.GetMessage("MonitorImpl.openedMonitoringConnection", m.hostInfo.Host))
		return true
	}

	// If implemented, validate by driver.Validator. Currently, only mysql Conns support this.
	validator, implementsIsValid := m.MonitoringConn.(driver.Validator)
	if implementsIsValid {
		return validator.IsValid()
	}
	// As a last resort, check connection by executing a query.
	queryer, implementsQueryer := m.MonitoringConn.(driver.QueryerContext)
	if implementsQueryer {
		_, err := queryer.QueryContext(context.TODO(), "select 1", []driver.NamedValue{})
		return err == nil
	}
	return false
}

func (m *MonitorImpl) isStopped() bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.Stopped
}
