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
	"context"
	"database/sql/driver"
	"log/slog"
	"time"

	"clustersql/driver_infrastructure"
	"clustersql/error_util"
	"clustersql/host_info_util"
	"clustersql/property_util"
	"clustersql/utils"
)

const (
	RECONNECT_WRITER_TASK = "task-a"
	WAIT_NEW_WRITER_TASK  = "task-b"
)

type WriterFailoverResult struct {
	IsConnected   bool
	IsNewHost     bool
	NewConnection driver.Conn
	NewHost       *host_info_util.HostInfo
	TaskName      string
}

type WriterFailoverHandler interface {
	Failover(hosts []*host_info_util.HostInfo) (WriterFailoverResult, error)
}

// ClusterAwareWriterFailoverHandler runs two competing tasks after a writer
// failure. Task A repeatedly reconnects to the original writer, betting on the
// cluster restoring it. Task B connects to a reader, watches the topology for
// a newly promoted writer, and connects to it. The first task to produce a
// verified writer connection wins; the loser's connection is closed.
type ClusterAwareWriterFailoverHandler struct {
	pluginService             driver_infrastructure.PluginService
	readerFailoverHandler     ReaderFailoverHandler
	props                     map[string]string
	maxFailoverTimeoutMs      int
	reconnectWriterIntervalMs int
	topologyRefreshRateMs     int
}

func NewClusterAwareWriterFailoverHandler(
	pluginService driver_infrastructure.PluginService,
	readerFailoverHandler ReaderFailoverHandler,
	props map[string]string,
	maxFailoverTimeoutMs int,
	reconnectWriterIntervalMs int,
	topologyRefreshRateMs int) *ClusterAwareWriterFailoverHandler {
	return &ClusterAwareWriterFailoverHandler{
		pluginService:             pluginService,
		readerFailoverHandler:     readerFailoverHandler,
		props:                     props,
		maxFailoverTimeoutMs:      maxFailoverTimeoutMs,
		reconnectWriterIntervalMs: reconnectWriterIntervalMs,
		topologyRefreshRateMs:     topologyRefreshRateMs,
	}
}

func NewWriterFailoverHandlerFromProps(
	pluginService driver_infrastructure.PluginService,
	readerFailoverHandler ReaderFailoverHandler,
	props map[string]string) *ClusterAwareWriterFailoverHandler {
	return NewClusterAwareWriterFailoverHandler(
		pluginService,
		readerFailoverHandler,
		props,
		property_util.GetVerifiedPropertyValue[int](props, property_util.FAILOVER_TIMEOUT_MS),
		property_util.GetVerifiedPropertyValue[int](props, property_util.FAILOVER_WRITER_RECONNECT_INTERVAL_MS),
		property_util.GetVerifiedPropertyValue[int](props, property_util.FAILOVER_CLUSTER_TOPOLOGY_REFRESH_RATE_MS))
}

func (handler *ClusterAwareWriterFailoverHandler) Failover(
	hosts []*host_info_util.HostInfo) (WriterFailoverResult, error) {
	originalWriter := host_info_util.GetWriter(hosts)
	if originalWriter.IsNil() {
		return WriterFailoverResult{}, error_util.NewFailoverFailedError(
			utils.LogTopology(hosts, error_util.GetMessage("WriterFailoverHandler.noWriterHost")))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(handler.maxFailoverTimeoutMs)*time.Millisecond)
	defer cancel()

	results := make(chan WriterFailoverResult, 2)
	go handler.reconnectToWriter(ctx, originalWriter, results)
	go handler.waitForNewWriter(ctx, hosts, originalWriter, results)

	received := 0
	for received < 2 {
		select {
		case <-ctx.Done():
			go drainWriterResults(results, 2-received)
			return WriterFailoverResult{}, error_util.NewFailoverFailedError(
				error_util.GetMessage("WriterFailoverHandler.timeout"))
		case result := <-results:
			received++
			if result.IsConnected {
				// Stop the losing task and discard any connection it produces.
				cancel()
				go drainWriterResults(results, 2-received)
				slog.Info(error_util.GetMessage("WriterFailoverHandler.successfulConnection", result.TaskName, result.NewHost.Host))
				return result, nil
			}
		}
	}

	return WriterFailoverResult{}, error_util.NewFailoverFailedError(
		error_util.GetMessage("WriterFailoverHandler.unableToConnect"))
}

func drainWriterResults(results <-chan WriterFailoverResult, remaining int) {
	for i := 0; i < remaining; i++ {
		result := <-results
		if result.NewConnection != nil {
			_ = result.NewConnection.Close()
		}
	}
}

// reconnectToWriter is task A: reconnect to the original writer until it comes
// back or the deadline passes. A connection whose role is no longer WRITER is
// discarded, the host has been demoted and task B must find its successor.
func (handler *ClusterAwareWriterFailoverHandler) reconnectToWriter(
	ctx context.Context,
	originalWriter *host_info_util.HostInfo,
	results chan<- WriterFailoverResult) {
	slog.Debug(error_util.GetMessage("WriterFailoverHandler.taskAAttemptReconnect", originalWriter.Host))

	for ctx.Err() == nil {
		props := utils.CreateMapCopy(handler.props)
		conn, err := handler.pluginService.ForceConnect(originalWriter, props)
		if err == nil && conn != nil {
			role := handler.pluginService.GetHostRole(conn)
			if role == host_info_util.WRITER {
				handler.pluginService.SetAvailability(originalWriter.AllAliases, host_info_util.AVAILABLE)
				results <- WriterFailoverResult{
					IsConnected:   true,
					IsNewHost:     false,
					NewConnection: conn,
					NewHost:       originalWriter,
					TaskName:      RECONNECT_WRITER_TASK,
				}
				return
			}
			// The old writer is back as a reader. Reconnecting to it cannot
			// succeed anymore, so end the task and leave the race to task B.
			slog.Debug(error_util.GetMessage("WriterFailoverHandler.taskAWriterDemoted", originalWriter.Host, string(role)))
			_ = conn.Close()
			results <- WriterFailoverResult{TaskName: RECONNECT_WRITER_TASK}
			return
		}
		if conn != nil {
			_ = conn.Close()
		}

		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(handler.reconnectWriterIntervalMs) * time.Millisecond):
		}
	}

	results <- WriterFailoverResult{TaskName: RECONNECT_WRITER_TASK}
}

// waitForNewWriter is task B: obtain a reader connection, poll the topology
// through it until a writer other than the original appears, then connect to
// that writer.
func (handler *ClusterAwareWriterFailoverHandler) waitForNewWriter(
	ctx context.Context,
	hosts []*host_info_util.HostInfo,
	originalWriter *host_info_util.HostInfo,
	results chan<- WriterFailoverResult) {
	slog.Debug(error_util.GetMessage("WriterFailoverHandler.taskBAttemptConnectionToNewWriter"))

	readerResult, err := handler.readerFailoverHandler.GetReaderConnection(hosts)
	if err != nil || !readerResult.IsConnected() {
		slog.Debug(error_util.GetMessage("WriterFailoverHandler.taskBNoReaderConnection"))
		results <- WriterFailoverResult{TaskName: WAIT_NEW_WRITER_TASK}
		return
	}
	defer func() {
		_ = readerResult.Conn.Close()
	}()

	for ctx.Err() == nil {
		refreshErr := handler.pluginService.ForceRefreshHostList(readerResult.Conn)
		if refreshErr == nil {
			newWriter := host_info_util.GetWriter(handler.pluginService.GetHosts())
			if !newWriter.IsNil() && !newWriter.Equals(originalWriter) {
				conn, connectErr := handler.connectToNewWriter(newWriter)
				if connectErr == nil {
					results <- WriterFailoverResult{
						IsConnected:   true,
						IsNewHost:     true,
						NewConnection: conn,
						NewHost:       newWriter,
						TaskName:      WAIT_NEW_WRITER_TASK,
					}
					return
				}
				slog.Debug(error_util.GetMessage("WriterFailoverHandler.taskBFailedConnectionToNewWriter", newWriter.Host, connectErr.Error()))
			}
		}

		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(handler.topologyRefreshRateMs) * time.Millisecond):
		}
	}

	results <- WriterFailoverResult{TaskName: WAIT_NEW_WRITER_TASK}
}

func (handler *ClusterAwareWriterFailoverHandler) connectToNewWriter(
	newWriter *host_info_util.HostInfo) (driver.Conn, error) {
	props := utils.CreateMapCopy(handler.props)
	conn, err := handler.pluginService.ForceConnect(newWriter, props)
	if err != nil {
		handler.pluginService.SetAvailability(newWriter.AllAliases, host_info_util.UNAVAILABLE)
		return nil, err
	}

	role := handler.pluginService.GetHostRole(conn)
	if role != host_info_util.WRITER {
		_ = conn.Close()
		return nil, error_util.NewFailoverFailedError(
			error_util.GetMessage("WriterFailoverHandler.unexpectedReaderRole", newWriter.Host, string(role)))
	}

	handler.pluginService.SetAvailability(newWriter.AllAliases, host_info_util.AVAILABLE)
	return conn, nil
}
