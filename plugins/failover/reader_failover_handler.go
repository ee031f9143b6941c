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
	"math/rand"
	"time"

	"clustersql/driver_infrastructure"
	"clustersql/error_util"
	"clustersql/host_info_util"
	"clustersql/property_util"
	"clustersql/utils"
)

const (
	READER_FAILOVER_BATCH_SIZE     = 2
	READER_FAILOVER_BATCH_INTERVAL = time.Second
)

type ReaderFailoverResult struct {
	Conn     driver.Conn
	HostInfo *host_info_util.HostInfo
}

func (r ReaderFailoverResult) IsConnected() bool {
	return r.Conn != nil
}

type ReaderFailoverHandler interface {
	GetReaderConnection(hosts []*host_info_util.HostInfo) (ReaderFailoverResult, error)
}

// ClusterAwareReaderFailoverHandler races candidate hosts in small batches
// until one of them yields a usable connection. Candidates are attempted in
// priority order: available readers first, then the writer, then readers
// previously marked unavailable. Each batch is raced concurrently and the
// first successful connection wins.
type ClusterAwareReaderFailoverHandler struct {
	pluginService        driver_infrastructure.PluginService
	props                map[string]string
	maxFailoverTimeoutMs int
	hostConnectTimeoutMs int
	strictReader         bool
}

func NewClusterAwareReaderFailoverHandler(
	pluginService driver_infrastructure.PluginService,
	props map[string]string,
	maxFailoverTimeoutMs int,
	hostConnectTimeoutMs int,
	strictReader bool) *ClusterAwareReaderFailoverHandler {
	return &ClusterAwareReaderFailoverHandler{
		pluginService:        pluginService,
		props:                props,
		maxFailoverTimeoutMs: maxFailoverTimeoutMs,
		hostConnectTimeoutMs: hostConnectTimeoutMs,
		strictReader:         strictReader,
	}
}

func NewReaderFailoverHandlerFromProps(
	pluginService driver_infrastructure.PluginService,
	props map[string]string,
	strictReader bool) *ClusterAwareReaderFailoverHandler {
	return NewClusterAwareReaderFailoverHandler(
		pluginService,
		props,
		property_util.GetVerifiedPropertyValue[int](props, property_util.FAILOVER_TIMEOUT_MS),
		property_util.GetVerifiedPropertyValue[int](props, property_util.FAILOVER_READER_CONNECT_TIMEOUT_MS),
		strictReader)
}

type readerAttemptResult struct {
	conn     driver.Conn
	hostInfo *host_info_util.HostInfo
	err      error
}

func (handler *ClusterAwareReaderFailoverHandler) GetReaderConnection(
	hosts []*host_info_util.HostInfo) (ReaderFailoverResult, error) {
	if len(hosts) == 0 {
		return ReaderFailoverResult{}, error_util.NewFailoverFailedError(error_util.GetMessage("ReaderFailoverHandler.emptyHostList"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(handler.maxFailoverTimeoutMs)*time.Millisecond)
	defer cancel()

	for {
		result, err := handler.failoverRound(ctx, hosts)
		if err != nil {
			return ReaderFailoverResult{}, err
		}
		if result.IsConnected() {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return ReaderFailoverResult{}, error_util.NewFailoverFailedError(
				error_util.GetMessage("ReaderFailoverHandler.timeout"))
		case <-time.After(READER_FAILOVER_BATCH_INTERVAL):
			// All candidates failed this round. Retry until the overall timeout expires.
		}
	}
}

func (handler *ClusterAwareReaderFailoverHandler) failoverRound(
	ctx context.Context, hosts []*host_info_util.HostInfo) (ReaderFailoverResult, error) {
	hostsByPriority := handler.buildHostsByPriority(hosts)
	slog.Debug(utils.LogTopology(hostsByPriority, error_util.GetMessage("ReaderFailoverHandler.hostsByPriority")))

	for i := 0; i < len(hostsByPriority); i += READER_FAILOVER_BATCH_SIZE {
		if ctx.Err() != nil {
			return ReaderFailoverResult{}, nil
		}

		end := min(i+READER_FAILOVER_BATCH_SIZE, len(hostsByPriority))
		result, err := handler.connectToBatch(ctx, hostsByPriority[i:end])
		if err != nil {
			return ReaderFailoverResult{}, err
		}
		if result.IsConnected() {
			return result, nil
		}

		if end < len(hostsByPriority) {
			select {
			case <-ctx.Done():
				return ReaderFailoverResult{}, nil
			case <-time.After(READER_FAILOVER_BATCH_INTERVAL):
			}
		}
	}

	return ReaderFailoverResult{}, nil
}

// buildHostsByPriority orders failover candidates: a shuffled list of readers
// believed to be available, the original writer (skipped in strict reader mode
// when reader candidates exist), then a shuffled list of readers previously
// marked unavailable. Shuffling spreads reconnect load across readers when
// many connections fail over at once.
func (handler *ClusterAwareReaderFailoverHandler) buildHostsByPriority(
	hosts []*host_info_util.HostInfo) []*host_info_util.HostInfo {
	activeReaders := utils.FilterSlice(hosts, func(hostInfo *host_info_util.HostInfo) bool {
		return hostInfo.Role == host_info_util.READER && hostInfo.Availability == host_info_util.AVAILABLE
	})
	downHosts := utils.FilterSlice(hosts, func(hostInfo *host_info_util.HostInfo) bool {
		return hostInfo.Role == host_info_util.READER && hostInfo.Availability != host_info_util.AVAILABLE
	})
	writer := host_info_util.GetWriter(hosts)

	rand.Shuffle(len(activeReaders), func(i int, j int) {
		activeReaders[i], activeReaders[j] = activeReaders[j], activeReaders[i]
	})
	rand.Shuffle(len(downHosts), func(i int, j int) {
		downHosts[i], downHosts[j] = downHosts[j], downHosts[i]
	})

	hostsByPriority := make([]*host_info_util.HostInfo, 0, len(hosts))
	hostsByPriority = append(hostsByPriority, activeReaders...)
	numReaders := len(activeReaders) + len(downHosts)
	// The writer may have been demoted to a reader by now, so it is a valid
	// candidate unless strict reader mode still has actual readers to try.
	if !writer.IsNil() && (!handler.strictReader || numReaders == 0) {
		hostsByPriority = append(hostsByPriority, writer)
	}
	hostsByPriority = append(hostsByPriority, downHosts...)
	return hostsByPriority
}

// connectToBatch races connection attempts to every host in the batch and
// returns the first usable connection. A non-network error from any attempt
// aborts failover immediately. Late connections from losing attempts are
// closed.
func (handler *ClusterAwareReaderFailoverHandler) connectToBatch(
	ctx context.Context, batch []*host_info_util.HostInfo) (ReaderFailoverResult, error) {
	results := make(chan readerAttemptResult, len(batch))
	for _, hostInfo := range batch {
		go handler.attemptConnection(hostInfo, results)
	}

	received := 0
	for received < len(batch) {
		select {
		case <-ctx.Done():
			go drainAttemptResults(results, len(batch)-received)
			return ReaderFailoverResult{}, nil
		case attempt := <-results:
			received++
			if attempt.err != nil {
				if !handler.pluginService.IsNetworkError(attempt.err) {
					go drainAttemptResults(results, len(batch)-received)
					return ReaderFailoverResult{}, attempt.err
				}
				continue
			}
			if attempt.conn != nil {
				go drainAttemptResults(results, len(batch)-received)
				return ReaderFailoverResult{Conn: attempt.conn, HostInfo: attempt.hostInfo}, nil
			}
		}
	}

	return ReaderFailoverResult{}, nil
}

func drainAttemptResults(results <-chan readerAttemptResult, remaining int) {
	for i := 0; i < remaining; i++ {
		attempt := <-results
		if attempt.conn != nil {
			_ = attempt.conn.Close()
		}
	}
}

// attemptConnection connects to a single host with a per-attempt timeout.
// A result with a nil conn and nil err means the host should simply be
// skipped, for example when its role does not satisfy strict reader mode.
func (handler *ClusterAwareReaderFailoverHandler) attemptConnection(
	hostInfo *host_info_util.HostInfo, results chan<- readerAttemptResult) {
	slog.Debug(error_util.GetMessage("ReaderFailoverHandler.attemptingReaderConnection", hostInfo.Host))
	connChan := make(chan readerAttemptResult, 1)
	go func() {
		props := utils.CreateMapCopy(handler.props)
		conn, err := handler.pluginService.ForceConnect(hostInfo, props)
		connChan <- readerAttemptResult{conn: conn, hostInfo: hostInfo, err: err}
	}()

	var attempt readerAttemptResult
	select {
	case attempt = <-connChan:
	case <-time.After(time.Duration(handler.hostConnectTimeoutMs) * time.Millisecond):
		// The attempt may still complete later. Close whatever it produces.
		go func() {
			late := <-connChan
			if late.conn != nil {
				_ = late.conn.Close()
			}
		}()
		slog.Debug(error_util.GetMessage("ReaderFailoverHandler.attemptTimedOut", hostInfo.Host))
		handler.pluginService.SetAvailability(hostInfo.AllAliases, host_info_util.UNAVAILABLE)
		results <- readerAttemptResult{hostInfo: hostInfo}
		return
	}

	if attempt.err != nil {
		slog.Debug(error_util.GetMessage("ReaderFailoverHandler.failedReaderConnection", hostInfo.Host, attempt.err.Error()))
		if handler.pluginService.IsNetworkError(attempt.err) {
			handler.pluginService.SetAvailability(hostInfo.AllAliases, host_info_util.UNAVAILABLE)
		}
		results <- attempt
		return
	}

	handler.pluginService.SetAvailability(hostInfo.AllAliases, host_info_util.AVAILABLE)

	// The cached topology may be stale, so verify the role over the new connection.
	role := handler.pluginService.GetHostRole(attempt.conn)
	if handler.strictReader && role != host_info_util.READER {
		slog.Debug(error_util.GetMessage("ReaderFailoverHandler.invalidReaderRole", hostInfo.Host, string(role)))
		_ = attempt.conn.Close()
		results <- readerAttemptResult{hostInfo: hostInfo}
		return
	}

	slog.Info(error_util.GetMessage("ReaderFailoverHandler.successfulReaderConnection", hostInfo.Host))
	results <- readerAttemptResult{conn: attempt.conn, hostInfo: hostInfo.MakeCopyWithRole(role)}
}
