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
	"log/slog"
	"strings"
	"time"

	"clustersql/driver_infrastructure"
	"clustersql/error_util"
	"clustersql/host_info_util"
	"clustersql/plugin_helpers"
	"clustersql/plugins"
	"clustersql/property_util"
	"clustersql/utils"
)

type FailoverMode string

const (
	MODE_STRICT_WRITER    FailoverMode = "strict-writer"
	MODE_STRICT_READER    FailoverMode = "strict-reader"
	MODE_READER_OR_WRITER FailoverMode = "reader-or-writer"
	MODE_UNKNOWN          FailoverMode = "unknown"
)

func failoverModeFromValue(mode string) FailoverMode {
	switch mode {
	case "strict-writer":
		return MODE_STRICT_WRITER
	case "strict-reader":
		return MODE_STRICT_READER
	case "reader-or-writer":
		return MODE_READER_OR_WRITER
	default:
		return MODE_UNKNOWN
	}
}

// FailoverPlugin swaps a failed connection for a healthy one when a network
// error surfaces from a network bound method. Depending on the failover mode
// it either restores a writer connection or races reader candidates.
type FailoverPlugin struct {
	plugins.BaseConnectionPlugin
	pluginService            driver_infrastructure.PluginService
	hostListProviderService  driver_infrastructure.HostListProviderService
	props                    map[string]string
	failoverTimeoutMsSetting int
	FailoverMode             FailoverMode
	isInTransaction          bool
	rdsUrlType               utils.RdsUrlType
	lastErrorDealtWith       error
	readerFailoverHandler    ReaderFailoverHandler
	writerFailoverHandler    WriterFailoverHandler
}

func NewFailoverPlugin(pluginService driver_infrastructure.PluginService, props map[string]string) *FailoverPlugin {
	return &FailoverPlugin{
		pluginService:            pluginService,
		props:                    props,
		failoverTimeoutMsSetting: property_util.GetVerifiedPropertyValue[int](props, property_util.FAILOVER_TIMEOUT_MS),
	}
}

func (p *FailoverPlugin) GetPluginCode() string {
	return driver_infrastructure.FAILOVER_PLUGIN_CODE
}

func (p *FailoverPlugin) GetSubscribedMethods() []string {
	return append([]string{
		plugin_helpers.CONNECT_METHOD,
		plugin_helpers.INIT_HOST_PROVIDER_METHOD,
	}, utils.NETWORK_BOUND_METHODS...)
}

func (p *FailoverPlugin) InitHostProvider(
	props map[string]string,
	hostListProviderService driver_infrastructure.HostListProviderService,
	initHostProviderFunc func() error) error {
	p.hostListProviderService = hostListProviderService
	return initHostProviderFunc()
}

func (p *FailoverPlugin) Connect(
	hostInfo *host_info_util.HostInfo,
	props map[string]string,
	isInitialConnection bool,
	connectFunc driver_infrastructure.ConnectFunc) (driver.Conn, error) {
	p.InitFailoverMode()

	if !property_util.GetVerifiedPropertyValue[bool](props, property_util.ENABLE_CONNECT_FAILOVER) {
		return connectFunc(props)
	}

	var hostInfoWithAvailability *host_info_util.HostInfo
	hosts := utils.FilterSlice(p.pluginService.GetHosts(), func(item *host_info_util.HostInfo) bool {
		return item.GetHostAndPort() == hostInfo.GetHostAndPort()
	})
	if len(hosts) != 0 {
		hostInfoWithAvailability = hosts[0]
	}

	var conn driver.Conn
	if hostInfoWithAvailability.IsNil() || hostInfoWithAvailability.Availability != host_info_util.UNAVAILABLE {
		var err error
		conn, err = connectFunc(props)
		if err != nil {
			if !p.shouldErrorTriggerConnectionSwitch(err) {
				return nil, err
			}

			p.pluginService.SetAvailability(hostInfo.AllAliases, host_info_util.UNAVAILABLE)

			err = p.Failover()
			if errors.Is(err, error_util.FailoverSuccessError) {
				conn = p.pluginService.GetCurrentConnection()
			} else if err != nil {
				return nil, err
			}
		}
	} else {
		// The requested host is known to be down, skip straight to failover.
		err := p.Failover()
		if errors.Is(err, error_util.FailoverSuccessError) {
			conn = p.pluginService.GetCurrentConnection()
		} else if err != nil {
			return nil, err
		}
	}

	if conn == nil {
		// This should be unreachable, the above logic will either get a connection successfully or return an error.
		return nil, error_util.NewGenericClusterSqlError(error_util.GetMessage("Failover.unableToConnect"))
	}

	if isInitialConnection {
		refreshErr := p.pluginService.RefreshHostList(conn)
		if refreshErr != nil {
			return nil, refreshErr
		}
	}

	return conn, nil
}

func (p *FailoverPlugin) InitFailoverMode() {
	if p.FailoverMode != "" {
		return
	}

	p.FailoverMode = failoverModeFromValue(strings.ToLower(property_util.GetVerifiedPropertyValue[string](p.props, property_util.FAILOVER_MODE)))
	initialHostInfo := p.pluginService.GetInitialConnectionHostInfo()
	if !initialHostInfo.IsNil() {
		p.rdsUrlType = utils.IdentifyRdsUrlType(initialHostInfo.Host)
	} else {
		p.rdsUrlType = utils.OTHER
	}

	if p.FailoverMode == MODE_UNKNOWN {
		if p.rdsUrlType == utils.RDS_READER_CLUSTER {
			p.FailoverMode = MODE_READER_OR_WRITER
		} else {
			p.FailoverMode = MODE_STRICT_WRITER
		}
	}

	p.readerFailoverHandler = NewReaderFailoverHandlerFromProps(p.pluginService, p.props, p.FailoverMode == MODE_STRICT_READER)
	p.writerFailoverHandler = NewWriterFailoverHandlerFromProps(p.pluginService, p.readerFailoverHandler, p.props)

	slog.Debug(error_util.GetMessage("Failover.parameterValue", "failoverMode", p.FailoverMode))
}

func (p *FailoverPlugin) Execute(
	_ driver.Conn,
	methodName string,
	executeFunc driver_infrastructure.ExecuteFunc,
	methodArgs ...any) (wrappedReturnValue any, wrappedReturnValue2 any, wrappedOk bool, wrappedErr error) {
	if p.canDirectExecute(methodName) {
		return executeFunc()
	}

	wrappedReturnValue, wrappedReturnValue2, wrappedOk, wrappedErr = executeFunc()
	var err error
	if wrappedErr != nil {
		err = p.DealWithError(wrappedErr)
	}

	if err != nil {
		return nil, nil, false, err
	}

	return wrappedReturnValue, wrappedReturnValue2, wrappedOk, wrappedErr
}

func (p *FailoverPlugin) DealWithError(err error) error {
	if err != nil {
		slog.Debug(error_util.GetMessage("Failover.detectedError", err.Error()))
		if !errors.Is(err, p.lastErrorDealtWith) && p.shouldErrorTriggerConnectionSwitch(err) {
			p.InitFailoverMode()
			p.InvalidateCurrentConnection()
			currentHost, e := p.pluginService.GetCurrentHostInfo()
			if e != nil {
				return e
			}
			p.pluginService.SetAvailability(currentHost.AllAliases, host_info_util.UNAVAILABLE)
			e = p.Failover()
			if e != nil {
				return e
			}
			p.lastErrorDealtWith = err
		}
	}
	return err
}

func (p *FailoverPlugin) isFailoverEnabled() bool {
	return p.rdsUrlType != utils.RDS_PROXY && len(p.pluginService.GetHosts()) != 0
}

func (p *FailoverPlugin) canDirectExecute(methodName string) bool {
	return methodName == utils.CONN_CLOSE
}

func (p *FailoverPlugin) Failover() error {
	if p.FailoverMode == MODE_STRICT_WRITER {
		return p.FailoverWriter()
	}
	return p.FailoverReader()
}

func (p *FailoverPlugin) returnFailoverSuccessError() error {
	if p.isInTransaction || p.pluginService.IsInTransaction() {
		p.pluginService.SetInTransaction(false)

		// "Transaction resolution unknown. Please re-configure session state if required and try restarting transaction."
		message := error_util.GetMessage("Failover.transactionResolutionUnknownError")
		slog.Info(message)
		return error_util.TransactionResolutionUnknownError
	}

	// "The active SQL connection has changed due to a connection failure. Please re-configure session state if required."
	slog.Warn(error_util.GetMessage("Failover.connectionChangedError"))
	return error_util.FailoverSuccessError
}

func (p *FailoverPlugin) FailoverWriter() error {
	failoverStartTime := time.Now()

	defer func() {
		slog.Info(error_util.GetMessage("Failover.writerFailoverElapsed", time.Since(failoverStartTime)))
	}()

	slog.Info(error_util.GetMessage("Failover.startWriterFailover"))

	result, err := p.writerFailoverHandler.Failover(p.pluginService.GetHosts())
	if err != nil {
		slog.Error(error_util.GetMessage("Failover.unableToConnectToWriter"))
		return error_util.NewFailoverFailedError(err.Error())
	}
	if !result.IsConnected {
		message := error_util.GetMessage("Failover.unableToConnectToWriter")
		slog.Error(message)
		return error_util.NewFailoverFailedError(message)
	}

	err = p.pluginService.SetCurrentConnection(result.NewConnection, result.NewHost, nil)
	if err != nil {
		return err
	}

	// Best effort refresh so the topology reflects the promoted writer.
	_ = p.pluginService.RefreshHostList(result.NewConnection)

	slog.Info(error_util.GetMessage("Failover.establishedConnection", result.NewHost.String()))
	return p.returnFailoverSuccessError()
}

func (p *FailoverPlugin) FailoverReader() error {
	failoverStartTime := time.Now()

	defer func() {
		slog.Info(error_util.GetMessage("Failover.readerFailoverElapsed", time.Since(failoverStartTime)))
	}()

	slog.Info(error_util.GetMessage("Failover.startReaderFailover"))

	result, err := p.readerFailoverHandler.GetReaderConnection(p.pluginService.GetHosts())
	if err != nil {
		slog.Error(error_util.GetMessage("Failover.unableToConnectToReader"))
		return error_util.NewFailoverFailedError(err.Error())
	}
	if !result.IsConnected() {
		return p.returnReaderFailoverErr()
	}

	setConnErr := p.pluginService.SetCurrentConnection(result.Conn, result.HostInfo, nil)
	if setConnErr != nil {
		return p.returnReaderFailoverErr()
	}

	_ = p.pluginService.RefreshHostList(result.Conn)

	slog.Info(error_util.GetMessage("Failover.establishedConnection", result.HostInfo.String()))
	return p.returnFailoverSuccessError()
}

func (p *FailoverPlugin) returnReaderFailoverErr() error {
	slog.Error(error_util.GetMessage("Failover.unableToConnectToReader"))
	return error_util.NewFailoverFailedError(error_util.GetMessage("Failover.unableToConnectToReader"))
}

func (p *FailoverPlugin) InvalidateCurrentConnection() {
	conn := p.pluginService.GetCurrentConnection()
	if conn == nil {
		return
	}

	if p.pluginService.IsInTransaction() {
		p.isInTransaction = p.pluginService.IsInTransaction()
		utils.Rollback(conn, p.pluginService.GetCurrentTx())
		return
	}

	if !utils.IsConnectionLost(conn) {
		_ = conn.Close()
	}
}

func (p *FailoverPlugin) shouldErrorTriggerConnectionSwitch(err error) bool {
	if !p.isFailoverEnabled() {
		slog.Debug(error_util.GetMessage("Failover.failoverDisabled"))
		return false
	}

	return p.pluginService.IsNetworkError(err)
}
