// Copyright 2023 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/united-manufacturing-hub/lora-packet-logger/cmd/packet-logger/acquisition"
	"github.com/united-manufacturing-hub/lora-packet-logger/cmd/packet-logger/forwarder"
	"github.com/united-manufacturing-hub/lora-packet-logger/cmd/packet-logger/gwconfig"
	"github.com/united-manufacturing-hub/lora-packet-logger/cmd/packet-logger/pktlog"
	"github.com/united-manufacturing-hub/lora-packet-logger/internal"
	"github.com/united-manufacturing-hub/lora-packet-logger/pkg/concentrator"
	"github.com/united-manufacturing-hub/umh-utils/env"
	"github.com/united-manufacturing-hub/umh-utils/logger"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

func main() {
	var err error
	logLevel, _ := env.GetAsString("LOGGING_LEVEL", false, "PRODUCTION") //nolint:errcheck
	log := logger.New(logLevel)
	defer func(logger *zap.SugaredLogger) {
		err = logger.Sync()
		if err != nil {
			panic(err)
		}
	}(log)

	internal.Initfgtrace()
	initPrometheus()

	zap.S().Debug("Starting healthcheck")
	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(1000000))
	go func() {
		/* #nosec G114 */
		err := http.ListenAndServe("0.0.0.0:8086", health)
		if err != nil {
			zap.S().Errorf("Error starting healthcheck: %s", err)
		}
	}()

	gatewayIDHex, err := env.GetAsString("GATEWAY_ID", false, "")
	if err != nil {
		zap.S().Error(err)
	}
	confDir, err := env.GetAsString("GATEWAY_CONF_DIR", false, ".")
	if err != nil {
		zap.S().Error(err)
	}
	conf, err := gwconfig.Load(confDir)
	if err != nil {
		// The conf files are only needed for the channel plan once the
		// gateway identity comes from the environment.
		if gatewayIDHex == "" {
			zap.S().Fatalf("failed to load gateway configuration: %s", err)
		}
		zap.S().Warnf("failed to load gateway configuration: %s", err)
		conf = &gwconfig.Config{}
	}

	var gatewayID uint64
	switch {
	case gatewayIDHex != "":
		gatewayID, err = strconv.ParseUint(gatewayIDHex, 16, 64)
		if err != nil {
			zap.S().Fatalf("GATEWAY_ID is not a valid hex identifier: %s", err)
		}
	case conf.HasGatewayID():
		gatewayID = conf.GatewayID()
	default:
		zap.S().Fatal("no gateway ID configured, set GATEWAY_ID or gateway_conf.gateway_ID")
	}
	zap.S().Infof("starting packet logger for gateway %016X", gatewayID)
	internal.LogHostSnapshot(gatewayID)

	logDir, err := env.GetAsString("LOG_DIR", false, ".")
	if err != nil {
		zap.S().Error(err)
	}
	rotateSeconds, err := env.GetAsInt("LOG_ROTATE_INTERVAL_SECONDS", false, -1)
	if err != nil {
		zap.S().Error(err)
	}
	forwardHost, err := env.GetAsString("FORWARD_HOST", false, "127.0.0.1")
	if err != nil {
		zap.S().Error(err)
	}
	forwardPort, err := env.GetAsInt("FORWARD_PORT", false, 1680)
	if err != nil {
		zap.S().Error(err)
	}
	if forwardPort <= 0 || forwardPort > 65535 {
		zap.S().Fatalf("FORWARD_PORT must be a valid TCP port. got: %d", forwardPort)
	}
	keepConnection, err := env.GetAsBool("FORWARD_KEEP_CONNECTION", false, false)
	if err != nil {
		zap.S().Error(err)
	}
	dialTimeoutMs, err := env.GetAsInt("FORWARD_DIAL_TIMEOUT_MS", false, 500)
	if err != nil {
		zap.S().Error(err)
	}
	batchSize, err := env.GetAsInt("RECEIVE_BATCH_SIZE", false, acquisition.DefaultBatchSize)
	if err != nil {
		zap.S().Error(err)
	}
	if batchSize <= 0 {
		zap.S().Fatalf("RECEIVE_BATCH_SIZE must be positive. got: %d", batchSize)
	}
	pollIntervalMs, err := env.GetAsInt("POLL_INTERVAL_MS", false, 3)
	if err != nil {
		zap.S().Error(err)
	}
	if pollIntervalMs <= 0 {
		zap.S().Fatalf("POLL_INTERVAL_MS must be positive. got: %d", pollIntervalMs)
	}
	corruptThreshold, err := env.GetAsInt("CORRUPT_PACKET_THRESHOLD", false, acquisition.DefaultCorruptThreshold)
	if err != nil {
		zap.S().Error(err)
	}
	restartOnCorruption, err := env.GetAsBool("RESTART_ON_CORRUPTION", false, false)
	if err != nil {
		zap.S().Error(err)
	}
	simSeed, err := env.GetAsInt("SIMULATOR_SEED", false, 0)
	if err != nil {
		zap.S().Error(err)
	}
	simMeanMs, err := env.GetAsInt("SIMULATOR_MEAN_INTERVAL_MS", false, 200)
	if err != nil {
		zap.S().Error(err)
	}
	simCorruptRatio, err := env.GetAsFloat64("SIMULATOR_CORRUPT_RATIO", false, 0.05)
	if err != nil {
		zap.S().Error(err)
	}
	if simCorruptRatio < 0 || simCorruptRatio > 1 {
		zap.S().Fatalf("SIMULATOR_CORRUPT_RATIO must be within [0,1]. got: %f", simCorruptRatio)
	}

	channels := conf.EnabledChannels()
	if len(channels) == 0 {
		zap.S().Warnf("no RX channels enabled in the configuration, using the default EU868 plan")
	}
	source := concentrator.NewSimulator(concentrator.SimulatorConfig{
		Channels:     channels,
		MeanInterval: time.Duration(simMeanMs) * time.Millisecond,
		CorruptRatio: simCorruptRatio,
		Seed:         int64(simSeed),
	})
	zap.S().Info("starting concentrator")
	if err = source.Start(); err != nil {
		zap.S().Fatalf("failed to start concentrator: %s", err)
	}

	writer, err := pktlog.New(pktlog.Config{
		GatewayID:      gatewayID,
		Dir:            logDir,
		RotateInterval: time.Duration(rotateSeconds) * time.Second,
	})
	if err != nil {
		zap.S().Fatalf("failed to open packet log: %s", err)
	}

	fwd := forwarder.New(forwarder.Config{
		Host:           forwardHost,
		Port:           forwardPort,
		KeepConnection: keepConnection,
		DialTimeout:    time.Duration(dialTimeoutMs) * time.Millisecond,
	})

	loop, err := acquisition.NewLoop(acquisition.Config{
		Source:              source,
		Log:                 writer,
		Forward:             fwd,
		BatchSize:           batchSize,
		PollInterval:        time.Duration(pollIntervalMs) * time.Millisecond,
		CorruptThreshold:    corruptThreshold,
		RestartOnCorruption: restartOnCorruption,
	})
	if err != nil {
		zap.S().Fatalf("failed to assemble acquisition loop: %s", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	internal.NewShutdownHandler(func() error {
		cancel()
		return nil
	}, loop.Quit)

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(ctx)
	}()

	reportStats(loop, loopDone)
}

// reportStats logs the acquisition counters every 10 seconds, together with
// the mean RSSI and SNR of the frames accepted in that window. It returns
// once the acquisition loop has finished.
func reportStats(loop *acquisition.Loop, loopDone chan error) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	var last acquisition.Stats
	for {
		select {
		case <-ticker.C:
			stats := loop.Stats()
			recvPerSecond := (stats.Received - last.Received) / 10

			zap.S().Infof("Received: %d (%d/s) Valid: %d Invalid: %d | Logged: %d (errors: %d) | Forwarded: %d (errors: %d) | Corruption notifications: %d",
				stats.Received, recvPerSecond,
				stats.Valid, stats.Invalid,
				stats.Logged, stats.LogErrors,
				stats.Forwarded, stats.ForwardErrors,
				stats.Notifications)

			rssi, snr := loop.DrainSignalSamples()
			if len(rssi) > 1 {
				zap.S().Infof("Signal in the last window: RSSI %.1f dBm (stddev %.1f), SNR %.1f dB (stddev %.1f)",
					stat.Mean(rssi, nil), stat.StdDev(rssi, nil),
					stat.Mean(snr, nil), stat.StdDev(snr, nil))
			}

			last = stats
		case err := <-loopDone:
			if err != nil {
				zap.S().Fatalf("packet acquisition failed: %s", err)
			}
			zap.S().Info("Exiting packet logger")
			return
		}
	}
}

func initPrometheus() {
	// Prometheus
	metricsPath := "/metrics"
	metricsPort, err := env.GetAsInt("METRICS_PORT", false, 2112)
	if err != nil {
		zap.S().Error(err)
	}
	metricsAddr := fmt.Sprintf(":%d", metricsPort)
	zap.S().Debugf("Setting up metrics %s %v", metricsPath, metricsAddr)

	http.Handle(metricsPath, promhttp.Handler())
	go func() {
		/* #nosec G114 */
		err := http.ListenAndServe(metricsAddr, nil)
		if err != nil {
			zap.S().Errorf("Error starting metrics: %s", err)
		}
	}()
}
