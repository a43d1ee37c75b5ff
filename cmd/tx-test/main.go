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

// tx-test emits test packets through the concentrator transmit path. It is
// the counterpart of the packet logger for link testing: a fixed payload
// pattern with an embedded cycle counter, sent at a configurable frequency,
// spreading factor and cadence.
package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/united-manufacturing-hub/lora-packet-logger/internal"
	"github.com/united-manufacturing-hub/lora-packet-logger/pkg/concentrator"
	"github.com/united-manufacturing-hub/lora-packet-logger/pkg/datamodel"
	"github.com/united-manufacturing-hub/umh-utils/env"
	"github.com/united-manufacturing-hub/umh-utils/logger"
	"go.uber.org/zap"
)

// The band edges bound every transmission; the usable window shrinks by half
// the modulation bandwidth on each side.
const (
	bandMinHz = 863000000
	bandMaxHz = 870000000

	txStatusPollInterval = 5 * time.Millisecond
)

type txConfig struct {
	freqHz   uint32
	datarate datamodel.Datarate
	bw       datamodel.Bandwidth
	power    int8
	preamble uint16
	size     int
	delay    time.Duration
	repeat   int
	invert   bool
}

func parseFlags(args []string) (*txConfig, error) {
	fs := flag.NewFlagSet("tx-test", flag.ContinueOnError)

	freqMHz := fs.Float64P("freq", "f", 866.5, "target frequency in MHz")
	sf := fs.IntP("spreading-factor", "s", 10, "spreading factor, 7 to 12")
	bwKHz := fs.IntP("bandwidth", "b", 125, "modulation bandwidth in kHz, one of 125, 250, 500")
	power := fs.IntP("power", "p", 14, "RF output power in dBm")
	preamble := fs.IntP("preamble", "r", 8, "preamble length in symbols, 6 or more")
	size := fs.IntP("size", "z", 16, "payload size in bytes")
	delayMs := fs.IntP("delay", "t", 1000, "pause between packets in milliseconds")
	repeat := fs.IntP("repeat", "x", -1, "number of packets to send, -1 for endless")
	invert := fs.BoolP("invert", "i", false, "invert the modulation polarity")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &txConfig{
		size:     *size,
		repeat:   *repeat,
		invert:   *invert,
		datarate: datamodel.Datarate(*sf), //nolint:gosec
	}

	switch *bwKHz {
	case 125:
		cfg.bw = datamodel.BW125K
	case 250:
		cfg.bw = datamodel.BW250K
	case 500:
		cfg.bw = datamodel.BW500K
	default:
		return nil, fmt.Errorf("invalid bandwidth %d kHz, must be 125, 250 or 500", *bwKHz)
	}

	if cfg.datarate < datamodel.DatarateSF7 || cfg.datarate > datamodel.DatarateSF12 {
		return nil, fmt.Errorf("invalid spreading factor %d, must be within [7,12]", *sf)
	}
	if *power < -60 || *power > 60 {
		return nil, fmt.Errorf("invalid RF power %d dBm, must be within [-60,60]", *power)
	}
	cfg.power = int8(*power)
	if *preamble < 6 {
		return nil, fmt.Errorf("invalid preamble length %d, must be at least 6 symbols", *preamble)
	}
	cfg.preamble = uint16(*preamble) //nolint:gosec
	if cfg.size <= 0 || cfg.size > datamodel.MaxPayloadSize {
		return nil, fmt.Errorf("invalid payload size %d, must be within [1,%d]", cfg.size, datamodel.MaxPayloadSize)
	}
	if *delayMs < 0 {
		return nil, fmt.Errorf("invalid delay %d ms, must not be negative", *delayMs)
	}
	cfg.delay = time.Duration(*delayMs) * time.Millisecond
	if cfg.repeat < -1 {
		return nil, fmt.Errorf("invalid repeat count %d, must be -1 or more", cfg.repeat)
	}

	// The window shrinks by half the bandwidth on each side so the whole
	// transmission stays inside the band.
	margin := 500 * (*bwKHz)
	minFreq := float64(bandMinHz + margin)
	maxFreq := float64(bandMaxHz - margin)
	freqHz := *freqMHz * 1e6
	if freqHz < minFreq || freqHz > maxFreq {
		return nil, fmt.Errorf("frequency %.3f MHz is outside the allowed window [%.3f, %.3f] MHz",
			*freqMHz, minFreq/1e6, maxFreq/1e6)
	}
	cfg.freqHz = uint32(math.Round(freqHz)) //nolint:gosec

	return cfg, nil
}

// testPayload fills size bytes with the fixed test pattern. Bytes 4 and 5
// carry the big-endian cycle counter when the payload has room for it, so a
// receiver can spot missed packets.
func testPayload(size int, cycle uint16) []byte {
	const pattern = "TEST**abcdefghijklmnopqrstuvwxyz#0123456789#ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = pattern[i%len(pattern)]
	}
	if size >= 6 {
		payload[4] = byte(cycle >> 8)
		payload[5] = byte(cycle)
	}
	return payload
}

// run sends packets until the repeat count is reached or ctx ends. It
// returns the number of packets handed to the concentrator.
func run(ctx context.Context, cfg *txConfig, source concentrator.Client) (int, error) {
	pkt := datamodel.TXPacket{
		Freq:       cfg.freqHz,
		RFChain:    0,
		Power:      cfg.power,
		Modulation: datamodel.ModulationLoRa,
		Bandwidth:  cfg.bw,
		Datarate:   cfg.datarate,
		Coderate:   datamodel.CR4_5,
		InvertPol:  cfg.invert,
		Preamble:   cfg.preamble,
		Size:       uint16(cfg.size), //nolint:gosec
	}

	cycles := 0
	for cfg.repeat == -1 || cycles < cfg.repeat {
		select {
		case <-ctx.Done():
			return cycles, nil
		default:
		}

		pkt.Payload = testPayload(cfg.size, uint16(cycles)) //nolint:gosec
		zap.S().Infof("sending packet %d on %d Hz, SF%d", cycles, pkt.Freq, pkt.Datarate)
		if err := source.Send(pkt); err != nil {
			return cycles, fmt.Errorf("send failed: %w", err)
		}
		cycles++

		for {
			status, err := source.TXStatus()
			if err != nil {
				return cycles, fmt.Errorf("transmit status poll failed: %w", err)
			}
			if status == datamodel.TXFree {
				break
			}
			if wait(ctx, txStatusPollInterval) != nil {
				return cycles, nil
			}
		}

		if cfg.delay > 0 {
			if wait(ctx, cfg.delay) != nil {
				return cycles, nil
			}
		}
	}
	return cycles, nil
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

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

	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		zap.S().Errorf("%s", err)
		os.Exit(2)
	}

	source := concentrator.NewSimulator(concentrator.SimulatorConfig{})
	if err = source.Start(); err != nil {
		zap.S().Fatalf("failed to start concentrator: %s", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	internal.NewShutdownHandler(func() error {
		cancel()
		return nil
	}, cancel)

	cycles, err := run(ctx, cfg, source)
	if err != nil {
		zap.S().Errorf("transmit loop failed: %s", err)
	}
	zap.S().Infof("sent %d packet(s)", cycles)

	if stopErr := source.Stop(); stopErr != nil {
		zap.S().Warnf("failed to stop concentrator: %s", stopErr)
	}
	if err != nil {
		os.Exit(1)
	}
}
