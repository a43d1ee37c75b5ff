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

// Package acquisition drives the receive loop of the packet logger: it polls
// the concentrator, sorts frames by CRC verdict, appends accepted frames to
// the packet log and hands their payloads to the forwarder.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/lora-packet-logger/pkg/concentrator"
	"github.com/united-manufacturing-hub/lora-packet-logger/pkg/datamodel"
)

// Defaults applied by NewLoop when the corresponding Config field is zero.
const (
	DefaultBatchSize        = 16
	DefaultPollInterval     = 3 * time.Millisecond
	DefaultCorruptThreshold = 10
)

// RecordWriter persists accepted frames. *pktlog.Writer implements it.
type RecordWriter interface {
	Append(p *datamodel.RXPacket) error
	Close() error
}

// PayloadSender pushes raw payloads downstream. *forwarder.Forwarder
// implements it.
type PayloadSender interface {
	Send(payload []byte) error
	Close() error
}

// Config wires a Loop to its collaborators.
type Config struct {
	Source  concentrator.Client
	Log     RecordWriter
	Forward PayloadSender

	// BatchSize caps the number of frames fetched per poll.
	BatchSize int
	// PollInterval is the pause after a poll that returned no frames.
	PollInterval time.Duration
	// CorruptThreshold is the run length of consecutive corrupted frames
	// that raises a notification.
	CorruptThreshold int
	// RestartOnCorruption additionally stops and restarts the concentrator
	// when the threshold is reached.
	RestartOnCorruption bool
}

// Loop owns all acquisition state. Run drives it on the caller's goroutine;
// Quit, Stats and DrainSignalSamples may be called from any other goroutine.
type Loop struct {
	source  concentrator.Client
	log     RecordWriter
	forward PayloadSender

	batchSize        int
	pollInterval     time.Duration
	restartOnCorrupt bool
	tracker          *CorruptionTracker

	quit atomic.Bool

	received      atomic.Uint64
	valid         atomic.Uint64
	invalid       atomic.Uint64
	forwarded     atomic.Uint64
	forwardErrors atomic.Uint64
	logged        atomic.Uint64
	logErrors     atomic.Uint64
	notifications atomic.Uint64

	signalMu sync.Mutex
	rssi     []float64
	snr      []float64
}

// Stats is a point-in-time snapshot of the loop counters.
type Stats struct {
	Received      uint64
	Valid         uint64
	Invalid       uint64
	Forwarded     uint64
	ForwardErrors uint64
	Logged        uint64
	LogErrors     uint64
	Notifications uint64
}

func NewLoop(cfg Config) (*Loop, error) {
	if cfg.Source == nil {
		return nil, errors.New("no concentrator client configured")
	}
	if cfg.Log == nil {
		return nil, errors.New("no record writer configured")
	}
	if cfg.Forward == nil {
		return nil, errors.New("no payload sender configured")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Loop{
		source:           cfg.Source,
		log:              cfg.Log,
		forward:          cfg.Forward,
		batchSize:        cfg.BatchSize,
		pollInterval:     cfg.PollInterval,
		restartOnCorrupt: cfg.RestartOnCorruption,
		tracker:          NewCorruptionTracker(cfg.CorruptThreshold),
	}, nil
}

// Run polls the concentrator until the context ends or Quit is called. A
// cancelled context triggers an orderly teardown of the concentrator, the
// forwarder and the packet log; Quit abandons the loop without any teardown
// so that a wedged radio cannot stall the exit. A fetch failure is returned
// to the caller, the loop does not try to recover from it.
func (l *Loop) Run(ctx context.Context) error {
	zap.S().Infof("packet acquisition running, batch size %d", l.batchSize)
	for {
		if l.quit.Load() {
			zap.S().Infof("immediate quit requested, leaving acquisition loop")
			return nil
		}
		select {
		case <-ctx.Done():
			return l.teardown()
		default:
		}

		packets, err := l.source.Receive(l.batchSize)
		if err != nil {
			return fmt.Errorf("packet fetch failed: %w", err)
		}
		if len(packets) == 0 {
			if err = sleepInterruptible(ctx, l.pollInterval); err != nil {
				return l.teardown()
			}
			continue
		}
		for i := range packets {
			if l.quit.Load() {
				zap.S().Infof("immediate quit requested, %d frame(s) left unprocessed", len(packets)-i)
				return nil
			}
			l.process(&packets[i])
		}
	}
}

// Quit makes Run return at the next frame boundary without releasing the
// concentrator or the log file.
func (l *Loop) Quit() {
	l.quit.Store(true)
}

func (l *Loop) process(p *datamodel.RXPacket) {
	l.received.Add(1)
	framesReceivedTotal.Inc()

	if !p.Status.IsValid() {
		l.invalid.Add(1)
		framesInvalidTotal.Inc()
		fired := l.tracker.Observe(false)
		corruptionStreak.Set(float64(l.tracker.Count()))
		zap.S().Debugf("discarded frame with status %s, corruption streak %d", p.Status, l.tracker.Count())
		if fired {
			l.notifications.Add(1)
			corruptionNotificationsTotal.Inc()
			zap.S().Warnf("%d consecutive corrupted frames, concentrator restart advised", l.tracker.Count())
			if l.restartOnCorrupt {
				l.restartSource()
			}
		}
		return
	}

	l.valid.Add(1)
	framesValidTotal.Inc()
	l.tracker.Observe(true)
	corruptionStreak.Set(0)
	l.recordSignal(p)
	zap.S().Debugf("received %d byte frame on %d Hz, %s %s, RSSI %.1f", p.Size, p.Freq, p.Modulation, p.DatarateString(), p.RSSI)

	if err := l.log.Append(p); err != nil {
		l.logErrors.Add(1)
		recordErrorsTotal.Inc()
		zap.S().Errorf("failed to append frame to packet log: %s", err)
	} else {
		l.logged.Add(1)
		recordsWrittenTotal.Inc()
	}

	if p.Size == 0 {
		return
	}
	if err := l.forward.Send(p.Payload); err != nil {
		l.forwardErrors.Add(1)
		forwardErrorsTotal.Inc()
		zap.S().Errorf("failed to forward %d byte frame: %s", p.Size, err)
		return
	}
	l.forwarded.Add(1)
	framesForwardedTotal.Inc()
}

// restartSource power-cycles the concentrator after sustained corruption.
// When the restart fails the loop keeps going and the next fetch surfaces
// the failure.
func (l *Loop) restartSource() {
	zap.S().Warnf("restarting concentrator after sustained corruption")
	if err := l.source.Stop(); err != nil {
		zap.S().Errorf("failed to stop concentrator for restart: %s", err)
		return
	}
	if err := l.source.Start(); err != nil {
		zap.S().Errorf("failed to restart concentrator: %s", err)
		return
	}
	l.tracker.Reset()
	corruptionStreak.Set(0)
}

func (l *Loop) teardown() error {
	zap.S().Infof("shutdown requested, stopping concentrator")
	if err := l.source.Stop(); err != nil {
		zap.S().Warnf("failed to stop concentrator: %s", err)
	}
	if err := l.forward.Close(); err != nil {
		zap.S().Warnf("failed to close forwarder: %s", err)
	}
	if err := l.log.Close(); err != nil {
		zap.S().Errorf("failed to close packet log: %s", err)
	}
	return nil
}

func (l *Loop) recordSignal(p *datamodel.RXPacket) {
	l.signalMu.Lock()
	l.rssi = append(l.rssi, float64(p.RSSI))
	l.snr = append(l.snr, float64(p.SNR))
	l.signalMu.Unlock()
}

// DrainSignalSamples returns the RSSI and SNR samples of the frames accepted
// since the previous call and clears the buffers.
func (l *Loop) DrainSignalSamples() (rssi, snr []float64) {
	l.signalMu.Lock()
	defer l.signalMu.Unlock()
	rssi, snr = l.rssi, l.snr
	l.rssi, l.snr = nil, nil
	return rssi, snr
}

func (l *Loop) Stats() Stats {
	return Stats{
		Received:      l.received.Load(),
		Valid:         l.valid.Load(),
		Invalid:       l.invalid.Load(),
		Forwarded:     l.forwarded.Load(),
		ForwardErrors: l.forwardErrors.Load(),
		Logged:        l.logged.Load(),
		LogErrors:     l.logErrors.Load(),
		Notifications: l.notifications.Load(),
	}
}

func sleepInterruptible(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
