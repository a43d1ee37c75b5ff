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

// Package pktlog appends one CSV record per accepted packet to a rotating
// log file. The file is the durable, human-auditable record of received
// traffic; records parse cleanly with a stock CSV reader.
package pktlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/lora-packet-logger/pkg/datamodel"
)

const header = `"gateway ID","node MAC","UTC timestamp","us count","frequency","RF chain","RX chain","status","size","modulation","bandwidth","datarate","coderate","RSSI","SNR","payload"` + "\n"

const (
	timestampLayout = "2006-01-02 15:04:05.000Z"
	fileNameLayout  = "20060102T150405Z"
)

// Config for a Writer. RotateInterval enables rotation when positive; zero
// or negative keeps a single fixed file. Clock is a test hook and defaults
// to time.Now.
type Config struct {
	GatewayID      uint64
	Dir            string
	RotateInterval time.Duration
	Clock          func() time.Time
}

// Writer owns the log file handle. It is owned by the acquisition loop and
// is not safe for concurrent use.
type Writer struct {
	gatewayID string
	dir       string
	interval  time.Duration
	now       func() time.Time

	file     *os.File
	name     string
	openedAt time.Time
	records  uint64
}

// New opens the first log file and writes the header if the file is newly
// created. Any failure here must be treated as fatal by the caller: without
// the log there is no operation.
func New(cfg Config) (*Writer, error) {
	w := &Writer{
		gatewayID: fmt.Sprintf("%016X", cfg.GatewayID),
		dir:       cfg.Dir,
		interval:  cfg.RotateInterval,
		now:       cfg.Clock,
	}
	if w.dir == "" {
		w.dir = "."
	}
	if w.now == nil {
		w.now = time.Now
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

// Append writes one record. A rotation that comes due is performed first.
// Errors are per-record: the caller reports them and keeps going.
func (w *Writer) Append(p *datamodel.RXPacket) error {
	if w.interval > 0 && w.now().UTC().Sub(w.openedAt) >= w.interval {
		if err := w.rotate(); err != nil {
			return err
		}
	}
	if _, err := w.file.WriteString(formatRecord(w.gatewayID, p)); err != nil {
		return fmt.Errorf("writing record to %s: %w", w.name, err)
	}
	w.records++
	return nil
}

// Records is the total number of records written across all rotations.
func (w *Writer) Records() uint64 {
	return w.records
}

// Filename is the path of the file currently being written.
func (w *Writer) Filename() string {
	return w.name
}

func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	if err != nil {
		return fmt.Errorf("closing log file %s: %w", w.name, err)
	}
	zap.S().Infof("log file %s closed, %d record(s) recorded", w.name, w.records)
	return nil
}

func (w *Writer) open() error {
	now := w.now().UTC()
	name := fmt.Sprintf("pktlog_%s.csv", w.gatewayID)
	if w.interval > 0 {
		name = fmt.Sprintf("pktlog_%s_%s.csv", w.gatewayID, now.Format(fileNameLayout))
	}
	path := filepath.Join(w.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stating log file %s: %w", path, err)
	}
	if info.Size() == 0 {
		if _, err = f.WriteString(header); err != nil {
			_ = f.Close()
			return fmt.Errorf("writing header to log file %s: %w", path, err)
		}
	}

	w.file = f
	w.name = path
	w.openedAt = now
	zap.S().Infof("now writing to log file %s", path)
	return nil
}

// rotate opens the next file before releasing the current one, so a failed
// rotation leaves the writer appending to the old file.
func (w *Writer) rotate() error {
	prevFile, prevName := w.file, w.name
	if err := w.open(); err != nil {
		return fmt.Errorf("rotating log file: %w", err)
	}
	if err := prevFile.Close(); err != nil {
		zap.S().Warnf("failed to close rotated log file %s: %s", prevName, err)
	}
	zap.S().Infof("rotated log file %s -> %s", prevName, w.name)
	return nil
}

func formatRecord(gatewayID string, p *datamodel.RXPacket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\"%s\",", gatewayID)
	// TODO: parse the node address out of LoRaWAN uplink payloads.
	b.WriteString(`"",`)
	fmt.Fprintf(&b, "\"%s\",", p.ReceivedAt.UTC().Format(timestampLayout))
	fmt.Fprintf(&b, "%d,", p.CountUS)
	fmt.Fprintf(&b, "%d,", p.Freq)
	fmt.Fprintf(&b, "%d,", p.RFChain)
	fmt.Fprintf(&b, "%d,", p.IFChain)
	fmt.Fprintf(&b, "\"%s\",", p.Status)
	fmt.Fprintf(&b, "%d,", p.Size)
	fmt.Fprintf(&b, "\"%s\",", p.Modulation)
	fmt.Fprintf(&b, "%d,", p.Bandwidth.Hz())
	fmt.Fprintf(&b, "\"%s\",", p.DatarateString())
	fmt.Fprintf(&b, "\"%s\",", p.Coderate)
	fmt.Fprintf(&b, "%.1f,", p.RSSI)
	fmt.Fprintf(&b, "%.1f,", p.SNR)
	fmt.Fprintf(&b, "\"%s\"\n", hexPayload(p.Payload))
	return b.String()
}

func hexPayload(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(payload)*3 - 1)
	for i, by := range payload {
		if i > 0 {
			b.WriteByte('-')
		}
		fmt.Fprintf(&b, "%02X", by)
	}
	return b.String()
}
