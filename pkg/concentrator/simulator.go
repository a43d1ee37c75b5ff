package concentrator

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/united-manufacturing-hub/lora-packet-logger/pkg/datamodel"
)

// SimulatorConfig tunes the software concentrator. A zero Seed derives one
// from the wall clock; a fixed seed makes the traffic reproducible.
type SimulatorConfig struct {
	// Channels is the listening plan used to pick per-packet frequency and
	// modulation parameters. Nil selects the built-in EU868 default plan.
	Channels []datamodel.Channel
	// MeanInterval is the average gap between two generated packets.
	MeanInterval time.Duration
	// CorruptRatio is the share of LoRa packets generated with a failed
	// CRC, in [0,1].
	CorruptRatio float64
	Seed         int64
}

// Simulator is a software stand-in for the radio concentrator. It produces
// synthetic traffic on the configured channel plan and accepts transmit
// requests, modelling the emission time so TXStatus behaves like the real
// transmit path.
type Simulator struct {
	mu           sync.Mutex
	running      bool
	rng          *rand.Rand
	channels     []datamodel.Channel
	meanInterval time.Duration
	corruptRatio float64

	now       func() time.Time
	startedAt time.Time
	due       time.Time
	busyUntil time.Time
}

func NewSimulator(cfg SimulatorConfig) *Simulator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	channels := cfg.Channels
	if len(channels) == 0 {
		channels = defaultChannelPlan()
	}
	interval := cfg.MeanInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &Simulator{
		rng:          rand.New(rand.NewSource(seed)), //nolint:gosec
		channels:     channels,
		meanInterval: interval,
		corruptRatio: cfg.CorruptRatio,
		now:          time.Now,
	}
}

func (s *Simulator) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyStarted
	}
	s.running = true
	s.startedAt = s.now()
	s.due = s.startedAt.Add(s.nextGap())
	return nil
}

func (s *Simulator) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ErrNotStarted
	}
	s.running = false
	return nil
}

// Receive returns the packets that came due since the previous poll, at
// most max. It never blocks; an empty slice means no traffic arrived yet.
func (s *Simulator) Receive(max int) ([]datamodel.RXPacket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil, ErrNotStarted
	}
	if max <= 0 {
		return nil, fmt.Errorf("invalid receive capacity %d", max)
	}

	now := s.now()
	var pkts []datamodel.RXPacket
	for len(pkts) < max && !s.due.After(now) {
		pkts = append(pkts, s.makePacket(s.due, now))
		s.due = s.due.Add(s.nextGap())
	}
	return pkts, nil
}

func (s *Simulator) Send(pkt datamodel.TXPacket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ErrNotStarted
	}
	if int(pkt.Size) != len(pkt.Payload) {
		return fmt.Errorf("payload size mismatch: size field %d, payload %d bytes", pkt.Size, len(pkt.Payload))
	}
	if pkt.Size > datamodel.MaxPayloadSize {
		return fmt.Errorf("payload too large: %d bytes", pkt.Size)
	}
	s.busyUntil = s.now().Add(airtime(&pkt))
	return nil
}

func (s *Simulator) TXStatus() (datamodel.TXStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return datamodel.TXStatusUnknown, ErrNotStarted
	}
	if s.now().Before(s.busyUntil) {
		return datamodel.TXEmitting, nil
	}
	return datamodel.TXFree, nil
}

// nextGap jitters the mean interval by a factor in [0.5, 1.5).
func (s *Simulator) nextGap() time.Duration {
	return time.Duration((0.5 + s.rng.Float64()) * float64(s.meanInterval))
}

func (s *Simulator) makePacket(arrived, fetched time.Time) datamodel.RXPacket {
	ch := s.channels[s.rng.Intn(len(s.channels))]

	size := 1 + s.rng.Intn(64)
	payload := make([]byte, size)
	s.rng.Read(payload) //nolint:errcheck

	pkt := datamodel.RXPacket{
		Freq:       ch.Freq,
		IFChain:    ch.IFChain,
		CountUS:    uint32(arrived.Sub(s.startedAt).Microseconds()),
		ReceivedAt: fetched.UTC(),
		RFChain:    ch.RFChain,
		Modulation: ch.Modulation,
		Bandwidth:  ch.Bandwidth,
		RSSI:       float32(-120 + 80*s.rng.Float64()),
		SNR:        float32(-20 + 30*s.rng.Float64()),
		Size:       uint16(size),
		Payload:    payload,
	}

	switch ch.Modulation {
	case datamodel.ModulationFSK:
		// The FSK RX path reports no CRC verdict.
		pkt.Datarate = ch.FSKRate
		pkt.Status = datamodel.NoCRC
	default:
		sfSpan := int(ch.MaxSF-ch.MinSF) + 1
		if sfSpan < 1 {
			sfSpan = 1
		}
		pkt.Datarate = ch.MinSF + datamodel.Datarate(s.rng.Intn(sfSpan))
		pkt.Coderate = datamodel.CR4_5
		if s.rng.Float64() < s.corruptRatio {
			pkt.Status = datamodel.CRCBad
		} else {
			pkt.Status = datamodel.CRCOK
		}
	}
	return pkt
}

// airtime approximates the time on air of an outbound packet so the
// simulated transmit path stays busy for a plausible duration.
func airtime(pkt *datamodel.TXPacket) time.Duration {
	switch pkt.Modulation {
	case datamodel.ModulationFSK:
		rate := pkt.Datarate
		if rate == 0 {
			rate = 50000
		}
		bits := float64(uint32(pkt.Preamble)+uint32(pkt.Size)+8) * 8
		return time.Duration(bits / float64(rate) * float64(time.Second))
	default:
		sf := pkt.Datarate
		if sf < datamodel.DatarateSF7 || sf > datamodel.DatarateSF12 {
			sf = datamodel.DatarateSF7
		}
		bwHz := pkt.Bandwidth.Hz()
		if bwHz == 0 {
			bwHz = 125000
		}
		symbols := float64(pkt.Preamble) + 8 + float64(pkt.Size)
		symbolTime := float64(uint32(1)<<uint32(sf)) / float64(bwHz)
		return time.Duration(symbols * symbolTime * float64(time.Second))
	}
}

// defaultChannelPlan is the fallback when no channel configuration is
// loaded: the three EU868 mandatory LoRa channels, SF7..SF12 at 125 kHz.
func defaultChannelPlan() []datamodel.Channel {
	plan := make([]datamodel.Channel, 0, 3)
	for i, freq := range []uint32{868100000, 868300000, 868500000} {
		plan = append(plan, datamodel.Channel{
			Freq:       freq,
			RFChain:    0,
			IFChain:    uint8(i), //nolint:gosec
			Modulation: datamodel.ModulationLoRa,
			Bandwidth:  datamodel.BW125K,
			MinSF:      datamodel.DatarateSF7,
			MaxSF:      datamodel.DatarateSF12,
		})
	}
	return plan
}
