package concentrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/united-manufacturing-hub/lora-packet-logger/pkg/datamodel"
)

// fakeClock drives a simulator deterministically.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time {
	return c.current
}

func (c *fakeClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestSimulator(seed int64, interval time.Duration, corruptRatio float64) (*Simulator, *fakeClock) {
	s := NewSimulator(SimulatorConfig{
		Seed:         seed,
		MeanInterval: interval,
		CorruptRatio: corruptRatio,
	})
	clock := &fakeClock{current: time.Date(2023, 11, 2, 12, 0, 0, 0, time.UTC)}
	s.now = clock.now
	return s, clock
}

func Test_SimulatorLifecycle(t *testing.T) {
	s, _ := newTestSimulator(1, 10*time.Millisecond, 0)

	t.Run("receive-before-start-fails", func(t *testing.T) {
		_, err := s.Receive(16)
		assert.ErrorIs(t, err, ErrNotStarted)
	})

	t.Run("double-start-fails", func(t *testing.T) {
		assert.NoError(t, s.Start())
		assert.ErrorIs(t, s.Start(), ErrAlreadyStarted)
	})

	t.Run("double-stop-fails", func(t *testing.T) {
		assert.NoError(t, s.Stop())
		assert.ErrorIs(t, s.Stop(), ErrNotStarted)
	})

	t.Run("receive-after-stop-fails", func(t *testing.T) {
		_, err := s.Receive(16)
		assert.ErrorIs(t, err, ErrNotStarted)
	})
}

func Test_SimulatorTraffic(t *testing.T) {
	s, clock := newTestSimulator(42, 10*time.Millisecond, 0)
	assert.NoError(t, s.Start())

	t.Run("nothing-due-yet", func(t *testing.T) {
		pkts, err := s.Receive(16)
		assert.NoError(t, err)
		assert.Empty(t, pkts)
	})

	t.Run("packets-come-due-over-time", func(t *testing.T) {
		clock.advance(100 * time.Millisecond)
		pkts, err := s.Receive(16)
		assert.NoError(t, err)
		assert.NotEmpty(t, pkts)
		assert.LessOrEqual(t, len(pkts), 16)

		planFreqs := map[uint32]bool{868100000: true, 868300000: true, 868500000: true}
		for _, p := range pkts {
			assert.True(t, planFreqs[p.Freq], "frequency %d not in the default plan", p.Freq)
			assert.Equal(t, datamodel.ModulationLoRa, p.Modulation)
			assert.Equal(t, datamodel.BW125K, p.Bandwidth)
			assert.GreaterOrEqual(t, p.Datarate, datamodel.DatarateSF7)
			assert.LessOrEqual(t, p.Datarate, datamodel.DatarateSF12)
			assert.Equal(t, int(p.Size), len(p.Payload))
			assert.NotZero(t, p.Size)
			assert.GreaterOrEqual(t, p.RSSI, float32(-120))
			assert.Less(t, p.RSSI, float32(-40))
		}
	})

	t.Run("backlog-is-capped-at-max", func(t *testing.T) {
		clock.advance(time.Second)
		pkts, err := s.Receive(5)
		assert.NoError(t, err)
		assert.Len(t, pkts, 5)
	})

	t.Run("invalid-capacity", func(t *testing.T) {
		_, err := s.Receive(0)
		assert.Error(t, err)
	})
}

func Test_SimulatorCorruptRatio(t *testing.T) {
	t.Run("ratio-zero-yields-only-valid-packets", func(t *testing.T) {
		s, clock := newTestSimulator(7, time.Millisecond, 0)
		assert.NoError(t, s.Start())
		clock.advance(time.Second)
		pkts, err := s.Receive(datamodel.MaxPayloadSize)
		assert.NoError(t, err)
		assert.NotEmpty(t, pkts)
		for _, p := range pkts {
			assert.Equal(t, datamodel.CRCOK, p.Status)
		}
	})

	t.Run("ratio-one-yields-only-corrupted-packets", func(t *testing.T) {
		s, clock := newTestSimulator(7, time.Millisecond, 1)
		assert.NoError(t, s.Start())
		clock.advance(time.Second)
		pkts, err := s.Receive(datamodel.MaxPayloadSize)
		assert.NoError(t, err)
		assert.NotEmpty(t, pkts)
		for _, p := range pkts {
			assert.Equal(t, datamodel.CRCBad, p.Status)
		}
	})
}

func Test_SimulatorDeterminism(t *testing.T) {
	receiveAll := func() []datamodel.RXPacket {
		s, clock := newTestSimulator(99, 5*time.Millisecond, 0.3)
		assert.NoError(t, s.Start())
		var all []datamodel.RXPacket
		for i := 0; i < 10; i++ {
			clock.advance(20 * time.Millisecond)
			pkts, err := s.Receive(16)
			assert.NoError(t, err)
			all = append(all, pkts...)
		}
		return all
	}

	first := receiveAll()
	second := receiveAll()
	assert.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func Test_SimulatorTransmit(t *testing.T) {
	s, clock := newTestSimulator(3, 10*time.Millisecond, 0)

	pkt := datamodel.TXPacket{
		Freq:       866500000,
		Power:      14,
		Modulation: datamodel.ModulationLoRa,
		Bandwidth:  datamodel.BW125K,
		Datarate:   datamodel.DatarateSF10,
		Coderate:   datamodel.CR4_5,
		Preamble:   8,
		Size:       16,
		Payload:    make([]byte, 16),
	}

	t.Run("send-before-start-fails", func(t *testing.T) {
		assert.ErrorIs(t, s.Send(pkt), ErrNotStarted)
	})

	t.Run("size-mismatch-is-rejected", func(t *testing.T) {
		assert.NoError(t, s.Start())
		bad := pkt
		bad.Size = 10
		assert.Error(t, s.Send(bad))
	})

	t.Run("transmit-path-goes-busy-then-free", func(t *testing.T) {
		assert.NoError(t, s.Send(pkt))

		status, err := s.TXStatus()
		assert.NoError(t, err)
		assert.Equal(t, datamodel.TXEmitting, status)

		clock.advance(5 * time.Second)
		status, err = s.TXStatus()
		assert.NoError(t, err)
		assert.Equal(t, datamodel.TXFree, status)
	})
}
