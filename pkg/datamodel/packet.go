package datamodel

import "time"

// MaxPayloadSize is the largest payload the concentrator hands out per packet.
const MaxPayloadSize = 255

// RXPacket is one packet received by the concentrator. The metadata fields
// are pass-through values for logging and are not interpreted by the
// acquisition loop; field order mirrors the receive descriptor of the
// hardware abstraction layer.
type RXPacket struct {
	Freq       uint32 // centre frequency in Hz
	IFChain    uint8  // IF chain (RX modem) the packet was received on
	Status     CRCStatus
	CountUS    uint32 // internal concentrator counter, microseconds
	ReceivedAt time.Time
	RFChain    uint8
	Modulation Modulation
	Bandwidth  Bandwidth
	Datarate   Datarate
	Coderate   Coderate
	RSSI       float32 // dBm
	SNR        float32 // dB
	Size       uint16
	Payload    []byte
}

// DatarateString renders the datarate the way it is logged: a spreading
// factor for LoRa packets, a bit rate in bps for FSK.
func (p *RXPacket) DatarateString() string {
	return p.Datarate.describe(p.Modulation)
}

// TXPacket is one packet to be emitted by the concentrator.
type TXPacket struct {
	Freq       uint32
	RFChain    uint8
	Power      int8 // dBm
	Modulation Modulation
	Bandwidth  Bandwidth
	Datarate   Datarate
	Coderate   Coderate
	InvertPol  bool
	Preamble   uint16
	Size       uint16
	Payload    []byte
}

// TXStatus reports the state of the concentrator's transmit path.
type TXStatus uint8

const (
	TXStatusUnknown TXStatus = iota
	TXOff
	TXFree
	TXScheduled
	TXEmitting
)

func (s TXStatus) String() (statusString string) {
	switch s {
	case TXOff:
		statusString = "TX_OFF"
	case TXFree:
		statusString = "TX_FREE"
	case TXScheduled:
		statusString = "TX_SCHEDULED"
	case TXEmitting:
		statusString = "TX_EMITTING"
	default:
		statusString = "TX_UNKNOWN"
	}
	return
}
