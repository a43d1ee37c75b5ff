package datamodel

import "strconv"

// CRCStatus is the CRC verdict the concentrator attaches to a received
// packet. Only CRCOK packets are considered valid; everything else counts
// as corrupted for the acquisition loop.
type CRCStatus uint8

const (
	CRCUndefined CRCStatus = iota
	CRCOK
	CRCBad
	NoCRC
)

// IsValid reports whether a packet with this status passed CRC verification.
func (s CRCStatus) IsValid() bool {
	return s == CRCOK
}

func (s CRCStatus) String() (statusString string) {
	switch s {
	case CRCOK:
		statusString = "CRC_OK"
	case CRCBad:
		statusString = "CRC_BAD"
	case NoCRC:
		statusString = "NO_CRC"
	default:
		statusString = "UNDEF"
	}
	return
}

type Modulation uint8

const (
	ModulationUndefined Modulation = iota
	ModulationLoRa
	ModulationFSK
)

func (m Modulation) String() (modulationString string) {
	switch m {
	case ModulationLoRa:
		modulationString = "LORA"
	case ModulationFSK:
		modulationString = "FSK"
	default:
		modulationString = "UNDEF"
	}
	return
}

// Bandwidth is the channel bandwidth. The enumeration covers the values the
// SX1301 supports; Hz returns the width in Hertz (0 when undefined).
type Bandwidth uint8

const (
	BWUndefined Bandwidth = iota
	BW7K8
	BW15K6
	BW31K2
	BW62K5
	BW125K
	BW250K
	BW500K
)

func (b Bandwidth) Hz() (hz uint32) {
	switch b {
	case BW7K8:
		hz = 7800
	case BW15K6:
		hz = 15600
	case BW31K2:
		hz = 31200
	case BW62K5:
		hz = 62500
	case BW125K:
		hz = 125000
	case BW250K:
		hz = 250000
	case BW500K:
		hz = 500000
	}
	return
}

// BandwidthFromHz maps a configured bandwidth in Hz to the nearest
// enumeration value at or above it.
func BandwidthFromHz(hz uint32) Bandwidth {
	switch {
	case hz == 0:
		return BWUndefined
	case hz <= 7800:
		return BW7K8
	case hz <= 15600:
		return BW15K6
	case hz <= 31200:
		return BW31K2
	case hz <= 62500:
		return BW62K5
	case hz <= 125000:
		return BW125K
	case hz <= 250000:
		return BW250K
	case hz <= 500000:
		return BW500K
	default:
		return BWUndefined
	}
}

// Datarate is the spreading factor (7..12) for LoRa packets and the bit
// rate in bps for FSK packets. Interpretation depends on the modulation,
// so the string form lives on RXPacket.
type Datarate uint32

const (
	DatarateSF7  Datarate = 7
	DatarateSF8  Datarate = 8
	DatarateSF9  Datarate = 9
	DatarateSF10 Datarate = 10
	DatarateSF11 Datarate = 11
	DatarateSF12 Datarate = 12
)

func (d Datarate) describe(m Modulation) string {
	switch m {
	case ModulationLoRa:
		if d >= DatarateSF7 && d <= DatarateSF12 {
			return "SF" + strconv.FormatUint(uint64(d), 10)
		}
		return "UNDEF"
	case ModulationFSK:
		return strconv.FormatUint(uint64(d), 10)
	default:
		return "UNDEF"
	}
}

type Coderate uint8

const (
	CRUndefined Coderate = iota
	CR4_5
	CR4_6
	CR4_7
	CR4_8
)

func (c Coderate) String() (coderateString string) {
	switch c {
	case CR4_5:
		coderateString = "4/5"
	case CR4_6:
		coderateString = "4/6"
	case CR4_7:
		coderateString = "4/7"
	case CR4_8:
		coderateString = "4/8"
	default:
		coderateString = "UNDEF"
	}
	return
}
