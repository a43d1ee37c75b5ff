package datamodel

// Channel is one enabled listening channel of the gateway, derived from the
// radio and IF-chain configuration. Freq is the absolute centre frequency
// (radio frequency plus IF offset). MinSF/MaxSF bound the spreading factors
// a LoRa channel demodulates; FSKRate is the bit rate of an FSK channel.
type Channel struct {
	Freq       uint32
	RFChain    uint8
	IFChain    uint8
	Modulation Modulation
	Bandwidth  Bandwidth
	MinSF      Datarate
	MaxSF      Datarate
	FSKRate    Datarate
}
