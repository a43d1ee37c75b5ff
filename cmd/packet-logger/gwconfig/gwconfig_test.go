package gwconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/united-manufacturing-hub/lora-packet-logger/cmd/packet-logger/helper"
	"github.com/united-manufacturing-hub/lora-packet-logger/pkg/datamodel"
)

func writeConf(t *testing.T, dir, name, content string) {
	t.Helper()
	err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600)
	assert.NoError(t, err)
}

func Test_LoadPrecedence(t *testing.T) {
	helper.InitTestLogging()

	t.Run("debug-conf-wins-over-everything", func(t *testing.T) {
		dir := t.TempDir()
		writeConf(t, dir, debugConfName, `{"gateway_conf":{"gateway_ID":"AA555A0000000001"}}`)
		writeConf(t, dir, globalConfName, `{"gateway_conf":{"gateway_ID":"AA555A0000000002"}}`)
		writeConf(t, dir, localConfName, `{"gateway_conf":{"gateway_ID":"AA555A0000000003"}}`)

		cfg, err := Load(dir)
		assert.NoError(t, err)
		assert.True(t, cfg.HasGatewayID())
		assert.Equal(t, uint64(0xAA555A0000000001), cfg.GatewayID())
	})

	t.Run("local-overrides-global-per-key", func(t *testing.T) {
		dir := t.TempDir()
		writeConf(t, dir, globalConfName, `{
			"SX1301_conf": {
				"radio_0": {"enable": true, "freq": 867500000},
				"chan_multiSF_0": {"enable": true, "radio": 0, "if": -400000}
			},
			"gateway_conf": {"gateway_ID": "AA555A0000000002"}
		}`)
		writeConf(t, dir, localConfName, `{"gateway_conf":{"gateway_ID":"AA555A0000000003"}}`)

		cfg, err := Load(dir)
		assert.NoError(t, err)
		assert.Equal(t, uint64(0xAA555A0000000003), cfg.GatewayID())

		// The channel plan from the global file survives the local override.
		channels := cfg.EnabledChannels()
		assert.Len(t, channels, 1)
		assert.Equal(t, uint32(867100000), channels[0].Freq)
	})

	t.Run("local-alone-is-accepted", func(t *testing.T) {
		dir := t.TempDir()
		writeConf(t, dir, localConfName, `{"gateway_conf":{"gateway_ID":"0000000000000042"}}`)

		cfg, err := Load(dir)
		assert.NoError(t, err)
		assert.Equal(t, uint64(0x42), cfg.GatewayID())
	})

	t.Run("no-file-is-an-error", func(t *testing.T) {
		_, err := Load(t.TempDir())
		assert.Error(t, err)
	})
}

func Test_GatewayIDParsing(t *testing.T) {
	helper.InitTestLogging()

	t.Run("hexadecimal-mac", func(t *testing.T) {
		dir := t.TempDir()
		writeConf(t, dir, globalConfName, `{"gateway_conf":{"gateway_ID":"aa555a0000000101"}}`)
		cfg, err := Load(dir)
		assert.NoError(t, err)
		assert.Equal(t, uint64(0xAA555A0000000101), cfg.GatewayID())
	})

	t.Run("malformed-mac-is-an-error", func(t *testing.T) {
		dir := t.TempDir()
		writeConf(t, dir, globalConfName, `{"gateway_conf":{"gateway_ID":"not-a-mac"}}`)
		_, err := Load(dir)
		assert.Error(t, err)
	})

	t.Run("missing-gateway-id-is-not-fatal-here", func(t *testing.T) {
		dir := t.TempDir()
		writeConf(t, dir, globalConfName, `{"SX1301_conf":{}}`)
		cfg, err := Load(dir)
		assert.NoError(t, err)
		assert.False(t, cfg.HasGatewayID())
	})

	t.Run("invalid-json-is-an-error", func(t *testing.T) {
		dir := t.TempDir()
		writeConf(t, dir, globalConfName, `{"gateway_conf":`)
		_, err := Load(dir)
		assert.Error(t, err)
	})
}

func Test_EnabledChannels(t *testing.T) {
	helper.InitTestLogging()

	dir := t.TempDir()
	writeConf(t, dir, globalConfName, `{
		"SX1301_conf": {
			"radio_0": {"enable": true, "freq": 867500000},
			"radio_1": {"enable": false, "freq": 868500000},
			"chan_multiSF_0": {"enable": true, "radio": 0, "if": -400000},
			"chan_multiSF_1": {"enable": true, "radio": 0, "if": -200000},
			"chan_multiSF_2": {"enable": false, "radio": 0, "if": 0},
			"chan_multiSF_3": {"enable": true, "radio": 1, "if": 100000},
			"chan_Lora_std": {"enable": true, "radio": 0, "if": 300000, "bandwidth": 250000, "spread_factor": 7},
			"chan_FSK": {"enable": true, "radio": 0, "if": 300000, "bandwidth": 125000, "datarate": 50000}
		},
		"gateway_conf": {"gateway_ID": "AA555A0000000101"}
	}`)

	cfg, err := Load(dir)
	assert.NoError(t, err)

	channels := cfg.EnabledChannels()
	// Two multi-SF channels (the disabled one and the one on the disabled
	// radio are dropped), the standard channel and the FSK channel.
	assert.Len(t, channels, 4)

	t.Run("multi-sf-channels", func(t *testing.T) {
		assert.Equal(t, uint32(867100000), channels[0].Freq)
		assert.Equal(t, uint8(0), channels[0].IFChain)
		assert.Equal(t, datamodel.ModulationLoRa, channels[0].Modulation)
		assert.Equal(t, datamodel.BW125K, channels[0].Bandwidth)
		assert.Equal(t, datamodel.DatarateSF7, channels[0].MinSF)
		assert.Equal(t, datamodel.DatarateSF12, channels[0].MaxSF)

		assert.Equal(t, uint32(867300000), channels[1].Freq)
		assert.Equal(t, uint8(1), channels[1].IFChain)
	})

	t.Run("standard-channel", func(t *testing.T) {
		std := channels[2]
		assert.Equal(t, uint32(867800000), std.Freq)
		assert.Equal(t, uint8(8), std.IFChain)
		assert.Equal(t, datamodel.BW250K, std.Bandwidth)
		assert.Equal(t, datamodel.DatarateSF7, std.MinSF)
		assert.Equal(t, datamodel.DatarateSF7, std.MaxSF)
	})

	t.Run("fsk-channel", func(t *testing.T) {
		fsk := channels[3]
		assert.Equal(t, uint32(867800000), fsk.Freq)
		assert.Equal(t, uint8(9), fsk.IFChain)
		assert.Equal(t, datamodel.ModulationFSK, fsk.Modulation)
		assert.Equal(t, datamodel.BW125K, fsk.Bandwidth)
		assert.Equal(t, datamodel.Datarate(50000), fsk.FSKRate)
	})
}
