// Package gwconfig loads the gateway's JSON configuration files and
// resolves the gateway identity and the listening-channel plan.
//
// Three files are recognised: if debug_conf.json is readable every other
// file is ignored; otherwise global_conf.json is parsed first and
// local_conf.json overrides the keys it defines; a lone local_conf.json is
// also accepted.
package gwconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/lora-packet-logger/pkg/datamodel"
)

const (
	debugConfName  = "debug_conf.json"
	globalConfName = "global_conf.json"
	localConfName  = "local_conf.json"
)

// Chain counts of the SX1301: two RF chains, eight multi-SF LoRa IF chains,
// the standard LoRa channel on IF chain 8 and the FSK channel on IF chain 9.
const (
	NbRadios       = 2
	NbMultiSF      = 8
	ifChainLoraStd = 8
	ifChainFSK     = 9
)

type radioConf struct {
	Enable bool   `json:"enable"`
	Freq   uint32 `json:"freq"`
}

type multiSFConf struct {
	Enable bool  `json:"enable"`
	Radio  uint8 `json:"radio"`
	IF     int32 `json:"if"`
}

type loraStdConf struct {
	Enable       bool   `json:"enable"`
	Radio        uint8  `json:"radio"`
	IF           int32  `json:"if"`
	Bandwidth    uint32 `json:"bandwidth"`
	SpreadFactor uint32 `json:"spread_factor"`
}

type fskConf struct {
	Enable    bool   `json:"enable"`
	Radio     uint8  `json:"radio"`
	IF        int32  `json:"if"`
	Bandwidth uint32 `json:"bandwidth"`
	Datarate  uint32 `json:"datarate"`
}

// Config is the merged gateway configuration.
type Config struct {
	gatewayID    uint64
	hasGatewayID bool
	radios       [NbRadios]radioConf
	multiSF      [NbMultiSF]multiSFConf
	loraStd      loraStdConf
	fsk          fskConf
}

// Load resolves the configuration from the files in dir.
func Load(dir string) (*Config, error) {
	debugPath := filepath.Join(dir, debugConfName)
	globalPath := filepath.Join(dir, globalConfName)
	localPath := filepath.Join(dir, localConfName)

	switch {
	case fileReadable(debugPath):
		zap.S().Infof("found debug configuration file %s, other configuration files will be ignored", debugPath)
		return parseFiles(debugPath)
	case fileReadable(globalPath):
		zap.S().Infof("found global configuration file %s", globalPath)
		if fileReadable(localPath) {
			zap.S().Infof("found local configuration file %s", localPath)
			return parseFiles(globalPath, localPath)
		}
		return parseFiles(globalPath)
	case fileReadable(localPath):
		zap.S().Infof("found local configuration file %s", localPath)
		return parseFiles(localPath)
	default:
		return nil, fmt.Errorf("no configuration file named %s, %s or %s found in %s",
			debugConfName, globalConfName, localConfName, dir)
	}
}

// HasGatewayID reports whether any parsed file defined gateway_ID.
func (c *Config) HasGatewayID() bool {
	return c.hasGatewayID
}

// GatewayID is the gateway MAC address, zero when no file defined it.
func (c *Config) GatewayID() uint64 {
	return c.gatewayID
}

// EnabledChannels derives the absolute listening channels from the merged
// radio and IF-chain configuration. Channels referencing a disabled radio
// are dropped with a warning.
func (c *Config) EnabledChannels() []datamodel.Channel {
	var channels []datamodel.Channel

	for i := range c.multiSF {
		m := c.multiSF[i]
		if !m.Enable {
			continue
		}
		radio, ok := c.radio(m.Radio)
		if !ok {
			zap.S().Warnf("multi-SF channel %d references disabled or unknown radio %d, skipping", i, m.Radio)
			continue
		}
		channels = append(channels, datamodel.Channel{
			Freq:       offsetFreq(radio.Freq, m.IF),
			RFChain:    m.Radio,
			IFChain:    uint8(i), //nolint:gosec
			Modulation: datamodel.ModulationLoRa,
			Bandwidth:  datamodel.BW125K,
			MinSF:      datamodel.DatarateSF7,
			MaxSF:      datamodel.DatarateSF12,
		})
	}

	if c.loraStd.Enable {
		radio, ok := c.radio(c.loraStd.Radio)
		sf := datamodel.Datarate(c.loraStd.SpreadFactor)
		switch {
		case !ok:
			zap.S().Warnf("standard channel references disabled or unknown radio %d, skipping", c.loraStd.Radio)
		case sf < datamodel.DatarateSF7 || sf > datamodel.DatarateSF12:
			zap.S().Warnf("standard channel has invalid spread factor %d, skipping", c.loraStd.SpreadFactor)
		default:
			channels = append(channels, datamodel.Channel{
				Freq:       offsetFreq(radio.Freq, c.loraStd.IF),
				RFChain:    c.loraStd.Radio,
				IFChain:    ifChainLoraStd,
				Modulation: datamodel.ModulationLoRa,
				Bandwidth:  datamodel.BandwidthFromHz(c.loraStd.Bandwidth),
				MinSF:      sf,
				MaxSF:      sf,
			})
		}
	}

	if c.fsk.Enable {
		if radio, ok := c.radio(c.fsk.Radio); ok {
			channels = append(channels, datamodel.Channel{
				Freq:       offsetFreq(radio.Freq, c.fsk.IF),
				RFChain:    c.fsk.Radio,
				IFChain:    ifChainFSK,
				Modulation: datamodel.ModulationFSK,
				Bandwidth:  datamodel.BandwidthFromHz(c.fsk.Bandwidth),
				FSKRate:    datamodel.Datarate(c.fsk.Datarate),
			})
		} else {
			zap.S().Warnf("FSK channel references disabled or unknown radio %d, skipping", c.fsk.Radio)
		}
	}

	return channels
}

func (c *Config) radio(index uint8) (radioConf, bool) {
	if int(index) >= NbRadios {
		return radioConf{}, false
	}
	r := c.radios[index]
	return r, r.Enable
}

func offsetFreq(center uint32, offset int32) uint32 {
	return uint32(int64(center) + int64(offset)) //nolint:gosec
}

func parseFiles(paths ...string) (*Config, error) {
	cfg := &Config{}
	for _, path := range paths {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// applyFile merges one configuration file into the config; only the keys
// the file defines are overridden.
func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading configuration file %s: %w", path, err)
	}

	var root struct {
		SX1301  map[string]json.RawMessage `json:"SX1301_conf"`
		Gateway map[string]json.RawMessage `json:"gateway_conf"`
	}
	if err = json.Unmarshal(raw, &root); err != nil {
		return fmt.Errorf("%s is not a valid JSON file: %w", path, err)
	}

	if root.Gateway == nil {
		zap.S().Infof("%s does not contain a gateway_conf object", path)
	} else if err = c.applyGatewayConf(path, root.Gateway); err != nil {
		return err
	}

	if root.SX1301 == nil {
		zap.S().Infof("%s does not contain a SX1301_conf object", path)
		return nil
	}
	return c.applySX1301Conf(path, root.SX1301)
}

func (c *Config) applyGatewayConf(path string, conf map[string]json.RawMessage) error {
	rawID, ok := conf["gateway_ID"]
	if !ok {
		return nil
	}
	var idStr string
	if err := json.Unmarshal(rawID, &idStr); err != nil {
		return fmt.Errorf("%s: gateway_ID is not a string: %w", path, err)
	}
	id, err := strconv.ParseUint(idStr, 16, 64)
	if err != nil {
		return fmt.Errorf("%s: gateway_ID %q is not a hexadecimal MAC address: %w", path, idStr, err)
	}
	c.gatewayID = id
	c.hasGatewayID = true
	zap.S().Infof("gateway MAC address is configured to %016X", id)
	return nil
}

func (c *Config) applySX1301Conf(path string, conf map[string]json.RawMessage) error {
	for i := 0; i < NbRadios; i++ {
		key := fmt.Sprintf("radio_%d", i)
		raw, ok := conf[key]
		if !ok {
			zap.S().Debugf("%s: no configuration for radio %d", path, i)
			continue
		}
		if err := json.Unmarshal(raw, &c.radios[i]); err != nil {
			return fmt.Errorf("%s: invalid %s object: %w", path, key, err)
		}
		if c.radios[i].Enable {
			zap.S().Infof("radio %d enabled, centre frequency %d Hz", i, c.radios[i].Freq)
		} else {
			zap.S().Infof("radio %d disabled", i)
		}
	}

	for i := 0; i < NbMultiSF; i++ {
		key := fmt.Sprintf("chan_multiSF_%d", i)
		raw, ok := conf[key]
		if !ok {
			zap.S().Debugf("%s: no configuration for multi-SF channel %d", path, i)
			continue
		}
		if err := json.Unmarshal(raw, &c.multiSF[i]); err != nil {
			return fmt.Errorf("%s: invalid %s object: %w", path, key, err)
		}
	}

	if raw, ok := conf["chan_Lora_std"]; ok {
		if err := json.Unmarshal(raw, &c.loraStd); err != nil {
			return fmt.Errorf("%s: invalid chan_Lora_std object: %w", path, err)
		}
	}

	if raw, ok := conf["chan_FSK"]; ok {
		if err := json.Unmarshal(raw, &c.fsk); err != nil {
			return fmt.Errorf("%s: invalid chan_FSK object: %w", path, err)
		}
	}

	return nil
}

func fileReadable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
