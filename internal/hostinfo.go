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

package internal

import (
	"fmt"
	"runtime"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/load"
	"github.com/shirou/gopsutil/mem"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"
)

type hostSnapshot struct { //nolint:govet
	OS        string
	Arch      string
	GatewayID string
	Memory    *mem.VirtualMemoryStat
	CPUInfo   []cpu.InfoStat
	Host      *host.InfoStat
	Load      *load.AvgStat
}

// LogHostSnapshot writes one JSON line describing the machine the gateway
// runs on. Hostname and host ID are hashed before logging so the line can be
// shared in support requests without leaking the site identity.
func LogHostSnapshot(gatewayID uint64) {
	vmStat, err := mem.VirtualMemory()
	if err != nil {
		zap.S().Warnf("error: %s", err)
	}

	cpuInfo, err := cpu.Info()
	if err != nil {
		zap.S().Warnf("error: %s", err)
	}

	hostInfo, err := host.Info()
	if err != nil {
		zap.S().Warnf("error: %s", err)
	}

	loadInfo, err := load.Avg()
	if err != nil {
		zap.S().Warnf("error: %s", err)
	}

	if hostInfo != nil {
		// remove PII
		hostNameHasher := sha3.New512()
		hostNameHasher.Write([]byte(hostInfo.Hostname))
		hostInfo.Hostname = fmt.Sprintf("%x", hostNameHasher.Sum(nil))

		hostIdHasher := sha3.New512()
		hostIdHasher.Write([]byte(hostInfo.HostID))
		hostInfo.HostID = fmt.Sprintf("%x", hostIdHasher.Sum(nil))
	}

	// Strip tailing whitespace from CPUInfo.modelName
	for i := 0; i < len(cpuInfo); i++ {
		cpuInfo[i].ModelName = strings.Trim(cpuInfo[i].ModelName, " ")
	}

	s := hostSnapshot{
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		GatewayID: fmt.Sprintf("%016X", gatewayID),
		Memory:    vmStat,
		CPUInfo:   cpuInfo,
		Host:      hostInfo,
		Load:      loadInfo,
	}

	jsonSnapshot, err := jsoniter.Marshal(s)
	if err != nil {
		zap.S().Errorf("error: %s", err)
		return
	}

	zap.S().Infof("%s", string(jsonSnapshot))
}
