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

package datamodel

import (
	"github.com/go-playground/assert/v2"
	"testing"
)

func TestTXStatusString(t *testing.T) {
	assert.Equal(t, TXOff.String(), "TX_OFF")
	assert.Equal(t, TXFree.String(), "TX_FREE")
	assert.Equal(t, TXScheduled.String(), "TX_SCHEDULED")
	assert.Equal(t, TXEmitting.String(), "TX_EMITTING")
	assert.Equal(t, TXStatusUnknown.String(), "TX_UNKNOWN")
	assert.Equal(t, TXStatus(250).String(), "TX_UNKNOWN")
}

func TestModulationString(t *testing.T) {
	assert.Equal(t, ModulationLoRa.String(), "LORA")
	assert.Equal(t, ModulationFSK.String(), "FSK")
	assert.Equal(t, ModulationUndefined.String(), "UNDEF")
}

func TestCoderateString(t *testing.T) {
	assert.Equal(t, CR4_5.String(), "4/5")
	assert.Equal(t, CR4_6.String(), "4/6")
	assert.Equal(t, CR4_7.String(), "4/7")
	assert.Equal(t, CR4_8.String(), "4/8")
	assert.Equal(t, CRUndefined.String(), "UNDEF")
}
