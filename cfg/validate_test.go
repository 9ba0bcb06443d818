// Copyright 2024 Google Inc. All Rights Reserved.
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

package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	c := DefaultConfig()
	c.Cache.RootDir = "/var/cache/pfc"
	c.Purge.DiskHighWaterMark = 1000
	c.Purge.DiskLowWaterMark = 800
	return c
}

func TestValidate_Succeeds(t *testing.T) {
	c := validConfig()
	assert.NoError(t, Validate(&c))
}

func TestValidate_RequiresRootDir(t *testing.T) {
	c := validConfig()
	c.Cache.RootDir = ""
	assert.Error(t, Validate(&c))
}

func TestValidate_RejectsLwmAboveHwm(t *testing.T) {
	c := validConfig()
	c.Purge.DiskLowWaterMark = 1200
	assert.Error(t, Validate(&c))
}

func TestValidate_FileUsagePolicyRequiresNominal(t *testing.T) {
	c := validConfig()
	c.Purge.FileUsageBaseline = 10
	c.Purge.FileUsageNominal = 0
	assert.Error(t, Validate(&c))

	c.Purge.FileUsageNominal = 100
	assert.NoError(t, Validate(&c))
}

func TestValidate_QuotaPinRequiresConfigFile(t *testing.T) {
	c := validConfig()
	c.QuotaPin.Enabled = true
	c.QuotaPin.ConfigFile = ""
	assert.Error(t, Validate(&c))
}

func TestValidate_RejectsBadLogFormat(t *testing.T) {
	c := validConfig()
	c.Logging.Format = "xml"
	assert.Error(t, Validate(&c))
}
