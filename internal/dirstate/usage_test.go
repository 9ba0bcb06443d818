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

package dirstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUsage_UpdateFrom(t *testing.T) {
	u := Usage{BytesOnDisk: 1000, NFiles: 5}
	u.UpdateFrom(Stats{BytesWritten: 200, BytesRemoved: 50, NFilesCreated: 2, NFilesRemoved: 1})
	assert.Equal(t, int64(1150), u.BytesOnDisk)
	assert.Equal(t, int64(6), u.NFiles)
}

func TestUsage_UpdateFrom_TransientNegative(t *testing.T) {
	u := Usage{BytesOnDisk: 10}
	u.UpdateFrom(Stats{BytesRemoved: 50})
	assert.Equal(t, int64(-40), u.BytesOnDisk)
}

func TestUsage_UpdateFrom_MonotonicTimes(t *testing.T) {
	u := Usage{LastOpenTime: 100}
	u.UpdateFrom(Stats{LastOpenTime: 50})
	assert.Equal(t, int64(100), u.LastOpenTime, "times must never move backward")
	u.UpdateFrom(Stats{LastOpenTime: 200})
	assert.Equal(t, int64(200), u.LastOpenTime)
}
