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

func TestStats_Add(t *testing.T) {
	s := Stats{BytesWritten: 100, NFilesOpened: 1, LastOpenTime: 10}
	s.Add(Stats{BytesWritten: 50, NFilesOpened: 2, LastOpenTime: 20})
	assert.Equal(t, int64(150), s.BytesWritten)
	assert.Equal(t, int64(3), s.NFilesOpened)
	assert.Equal(t, int64(20), s.LastOpenTime)
}

func TestStats_Add_KeepsMaxTime(t *testing.T) {
	s := Stats{LastCloseTime: 50}
	s.Add(Stats{LastCloseTime: 30})
	assert.Equal(t, int64(50), s.LastCloseTime)
}

func TestStats_Reset(t *testing.T) {
	s := Stats{BytesWritten: 100}
	s.Reset()
	assert.True(t, s.IsZero())
}
