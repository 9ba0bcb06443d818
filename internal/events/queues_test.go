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

package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/googlecloudplatform/pfcached/internal/dirstate"
)

func TestRegisterFileOpen_SwapQueues(t *testing.T) {
	q := New()
	q.RegisterFileOpen(OpenRecord{TokenID: 1, OpenTime: 100})
	assert.Empty(t, q.ReadOpen())

	q.SwapQueues()
	require.Len(t, q.ReadOpen(), 1)
	assert.Equal(t, TokenID(1), q.ReadOpen()[0].TokenID)

	q.SwapQueues()
	assert.Empty(t, q.ReadOpen(), "a second swap with no producers must yield an empty read queue")
}

func TestRegisterFileUpdateStats_CoalescesWithinEpoch(t *testing.T) {
	q := New()
	for i := 0; i < 100; i++ {
		q.RegisterFileUpdateStats(TokenID(7), dirstate.Stats{BytesWritten: 1})
	}
	q.SwapQueues()

	reads := q.ReadUpdate()
	require.Len(t, reads, 1, "100 updates within one epoch must coalesce into a single entry")
	assert.Equal(t, int64(100), reads[0].Delta.BytesWritten)
}

func TestRegisterFileUpdateStats_NewEpochStartsFreshEntry(t *testing.T) {
	q := New()
	q.RegisterFileUpdateStats(TokenID(1), dirstate.Stats{BytesWritten: 5})
	q.SwapQueues()
	q.RegisterFileUpdateStats(TokenID(1), dirstate.Stats{BytesWritten: 9})
	q.SwapQueues()

	reads := q.ReadUpdate()
	require.Len(t, reads, 1)
	assert.Equal(t, int64(9), reads[0].Delta.BytesWritten)
}

func TestRegisterFileUpdateStats_DifferentTokensDoNotCoalesce(t *testing.T) {
	q := New()
	q.RegisterFileUpdateStats(TokenID(1), dirstate.Stats{BytesWritten: 1})
	q.RegisterFileUpdateStats(TokenID(2), dirstate.Stats{BytesWritten: 2})
	q.SwapQueues()
	assert.Len(t, q.ReadUpdate(), 2)
}

func TestRegisterPurgeEvents(t *testing.T) {
	q := New()
	node := dirstate.NewRoot()
	q.RegisterPurgeByNode(PurgeByNodeRecord{Node: node, TotalSize: 10, NFiles: 1})
	q.RegisterPurgeByDir(PurgeByDirRecord{DirPath: "/a", TotalSize: 20, NFiles: 2})
	q.RegisterPurgeByLfn(PurgeByLfnRecord{Lfn: "/a/f", Size: 30})
	q.SwapQueues()

	require.Len(t, q.ReadPurgeByNode(), 1)
	assert.Same(t, node, q.ReadPurgeByNode()[0].Node)
	require.Len(t, q.ReadPurgeByDir(), 1)
	assert.Equal(t, "/a", q.ReadPurgeByDir()[0].DirPath)
	require.Len(t, q.ReadPurgeByLfn(), 1)
	assert.Equal(t, int64(30), q.ReadPurgeByLfn()[0].Size)
}
