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
	"github.com/stretchr/testify/require"
)

func buildSnapshotTestFsState() *FsState {
	fs := NewFsState()
	fs.UsageUpdateTime = 1000
	fs.StatsResetTime = 990
	a := fs.Root.FindDir("a", true)
	a.HereUsage.BytesOnDisk = 10
	b := a.FindDir("b", true)
	b.HereUsage.BytesOnDisk = 20
	fs.Root.FindDir("c", true).HereUsage.BytesOnDisk = 5
	return fs
}

func TestFlatten_RootIsEntryZeroWithNoParent(t *testing.T) {
	fs := buildSnapshotTestFsState()
	snap := Flatten(fs, 0)
	require.NotEmpty(t, snap.DirStates)
	assert.Equal(t, -1, snap.DirStates[0].Parent)
}

func TestFlatten_LeavesHaveEmptyDaughterRange(t *testing.T) {
	fs := buildSnapshotTestFsState()
	snap := Flatten(fs, 0)
	for _, e := range snap.DirStates {
		if e.Name == "b" || e.Name == "c" {
			assert.Equal(t, -1, e.DaughtersBegin)
			assert.Equal(t, -1, e.DaughtersEnd)
		}
	}
}

func TestFlattenImport_RoundTrip(t *testing.T) {
	fs := buildSnapshotTestFsState()
	snap := Flatten(fs, 0)

	got, err := Import(snap)
	require.NoError(t, err)
	assert.Equal(t, fs.UsageUpdateTime, got.UsageUpdateTime)
	assert.Equal(t, fs.StatsResetTime, got.StatsResetTime)

	a := got.Root.Child("a")
	require.NotNil(t, a)
	assert.Equal(t, int64(10), a.HereUsage.BytesOnDisk)
	b := a.Child("b")
	require.NotNil(t, b)
	assert.Equal(t, int64(20), b.HereUsage.BytesOnDisk)
	assert.Same(t, a, b.Parent)
	c := got.Root.Child("c")
	require.NotNil(t, c)
	assert.Equal(t, int64(5), c.HereUsage.BytesOnDisk)
}

func TestToJSON_FromJSON_RoundTrip(t *testing.T) {
	fs := buildSnapshotTestFsState()
	data, err := ToJSON(fs, 0)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"dirstate_snapshot"`)
	assert.Contains(t, string(data), `"m_dir_name"`)

	got, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, int64(20), got.Root.Child("a").Child("b").HereUsage.BytesOnDisk)
}

func TestToBinary_FromBinary_RoundTrip(t *testing.T) {
	fs := buildSnapshotTestFsState()
	data, err := ToBinary(fs, 0)
	require.NoError(t, err)

	got, err := FromBinary(data)
	require.NoError(t, err)
	assert.Equal(t, int64(20), got.Root.Child("a").Child("b").HereUsage.BytesOnDisk)
}

func TestFlatten_MaxDepthTruncates(t *testing.T) {
	fs := buildSnapshotTestFsState()
	snap := Flatten(fs, 1)
	for _, e := range snap.DirStates {
		if e.Name == "a" || e.Name == "c" {
			assert.Equal(t, -1, e.DaughtersBegin, "depth-1 nodes must not expose b as a daughter when maxDepth=1")
		}
	}
}
