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

package cinfo

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	want := Info{
		DownloadedBytes:         1 << 20,
		LatestDetachTime:        time.Unix(1700000000, 0),
		HasLatestDetachTime:     true,
		ChecksumState:           ChecksumState{TotalBlocks: 10, MissingBlocks: 0},
		NoChecksumTimeForUVKeep: time.Unix(1600000000, 0),
	}

	var buf bytes.Buffer
	require.NoError(t, (Writer{}).Write(&buf, want))

	got, err := (Reader{}).Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, want.DownloadedBytes, got.DownloadedBytes)
	assert.True(t, got.HasLatestDetachTime)
	assert.Equal(t, want.LatestDetachTime.Unix(), got.LatestDetachTime.Unix())
	assert.Equal(t, want.ChecksumState, got.ChecksumState)
	assert.Equal(t, want.NoChecksumTimeForUVKeep.Unix(), got.NoChecksumTimeForUVKeep.Unix())
}

func TestRead_NoLatestDetachTime(t *testing.T) {
	want := Info{DownloadedBytes: 500, HasLatestDetachTime: false}
	var buf bytes.Buffer
	require.NoError(t, (Writer{}).Write(&buf, want))

	got, err := (Reader{}).Read(&buf)
	require.NoError(t, err)
	assert.False(t, got.HasLatestDetachTime)
}

func TestChecksumState_HasMissingBits(t *testing.T) {
	assert.True(t, ChecksumState{TotalBlocks: 4, MissingBlocks: 1}.HasMissingBits())
	assert.False(t, ChecksumState{TotalBlocks: 4, MissingBlocks: 0}.HasMissingBits())
}

func TestRead_RejectsBadMagic(t *testing.T) {
	buf := bytes.NewBuffer(make([]byte, 64))
	_, err := (Reader{}).Read(buf)
	assert.Error(t, err)
}

func TestRead_RejectsTruncated(t *testing.T) {
	buf := bytes.NewBuffer([]byte{1, 2, 3})
	_, err := (Reader{}).Read(buf)
	assert.Error(t, err)
}
