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

package oss

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_TraversalRoundTrip(t *testing.T) {
	f := NewFake()
	now := time.Unix(1000, 0)
	f.PutFile("/a/b/file1.data", []byte("hello"), now)
	f.PutFile("/a/b/file1.data.cinfo", []byte("cinfo"), now)
	f.MkdirAll("/a/c")

	root, err := f.OpenDir("/a")
	require.NoError(t, err)
	defer root.Close()

	entries, err := root.ReadDir()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Name)
	assert.True(t, entries[0].IsDir)
	assert.Equal(t, "c", entries[1].Name)

	b, err := root.OpenDirAt("b")
	require.NoError(t, err)
	defer b.Close()

	bEntries, err := b.ReadDir()
	require.NoError(t, err)
	require.Len(t, bEntries, 2)

	rc, err := b.OpenROAt("file1.data")
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
	require.NoError(t, rc.Close())

	info, err := b.StatAt("file1.data")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.False(t, info.IsDir)

	require.NoError(t, b.UnlinkAt("file1.data"))
	_, err = b.StatAt("file1.data")
	assert.Error(t, err)
}

func TestFake_StatVS(t *testing.T) {
	f := NewFake()
	f.SetSpace(1000, 400)
	si, err := f.StatVS("data")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), si.TotalBytes)
	assert.Equal(t, int64(400), si.FreeBytes)
}

func TestFake_OpenDirAt_MissingSubdir(t *testing.T) {
	f := NewFake()
	f.MkdirAll("/a")
	root, err := f.OpenDir("/a")
	require.NoError(t, err)
	_, err = root.OpenDirAt("missing")
	assert.Error(t, err)
}
