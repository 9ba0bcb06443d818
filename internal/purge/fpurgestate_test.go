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

package purge

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/googlecloudplatform/pfcached/internal/cinfo"
	"github.com/googlecloudplatform/pfcached/internal/dirstate"
	"github.com/googlecloudplatform/pfcached/internal/oss"
)

func putCinfoFile(t *testing.T, f *oss.Fake, path string, info cinfo.Info, modTime time.Time) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, (cinfo.Writer{}).Write(&buf, info))
	f.PutFile(path+".cinfo", buf.Bytes(), modTime)
}

// TestWalk_S1_DiskOverHWM mirrors spec.md §8 scenario S1: four files at
// distinct atimes, target 400, the oldest (atime 10, size 500) must be
// the sole fmap entry needed to cover the target.
func TestWalk_S1_DiskOverHWM(t *testing.T) {
	f := oss.NewFake()
	sizes := map[string]int64{"f10": 500, "f20": 400, "f30": 200, "f40": 100}
	atimes := map[string]int64{"f10": 10, "f20": 20, "f30": 30, "f40": 40}
	for name, size := range sizes {
		f.PutFile("/"+name, make([]byte, size), time.Unix(atimes[name], 0))
		putCinfoFile(t, f, "/"+name, cinfo.Info{DownloadedBytes: size, HasLatestDetachTime: true, LatestDetachTime: time.Unix(atimes[name], 0)}, time.Unix(atimes[name], 0))
	}

	p := New(f, ".cinfo", 400, 0, 0, nil)
	require.NoError(t, p.Walk(dirstate.NewRoot(), "/", nil))

	cands := p.Candidates()
	require.NotEmpty(t, cands)
	assert.Equal(t, int64(10), cands[0].AccessTime)
	assert.Equal(t, int64(500), cands[0].SizeBytes)
}

func TestWalk_S2_AgeBasedDoomed(t *testing.T) {
	f := oss.NewFake()
	for name, atime := range map[string]int64{"f50": 50, "f150": 150, "f180": 180} {
		f.PutFile("/"+name, []byte("x"), time.Unix(atime, 0))
		putCinfoFile(t, f, "/"+name, cinfo.Info{DownloadedBytes: 10, HasLatestDetachTime: true, LatestDetachTime: time.Unix(atime, 0)}, time.Unix(atime, 0))
	}

	p := New(f, ".cinfo", 0, 100, 0, nil)
	require.NoError(t, p.Walk(dirstate.NewRoot(), "/", nil))

	assert.Equal(t, 1, p.DoomedCount())
	p.MoveListEntriesToMap()
	cands := p.Candidates()
	require.NotEmpty(t, cands)
	assert.Equal(t, int64(0), cands[0].AccessTime)
}

func TestWalk_S5_OrphanCinfo_RemovesBothAndSkipsCandidate(t *testing.T) {
	f := oss.NewFake()
	f.PutFile("/orphan.cinfo", []byte("c"), time.Unix(10, 0))

	p := New(f, ".cinfo", 1000, 0, 0, nil)
	require.NoError(t, p.Walk(dirstate.NewRoot(), "/", nil))

	assert.Empty(t, p.Candidates())
	_, err := f.Stat("/orphan.cinfo")
	assert.Error(t, err, "orphan cinfo file must have been unlinked")
}

func TestWalk_OrphanData_NoChecksumFileRemoved(t *testing.T) {
	f := oss.NewFake()
	f.PutFile("/orphan", []byte("x"), time.Unix(10, 0))

	p := New(f, ".cinfo", 1000, 0, 0, nil)
	require.NoError(t, p.Walk(dirstate.NewRoot(), "/", nil))

	assert.Empty(t, p.Candidates())
	_, err := f.Stat("/orphan")
	assert.Error(t, err)
}

func TestWalk_CinfoDecodeFailure_RemovesBoth(t *testing.T) {
	f := oss.NewFake()
	f.PutFile("/bad", []byte("x"), time.Unix(10, 0))
	f.PutFile("/bad.cinfo", []byte("not a real cinfo header"), time.Unix(10, 0))

	p := New(f, ".cinfo", 1000, 0, 0, nil)
	require.NoError(t, p.Walk(dirstate.NewRoot(), "/", nil))

	_, err := f.Stat("/bad")
	assert.Error(t, err)
	_, err = f.Stat("/bad.cinfo")
	assert.Error(t, err)
}

func TestClassify_BudgetEviction(t *testing.T) {
	f := oss.NewFake()
	// Three candidates each sized 100; target N=150 so the budget should
	// retain only enough of the oldest entries to cover N, evicting the
	// newest once bytes_accum - newest.size >= N.
	for name, atime := range map[string]int64{"a": 10, "b": 20, "c": 30} {
		f.PutFile("/"+name, make([]byte, 100), time.Unix(atime, 0))
		putCinfoFile(t, f, "/"+name, cinfo.Info{DownloadedBytes: 100, HasLatestDetachTime: true, LatestDetachTime: time.Unix(atime, 0)}, time.Unix(atime, 0))
	}

	p := New(f, ".cinfo", 150, 0, 0, nil)
	require.NoError(t, p.Walk(dirstate.NewRoot(), "/", nil))

	cands := p.Candidates()
	var total int64
	for _, c := range cands {
		total += c.SizeBytes
	}
	assert.GreaterOrEqual(t, total, int64(150))
	assert.Equal(t, int64(10), cands[0].AccessTime, "oldest entry must survive eviction")
}

func TestWalk_Subdirectories_AreWalked(t *testing.T) {
	f := oss.NewFake()
	f.MkdirAll("/sub")
	f.PutFile("/sub/a", []byte("x"), time.Unix(10, 0))
	putCinfoFile(t, f, "/sub/a", cinfo.Info{DownloadedBytes: 5, HasLatestDetachTime: true, LatestDetachTime: time.Unix(10, 0)}, time.Unix(10, 0))

	p := New(f, ".cinfo", 1000, 0, 0, nil)
	require.NoError(t, p.Walk(dirstate.NewRoot(), "/", nil))

	cands := p.Candidates()
	require.Len(t, cands, 1)
	assert.Equal(t, "/sub/a", cands[0].DataPath)
}
