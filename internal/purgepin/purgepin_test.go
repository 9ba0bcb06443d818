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

package purgepin

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/googlecloudplatform/pfcached/internal/dirstate"
)

// TestConfigure_S4_QuotaPin mirrors spec.md §8 scenario S4: subtree /a
// with 50G on disk and a 30G quota should report 20G to recover.
func TestConfigure_S4_QuotaPin(t *testing.T) {
	p := New(nil)
	require.NoError(t, p.Configure(strings.NewReader("/a 30g\n")))

	root := dirstate.NewRoot()
	a := root.FindDir("a", true)
	a.SubdirUsage.BytesOnDisk = 50 << 30

	total := p.GetBytesToRecover(root)
	assert.Equal(t, int64(20)<<30, total)

	infos := p.RefDirInfos()
	require.Len(t, infos, 1)
	assert.Equal(t, int64(20)<<30, infos[0].BytesToRecover)
	assert.Same(t, a, infos[0].DirState)
}

func TestConfigure_SkipsMalformedLines(t *testing.T) {
	p := New(nil)
	err := p.Configure(strings.NewReader("# comment\n\n/a 10m\nbadline\n/b notanumber\n/c 5m\n"))
	require.NoError(t, err)
	assert.Len(t, p.RefDirInfos(), 2)
}

func TestGetBytesToRecover_UnresolvablePathContributesZero(t *testing.T) {
	p := New(nil)
	require.NoError(t, p.Configure(strings.NewReader("/missing 1m\n")))
	root := dirstate.NewRoot()
	assert.Equal(t, int64(0), p.GetBytesToRecover(root))
}

func TestGetBytesToRecover_UnderQuotaContributesZero(t *testing.T) {
	p := New(nil)
	require.NoError(t, p.Configure(strings.NewReader("/a 100m\n")))
	root := dirstate.NewRoot()
	root.FindDir("a", true).SubdirUsage.BytesOnDisk = 1 << 20
	assert.Equal(t, int64(0), p.GetBytesToRecover(root))
}

func TestConfigureFile_MissingFileErrors(t *testing.T) {
	p := New(nil)
	err := p.ConfigureFile("/no/such/quota.conf")
	assert.Error(t, err)
}
