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

func TestTokens_RegisterResolveFree(t *testing.T) {
	tk := NewTokens()
	id := tk.Register("/a/b/file.data")
	tok, ok := tk.Get(id)
	require.True(t, ok)
	assert.Equal(t, "/a/b/file.data", tok.Filename)
	assert.Equal(t, 1, tk.InUseCount())

	dir := dirstate.NewRoot()
	tk.Resolve(id, dir)
	tok, _ = tk.Get(id)
	assert.Same(t, dir, tok.Dir)

	tk.Free(id)
	assert.Equal(t, 0, tk.InUseCount())
	_, ok = tk.Get(id)
	assert.False(t, ok)
}

func TestTokens_FreeListReused(t *testing.T) {
	tk := NewTokens()
	a := tk.Register("/a")
	tk.Free(a)
	b := tk.Register("/b")
	assert.Equal(t, a, b, "freed slot should be reused before growing the table")
}

func TestTokens_GetUnknownID(t *testing.T) {
	tk := NewTokens()
	_, ok := tk.Get(TokenID(42))
	assert.False(t, ok)
}
