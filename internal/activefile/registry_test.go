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

package activefile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet_MarkUnmark(t *testing.T) {
	s := NewSet()
	assert.False(t, s.IsProtected("/a"))
	s.Mark("/a")
	assert.True(t, s.IsProtected("/a"))
	s.Unmark("/a")
	assert.False(t, s.IsProtected("/a"))
}

func TestSet_MarkRefCounted(t *testing.T) {
	s := NewSet()
	s.Mark("/a")
	s.Mark("/a")
	s.Unmark("/a")
	assert.True(t, s.IsProtected("/a"), "one of two opens remains")
	s.Unmark("/a")
	assert.False(t, s.IsProtected("/a"))
}

func TestSet_Protect(t *testing.T) {
	s := NewSet()
	s.Protect("/pinned")
	assert.True(t, s.IsProtected("/pinned"))
	s.Unprotect("/pinned")
	assert.False(t, s.IsProtected("/pinned"))
}
