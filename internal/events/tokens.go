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
	"sync"

	"github.com/googlecloudplatform/pfcached/internal/dirstate"
)

// Token is an ephemeral handle issued at file-open time (spec.md §3
// AccessToken). Filename is only meaningful until ProcessQueues resolves
// it to a Dir; thereafter Dir is authoritative.
type Token struct {
	ID       TokenID
	Filename string
	Dir      *dirstate.State
	inUse    bool
}

// Tokens is the access-token table: allocated from a free-slot list,
// growing the backing slice only when the free list is empty (spec.md
// §4.4, §9).
type Tokens struct {
	mu    sync.Mutex
	slots []Token
	free  []TokenID
}

// NewTokens constructs an empty token table.
func NewTokens() *Tokens {
	return &Tokens{}
}

// Register allocates a token for filename and returns its id (spec.md
// §4.4 register_file_open). The caller is expected to also push an
// OpenRecord carrying the same id onto the file_open queue.
func (t *Tokens) Register(filename string) TokenID {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.free); n > 0 {
		id := t.free[n-1]
		t.free = t.free[:n-1]
		t.slots[id] = Token{ID: id, Filename: filename, inUse: true}
		return id
	}

	id := TokenID(len(t.slots))
	t.slots = append(t.slots, Token{ID: id, Filename: filename, inUse: true})
	return id
}

// Resolve sets the resolved DirState for token id — called once
// ProcessQueues has walked the filename to a node (spec.md §4.4).
func (t *Tokens) Resolve(id TokenID, dir *dirstate.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(id) < len(t.slots) && t.slots[id].inUse {
		t.slots[id].Dir = dir
	}
}

// Get returns the token's current state. The second return is false if
// id is out of range or not currently in use.
func (t *Tokens) Get(id TokenID) (Token, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(id) >= len(t.slots) || !t.slots[id].inUse {
		return Token{}, false
	}
	return t.slots[id], true
}

// Free returns id to the free-slot list, on file-close processing
// (spec.md §4.4).
func (t *Tokens) Free(id TokenID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(id) >= len(t.slots) || !t.slots[id].inUse {
		return
	}
	t.slots[id] = Token{}
	t.free = append(t.free, id)
}

// InUseCount reports how many tokens are currently allocated — used by
// the n_files_open == opens - closes steady-state invariant test
// (spec.md §8 invariant 3).
func (t *Tokens) InUseCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots) - len(t.free)
}
