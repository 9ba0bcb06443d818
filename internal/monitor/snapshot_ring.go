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

package monitor

import (
	"sync"

	"github.com/googlecloudplatform/pfcached/internal/dirstate"
)

// snapshotRing retains the last `size` flattened snapshots purely for
// trend logging at debug level, mirroring XrdPfcResourceMonitor's
// heartbeat in original_source/src/XrdPfc — no purge decision reads
// from it.
type snapshotRing struct {
	mu   sync.Mutex
	buf  []dirstate.Snapshot
	size int
}

func newSnapshotRing(size int) *snapshotRing {
	if size <= 0 {
		size = 4
	}
	return &snapshotRing{size: size}
}

func (r *snapshotRing) push(s dirstate.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, s)
	if len(r.buf) > r.size {
		r.buf = r.buf[len(r.buf)-r.size:]
	}
}

func (r *snapshotRing) recent() []dirstate.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]dirstate.Snapshot, len(r.buf))
	copy(out, r.buf)
	return out
}
