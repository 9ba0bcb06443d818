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

// Package events implements the double-buffered producer/consumer event
// queues and the access-token table the resource monitor drains on each
// heartbeat (spec.md §4.3, §4.4).
package events

import (
	"sync"

	"github.com/googlecloudplatform/pfcached/internal/dirstate"
)

// TokenID identifies an in-flight file open across its open/update/close
// events (spec.md §3 AccessToken).
type TokenID int

// OpenRecord is the file_open queue's payload.
type OpenRecord struct {
	TokenID      TokenID
	OpenTime     int64
	ExistingFile bool
}

// UpdateStatsRecord is the file_update_stats queue's payload.
type UpdateStatsRecord struct {
	TokenID TokenID
	Delta   dirstate.Stats
}

// CloseRecord is the file_close queue's payload.
type CloseRecord struct {
	TokenID   TokenID
	CloseTime int64
	Stats     dirstate.Stats
}

// PurgeByNodeRecord is the purge_by_node queue's payload: a purge already
// resolved to a DirState (spec.md §4.3).
type PurgeByNodeRecord struct {
	Node      *dirstate.State
	TotalSize int64
	NFiles    int64
}

// PurgeByDirRecord is the purge_by_dir queue's payload: a purge
// identified only by directory path, resolved against the tree at drain
// time.
type PurgeByDirRecord struct {
	DirPath   string
	TotalSize int64
	NFiles    int64
}

// PurgeByLfnRecord is the purge_by_lfn queue's payload: a single-file
// purge identified by logical filename.
type PurgeByLfnRecord struct {
	Lfn  string
	Size int64
}

// Queues holds the six event queues (spec.md §4.3) behind one shared
// mutex. Producers (client-serving goroutines) call the Register*
// methods, which only ever append a small record and release the lock
// immediately — no blocking, no condition variables (spec.md §5).
// Consumption happens only from the monitor goroutine via SwapQueues and
// the Read* accessors.
type Queues struct {
	mu sync.Mutex

	epoch int64

	writeOpen   []OpenRecord
	writeUpdate []UpdateStatsRecord
	// updateIndex maps a token to its position in writeUpdate, valid only
	// for the current epoch — this is the coalescing state spec.md §4.3 /
	// §9 describes ("one integer epoch, one index").
	updateIndex map[TokenID]int
	updateEpoch map[TokenID]int64

	writeClose     []CloseRecord
	writePurgeNode []PurgeByNodeRecord
	writePurgeDir  []PurgeByDirRecord
	writePurgeLfn  []PurgeByLfnRecord

	readOpen       []OpenRecord
	readUpdate     []UpdateStatsRecord
	readClose      []CloseRecord
	readPurgeNode  []PurgeByNodeRecord
	readPurgeDir   []PurgeByDirRecord
	readPurgeLfn   []PurgeByLfnRecord
}

// New constructs an empty Queues.
func New() *Queues {
	return &Queues{
		updateIndex: map[TokenID]int{},
		updateEpoch: map[TokenID]int64{},
	}
}

// RegisterFileOpen appends an open record (spec.md §4.3, §4.4).
func (q *Queues) RegisterFileOpen(rec OpenRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.writeOpen = append(q.writeOpen, rec)
}

// RegisterFileUpdateStats appends an update-stats record, coalescing
// into the existing entry for this token if one was already written
// during the current queue-swap epoch (spec.md §4.3).
func (q *Queues) RegisterFileUpdateStats(token TokenID, delta dirstate.Stats) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if idx, ok := q.updateIndex[token]; ok && q.updateEpoch[token] == q.epoch {
		q.writeUpdate[idx].Delta.Add(delta)
		return
	}

	idx := len(q.writeUpdate)
	q.writeUpdate = append(q.writeUpdate, UpdateStatsRecord{TokenID: token, Delta: delta})
	q.updateIndex[token] = idx
	q.updateEpoch[token] = q.epoch
}

// RegisterFileClose appends a close record.
func (q *Queues) RegisterFileClose(rec CloseRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.writeClose = append(q.writeClose, rec)
}

// RegisterPurgeByNode appends a purge-by-node record.
func (q *Queues) RegisterPurgeByNode(rec PurgeByNodeRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.writePurgeNode = append(q.writePurgeNode, rec)
}

// RegisterPurgeByDir appends a purge-by-dir record.
func (q *Queues) RegisterPurgeByDir(rec PurgeByDirRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.writePurgeDir = append(q.writePurgeDir, rec)
}

// RegisterPurgeByLfn appends a purge-by-lfn record.
func (q *Queues) RegisterPurgeByLfn(rec PurgeByLfnRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.writePurgeLfn = append(q.writePurgeLfn, rec)
}

// SwapQueues moves each write queue into its read queue, clearing the
// read queue first, and advances the coalescing epoch so the next
// RegisterFileUpdateStats call for any token starts a fresh entry
// (spec.md §4.3 swap_queues).
func (q *Queues) SwapQueues() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.readOpen = q.writeOpen
	q.writeOpen = nil

	q.readUpdate = q.writeUpdate
	q.writeUpdate = nil

	q.readClose = q.writeClose
	q.writeClose = nil

	q.readPurgeNode = q.writePurgeNode
	q.writePurgeNode = nil

	q.readPurgeDir = q.writePurgeDir
	q.writePurgeDir = nil

	q.readPurgeLfn = q.writePurgeLfn
	q.writePurgeLfn = nil

	q.epoch++
}

func (q *Queues) ReadOpen() []OpenRecord             { return q.readOpen }
func (q *Queues) ReadUpdate() []UpdateStatsRecord     { return q.readUpdate }
func (q *Queues) ReadClose() []CloseRecord            { return q.readClose }
func (q *Queues) ReadPurgeByNode() []PurgeByNodeRecord { return q.readPurgeNode }
func (q *Queues) ReadPurgeByDir() []PurgeByDirRecord   { return q.readPurgeDir }
func (q *Queues) ReadPurgeByLfn() []PurgeByLfnRecord   { return q.readPurgeLfn }
