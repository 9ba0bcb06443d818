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

// Package dirstate is the in-memory mirror of the cached namespace: per-
// directory traffic counters (DirStats), cumulative usage (DirUsage), and
// the tree (DirState) that links them together (spec.md §3, §4.1).
package dirstate

// Stats is a bundle of traffic-delta counters accumulated over an
// interval (spec.md §3 DirStats). It is reset to zero once folded into a
// Usage via Usage.UpdateFrom.
type Stats struct {
	NumIOs        int64
	DurationUsec  int64
	BytesHit      int64
	BytesMissed   int64
	BytesBypassed int64
	BytesWritten  int64
	NCksumErrors  int64

	BytesRemoved        int64
	NFilesOpened        int64
	NFilesClosed        int64
	NFilesCreated       int64
	NFilesRemoved       int64
	NDirectoriesCreated int64
	NDirectoriesRemoved int64

	// LastOpenTime/LastCloseTime are the newest open/close timestamps
	// (unix seconds) folded into this interval; used by upward
	// propagation to compute a node's max across children (spec.md §4.5
	// phase B).
	LastOpenTime  int64
	LastCloseTime int64
}

// Add folds other into s in place (additive merge, spec.md §3).
func (s *Stats) Add(other Stats) {
	s.NumIOs += other.NumIOs
	s.DurationUsec += other.DurationUsec
	s.BytesHit += other.BytesHit
	s.BytesMissed += other.BytesMissed
	s.BytesBypassed += other.BytesBypassed
	s.BytesWritten += other.BytesWritten
	s.NCksumErrors += other.NCksumErrors

	s.BytesRemoved += other.BytesRemoved
	s.NFilesOpened += other.NFilesOpened
	s.NFilesClosed += other.NFilesClosed
	s.NFilesCreated += other.NFilesCreated
	s.NFilesRemoved += other.NFilesRemoved
	s.NDirectoriesCreated += other.NDirectoriesCreated
	s.NDirectoriesRemoved += other.NDirectoriesRemoved

	if other.LastOpenTime > s.LastOpenTime {
		s.LastOpenTime = other.LastOpenTime
	}
	if other.LastCloseTime > s.LastCloseTime {
		s.LastCloseTime = other.LastCloseTime
	}
}

// Reset zeroes s, preserving nothing (spec.md §3: "reset to zero after
// being folded into DirUsage").
func (s *Stats) Reset() {
	*s = Stats{}
}

// IsZero reports whether every counter is at its zero value. Used by the
// quiescent-system invariant test (spec.md §8 invariant 2).
func (s Stats) IsZero() bool {
	return s == Stats{}
}
