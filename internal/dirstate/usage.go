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

package dirstate

// Usage is the cumulative, never-reset state of a directory (spec.md §3
// DirUsage).
type Usage struct {
	LastOpenTime  int64
	LastCloseTime int64

	BytesOnDisk  int64
	NFilesOpen   int64
	NFiles       int64
	NDirectories int64
}

// UpdateFrom folds a Stats interval into u, enforcing spec.md §3's
// invariant equations. Counters are allowed to go transiently negative
// during event reordering (spec.md §3, §5) — callers must not treat a
// momentary dip as corruption, only a failure to converge across many
// cycles.
func (u *Usage) UpdateFrom(s Stats) {
	u.BytesOnDisk += s.BytesWritten - s.BytesRemoved
	u.NFilesOpen += s.NFilesOpened - s.NFilesClosed
	u.NFiles += s.NFilesCreated - s.NFilesRemoved
	u.NDirectories += s.NDirectoriesCreated - s.NDirectoriesRemoved

	if s.LastOpenTime > u.LastOpenTime {
		u.LastOpenTime = s.LastOpenTime
	}
	if s.LastCloseTime > u.LastCloseTime {
		u.LastCloseTime = s.LastCloseTime
	}
}
