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

import (
	"fmt"
	"sort"
	"strings"
)

// State is one node of the in-memory namespace tree (spec.md §3 DirState).
// The tree is owned top-down: a node's children map is its exclusive
// property, and Parent is a non-owning back-reference — Go's garbage
// collector makes the cycle safe, unlike the arena-of-indices workaround
// spec.md §9 prescribes for languages without it.
type State struct {
	Name   string
	Depth  int
	Parent *State

	HereStats   Stats
	SubdirStats Stats

	HereUsage   Usage
	SubdirUsage Usage

	children map[string]*State
}

// NewRoot creates the tree root, depth 0, no parent.
func NewRoot() *State {
	return &State{children: map[string]*State{}}
}

// FindDir does a single-level lookup of name among d's immediate
// children, optionally creating it (spec.md §4.1 find_dir).
func (d *State) FindDir(name string, createSubdirs bool) *State {
	if d.children == nil {
		d.children = map[string]*State{}
	}
	if child, ok := d.children[name]; ok {
		return child
	}
	if !createSubdirs {
		return nil
	}
	child := &State{Name: name, Depth: d.Depth + 1, Parent: d, children: map[string]*State{}}
	d.children[name] = child
	return child
}

// ChildNames returns the node's immediate child names in sorted order —
// the ordering contract spec.md §4.1 and §9 require for deterministic
// export and tests.
func (d *State) ChildNames() []string {
	names := make([]string, 0, len(d.children))
	for name := range d.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Child returns the named immediate child, or nil.
func (d *State) Child(name string) *State {
	return d.children[name]
}

// NumChildren reports the number of immediate children.
func (d *State) NumChildren() int {
	return len(d.children)
}

// FindPath tokenizes path into directory components and walks from d,
// creating missing components up to maxDepth when createSubdirs is set
// (spec.md §4.1 find_path). maxDepth <= 0 means unlimited. lastExisting,
// if non-nil, is set to the deepest node that pre-existed the call — the
// caller uses this to count newly-created parents toward
// NDirectoriesCreated.
func (d *State) FindPath(path string, maxDepth int, createSubdirs bool, lastExisting **State) *State {
	parts := tokenizePath(path)
	cur := d
	if lastExisting != nil {
		*lastExisting = d
	}
	for i, part := range parts {
		if maxDepth > 0 && cur.Depth+1 > maxDepth {
			break
		}
		next := cur.FindDir(part, false)
		if next == nil {
			if !createSubdirs {
				return nil
			}
			next = cur.FindDir(part, true)
		} else if lastExisting != nil {
			*lastExisting = next
		}
		cur = next
		_ = i
	}
	return cur
}

func tokenizePath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// UpwardPropagateStatsAndTimes is phase B of the three-phase roll-up
// (spec.md §4.5): bottom-up, SubdirStats becomes the sum over children of
// (child.HereStats + child.SubdirStats), and last-open/close times become
// the max across children. Leaves are untouched (their SubdirStats is
// already zero). Safe to call repeatedly between drains: a second call
// with no intervening events is a no-op (spec.md §8 idempotence).
func (d *State) UpwardPropagateStatsAndTimes() {
	var sum Stats
	for _, name := range d.ChildNames() {
		child := d.children[name]
		child.UpwardPropagateStatsAndTimes()
		merged := child.HereStats
		merged.Add(child.SubdirStats)
		sum.Add(merged)
	}
	d.SubdirStats = sum
}

// ApplyStatsToUsages is phase C of the three-phase roll-up (spec.md
// §4.5): here_usage absorbs here_stats and subdir_usage absorbs
// subdir_stats. The stats are left in place; ResetStats zeroes them
// afterwards. Must run after UpwardPropagateStatsAndTimes so SubdirStats
// is current.
func (d *State) ApplyStatsToUsages() {
	d.HereUsage.UpdateFrom(d.HereStats)
	d.SubdirUsage.UpdateFrom(d.SubdirStats)
	for _, name := range d.ChildNames() {
		d.children[name].ApplyStatsToUsages()
	}
}

// ResetStats zeroes HereStats and SubdirStats across the subtree rooted
// at d. Called after ApplyStatsToUsages to complete phase C (spec.md
// §4.5).
func (d *State) ResetStats() {
	d.HereStats.Reset()
	d.SubdirStats.Reset()
	for _, name := range d.ChildNames() {
		d.children[name].ResetStats()
	}
}

// CountDirsToLevel counts the nodes in the subtree rooted at d, bounded
// by maxDepth (0 means unlimited) — used to size a flat export (spec.md
// §4.1 count_dirs_to_level).
func (d *State) CountDirsToLevel(maxDepth int) int {
	if maxDepth > 0 && d.Depth > maxDepth {
		return 0
	}
	count := 1
	for _, name := range d.ChildNames() {
		count += d.children[name].CountDirsToLevel(maxDepth)
	}
	return count
}

// DumpRecursively renders a textual snapshot of the subtree rooted at d,
// one line per node, indented by depth (spec.md §4.1 dump_recursively).
func (d *State) DumpRecursively(maxDepth int) string {
	var b strings.Builder
	d.dump(maxDepth, &b)
	return b.String()
}

func (d *State) dump(maxDepth int, b *strings.Builder) {
	if maxDepth > 0 && d.Depth > maxDepth {
		return
	}
	fmt.Fprintf(b, "%s%s here=%+v subdir_usage=%+v\n", strings.Repeat("  ", d.Depth), d.Name, d.HereUsage, d.SubdirUsage)
	for _, name := range d.ChildNames() {
		d.children[name].dump(maxDepth, b)
	}
}

// FsState is the root of the tree plus the two bookkeeping timestamps
// spec.md §3 attaches to the whole DataFsState (usage_update_time,
// stats_reset_time).
type FsState struct {
	Root *State

	UsageUpdateTime int64
	StatsResetTime  int64
}

// NewFsState constructs an empty tree with a fresh root.
func NewFsState() *FsState {
	return &FsState{Root: NewRoot()}
}
