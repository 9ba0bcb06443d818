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
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
)

// Element is one flattened tree node (spec.md §4.9, §6 dir_states[]).
// Field names and JSON tags match the wire layout spec.md §6 specifies
// verbatim so a snapshot written by this core can be consumed by
// whatever offline analysis tooling expects the original field names.
type Element struct {
	Name            string `json:"m_dir_name"`
	HereStats       Stats  `json:"m_here_stats"`
	SubdirStats     Stats  `json:"m_recursive_subdir_stats"`
	HereUsage       Usage  `json:"m_here_usage"`
	SubdirUsage     Usage  `json:"m_recursive_subdir_usage"`
	Parent          int    `json:"m_parent"`
	DaughtersBegin  int    `json:"m_daughters_begin"`
	DaughtersEnd    int    `json:"m_daughters_end"`
}

// Snapshot is the flattened export of an FsState (spec.md §4.9).
type Snapshot struct {
	UsageUpdateTime int64     `json:"usage_update_time"`
	StatsResetTime  int64     `json:"stats_reset_time"`
	DirStates       []Element `json:"dir_states"`
}

// Flatten walks fs depth-first and produces a Snapshot: entry 0 is
// always the root with Parent == -1; leaves have DaughtersBegin ==
// DaughtersEnd == -1 (spec.md §6). maxDepth <= 0 means unlimited.
func Flatten(fs *FsState, maxDepth int) Snapshot {
	elems := make([]Element, 0, fs.Root.CountDirsToLevel(maxDepth))
	elems = append(elems, elementOf(fs.Root, -1))
	appendChildren(fs.Root, 0, maxDepth, &elems)
	return Snapshot{
		UsageUpdateTime: fs.UsageUpdateTime,
		StatsResetTime:  fs.StatsResetTime,
		DirStates:       elems,
	}
}

func elementOf(n *State, parent int) Element {
	return Element{
		Name:           n.Name,
		HereStats:      n.HereStats,
		SubdirStats:    n.SubdirStats,
		HereUsage:      n.HereUsage,
		SubdirUsage:    n.SubdirUsage,
		Parent:         parent,
		DaughtersBegin: -1,
		DaughtersEnd:   -1,
	}
}

func appendChildren(node *State, idx int, maxDepth int, elems *[]Element) {
	if maxDepth > 0 && node.Depth+1 > maxDepth {
		return
	}
	names := node.ChildNames()
	if len(names) == 0 {
		return
	}

	begin := len(*elems)
	for i, name := range names {
		*elems = append(*elems, elementOf(node.Child(name), idx))
		_ = i
	}
	end := len(*elems)
	(*elems)[idx].DaughtersBegin = begin
	(*elems)[idx].DaughtersEnd = end

	for i, name := range names {
		appendChildren(node.Child(name), begin+i, maxDepth, elems)
	}
}

// Import rebuilds an FsState from a Snapshot produced by Flatten. The
// result is logically equivalent to the original tree: same names,
// counters, and parent/child links (spec.md §8 round-trip property).
func Import(snap Snapshot) (*FsState, error) {
	fs := &FsState{UsageUpdateTime: snap.UsageUpdateTime, StatsResetTime: snap.StatsResetTime}
	if len(snap.DirStates) == 0 {
		fs.Root = NewRoot()
		return fs, nil
	}

	nodes := make([]*State, len(snap.DirStates))
	for i, e := range snap.DirStates {
		nodes[i] = &State{
			Name:        e.Name,
			HereStats:   e.HereStats,
			SubdirStats: e.SubdirStats,
			HereUsage:   e.HereUsage,
			SubdirUsage: e.SubdirUsage,
			children:    map[string]*State{},
		}
	}
	for i, e := range snap.DirStates {
		if e.Parent < 0 {
			continue
		}
		if e.Parent >= len(nodes) {
			return nil, fmt.Errorf("dirstate: element %d has out-of-range parent %d", i, e.Parent)
		}
		parent := nodes[e.Parent]
		nodes[i].Parent = parent
		nodes[i].Depth = parent.Depth + 1
		parent.children[nodes[i].Name] = nodes[i]
	}
	fs.Root = nodes[0]
	return fs, nil
}

// ToJSON renders the snapshot with the field layout spec.md §6 defines.
func ToJSON(fs *FsState, maxDepth int) ([]byte, error) {
	snap := Flatten(fs, maxDepth)
	return json.Marshal(struct {
		Snapshot Snapshot `json:"dirstate_snapshot"`
	}{Snapshot: snap})
}

// FromJSON parses the wrapped `dirstate_snapshot` document ToJSON emits.
func FromJSON(data []byte) (*FsState, error) {
	var wrapper struct {
		Snapshot Snapshot `json:"dirstate_snapshot"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("dirstate: decode snapshot: %w", err)
	}
	return Import(wrapper.Snapshot)
}

// ToBinary dumps the snapshot with gob, for offline analysis tooling
// that prefers a compact binary form over JSON (spec.md §4.9).
func ToBinary(fs *FsState, maxDepth int) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(Flatten(fs, maxDepth)); err != nil {
		return nil, fmt.Errorf("dirstate: encode binary snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// FromBinary parses a ToBinary dump.
func FromBinary(data []byte) (*FsState, error) {
	var snap Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("dirstate: decode binary snapshot: %w", err)
	}
	return Import(snap)
}
