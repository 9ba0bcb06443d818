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

// Package purge implements FPurgeState (the candidate collector) and
// PurgeDriver (the orchestrator), spec.md §4.6 and §4.8.
package purge

import (
	"log/slog"
	"math"
	"sort"

	"github.com/googlecloudplatform/pfcached/internal/cinfo"
	"github.com/googlecloudplatform/pfcached/internal/dirstate"
	"github.com/googlecloudplatform/pfcached/internal/oss"
	"github.com/googlecloudplatform/pfcached/internal/traversal"
)

// Candidate is one purge candidate (spec.md §3 PurgeCandidate): the
// cinfo path, its data peer, a size, and an access time. AccessTime == 0
// marks a "doomed" candidate that sorts before every real timestamp and
// is removed unconditionally (spec.md §3, §4.6).
//
// The original source tracks size in 512-byte blocks; this rewrite
// keeps raw bytes throughout (cinfo, OSS and the driver all already deal
// in bytes) rather than reintroducing a block-count unit with no other
// consumer — see DESIGN.md.
type Candidate struct {
	CinfoPath  string
	DataPath   string
	SizeBytes  int64
	AccessTime int64
}

// FPurgeState walks a namespace rooted at some directory, reads each
// cinfo sidecar it finds, and classifies files into an unconditional
// removal list and a bounded, atime-sorted candidate map (spec.md §4.6).
type FPurgeState struct {
	oss         oss.OSS
	cinfoSuffix string
	reader      cinfo.Reader

	n             int64
	minTime       int64
	minUVKeepTime int64

	flist      []Candidate
	fmap       []Candidate // sorted ascending by AccessTime
	bytesAccum int64        // running total of sizes currently held in fmap

	logger *slog.Logger
}

// New constructs an FPurgeState. n is the target bytes to remove;
// minTime and minUVKeepTime are zero to disable the corresponding
// policy (spec.md §4.6 inputs).
func New(o oss.OSS, cinfoSuffix string, n, minTime, minUVKeepTime int64, logger *slog.Logger) *FPurgeState {
	if logger == nil {
		logger = slog.Default()
	}
	return &FPurgeState{oss: o, cinfoSuffix: cinfoSuffix, reader: cinfo.Reader{}, n: n, minTime: minTime, minUVKeepTime: minUVKeepTime, logger: logger}
}

// Walk performs the depth-first scan from path, classifying every
// cinfo-suffixed file it finds. A failure to open path is fatal to the
// caller (spec.md §7 TraversalRootUnavailable); subdirectory open
// failures are logged and skipped by the underlying traversal (spec.md
// §7 SubdirOpenFailure).
func (p *FPurgeState) Walk(root *dirstate.State, path string, protectedTopDirs []string) error {
	tr := traversal.New(p.oss, p.cinfoSuffix, protectedTopDirs, p.logger)
	if err := tr.BeginTraversal(root, path); err != nil {
		return err
	}
	defer tr.Close()
	return p.walkCurrent(tr)
}

func (p *FPurgeState) walkCurrent(tr *traversal.Traversal) error {
	for _, fc := range tr.Files {
		p.visitFile(tr, fc)
	}
	subdirs := append([]string(nil), tr.Subdirs...)
	for _, name := range subdirs {
		if !tr.CdDown(name) {
			continue
		}
		if err := p.walkCurrent(tr); err != nil {
			tr.CdUp()
			return err
		}
		if err := tr.CdUp(); err != nil {
			return err
		}
	}
	return nil
}

func (p *FPurgeState) visitFile(tr *traversal.Traversal, fc traversal.FileCandidate) {
	cinfoName := fc.Name + p.cinfoSuffix

	switch {
	case fc.HasCinfo && !fc.HasData:
		p.removeOrphan(tr, fc.Name, cinfoName, false, true)
	case !fc.HasCinfo && fc.HasData:
		p.removeOrphan(tr, fc.Name, cinfoName, true, false)
	case fc.HasCinfo && fc.HasData:
		p.classify(tr, fc, cinfoName)
	}
}

func (p *FPurgeState) classify(tr *traversal.Traversal, fc traversal.FileCandidate, cinfoName string) {
	rc, err := tr.OpenROAt(cinfoName)
	if err != nil {
		p.logger.Warn("purge: cinfo read failed, removing both files", "path", tr.CurrentPath(), "name", fc.Name, "err", err)
		p.removeOrphan(tr, fc.Name, cinfoName, true, true)
		return
	}
	info, err := p.reader.Read(rc)
	_ = rc.Close()
	if err != nil {
		p.logger.Warn("purge: cinfo decode failed, removing both files", "path", tr.CurrentPath(), "name", fc.Name, "err", err)
		p.removeOrphan(tr, fc.Name, cinfoName, true, true)
		return
	}

	atime := fc.StatData.ModTime.Unix()
	if info.HasLatestDetachTime {
		atime = info.LatestDetachTime.Unix()
	}

	cand := Candidate{
		CinfoPath:  tr.CurrentPath() + cinfoName,
		DataPath:   tr.CurrentPath() + fc.Name,
		SizeBytes:  info.DownloadedBytes,
		AccessTime: atime,
	}

	switch {
	case p.minTime > 0 && atime < p.minTime:
		cand.AccessTime = 0
		p.flist = append(p.flist, cand)
	case p.minUVKeepTime > 0 && info.ChecksumState.HasMissingBits() && info.NoChecksumTimeForUVKeep.Unix() < p.minUVKeepTime:
		cand.AccessTime = 0
		p.flist = append(p.flist, cand)
	default:
		maxKey := p.maxFmapKey()
		if p.bytesAccum < p.n || atime < maxKey {
			p.bytesAccum += cand.SizeBytes
			p.insertFmap(cand)
			p.evictOverBudget()
		}
	}
}

func (p *FPurgeState) removeOrphan(tr *traversal.Traversal, dataName, cinfoName string, hasData, hasCinfo bool) {
	if hasCinfo {
		if err := tr.UnlinkAt(cinfoName); err != nil {
			p.logger.Warn("purge: unlink cinfo failed", "path", tr.CurrentPath(), "name", cinfoName, "err", err)
		}
	}
	if hasData {
		if err := tr.UnlinkAt(dataName); err != nil {
			p.logger.Warn("purge: unlink data failed", "path", tr.CurrentPath(), "name", dataName, "err", err)
		}
	}
	p.logger.Warn("purge: consistency repair, orphan removed", "path", tr.CurrentPath(), "name", dataName)
}

// maxFmapKey returns the largest access time currently held in fmap. An
// empty map has no ceiling yet, so it reports +infinity: the first
// candidate seen is always admitted regardless of the budget check
// (spec.md §4.6 rule 3).
func (p *FPurgeState) maxFmapKey() int64 {
	if len(p.fmap) == 0 {
		return math.MaxInt64
	}
	return p.fmap[len(p.fmap)-1].AccessTime
}

func (p *FPurgeState) insertFmap(c Candidate) {
	idx := sort.Search(len(p.fmap), func(i int) bool { return p.fmap[i].AccessTime > c.AccessTime })
	p.fmap = append(p.fmap, Candidate{})
	copy(p.fmap[idx+1:], p.fmap[idx:])
	p.fmap[idx] = c
}

// evictOverBudget drops the newest (largest-time) fmap entries while
// the accumulated total still exceeds the target by at least one more
// entry's worth (spec.md §4.6 rule 3).
func (p *FPurgeState) evictOverBudget() {
	for len(p.fmap) > 0 {
		last := p.fmap[len(p.fmap)-1]
		if p.bytesAccum-last.SizeBytes >= p.n {
			p.fmap = p.fmap[:len(p.fmap)-1]
			p.bytesAccum -= last.SizeBytes
			continue
		}
		break
	}
}

// InsertUnconditional forces c into fmap with AccessTime reset to 0, so
// it sorts before every real-time entry and is removed first. PurgeDriver
// uses this to splice a quota-pin subtree's candidates into the main
// FPurgeState (spec.md §4.8 step 5).
func (p *FPurgeState) InsertUnconditional(c Candidate) {
	c.AccessTime = 0
	p.insertFmap(c)
	p.bytesAccum += c.SizeBytes
}

// MoveListEntriesToMap promotes every flist entry (already time 0) into
// fmap, where they sort before all real-time candidates and so are
// always deleted first (spec.md §4.6 move_list_entries_to_map).
func (p *FPurgeState) MoveListEntriesToMap() {
	for _, c := range p.flist {
		p.insertFmap(c)
		p.bytesAccum += c.SizeBytes
	}
	p.flist = nil
}

// Candidates returns the current fmap contents in ascending access-time
// order (doomed, zero-time entries first).
func (p *FPurgeState) Candidates() []Candidate {
	out := make([]Candidate, len(p.fmap))
	copy(out, p.fmap)
	return out
}

// DoomedCount returns the number of entries still pending in flist
// (before MoveListEntriesToMap is called).
func (p *FPurgeState) DoomedCount() int { return len(p.flist) }

// BytesAccum is the running total of bytes currently held in fmap
// (spec.md §4.6 bytes_accum); exposed for invariant tests (spec.md §8
// invariant 4).
func (p *FPurgeState) BytesAccum() int64 { return p.bytesAccum }
