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

// Package traversal implements FsTraversal, a stateful depth-first
// walker over an OSS namespace (spec.md §4.2). It is the shared engine
// behind both the resource monitor's periodic rescans and FPurgeState's
// candidate collection.
package traversal

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/googlecloudplatform/pfcached/internal/dirstate"
	"github.com/googlecloudplatform/pfcached/internal/oss"
)

// Phase is one of the FsTraversal states (spec.md §4.2).
type Phase int

const (
	Idle Phase = iota
	Open
	Scanning
	Closed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Open:
		return "open"
	case Scanning:
		return "scanning"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// FileCandidate groups a data file with its optional cinfo sidecar under
// one logical name (spec.md §4.2: "files (with has_data, has_cinfo,
// stat_data, stat_cinfo)").
type FileCandidate struct {
	Name      string
	HasData   bool
	HasCinfo  bool
	StatData  oss.EntryInfo
	StatCinfo oss.EntryInfo
}

// Traversal is a single depth-first walk in progress.
type Traversal struct {
	oss          oss.OSS
	cinfoSuffix  string
	protectedTop map[string]bool

	phase Phase

	stack       []oss.Dir
	current     oss.Dir
	currentPath string

	rootDirState *dirstate.State
	currentDir   *dirstate.State

	Files   []FileCandidate
	Subdirs []string

	logger *slog.Logger
}

// New constructs a traversal engine. protectedTopDirs names children of
// the traversal root that must never be descended into or considered as
// candidates (spec.md §4.2 m_protected_top_dirs — e.g. the stats-export
// directory).
func New(o oss.OSS, cinfoSuffix string, protectedTopDirs []string, logger *slog.Logger) *Traversal {
	protected := make(map[string]bool, len(protectedTopDirs))
	for _, name := range protectedTopDirs {
		protected[name] = true
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Traversal{oss: o, cinfoSuffix: cinfoSuffix, protectedTop: protected, phase: Idle, logger: logger}
}

// Phase reports the current state-machine phase.
func (t *Traversal) Phase() Phase { return t.phase }

// CurrentPath is the absolute path of the directory currently open,
// with a trailing slash (spec.md §4.2).
func (t *Traversal) CurrentPath() string { return t.currentPath }

// BeginTraversal opens path via OSS and lists its entries, classifying
// them into Files and Subdirs (spec.md §4.2 begin_traversal). rootState
// is the DirState node corresponding to path; it becomes the anchor
// cd_down/cd_up walk relative to. A failure to open path is fatal to the
// caller (spec.md §4.2, §7 TraversalRootUnavailable) and returned as an
// error.
func (t *Traversal) BeginTraversal(rootState *dirstate.State, path string) error {
	d, err := t.oss.OpenDir(path)
	if err != nil {
		t.phase = Closed
		return fmt.Errorf("traversal: open root %s: %w", path, err)
	}
	t.phase = Open
	t.current = d
	t.currentPath = withTrailingSlash(path)
	t.rootDirState = rootState
	t.currentDir = rootState
	t.stack = nil

	return t.scan(true)
}

// scan lists the current directory's entries and populates Files and
// Subdirs, skipping protected top-level names when atRoot is set.
func (t *Traversal) scan(atRoot bool) error {
	t.phase = Scanning
	entries, err := t.current.ReadDir()
	if err != nil {
		return fmt.Errorf("traversal: readdir %s: %w", t.currentPath, err)
	}

	files := map[string]*FileCandidate{}
	t.Subdirs = t.Subdirs[:0]
	for _, e := range entries {
		if atRoot && t.protectedTop[e.Name] {
			continue
		}
		if e.IsDir {
			t.Subdirs = append(t.Subdirs, e.Name)
			continue
		}

		logicalName := e.Name
		isCinfo := strings.HasSuffix(e.Name, t.cinfoSuffix)
		if isCinfo {
			logicalName = strings.TrimSuffix(e.Name, t.cinfoSuffix)
		}
		fc, ok := files[logicalName]
		if !ok {
			fc = &FileCandidate{Name: logicalName}
			files[logicalName] = fc
		}

		info, statErr := t.current.StatAt(e.Name)
		if statErr != nil {
			t.logger.Warn("traversal: stat_at failed, skipping entry", "path", t.currentPath, "name", e.Name, "err", statErr)
			continue
		}
		if isCinfo {
			fc.HasCinfo = true
			fc.StatCinfo = info
		} else {
			fc.HasData = true
			fc.StatData = info
		}
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	t.Files = t.Files[:0]
	for _, name := range names {
		t.Files = append(t.Files, *files[name])
	}
	return nil
}

// CdDown opens the subdirectory name relative to the currently open
// directory, pushing the old handle so CdUp can return to it. A failure
// to open is logged and skipped, per spec.md §4.2 / §7
// SubdirOpenFailure: the subtree is simply not descended into, and the
// caller need not (must not) call CdUp to recover.
func (t *Traversal) CdDown(name string) bool {
	next, err := t.current.OpenDirAt(name)
	if err != nil {
		t.logger.Warn("traversal: subdir open failed, skipping subtree", "path", t.currentPath, "name", name, "err", err)
		return false
	}

	t.stack = append(t.stack, t.current)
	t.current = next
	t.currentPath = withTrailingSlash(t.currentPath + name)
	if t.currentDir != nil {
		t.currentDir = t.currentDir.FindDir(name, true)
	}

	if err := t.scan(false); err != nil {
		t.logger.Warn("traversal: scan failed after cd_down, skipping subtree", "path", t.currentPath, "err", err)
		t.CdUp()
		return false
	}
	return true
}

// CdUp releases the current handle and returns to the parent directory
// opened before the matching CdDown.
func (t *Traversal) CdUp() error {
	if len(t.stack) == 0 {
		return fmt.Errorf("traversal: cd_up with empty stack")
	}
	if err := t.current.Close(); err != nil {
		t.logger.Warn("traversal: close failed", "path", t.currentPath, "err", err)
	}

	t.current = t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	t.currentPath = withTrailingSlash(t.current.Path())
	if t.currentDir != nil && t.currentDir.Parent != nil {
		t.currentDir = t.currentDir.Parent
	}
	return nil
}

// UnlinkAt removes name relative to the currently open directory
// (spec.md §4.2 unlink_at).
func (t *Traversal) UnlinkAt(name string) error {
	return t.current.UnlinkAt(name)
}

// OpenROAt opens name read-only relative to the currently open
// directory — used by FPurgeState to read a cinfo sidecar in place
// during the walk.
func (t *Traversal) OpenROAt(name string) (oss.ReadSeekCloser, error) {
	return t.current.OpenROAt(name)
}

// CurrentDirState is the DirState node corresponding to the directory
// currently open, or nil if the traversal was constructed without a
// root DirState.
func (t *Traversal) CurrentDirState() *dirstate.State { return t.currentDir }

// Close releases every handle still open, from the deepest outward.
func (t *Traversal) Close() error {
	var firstErr error
	if t.current != nil {
		if err := t.current.Close(); err != nil {
			firstErr = err
		}
	}
	for i := len(t.stack) - 1; i >= 0; i-- {
		if err := t.stack[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	t.stack = nil
	t.current = nil
	t.phase = Closed
	return firstErr
}

func withTrailingSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}
