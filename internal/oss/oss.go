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

// Package oss defines the object-storage abstraction the resource monitor
// and purge core use to touch the cached namespace. Per spec.md §1, OSS is
// an external collaborator: the core consumes it purely via this interface,
// so that FsTraversal and PurgeDriver can be tested against a fake without
// a real filesystem, and so that a future backend (e.g. a networked
// namespace) can be swapped in without touching the core.
package oss

import "time"

// SpaceInfo is the result of StatVS — total and free space, in bytes, for
// the named "space" (spec.md §6 data_space_name).
type SpaceInfo struct {
	TotalBytes int64
	FreeBytes  int64
}

// EntryInfo is the result of Stat: enough to classify and size a cache
// entry without depending on os.FileInfo directly.
type EntryInfo struct {
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// DirEntry is one name yielded by Dir.ReadDir.
type DirEntry struct {
	Name  string
	IsDir bool
}

// OSS is the root of the object-storage abstraction: absolute-path
// operations plus a directory-handle factory for the relative operations
// FsTraversal uses while it walks.
type OSS interface {
	// StatVS reports total/free space for spaceName (spec.md §6 stat_vs).
	StatVS(spaceName string) (SpaceInfo, error)

	// OpenDir opens path for traversal (spec.md §6 open_dir).
	OpenDir(path string) (Dir, error)

	// Stat resolves an absolute path (spec.md §6 stat).
	Stat(path string) (EntryInfo, error)

	// Unlink removes an absolute path (spec.md §6 unlink).
	Unlink(path string) error
}

// Dir is an open directory handle, supporting the relative operations
// FsTraversal.cd_down/cd_up/unlink_at need (spec.md §4.2, §6).
type Dir interface {
	// Path is the absolute path this handle was opened on.
	Path() string

	// ReadDir lists the directory's immediate children (spec.md §6 readdir).
	ReadDir() ([]DirEntry, error)

	// OpenDirAt opens the subdirectory name, relative to this handle
	// (spec.md §6 open_dir_at).
	OpenDirAt(name string) (Dir, error)

	// OpenROAt opens name read-only, relative to this handle (spec.md §6
	// open_ro_at). Used by FPurgeState to read cinfo sidecars.
	OpenROAt(name string) (ReadSeekCloser, error)

	// StatAt stats name, relative to this handle, without following a
	// full-path lookup race.
	StatAt(name string) (EntryInfo, error)

	// UnlinkAt removes name, relative to this handle (spec.md §6
	// unlink_at).
	UnlinkAt(name string) error

	// Close releases the handle (spec.md §6 close_dir).
	Close() error
}

// ReadSeekCloser is the minimal interface FPurgeState needs to parse a
// cinfo sidecar file.
type ReadSeekCloser interface {
	Read(p []byte) (int, error)
	Seek(offset int64, whence int) (int64, error)
	Close() error
}
