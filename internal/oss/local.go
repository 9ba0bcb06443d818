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

package oss

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// Local implements OSS against a real on-disk namespace, using *at(2)
// syscalls for the relative operations so a concurrently renamed parent
// directory can't race a traversal onto the wrong subtree.
type Local struct{}

func NewLocal() *Local { return &Local{} }

func (Local) StatVS(spaceName string) (SpaceInfo, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(spaceName, &st); err != nil {
		return SpaceInfo{}, fmt.Errorf("statfs %s: %w", spaceName, err)
	}
	bsize := uint64(st.Bsize)
	return SpaceInfo{
		TotalBytes: int64(st.Blocks * bsize),
		FreeBytes:  int64(st.Bavail * bsize),
	}, nil
}

func (Local) Stat(path string) (EntryInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return EntryInfo{}, err
	}
	return toEntryInfo(fi), nil
}

func (Local) Unlink(path string) error {
	return os.Remove(path)
}

func (Local) OpenDir(path string) (Dir, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		return nil, fmt.Errorf("open_dir %s: %w", path, err)
	}
	return &localDir{fd: fd, path: path}, nil
}

type localDir struct {
	fd   int
	path string
}

func (d *localDir) Path() string { return d.path }

func (d *localDir) ReadDir() ([]DirEntry, error) {
	// os.NewFile+Readdir wants exclusive ownership of the fd for its
	// internal buffering; dup it so the handle used for *at operations
	// stays valid afterwards.
	dupFd, err := unix.Dup(d.fd)
	if err != nil {
		return nil, fmt.Errorf("dup %s: %w", d.path, err)
	}
	f := os.NewFile(uintptr(dupFd), d.path)
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, fmt.Errorf("readdir %s: %w", d.path, err)
	}

	entries := make([]DirEntry, 0, len(names))
	for _, name := range names {
		info, statErr := d.StatAt(name)
		if statErr != nil {
			continue
		}
		entries = append(entries, DirEntry{Name: name, IsDir: info.IsDir})
	}
	return entries, nil
}

func (d *localDir) OpenDirAt(name string) (Dir, error) {
	fd, err := unix.Openat(d.fd, name, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		return nil, fmt.Errorf("open_dir_at %s/%s: %w", d.path, name, err)
	}
	return &localDir{fd: fd, path: filepath.Join(d.path, name)}, nil
}

func (d *localDir) OpenROAt(name string) (ReadSeekCloser, error) {
	fd, err := unix.Openat(d.fd, name, unix.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open_ro_at %s/%s: %w", d.path, name, err)
	}
	return os.NewFile(uintptr(fd), filepath.Join(d.path, name)), nil
}

func (d *localDir) StatAt(name string) (EntryInfo, error) {
	var st unix.Stat_t
	if err := unix.Fstatat(d.fd, name, &st, 0); err != nil {
		return EntryInfo{}, fmt.Errorf("stat_at %s/%s: %w", d.path, name, err)
	}
	return EntryInfo{
		Size:    st.Size,
		ModTime: time.Unix(int64(st.Mtim.Sec), int64(st.Mtim.Nsec)),
		IsDir:   st.Mode&unix.S_IFMT == unix.S_IFDIR,
	}, nil
}

func (d *localDir) UnlinkAt(name string) error {
	if err := unix.Unlinkat(d.fd, name, 0); err != nil {
		return fmt.Errorf("unlink_at %s/%s: %w", d.path, name, err)
	}
	return nil
}

func (d *localDir) Close() error {
	return unix.Close(d.fd)
}

func toEntryInfo(fi os.FileInfo) EntryInfo {
	return EntryInfo{
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
		IsDir:   fi.IsDir(),
	}
}
