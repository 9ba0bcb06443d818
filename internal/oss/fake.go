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
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"
	"sync"
	"time"
)

// Fake is an in-memory OSS used by unit tests for FsTraversal, FPurgeState
// and PurgeDriver — no real filesystem required.
type Fake struct {
	mu    sync.Mutex
	space SpaceInfo
	root  *fakeNode
}

type fakeNode struct {
	name     string
	isDir    bool
	content  []byte
	modTime  time.Time
	children map[string]*fakeNode
}

func NewFake() *Fake {
	return &Fake{root: &fakeNode{name: "", isDir: true, children: map[string]*fakeNode{}}}
}

func (f *Fake) SetSpace(total, free int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.space = SpaceInfo{TotalBytes: total, FreeBytes: free}
}

// PutFile creates (or overwrites) the file at absolute path p with the
// given content and modification time, creating parent directories as
// needed.
func (f *Fake) PutFile(p string, content []byte, modTime time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dir, name := path.Split(path.Clean(p))
	parent := f.mkdirAll(dir)
	parent.children[name] = &fakeNode{name: name, content: content, modTime: modTime}
}

func (f *Fake) MkdirAll(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mkdirAll(p)
}

func (f *Fake) mkdirAll(p string) *fakeNode {
	node := f.root
	p = path.Clean(p)
	if p == "." || p == "/" {
		return node
	}
	for _, part := range splitPath(p) {
		child, ok := node.children[part]
		if !ok || !child.isDir {
			child = &fakeNode{name: part, isDir: true, children: map[string]*fakeNode{}}
			node.children[part] = child
		}
		node = child
	}
	return node
}

func splitPath(p string) []string {
	p = path.Clean(p)
	if p == "." || p == "/" || p == "" {
		return nil
	}
	var parts []string
	for _, part := range filepathSplit(p) {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func filepathSplit(p string) []string {
	var out []string
	cur := ""
	for _, r := range p {
		if r == '/' {
			out = append(out, cur)
			cur = ""
			continue
		}
		cur += string(r)
	}
	out = append(out, cur)
	return out
}

func (f *Fake) lookup(p string) (*fakeNode, bool) {
	node := f.root
	for _, part := range splitPath(p) {
		child, ok := node.children[part]
		if !ok {
			return nil, false
		}
		node = child
	}
	return node, true
}

func (f *Fake) StatVS(spaceName string) (SpaceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.space, nil
}

func (f *Fake) Stat(p string) (EntryInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	node, ok := f.lookup(p)
	if !ok {
		return EntryInfo{}, fmt.Errorf("oss/fake: no such path %s", p)
	}
	return EntryInfo{Size: int64(len(node.content)), ModTime: node.modTime, IsDir: node.isDir}, nil
}

func (f *Fake) Unlink(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	dir, name := path.Split(path.Clean(p))
	parent, ok := f.lookup(dir)
	if !ok {
		return fmt.Errorf("oss/fake: no such directory %s", dir)
	}
	if _, ok := parent.children[name]; !ok {
		return fmt.Errorf("oss/fake: no such file %s", p)
	}
	delete(parent.children, name)
	return nil
}

func (f *Fake) OpenDir(p string) (Dir, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	node, ok := f.lookup(p)
	if !ok || !node.isDir {
		return nil, fmt.Errorf("oss/fake: no such directory %s", p)
	}
	return &fakeDir{fake: f, node: node, path: path.Clean(p)}, nil
}

type fakeDir struct {
	fake *Fake
	node *fakeNode
	path string
}

func (d *fakeDir) Path() string { return d.path }

func (d *fakeDir) ReadDir() ([]DirEntry, error) {
	d.fake.mu.Lock()
	defer d.fake.mu.Unlock()
	names := make([]string, 0, len(d.node.children))
	for name := range d.node.children {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]DirEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, DirEntry{Name: name, IsDir: d.node.children[name].isDir})
	}
	return entries, nil
}

func (d *fakeDir) OpenDirAt(name string) (Dir, error) {
	d.fake.mu.Lock()
	child, ok := d.node.children[name]
	d.fake.mu.Unlock()
	if !ok || !child.isDir {
		return nil, fmt.Errorf("oss/fake: no such directory %s/%s", d.path, name)
	}
	return &fakeDir{fake: d.fake, node: child, path: path.Join(d.path, name)}, nil
}

func (d *fakeDir) OpenROAt(name string) (ReadSeekCloser, error) {
	d.fake.mu.Lock()
	child, ok := d.node.children[name]
	d.fake.mu.Unlock()
	if !ok || child.isDir {
		return nil, fmt.Errorf("oss/fake: no such file %s/%s", d.path, name)
	}
	return &fakeReadSeekCloser{Reader: bytes.NewReader(child.content)}, nil
}

func (d *fakeDir) StatAt(name string) (EntryInfo, error) {
	d.fake.mu.Lock()
	child, ok := d.node.children[name]
	d.fake.mu.Unlock()
	if !ok {
		return EntryInfo{}, fmt.Errorf("oss/fake: no such path %s/%s", d.path, name)
	}
	return EntryInfo{Size: int64(len(child.content)), ModTime: child.modTime, IsDir: child.isDir}, nil
}

func (d *fakeDir) UnlinkAt(name string) error {
	d.fake.mu.Lock()
	defer d.fake.mu.Unlock()
	if _, ok := d.node.children[name]; !ok {
		return fmt.Errorf("oss/fake: no such path %s/%s", d.path, name)
	}
	delete(d.node.children, name)
	return nil
}

func (d *fakeDir) Close() error { return nil }

type fakeReadSeekCloser struct {
	*bytes.Reader
}

func (f *fakeReadSeekCloser) Close() error { return nil }

var _ io.ReadSeekCloser = (*fakeReadSeekCloser)(nil)
