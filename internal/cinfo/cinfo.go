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

// Package cinfo reads (and, for tests, writes) the sidecar meta-file that
// accompanies every cached data file (spec.md §1, §6). The core never
// produces a cinfo file in production — the data-transfer engine does,
// out of scope here — but it needs a concrete reader to drive FPurgeState,
// and a Writer lets tests synthesize fixtures without a real downloader.
package cinfo

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

const magic uint32 = 0x70666369 // "icfp" little-endian, arbitrary but stable

const version uint16 = 1

// ChecksumState summarizes the per-block checksum bitmap spec.md §4.6
// classifies files against.
type ChecksumState struct {
	TotalBlocks   uint32
	MissingBlocks uint32
}

// HasMissingBits reports whether any block still lacks a verified
// checksum (spec.md §4.6 rule 2).
func (c ChecksumState) HasMissingBits() bool {
	return c.MissingBlocks > 0
}

// Info is the decoded content of a cinfo file.
type Info struct {
	// DownloadedBytes is the candidate size (spec.md §4.6 downloaded_bytes).
	DownloadedBytes int64

	// LatestDetachTime is the preferred access-time source (spec.md §4.6);
	// HasLatestDetachTime false means the caller must fall back to the
	// data file's mtime.
	LatestDetachTime    time.Time
	HasLatestDetachTime bool

	ChecksumState ChecksumState

	// NoChecksumTimeForUVKeep is the timestamp since which the file has
	// lacked a complete checksum, compared against cs_uv_keep (spec.md §4.6
	// rule 2, §6 no_checksum_time_for_uvkeep).
	NoChecksumTimeForUVKeep time.Time
}

// Reader decodes a cinfo file's binary layout.
type Reader struct{}

// Read parses r into an Info. A malformed or truncated file returns an
// error — the caller (FPurgeState) treats that as CinfoReadFailure
// (spec.md §7) and unlinks both the cinfo and its data peer.
func (Reader) Read(r io.Reader) (Info, error) {
	var hdr struct {
		Magic                   uint32
		Version                 uint16
		DownloadedBytes         int64
		HasLatestDetachTime     uint8
		LatestDetachTimeUnix    int64
		TotalBlocks             uint32
		MissingBlocks           uint32
		NoChecksumTimeForUVKeep int64
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return Info{}, fmt.Errorf("cinfo: read header: %w", err)
	}
	if hdr.Magic != magic {
		return Info{}, fmt.Errorf("cinfo: bad magic %#x", hdr.Magic)
	}
	if hdr.Version != version {
		return Info{}, fmt.Errorf("cinfo: unsupported version %d", hdr.Version)
	}
	if hdr.DownloadedBytes < 0 {
		return Info{}, fmt.Errorf("cinfo: negative downloaded_bytes %d", hdr.DownloadedBytes)
	}

	info := Info{
		DownloadedBytes:         hdr.DownloadedBytes,
		HasLatestDetachTime:     hdr.HasLatestDetachTime != 0,
		NoChecksumTimeForUVKeep: time.Unix(hdr.NoChecksumTimeForUVKeep, 0),
		ChecksumState: ChecksumState{
			TotalBlocks:   hdr.TotalBlocks,
			MissingBlocks: hdr.MissingBlocks,
		},
	}
	if info.HasLatestDetachTime {
		info.LatestDetachTime = time.Unix(hdr.LatestDetachTimeUnix, 0)
	}
	return info, nil
}

// Writer encodes an Info into the same binary layout Reader parses. Only
// used by tests to build fixtures in-process.
type Writer struct{}

func (Writer) Write(w io.Writer, info Info) error {
	hdr := struct {
		Magic                   uint32
		Version                 uint16
		DownloadedBytes         int64
		HasLatestDetachTime     uint8
		LatestDetachTimeUnix    int64
		TotalBlocks             uint32
		MissingBlocks           uint32
		NoChecksumTimeForUVKeep int64
	}{
		Magic:           magic,
		Version:         version,
		DownloadedBytes: info.DownloadedBytes,
		TotalBlocks:     info.ChecksumState.TotalBlocks,
		MissingBlocks:   info.ChecksumState.MissingBlocks,
	}
	if info.HasLatestDetachTime {
		hdr.HasLatestDetachTime = 1
		hdr.LatestDetachTimeUnix = info.LatestDetachTime.Unix()
	}
	if !info.NoChecksumTimeForUVKeep.IsZero() {
		hdr.NoChecksumTimeForUVKeep = info.NoChecksumTimeForUVKeep.Unix()
	}
	return binary.Write(w, binary.LittleEndian, hdr)
}
