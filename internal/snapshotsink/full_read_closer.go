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

package snapshotsink

import "io"

// fullReadCloser wraps an io.ReadCloser whose Read may return short reads
// well below EOF (as GCS object readers do under retry/resume), and
// guarantees each Read call fills the caller's buffer unless the
// underlying stream is actually exhausted first. Download returns
// io.ErrUnexpectedEOF in that case, matching io.ReadFull's contract.
//
// Used by Download, which reads an uploaded snapshot back into a full
// buffer in one call, without looping over partial reads.
type fullReadCloser struct {
	rc io.ReadCloser
}

func newFullReadCloser(rc io.ReadCloser) fullReadCloser {
	return fullReadCloser{rc: rc}
}

func (f fullReadCloser) Read(b []byte) (int, error) {
	return io.ReadFull(f.rc, b)
}

func (f fullReadCloser) Close() error {
	return f.rc.Close()
}

// Download reads back an uploaded object in full, for tests and offline
// verification tooling that want the whole body in one call.
func Download(rc io.ReadCloser, size int64) ([]byte, error) {
	buf := make([]byte, size)
	frc := newFullReadCloser(rc)
	n, err := frc.Read(buf)
	closeErr := frc.Close()
	if err != nil && err != io.EOF {
		return buf[:n], err
	}
	if closeErr != nil {
		return buf[:n], closeErr
	}
	return buf[:n], nil
}
