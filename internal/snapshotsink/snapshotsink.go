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

// Package snapshotsink optionally mirrors DirStateSnapshot dumps to a GCS
// bucket for offline analysis (spec.md §4.9), using
// cfg.DirStatsCacheConfig.SnapshotDir as the object-name prefix. No local
// on-disk copy of a snapshot is kept.
package snapshotsink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/googlecloudplatform/pfcached/internal/dirstate"
)

// Sink uploads flattened snapshots to a GCS bucket. The zero value is not
// usable; construct with New.
type Sink struct {
	bucket *storage.BucketHandle
	prefix string
}

// New returns a Sink that writes objects under prefix in bucketName. It
// does not verify the bucket exists; the first Upload call surfaces any
// permission or not-found error.
func New(client *storage.Client, bucketName, prefix string) *Sink {
	return &Sink{bucket: client.Bucket(bucketName), prefix: prefix}
}

// Upload JSON-encodes snap and writes it to a freshly named object
// (prefix/<unix-nano>-<uuid>.json), so concurrent or repeated uploads never
// collide and a directory listing sorts newest-last.
func (s *Sink) Upload(ctx context.Context, snap dirstate.Snapshot) (string, error) {
	name := fmt.Sprintf("%s/%d-%s.json", s.prefix, time.Now().UnixNano(), uuid.NewString())

	w := s.bucket.Object(name).NewWriter(ctx)
	w.ContentType = "application/json"

	enc := json.NewEncoder(w)
	if err := enc.Encode(snap); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("snapshotsink: encode: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("snapshotsink: upload %s: %w", name, err)
	}
	return name, nil
}
