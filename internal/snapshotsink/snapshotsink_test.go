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

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/fsouza/fake-gcs-server/fakestorage"
	"github.com/stretchr/testify/require"

	"github.com/googlecloudplatform/pfcached/internal/dirstate"
)

func TestSink_Upload_RoundTrips(t *testing.T) {
	server, err := fakestorage.NewServerWithOptions(fakestorage.Options{
		InitialObjects: nil,
		StorageRoot:    t.TempDir(),
	})
	require.NoError(t, err)
	defer server.Stop()
	require.NoError(t, server.Client().Bucket("snaps").Create(context.Background(), "proj", nil))

	sink := New(server.Client(), "snaps", "dirstate")
	snap := dirstate.Snapshot{
		UsageUpdateTime: 100,
		StatsResetTime:  50,
		DirStates: []dirstate.Element{
			{Name: "/", Parent: -1, DaughtersBegin: -1, DaughtersEnd: -1},
		},
	}

	name, err := sink.Upload(context.Background(), snap)
	require.NoError(t, err)
	require.NotEmpty(t, name)

	rc, err := server.Client().Bucket("snaps").Object(name).NewReader(context.Background())
	require.NoError(t, err)
	defer rc.Close()

	var got dirstate.Snapshot
	require.NoError(t, json.NewDecoder(rc).Decode(&got))
	require.Equal(t, snap, got)
}
