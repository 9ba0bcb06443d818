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

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/googlecloudplatform/pfcached/cfg"
)

func TestNewPrometheusBridge_Disabled_ReturnsNoopHandle(t *testing.T) {
	b, err := NewPrometheusBridge(cfg.MetricsConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, b.Handler)
	require.NotNil(t, b.Handle)

	// A noop handle must not panic on any call.
	ctx := context.Background()
	b.Handle.BytesRemoved(ctx, 10, TriggerDisk)
	b.Handle.PurgeCycle(ctx, true)
}

func TestNewPrometheusBridge_Enabled_ServesHandler(t *testing.T) {
	b, err := NewPrometheusBridge(cfg.MetricsConfig{Enabled: true})
	require.NoError(t, err)
	require.NotNil(t, b.Handler)
	require.NotNil(t, b.Provider)

	ctx := context.Background()
	b.Handle.BytesRemoved(ctx, 500, TriggerDisk)
	b.Handle.FilesRemoved(ctx, 1, TriggerDisk)
	b.Handle.BytesProtected(ctx, 0)
	b.Handle.PurgeCycle(ctx, false)
	b.Handle.SetDiskUsedBytes(12345)

	require.NoError(t, b.Shutdown(ctx))
}
