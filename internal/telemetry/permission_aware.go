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
	"sync/atomic"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// permissionAwareExporter wraps a push-style OTel metric.Exporter and
// permanently stops exporting the first time a PermissionDenied error
// comes back, instead of retrying forever against a backend the process
// isn't authorized to reach. Any other export error is returned as-is so
// the SDK's own retry/backoff behavior still applies.
//
// Not wired into NewPrometheusBridge — the shipped telemetry path is the
// pull-based Prometheus exporter, which has no such failure mode. Kept
// for an optional push exporter (e.g. a managed metrics backend) that
// would otherwise spam logs with permission errors every export
// interval; see DESIGN.md.
type permissionAwareExporter struct {
	metric.Exporter
	disabled atomic.Bool
}

// newPermissionAwareExporter wraps exp.
func newPermissionAwareExporter(exp metric.Exporter) *permissionAwareExporter {
	return &permissionAwareExporter{Exporter: exp}
}

func (e *permissionAwareExporter) Export(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	if e.disabled.Load() {
		return nil
	}
	err := e.Exporter.Export(ctx, rm)
	if status.Code(err) == codes.PermissionDenied {
		e.disabled.Store(true)
	}
	return err
}
