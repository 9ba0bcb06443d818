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

// Package telemetry exports the cache core's own counters and gauges
// through an OTel MeterProvider bridged to Prometheus (SPEC_FULL.md
// domain-stack additions), mirroring the teacher's otel_metrics.go.
package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Trigger names the reason a purge cycle ran, used as a metric attribute
// (mirrors the teacher's IOMethodKey/ReadTypeKey-style low-cardinality
// attribute keys in common/otel_metrics.go).
type Trigger string

const (
	TriggerDisk      Trigger = "disk"
	TriggerFileUsage Trigger = "file_usage"
	TriggerAgeBased  Trigger = "age_based"
	TriggerQuotaPin  Trigger = "quota_pin"
)

const triggerKey = "purge_trigger"

// Handle is the set of measurements the monitor/purge core reports.
// Mirrors the teacher's MetricHandle split into narrow per-domain
// interfaces (common/telemetry.go).
type Handle interface {
	BytesRemoved(ctx context.Context, inc int64, trigger Trigger)
	FilesRemoved(ctx context.Context, inc int64, trigger Trigger)
	BytesProtected(ctx context.Context, inc int64)
	PurgeCycle(ctx context.Context, skipped bool)
	HeartbeatLatency(ctx context.Context, d time.Duration)
	StatsPropagationLatency(ctx context.Context, d time.Duration)
	SetDiskUsedBytes(v int64)
	SetFileUsageEstimateBytes(v int64)
}

var (
	purgeMeter   = otel.Meter("purge")
	monitorMeter = otel.Meter("monitor")

	triggerAttrSets sync.Map
)

func getTriggerAttributeSet(t Trigger) metric.MeasurementOption {
	if v, ok := triggerAttrSets.Load(t); ok {
		return v.(metric.MeasurementOption)
	}
	opt := metric.WithAttributeSet(attribute.NewSet(attribute.String(triggerKey, string(t))))
	v, _ := triggerAttrSets.LoadOrStore(t, opt)
	return v.(metric.MeasurementOption)
}

// otelHandle is the real, OTel-backed Handle implementation.
type otelHandle struct {
	bytesRemoved   metric.Int64Counter
	filesRemoved   metric.Int64Counter
	bytesProtected metric.Int64Counter
	purgeCycles    metric.Int64Counter
	purgeSkipped   metric.Int64Counter

	heartbeatLatency  metric.Float64Histogram
	propagateLatency  metric.Float64Histogram

	diskUsedBytes       atomic.Int64
	fileUsageEstimate   atomic.Int64
}

func (h *otelHandle) BytesRemoved(ctx context.Context, inc int64, trigger Trigger) {
	h.bytesRemoved.Add(ctx, inc, getTriggerAttributeSet(trigger))
}

func (h *otelHandle) FilesRemoved(ctx context.Context, inc int64, trigger Trigger) {
	h.filesRemoved.Add(ctx, inc, getTriggerAttributeSet(trigger))
}

func (h *otelHandle) BytesProtected(ctx context.Context, inc int64) {
	h.bytesProtected.Add(ctx, inc)
}

func (h *otelHandle) PurgeCycle(ctx context.Context, skipped bool) {
	if skipped {
		h.purgeSkipped.Add(ctx, 1)
		return
	}
	h.purgeCycles.Add(ctx, 1)
}

func (h *otelHandle) HeartbeatLatency(ctx context.Context, d time.Duration) {
	h.heartbeatLatency.Record(ctx, float64(d.Microseconds()))
}

func (h *otelHandle) StatsPropagationLatency(ctx context.Context, d time.Duration) {
	h.propagateLatency.Record(ctx, float64(d.Microseconds()))
}

func (h *otelHandle) SetDiskUsedBytes(v int64)         { h.diskUsedBytes.Store(v) }
func (h *otelHandle) SetFileUsageEstimateBytes(v int64) { h.fileUsageEstimate.Store(v) }

// defaultLatencyDistribution mirrors the teacher's bucket boundaries
// (common/telemetry.go), reused verbatim since heartbeat/propagation
// latencies live in the same microsecond-to-second range as fs op latency.
var defaultLatencyDistribution = metric.WithExplicitBucketBoundaries(
	1, 2, 3, 4, 5, 6, 8, 10, 13, 16, 20, 25, 30, 40, 50, 65, 80, 100,
	130, 160, 200, 250, 300, 400, 500, 650, 800, 1000, 2000, 5000, 10000,
	20000, 50000, 100000)

// NewOTelHandle builds the real metric instruments against the global
// MeterProvider installed by NewPrometheusBridge.
func NewOTelHandle() (Handle, error) {
	bytesRemoved, err1 := purgeMeter.Int64Counter("purge/bytes_removed_count",
		metric.WithDescription("Cumulative bytes removed by the purge driver."), metric.WithUnit("By"))
	filesRemoved, err2 := purgeMeter.Int64Counter("purge/files_removed_count",
		metric.WithDescription("Cumulative files removed by the purge driver."))
	bytesProtected, err3 := purgeMeter.Int64Counter("purge/bytes_protected_count",
		metric.WithDescription("Cumulative bytes skipped because the file was active/protected."), metric.WithUnit("By"))
	purgeCycles, err4 := purgeMeter.Int64Counter("purge/cycles_count",
		metric.WithDescription("Cumulative purge cycles that performed a traversal."))
	purgeSkipped, err5 := purgeMeter.Int64Counter("purge/cycles_skipped_count",
		metric.WithDescription("Cumulative purge cycles that found nothing to do."))

	heartbeatLatency, err6 := monitorMeter.Float64Histogram("monitor/heartbeat_latency",
		metric.WithDescription("Distribution of heartbeat processing latency."), metric.WithUnit("us"), defaultLatencyDistribution)
	propagateLatency, err7 := monitorMeter.Float64Histogram("monitor/stats_propagation_latency",
		metric.WithDescription("Distribution of three-phase stats roll-up latency."), metric.WithUnit("us"), defaultLatencyDistribution)

	h := &otelHandle{
		bytesRemoved:     bytesRemoved,
		filesRemoved:     filesRemoved,
		bytesProtected:   bytesProtected,
		purgeCycles:      purgeCycles,
		purgeSkipped:     purgeSkipped,
		heartbeatLatency: heartbeatLatency,
		propagateLatency: propagateLatency,
	}

	if _, err := monitorMeter.Int64ObservableGauge("monitor/disk_used_bytes",
		metric.WithDescription("Most recently observed disk-used bytes for the cached namespace's data space."),
		metric.WithUnit("By"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(h.diskUsedBytes.Load())
			return nil
		})); err != nil {
		return nil, err
	}
	if _, err := monitorMeter.Int64ObservableGauge("monitor/file_usage_estimate_bytes",
		metric.WithDescription("Most recently computed file-usage estimate (spec.md §4.8 step 2)."),
		metric.WithUnit("By"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(h.fileUsageEstimate.Load())
			return nil
		})); err != nil {
		return nil, err
	}

	for _, err := range []error{err1, err2, err3, err4, err5, err6, err7} {
		if err != nil {
			return nil, err
		}
	}
	return h, nil
}

// noopHandle discards every measurement — used when metrics are disabled
// (cfg.MetricsConfig.Enabled == false), mirroring the teacher's
// common/noop_metrics.go.
type noopHandle struct{}

// NewNoopHandle constructs a Handle that drops every measurement.
func NewNoopHandle() Handle { return noopHandle{} }

func (noopHandle) BytesRemoved(context.Context, int64, Trigger)     {}
func (noopHandle) FilesRemoved(context.Context, int64, Trigger)     {}
func (noopHandle) BytesProtected(context.Context, int64)            {}
func (noopHandle) PurgeCycle(context.Context, bool)                 {}
func (noopHandle) HeartbeatLatency(context.Context, time.Duration)  {}
func (noopHandle) StatsPropagationLatency(context.Context, time.Duration) {}
func (noopHandle) SetDiskUsedBytes(int64)                           {}
func (noopHandle) SetFileUsageEstimateBytes(int64)                  {}

var _ Handle = noopHandle{}
var _ Handle = (*otelHandle)(nil)
