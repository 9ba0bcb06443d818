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

// Package monitor implements ResourceMonitor (spec.md §2, §4.4-§4.5): it
// owns the DirState tree, the event queues and access-token table, and
// runs the heartbeat that drains queues, applies events, propagates
// stats, and emits namespace snapshots.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/googlecloudplatform/pfcached/cfg"
	"github.com/googlecloudplatform/pfcached/clock"
	"github.com/googlecloudplatform/pfcached/internal/dirstate"
	"github.com/googlecloudplatform/pfcached/internal/events"
	"github.com/googlecloudplatform/pfcached/internal/oss"
	"github.com/googlecloudplatform/pfcached/internal/snapshotsink"
	"github.com/googlecloudplatform/pfcached/internal/telemetry"
)

// Monitor is ResourceMonitor. Purge decisions themselves live in
// purge.Driver, invoked on its own cadence by the caller (spec.md §4.8);
// Monitor only keeps the tree, queues and tokens it depends on current.
type Monitor struct {
	oss      oss.OSS
	fs       *dirstate.FsState
	cacheCfg cfg.DirStatsCacheConfig

	concurrency int

	tokens *events.Tokens
	queues *events.Queues

	sink   *snapshotsink.Sink
	handle telemetry.Handle
	logger *slog.Logger

	ring *snapshotRing
	clk  clock.Clock

	lastPropagation time.Time
	firstHeartbeat  bool
}

// SetClock overrides the time source, for deterministic interval tests.
func (m *Monitor) SetClock(c clock.Clock) { m.clk = c }

// New constructs a Monitor. sink and handle may be nil/noop: a nil sink
// skips off-box snapshot mirroring, and a nil handle is replaced with a
// no-op telemetry.Handle so callers never need a nil check.
func New(o oss.OSS, fs *dirstate.FsState, cacheCfg cfg.DirStatsCacheConfig, concurrency int, tokens *events.Tokens, queues *events.Queues, sink *snapshotsink.Sink, handle telemetry.Handle, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if handle == nil {
		handle = telemetry.NewNoopHandle()
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Monitor{
		oss:            o,
		fs:             fs,
		cacheCfg:       cacheCfg,
		concurrency:    concurrency,
		tokens:         tokens,
		queues:         queues,
		sink:           sink,
		handle:         handle,
		logger:         logger,
		ring:           newSnapshotRing(4),
		clk:            clock.RealClock{},
		firstHeartbeat: true,
	}
}

// InitialScan populates the DirState tree from what is actually on disk,
// before the first heartbeat runs (spec.md §3: "created during initial
// scan"). It bounds concurrent OSS.OpenDir/ReadDir/StatAt fan-out with
// errgroup.SetLimit the way the teacher bounds concurrent GCS requests —
// deliberately not built atop internal/traversal, whose single-cursor
// cd_down/cd_up state machine is made to be walked by one goroutine at a
// time; here, sibling subtrees have disjoint DirState nodes once
// discovered, so they can be scanned by independent goroutines safely.
func (m *Monitor) InitialScan(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	protected := make(map[string]bool, len(m.cacheCfg.ProtectedTopDirs))
	for _, name := range m.cacheCfg.ProtectedTopDirs {
		protected[name] = true
	}
	m.scanDir(gctx, g, m.fs.Root, "/", protected)
	return g.Wait()
}

func (m *Monitor) scanDir(ctx context.Context, g *errgroup.Group, node *dirstate.State, absPath string, protectedAtRoot map[string]bool) {
	task := func() error {
		d, err := m.oss.OpenDir(absPath)
		if err != nil {
			if absPath == "/" {
				return fmt.Errorf("monitor: initial scan: open root: %w", err)
			}
			m.logger.Warn("monitor: initial scan: subdir open failed, skipping subtree", "path", absPath, "err", err)
			return nil
		}
		defer d.Close()

		entries, err := d.ReadDir()
		if err != nil {
			m.logger.Warn("monitor: initial scan: readdir failed, skipping subtree", "path", absPath, "err", err)
			return nil
		}

		// A data file only counts toward usage once its .cinfo sidecar
		// exists (original_source/XrdPfc's scan_dir_and_recurse requires
		// has_data && has_cinfo); an orphan missing its sidecar isn't a
		// valid cache entry yet, so build the sidecar set up front.
		cinfoPresent := make(map[string]bool, len(entries))
		for _, e := range entries {
			if e.IsDir {
				continue
			}
			if ok, base := cinfoSuffixed(e.Name, m.cacheCfg.CinfoSuffix); ok {
				cinfoPresent[base] = true
			}
		}

		for _, e := range entries {
			if node == m.fs.Root && protectedAtRoot[e.Name] {
				continue
			}
			if e.IsDir {
				child := node.FindDir(e.Name, true)
				m.scanDir(ctx, g, child, path.Join(absPath, e.Name), nil)
				continue
			}
			if ok, _ := cinfoSuffixed(e.Name, m.cacheCfg.CinfoSuffix); ok {
				continue
			}
			if !cinfoPresent[e.Name] {
				continue
			}
			info, statErr := d.StatAt(e.Name)
			if statErr != nil {
				m.logger.Warn("monitor: initial scan: stat failed, skipping entry", "path", absPath, "name", e.Name, "err", statErr)
				continue
			}
			node.HereUsage.NFiles++
			node.HereUsage.BytesOnDisk += info.Size
		}
		return nil
	}
	// With every slot taken (the caller usually holds one), scan inline
	// rather than block in g.Go waiting on a slot that may never free up.
	if !g.TryGo(task) {
		_ = task()
	}
}

func cinfoSuffixed(name, suffix string) (bool, string) {
	if suffix == "" || len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
		return false, name
	}
	return true, name[:len(name)-len(suffix)]
}

// Heartbeat runs one pass of the monitor's loop (spec.md §2, §4.4,
// §4.5): swap and apply the event queues, then — on its own,
// coarser-grained cadence — run the three-phase stats roll-up and
// decide whether to emit a snapshot.
func (m *Monitor) Heartbeat(ctx context.Context) error {
	start := m.clk.Now()
	defer func() { m.handle.HeartbeatLatency(ctx, m.clk.Now().Sub(start)) }()

	m.queues.SwapQueues()
	m.processQueues()

	interval := time.Duration(m.cacheCfg.StatsPropagationIntervalSecs) * time.Second
	if m.firstHeartbeat || interval <= 0 || m.clk.Now().Sub(m.lastPropagation) >= interval {
		m.firstHeartbeat = false
		m.propagateStats(ctx)
		m.lastPropagation = m.clk.Now()

		if m.cacheCfg.ReportingOn {
			m.emitSnapshot(ctx)
		}
	}
	return nil
}

// processQueues is process_queues (spec.md §4.3→§4.4): resolve each
// event to a DirState node (creating parent directories as needed for
// opens) and fold its delta into HereStats. Order within the drained
// batch is open, then update, then close, then the three purge
// variants — matching the per-token open<update<close guarantee
// spec.md §4.5 requires; across tokens/dirs order is commutative.
func (m *Monitor) processQueues() {
	for _, rec := range m.queues.ReadOpen() {
		tok, ok := m.tokens.Get(rec.TokenID)
		if !ok {
			continue
		}
		var lastExisting *dirstate.State
		node := m.fs.Root.FindPath(path.Dir(tok.Filename), m.cacheCfg.StoreDepth, true, &lastExisting)
		m.tokens.Resolve(rec.TokenID, node)

		node.HereStats.NFilesOpened++
		if !rec.ExistingFile {
			node.HereStats.NFilesCreated++
			for pp := node; pp != lastExisting; {
				pp = pp.Parent
				pp.HereStats.NDirectoriesCreated++
			}
		}
		if rec.OpenTime > node.HereStats.LastOpenTime {
			node.HereStats.LastOpenTime = rec.OpenTime
		}
	}

	for _, rec := range m.queues.ReadUpdate() {
		tok, ok := m.tokens.Get(rec.TokenID)
		if !ok || tok.Dir == nil {
			continue
		}
		tok.Dir.HereStats.Add(rec.Delta)
	}

	for _, rec := range m.queues.ReadClose() {
		tok, ok := m.tokens.Get(rec.TokenID)
		if ok && tok.Dir != nil {
			tok.Dir.HereStats.Add(rec.Stats)
			tok.Dir.HereStats.NFilesClosed++
			if rec.CloseTime > tok.Dir.HereStats.LastCloseTime {
				tok.Dir.HereStats.LastCloseTime = rec.CloseTime
			}
		}
		m.tokens.Free(rec.TokenID)
	}

	for _, rec := range m.queues.ReadPurgeByNode() {
		if rec.Node == nil {
			continue
		}
		rec.Node.HereStats.BytesRemoved += rec.TotalSize
		rec.Node.HereStats.NFilesRemoved += rec.NFiles
	}

	for _, rec := range m.queues.ReadPurgeByDir() {
		node := m.fs.Root.FindPath(rec.DirPath, m.cacheCfg.StoreDepth, true, nil)
		node.HereStats.BytesRemoved += rec.TotalSize
		node.HereStats.NFilesRemoved += rec.NFiles
	}

	for _, rec := range m.queues.ReadPurgeByLfn() {
		node := m.fs.Root.FindPath(path.Dir(rec.Lfn), m.cacheCfg.StoreDepth, true, nil)
		node.HereStats.BytesRemoved += rec.Size
		node.HereStats.NFilesRemoved++
	}
}

// propagateStats runs the three-phase roll-up (spec.md §4.5).
func (m *Monitor) propagateStats(ctx context.Context) {
	start := m.clk.Now()
	m.fs.Root.UpwardPropagateStatsAndTimes()
	m.fs.Root.ApplyStatsToUsages()
	m.fs.Root.ResetStats()
	m.fs.UsageUpdateTime = m.clk.Now().Unix()
	m.fs.StatsResetTime = m.fs.UsageUpdateTime

	m.handle.StatsPropagationLatency(ctx, m.clk.Now().Sub(start))
	m.handle.SetDiskUsedBytes(m.fs.Root.HereUsage.BytesOnDisk + m.fs.Root.SubdirUsage.BytesOnDisk)
}

// emitSnapshot flattens the tree, keeps it in the debug ring (original_
// source/XrdPfc's heartbeat does the same before discarding), and — if a
// sink is configured — mirrors it off-box.
func (m *Monitor) emitSnapshot(ctx context.Context) {
	m.recordSnapshot(ctx, dirstate.Flatten(m.fs, m.cacheCfg.StoreDepth))
}

// CapturePrePurgeSnapshot records a snapshot the purge driver captured
// immediately before it began unlinking (spec.md §4.8 step 6), through
// the same debug ring and off-box mirroring a regular heartbeat
// snapshot uses.
func (m *Monitor) CapturePrePurgeSnapshot(ctx context.Context, snap dirstate.Snapshot) {
	m.recordSnapshot(ctx, snap)
}

func (m *Monitor) recordSnapshot(ctx context.Context, snap dirstate.Snapshot) {
	m.ring.push(snap)
	m.logger.Debug("monitor: snapshot", "num_dirs", len(snap.DirStates), "bytes_on_disk", m.fs.Root.HereUsage.BytesOnDisk+m.fs.Root.SubdirUsage.BytesOnDisk)

	if m.sink == nil {
		return
	}
	name, err := m.sink.Upload(ctx, snap)
	if err != nil {
		m.logger.Warn("monitor: snapshot upload failed", "err", err)
		return
	}
	m.logger.Debug("monitor: snapshot uploaded", "object", name)
}

// RecentSnapshots returns up to the last 4 flattened snapshots kept
// purely for debug-level trend logging — not used by any purge decision.
func (m *Monitor) RecentSnapshots() []dirstate.Snapshot {
	return m.ring.recent()
}

// FsState exposes the owned tree, e.g. for PurgeDriver to walk.
func (m *Monitor) FsState() *dirstate.FsState { return m.fs }
