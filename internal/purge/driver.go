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

package purge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/googlecloudplatform/pfcached/cfg"
	"github.com/googlecloudplatform/pfcached/clock"
	"github.com/googlecloudplatform/pfcached/internal/activefile"
	"github.com/googlecloudplatform/pfcached/internal/dirstate"
	"github.com/googlecloudplatform/pfcached/internal/events"
	"github.com/googlecloudplatform/pfcached/internal/oss"
	"github.com/googlecloudplatform/pfcached/internal/purgepin"
)

// Result summarizes one Driver.Run cycle, for logging and tests.
type Result struct {
	// TargetBytesToRemove is the final bytes_to_remove computed for this
	// cycle, after the file-usage clamp and any quota-pin bump.
	TargetBytesToRemove int64
	BytesRemoved         int64
	FilesRemoved         int64
	ProtectedCount       int
	ProtectedBytes       int64
	AgeBased             bool
	// TraversalSkipped is true when the cycle found nothing to do and
	// returned without walking the namespace.
	TraversalSkipped bool
}

// Driver is PurgeDriver (spec.md §4.8): it decides, once per cycle,
// whether a purge is warranted, collects candidates via FPurgeState,
// consults the quota-pin plugin, and unlinks until the target is met or
// the candidate pool is exhausted.
type Driver struct {
	oss      oss.OSS
	fs       *dirstate.FsState
	purgeCfg cfg.PurgeConfig
	cacheCfg cfg.DirStatsCacheConfig

	active activefile.Registry
	pin    purgepin.PurgePin
	queues *events.Queues
	logger *slog.Logger

	limiter *rate.Limiter
	clk     clock.Clock

	// onPrePurgeSnapshot, if set, is invoked with the flattened namespace
	// state just before any unlinking begins (spec.md §4.8 step 6).
	onPrePurgeSnapshot func(dirstate.Snapshot)

	writeMu           sync.Mutex
	pendingWriteBytes int64

	fileUsageEstimate int64
	cycleCount        int
	firstPass         bool
}

// NewDriver constructs a Driver. active, pin and queues may be nil: a nil
// active registry protects nothing, a nil pin contributes no quota-pin
// demand, and a nil queues simply drops purge events instead of posting
// them.
func NewDriver(o oss.OSS, fs *dirstate.FsState, purgeCfg cfg.PurgeConfig, cacheCfg cfg.DirStatsCacheConfig, active activefile.Registry, pin purgepin.PurgePin, queues *events.Queues, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if purgeCfg.UnlinkRatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(purgeCfg.UnlinkRatePerSecond), 1)
	}
	return &Driver{
		oss:       o,
		fs:        fs,
		purgeCfg:  purgeCfg,
		cacheCfg:  cacheCfg,
		active:    active,
		pin:       pin,
		queues:    queues,
		logger:    logger,
		limiter:   limiter,
		clk:       clock.RealClock{},
		firstPass: true,
	}
}

// SetClock overrides the driver's time source, letting tests control
// age-based purge cutoffs deterministically instead of racing wall time.
func (d *Driver) SetClock(c clock.Clock) {
	d.clk = c
}

// SetPrePurgeSnapshotHook installs the callback Run invokes with the
// flattened namespace state right before unlinking starts.
func (d *Driver) SetPrePurgeSnapshotHook(fn func(dirstate.Snapshot)) {
	d.onPrePurgeSnapshot = fn
}

// AddWriteBytes accumulates bytes written since the last cycle, feeding
// the file-usage estimate (spec.md §4.8 step 2). Safe to call
// concurrently from client-serving goroutines.
func (d *Driver) AddWriteBytes(n int64) {
	d.writeMu.Lock()
	d.pendingWriteBytes += n
	d.writeMu.Unlock()
}

func (d *Driver) takeWriteBytes() int64 {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	n := d.pendingWriteBytes
	d.pendingWriteBytes = 0
	return n
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// Run executes one purge-decision cycle (spec.md §4.8 steps 1-7). A
// traversal-root failure aborts the cycle and is returned as an error;
// the cycle's write-byte estimate is preserved so the next cycle doesn't
// lose track of it.
func (d *Driver) Run() (Result, error) {
	var res Result

	cycleID := events.NewCorrelationID()
	logger := d.logger.With("purge_cycle_id", cycleID)

	space, err := d.oss.StatVS(d.cacheCfg.DataSpaceName)
	if err != nil {
		return res, fmt.Errorf("purge: stat_vs failed: %w", err)
	}
	diskUsed := space.TotalBytes - space.FreeBytes

	diskHwm := int64(d.purgeCfg.DiskHighWaterMark)
	diskLwm := int64(d.purgeCfg.DiskLowWaterMark)

	// Step 1: disk-based demand.
	var bytesToRemoveDisk int64
	if diskHwm > 0 && diskUsed > diskHwm {
		bytesToRemoveDisk = max64(0, diskUsed-diskLwm)
	}

	// Step 2: file-usage-based demand.
	fileUsage := d.fileUsageEstimate + d.takeWriteBytes()
	var bytesToRemoveFiles int64
	if d.purgeCfg.FileUsagePolicyEnabled() {
		nominal := int64(d.purgeCfg.FileUsageNominal)
		if nominal > 0 {
			bytesToRemoveFiles = max64(0, fileUsage-nominal)
		}
		var fileFraction, diskFraction float64
		if nominal > 0 {
			fileFraction = float64(fileUsage) / float64(nominal)
		}
		if diskHwm > 0 {
			diskFraction = float64(diskUsed) / float64(diskHwm)
		}
		if fileFraction+diskFraction > 1 {
			bytesToRemoveFiles = max64(bytesToRemoveFiles, diskUsed-diskLwm)
		}
	}

	// Step 3: combine, and decide whether this is an age-based cycle.
	bytesToRemove := max64(bytesToRemoveDisk, bytesToRemoveFiles)

	d.cycleCount++
	countdownReached := d.purgeCfg.AgeBasedPeriod > 0 && d.cycleCount%d.purgeCfg.AgeBasedPeriod == 0
	ageBased := countdownReached && (d.purgeCfg.AgeBasedPolicyEnabled() || d.purgeCfg.UVKeepPolicyEnabled())
	res.AgeBased = ageBased

	if bytesToRemove <= 0 && !ageBased && !d.firstPass {
		res.TraversalSkipped = true
		d.fileUsageEstimate = fileUsage
		return res, nil
	}
	d.firstPass = false

	// Step 4: build and walk the main FPurgeState, sized generously so
	// eviction — not scan truncation — decides which candidates survive.
	target := bytesToRemove
	if target <= 0 {
		target = 1
	}
	var minTime, minUVKeepTime int64
	now := d.clk.Now().Unix()
	if d.purgeCfg.AgeBasedPolicyEnabled() {
		minTime = now - int64(d.purgeCfg.ColdFilesAgeSecs)
	}
	if d.purgeCfg.UVKeepPolicyEnabled() {
		minUVKeepTime = now - int64(d.purgeCfg.CSUVKeepSecs)
	}

	fp := New(d.oss, d.cacheCfg.CinfoSuffix, target*2, minTime, minUVKeepTime, logger)
	if err := fp.Walk(d.fs.Root, "/", d.cacheCfg.ProtectedTopDirs); err != nil {
		d.fileUsageEstimate = fileUsage
		return res, fmt.Errorf("purge: root traversal failed: %w", err)
	}

	// Refresh the file-usage estimate from the on-disk usage totals held
	// in the DirState tree (the walk itself does not sum the sizes it
	// finds), then re-clamp against the baseline (spec.md §4.8 step 4).
	actualTotal := d.fs.Root.HereUsage.BytesOnDisk + d.fs.Root.SubdirUsage.BytesOnDisk
	fileUsage = actualTotal
	if d.purgeCfg.FileUsagePolicyEnabled() {
		baseline := int64(d.purgeCfg.FileUsageBaseline)
		demand := max64(bytesToRemoveFiles, diskUsed-diskLwm)
		bytesToRemove = min64(demand, fileUsage-baseline)
		bytesToRemove = max64(0, bytesToRemove)
	}

	if ageBased {
		fp.MoveListEntriesToMap()
	}

	// Step 5: quota-pin subtrees, spliced into the main candidate set at
	// time 0 so they are always removed first, alongside doomed entries.
	if d.pin != nil {
		pluginTotal := d.pin.GetBytesToRecover(d.fs.Root)
		for _, info := range d.pin.RefDirInfos() {
			if info.DirState == nil || info.BytesToRecover <= 0 {
				continue
			}
			sub := New(d.oss, d.cacheCfg.CinfoSuffix, info.BytesToRecover*2, 0, 0, logger)
			if err := sub.Walk(info.DirState, info.Path, nil); err != nil {
				logger.Warn("purge: quota-pin subtree traversal failed", "path", info.Path, "err", err)
				continue
			}
			for _, c := range sub.Candidates() {
				fp.InsertUnconditional(c)
			}
		}
		bytesToRemove = max64(bytesToRemove, pluginTotal)
	}

	// Step 6: pre-purge snapshot, before anything is unlinked.
	if d.onPrePurgeSnapshot != nil {
		d.onPrePurgeSnapshot(dirstate.Flatten(d.fs, d.cacheCfg.StoreDepth))
	}

	// Step 7: unlink in ascending access-time order (doomed/quota-pin
	// entries at time 0 first) until the target is met.
	remaining := bytesToRemove
	for _, c := range fp.Candidates() {
		if remaining <= 0 && c.AccessTime != 0 {
			break
		}
		if d.active != nil && d.active.IsProtected(c.DataPath) {
			res.ProtectedCount++
			res.ProtectedBytes += c.SizeBytes
			continue
		}

		if err := d.oss.Unlink(c.CinfoPath); err != nil {
			logger.Warn("purge: unlink cinfo failed", "path", c.CinfoPath, "err", err)
		}
		if err := d.oss.Unlink(c.DataPath); err != nil {
			logger.Warn("purge: unlink data failed", "path", c.DataPath, "err", err)
			continue
		}
		if d.limiter != nil {
			_ = d.limiter.Wait(context.Background())
		}

		remaining -= c.SizeBytes
		fileUsage -= c.SizeBytes
		res.BytesRemoved += c.SizeBytes
		res.FilesRemoved++

		if d.queues != nil {
			d.queues.RegisterPurgeByLfn(events.PurgeByLfnRecord{Lfn: c.DataPath, Size: c.SizeBytes})
		}
	}

	res.TargetBytesToRemove = bytesToRemove
	d.fileUsageEstimate = max64(0, fileUsage)
	return res, nil
}
