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

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"cloud.google.com/go/storage"

	"github.com/googlecloudplatform/pfcached/cfg"
	"github.com/googlecloudplatform/pfcached/internal/activefile"
	"github.com/googlecloudplatform/pfcached/internal/dirstate"
	"github.com/googlecloudplatform/pfcached/internal/events"
	"github.com/googlecloudplatform/pfcached/internal/logger"
	"github.com/googlecloudplatform/pfcached/internal/monitor"
	"github.com/googlecloudplatform/pfcached/internal/oss"
	"github.com/googlecloudplatform/pfcached/internal/purge"
	"github.com/googlecloudplatform/pfcached/internal/purgepin"
	"github.com/googlecloudplatform/pfcached/internal/snapshotsink"
	"github.com/googlecloudplatform/pfcached/internal/telemetry"
)

// daemon wires every piece spec.md §2 names a ResourceMonitor/PurgeDriver
// depends on into one runnable process, mirroring how the teacher's
// cmd/legacy_main.go assembles a storage handle, file system, and server
// loop from a parsed cfg.Config before blocking on a signal channel.
type daemon struct {
	cfg cfg.Config

	fs      *dirstate.FsState
	tokens  *events.Tokens
	queues  *events.Queues
	monitor *monitor.Monitor
	purger  *purge.Driver

	bridge     *telemetry.Bridge
	metricsSrv *http.Server

	logCloser   func() error
	crashWriter *CrashWriter
}

func newDaemon(ctx context.Context, c cfg.Config) (*daemon, error) {
	logFileCloser, err := logger.InitLogFile(c.Logging)
	if err != nil {
		return nil, err
	}

	bridge, err := telemetry.NewPrometheusBridge(c.Metrics)
	if err != nil {
		logFileCloser.Close()
		return nil, err
	}

	var sink *snapshotsink.Sink
	if c.Cache.SnapshotGCSBucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			logFileCloser.Close()
			return nil, err
		}
		sink = snapshotsink.New(client, c.Cache.SnapshotGCSBucket, c.Cache.SnapshotDir)
	}

	var pin purgepin.PurgePin
	if c.QuotaPin.Enabled {
		qp := purgepin.New(nil)
		if err := qp.ConfigureFile(c.QuotaPin.ConfigFile); err != nil {
			logFileCloser.Close()
			return nil, err
		}
		pin = qp
	}

	fs := dirstate.NewFsState()
	tokens := events.NewTokens()
	queues := events.New()
	active := activefile.NewSet()
	localOSS := oss.NewLocal()

	mon := monitor.New(localOSS, fs, c.Cache, c.Purge.TraversalConcurrency, tokens, queues, sink, bridge.Handle, nil)
	purger := purge.NewDriver(localOSS, fs, c.Purge, c.Cache, active, pin, queues, nil)
	purger.SetPrePurgeSnapshotHook(func(s dirstate.Snapshot) {
		mon.CapturePrePurgeSnapshot(context.Background(), s)
	})

	var crashWriter *CrashWriter
	if c.Logging.FilePath != "" {
		crashWriter = NewCrashWriter(c.Logging.FilePath + ".crash")
	}

	var metricsSrv *http.Server
	if c.Metrics.Enabled && bridge.Handler != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", bridge.Handler)
		metricsSrv = &http.Server{Addr: c.Metrics.ListenAddr, Handler: mux}
	}

	return &daemon{
		cfg:         c,
		fs:          fs,
		tokens:      tokens,
		queues:      queues,
		monitor:     mon,
		purger:      purger,
		bridge:      bridge,
		metricsSrv:  metricsSrv,
		logCloser:   logFileCloser.Close,
		crashWriter: crashWriter,
	}, nil
}

// recoverLoop runs fn and, if it panics, logs the panic and stack trace
// (and also writes them to d.crashWriter when a crash file is configured)
// instead of taking the whole daemon down — a single bad heartbeat or
// purge cycle shouldn't stop monitoring the rest of the namespace.
func (d *daemon) recoverLoop(label string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("pfcached: panic in %s: %v\n%s", label, r, debug.Stack())
			if d.crashWriter != nil {
				_, _ = d.crashWriter.Write([]byte(msg))
			}
			logger.Errorf("%s", msg)
		}
	}()
	fn()
}

// run executes the daemon's full lifecycle: initial scan, background
// heartbeat/purge loops, and a graceful shutdown on SIGINT/SIGTERM or ctx
// cancellation — the shape of the teacher's mount-then-block-on-signal
// main loop (cmd/legacy_main.go), generalized from "serve FUSE ops" to
// "run two interval loops".
func (d *daemon) run(parent context.Context) error {
	defer d.logCloser()
	if d.bridge.Shutdown != nil {
		defer d.bridge.Shutdown(context.Background())
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Infof("pfcached: starting initial scan of %s", d.cfg.Cache.RootDir)
	if err := d.monitor.InitialScan(ctx); err != nil {
		return err
	}
	logger.Infof("pfcached: initial scan complete")

	if d.metricsSrv != nil {
		go func() {
			if err := d.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("pfcached: metrics server stopped: %v", err)
			}
		}()
	}

	heartbeat := time.NewTicker(time.Duration(d.cfg.Cache.HeartbeatIntervalSecs) * time.Second)
	defer heartbeat.Stop()
	purgeTick := time.NewTicker(time.Duration(d.cfg.Purge.IntervalSeconds) * time.Second)
	defer purgeTick.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Infof("pfcached: shutting down")
			if d.metricsSrv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = d.metricsSrv.Shutdown(shutdownCtx)
			}
			return nil

		case <-heartbeat.C:
			d.recoverLoop("heartbeat", func() {
				if err := d.monitor.Heartbeat(ctx); err != nil {
					logger.Errorf("pfcached: heartbeat failed: %v", err)
				}
			})

		case <-purgeTick.C:
			d.recoverLoop("purge cycle", func() { d.runPurgeCycle(ctx) })
		}
	}
}

func (d *daemon) runPurgeCycle(ctx context.Context) {
	res, err := d.purger.Run()
	if err != nil {
		logger.Errorf("pfcached: purge cycle failed: %v", err)
		return
	}

	trigger := telemetry.TriggerDisk
	if res.AgeBased {
		trigger = telemetry.TriggerAgeBased
	}
	d.bridge.Handle.PurgeCycle(ctx, res.TraversalSkipped)
	if res.BytesRemoved > 0 {
		d.bridge.Handle.BytesRemoved(ctx, res.BytesRemoved, trigger)
	}
	if res.FilesRemoved > 0 {
		d.bridge.Handle.FilesRemoved(ctx, res.FilesRemoved, trigger)
	}
	if res.ProtectedBytes > 0 {
		d.bridge.Handle.BytesProtected(ctx, res.ProtectedBytes)
	}

	logger.Infof("pfcached: purge cycle: removed %d bytes/%d files, protected %d files/%d bytes, skipped=%v",
		res.BytesRemoved, res.FilesRemoved, res.ProtectedCount, res.ProtectedBytes, res.TraversalSkipped)
}

func runDaemon(ctx context.Context, c cfg.Config) error {
	d, err := newDaemon(ctx, c)
	if err != nil {
		return err
	}
	return d.run(ctx)
}
