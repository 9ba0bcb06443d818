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

package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the root configuration of the cache daemon. It is unmarshalled
// from YAML (via viper) and/or bound to CLI flags in BindFlags.
type Config struct {
	Cache DirStatsCacheConfig `yaml:"cache"`

	Purge PurgeConfig `yaml:"purge"`

	QuotaPin QuotaPinConfig `yaml:"quota-pin"`

	Logging LoggingConfig `yaml:"logging"`

	Metrics MetricsConfig `yaml:"metrics"`
}

// DirStatsCacheConfig describes the on-disk namespace this core monitors.
type DirStatsCacheConfig struct {
	// RootDir is the root of the cached namespace, consumed by OSS.
	RootDir string `yaml:"root-dir"`

	// CinfoSuffix is the sidecar-file suffix, e.g. ".cinfo".
	CinfoSuffix string `yaml:"cinfo-suffix"`

	// DataSpaceName is passed to OSS.StatVS for disk occupancy.
	DataSpaceName string `yaml:"data-space-name"`

	// StoreDepth bounds how deep the propagated/exported DirState tree goes
	// (spec.md §6 dir_stats_store_depth).
	StoreDepth int `yaml:"dir-stats-store-depth"`

	// ReportingOn toggles periodic snapshot emission (dir_stat_reporting_on).
	ReportingOn bool `yaml:"dir-stat-reporting-on"`

	// ProtectedTopDirs are skipped at the traversal root, e.g. the directory
	// holding exported stats snapshots (spec.md §4.2 m_protected_top_dirs).
	ProtectedTopDirs []string `yaml:"protected-top-dirs"`

	// HeartbeatIntervalSecs is the cadence of ResourceMonitor.heartBeat.
	HeartbeatIntervalSecs int `yaml:"heartbeat-interval-seconds"`

	// StatsPropagationIntervalSecs is the cadence of the three-phase roll-up
	// (spec.md §9, default 60s).
	StatsPropagationIntervalSecs int `yaml:"stats-propagation-interval-seconds"`

	// SnapshotDir is the object-name prefix for DirStateSnapshot dumps
	// mirrored to SnapshotGCSBucket; no snapshot is written to local disk.
	SnapshotDir string `yaml:"snapshot-dir"`

	// SnapshotGCSBucket, if set, mirrors every emitted DirStateSnapshot to
	// this GCS bucket via internal/snapshotsink for offline analysis
	// (spec.md §4.9). Empty disables off-box mirroring.
	SnapshotGCSBucket string `yaml:"snapshot-gcs-bucket"`
}

// PurgeConfig collects every purge-trigger threshold from spec.md §6.
type PurgeConfig struct {
	DiskHighWaterMark ByteSize `yaml:"disk-hwm"`
	DiskLowWaterMark  ByteSize `yaml:"disk-lwm"`

	FileUsageBaseline ByteSize `yaml:"file-usage-baseline"`
	FileUsageNominal  ByteSize `yaml:"file-usage-nominal"`
	FileUsageMax      ByteSize `yaml:"file-usage-max"`

	IntervalSeconds  int `yaml:"purge-interval-seconds"`
	AgeBasedPeriod   int `yaml:"purge-age-based-period"`
	ColdFilesAgeSecs int `yaml:"purge-cold-files-age"`
	CSUVKeepSecs     int `yaml:"cs-uv-keep"`

	// UnlinkRatePerSecond throttles FsTraversal.unlink_at during a purge
	// cycle (domain-stack addition, see SPEC_FULL.md).
	UnlinkRatePerSecond float64 `yaml:"unlink-rate-per-second"`

	// TraversalConcurrency bounds concurrent stat/readdir fan-out during a
	// scan (domain-stack addition).
	TraversalConcurrency int `yaml:"traversal-concurrency"`
}

// FileUsagePolicyEnabled reports whether the optional file-usage purge
// trigger is configured (spec.md §6: "optional — enables file-usage policy").
func (p PurgeConfig) FileUsagePolicyEnabled() bool {
	return p.FileUsageBaseline > 0 || p.FileUsageNominal > 0 || p.FileUsageMax > 0
}

func (p PurgeConfig) AgeBasedPolicyEnabled() bool {
	return p.ColdFilesAgeSecs > 0
}

func (p PurgeConfig) UVKeepPolicyEnabled() bool {
	return p.CSUVKeepSecs > 0
}

// QuotaPinConfig points at the PurgePin quota plugin's directive file.
type QuotaPinConfig struct {
	ConfigFile string `yaml:"config-file"`
	Enabled    bool   `yaml:"enabled"`
}

// LoggingConfig mirrors the teacher's logging config shape.
type LoggingConfig struct {
	Severity  LogSeverity            `yaml:"severity"`
	Format    string                 `yaml:"format"` // "text" or "json"
	FilePath  string                 `yaml:"file-path"`
	LogRotate LogRotateLoggingConfig `yaml:"log-rotate"`
}

type LogRotateLoggingConfig struct {
	MaxFileSizeMb   int  `yaml:"max-file-size-mb"`
	BackupFileCount int  `yaml:"backup-file-count"`
	Compress        bool `yaml:"compress"`
}

// MetricsConfig controls the OTel/Prometheus telemetry bridge.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen-addr"`
}

// BindFlags registers CLI flags and binds each into viper under the matching
// YAML key, mirroring gcsfuse/cfg.BindFlags.
func BindFlags(flagSet *pflag.FlagSet) error {
	flagSet.String("cache.root-dir", "", "Root directory of the cached namespace.")
	flagSet.String("cache.cinfo-suffix", ".cinfo", "Sidecar meta-file suffix.")
	flagSet.String("cache.data-space-name", "", "Name passed to OSS.StatVS for disk occupancy.")
	flagSet.Int("cache.dir-stats-store-depth", 0, "Max depth of the propagated/exported DirState tree (0 = unlimited).")
	flagSet.Bool("cache.dir-stat-reporting-on", true, "Enable periodic snapshot emission.")
	flagSet.Int("cache.heartbeat-interval-seconds", 5, "Heartbeat cadence.")
	flagSet.Int("cache.stats-propagation-interval-seconds", 60, "Upward-propagation cadence.")
	flagSet.String("cache.snapshot-dir", "", "Directory (or GCS object-name prefix) for JSON/binary DirStateSnapshot dumps.")
	flagSet.String("cache.snapshot-gcs-bucket", "", "GCS bucket to mirror DirStateSnapshot dumps to (empty disables off-box mirroring).")

	flagSet.Int64("purge.disk-hwm", 0, "Disk high-water mark, in bytes.")
	flagSet.Int64("purge.disk-lwm", 0, "Disk low-water mark, in bytes.")
	flagSet.Int64("purge.file-usage-baseline", 0, "File-usage baseline, in bytes (0 disables the file-usage policy).")
	flagSet.Int64("purge.file-usage-nominal", 0, "File-usage nominal level, in bytes.")
	flagSet.Int64("purge.file-usage-max", 0, "File-usage hard ceiling, in bytes.")
	flagSet.Int("purge.purge-interval-seconds", 300, "Purge cycle cadence.")
	flagSet.Int("purge.purge-age-based-period", 12, "Multiple of purge intervals between age-based sweeps.")
	flagSet.Int("purge.purge-cold-files-age", 0, "Cold-file cutoff, in seconds (0 disables).")
	flagSet.Int("purge.cs-uv-keep", 0, "Unverified-checksum keep window, in seconds (0 disables).")
	flagSet.Float64("purge.unlink-rate-per-second", 0, "Unlink throttle during a purge cycle (0 = unlimited).")
	flagSet.Int("purge.traversal-concurrency", 8, "Max concurrent stat/readdir calls during a scan.")

	flagSet.String("quota-pin.config-file", "", "Path to the quota-pin directive file.")
	flagSet.Bool("quota-pin.enabled", false, "Enable the per-subtree quota plugin.")

	flagSet.String("logging.severity", "INFO", "Minimum log severity.")
	flagSet.String("logging.format", "text", "Log format: text or json.")
	flagSet.String("logging.file-path", "", "Log file path (empty = stderr).")
	flagSet.Int("logging.log-rotate.max-file-size-mb", 512, "Max log file size before rotation.")
	flagSet.Int("logging.log-rotate.backup-file-count", 10, "Rotated log files to retain.")
	flagSet.Bool("logging.log-rotate.compress", true, "Compress rotated log files.")

	flagSet.Bool("metrics.enabled", false, "Serve OTel/Prometheus metrics.")
	flagSet.String("metrics.listen-addr", ":9101", "Address the metrics HTTP server listens on.")

	for _, key := range []string{
		"cache.root-dir", "cache.cinfo-suffix", "cache.data-space-name",
		"cache.dir-stats-store-depth", "cache.dir-stat-reporting-on",
		"cache.heartbeat-interval-seconds", "cache.stats-propagation-interval-seconds",
		"cache.snapshot-dir", "cache.snapshot-gcs-bucket",
		"purge.disk-hwm", "purge.disk-lwm", "purge.file-usage-baseline",
		"purge.file-usage-nominal", "purge.file-usage-max",
		"purge.purge-interval-seconds", "purge.purge-age-based-period",
		"purge.purge-cold-files-age", "purge.cs-uv-keep",
		"purge.unlink-rate-per-second", "purge.traversal-concurrency",
		"quota-pin.config-file", "quota-pin.enabled",
		"logging.severity", "logging.format", "logging.file-path",
		"logging.log-rotate.max-file-size-mb", "logging.log-rotate.backup-file-count",
		"logging.log-rotate.compress",
		"metrics.enabled", "metrics.listen-addr",
	} {
		if err := viper.BindPFlag(key, flagSet.Lookup(key)); err != nil {
			return err
		}
	}
	return nil
}
