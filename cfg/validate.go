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

import "fmt"

func isValidLogRotateConfig(config *LogRotateLoggingConfig) error {
	if config.MaxFileSizeMb <= 0 {
		return fmt.Errorf("max-file-size-mb should be at least 1")
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count should be 0 (retain all backups) or positive")
	}
	return nil
}

func isValidCacheConfig(c *DirStatsCacheConfig) error {
	if c.RootDir == "" {
		return fmt.Errorf("cache.root-dir must be set")
	}
	if c.CinfoSuffix == "" {
		return fmt.Errorf("cache.cinfo-suffix must be set")
	}
	if c.StoreDepth < 0 {
		return fmt.Errorf("cache.dir-stats-store-depth must be >= 0")
	}
	if c.HeartbeatIntervalSecs <= 0 {
		return fmt.Errorf("cache.heartbeat-interval-seconds must be > 0")
	}
	if c.StatsPropagationIntervalSecs <= 0 {
		return fmt.Errorf("cache.stats-propagation-interval-seconds must be > 0")
	}
	return nil
}

func isValidPurgeConfig(p *PurgeConfig) error {
	if p.DiskHighWaterMark < 0 || p.DiskLowWaterMark < 0 {
		return fmt.Errorf("purge.disk-hwm and purge.disk-lwm must be >= 0")
	}
	if p.DiskHighWaterMark > 0 && p.DiskLowWaterMark > p.DiskHighWaterMark {
		return fmt.Errorf("purge.disk-lwm (%d) must be <= purge.disk-hwm (%d)", p.DiskLowWaterMark, p.DiskHighWaterMark)
	}
	if p.IntervalSeconds <= 0 {
		return fmt.Errorf("purge.purge-interval-seconds must be > 0")
	}
	if p.AgeBasedPeriod < 0 {
		return fmt.Errorf("purge.purge-age-based-period must be >= 0")
	}
	if p.ColdFilesAgeSecs < 0 {
		return fmt.Errorf("purge.purge-cold-files-age must be >= 0")
	}
	if p.CSUVKeepSecs < 0 {
		return fmt.Errorf("purge.cs-uv-keep must be >= 0")
	}
	if p.UnlinkRatePerSecond < 0 {
		return fmt.Errorf("purge.unlink-rate-per-second must be >= 0")
	}
	if p.TraversalConcurrency <= 0 {
		return fmt.Errorf("purge.traversal-concurrency must be > 0")
	}
	if p.FileUsagePolicyEnabled() {
		if p.FileUsageNominal <= 0 {
			return fmt.Errorf("purge.file-usage-nominal must be > 0 when the file-usage policy is enabled")
		}
		if p.FileUsageMax > 0 && p.FileUsageMax < p.FileUsageNominal {
			return fmt.Errorf("purge.file-usage-max must be >= purge.file-usage-nominal")
		}
	}
	return nil
}

func isValidQuotaPinConfig(q *QuotaPinConfig) error {
	if q.Enabled && q.ConfigFile == "" {
		return fmt.Errorf("quota-pin.config-file must be set when quota-pin.enabled is true")
	}
	return nil
}

// Validate rejects an out-of-range Config before the daemon starts,
// mirroring gcsfuse/cfg's validation pass run from cmd.rootCmd.RunE.
func Validate(c *Config) error {
	if err := isValidCacheConfig(&c.Cache); err != nil {
		return err
	}
	if err := isValidPurgeConfig(&c.Purge); err != nil {
		return err
	}
	if err := isValidQuotaPinConfig(&c.QuotaPin); err != nil {
		return err
	}
	if err := isValidLogRotateConfig(&c.Logging.LogRotate); err != nil {
		return err
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be \"text\" or \"json\"")
	}
	return nil
}
