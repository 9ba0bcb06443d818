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

// GetDefaultLoggingConfig returns the default configuration that is to be used
// during application startup, before the provided configuration is parsed.
func GetDefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Severity: InfoLogSeverity,
		Format:   "text",
		LogRotate: LogRotateLoggingConfig{
			BackupFileCount: 10,
			Compress:        true,
			MaxFileSizeMb:   512,
		},
	}
}

// GetDefaultCacheConfig returns defaults for the cache-namespace section.
func GetDefaultCacheConfig() DirStatsCacheConfig {
	return DirStatsCacheConfig{
		CinfoSuffix:                  ".cinfo",
		ReportingOn:                  true,
		HeartbeatIntervalSecs:        5,
		StatsPropagationIntervalSecs: 60,
	}
}

// GetDefaultPurgeConfig returns defaults for the purge-trigger section. Every
// optional policy (file-usage, age, uv-keep) defaults to disabled.
func GetDefaultPurgeConfig() PurgeConfig {
	return PurgeConfig{
		IntervalSeconds:      300,
		AgeBasedPeriod:       12,
		TraversalConcurrency: 8,
	}
}

// GetDefaultMetricsConfig returns defaults for the telemetry bridge.
func GetDefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		ListenAddr: ":9101",
	}
}

// DefaultConfig assembles every section's defaults, mirroring how the
// teacher's legacy_main builds a zero-value Config before overlaying flags
// and the config file on top of it.
func DefaultConfig() Config {
	return Config{
		Cache:    GetDefaultCacheConfig(),
		Purge:    GetDefaultPurgeConfig(),
		Logging:  GetDefaultLoggingConfig(),
		Metrics:  GetDefaultMetricsConfig(),
		QuotaPin: QuotaPinConfig{},
	}
}
