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

// Package purgepin implements PurgePin, the per-subtree quota plugin
// interface, and its one built-in implementation: a flat config-file
// grammar of `<path> <quota>` directives (spec.md §4.7, §6).
package purgepin

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/googlecloudplatform/pfcached/cfg"
	"github.com/googlecloudplatform/pfcached/internal/dirstate"
)

// DirInfo is one configured quota-pin subtree (spec.md §4.7
// ref_dir_infos).
type DirInfo struct {
	Path           string
	Quota          int64
	DirState       *dirstate.State
	BytesToRecover int64
}

// PurgePin is the per-subtree quota accounting interface (spec.md §4.7).
type PurgePin interface {
	// Configure parses the quota directives in r. Individual malformed
	// lines are warned and skipped (spec.md §4.7); a completely missing
	// or unreadable source is a configuration error.
	Configure(r io.Reader) error

	// GetBytesToRecover resolves each configured path against root and
	// returns the sum of max(0, subdir_usage.bytes_on_disk - quota)
	// across all of them (spec.md §4.7 get_bytes_to_recover).
	GetBytesToRecover(root *dirstate.State) int64

	// RefDirInfos lists the configured subtrees and their last-computed
	// recovery target (spec.md §4.7 ref_dir_infos).
	RefDirInfos() []DirInfo
}

// QuotaPlugin is the built-in PurgePin backed by a flat `<path> <quota>`
// config file (spec.md §6 quota plugin config file).
type QuotaPlugin struct {
	logger  *slog.Logger
	entries []DirInfo
}

// New constructs an empty, unconfigured QuotaPlugin.
func New(logger *slog.Logger) *QuotaPlugin {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuotaPlugin{logger: logger}
}

// ConfigureFile opens path and calls Configure on its contents. A
// missing file is a configuration error (spec.md §4.7, §7
// QuotaConfigMissing).
func (p *QuotaPlugin) ConfigureFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("purgepin: quota config missing: %w", err)
	}
	defer f.Close()
	return p.Configure(f)
}

// Configure parses one `<absolute-path> <quota>` directive per line
// (spec.md §6). Blank lines and lines starting with `#` are ignored.
// A malformed line is warned and skipped, not fatal (spec.md §4.7, §7
// QuotaConfigMissing/Malformed).
func (p *QuotaPlugin) Configure(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			p.logger.Warn("purgepin: malformed quota directive, skipping", "line", lineNo, "text", line)
			continue
		}
		quota, err := cfg.ParseByteSize(fields[1])
		if err != nil {
			p.logger.Warn("purgepin: malformed quota value, skipping", "line", lineNo, "text", line, "err", err)
			continue
		}
		p.entries = append(p.entries, DirInfo{Path: fields[0], Quota: int64(quota)})
	}
	return scanner.Err()
}

// GetBytesToRecover implements PurgePin. A configured path that does not
// resolve against root contributes zero (spec.md §4.7: "unresolvable
// quota paths contribute zero").
func (p *QuotaPlugin) GetBytesToRecover(root *dirstate.State) int64 {
	var total int64
	for i := range p.entries {
		e := &p.entries[i]
		node := root.FindPath(e.Path, 0, false, nil)
		e.DirState = node
		if node == nil {
			e.BytesToRecover = 0
			continue
		}
		recover := node.SubdirUsage.BytesOnDisk - e.Quota
		if recover < 0 {
			recover = 0
		}
		e.BytesToRecover = recover
		total += recover
	}
	return total
}

// RefDirInfos implements PurgePin.
func (p *QuotaPlugin) RefDirInfos() []DirInfo {
	out := make([]DirInfo, len(p.entries))
	copy(out, p.entries)
	return out
}

var _ PurgePin = (*QuotaPlugin)(nil)
