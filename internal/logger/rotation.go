// Copyright 2025 Google LLC
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

package logger

import (
	"io"
	"os"

	"github.com/googlecloudplatform/pfcached/cfg"
	"gopkg.in/natefinch/lumberjack.v2"
)

const asyncLogBufferSize = 4096

// InitLogFile configures the package-level logger to write to c.FilePath,
// rotated per c.LogRotate, wrapped in an AsyncLogger so a burst of purge
// log lines never blocks on file I/O. If c.FilePath is empty, logs go to
// os.Stderr synchronously and the returned closer is a no-op.
func InitLogFile(c cfg.LoggingConfig) (io.Closer, error) {
	if c.FilePath == "" {
		Init(c, os.Stderr)
		return io.NopCloser(nil), nil
	}

	lj := &lumberjack.Logger{
		Filename:   c.FilePath,
		MaxSize:    c.LogRotate.MaxFileSizeMb,
		MaxBackups: c.LogRotate.BackupFileCount,
		Compress:   c.LogRotate.Compress,
	}
	async := NewAsyncLogger(lj, asyncLogBufferSize)
	Init(c, async)
	return async, nil
}
