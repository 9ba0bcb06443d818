// Copyright 2023 Google Inc. All Rights Reserved.
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

// Package logger implements the daemon's structured logging, built on top
// of log/slog with a JSON or "severity=LEVEL" text handler selectable at
// startup, and size-bounded log file rotation (see rotation.go).
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/googlecloudplatform/pfcached/cfg"
)

const (
	levelTrace = slog.Level(-8)
)

var severityToSlogLevel = map[cfg.LogSeverity]slog.Level{
	cfg.TraceLogSeverity:   levelTrace,
	cfg.DebugLogSeverity:   slog.LevelDebug,
	cfg.InfoLogSeverity:    slog.LevelInfo,
	cfg.WarningLogSeverity: slog.LevelWarn,
	cfg.ErrorLogSeverity:   slog.LevelError,
	cfg.OffLogSeverity:     slog.Level(127),
}

var slogLevelToSeverity = map[slog.Level]string{
	levelTrace:         "TRACE",
	slog.LevelDebug:    "DEBUG",
	slog.LevelInfo:     "INFO",
	slog.LevelWarn:     "WARNING",
	slog.LevelError:    "ERROR",
}

type loggerFactory struct {
	format string
}

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, level *slog.LevelVar, prefix string) slog.Handler {
	format := f.format
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				if len(groups) == 0 {
					a.Value = slog.StringValue(a.Value.Time().Format("02/01/2006 15:04:05.000000"))
				}
			case slog.LevelKey:
				lvl := a.Value.Any().(slog.Level)
				sev, ok := slogLevelToSeverity[lvl]
				if !ok {
					sev = lvl.String()
				}
				a.Key = "severity"
				a.Value = slog.StringValue(sev)
			case slog.MessageKey:
				a.Key = "message"
				if format == "json" {
					a.Value = slog.StringValue(prefix + a.Value.String())
				} else {
					// The text handler always quotes a []byte value.
					a.Value = slog.AnyValue([]byte(prefix + a.Value.String()))
				}
			}
			return a
		},
	}
	if f.format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

var (
	defaultLoggerFactory = &loggerFactory{format: "text"}
	programLevel         = new(slog.LevelVar)
	defaultLogger        = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, programLevel, ""))
)

func setLoggingLevel(level cfg.LogSeverity, pl *slog.LevelVar) {
	lvl, ok := severityToSlogLevel[level]
	if !ok {
		lvl = slog.LevelInfo
	}
	pl.Set(lvl)
}

// Init (re)configures the package-level logger from c. w, if non-nil,
// overrides the destination writer (used by InitLogFile in rotation.go).
func Init(c cfg.LoggingConfig, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	defaultLoggerFactory.format = c.Format
	setLoggingLevel(c.Severity, programLevel)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, programLevel, ""))
}

func log(ctx context.Context, level slog.Level, format string, v ...interface{}) {
	if !defaultLogger.Enabled(ctx, level) {
		return
	}
	defaultLogger.Log(ctx, level, fmt.Sprintf(format, v...))
}

func Tracef(format string, v ...interface{}) { log(context.Background(), levelTrace, format, v...) }
func Debugf(format string, v ...interface{}) { log(context.Background(), slog.LevelDebug, format, v...) }
func Infof(format string, v ...interface{})  { log(context.Background(), slog.LevelInfo, format, v...) }
func Warnf(format string, v ...interface{})  { log(context.Background(), slog.LevelWarn, format, v...) }
func Errorf(format string, v ...interface{}) { log(context.Background(), slog.LevelError, format, v...) }
