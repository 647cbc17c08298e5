/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log provides the slog-based logging used by every notes board tool.
// Console output is a compact human-readable line format; JSON output and an
// optional rotating log file are available for the HTTP service.
// Records are enriched with the board name carried in the context (see WithBoard).
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"notesboard/internal/version"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger initialization.
// Environment variables read by FromEnv:
//   - NB_LOG_LEVEL=debug|info|warn|error
//   - NB_LOG_FORMAT=console|json
//   - NB_LOG_FILE=<path> (rotated JSON log file)
//   - NB_LOG_SOURCE=true|false
type Options struct {
	Level     string
	Format    string // "console" or "json"
	AddSource bool
	File      string
	// Writer replaces stderr for console and json output.
	Writer io.Writer
}

// rotation limits for the optional log file
const (
	fileMaxMB      = 10
	fileMaxBackups = 3
	fileMaxDays    = 28
)

var current atomic.Pointer[slog.Logger]

// L returns the process logger. The first call without a prior Init
// configures it from the environment.
func L() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	Init(FromEnv())
	return current.Load()
}

// Init builds the process logger from opts and installs it as slog.Default.
func Init(opts Options) {
	level := parseLevel(opts.Level)
	hopts := &slog.HandlerOptions{Level: level, AddSource: opts.AddSource}
	out := opts.Writer
	if out == nil {
		out = os.Stderr
	}

	var sinks []slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		sinks = append(sinks, slog.NewJSONHandler(out, hopts))
	default:
		sinks = append(sinks, newPrettyHandler(out, level, opts.AddSource))
	}
	if path := strings.TrimSpace(opts.File); path != "" {
		rot := &lj.Logger{Filename: path, MaxSize: fileMaxMB, MaxBackups: fileMaxBackups, MaxAge: fileMaxDays, Compress: true}
		sinks = append(sinks, slog.NewJSONHandler(rot, hopts))
	}

	var h slog.Handler = multiHandler(sinks)
	if len(sinks) == 1 {
		h = sinks[0]
	}
	l := slog.New(boardHandler{h}).With(
		slog.String("app", "notesboard"),
		slog.String("ver", version.Version),
	)
	current.Store(l)
	slog.SetDefault(l)
}

// FromEnv reads Options from the NB_LOG_* variables.
func FromEnv() Options {
	return Options{
		Level:     getenv("NB_LOG_LEVEL", "info"),
		Format:    getenv("NB_LOG_FORMAT", "console"),
		AddSource: strings.EqualFold(getenv("NB_LOG_SOURCE", "false"), "true"),
		File:      os.Getenv("NB_LOG_FILE"),
	}
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// WithComponent returns L annotated with a component name.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation annotates l with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

// Discard returns a logger that drops everything.
func Discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

type boardKey struct{}

// WithBoard returns a context whose log records carry a board attribute.
func WithBoard(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, boardKey{}, name)
}

// BoardFrom returns the board name stored by WithBoard.
func BoardFrom(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	name, _ := ctx.Value(boardKey{}).(string)
	return name, name != ""
}
