/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a report file plus an autosave of the board.
package crash

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	applog "notesboard/internal/log"
	"notesboard/internal/storage"
	"notesboard/internal/version"
)

// Swapped by tests.
var (
	exitFn           = os.Exit
	stderr io.Writer = os.Stderr
)

const exitCode = 2

// Recover handles a panic in the calling goroutine: it logs the stack,
// writes a crash report, autosaves the board of ws when ws is non-nil and
// exits with status 2.
//
// Usage: defer crash.Recover(ws)
func Recover(ws *storage.Workspace) {
	if r := recover(); r != nil {
		handle(ws, r)
	}
}

// RecoverWith is Recover for callers that learn the workspace after the defer,
// such as a CLI that opens it while parsing arguments. current may return nil.
//
// Usage: defer crash.RecoverWith(func() *storage.Workspace { return ws })
func RecoverWith(current func() *storage.Workspace) {
	if r := recover(); r != nil {
		handle(current(), r)
	}
}

func handle(ws *storage.Workspace, r any) {
	log := applog.WithComponent("crash")
	stack := debug.Stack()
	log.Error("panic", slog.Any("value", r), slog.String("stack", string(stack)))

	report, err := writeReport(ws, r, stack)
	if err != nil {
		log.Error("crash report not written", slog.String("path", report), slog.Any("err", err))
	}
	if ws != nil {
		saved, err := storage.AutosaveCrashSnapshot(ws)
		if err != nil {
			log.Error("crash autosave failed", slog.Any("err", err))
		} else {
			log.Info("board autosaved", slog.String("path", saved))
		}
	}

	_, _ = fmt.Fprintf(stderr, "Notes Board stopped unexpectedly.\nCrash report: %s\nVersion: %s (%s/%s)\n",
		report, version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(exitCode)
}

// reportDir is the backups directory of ws, or the system temp dir.
func reportDir(ws *storage.Workspace) string {
	if ws == nil || ws.Root == "" {
		return os.TempDir()
	}
	dir := filepath.Join(ws.Root, storage.BackupsDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return os.TempDir()
	}
	return dir
}

// writeReport stores a plain-text description of the panic and returns its path.
func writeReport(ws *storage.Workspace, value any, stack []byte) (string, error) {
	now := time.Now()
	path := filepath.Join(reportDir(ws), "crash-"+now.Format("20060102-150405.000")+".log")

	lines := []string{
		"Notes Board Crash Report",
		"Timestamp: " + now.Format(time.RFC3339),
		"Version: " + version.String(),
		"OS/Arch: " + runtime.GOOS + "/" + runtime.GOARCH,
	}
	if ws != nil {
		lines = append(lines,
			"Workspace: "+ws.Root,
			fmt.Sprintf("Board: %s (%d items)", ws.BoardPath, ws.Scene.Len()))
	}
	lines = append(lines, "", fmt.Sprintf("Panic: %v", value), "", "Stack:", string(stack))

	f, err := os.Create(path)
	if err != nil {
		return path, err
	}
	if _, err := io.WriteString(f, strings.Join(lines, "\n")+"\n"); err != nil {
		_ = f.Close()
		return path, err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return path, err
	}
	return path, f.Close()
}
