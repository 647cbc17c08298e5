/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Command notesboard edits a notes board from the shell, serves it over HTTP
// and, when built with -tags fyne, opens it in a desktop window.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"notesboard/internal/board"
	"notesboard/internal/config"
	"notesboard/internal/crash"
	applog "notesboard/internal/log"
	"notesboard/internal/storage"
	"notesboard/internal/version"
)

// current is the workspace of the running command, autosaved on a panic.
var current *storage.Workspace

func main() {
	applog.Init(applog.FromEnv())
	defer crash.RecoverWith(func() *storage.Workspace { return current })

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "notesboard",
		Short:         "Notes Board: a draggable board of boxes and circles",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		versionCmd(),
		initCmd(),
		showCmd(),
		addCmd(),
		moveCmd(),
		rmCmd(),
		labelCmd(),
		clearCmd(),
		undoCmd(),
		historyCmd(),
		exportCmd(),
		importCmd(),
		serveCmd(),
		remoteCmd(),
		uiCmd(),
	)
	return root
}

// loadConfig returns the user config, or the defaults when it cannot be read.
func loadConfig() config.AppConfig {
	cfg, err := config.Load()
	if err != nil {
		applog.WithComponent("cli").Warn("config load failed; using defaults", slog.Any("err", err))
		return config.Defaults()
	}
	return cfg
}

// openBoard opens the workspace in dir and builds a board over its scene.
func openBoard(dir string, opts ...board.Option) (*storage.Workspace, *board.Board, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, nil, err
	}
	l := applog.WithComponent("cli")
	ws, err := storage.Open(abs)
	if err != nil {
		return nil, nil, err
	}
	current = ws
	if ws.Recovered {
		l.Warn("board restored from backup", slog.String("root", abs))
	}
	cfg := loadConfig()
	base := []board.Option{
		board.WithBounds(cfg.Board.Width, cfg.Board.Height),
		board.WithClamp(cfg.Board.Clamp),
		board.WithHistoryDepth(cfg.Board.HistoryDepth),
		board.WithLogger(l),
	}
	b, err := board.New(ws.Scene, append(base, opts...)...)
	if err != nil {
		return nil, nil, err
	}
	return ws, b, nil
}
