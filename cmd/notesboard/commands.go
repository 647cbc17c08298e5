/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"notesboard/internal/backend"
	"notesboard/internal/board"
	"notesboard/internal/config"
	"notesboard/internal/debug"
	"notesboard/internal/domain"
	"notesboard/internal/events"
	"notesboard/internal/export"
	applog "notesboard/internal/log"
	"notesboard/internal/sceneio"
	"notesboard/internal/server"
	"notesboard/internal/storage"
	"notesboard/internal/ui"
	"notesboard/internal/version"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Notes Board", version.String())
		},
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <dir>",
		Short: "Create an empty board in <dir>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if _, err := os.Stat(filepath.Join(abs, storage.BoardFileName)); err == nil {
				return fmt.Errorf("%s already holds a board", abs)
			}
			ws, err := storage.InitWorkspace(abs, domain.Scene{})
			if err != nil {
				return err
			}
			current = ws
			fmt.Fprintln(cmd.OutOrStdout(), "Created board at", abs)
			return nil
		},
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <dir>",
		Short: "List the items on the board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, _, err := openBoard(args[0])
			if err != nil {
				return err
			}
			printScene(cmd, ws.Scene)
			return nil
		},
	}
}

func printScene(cmd *cobra.Command, s domain.Scene) {
	out := cmd.OutOrStdout()
	if s.Len() == 0 {
		fmt.Fprintln(out, "Board is empty.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tX\tY\tSIZE\tCOLOR\tLABEL")
	for _, it := range s.Items {
		sz := it.Size()
		fmt.Fprintf(tw, "%s\t%s\t%g\t%g\t%gx%g\t%s\t%s\n", it.ID, it.Kind(), it.Position.X, it.Position.Y, sz.Width, sz.Height, it.Color(), it.Label)
	}
	_ = tw.Flush()
}

func parsePoint(xs, ys string) (domain.Point, error) {
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return domain.Point{}, fmt.Errorf("x: %w", err)
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return domain.Point{}, fmt.Errorf("y: %w", err)
	}
	return domain.Point{X: x, Y: y}, nil
}

// mutate applies fn to the board in dir and saves it. The scene as it was
// before goes to the history index so that undo can restore it.
func mutate(ctx context.Context, dir, reason string, fn func(*board.Board) error, opts ...board.Option) (*storage.Workspace, error) {
	ws, b, err := openBoard(dir, opts...)
	if err != nil {
		return nil, err
	}
	before, err := sceneio.Export(ws.Scene)
	if err != nil {
		return nil, err
	}
	if err := fn(b); err != nil {
		return nil, err
	}
	if err := storage.SaveSnapshot(ctx, ws, reason, before, time.Now()); err != nil {
		return nil, err
	}
	ws.Scene = b.Scene()
	if err := storage.Save(ws); err != nil {
		return nil, err
	}
	return ws, nil
}

func addCmd() *cobra.Command {
	var label string
	cmd := &cobra.Command{
		Use:   "add <dir> box|circle <x> <y>",
		Short: "Add a box or circle at (x, y)",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(args[1])
			if err != nil {
				return err
			}
			at, err := parsePoint(args[2], args[3])
			if err != nil {
				return err
			}
			var added domain.Item
			_, err = mutate(cmd.Context(), args[0], "add", func(b *board.Board) error {
				it, err := b.AddLabeled(kind, at, label)
				added = it
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s at (%g, %g)\n", added.ID, added.Position.X, added.Position.Y)
			return nil
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "text shown on the item")
	return cmd
}

func moveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <dir> <id> <x> <y>",
		Short: "Drag an item to (x, y) and print the debug overlay",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := parsePoint(args[2], args[3])
			if err != nil {
				return err
			}
			bus := events.NewBus(applog.WithComponent("cli"))
			overlay := debug.New()
			overlay.Attach(bus, nil)
			defer overlay.Close()
			_, err = mutate(cmd.Context(), args[0], "move", func(b *board.Board) error {
				it, ok := b.Item(args[1])
				if !ok {
					return fmt.Errorf("move %q: %w", args[1], board.ErrItemNotFound)
				}
				if err := b.StartDrag(it.ID, it.Position); err != nil {
					return err
				}
				if err := b.UpdateDrag(to); err != nil {
					return err
				}
				return b.EndDrag()
			}, board.WithBus(bus))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), overlay.Render())
			return nil
		},
	}
}

func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <dir> <id>",
		Short: "Remove an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := mutate(cmd.Context(), args[0], "remove", func(b *board.Board) error {
				return b.RemoveItem(args[1])
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Removed", args[1])
			return nil
		},
	}
}

func labelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "label <dir> <id> <text>",
		Short: "Set the label of an item",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := mutate(cmd.Context(), args[0], "label", func(b *board.Board) error {
				return b.SetLabel(args[1], args[2])
			})
			return err
		},
	}
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <dir>",
		Short: "Remove every item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := mutate(cmd.Context(), args[0], "clear", func(b *board.Board) error {
				b.Clear()
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Board cleared.")
			return nil
		},
	}
}

func undoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo <dir>",
		Short: "Restore the board as it was before the last change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, _, err := openBoard(args[0])
			if err != nil {
				return err
			}
			snap, ok, err := storage.LatestSnapshot(cmd.Context(), ws)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to undo.")
				return nil
			}
			s, err := sceneio.Import(snap.Blob)
			if err != nil {
				return fmt.Errorf("history entry %d: %w", snap.ID, err)
			}
			ws.Scene = s
			if err := storage.Save(ws); err != nil {
				return err
			}
			// the entry goes only once the restored board is on disk
			if _, err := storage.DeleteSnapshot(cmd.Context(), ws, snap.ID); err != nil {
				return fmt.Errorf("drop history entry %d: %w", snap.ID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Undid %s (%d items)\n", snap.Reason, s.Len())
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <dir>",
		Short: "List the recorded changes, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, _, err := openBoard(args[0])
			if err != nil {
				return err
			}
			snaps, err := storage.ListSnapshots(cmd.Context(), ws, limit)
			if err != nil {
				return err
			}
			if len(snaps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No history.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTIME\tCHANGE\tITEMS BEFORE")
			for _, s := range snaps {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", s.ID, s.TS.Local().Format(time.DateTime), s.Reason, s.Items)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries to show")
	return cmd
}

func exportCmd() *cobra.Command {
	var (
		format string
		out    string
		scale  float64
		labels bool
	)
	cmd := &cobra.Command{
		Use:   "export <dir>",
		Short: "Write the board as JSON, SVG, PNG or PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			ws, _, err := openBoard(args[0])
			if err != nil {
				return err
			}
			opt := export.DefaultOptions()
			opt.Scale = scale
			opt.Labels = labels
			path, err := export.ExportFile(ws, f, out, opt)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Exported to", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", string(export.FormatJSON), "json, svg, png or pdf")
	cmd.Flags().StringVar(&out, "out", "", "output file (default <dir>/exports/board.<ext>)")
	cmd.Flags().Float64Var(&scale, "scale", 1, "PNG pixel scale")
	cmd.Flags().BoolVar(&labels, "labels", true, "draw item labels")
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir> <file|url>",
		Short: "Replace the board with a scene document",
		Long: `Replace the board with the scene read from a file or an http(s) URL.
A document that is not a valid scene leaves the board unchanged.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := readScene(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			_, err = mutate(cmd.Context(), args[0], "import", func(b *board.Board) error {
				return b.Replace(s)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d items\n", s.Len())
			return nil
		},
	}
}

func readScene(ctx context.Context, src string) (domain.Scene, error) {
	cfg := loadConfig()
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Server.ImportTimeoutMs)*time.Millisecond)
		defer cancel()
		return sceneio.Fetch(ctx, http.DefaultClient, src, cfg.Server.MaxImportBytes)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return domain.Scene{}, err
	}
	return sceneio.Import(data)
}

func serveCmd() *cobra.Command {
	var addr, dir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if dir != "" {
				cfg.Server.Workspace = dir
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().StringVar(&dir, "workspace", "", "directory whose board is loaded and saved")
	return cmd
}

func serve(ctx context.Context, cfg config.AppConfig) error {
	l := applog.WithComponent("server")
	scfg := server.Config{
		Width:          cfg.Board.Width,
		Height:         cfg.Board.Height,
		Clamp:          cfg.Board.Clamp,
		HistoryDepth:   cfg.Board.HistoryDepth,
		CORSOrigins:    cfg.Server.CORSOrigins,
		MaxImportBytes: cfg.Server.MaxImportBytes,
		ImportTimeout:  time.Duration(cfg.Server.ImportTimeoutMs) * time.Millisecond,
		Logger:         l,
	}
	if cfg.Server.Workspace != "" {
		ws, err := openOrInit(cfg.Server.Workspace)
		if err != nil {
			return err
		}
		current = ws
		scfg.Workspace = ws
	}
	if cfg.Backend.DSN != "" {
		dsn, err := config.ResolveDSN(cfg.Backend)
		if err != nil {
			return err
		}
		timeout := time.Duration(cfg.Backend.TimeoutMs) * time.Millisecond
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		octx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		store, err := backend.Open(octx, dsn)
		if err != nil {
			return fmt.Errorf("backend: %w", err)
		}
		defer func() { _ = store.Close() }()
		if err := store.Migrate(octx); err != nil {
			return fmt.Errorf("backend: %w", err)
		}
		scfg.Store = store
	}
	srv, err := server.New(scfg)
	if err != nil {
		return err
	}
	defer srv.Close()
	return srv.Run(ctx, cfg.Server.Addr)
}

func openOrInit(dir string) (*storage.Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(abs, storage.BoardFileName)); errors.Is(err, os.ErrNotExist) {
		return storage.InitWorkspace(abs, domain.Scene{})
	}
	return storage.Open(abs)
}

func uiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ui [dir]",
		Short: "Open the board in a desktop window (build with -tags fyne)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var dir string
			if len(args) == 1 {
				dir = args[0]
			}
			return ui.Run(dir)
		},
	}
}
