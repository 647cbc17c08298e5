//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"notesboard/internal/board"
	"notesboard/internal/config"
	"notesboard/internal/crash"
	"notesboard/internal/debug"
	"notesboard/internal/domain"
	"notesboard/internal/events"
	"notesboard/internal/export"
	applog "notesboard/internal/log"
	"notesboard/internal/panel"
	"notesboard/internal/storage"
	"notesboard/internal/version"
)

// Run opens the board in dir (the working directory when empty) in a desktop
// window. The board is saved after every change.
func Run(dir string) error {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("version", version.String()))

	cfg, err := config.Load()
	if err != nil {
		l.Warn("config load failed; using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}
	ws, err := openWorkspace(dir)
	if err != nil {
		return err
	}
	defer crash.Recover(ws)
	if ws.Recovered {
		l.Warn("board restored from backup", slog.String("root", ws.Root))
	}

	bus := events.NewBus(l)
	b, err := board.New(ws.Scene,
		board.WithBus(bus),
		board.WithBounds(cfg.Board.Width, cfg.Board.Height),
		board.WithClamp(cfg.Board.Clamp),
		board.WithHistoryDepth(cfg.Board.HistoryDepth),
		board.WithLogger(l),
	)
	if err != nil {
		return fmt.Errorf("load board: %w", err)
	}
	ambient := events.NewManualSource()
	overlay := debug.New()
	overlay.Attach(bus, ambient)
	defer overlay.Close()

	fyneApp := app.NewWithID("notesboard")
	w := fyneApp.NewWindow("Notes Board")
	prefs := fyneApp.Preferences()
	winW := max(prefs.IntWithFallback("window.width", 1100), 640)
	winH := max(prefs.IntWithFallback("window.height", 760), 480)
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Ready")
	debugLabel := widget.NewLabel("")
	debugLabel.TextStyle = fyne.TextStyle{Monospace: true}
	debugLabel.Hide()

	p := panel.New(b,
		panel.WithLogger(l),
		panel.WithAmbient(ambient),
		panel.WithSink(panel.SinkFunc(func(name string, data []byte) error {
			out := filepath.Join(ws.Root, storage.ExportsDirName, name)
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			status.SetText("Exported to " + out)
			return nil
		})),
	)
	defer p.Detach()

	bc := NewBoardCanvas(b, p, ambient)
	bc.OnError = func(err error) { dialog.ShowError(err, w) }

	showDebug := func() {
		if debugLabel.Visible() {
			debugLabel.SetText(overlay.Render())
		}
	}
	defer bus.Subscribe(events.ObserverFunc(func(events.DragEvent) { showDebug() }))()
	defer ambient.SubscribePointer(func(domain.Point) { showDebug() })()

	defer b.OnChange(func(s domain.Scene) {
		ws.Scene = s
		if err := storage.Save(ws); err != nil {
			l.Error("save failed", slog.Any("err", err))
			status.SetText("Save failed: " + err.Error())
			return
		}
		status.SetText(fmt.Sprintf("Saved %d items", s.Len()))
	})()

	invoke := func(a panel.Action) {
		if a == panel.ActImport {
			importDialog(w, p, bc)
			return
		}
		if err := p.Invoke(a, nil); err != nil && !board.IsBenign(err) {
			dialog.ShowError(err, w)
		}
		bc.Refresh()
	}
	bc.OnMenu = func(pos fyne.Position) {
		widget.ShowPopUpMenuAtRelativePosition(menuFor(p, invoke), w.Canvas(), pos, bc)
	}

	step := func(name string, fn func() error) {
		err := fn()
		switch {
		case errors.Is(err, board.ErrNoHistory):
			status.SetText("Nothing to " + name)
		case err != nil:
			dialog.ShowError(err, w)
		}
		bc.Refresh()
	}
	undo := func() { step("undo", b.Undo) }
	redo := func() { step("redo", b.Redo) }
	// copy takes the item under the pointer
	copyItem := func() {
		at, ok := ambient.LastPointer()
		if !ok {
			return
		}
		it, ok := b.ItemAt(at)
		if !ok {
			return
		}
		if err := b.Copy(it.ID); err != nil {
			dialog.ShowError(err, w)
			return
		}
		status.SetText("Copied " + it.ID)
	}
	paste := func() {
		it, err := b.Paste()
		switch {
		case errors.Is(err, board.ErrClipboardEmpty):
			status.SetText("Clipboard is empty")
		case err != nil:
			dialog.ShowError(err, w)
		default:
			status.SetText("Pasted " + it.ID)
		}
		bc.Refresh()
	}
	zoom := func(fn func() float64) func() {
		return func() {
			status.SetText(fmt.Sprintf("Zoom %.0f%%", fn()*100))
			bc.Refresh()
		}
	}
	toggleDebug := func() {
		if debugLabel.Visible() {
			debugLabel.Hide()
			return
		}
		debugLabel.Show()
		showDebug()
	}
	exportAs := func(f export.Format) func() {
		return func() {
			out, err := export.ExportFile(ws, f, "", export.DefaultOptions())
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			status.SetText("Exported to " + out)
		}
	}

	var exportItems []*fyne.MenuItem
	for _, f := range export.Formats {
		exportItems = append(exportItems, fyne.NewMenuItem(strings.ToUpper(string(f)), exportAs(f)))
	}
	exportMenu := fyne.NewMenuItem("Export", nil)
	exportMenu.ChildMenu = fyne.NewMenu("", exportItems...)
	importItem := fyne.NewMenuItem("Import...", func() { importDialog(w, p, bc) })
	clearItem := fyne.NewMenuItem("Clear Scene", func() { invoke(panel.ActClear) })
	undoItem := fyne.NewMenuItem("Undo", undo)
	redoItem := fyne.NewMenuItem("Redo", redo)
	copyMenu := fyne.NewMenuItem("Copy", copyItem)
	pasteMenu := fyne.NewMenuItem("Paste", paste)
	addBox := fyne.NewMenuItem("Add Box", func() { invoke(panel.ActAddBox) })
	addCircle := fyne.NewMenuItem("Add Circle", func() { invoke(panel.ActAddCircle) })
	zoomIn := fyne.NewMenuItem("Zoom In", zoom(b.ZoomIn))
	zoomOut := fyne.NewMenuItem("Zoom Out", zoom(b.ZoomOut))
	zoomReset := fyne.NewMenuItem("Actual Size", zoom(b.ResetZoom))
	debugItem := fyne.NewMenuItem("Debug Overlay", toggleDebug)
	historyItem := fyne.NewMenuItem("History...", func() { showHistory(fyneApp, ws) })
	aboutItem := fyne.NewMenuItem("About", func() {
		dialog.ShowInformation("About", "Notes Board "+version.String()+"\n"+ws.Root, w)
	})

	undoItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierControl}
	redoItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyY, Modifier: fyne.KeyModifierControl}
	copyMenu.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyC, Modifier: fyne.KeyModifierControl}
	pasteMenu.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyV, Modifier: fyne.KeyModifierControl}
	zoomIn.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyEqual, Modifier: fyne.KeyModifierControl}
	zoomOut.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyMinus, Modifier: fyne.KeyModifierControl}
	zoomReset.Shortcut = &desktop.CustomShortcut{KeyName: fyne.Key0, Modifier: fyne.KeyModifierControl}
	debugItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyD, Modifier: fyne.KeyModifierControl}
	for _, mi := range []*fyne.MenuItem{undoItem, redoItem, copyMenu, pasteMenu, zoomIn, zoomOut, zoomReset, debugItem} {
		action := mi.Action
		w.Canvas().AddShortcut(mi.Shortcut, func(fyne.Shortcut) { action() })
	}

	w.SetMainMenu(fyne.NewMainMenu(
		fyne.NewMenu("File", importItem, exportMenu, fyne.NewMenuItemSeparator(), clearItem),
		fyne.NewMenu("Edit", undoItem, redoItem, fyne.NewMenuItemSeparator(), copyMenu, pasteMenu, fyne.NewMenuItemSeparator(), addBox, addCircle),
		fyne.NewMenu("View", zoomIn, zoomOut, zoomReset, fyne.NewMenuItemSeparator(), debugItem, historyItem),
		fyne.NewMenu("Help", aboutItem),
	))

	// Escape and losing focus end a drag without moving the item.
	w.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		if ev.Name == fyne.KeyEscape {
			bc.CancelDrag()
		}
	})
	fyneApp.Lifecycle().SetOnExitedForeground(bc.CancelDrag)

	w.SetContent(container.NewBorder(nil, container.NewVBox(debugLabel, status), nil, nil, bc))
	w.SetOnClosed(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
	})
	w.ShowAndRun()
	l.Info("UI closed")
	return nil
}

// openWorkspace opens the board in dir, creating an empty one when there is
// no board file yet.
func openWorkspace(dir string) (*storage.Workspace, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(abs, storage.BoardFileName)); errors.Is(err, os.ErrNotExist) {
		return storage.InitWorkspace(abs, domain.Scene{})
	}
	return storage.Open(abs)
}

// menuFor builds the popup menu from the panel's current entries.
func menuFor(p *panel.Panel, run func(panel.Action)) *fyne.Menu {
	entries := p.Entries()
	items := make([]*fyne.MenuItem, 0, len(entries))
	for _, e := range entries {
		mi := fyne.NewMenuItem(e.Label, func() { run(e.Action) })
		mi.Disabled = !e.Enabled
		items = append(items, mi)
	}
	return fyne.NewMenu("", items...)
}

// importDialog asks for a scene file and replaces the board with it. A file
// that is not a valid scene leaves the board untouched.
func importDialog(w fyne.Window, p *panel.Panel, bc *BoardCanvas) {
	fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		if rc == nil {
			return
		}
		src := panel.SourceFunc(func() (io.ReadCloser, error) { return rc, nil })
		if err := p.Invoke(panel.ActImport, src); err != nil {
			dialog.ShowError(err, w)
			return
		}
		bc.Refresh()
	}, w)
	fd.SetFilter(fstorage.NewExtensionFileFilter([]string{".json"}))
	fd.Show()
}
