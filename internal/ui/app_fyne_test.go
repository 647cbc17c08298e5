//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// These tests drive the board canvas through Fyne's test driver. They are gated
// behind the "fyne" build tag so headless CI does not need Fyne or a display.
// To run locally:
//
//	go test -tags fyne ./internal/ui
package ui

import (
	"fmt"
	"strings"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"

	"notesboard/internal/board"
	"notesboard/internal/domain"
	"notesboard/internal/events"
	applog "notesboard/internal/log"
	"notesboard/internal/panel"
)

func newCanvas(t *testing.T) (*BoardCanvas, *board.Board, *events.ManualSource) {
	t.Helper()
	test.NewTempApp(t)
	scene := domain.Scene{Items: []domain.Item{
		domain.NewItem("b1", domain.Point{X: 10, Y: 10}, domain.DefaultAttrs(domain.KindBox)),
		domain.NewItem("c1", domain.Point{X: 300, Y: 200}, &domain.CircleAttrs{Radius: 30, Color: "#00ff00"}),
	}}
	b, err := board.New(scene, board.WithBounds(400, 300), board.WithClamp(true), board.WithLogger(applog.Discard()))
	if err != nil {
		t.Fatal(err)
	}
	src := events.NewManualSource()
	p := panel.New(b, panel.WithLogger(applog.Discard()), panel.WithAmbient(src))
	t.Cleanup(p.Detach)
	c := NewBoardCanvas(b, p, src)
	c.Resize(fyne.NewSize(400, 300))
	return c, b, src
}

func drag(c *BoardCanvas, x, y, dx, dy float32) {
	c.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(x, y)}, Dragged: fyne.NewDelta(dx, dy)})
}

func TestBoardCanvas_DragMovesItemKeepingGrabOffset(t *testing.T) {
	c, b, _ := newCanvas(t)
	drag(c, 25, 25, 5, 5) // grabbed at (20,20), 10px inside the box
	if b.State() != board.StateDragging {
		t.Fatalf("expected dragging, got %v", b.State())
	}
	drag(c, 60, 70, 35, 45)
	c.DragEnd()

	it, _ := b.Item("b1")
	if it.Position != (domain.Point{X: 50, Y: 60}) {
		t.Fatalf("b1 at %+v, want (50,60)", it.Position)
	}
	if other, _ := b.Item("c1"); other.Position != (domain.Point{X: 300, Y: 200}) {
		t.Fatalf("c1 moved to %+v", other.Position)
	}
	if b.State() != board.StateIdle || !b.CanUndo() {
		t.Fatalf("drag not committed: state=%v canUndo=%v", b.State(), b.CanUndo())
	}
}

func TestBoardCanvas_DragOnEmptySpaceIsIgnored(t *testing.T) {
	c, b, _ := newCanvas(t)
	drag(c, 205, 105, 5, 5)
	c.DragEnd()
	if b.State() != board.StateIdle || b.CanUndo() {
		t.Fatal("empty-space drag should not touch the board")
	}
}

func TestBoardCanvas_CancelDragRestores(t *testing.T) {
	c, b, _ := newCanvas(t)
	drag(c, 25, 25, 5, 5)
	drag(c, 150, 150, 125, 125)
	c.CancelDrag()
	it, _ := b.Item("b1")
	if it.Position != (domain.Point{X: 10, Y: 10}) {
		t.Fatalf("cancel left b1 at %+v", it.Position)
	}
	c.CancelDrag() // idle: no-op
}

func TestBoardCanvas_RemovedItemDuringDragIsNotReported(t *testing.T) {
	c, b, _ := newCanvas(t)
	var reported []error
	c.OnError = func(err error) { reported = append(reported, err) }
	drag(c, 25, 25, 5, 5)
	if err := b.RemoveItem("b1"); err != nil {
		t.Fatal(err)
	}
	drag(c, 40, 40, 15, 15)
	c.DragEnd()
	if len(reported) != 0 {
		t.Fatalf("stale drag should be silent, got %v", reported)
	}
	if b.State() != board.StateIdle {
		t.Fatal("session should be gone")
	}
}

func TestBoardCanvas_SecondaryTapOpensMenu(t *testing.T) {
	c, _, _ := newCanvas(t)
	var at fyne.Position
	c.OnMenu = func(pos fyne.Position) { at = pos }

	c.TappedSecondary(&fyne.PointEvent{Position: fyne.NewPos(30, 30)})
	if !c.p.IsOpen() || c.p.Target() != "b1" {
		t.Fatalf("expected item menu for b1, open=%v target=%q", c.p.IsOpen(), c.p.Target())
	}
	if at != fyne.NewPos(30, 30) {
		t.Fatalf("menu shown at %v", at)
	}

	c.TappedSecondary(&fyne.PointEvent{Position: fyne.NewPos(200, 100)})
	if !c.p.IsOpen() || c.p.Target() != "" {
		t.Fatal("expected scene menu on empty space")
	}
	entries := menuFor(c.p, func(panel.Action) {}).Items
	if len(entries) != 6 || entries[0].Label != "Add box" {
		t.Fatalf("unexpected scene menu: %d entries", len(entries))
	}

	c.Tapped(&fyne.PointEvent{Position: fyne.NewPos(395, 295)})
	if c.p.IsOpen() {
		t.Fatal("tap outside should close the panel")
	}
}

func TestBoardCanvas_MenuActionAddsAtCursor(t *testing.T) {
	c, b, _ := newCanvas(t)
	c.MouseMoved(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(150, 40)}})
	c.TappedSecondary(&fyne.PointEvent{Position: fyne.NewPos(150, 40)})
	var got error
	run := func(a panel.Action) { got = c.p.Invoke(a, nil) }
	for _, mi := range menuFor(c.p, run).Items {
		if mi.Label == "Add box" {
			mi.Action()
		}
	}
	if got != nil {
		t.Fatal(got)
	}
	s := b.Scene()
	if s.Len() != 3 || s.Items[2].Position != (domain.Point{X: 150, Y: 40}) {
		t.Fatalf("new box not at cursor: %+v", s.Items)
	}
}

func TestBoardCanvas_PointerAndResizeFeedAmbient(t *testing.T) {
	c, _, src := newCanvas(t)
	if src.Size() != (domain.Size{Width: 400, Height: 300}) {
		t.Fatalf("size %+v", src.Size())
	}
	c.MouseMoved(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(12, 34)}})
	if p, ok := src.LastPointer(); !ok || p != (domain.Point{X: 12, Y: 34}) {
		t.Fatalf("pointer %+v %v", p, ok)
	}
}

func TestBoardCanvas_ScrollZooms(t *testing.T) {
	c, b, _ := newCanvas(t)
	c.Scrolled(&fyne.ScrollEvent{Scrolled: fyne.NewDelta(0, 1)})
	if b.Zoom() != 1.1 {
		t.Fatalf("zoom %v", b.Zoom())
	}
	c.Scrolled(&fyne.ScrollEvent{Scrolled: fyne.NewDelta(0, -1)})
	c.Scrolled(&fyne.ScrollEvent{Scrolled: fyne.NewDelta(0, -1)})
	if b.Zoom() != 0.9 {
		t.Fatalf("zoom %v", b.Zoom())
	}
}

func TestBoardRenderer_ObjectsFollowScene(t *testing.T) {
	c, b, _ := newCanvas(t)
	if err := b.SetLabel("b1", "todo"); err != nil {
		t.Fatal(err)
	}
	r := test.WidgetRenderer(c)
	r.Refresh()
	objs := r.Objects()
	// background, board area, box, box label, circle
	if len(objs) != 5 {
		t.Fatalf("want 5 objects, got %d", len(objs))
	}
	box, ok := objs[2].(*canvas.Rectangle)
	if !ok || box.Position() != fyne.NewPos(10, 10) || box.Size() != fyne.NewSize(100, 80) {
		t.Fatalf("box object %T at %v size %v", objs[2], objs[2].Position(), objs[2].Size())
	}
	if txt, ok := objs[3].(*canvas.Text); !ok || txt.Text != "todo" {
		t.Fatalf("label object %T", objs[3])
	}
	circle, ok := objs[4].(*canvas.Circle)
	if !ok || circle.Position() != fyne.NewPos(270, 170) || circle.Size() != fyne.NewSize(60, 60) {
		t.Fatalf("circle object %T at %v", objs[4], objs[4].Position())
	}

	b.Clear()
	r.Refresh()
	if len(r.Objects()) != 2 {
		t.Fatalf("cleared board should leave background and area, got %d", len(r.Objects()))
	}
}

func TestOpenWorkspaceCreatesBoard(t *testing.T) {
	dir := t.TempDir()
	ws, err := openWorkspace(dir)
	if err != nil {
		t.Fatal(err)
	}
	if ws.Scene.Len() != 0 || ws.Recovered {
		t.Fatalf("unexpected workspace %+v", ws)
	}
	ws2, err := openWorkspace(dir)
	if err != nil || ws2.Root != ws.Root {
		t.Fatalf("reopen: %v", err)
	}
}

func TestHistoryView_ScrollingToTheEndLoadsOlderEntries(t *testing.T) {
	test.NewTempApp(t)
	v := newHistoryView(seedHistory(t, historyPageSize+5))
	v.scroll.Resize(fyne.NewSize(300, 200))
	if got := len(v.rows.Objects); got != historyPageSize {
		t.Fatalf("first page rows = %d", got)
	}
	if !strings.Contains(v.status.Text, "scroll for older") {
		t.Fatalf("status = %q", v.status.Text)
	}

	v.scroll.OnScrolled(fyne.NewPos(0, 0))
	if got := len(v.rows.Objects); got != historyPageSize {
		t.Fatalf("top of list should not fetch, rows = %d", got)
	}
	bottom := v.rows.MinSize().Height - v.scroll.Size().Height
	v.scroll.OnScrolled(fyne.NewPos(0, bottom))
	if got := len(v.rows.Objects); got != historyPageSize+5 {
		t.Fatalf("rows after reaching the end = %d", got)
	}
	if v.status.Text != fmt.Sprintf("%d changes", historyPageSize+5) {
		t.Fatalf("status = %q", v.status.Text)
	}
}
