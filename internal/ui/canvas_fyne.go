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
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"notesboard/internal/board"
	"notesboard/internal/domain"
	"notesboard/internal/events"
	"notesboard/internal/panel"
	"notesboard/internal/vector"
)

// BoardCanvas draws the board and turns pointer input into drag and menu calls.
// Pointer positions arrive in view coordinates and are converted through the
// board's zoom before they reach the board.
type BoardCanvas struct {
	widget.BaseWidget

	b       *board.Board
	p       *panel.Panel
	ambient *events.ManualSource

	// OnMenu is called after a secondary tap opened the panel; pos is relative
	// to the canvas.
	OnMenu func(pos fyne.Position)
	// OnError reports a failed action. Stale references are not reported.
	OnError func(error)

	dragging bool
	grab     domain.Point // pointer offset from the item position
}

var (
	_ fyne.Draggable         = (*BoardCanvas)(nil)
	_ fyne.Tappable          = (*BoardCanvas)(nil)
	_ fyne.SecondaryTappable = (*BoardCanvas)(nil)
	_ fyne.Scrollable        = (*BoardCanvas)(nil)
	_ desktop.Hoverable      = (*BoardCanvas)(nil)
	_ fyne.WidgetRenderer    = (*boardRenderer)(nil)
)

// NewBoardCanvas creates the widget. ambient may be nil.
func NewBoardCanvas(b *board.Board, p *panel.Panel, ambient *events.ManualSource) *BoardCanvas {
	c := &BoardCanvas{b: b, p: p, ambient: ambient}
	c.ExtendBaseWidget(c)
	return c
}

func viewPoint(pos fyne.Position) domain.Point {
	return domain.Point{X: float64(pos.X), Y: float64(pos.Y)}
}

// Resize also reports the new viewport size to the ambient source.
func (c *BoardCanvas) Resize(size fyne.Size) {
	c.BaseWidget.Resize(size)
	if c.ambient != nil {
		c.ambient.Resize(domain.Size{Width: float64(size.Width), Height: float64(size.Height)})
	}
}

// Dragged starts a drag on the first event over an item and moves it after.
// A drag that starts on empty space is ignored.
func (c *BoardCanvas) Dragged(e *fyne.DragEvent) {
	c.pointer(e.Position)
	if !c.dragging {
		from := viewPoint(fyne.NewPos(e.Position.X-e.Dragged.DX, e.Position.Y-e.Dragged.DY))
		it, ok := c.b.ItemAtView(from)
		if !ok {
			return
		}
		start := c.b.ToBoard(from)
		if err := c.b.StartDrag(it.ID, start); err != nil {
			c.report(err)
			return
		}
		c.dragging = true
		c.grab = domain.Point{X: start.X - it.Position.X, Y: start.Y - it.Position.Y}
	}
	p := c.b.ToBoard(viewPoint(e.Position))
	if err := c.b.UpdateDrag(domain.Point{X: p.X - c.grab.X, Y: p.Y - c.grab.Y}); err != nil {
		c.dragging = false
		c.report(err)
	}
	c.Refresh()
}

// DragEnd commits the running drag.
func (c *BoardCanvas) DragEnd() {
	if !c.dragging {
		return
	}
	c.dragging = false
	c.report(c.b.EndDrag())
	c.Refresh()
}

// CancelDrag puts the dragged item back where it started.
func (c *BoardCanvas) CancelDrag() {
	if !c.dragging {
		return
	}
	c.dragging = false
	c.report(c.b.CancelDrag())
	c.Refresh()
}

// Tapped closes the panel when the tap lands outside it.
func (c *BoardCanvas) Tapped(e *fyne.PointEvent) {
	c.pointer(e.Position)
	c.p.DismissAt(c.b.ToBoard(viewPoint(e.Position)))
}

// TappedSecondary opens the item menu over an item and the scene menu elsewhere.
func (c *BoardCanvas) TappedSecondary(e *fyne.PointEvent) {
	c.pointer(e.Position)
	at := c.b.ToBoard(viewPoint(e.Position))
	if it, ok := c.b.ItemAtView(viewPoint(e.Position)); ok {
		if err := c.p.OpenForItem(it.ID, at.X, at.Y); err != nil {
			c.report(err)
			return
		}
	} else {
		c.p.Open(at.X, at.Y)
	}
	if c.OnMenu != nil {
		c.OnMenu(e.Position)
	}
}

// Scrolled zooms one step per wheel notch.
func (c *BoardCanvas) Scrolled(e *fyne.ScrollEvent) {
	switch {
	case e.Scrolled.DY > 0:
		c.b.ZoomIn()
	case e.Scrolled.DY < 0:
		c.b.ZoomOut()
	default:
		return
	}
	c.Refresh()
}

func (c *BoardCanvas) MouseIn(e *desktop.MouseEvent)    { c.pointer(e.Position) }
func (c *BoardCanvas) MouseMoved(e *desktop.MouseEvent) { c.pointer(e.Position) }
func (c *BoardCanvas) MouseOut()                        {}

func (c *BoardCanvas) pointer(pos fyne.Position) {
	if c.ambient != nil {
		c.ambient.MovePointer(c.b.ToBoard(viewPoint(pos)))
	}
}

func (c *BoardCanvas) report(err error) {
	if err == nil || board.IsBenign(err) || c.OnError == nil {
		return
	}
	c.OnError(err)
}

func (c *BoardCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.NRGBA{R: 236, G: 238, B: 241, A: 255})
	area := canvas.NewRectangle(color.White)
	area.StrokeColor = color.NRGBA{R: 180, G: 180, B: 188, A: 255}
	area.StrokeWidth = 1
	r := &boardRenderer{c: c, bg: bg, area: area}
	r.Layout(c.Size())
	return r
}

// boardRenderer rebuilds the item objects on every layout; boards are small.
type boardRenderer struct {
	c       *BoardCanvas
	bg      *canvas.Rectangle
	area    *canvas.Rectangle
	objects []fyne.CanvasObject
}

func (r *boardRenderer) Destroy()                     {}
func (r *boardRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *boardRenderer) MinSize() fyne.Size           { return fyne.NewSize(320, 240) }
func (r *boardRenderer) Refresh()                     { r.Layout(r.c.Size()); canvas.Refresh(r.c) }

func (r *boardRenderer) Layout(size fyne.Size) {
	b := r.c.b
	r.bg.Move(fyne.NewPos(0, 0))
	r.bg.Resize(size)
	objs := []fyne.CanvasObject{r.bg}
	if bounds, ok := b.Bounds(); ok {
		tl := b.ToView(domain.Point{})
		br := b.ToView(domain.Point{X: bounds.Width, Y: bounds.Height})
		r.area.Move(fyne.NewPos(float32(tl.X), float32(tl.Y)))
		r.area.Resize(fyne.NewSize(float32(br.X-tl.X), float32(br.Y-tl.Y)))
		objs = append(objs, r.area)
	}
	for _, it := range b.Scene().Items {
		objs = append(objs, itemObjects(b, it)...)
	}
	r.objects = objs
}

func fillOf(it domain.Item) vector.Color {
	def := domain.DefaultBoxColor
	if it.Kind() == domain.KindCircle {
		def = domain.DefaultCircleColor
	}
	return vector.ParseHexOr(it.Color(), vector.ParseHexOr(def, vector.Black))
}

// itemObjects returns the shape for it plus its label, placed in view coordinates.
func itemObjects(b *board.Board, it domain.Item) []fyne.CanvasObject {
	x, y, w, h := it.Bounds()
	z := float32(b.Zoom())
	tl := b.ToView(domain.Point{X: x, Y: y})
	pos := fyne.NewPos(float32(tl.X), float32(tl.Y))
	size := fyne.NewSize(float32(w)*z, float32(h)*z)
	fill := fillOf(it)

	var shape fyne.CanvasObject
	switch it.Kind() {
	case domain.KindCircle:
		c := canvas.NewCircle(fill.NRGBA())
		c.StrokeColor = fill.Darken(0.3).NRGBA()
		c.StrokeWidth = 1.5
		shape = c
	default:
		rc := canvas.NewRectangle(fill.NRGBA())
		rc.StrokeColor = fill.Darken(0.3).NRGBA()
		rc.StrokeWidth = 1.5
		rc.CornerRadius = 4 * z
		shape = rc
	}
	shape.Move(pos)
	shape.Resize(size)
	objs := []fyne.CanvasObject{shape}

	if it.Label != "" {
		t := canvas.NewText(it.Label, color.Black)
		t.Alignment = fyne.TextAlignCenter
		t.TextSize = 12 * z
		th := t.MinSize().Height
		t.Move(fyne.NewPos(pos.X, pos.Y+(size.Height-th)/2))
		t.Resize(fyne.NewSize(size.Width, th))
		objs = append(objs, t)
	}
	return objs
}
