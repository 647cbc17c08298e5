/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package panel implements the context panel: a floating menu opened at a
// screen position that issues scene commands to a board.
package panel

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"notesboard/internal/board"
	"notesboard/internal/domain"
	"notesboard/internal/events"
	applog "notesboard/internal/log"
	"notesboard/internal/sceneio"
	"notesboard/internal/vector"
)

// Sink receives exported documents (a download, a file, the clipboard).
type Sink interface {
	Deliver(name string, data []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(name string, data []byte) error

func (f SinkFunc) Deliver(name string, data []byte) error { return f(name, data) }

// Source yields a document to import.
type Source interface {
	Open() (io.ReadCloser, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (io.ReadCloser, error)

func (f SourceFunc) Open() (io.ReadCloser, error) { return f() }

// Action names a menu entry.
type Action string

const (
	ActAddBox    Action = "add-box"
	ActAddCircle Action = "add-circle"
	ActClear     Action = "clear"
	ActExport    Action = "export"
	ActImport    Action = "import"
	ActCopy      Action = "copy"
	ActPaste     Action = "paste"
	ActDelete    Action = "delete"
)

// Entry is one rendered menu line.
type Entry struct {
	Action  Action
	Label   string
	Enabled bool
}

// Default menu extent used for outside-click detection.
const (
	DefaultWidth  = 180.0
	DefaultHeight = 200.0
)

// ErrNoTarget is returned by item actions when the menu was not opened on an item.
var ErrNoTarget = errors.New("menu has no target item")

// Panel is the context menu state plus its actions.
type Panel struct {
	b    *board.Board
	sink Sink
	log  *slog.Logger
	size domain.Size

	open   bool
	pos    domain.Point
	target string

	cursor  *domain.Point
	unsub   func()
	lastErr error
}

// Option configures a Panel.
type Option func(*Panel)

func WithSink(s Sink) Option           { return func(p *Panel) { p.sink = s } }
func WithLogger(l *slog.Logger) Option { return func(p *Panel) { p.log = l } }
func WithSize(w, h float64) Option     { return func(p *Panel) { p.size = domain.Size{Width: w, Height: h} } }
func WithAmbient(src events.AmbientSource) Option {
	return func(p *Panel) {
		p.unsub = src.SubscribePointer(func(pt domain.Point) { p.cursor = &pt })
	}
}

// New creates a closed panel for b.
func New(b *board.Board, opts ...Option) *Panel {
	p := &Panel{b: b, size: domain.Size{Width: DefaultWidth, Height: DefaultHeight}}
	for _, o := range opts {
		o(p)
	}
	if p.log == nil {
		p.log = applog.WithComponent("panel")
	}
	return p
}

// Detach releases the ambient subscription. Safe to call more than once.
func (p *Panel) Detach() {
	if p.unsub != nil {
		p.unsub()
		p.unsub = nil
	}
}

// Open shows the scene menu at (x, y).
func (p *Panel) Open(x, y float64) {
	p.open, p.pos, p.target = true, domain.Point{X: x, Y: y}, ""
}

// OpenForItem shows the item menu for id at (x, y).
func (p *Panel) OpenForItem(id string, x, y float64) error {
	if _, ok := p.b.Item(id); !ok {
		return fmt.Errorf("open item menu %q: %w", id, board.ErrItemNotFound)
	}
	p.open, p.pos, p.target = true, domain.Point{X: x, Y: y}, id
	return nil
}

func (p *Panel) Close()                 { p.open, p.target = false, "" }
func (p *Panel) IsOpen() bool           { return p.open }
func (p *Panel) Position() domain.Point { return p.pos }
func (p *Panel) Target() string         { return p.target }

// LastError is the error of the most recent action, for inline display.
func (p *Panel) LastError() error { return p.lastErr }

// DismissAt closes the panel when pt lies outside it. It reports whether the
// panel was closed.
func (p *Panel) DismissAt(pt domain.Point) bool {
	if !p.open {
		return false
	}
	r := vector.R(p.pos.X, p.pos.Y, p.size.Width, p.size.Height)
	if r.Contains(vector.Pt{X: pt.X, Y: pt.Y}) {
		return false
	}
	p.Close()
	return true
}

// Entries lists the menu lines for the current mode.
func (p *Panel) Entries() []Entry {
	if p.target != "" {
		return []Entry{
			{Action: ActCopy, Label: "Copy", Enabled: true},
			{Action: ActPaste, Label: "Paste", Enabled: p.b.HasClipboard()},
			{Action: ActDelete, Label: "Delete", Enabled: true},
		}
	}
	return []Entry{
		{Action: ActAddBox, Label: "Add box", Enabled: true},
		{Action: ActAddCircle, Label: "Add circle", Enabled: true},
		{Action: ActPaste, Label: "Paste", Enabled: p.b.HasClipboard()},
		{Action: ActClear, Label: "Clear scene", Enabled: p.b.Scene().Len() > 0},
		{Action: ActExport, Label: "Export", Enabled: p.sink != nil},
		{Action: ActImport, Label: "Import", Enabled: true},
	}
}

// Invoke runs action; src is only used by ActImport.
func (p *Panel) Invoke(a Action, src Source) error {
	var err error
	switch a {
	case ActAddBox:
		_, err = p.AddBox()
	case ActAddCircle:
		_, err = p.AddCircle()
	case ActClear:
		p.ClearScene()
	case ActExport:
		_, err = p.Export()
	case ActImport:
		err = p.Import(src)
	case ActCopy:
		err = p.Copy()
	case ActPaste:
		_, err = p.Paste()
	case ActDelete:
		err = p.Delete()
	default:
		err = fmt.Errorf("unknown action %q", a)
		p.lastErr = err
	}
	return err
}

func (p *Panel) AddBox() (domain.Item, error)    { return p.AddWithLabel(domain.KindBox, "") }
func (p *Panel) AddCircle() (domain.Item, error) { return p.AddWithLabel(domain.KindCircle, "") }

// AddWithLabel adds an item of kind k at the usual placement, already labelled.
func (p *Panel) AddWithLabel(k domain.Kind, label string) (domain.Item, error) {
	defer p.Close()
	it, err := p.b.AddLabeled(k, p.placement(k), label)
	p.done("add", err)
	return it, err
}

// placement picks where a new item goes: its bounding box top-left sits at the
// last cursor position, else at the menu position, else the item is centred
// on the board.
func (p *Panel) placement(k domain.Kind) domain.Point {
	var topLeft domain.Point
	sample := domain.NewItem("", domain.Point{}, domain.DefaultAttrs(k))
	sz := sample.Size()
	switch {
	case p.cursor != nil:
		topLeft = *p.cursor
	case p.open:
		topLeft = p.pos
	default:
		if b, ok := p.b.Bounds(); ok {
			topLeft = domain.Point{X: b.Width/2 - sz.Width/2, Y: b.Height/2 - sz.Height/2}
		}
	}
	// item positions are top-left for boxes and the centre for circles
	x, y, _, _ := sample.Bounds()
	return domain.Point{X: topLeft.X - x, Y: topLeft.Y - y}
}

// ClearScene empties the board.
func (p *Panel) ClearScene() {
	defer p.Close()
	p.b.Clear()
	p.done("clear", nil)
}

// Export serializes the scene and hands it to the sink as board.json.
func (p *Panel) Export() ([]byte, error) {
	defer p.Close()
	data, err := sceneio.Export(p.b.Scene())
	if err == nil && p.sink != nil {
		err = p.sink.Deliver(sceneio.FileName, data)
	}
	p.done("export", err)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Import replaces the scene with the document from src. On error the scene is
// left as it was and the error is kept for LastError.
func (p *Panel) Import(src Source) error {
	defer p.Close()
	err := p.importFrom(src)
	p.done("import", err)
	return err
}

func (p *Panel) importFrom(src Source) error {
	if src == nil {
		return errors.New("import: no source")
	}
	rc, err := src.Open()
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	defer func() { _ = rc.Close() }()
	s, err := sceneio.Decode(rc)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	return p.b.Replace(s)
}

// Copy puts the target item on the clipboard.
func (p *Panel) Copy() error {
	defer p.Close()
	if p.target == "" {
		p.done("copy", ErrNoTarget)
		return ErrNoTarget
	}
	err := p.b.Copy(p.target)
	p.done("copy", err)
	return err
}

// Paste inserts the clipboard item.
func (p *Panel) Paste() (domain.Item, error) {
	defer p.Close()
	it, err := p.b.Paste()
	p.done("paste", err)
	return it, err
}

// Delete removes the target item.
func (p *Panel) Delete() error {
	defer p.Close()
	if p.target == "" {
		p.done("delete", ErrNoTarget)
		return ErrNoTarget
	}
	err := p.b.RemoveItem(p.target)
	p.done("delete", err)
	return err
}

func (p *Panel) done(op string, err error) {
	p.lastErr = err
	if err != nil {
		p.log.Warn("panel action failed", slog.String("op", op), slog.Any("err", err))
		return
	}
	p.log.Debug("panel action", slog.String("op", op))
}
