/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package board implements the drag container: it owns the scene, the single
// drag session, the undo history and the clipboard. A Board is not safe for
// concurrent use; hosts serialize access.
package board

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"notesboard/internal/domain"
	"notesboard/internal/events"
	applog "notesboard/internal/log"
	"notesboard/internal/undo"
	"notesboard/internal/vector"
)

// Board is the scene owner.
type Board struct {
	scene   domain.Scene
	session *DragSession
	stale   bool
	bus     *events.Bus
	hist    *undo.Manager
	log     *slog.Logger
	newID   func(domain.Kind) string
	now     func() time.Time

	bounds    domain.Size
	hasBounds bool
	clamp     bool

	clipboard *domain.Item
	zoom      float64

	nextListener int
	listeners    map[int]func(domain.Scene)
}

// Option configures a Board.
type Option func(*Board)

// WithBounds sets the board area; item positions are kept inside it unless
// WithClamp(false) is also given.
func WithBounds(w, h float64) Option {
	return func(b *Board) {
		b.bounds = domain.Size{Width: w, Height: h}
		b.hasBounds = w > 0 && h > 0
	}
}

// WithClamp toggles clamping to the bounds.
func WithClamp(on bool) Option { return func(b *Board) { b.clamp = on } }

// WithBus publishes drag events to bus.
func WithBus(bus *events.Bus) Option { return func(b *Board) { b.bus = bus } }

// WithHistoryDepth caps the undo stack. Zero or negative uses undo.DefaultDepth.
func WithHistoryDepth(n int) Option {
	return func(b *Board) {
		if n <= 0 {
			n = undo.DefaultDepth
		}
		b.hist = undo.NewManager(undo.Config{MaxDepth: n})
	}
}

func WithLogger(l *slog.Logger) Option { return func(b *Board) { b.log = l } }

// WithIDGenerator replaces the default "<kind>-<uuid>" id scheme.
func WithIDGenerator(fn func(domain.Kind) string) Option { return func(b *Board) { b.newID = fn } }

// WithClock replaces time.Now for history timestamps.
func WithClock(fn func() time.Time) Option { return func(b *Board) { b.now = fn } }

// New creates a board holding a copy of initial.
func New(initial domain.Scene, opts ...Option) (*Board, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	b := &Board{
		scene:     initial.Clone(),
		newID:     defaultID,
		now:       time.Now,
		clamp:     true,
		zoom:      1,
		listeners: map[int]func(domain.Scene){},
	}
	for _, o := range opts {
		o(b)
	}
	if b.hist == nil {
		b.hist = undo.NewManager(undo.Config{MaxDepth: undo.DefaultDepth})
	}
	if b.log == nil {
		b.log = applog.WithComponent("board")
	}
	return b, nil
}

func defaultID(k domain.Kind) string { return fmt.Sprintf("%s-%s", k, uuid.NewString()) }

// Scene returns a deep copy of the current scene.
func (b *Board) Scene() domain.Scene { return b.scene.Clone() }

// Bounds returns the configured board area.
func (b *Board) Bounds() (domain.Size, bool) { return b.bounds, b.hasBounds }

// Item returns a copy of the item with id.
func (b *Board) Item(id string) (domain.Item, bool) { return b.scene.Find(id) }

// ItemAt returns the top-most item under p, given in board coordinates.
func (b *Board) ItemAt(p domain.Point) (domain.Item, bool) {
	i := vector.TopMost(b.scene.Items, vector.Pt{X: p.X, Y: p.Y})
	if i < 0 {
		return domain.Item{}, false
	}
	return b.scene.Items[i].Clone(), true
}

// OnChange registers fn to receive the scene after every committed change.
// The returned func unregisters it.
func (b *Board) OnChange(fn func(domain.Scene)) func() {
	b.nextListener++
	id := b.nextListener
	b.listeners[id] = fn
	return func() { delete(b.listeners, id) }
}

func (b *Board) changed(op string) {
	b.log.Debug("scene changed", slog.String("op", op), slog.Int("items", len(b.scene.Items)))
	if len(b.listeners) == 0 {
		return
	}
	s := b.scene.Clone()
	for _, fn := range b.listeners {
		fn(s)
	}
}

// AddItem appends a new item of kind at p with default attributes.
func (b *Board) AddItem(kind domain.Kind, p domain.Point) (domain.Item, error) {
	return b.AddLabeled(kind, p, "")
}

// AddLabeled is AddItem with a label, recorded as a single history step.
func (b *Board) AddLabeled(kind domain.Kind, p domain.Point, label string) (domain.Item, error) {
	if !kind.Valid() {
		return domain.Item{}, fmt.Errorf("add item: unknown kind %q", kind)
	}
	it := domain.NewItem("", p, domain.DefaultAttrs(kind))
	it.Label = label
	return b.insert(it, "add")
}

func (b *Board) insert(it domain.Item, op string) (domain.Item, error) {
	id, err := b.freshID(it.Kind())
	if err != nil {
		return domain.Item{}, err
	}
	it.ID = id
	it.Position = b.clampPosition(it, it.Position)
	b.record(op)
	b.scene.Items = append(b.scene.Items, it)
	b.changed(op)
	return it.Clone(), nil
}

func (b *Board) freshID(k domain.Kind) (string, error) {
	for i := 0; i < 16; i++ {
		id := b.newID(k)
		if id != "" && !b.scene.Has(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique %s id", k)
}

// RemoveItem deletes the item. A drag on it is dropped.
func (b *Board) RemoveItem(id string) error {
	i := b.scene.Index(id)
	if i < 0 {
		return fmt.Errorf("remove %q: %w", id, ErrItemNotFound)
	}
	b.record("remove")
	b.scene.Items = append(b.scene.Items[:i:i], b.scene.Items[i+1:]...)
	b.dropSession(false)
	b.changed("remove")
	return nil
}

// Clear empties the scene. A running drag is dropped.
func (b *Board) Clear() {
	b.record("clear")
	b.scene = domain.Scene{Items: []domain.Item{}}
	b.dropSession(true)
	b.changed("clear")
}

// Replace swaps in a validated copy of s. On error nothing changes.
func (b *Board) Replace(s domain.Scene) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("replace scene: %w", err)
	}
	b.record("replace")
	b.scene = s.Clone()
	b.dropSession(true)
	b.changed("replace")
	return nil
}

// SetLabel sets or clears (empty string) the item's label.
func (b *Board) SetLabel(id, label string) error {
	i := b.scene.Index(id)
	if i < 0 {
		return fmt.Errorf("set label %q: %w", id, ErrItemNotFound)
	}
	b.record("label")
	b.scene.Items[i].Label = label
	b.changed("label")
	return nil
}

// Resize replaces the item's attributes. attrs must match the item's kind.
func (b *Board) Resize(id string, attrs domain.Attrs) error {
	i := b.scene.Index(id)
	if i < 0 {
		return fmt.Errorf("resize %q: %w", id, ErrItemNotFound)
	}
	cur := b.scene.Items[i]
	if attrs == nil || attrs.Kind() != cur.Kind() {
		return fmt.Errorf("resize %q: attributes do not match kind %s", id, cur.Kind())
	}
	next := cur.WithAttrs(attrs)
	if p := next.Problems(); len(p) > 0 {
		return fmt.Errorf("resize %q: %s", id, p[0])
	}
	next.Position = b.clampPosition(next, next.Position)
	b.record("resize")
	b.scene.Items[i] = next
	b.changed("resize")
	return nil
}

// Copy puts a copy of the item on the clipboard.
func (b *Board) Copy(id string) error {
	it, ok := b.scene.Find(id)
	if !ok {
		return fmt.Errorf("copy %q: %w", id, ErrItemNotFound)
	}
	b.clipboard = &it
	return nil
}

// HasClipboard reports whether Paste would succeed.
func (b *Board) HasClipboard() bool { return b.clipboard != nil }

// pasteOffset is the distance between a copied item and its pasted duplicate.
const pasteOffset = 20.0

// Paste inserts a duplicate of the clipboard item shifted by pasteOffset. When
// the duplicate would overflow the bounds it is pulled back with a margin.
func (b *Board) Paste() (domain.Item, error) {
	if b.clipboard == nil {
		return domain.Item{}, ErrClipboardEmpty
	}
	it := b.clipboard.Clone()
	it.Position.X += pasteOffset
	it.Position.Y += pasteOffset
	if b.hasBounds {
		x, y, w, h := it.Bounds()
		if x+w > b.bounds.Width {
			it.Position.X += b.bounds.Width - w - pasteOffset - x
		}
		if y+h > b.bounds.Height {
			it.Position.Y += b.bounds.Height - h - pasteOffset - y
		}
	}
	return b.insert(it, "paste")
}

// clampPosition returns pos adjusted so that its bounding box stays inside the
// board area. Without bounds or with clamping off pos is returned unchanged.
func (b *Board) clampPosition(it domain.Item, pos domain.Point) domain.Point {
	if !b.hasBounds || !b.clamp {
		return pos
	}
	it.Position = pos
	x, y, w, h := it.Bounds()
	dx, dy := vector.R(x, y, w, h).ClampInto(vector.R(0, 0, b.bounds.Width, b.bounds.Height))
	return domain.Point{X: pos.X + dx, Y: pos.Y + dy}
}

// record pushes the current scene onto the undo stack.
func (b *Board) record(reason string) {
	blob, err := json.Marshal(b.scene)
	if err != nil {
		// items are validated on entry; a failure here means a programming error
		b.log.Error("history snapshot failed", slog.String("reason", reason), slog.Any("err", err))
		return
	}
	b.hist.Push(undo.Snapshot{Reason: reason, Blob: blob, TS: b.now()})
}
