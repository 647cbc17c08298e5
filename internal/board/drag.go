/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package board

import (
	"fmt"
	"log/slog"

	"notesboard/internal/domain"
	"notesboard/internal/events"
)

// State is the drag state of a board.
type State int

const (
	StateIdle State = iota
	StateDragging
)

func (s State) String() string {
	if s == StateDragging {
		return "dragging"
	}
	return "idle"
}

// DragSession describes the drag in progress.
type DragSession struct {
	ItemID  string
	Start   domain.Point // pointer position at dragStart
	Origin  domain.Point // item position before the drag
	Current domain.Point // item position after the last update
}

// State returns the current drag state. A session whose item vanished counts
// as idle.
func (b *Board) State() State {
	if b.session != nil && !b.stale {
		return StateDragging
	}
	return StateIdle
}

// Session returns a copy of the active drag session.
func (b *Board) Session() (DragSession, bool) {
	if b.State() != StateDragging {
		return DragSession{}, false
	}
	return *b.session, true
}

// StartDrag begins dragging id with the pointer at p.
func (b *Board) StartDrag(id string, p domain.Point) error {
	if b.stale {
		b.session, b.stale = nil, false
	}
	if b.session != nil {
		return fmt.Errorf("start drag %q while dragging %q: %w", id, b.session.ItemID, ErrInvalidTransition)
	}
	it, ok := b.scene.Find(id)
	if !ok {
		return fmt.Errorf("start drag %q: %w", id, ErrItemNotFound)
	}
	b.session = &DragSession{ItemID: id, Start: p, Origin: it.Position, Current: it.Position}
	b.log.Debug("drag started", slog.String("item", id))
	b.publish(events.NewDragEvent(events.DragStart, id, p, p))
	return nil
}

// UpdateDrag moves the dragged item to p, clamped to the bounds.
func (b *Board) UpdateDrag(p domain.Point) error {
	i, err := b.sessionItem("update drag")
	if err != nil {
		return err
	}
	pos := b.clampPosition(b.scene.Items[i], p)
	b.scene.Items[i].Position = pos
	b.session.Current = pos
	b.publish(events.NewDragEvent(events.DragMove, b.session.ItemID, b.session.Start, pos))
	return nil
}

// EndDrag commits the drag. One history entry is recorded when the item moved.
func (b *Board) EndDrag() error {
	i, err := b.sessionItem("end drag")
	if err != nil {
		return err
	}
	s := *b.session
	b.session = nil
	if s.Current != s.Origin {
		moved := b.scene.Items[i].Position
		b.scene.Items[i].Position = s.Origin
		b.record("move")
		b.scene.Items[i].Position = moved
		b.changed("move")
	}
	b.log.Debug("drag ended", slog.String("item", s.ItemID), slog.Float64("x", s.Current.X), slog.Float64("y", s.Current.Y))
	b.publish(events.NewDragEvent(events.DragEnd, s.ItemID, s.Start, s.Current))
	return nil
}

// CancelDrag restores the item to where it was before the drag.
func (b *Board) CancelDrag() error {
	i, err := b.sessionItem("cancel drag")
	if err != nil {
		return err
	}
	s := *b.session
	b.session = nil
	b.scene.Items[i].Position = s.Origin
	b.log.Debug("drag cancelled", slog.String("item", s.ItemID))
	b.publish(events.NewDragEvent(events.DragCancel, s.ItemID, s.Start, s.Origin))
	return nil
}

// sessionItem resolves the dragged item. A session whose item vanished is
// dropped and ErrItemNotFound returned.
func (b *Board) sessionItem(op string) (int, error) {
	if b.session == nil {
		return -1, fmt.Errorf("%s while idle: %w", op, ErrInvalidTransition)
	}
	i := b.scene.Index(b.session.ItemID)
	if b.stale || i < 0 {
		id := b.session.ItemID
		b.session, b.stale = nil, false
		return -1, fmt.Errorf("%s %q: %w", op, id, ErrItemNotFound)
	}
	return i, nil
}

// dropSession marks a running drag as stale after its item was removed or the
// scene replaced. The next drag call reports ErrItemNotFound and clears it.
func (b *Board) dropSession(force bool) {
	if b.session == nil {
		return
	}
	if force || !b.scene.Has(b.session.ItemID) {
		b.stale = true
		b.log.Debug("drag session dropped", slog.String("item", b.session.ItemID))
	}
}

func (b *Board) publish(e events.DragEvent) {
	if b.bus != nil {
		b.bus.Publish(e)
	}
}
