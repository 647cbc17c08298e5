/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package board

import (
	"encoding/json"
	"fmt"

	"notesboard/internal/domain"
	"notesboard/internal/undo"
)

func (b *Board) CanUndo() bool { return b.State() == StateIdle && b.hist.CanUndo() }
func (b *Board) CanRedo() bool { return b.State() == StateIdle && b.hist.CanRedo() }

// Undo restores the scene before the last command.
func (b *Board) Undo() error {
	return b.step("undo", b.hist.Undo)
}

// Redo re-applies the last undone command.
func (b *Board) Redo() error {
	return b.step("redo", b.hist.Redo)
}

func (b *Board) step(op string, pop func(undo.Snapshot) (undo.Snapshot, bool)) error {
	if b.State() == StateDragging {
		return fmt.Errorf("%s while dragging: %w", op, ErrInvalidTransition)
	}
	cur, err := json.Marshal(b.scene)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s, ok := pop(undo.Snapshot{Reason: op, Blob: cur, TS: b.now()})
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrNoHistory)
	}
	var next domain.Scene
	if err := json.Unmarshal(s.Blob, &next); err != nil {
		return fmt.Errorf("%s: decode snapshot: %w", op, err)
	}
	b.scene = next
	b.session, b.stale = nil, false
	b.changed(op)
	return nil
}

// HistoryDepth returns the number of undo and redo entries.
func (b *Board) HistoryDepth() (undoDepth, redoDepth int) {
	_, u, r := b.hist.Stats()
	return u, r
}
