/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package board

import "errors"

var (
	// ErrInvalidTransition is returned when a drag or history call does not fit the
	// current state. Nothing changes when it is returned.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrItemNotFound is returned when an id does not name an item in the scene.
	ErrItemNotFound = errors.New("item not found")
	// ErrClipboardEmpty is returned by Paste before anything was copied.
	ErrClipboardEmpty = errors.New("clipboard is empty")
	// ErrNoHistory is returned by Undo/Redo when there is nothing to step to.
	ErrNoHistory = errors.New("no history entry")
)

// IsBenign reports whether err is a stale reference that interactive callers
// may ignore, such as a drag update for an item that was removed meanwhile.
func IsBenign(err error) bool {
	return errors.Is(err, ErrItemNotFound) || errors.Is(err, ErrNoHistory)
}
