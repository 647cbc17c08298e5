/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package undo keeps bounded undo/redo stacks of opaque scene snapshots.
package undo

import (
	"sync"
	"time"
)

// Snapshot is a reversible state blob. Blob content is opaque to the manager;
// its size is estimated as len(Blob).
type Snapshot struct {
	Reason string
	Blob   []byte
	TS     time.Time
}

// Config controls depth and memory caps and coalescing.
type Config struct {
	// MaxDepth limits the number of undo entries kept (0 means unlimited).
	MaxDepth int
	// MaxBytes is a soft cap; the oldest entries are pruned when exceeded.
	MaxBytes int
	// MinInterval coalesces pushes with the same Reason captured within the
	// interval, keeping the older state. Zero disables coalescing.
	MinInterval time.Duration
}

// DefaultDepth is the number of states kept when no depth is configured.
const DefaultDepth = 50

// Manager is an undo/redo stack pair. It is safe for concurrent use.
type Manager struct {
	cfg        Config
	mu         sync.Mutex
	undo       []Snapshot
	redo       []Snapshot
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxDepth < 0 {
		cfg.MaxDepth = DefaultDepth
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024 // 16 MiB
	}
	return &Manager{cfg: cfg}
}

// Push records the state before a change and clears the redo stack.
func (m *Manager) Push(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearRedoLocked()
	if n := len(m.undo); n > 0 && m.cfg.MinInterval > 0 {
		last := m.undo[n-1]
		if last.Reason == s.Reason && s.TS.Sub(last.TS) < m.cfg.MinInterval {
			// the earlier state is the one to return to; just refresh the timestamp
			m.undo[n-1].TS = s.TS
			return
		}
	}
	m.undo = append(m.undo, s)
	m.totalBytes += len(s.Blob)
	m.enforceCapsLocked()
}

// Undo pops the most recent state and parks current on the redo stack.
func (m *Manager) Undo(current Snapshot) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.undo)
	if n == 0 {
		return Snapshot{}, false
	}
	s := m.undo[n-1]
	m.undo = m.undo[:n-1]
	m.totalBytes -= len(s.Blob)
	m.redo = append(m.redo, current)
	m.totalBytes += len(current.Blob)
	return s, true
}

// Redo pops from redo and parks current back on the undo stack.
func (m *Manager) Redo(current Snapshot) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.redo)
	if n == 0 {
		return Snapshot{}, false
	}
	s := m.redo[n-1]
	m.redo = m.redo[:n-1]
	m.totalBytes -= len(s.Blob)
	m.undo = append(m.undo, current)
	m.totalBytes += len(current.Blob)
	m.enforceCapsLocked()
	return s, true
}

func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo) > 0
}

func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo) > 0
}

// Clear drops both stacks.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo, m.redo, m.totalBytes = nil, nil, 0
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes, undoDepth, redoDepth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalBytes, len(m.undo), len(m.redo)
}

func (m *Manager) clearRedoLocked() {
	for _, s := range m.redo {
		m.totalBytes -= len(s.Blob)
	}
	m.redo = nil
}

func (m *Manager) enforceCapsLocked() {
	if m.cfg.MaxDepth > 0 && len(m.undo) > m.cfg.MaxDepth {
		toDrop := len(m.undo) - m.cfg.MaxDepth
		for i := 0; i < toDrop; i++ {
			m.totalBytes -= len(m.undo[i].Blob)
		}
		m.undo = append([]Snapshot{}, m.undo[toDrop:]...)
	}
	// keep at least one entry so the latest change stays undoable
	for m.totalBytes > m.cfg.MaxBytes && len(m.undo) > 1 {
		m.totalBytes -= len(m.undo[0].Blob)
		m.undo = m.undo[1:]
	}
}
