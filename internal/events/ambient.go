/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package events

import (
	"sync"

	"notesboard/internal/domain"
)

// AmbientSource supplies environment updates that are not tied to an item:
// the pointer position and the viewport size.
type AmbientSource interface {
	SubscribePointer(func(domain.Point)) (unsubscribe func())
	SubscribeResize(func(domain.Size)) (unsubscribe func())
}

// ManualSource is an AmbientSource driven by explicit calls. Hosts without a
// window system (CLI, HTTP service, tests) feed it directly.
type ManualSource struct {
	mu      sync.Mutex
	next    int
	pointer map[int]func(domain.Point)
	resize  map[int]func(domain.Size)
	last    *domain.Point
	size    domain.Size
}

func NewManualSource() *ManualSource {
	return &ManualSource{pointer: map[int]func(domain.Point){}, resize: map[int]func(domain.Size){}}
}

func (m *ManualSource) SubscribePointer(fn func(domain.Point)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := m.next
	m.pointer[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.pointer, id)
		m.mu.Unlock()
	}
}

func (m *ManualSource) SubscribeResize(fn func(domain.Size)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := m.next
	m.resize[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.resize, id)
		m.mu.Unlock()
	}
}

// MovePointer records p and notifies pointer subscribers.
func (m *ManualSource) MovePointer(p domain.Point) {
	m.mu.Lock()
	m.last = &p
	fns := make([]func(domain.Point), 0, len(m.pointer))
	for _, fn := range m.pointer {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
}

// Resize records s and notifies resize subscribers.
func (m *ManualSource) Resize(s domain.Size) {
	m.mu.Lock()
	m.size = s
	fns := make([]func(domain.Size), 0, len(m.resize))
	for _, fn := range m.resize {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

// LastPointer returns the most recent pointer position, if any.
func (m *ManualSource) LastPointer() (domain.Point, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return domain.Point{}, false
	}
	return *m.last, true
}

// Size returns the last reported viewport size.
func (m *ManualSource) Size() domain.Size {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

// Subscribers reports the number of live pointer and resize callbacks.
func (m *ManualSource) Subscribers() (pointer, resize int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pointer), len(m.resize)
}
