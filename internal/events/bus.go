/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package events carries advisory drag notifications from the board to optional
// observers such as the debug overlay.
package events

import (
	"fmt"
	"log/slog"
	"sync"

	"notesboard/internal/domain"
	applog "notesboard/internal/log"
)

// DragEventType names a drag lifecycle step.
type DragEventType string

const (
	DragStart  DragEventType = "dragStart"
	DragMove   DragEventType = "dragMove"
	DragEnd    DragEventType = "dragEnd"
	DragCancel DragEventType = "dragCancel"
)

// DragEvent is published by the board on every drag transition. EndX/EndY are
// only set on DragEnd.
type DragEvent struct {
	Type     DragEventType `json:"type"`
	ItemID   string        `json:"itemId"`
	StartX   float64       `json:"startX"`
	StartY   float64       `json:"startY"`
	CurrentX float64       `json:"currentX"`
	CurrentY float64       `json:"currentY"`
	EndX     *float64      `json:"endX,omitempty"`
	EndY     *float64      `json:"endY,omitempty"`
}

// NewDragEvent builds an event; end is only recorded for DragEnd.
func NewDragEvent(t DragEventType, id string, start, current domain.Point) DragEvent {
	ev := DragEvent{Type: t, ItemID: id, StartX: start.X, StartY: start.Y, CurrentX: current.X, CurrentY: current.Y}
	if t == DragEnd {
		x, y := current.X, current.Y
		ev.EndX, ev.EndY = &x, &y
	}
	return ev
}

func (e DragEvent) String() string {
	s := fmt.Sprintf("%s %s start=(%g,%g) current=(%g,%g)", e.Type, e.ItemID, e.StartX, e.StartY, e.CurrentX, e.CurrentY)
	if e.EndX != nil && e.EndY != nil {
		s += fmt.Sprintf(" end=(%g,%g)", *e.EndX, *e.EndY)
	}
	return s
}

// Observer receives drag events.
type Observer interface {
	OnDragEvent(DragEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(DragEvent)

func (f ObserverFunc) OnDragEvent(e DragEvent) { f(e) }

type subscription struct {
	id  uint64
	obs Observer
}

// Bus fans events out to subscribers synchronously in subscription order.
// Observers must not block; a panicking observer is logged and skipped.
type Bus struct {
	mu     sync.Mutex
	next   uint64
	subs   []subscription
	logger *slog.Logger
}

// NewBus returns an empty bus. A nil logger uses the component logger.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = applog.WithComponent("events")
	}
	return &Bus{logger: logger}
}

// Subscribe registers obs and returns an idempotent unsubscribe func.
func (b *Bus) Subscribe(obs Observer) func() {
	b.mu.Lock()
	b.next++
	id := b.next
	b.subs = append(b.subs, subscription{id: id, obs: obs})
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers e to every current subscriber. The subscriber list is
// snapshotted first so observers may unsubscribe from inside the callback.
func (b *Bus) Publish(e DragEvent) {
	if b == nil {
		return
	}
	b.mu.Lock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()
	for _, s := range subs {
		b.deliver(s.obs, e)
	}
}

func (b *Bus) deliver(obs Observer, e DragEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("observer panicked", slog.String("event", string(e.Type)), slog.String("item", e.ItemID), slog.Any("panic", r))
		}
	}()
	obs.OnDragEvent(e)
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
