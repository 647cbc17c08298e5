/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package debug mirrors drag state and ambient pointer/viewport updates for
// on-screen diagnostics. It only observes; the board never depends on it.
package debug

import (
	"fmt"
	"strings"
	"sync"

	"notesboard/internal/domain"
	"notesboard/internal/events"
)

// DragInfo is the drag part of the overlay.
type DragInfo struct {
	ItemID   string  `json:"itemId"`
	StartX   float64 `json:"startX"`
	StartY   float64 `json:"startY"`
	CurrentX float64 `json:"currentX"`
	CurrentY float64 `json:"currentY"`
}

// Info is what the overlay shows.
type Info struct {
	MouseX       float64   `json:"mouseX"`
	MouseY       float64   `json:"mouseY"`
	WindowWidth  float64   `json:"windowWidth"`
	WindowHeight float64   `json:"windowHeight"`
	LastAction   string    `json:"lastAction"`
	Drag         *DragInfo `json:"drag,omitempty"`
}

// Overlay collects Info from a bus and an ambient source.
type Overlay struct {
	mu     sync.Mutex
	info   Info
	unsubs []func()
}

func New() *Overlay { return &Overlay{} }

// Attach subscribes to bus and src; either may be nil. Attaching again first
// releases the previous subscriptions.
func (o *Overlay) Attach(bus *events.Bus, src events.AmbientSource) {
	o.Close()
	var unsubs []func()
	if bus != nil {
		unsubs = append(unsubs, bus.Subscribe(o))
	}
	if src != nil {
		unsubs = append(unsubs,
			src.SubscribePointer(o.onPointer),
			src.SubscribeResize(o.onResize),
		)
	}
	o.mu.Lock()
	o.unsubs = unsubs
	o.mu.Unlock()
}

// Close releases every subscription. Safe to call more than once.
func (o *Overlay) Close() {
	o.mu.Lock()
	unsubs := o.unsubs
	o.unsubs = nil
	o.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

// OnDragEvent implements events.Observer.
func (o *Overlay) OnDragEvent(e events.DragEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch e.Type {
	case events.DragStart:
		o.info.LastAction = "Started dragging " + e.ItemID
		o.info.Drag = dragInfo(e)
	case events.DragMove:
		o.info.LastAction = "Dragging " + e.ItemID
		o.info.Drag = dragInfo(e)
	case events.DragEnd:
		x, y := e.CurrentX, e.CurrentY
		if e.EndX != nil && e.EndY != nil {
			x, y = *e.EndX, *e.EndY
		}
		o.info.LastAction = fmt.Sprintf("Dropped %s at (%g, %g)", e.ItemID, x, y)
		o.info.Drag = nil
	case events.DragCancel:
		o.info.LastAction = "Cancelled dragging " + e.ItemID
		o.info.Drag = nil
	}
}

func dragInfo(e events.DragEvent) *DragInfo {
	return &DragInfo{ItemID: e.ItemID, StartX: e.StartX, StartY: e.StartY, CurrentX: e.CurrentX, CurrentY: e.CurrentY}
}

func (o *Overlay) onPointer(p domain.Point) {
	o.mu.Lock()
	o.info.MouseX, o.info.MouseY = p.X, p.Y
	o.mu.Unlock()
}

func (o *Overlay) onResize(s domain.Size) {
	o.mu.Lock()
	o.info.WindowWidth, o.info.WindowHeight = s.Width, s.Height
	o.mu.Unlock()
}

// Snapshot returns a copy of the current info.
func (o *Overlay) Snapshot() Info {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.info
	if o.info.Drag != nil {
		d := *o.info.Drag
		out.Drag = &d
	}
	return out
}

// Render formats the info as a small text block.
func (o *Overlay) Render() string {
	in := o.Snapshot()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Mouse: (%g, %g)\n", in.MouseX, in.MouseY)
	fmt.Fprintf(&sb, "Window: %g x %g\n", in.WindowWidth, in.WindowHeight)
	action := in.LastAction
	if action == "" {
		action = "-"
	}
	fmt.Fprintf(&sb, "Last action: %s\n", action)
	if in.Drag != nil {
		fmt.Fprintf(&sb, "Drag: %s from (%g, %g) to (%g, %g)\n", in.Drag.ItemID, in.Drag.StartX, in.Drag.StartY, in.Drag.CurrentX, in.Drag.CurrentY)
	}
	return sb.String()
}
