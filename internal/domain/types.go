/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package domain defines the notes board data model: a Scene of placed Items.
package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Point is a position in board (unzoomed pixel) coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Kind discriminates the shape of an Item.
type Kind string

const (
	KindBox    Kind = "box"
	KindCircle Kind = "circle"
)

// Kinds lists every known kind in menu order.
var Kinds = []Kind{KindBox, KindCircle}

func (k Kind) Valid() bool { return k == KindBox || k == KindCircle }

// ParseKind accepts a kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown item kind %q", s)
	}
	return k, nil
}

// Defaults used when an item is created from the context panel.
const (
	DefaultBoxWidth     = 100.0
	DefaultBoxHeight    = 80.0
	DefaultBoxColor     = "#4a90e2"
	DefaultCircleRadius = 50.0
	DefaultCircleColor  = "#f5a623"
)

// Attrs is the kind-specific part of an Item. The set of implementations is closed;
// switch over *BoxAttrs and *CircleAttrs.
type Attrs interface {
	Kind() Kind
	sealed()
}

// BoxAttrs holds box display attributes. Position is the top-left corner.
type BoxAttrs struct {
	Width  float64
	Height float64
	Color  string
}

// CircleAttrs holds circle display attributes. Position is the centre.
type CircleAttrs struct {
	Radius float64
	Color  string
}

func (*BoxAttrs) Kind() Kind    { return KindBox }
func (*CircleAttrs) Kind() Kind { return KindCircle }
func (*BoxAttrs) sealed()       {}
func (*CircleAttrs) sealed()    {}

// DefaultAttrs returns fresh default attributes for a kind.
func DefaultAttrs(k Kind) Attrs {
	switch k {
	case KindCircle:
		return &CircleAttrs{Radius: DefaultCircleRadius, Color: DefaultCircleColor}
	default:
		return &BoxAttrs{Width: DefaultBoxWidth, Height: DefaultBoxHeight, Color: DefaultBoxColor}
	}
}

// Item is a single placed shape.
type Item struct {
	ID       string
	Position Point
	Label    string
	attrs    Attrs
}

// NewItem builds an item; attrs decides the kind.
func NewItem(id string, pos Point, attrs Attrs) Item {
	return Item{ID: id, Position: pos, attrs: cloneAttrs(attrs)}
}

// Kind returns the item's kind, or "" for an item without attributes.
func (it Item) Kind() Kind {
	if it.attrs == nil {
		return ""
	}
	return it.attrs.Kind()
}

// Attrs returns a copy of the kind-specific attributes.
func (it Item) Attrs() Attrs { return cloneAttrs(it.attrs) }

// WithAttrs returns a copy of the item carrying attrs.
func (it Item) WithAttrs(a Attrs) Item {
	it.attrs = cloneAttrs(a)
	return it
}

// Size returns the extent of the item's bounding box.
func (it Item) Size() Size {
	switch a := it.attrs.(type) {
	case *BoxAttrs:
		return Size{Width: a.Width, Height: a.Height}
	case *CircleAttrs:
		return Size{Width: 2 * a.Radius, Height: 2 * a.Radius}
	}
	return Size{}
}

// Bounds returns the axis-aligned bounding box as x, y, w, h.
func (it Item) Bounds() (x, y, w, h float64) {
	switch a := it.attrs.(type) {
	case *BoxAttrs:
		return it.Position.X, it.Position.Y, a.Width, a.Height
	case *CircleAttrs:
		return it.Position.X - a.Radius, it.Position.Y - a.Radius, 2 * a.Radius, 2 * a.Radius
	}
	return it.Position.X, it.Position.Y, 0, 0
}

// Color returns the display colour.
func (it Item) Color() string {
	switch a := it.attrs.(type) {
	case *BoxAttrs:
		return a.Color
	case *CircleAttrs:
		return a.Color
	}
	return ""
}

// Clone returns a deep copy.
func (it Item) Clone() Item {
	it.attrs = cloneAttrs(it.attrs)
	return it
}

func cloneAttrs(a Attrs) Attrs {
	switch v := a.(type) {
	case *BoxAttrs:
		if v == nil {
			return nil
		}
		c := *v
		return &c
	case *CircleAttrs:
		if v == nil {
			return nil
		}
		c := *v
		return &c
	}
	return nil
}

// Problems lists everything wrong with the item; nil means valid.
func (it Item) Problems() []string {
	var out []string
	if strings.TrimSpace(it.ID) == "" {
		out = append(out, "item id is empty")
	}
	if !finite(it.Position.X) || !finite(it.Position.Y) {
		out = append(out, fmt.Sprintf("item %q: position is not finite", it.ID))
	}
	switch a := it.attrs.(type) {
	case *BoxAttrs:
		if !(a.Width > 0) || !(a.Height > 0) || !finite(a.Width) || !finite(a.Height) {
			out = append(out, fmt.Sprintf("item %q: box size must be positive", it.ID))
		}
	case *CircleAttrs:
		if !(a.Radius > 0) || !finite(a.Radius) {
			out = append(out, fmt.Sprintf("item %q: circle radius must be positive", it.ID))
		}
	default:
		out = append(out, fmt.Sprintf("item %q: missing shape attributes", it.ID))
	}
	return out
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// Scene is the ordered item collection; later items draw on top.
type Scene struct {
	Items []Item
}

// Len returns the number of items.
func (s Scene) Len() int { return len(s.Items) }

// Index returns the position of id in Items, or -1.
func (s Scene) Index(id string) int {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// Find returns a copy of the item with the given id.
func (s Scene) Find(id string) (Item, bool) {
	if i := s.Index(id); i >= 0 {
		return s.Items[i].Clone(), true
	}
	return Item{}, false
}

// Has reports whether an item with id exists.
func (s Scene) Has(id string) bool { return s.Index(id) >= 0 }

// Clone returns a deep copy. The copy of an empty scene has a non-nil empty slice.
func (s Scene) Clone() Scene {
	items := make([]Item, len(s.Items))
	for i, it := range s.Items {
		items[i] = it.Clone()
	}
	return Scene{Items: items}
}

// Problems lists everything that makes the scene invalid.
func (s Scene) Problems() []string {
	var out []string
	seen := make(map[string]bool, len(s.Items))
	for _, it := range s.Items {
		out = append(out, it.Problems()...)
		if it.ID == "" {
			continue
		}
		if seen[it.ID] {
			out = append(out, fmt.Sprintf("duplicate item id %q", it.ID))
		}
		seen[it.ID] = true
	}
	return out
}

// ErrInvalidScene is wrapped by Validate failures.
var ErrInvalidScene = errors.New("invalid scene")

// Validate returns an error wrapping ErrInvalidScene when Problems is non-empty.
func (s Scene) Validate() error {
	if p := s.Problems(); len(p) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidScene, strings.Join(p, "; "))
	}
	return nil
}
