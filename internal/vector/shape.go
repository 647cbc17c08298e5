/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import "notesboard/internal/domain"

// Shape is the hit-testable outline of a board item.
type Shape interface {
	Bounds() Rect
	Hit(p Pt) bool
}

// RectShape is an axis-aligned box.
type RectShape struct{ Rect Rect }

func (s RectShape) Bounds() Rect  { return s.Rect }
func (s RectShape) Hit(p Pt) bool { return s.Rect.Contains(p) }

// EllipseShape is an ellipse inscribed in Rect.
type EllipseShape struct{ Rect Rect }

func (s EllipseShape) Bounds() Rect { return s.Rect }

func (s EllipseShape) Hit(p Pt) bool {
	// point-in-ellipse: ((x-cx)/rx)^2 + ((y-cy)/ry)^2 <= 1
	rx, ry := s.Rect.W/2, s.Rect.H/2
	if rx == 0 || ry == 0 {
		return false
	}
	c := s.Rect.Center()
	dx := (p.X - c.X) / rx
	dy := (p.Y - c.Y) / ry
	return dx*dx+dy*dy <= 1
}

// ShapeOf returns the outline of an item in board coordinates.
func ShapeOf(it domain.Item) Shape {
	x, y, w, h := it.Bounds()
	if it.Kind() == domain.KindCircle {
		return EllipseShape{Rect: R(x, y, w, h)}
	}
	return RectShape{Rect: R(x, y, w, h)}
}

// TopMost returns the index of the last item whose outline contains p, or -1.
// Later items draw on top, so the search runs back to front.
func TopMost(items []domain.Item, p Pt) int {
	for i := len(items) - 1; i >= 0; i-- {
		if ShapeOf(items[i]).Hit(p) {
			return i
		}
	}
	return -1
}

// BoundsOf returns the union of all item bounds; ok is false for no items.
func BoundsOf(items []domain.Item) (r Rect, ok bool) {
	for i, it := range items {
		b := ShapeOf(it).Bounds()
		if i == 0 {
			r = b
			continue
		}
		r = r.Union(b)
	}
	return r, len(items) > 0
}
