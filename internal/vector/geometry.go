/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import "math"

// Pt is a point in board space.
type Pt struct{ X, Y float64 }

// Rect is an axis-aligned rectangle with its origin at the top-left corner.
type Rect struct {
	X, Y float64
	W, H float64
}

// R is shorthand for a Rect literal.
func R(x, y, w, h float64) Rect { return Rect{X: x, Y: y, W: w, H: h} }

func (r Rect) right() float64  { return r.X + r.W }
func (r Rect) bottom() float64 { return r.Y + r.H }

// Center returns the midpoint of r.
func (r Rect) Center() Pt { return Pt{X: r.X + r.W/2, Y: r.Y + r.H/2} }

// Empty reports whether r has no area.
func (r Rect) Empty() bool { return !(r.W > 0 && r.H > 0) }

// Contains reports whether p lies in r, edges included.
func (r Rect) Contains(p Pt) bool {
	return p.X >= r.X && p.X <= r.right() && p.Y >= r.Y && p.Y <= r.bottom()
}

// Inset shrinks r by dx and dy on each side. Negative values grow it.
func (r Rect) Inset(dx, dy float64) Rect {
	return R(r.X+dx, r.Y+dy, r.W-dx-dx, r.H-dy-dy)
}

// Union is the smallest rectangle covering r and o.
func (r Rect) Union(o Rect) Rect {
	x0, y0 := math.Min(r.X, o.X), math.Min(r.Y, o.Y)
	x1, y1 := math.Max(r.right(), o.right()), math.Max(r.bottom(), o.bottom())
	return R(x0, y0, x1-x0, y1-y0)
}

// ClampInto returns the shift that brings r inside area. An axis on which r
// does not fit is pinned to the area's leading edge.
func (r Rect) ClampInto(area Rect) (dx, dy float64) {
	return shift(r.X, r.W, area.X, area.W), shift(r.Y, r.H, area.Y, area.H)
}

func shift(at, size, from, span float64) float64 {
	switch {
	case size >= span, at < from:
		return from - at
	case at+size > from+span:
		return from + span - at - size
	}
	return 0
}

// Affine2D maps (x, y) to (A*x + C*y + E, B*x + D*y + F).
type Affine2D struct{ A, B, C, D, E, F float64 }

// Identity leaves points unchanged.
var Identity = Affine2D{A: 1, D: 1}

// Mul returns the transform that applies n first and then m.
func (m Affine2D) Mul(n Affine2D) Affine2D {
	var out Affine2D
	out.A, out.B = m.A*n.A+m.C*n.B, m.B*n.A+m.D*n.B
	out.C, out.D = m.A*n.C+m.C*n.D, m.B*n.C+m.D*n.D
	out.E = m.A*n.E + m.C*n.F + m.E
	out.F = m.B*n.E + m.D*n.F + m.F
	return out
}

// Apply maps p through m.
func (m Affine2D) Apply(p Pt) Pt {
	return Pt{X: m.A*p.X + m.C*p.Y + m.E, Y: m.B*p.X + m.D*p.Y + m.F}
}

// Invert returns the inverse of m, or Identity when m is singular.
func (m Affine2D) Invert() Affine2D {
	det := m.A*m.D - m.B*m.C
	if det == 0 {
		return Identity
	}
	a, b, c, d := m.D/det, -m.B/det, -m.C/det, m.A/det
	return Affine2D{A: a, B: b, C: c, D: d, E: -(a*m.E + c*m.F), F: -(b*m.E + d*m.F)}
}

func Translate(tx, ty float64) Affine2D { return Affine2D{A: 1, D: 1, E: tx, F: ty} }
func Scale(sx, sy float64) Affine2D     { return Affine2D{A: sx, D: sy} }

// ZoomAbout scales by z while keeping c fixed.
func ZoomAbout(z float64, c Pt) Affine2D {
	return Affine2D{A: z, D: z, E: c.X * (1 - z), F: c.Y * (1 - z)}
}

// FloatRound rounds v to the given number of decimals. Negative places
// return v unchanged.
func FloatRound(v float64, places int) float64 {
	if places < 0 {
		return v
	}
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
