/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package board

import (
	"math"

	"notesboard/internal/domain"
	"notesboard/internal/vector"
)

// Zoom limits. Zoom is view state and never stored in the scene.
const (
	MinZoom  = 0.5
	MaxZoom  = 2.0
	ZoomStep = 0.1
)

func (b *Board) Zoom() float64 { return b.zoom }

// SetZoom clamps z into [MinZoom, MaxZoom] and returns the applied value.
func (b *Board) SetZoom(z float64) float64 {
	if math.IsNaN(z) {
		return b.zoom
	}
	z = math.Max(MinZoom, math.Min(MaxZoom, z))
	// keep steps exact: 1.0 + 3*0.1 should be 1.3, not 1.3000000000000003
	b.zoom = vector.FloatRound(z, 2)
	return b.zoom
}

func (b *Board) ZoomIn() float64    { return b.SetZoom(b.zoom + ZoomStep) }
func (b *Board) ZoomOut() float64   { return b.SetZoom(b.zoom - ZoomStep) }
func (b *Board) ResetZoom() float64 { return b.SetZoom(1) }

// viewTransform maps board coordinates to view coordinates. Zoom is applied
// around the centre of the bounds, or the origin without bounds.
func (b *Board) viewTransform() vector.Affine2D {
	c := vector.Pt{}
	if b.hasBounds {
		c = vector.Pt{X: b.bounds.Width / 2, Y: b.bounds.Height / 2}
	}
	return vector.ZoomAbout(b.zoom, c)
}

// ToBoard converts a view (screen) point into board coordinates.
func (b *Board) ToBoard(p domain.Point) domain.Point {
	q := b.viewTransform().Invert().Apply(vector.Pt{X: p.X, Y: p.Y})
	return domain.Point{X: q.X, Y: q.Y}
}

// ToView converts a board point into view coordinates.
func (b *Board) ToView(p domain.Point) domain.Point {
	q := b.viewTransform().Apply(vector.Pt{X: p.X, Y: p.Y})
	return domain.Point{X: q.X, Y: q.Y}
}

// ItemAtView hit-tests a point given in view coordinates.
func (b *Board) ItemAtView(p domain.Point) (domain.Item, bool) {
	return b.ItemAt(b.ToBoard(p))
}
