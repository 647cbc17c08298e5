/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"notesboard/internal/domain"
	"notesboard/internal/vector"
)

// PNG rasterizes the scene. The image is Options.Scale pixels per board pixel.
func PNG(w io.Writer, scene domain.Scene, opt Options) error {
	opt = opt.withDefaults()
	img := Raster(scene, opt)
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// Raster draws the scene into a new RGBA image.
func Raster(scene domain.Scene, opt Options) *image.RGBA {
	opt = opt.withDefaults()
	fr := frame(scene, opt)
	scale := opt.Scale
	pixW := int(math.Ceil(fr.W * scale))
	pixH := int(math.Ceil(fr.H * scale))

	img := image.NewRGBA(image.Rect(0, 0, pixW, pixH))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: toRGBA(opt.Background)}, image.Point{}, draw.Src)

	px := func(v, origin float64) int { return int(math.Round((v - origin) * scale)) }
	for _, it := range scene.Items {
		fill := fillOf(it)
		fc := toRGBA(fill)
		sc := toRGBA(fill.Darken(0.3))
		x, y, iw, ih := it.Bounds()
		x0, y0 := px(x, fr.X), px(y, fr.Y)
		x1, y1 := px(x+iw, fr.X)-1, px(y+ih, fr.Y)-1
		switch it.Kind() {
		case domain.KindCircle:
			fillEllipse(img, x0, y0, x1, y1, fc, sc)
		default:
			fillRect(img, x0, y0, x1, y1, fc)
			strokeRect(img, x0, y0, x1, y1, sc)
		}
		if opt.Labels && it.Label != "" {
			drawLabel(img, (x0+x1)/2, (y0+y1)/2, it.Label)
		}
	}
	return img
}

func toRGBA(c vector.Color) color.RGBA {
	n := c.NRGBA()
	r, g, b, a := n.RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
}

// drawLabel centres s on (cx, cy) using the fixed 7x13 face.
func drawLabel(img *image.RGBA, cx, cy int, s string) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(color.Black), Face: face}
	adv := d.MeasureString(s).Ceil()
	m := face.Metrics()
	baseline := cy + (m.Ascent.Ceil()-m.Descent.Ceil())/2
	d.Dot = fixed.P(cx-adv/2, baseline)
	d.DrawString(s)
}

// strokeRect draws a 1px axis-aligned rectangle border inclusive of endpoints.
func strokeRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y0, col)
		img.SetRGBA(x, y1, col)
	}
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x0, y, col)
		img.SetRGBA(x1, y, col)
	}
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}

// fillEllipse paints the ellipse inscribed in the inclusive box and outlines
// pixels whose neighbour falls outside it.
func fillEllipse(img *image.RGBA, x0, y0, x1, y1 int, fill, stroke color.RGBA) {
	cx := float64(x0+x1) / 2
	cy := float64(y0+y1) / 2
	rx := float64(x1-x0+1) / 2
	ry := float64(y1-y0+1) / 2
	if rx <= 0 || ry <= 0 {
		return
	}
	inside := func(x, y int) bool {
		dx := (float64(x) - cx) / rx
		dy := (float64(y) - cy) / ry
		return dx*dx+dy*dy <= 1
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if !inside(x, y) {
				continue
			}
			if !inside(x-1, y) || !inside(x+1, y) || !inside(x, y-1) || !inside(x, y+1) {
				img.SetRGBA(x, y, stroke)
				continue
			}
			img.SetRGBA(x, y, fill)
		}
	}
}
