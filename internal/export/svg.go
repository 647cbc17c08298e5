/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"notesboard/internal/domain"
)

// SVG writes the scene as a standalone SVG document. The viewBox uses board
// coordinates so that the drawing scales without resampling.
func SVG(w io.Writer, scene domain.Scene, opt Options) error {
	opt = opt.withDefaults()
	fr := frame(scene, opt)

	bw := bufio.NewWriter(w)
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(bw, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%dpx\" height=\"%dpx\" viewBox=\"%g %g %g %g\">\n",
		int(math.Ceil(fr.W)), int(math.Ceil(fr.H)), fr.X, fr.Y, fr.W, fr.H)
	wf("  <rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"%s\"/>\n", fr.X, fr.Y, fr.W, fr.H, opt.Background.Hex())

	for _, it := range scene.Items {
		fill := fillOf(it)
		stroke := fill.Darken(0.3).Hex()
		x, y, iw, ih := it.Bounds()
		switch it.Kind() {
		case domain.KindCircle:
			wf("  <circle id=\"%s\" cx=\"%g\" cy=\"%g\" r=\"%g\" fill=\"%s\" stroke=\"%s\" stroke-width=\"%g\"/>\n",
				escAttr(it.ID), it.Position.X, it.Position.Y, iw/2, fill.Hex(), stroke, opt.StrokeWidth)
		default:
			wf("  <rect id=\"%s\" x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" rx=\"4\" fill=\"%s\" stroke=\"%s\" stroke-width=\"%g\"/>\n",
				escAttr(it.ID), x, y, iw, ih, fill.Hex(), stroke, opt.StrokeWidth)
		}
		if opt.Labels && it.Label != "" {
			wf("  <text x=\"%g\" y=\"%g\" font-family=\"Helvetica, Arial, sans-serif\" font-size=\"12\" text-anchor=\"middle\" dominant-baseline=\"middle\" fill=\"#000\">%s</text>\n",
				x+iw/2, y+ih/2, escText(it.Label))
		}
	}

	wf("</svg>\n")
	if werr != nil {
		return fmt.Errorf("build svg: %w", werr)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

var (
	attrEscaper = strings.NewReplacer(`"`, "&quot;", "&", "&amp;", "<", "&lt;", "\n", " ", "\r", "")
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
)

func escAttr(s string) string { return attrEscaper.Replace(s) }
func escText(s string) string { return textEscaper.Replace(s) }
