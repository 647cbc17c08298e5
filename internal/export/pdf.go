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
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"

	"notesboard/internal/domain"
	"notesboard/internal/vector"
	"notesboard/internal/version"
)

// PDF writes the scene as a single-page PDF at path.
//
// One board pixel maps to one point and the page origin is top-left, so
// item coordinates only need the frame offset removed. Labels use the
// built-in Helvetica to keep the output free of embedded fonts.
func PDF(path string, scene domain.Scene, opt Options) error {
	opt = opt.withDefaults()
	fr := frame(scene, opt)

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: fr.W, Ht: fr.H},
	})
	pdf.SetTitle("Notes Board", false)
	pdf.SetCreator("notesboard "+version.String(), false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPageFormat("", gofpdf.SizeType{Wd: fr.W, Ht: fr.H})

	setFillColor(pdf, opt.Background)
	pdf.Rect(0, 0, fr.W, fr.H, "F")

	pdf.SetLineWidth(opt.StrokeWidth)
	pdf.SetFont("Helvetica", "", 12)
	for _, it := range scene.Items {
		fill := fillOf(it)
		setFillColor(pdf, fill)
		setDrawColor(pdf, fill.Darken(0.3))
		x, y, w, h := it.Bounds()
		x -= fr.X
		y -= fr.Y
		switch it.Kind() {
		case domain.KindCircle:
			pdf.Circle(x+w/2, y+h/2, w/2, "FD")
		default:
			pdf.Rect(x, y, w, h, "FD")
		}
		if opt.Labels && it.Label != "" {
			pdf.SetTextColor(0, 0, 0)
			tw := pdf.GetStringWidth(it.Label)
			pdf.Text(x+(w-tw)/2, y+h/2+4, it.Label)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func setDrawColor(pdf *gofpdf.Fpdf, c vector.Color) {
	pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
}

func setFillColor(pdf *gofpdf.Fpdf, c vector.Color) {
	pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
}
