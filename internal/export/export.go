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
	"strings"

	"notesboard/internal/domain"
	"notesboard/internal/sceneio"
	"notesboard/internal/storage"
	"notesboard/internal/vector"
)

// Format names an export target.
type Format string

const (
	FormatJSON Format = "json"
	FormatSVG  Format = "svg"
	FormatPDF  Format = "pdf"
	FormatPNG  Format = "png"
)

// Formats lists every supported format in menu order.
var Formats = []Format{FormatJSON, FormatSVG, FormatPDF, FormatPNG}

// ParseFormat accepts a format name or a file extension such as ".png".
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string { return "." + string(f) }

// Options controls rendering for the image formats.
// Units are board pixels; PDF maps one board pixel to one point.
type Options struct {
	// Width and Height fix the canvas at the board origin. When either is
	// zero the canvas fits the item bounds plus Margin.
	Width, Height float64
	Margin        float64
	Background    vector.Color
	StrokeWidth   float64
	// Scale multiplies the PNG pixel size; ignored by vector formats.
	Scale  float64
	Labels bool
}

// DefaultOptions draws labels on a white background with a 20px margin.
func DefaultOptions() Options {
	return Options{Margin: 20, Background: vector.White, StrokeWidth: 1.5, Scale: 1, Labels: true}
}

func (o Options) withDefaults() Options {
	if o.Margin < 0 {
		o.Margin = 0
	}
	if o.Background == (vector.Color{}) {
		o.Background = vector.White
	}
	if o.StrokeWidth <= 0 {
		o.StrokeWidth = 1.5
	}
	if o.Scale <= 0 {
		o.Scale = 1
	}
	return o
}

// frame returns the canvas rectangle in board coordinates.
func frame(scene domain.Scene, o Options) vector.Rect {
	if o.Width > 0 && o.Height > 0 {
		return vector.R(0, 0, o.Width, o.Height)
	}
	r, ok := vector.BoundsOf(scene.Items)
	if !ok {
		r = vector.R(0, 0, 0, 0)
	}
	r = r.Inset(-o.Margin, -o.Margin)
	if r.Empty() {
		r = vector.R(r.X, r.Y, 1, 1)
	}
	return r
}

// fillOf returns the paint for an item, falling back to the kind default.
func fillOf(it domain.Item) vector.Color {
	def := domain.DefaultBoxColor
	if it.Kind() == domain.KindCircle {
		def = domain.DefaultCircleColor
	}
	return vector.ParseHexOr(it.Color(), vector.ParseHexOr(def, vector.Black))
}

// ExportFile renders the workspace scene in format f. A relative or empty out
// resolves under the workspace exports folder. It returns the written path.
func ExportFile(ws *storage.Workspace, f Format, out string, opt Options) (string, error) {
	if ws == nil {
		return "", fmt.Errorf("workspace is nil")
	}
	if out == "" {
		out = "board" + f.Ext()
	}
	if !filepath.IsAbs(out) {
		out = filepath.Join(ws.Root, storage.ExportsDirName, out)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("ensure out dir: %w", err)
	}
	switch f {
	case FormatPDF:
		if err := PDF(out, ws.Scene, opt); err != nil {
			return "", err
		}
		return out, nil
	case FormatJSON:
		data, err := sceneio.Export(ws.Scene)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return "", fmt.Errorf("write json: %w", err)
		}
		return out, nil
	case FormatSVG, FormatPNG:
	default:
		return "", fmt.Errorf("unknown export format %q", f)
	}
	file, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", f, err)
	}
	if f == FormatSVG {
		err = SVG(file, ws.Scene, opt)
	} else {
		err = PNG(file, ws.Scene, opt)
	}
	if cerr := file.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w", f, cerr)
	}
	if err != nil {
		return "", err
	}
	return out, nil
}
