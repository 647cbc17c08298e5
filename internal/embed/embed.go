/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package embed renders the iframe snippet that embeds a hosted board in
// another page.
package embed

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultWidth  = "100%"
	DefaultHeight = "500px"
	Title         = "Embedded Board"
)

// Widget describes one embedded board.
type Widget struct {
	ServiceURL string
	ImportURL  string
	Width      string
	Height     string
}

var frameTmpl = template.Must(template.New("frame").Parse(
	`<div style="width: 100%; max-width: 800px; height: {{.Height}}"><iframe src="{{.Src}}" style="width: {{.Width}}; height: 100%; border: none" title="{{.Title}}"></iframe></div>`))

// URL returns the iframe source: ServiceURL with importUrl appended when set.
func (w Widget) URL() (string, error) {
	if strings.TrimSpace(w.ServiceURL) == "" {
		return "", errors.New("embed: service url is empty")
	}
	u, err := url.Parse(w.ServiceURL)
	if err != nil {
		return "", fmt.Errorf("embed: service url: %w", err)
	}
	if w.ImportURL == "" {
		return u.String(), nil
	}
	q := u.Query()
	q.Set("importUrl", w.ImportURL)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// HTML renders the sized iframe snippet.
func (w Widget) HTML() (string, error) {
	src, err := w.URL()
	if err != nil {
		return "", err
	}
	data := struct {
		Src           template.URL
		Width, Height string
		Title         string
	}{
		Src:    template.URL(src),
		Width:  cssLength(w.Width, DefaultWidth),
		Height: cssLength(w.Height, DefaultHeight),
		Title:  Title,
	}
	var buf bytes.Buffer
	if err := frameTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("embed: render: %w", err)
	}
	return buf.String(), nil
}

// cssLength turns a bare number into pixels and falls back to def when empty.
func cssLength(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return v + "px"
	}
	return v
}
