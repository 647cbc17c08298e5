/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"fmt"
)

// wireItem is the flat document shape of an Item: the kind-specific attributes
// sit next to id, kind and position.
type wireItem struct {
	ID     string   `json:"id"`
	Kind   Kind     `json:"kind"`
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
	Radius *float64 `json:"radius,omitempty"`
	Color  *string  `json:"color,omitempty"`
	Label  string   `json:"label,omitempty"`
}

// MarshalJSON writes the flat document shape.
func (it Item) MarshalJSON() ([]byte, error) {
	w := wireItem{ID: it.ID, Kind: it.Kind(), X: it.Position.X, Y: it.Position.Y, Label: it.Label}
	switch a := it.attrs.(type) {
	case *BoxAttrs:
		wd, ht, c := a.Width, a.Height, a.Color
		w.Width, w.Height, w.Color = &wd, &ht, &c
	case *CircleAttrs:
		r, c := a.Radius, a.Color
		w.Radius, w.Color = &r, &c
	default:
		return nil, fmt.Errorf("item %q has no shape attributes", it.ID)
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads the flat document shape. Missing attributes fall back to
// the kind defaults; a present but empty color stays empty. Unknown kinds are
// an error.
func (it *Item) UnmarshalJSON(b []byte) error {
	var w wireItem
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if !w.Kind.Valid() {
		return fmt.Errorf("item %q: unknown kind %q", w.ID, w.Kind)
	}
	attrs := DefaultAttrs(w.Kind)
	switch a := attrs.(type) {
	case *BoxAttrs:
		if w.Width != nil {
			a.Width = *w.Width
		}
		if w.Height != nil {
			a.Height = *w.Height
		}
		if w.Color != nil {
			a.Color = *w.Color
		}
	case *CircleAttrs:
		if w.Radius != nil {
			a.Radius = *w.Radius
		}
		if w.Color != nil {
			a.Color = *w.Color
		}
	}
	*it = Item{ID: w.ID, Position: Point{X: w.X, Y: w.Y}, Label: w.Label, attrs: attrs}
	return nil
}

type wireScene struct {
	Items []Item `json:"items"`
}

// MarshalJSON writes {"items": [...]}; a nil slice is written as [].
func (s Scene) MarshalJSON() ([]byte, error) {
	items := s.Items
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(wireScene{Items: items})
}

// UnmarshalJSON reads {"items": [...]}.
func (s *Scene) UnmarshalJSON(b []byte) error {
	var w wireScene
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.Items == nil {
		w.Items = []Item{}
	}
	s.Items = w.Items
	return nil
}
