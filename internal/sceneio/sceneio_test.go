/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package sceneio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gojsonschema "github.com/xeipuuv/gojsonschema"

	"notesboard/internal/domain"
)

func sampleScene() domain.Scene {
	box := domain.NewItem("box-1", domain.Point{X: 10, Y: 20}, &domain.BoxAttrs{Width: 100, Height: 80, Color: "#4a90e2"})
	box.Label = "first"
	circle := domain.NewItem("circle-2", domain.Point{X: 300.5, Y: 150}, &domain.CircleAttrs{Radius: 50, Color: "#f5a623"})
	return domain.Scene{Items: []domain.Item{box, circle}}
}

// itemView flattens an item for cmp, which cannot see unexported fields.
type itemView struct {
	ID, Label, Color string
	Kind             domain.Kind
	Pos              domain.Point
	Size             domain.Size
}

func view(s domain.Scene) []itemView {
	out := make([]itemView, 0, len(s.Items))
	for _, it := range s.Items {
		out = append(out, itemView{ID: it.ID, Label: it.Label, Color: it.Color(), Kind: it.Kind(), Pos: it.Position, Size: it.Size()})
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	s := sampleScene()
	data, err := Export(s)
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(data, []byte("}\n")))

	back, err := Import(data)
	require.NoError(t, err)
	if diff := cmp.Diff(view(s), view(back)); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTripKeepsEmptyColorAndLabel(t *testing.T) {
	box := domain.NewItem("b1", domain.Point{X: 1, Y: 2}, &domain.BoxAttrs{Width: 10, Height: 10})
	s := domain.Scene{Items: []domain.Item{box}}
	data, err := Export(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"color": ""`)

	back, err := Import(data)
	require.NoError(t, err)
	assert.Equal(t, "", back.Items[0].Color())
	assert.Equal(t, "", back.Items[0].Label)
}

func TestRoundTripProperties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	properties := gopter.NewProperties(params)

	properties.Property("export then import yields the same items", prop.ForAll(
		func(xs, sizes []float64, circles []bool, colors, labels []string) bool {
			n := min(len(xs), len(sizes), len(circles), len(colors), len(labels))
			var s domain.Scene
			for i := 0; i < n; i++ {
				var attrs domain.Attrs = &domain.BoxAttrs{Width: sizes[i], Height: sizes[i] / 2, Color: colors[i]}
				if circles[i] {
					attrs = &domain.CircleAttrs{Radius: sizes[i], Color: colors[i]}
				}
				it := domain.NewItem(fmt.Sprintf("item-%d", i), domain.Point{X: xs[i], Y: -xs[i] / 3}, attrs)
				it.Label = labels[i]
				s.Items = append(s.Items, it)
			}
			data, err := Export(s)
			if err != nil {
				return false
			}
			back, err := Import(data)
			if err != nil {
				return false
			}
			return cmp.Equal(view(s), view(back))
		},
		gen.SliceOf(gen.Float64Range(-5000, 5000)),
		gen.SliceOf(gen.Float64Range(0.5, 800)),
		gen.SliceOf(gen.Bool()),
		gen.SliceOf(gen.OneConstOf("", "#4a90e2", "#fff", "tomato")),
		gen.SliceOf(gen.OneConstOf("", "todo", `say "hi"`, "two\nlines")),
	))

	properties.TestingRun(t)
}

func TestExportEmpty(t *testing.T) {
	data, err := Export(domain.Scene{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"items": []}`, string(data))
	s, err := Import(data)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestExportConformsToSchema(t *testing.T) {
	data, err := Export(sampleScene())
	require.NoError(t, err)
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(Schema()), gojsonschema.NewBytesLoader(data))
	require.NoError(t, err)
	for _, e := range result.Errors() {
		t.Logf("schema error: %s", e)
	}
	assert.True(t, result.Valid())
}

func TestImportRejects(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", "  ", "empty"},
		{"malformed", `{"items": [`, "malformed JSON"},
		{"missing items", `{}`, "items"},
		{"unknown kind", `{"items":[{"id":"t","kind":"triangle","x":0,"y":0}]}`, "kind"},
		{"missing id", `{"items":[{"kind":"box","x":0,"y":0}]}`, "id"},
		{"string coordinate", `{"items":[{"id":"a","kind":"box","x":"1","y":0}]}`, "x"},
		{"negative radius", `{"items":[{"id":"c","kind":"circle","x":0,"y":0,"radius":-1}]}`, "radius"},
		{"box with radius", `{"items":[{"id":"b","kind":"box","x":0,"y":0,"radius":3}]}`, "items.0"},
		{"duplicate ids", `{"items":[{"id":"a","kind":"box","x":0,"y":0},{"id":"a","kind":"circle","x":5,"y":5}]}`, "duplicate item id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Import([]byte(tc.doc))
			require.Error(t, err)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "want *ValidationError, got %T", err)
			assert.NotEmpty(t, ve.Problems)
			assert.Contains(t, err.Error(), tc.want)
			assert.Equal(t, 0, s.Len())
		})
	}
}

func TestImportListsEveryProblem(t *testing.T) {
	doc := `{"items":[{"id":"a","kind":"box","x":0,"y":0},{"id":"a","kind":"box","x":1,"y":1},{"id":"b","kind":"box","x":1,"y":1},{"id":"b","kind":"circle","x":1,"y":1}]}`
	_, err := Import([]byte(doc))
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Problems, 2)
}

func TestImportAppliesDefaults(t *testing.T) {
	s, err := Import([]byte(`{"items":[{"id":"b","kind":"box","x":1,"y":2}]}`))
	require.NoError(t, err)
	it := s.Items[0]
	assert.Equal(t, domain.Size{Width: domain.DefaultBoxWidth, Height: domain.DefaultBoxHeight}, it.Size())
	assert.Equal(t, domain.DefaultBoxColor, it.Color())
}

func TestEncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleScene()))
	s, err := Decode(strings.NewReader(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
}

func TestFetch(t *testing.T) {
	good, _ := Export(sampleScene())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/board.json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(good)
		case "/big":
			_, _ = w.Write(bytes.Repeat([]byte(" "), 64))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	ctx := context.Background()

	s, err := Fetch(ctx, srv.Client(), srv.URL+"/board.json", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	_, err = Fetch(ctx, srv.Client(), srv.URL+"/missing", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, err = Fetch(ctx, srv.Client(), srv.URL+"/big", 16)
	assert.ErrorIs(t, err, ErrTooLarge)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Fetch(cancelled, srv.Client(), srv.URL+"/board.json", 0)
	assert.Error(t, err)
}
