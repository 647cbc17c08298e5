/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notesboard/internal/backend"
	"notesboard/internal/domain"
	applog "notesboard/internal/log"
	"notesboard/internal/storage"
)

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if cfg.Width == 0 {
		cfg.Width, cfg.Height, cfg.Clamp = 640, 480, true
	}
	if cfg.Logger == nil {
		cfg.Logger = applog.Discard()
	}
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func call(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

type sceneBody struct {
	OK      bool         `json:"ok"`
	Error   string       `json:"error"`
	State   string       `json:"state"`
	Ignored bool         `json:"ignored"`
	Changed *bool        `json:"changed"`
	Scene   domain.Scene `json:"scene"`
	Item    domain.Item  `json:"item"`
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) sceneBody {
	t.Helper()
	var out sceneBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func addBox(t *testing.T, s *Server, x, y float64) domain.Item {
	t.Helper()
	rr := call(t, s, http.MethodPost, "/api/items", fmt.Sprintf(`{"kind":"box","x":%g,"y":%g}`, x, y))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeBody(t, rr).Item
}

func TestHealthAndVersion(t *testing.T) {
	s := newTestServer(t, Config{})
	rr := call(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())

	rr = call(t, s, http.MethodGet, "/version", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"version"`)
}

func TestAddItemAndGetScene(t *testing.T) {
	s := newTestServer(t, Config{})
	it := addBox(t, s, 10, 10)
	assert.True(t, strings.HasPrefix(it.ID, "box-"), it.ID)
	assert.Equal(t, domain.Point{X: 10, Y: 10}, it.Position)

	rr := call(t, s, http.MethodGet, "/api/scene", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var scene domain.Scene
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &scene))
	require.Len(t, scene.Items, 1)
	assert.Equal(t, it.ID, scene.Items[0].ID)

	rr = call(t, s, http.MethodPost, "/api/items", `{"kind":"triangle","x":1,"y":1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = call(t, s, http.MethodPost, "/api/items", `{"x":1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAddWithoutPositionCentresItem(t *testing.T) {
	s := newTestServer(t, Config{})
	rr := call(t, s, http.MethodPost, "/api/items", `{"kind":"circle","label":"hi"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	it := decodeBody(t, rr).Item
	assert.Equal(t, domain.Point{X: 320, Y: 240}, it.Position)
	assert.Equal(t, "hi", it.Label)
}

func TestLabelledAddUndoesInOneStep(t *testing.T) {
	s := newTestServer(t, Config{})
	for _, body := range []string{`{"kind":"box","x":5,"y":5,"label":"note"}`, `{"kind":"circle","label":"note"}`} {
		rr := call(t, s, http.MethodPost, "/api/items", body)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		require.Equal(t, "note", decodeBody(t, rr).Item.Label)

		rr = call(t, s, http.MethodPost, "/api/undo", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, decodeBody(t, rr).Scene.Items, body)
	}
}

func TestDragLifecycle(t *testing.T) {
	s := newTestServer(t, Config{})
	it := addBox(t, s, 10, 10)

	rr := call(t, s, http.MethodPost, "/api/drag/start", fmt.Sprintf(`{"itemId":%q,"x":10,"y":10}`, it.ID))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "dragging", decodeBody(t, rr).State)

	// a second start is an invalid transition
	rr = call(t, s, http.MethodPost, "/api/drag/start", fmt.Sprintf(`{"itemId":%q,"x":0,"y":0}`, it.ID))
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = call(t, s, http.MethodPost, "/api/drag/move", `{"x":50,"y":60}`)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = call(t, s, http.MethodPost, "/api/drag/end", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "idle", body.State)
	require.Len(t, body.Scene.Items, 1)
	assert.Equal(t, domain.Point{X: 50, Y: 60}, body.Scene.Items[0].Position)

	rr = call(t, s, http.MethodGet, "/api/debug", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), fmt.Sprintf("Dropped %s at (50, 60)", it.ID))

	// moving while idle is rejected
	rr = call(t, s, http.MethodPost, "/api/drag/move", `{"x":1,"y":1}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = call(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	metrics := rr.Body.String()
	assert.Contains(t, metrics, `notesboard_drag_events_total{type="dragStart"} 1`)
	assert.Contains(t, metrics, `notesboard_drag_events_total{type="dragEnd"} 1`)
	assert.Contains(t, metrics, `notesboard_commands_total{command="drag_start",result="error"} 1`)
	assert.Contains(t, metrics, "notesboard_scene_items 1")
}

func TestDragOnMissingItemIsIgnored(t *testing.T) {
	s := newTestServer(t, Config{})
	rr := call(t, s, http.MethodPost, "/api/drag/start", `{"itemId":"ghost","x":1,"y":1}`)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.True(t, body.Ignored)
	assert.Equal(t, "idle", body.State)
}

func TestDragCancelRestores(t *testing.T) {
	s := newTestServer(t, Config{})
	it := addBox(t, s, 30, 40)
	call(t, s, http.MethodPost, "/api/drag/start", fmt.Sprintf(`{"itemId":%q,"x":30,"y":40}`, it.ID))
	call(t, s, http.MethodPost, "/api/drag/move", `{"x":200,"y":200}`)
	rr := call(t, s, http.MethodPost, "/api/drag/cancel", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.Point{X: 30, Y: 40}, decodeBody(t, rr).Scene.Items[0].Position)
}

func TestPutSceneRejectsInvalidAndKeepsScene(t *testing.T) {
	s := newTestServer(t, Config{})
	addBox(t, s, 10, 10)

	rr := call(t, s, http.MethodPut, "/api/scene", `{"things":[]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var body struct {
		Problems []string `json:"problems"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Problems)

	rr = call(t, s, http.MethodPut, "/api/scene", `{"items":[{"id":"a","kind":"box","x":1,"y":2},{"id":"a","kind":"circle","x":3,"y":4}]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = call(t, s, http.MethodGet, "/api/scene", "")
	assert.Contains(t, rr.Body.String(), `"box-`)
}

func TestPutSceneTooLarge(t *testing.T) {
	s := newTestServer(t, Config{MaxImportBytes: 32})
	rr := call(t, s, http.MethodPut, "/api/scene", `{"items":[{"id":"b1","kind":"box","x":10,"y":10}]}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestReplaceClearExportAndUndo(t *testing.T) {
	s := newTestServer(t, Config{})
	rr := call(t, s, http.MethodPut, "/api/scene", `{"items":[{"id":"b1","kind":"box","x":10,"y":10,"label":"x"}]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Len(t, decodeBody(t, rr).Scene.Items, 1)

	rr = call(t, s, http.MethodDelete, "/api/scene", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = call(t, s, http.MethodGet, "/api/scene/export", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), `filename="board.json"`)
	assert.JSONEq(t, `{"items":[]}`, rr.Body.String())

	rr = call(t, s, http.MethodPost, "/api/undo", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	require.NotNil(t, body.Changed)
	assert.True(t, *body.Changed)
	require.Len(t, body.Scene.Items, 1)
	assert.Equal(t, "b1", body.Scene.Items[0].ID)

	rr = call(t, s, http.MethodPost, "/api/redo", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeBody(t, rr).Scene.Items)

	rr = call(t, s, http.MethodPost, "/api/redo", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, *decodeBody(t, rr).Changed)
}

func TestExportFormats(t *testing.T) {
	s := newTestServer(t, Config{})
	addBox(t, s, 10, 10)
	for format, ctype := range map[string]string{"svg": "image/svg+xml", "png": "image/png", "pdf": "application/pdf"} {
		rr := call(t, s, http.MethodGet, "/api/scene/export?format="+format, "")
		require.Equal(t, http.StatusOK, rr.Code, format)
		assert.Equal(t, ctype, rr.Header().Get("Content-Type"), format)
		assert.NotZero(t, rr.Body.Len(), format)
	}
	rr := call(t, s, http.MethodGet, "/api/scene/export?format=gif", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPatchAndRemoveItem(t *testing.T) {
	s := newTestServer(t, Config{})
	it := addBox(t, s, 10, 10)

	rr := call(t, s, http.MethodPatch, "/api/items/"+it.ID, `{"label":"todo","width":150,"color":"#ff0000"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got := decodeBody(t, rr).Scene.Items[0]
	assert.Equal(t, "todo", got.Label)
	assert.Equal(t, 150.0, got.Size().Width)
	assert.Equal(t, "#ff0000", got.Color())

	rr = call(t, s, http.MethodPatch, "/api/items/"+it.ID, `{"radius":10}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = call(t, s, http.MethodPatch, "/api/items/"+it.ID, `{"width":-1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = call(t, s, http.MethodPatch, "/api/items/nope", `{"label":"x"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = call(t, s, http.MethodDelete, "/api/items/"+it.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeBody(t, rr).Scene.Items)
	rr = call(t, s, http.MethodDelete, "/api/items/"+it.ID, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCopyPaste(t *testing.T) {
	s := newTestServer(t, Config{})
	rr := call(t, s, http.MethodPost, "/api/paste", "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	it := addBox(t, s, 10, 10)
	rr = call(t, s, http.MethodPost, "/api/items/"+it.ID+"/copy", "")
	require.Equal(t, http.StatusOK, rr.Code)
	rr = call(t, s, http.MethodPost, "/api/paste", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	body := decodeBody(t, rr)
	assert.Len(t, body.Scene.Items, 2)
	assert.Equal(t, domain.Point{X: 30, Y: 30}, body.Item.Position)
}

func TestMenuActions(t *testing.T) {
	s := newTestServer(t, Config{})
	rr := call(t, s, http.MethodPost, "/api/menu/open", `{"x":100,"y":120}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var menu struct {
		Open    bool `json:"open"`
		Entries []struct {
			Action  string `json:"action"`
			Enabled bool   `json:"enabled"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &menu))
	assert.True(t, menu.Open)
	assert.Len(t, menu.Entries, 6)

	rr = call(t, s, http.MethodPost, "/api/menu/add-box", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	items := decodeBody(t, rr).Scene.Items
	require.Len(t, items, 1)
	assert.Equal(t, domain.Point{X: 100, Y: 120}, items[0].Position)

	rr = call(t, s, http.MethodGet, "/api/menu", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &menu))
	assert.False(t, menu.Open)

	rr = call(t, s, http.MethodPost, "/api/menu/export", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"kind": "box"`)

	rr = call(t, s, http.MethodPost, "/api/menu/import", `{"nope":1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = call(t, s, http.MethodPost, "/api/menu/import", `{"items":[]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeBody(t, rr).Scene.Items)

	rr = call(t, s, http.MethodPost, "/api/menu/open", `{"itemId":"ghost","x":1,"y":1}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = call(t, s, http.MethodPost, "/api/menu/delete", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = call(t, s, http.MethodPost, "/api/menu/frobnicate", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestPointerMovesMenuPlacement(t *testing.T) {
	s := newTestServer(t, Config{})
	require.Equal(t, http.StatusOK, call(t, s, http.MethodPost, "/api/pointer", `{"x":200,"y":100}`).Code)
	require.Equal(t, http.StatusOK, call(t, s, http.MethodPost, "/api/resize", `{"width":800,"height":600}`).Code)

	rr := call(t, s, http.MethodPost, "/api/menu/add-circle", "")
	require.Equal(t, http.StatusOK, rr.Code)
	// the circle's bounding box top-left sits at the cursor
	assert.Equal(t, domain.Point{X: 250, Y: 150}, decodeBody(t, rr).Scene.Items[0].Position)

	rr = call(t, s, http.MethodGet, "/api/debug", "")
	assert.Contains(t, rr.Body.String(), "Mouse: (200, 100)")
	assert.Contains(t, rr.Body.String(), "Window: 800 x 600")
}

func TestWorkspacePersistence(t *testing.T) {
	ws, err := storage.InitWorkspace(t.TempDir(), domain.Scene{})
	require.NoError(t, err)
	s := newTestServer(t, Config{Workspace: ws})
	it := addBox(t, s, 10, 10)

	got, err := storage.Open(ws.Root)
	require.NoError(t, err)
	require.Len(t, got.Scene.Items, 1)
	assert.Equal(t, it.ID, got.Scene.Items[0].ID)
}

func TestLoadRemoteScene(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/good.json":
			_, _ = w.Write([]byte(`{"items":[{"id":"r1","kind":"circle","x":50,"y":50}]}`))
		case "/bad.json":
			_, _ = w.Write([]byte(`{"items":[{"id":"r1","kind":"hexagon","x":50,"y":50}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer remote.Close()

	s := newTestServer(t, Config{HTTPClient: remote.Client()})
	rr := call(t, s, http.MethodGet, "/board?importUrl="+remote.URL+"/good.json", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"r1"`)

	rr = call(t, s, http.MethodGet, "/board?importUrl="+remote.URL+"/bad.json", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = call(t, s, http.MethodGet, "/board?importUrl="+remote.URL+"/missing.json", "")
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	rr = call(t, s, http.MethodGet, "/board", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"r1"`)
}

func TestEmbedFrame(t *testing.T) {
	s := newTestServer(t, Config{})
	rr := call(t, s, http.MethodGet, "/embed?importUrl=https://example.com/b.json&height=300", "")
	require.Equal(t, http.StatusOK, rr.Code)
	html := rr.Body.String()
	assert.Contains(t, html, "<iframe")
	assert.Contains(t, html, "importUrl=https%3A%2F%2Fexample.com%2Fb.json")
	assert.Contains(t, html, "height: 300px")
}

func TestCORSHeaders(t *testing.T) {
	s := newTestServer(t, Config{CORSOrigins: []string{"https://docs.example.com"}})
	req := httptest.NewRequest(http.MethodGet, "/api/scene", nil)
	req.Header.Set("Origin", "https://docs.example.com")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	assert.Equal(t, "https://docs.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}

type memStore struct {
	mu     sync.Mutex
	boards map[string]backend.Board
}

func (m *memStore) PutBoard(_ context.Context, name string, scene domain.Scene) (backend.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.boards[name]
	b.Name, b.Version, b.Scene = name, b.Version+1, scene.Clone()
	m.boards[name] = b
	return b, nil
}

func (m *memStore) GetBoard(_ context.Context, name string) (backend.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boards[name]
	if !ok {
		return backend.Board{}, backend.ErrNotFound
	}
	return b, nil
}

func (m *memStore) ListBoards(context.Context) ([]backend.BoardInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []backend.BoardInfo
	for _, b := range m.boards {
		out = append(out, backend.BoardInfo{Name: b.Name, Version: b.Version, Items: b.Scene.Len()})
	}
	return out, nil
}

func TestNamedBoards(t *testing.T) {
	s := newTestServer(t, Config{})
	assert.Equal(t, http.StatusServiceUnavailable, call(t, s, http.MethodGet, "/api/boards", "").Code)

	store := &memStore{boards: map[string]backend.Board{}}
	s = newTestServer(t, Config{Store: store})
	addBox(t, s, 10, 10)

	rr := call(t, s, http.MethodPut, "/api/boards/plan", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"version":1`)

	call(t, s, http.MethodDelete, "/api/scene", "")
	rr = call(t, s, http.MethodPost, "/api/boards/plan/load", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody(t, rr).Scene.Items, 1)

	rr = call(t, s, http.MethodGet, "/api/boards", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"name":"plan"`)

	assert.Equal(t, http.StatusNotFound, call(t, s, http.MethodGet, "/api/boards/other", "").Code)
	assert.Equal(t, http.StatusNotFound, call(t, s, http.MethodPost, "/api/boards/other/load", "").Code)
}
