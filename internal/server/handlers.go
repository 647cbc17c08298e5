/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"notesboard/internal/backend"
	"notesboard/internal/board"
	"notesboard/internal/domain"
	"notesboard/internal/embed"
	"notesboard/internal/export"
	"notesboard/internal/panel"
	"notesboard/internal/sceneio"
	"notesboard/internal/version"
)

var errNoStore = errors.New("no board store configured")

// fail maps domain errors to HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	var verr *sceneio.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error(), "problems": verr.Problems})
		return
	}
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, board.ErrInvalidTransition),
		errors.Is(err, board.ErrClipboardEmpty):
		status = http.StatusConflict
	case errors.Is(err, board.ErrItemNotFound),
		errors.Is(err, backend.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidScene),
		errors.Is(err, panel.ErrNoTarget):
		status = http.StatusBadRequest
	case errors.Is(err, sceneio.ErrTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, errNoStore):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.log.ErrorContext(c.Request.Context(), "request failed", slog.String("path", c.FullPath()), slog.Any("err", err))
	}
	c.JSON(status, gin.H{"ok": false, "error": err.Error()})
}

// sceneResponse writes the board state after a command. Callers hold s.mu.
func (s *Server) sceneResponse(c *gin.Context, status int, extra gin.H) {
	body := gin.H{"ok": true, "scene": s.board.Scene(), "state": s.board.State().String()}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

func (s *Server) health(c *gin.Context) { c.String(http.StatusOK, "ok") }

func (s *Server) versionInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": version.String()})
}

// --- scene ---

func (s *Server) getScene(c *gin.Context) {
	s.mu.Lock()
	data, err := sceneio.Export(s.board.Scene())
	s.mu.Unlock()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func (s *Server) readBody(c *gin.Context) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, s.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > s.maxBody {
		return nil, sceneio.ErrTooLarge
	}
	return data, nil
}

func (s *Server) putScene(c *gin.Context) {
	data, err := s.readBody(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.metrics.ImportBytes.Observe(float64(len(data)))
	scene, err := sceneio.Import(data)
	if err == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		err = s.board.Replace(scene)
	}
	s.metrics.command("import", err)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.persist(c.Request.Context())
	s.sceneResponse(c, http.StatusOK, nil)
}

func (s *Server) clearScene(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.board.Clear()
	s.metrics.command("clear", nil)
	s.persist(c.Request.Context())
	s.sceneResponse(c, http.StatusOK, nil)
}

func (s *Server) exportScene(c *gin.Context) {
	f, err := export.ParseFormat(c.DefaultQuery("format", string(export.FormatJSON)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	s.mu.Lock()
	scene := s.board.Scene()
	s.mu.Unlock()

	name := "board" + f.Ext()
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	var buf bytes.Buffer
	opt := export.DefaultOptions()
	switch f {
	case export.FormatJSON:
		err = sceneio.Encode(&buf, scene)
	case export.FormatSVG:
		err = export.SVG(&buf, scene, opt)
	case export.FormatPNG:
		err = export.PNG(&buf, scene, opt)
	case export.FormatPDF:
		err = s.renderPDF(&buf, scene, opt)
	}
	s.metrics.command("export", err)
	if err != nil {
		c.Header("Content-Disposition", "")
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, contentType(f), buf.Bytes())
}

// renderPDF goes through a temp file because the PDF writer targets paths.
func (s *Server) renderPDF(w io.Writer, scene domain.Scene, opt export.Options) error {
	dir, err := os.MkdirTemp("", "notesboard-pdf-")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(dir) }()
	path := filepath.Join(dir, "board.pdf")
	if err := export.PDF(path, scene, opt); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func contentType(f export.Format) string {
	switch f {
	case export.FormatSVG:
		return "image/svg+xml"
	case export.FormatPNG:
		return "image/png"
	case export.FormatPDF:
		return "application/pdf"
	}
	return "application/json; charset=utf-8"
}

// --- items ---

type addReq struct {
	Kind  string   `json:"kind" binding:"required"`
	X     *float64 `json:"x"`
	Y     *float64 `json:"y"`
	Label string   `json:"label"`
}

func (s *Server) addItem(c *gin.Context) {
	var req addReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	kind, err := domain.ParseKind(req.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var it domain.Item
	if req.X != nil && req.Y != nil {
		it, err = s.board.AddLabeled(kind, domain.Point{X: *req.X, Y: *req.Y}, req.Label)
	} else {
		it, err = s.panel.AddWithLabel(kind, req.Label)
	}
	s.metrics.command("add", err)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.persist(c.Request.Context())
	s.sceneResponse(c, http.StatusCreated, gin.H{"item": it})
}

func (s *Server) removeItem(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.board.RemoveItem(c.Param("id"))
	s.metrics.command("remove", err)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.persist(c.Request.Context())
	s.sceneResponse(c, http.StatusOK, nil)
}

type patchReq struct {
	Label  *string  `json:"label"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
	Radius *float64 `json:"radius"`
	Color  *string  `json:"color"`
}

func (r patchReq) touchesAttrs() bool {
	return r.Width != nil || r.Height != nil || r.Radius != nil || r.Color != nil
}

// mergeAttrs applies the requested attribute changes to cur.
func (r patchReq) mergeAttrs(cur domain.Attrs) (domain.Attrs, error) {
	switch a := cur.(type) {
	case *domain.BoxAttrs:
		if r.Radius != nil {
			return nil, errors.New("radius does not apply to a box")
		}
		if r.Width != nil {
			a.Width = *r.Width
		}
		if r.Height != nil {
			a.Height = *r.Height
		}
		if r.Color != nil {
			a.Color = *r.Color
		}
		return a, nil
	case *domain.CircleAttrs:
		if r.Width != nil || r.Height != nil {
			return nil, errors.New("width and height do not apply to a circle")
		}
		if r.Radius != nil {
			a.Radius = *r.Radius
		}
		if r.Color != nil {
			a.Color = *r.Color
		}
		return a, nil
	}
	return nil, fmt.Errorf("unsupported attributes %T", cur)
}

func (s *Server) patchItem(c *gin.Context) {
	var req patchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.board.Item(id)
	if !ok {
		s.fail(c, fmt.Errorf("patch %q: %w", id, board.ErrItemNotFound))
		return
	}
	var err error
	if req.touchesAttrs() {
		var attrs domain.Attrs
		if attrs, err = req.mergeAttrs(it.Attrs()); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
			return
		}
		err = s.board.Resize(id, attrs)
	}
	if err == nil && req.Label != nil {
		err = s.board.SetLabel(id, *req.Label)
	}
	s.metrics.command("patch", err)
	if err != nil {
		if !errors.Is(err, board.ErrItemNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
			return
		}
		s.fail(c, err)
		return
	}
	s.persist(c.Request.Context())
	s.sceneResponse(c, http.StatusOK, nil)
}

func (s *Server) copyItem(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.board.Copy(c.Param("id"))
	s.metrics.command("copy", err)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) paste(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, err := s.board.Paste()
	s.metrics.command("paste", err)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.persist(c.Request.Context())
	s.sceneResponse(c, http.StatusCreated, gin.H{"item": it})
}

// --- drag ---

type pointReq struct {
	ItemID string  `json:"itemId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// dragResult answers a drag command. A missing item is a benign race with a
// removal and is reported as ignored rather than as an error.
func (s *Server) dragResult(c *gin.Context, op string, err error, mutated bool) {
	s.metrics.command("drag_"+op, err)
	switch {
	case err == nil:
		if mutated {
			s.persist(c.Request.Context())
		}
		s.sceneResponse(c, http.StatusOK, nil)
	case board.IsBenign(err):
		s.log.DebugContext(c.Request.Context(), "drag ignored", slog.String("op", op), slog.Any("err", err))
		s.sceneResponse(c, http.StatusOK, gin.H{"ignored": true})
	default:
		s.fail(c, err)
	}
}

func (s *Server) dragStart(c *gin.Context) {
	var req pointReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ItemID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dragResult(c, "start", s.board.StartDrag(req.ItemID, domain.Point{X: req.X, Y: req.Y}), false)
}

func (s *Server) dragMove(c *gin.Context) {
	var req pointReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dragResult(c, "move", s.board.UpdateDrag(domain.Point{X: req.X, Y: req.Y}), false)
}

func (s *Server) dragEnd(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dragResult(c, "end", s.board.EndDrag(), true)
}

func (s *Server) dragCancel(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dragResult(c, "cancel", s.board.CancelDrag(), false)
}

// --- history ---

func (s *Server) undo(c *gin.Context) { s.history(c, "undo", (*board.Board).Undo) }
func (s *Server) redo(c *gin.Context) { s.history(c, "redo", (*board.Board).Redo) }

func (s *Server) history(c *gin.Context, op string, step func(*board.Board) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := step(s.board)
	s.metrics.command(op, err)
	switch {
	case err == nil:
		s.persist(c.Request.Context())
		s.sceneResponse(c, http.StatusOK, gin.H{"changed": true})
	case errors.Is(err, board.ErrNoHistory):
		s.sceneResponse(c, http.StatusOK, gin.H{"changed": false})
	default:
		s.fail(c, err)
	}
}

// --- ambient and debug ---

func (s *Server) pointer(c *gin.Context) {
	var req pointReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ambient.MovePointer(domain.Point{X: req.X, Y: req.Y})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type sizeReq struct {
	Width  float64 `json:"width" binding:"gte=0"`
	Height float64 `json:"height" binding:"gte=0"`
}

func (s *Server) resize(c *gin.Context) {
	var req sizeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ambient.Resize(domain.Size{Width: req.Width, Height: req.Height})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) debugInfo(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{
		"info":  s.overlay.Snapshot(),
		"text":  s.overlay.Render(),
		"state": s.board.State().String(),
	})
}

// --- context menu ---

type entryView struct {
	Action  string `json:"action"`
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
}

// menuResponse reports the panel state. Callers hold s.mu.
func (s *Server) menuResponse(c *gin.Context) {
	entries := s.panel.Entries()
	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, entryView{Action: string(e.Action), Label: e.Label, Enabled: e.Enabled})
	}
	pos := s.panel.Position()
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"open":    s.panel.IsOpen(),
		"x":       pos.X,
		"y":       pos.Y,
		"target":  s.panel.Target(),
		"entries": views,
	})
}

func (s *Server) menu(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menuResponse(c)
}

func (s *Server) openMenu(c *gin.Context) {
	var req pointReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.ItemID == "" {
		s.panel.Open(req.X, req.Y)
	} else if err := s.panel.OpenForItem(req.ItemID, req.X, req.Y); err != nil {
		s.fail(c, err)
		return
	}
	s.menuResponse(c)
}

func (s *Server) closeMenu(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panel.Close()
	s.menuResponse(c)
}

func (s *Server) invokeMenu(c *gin.Context) {
	action := panel.Action(c.Param("action"))
	var src panel.Source
	if action == panel.ActImport {
		data, err := s.readBody(c)
		if err != nil {
			s.fail(c, err)
			return
		}
		s.metrics.ImportBytes.Observe(float64(len(data)))
		src = panel.SourceFunc(func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastExp = nil
	err := s.panel.Invoke(action, src)
	s.metrics.command("menu_"+string(action), err)
	if err != nil {
		s.fail(c, err)
		return
	}
	if action == panel.ActExport {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sceneio.FileName))
		c.Data(http.StatusOK, "application/json; charset=utf-8", s.lastExp)
		return
	}
	s.persist(c.Request.Context())
	s.sceneResponse(c, http.StatusOK, nil)
}

// --- embedding and remote import ---

func (s *Server) embedFrame(c *gin.Context) {
	service := c.Query("serviceUrl")
	if service == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		service = scheme + "://" + c.Request.Host + "/board"
	}
	w := embed.Widget{
		ServiceURL: service,
		ImportURL:  c.Query("importUrl"),
		Width:      c.Query("width"),
		Height:     c.Query("height"),
	}
	html, err := w.HTML()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// loadRemote replaces the scene with the document at importUrl (if given)
// and returns the scene.
func (s *Server) loadRemote(c *gin.Context) {
	if src := c.Query("importUrl"); src != "" {
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
		defer cancel()
		scene, err := sceneio.Fetch(ctx, s.client, src, s.maxBody)
		if err == nil {
			s.mu.Lock()
			err = s.board.Replace(scene)
			if err == nil {
				s.persist(c.Request.Context())
			}
			s.mu.Unlock()
		}
		s.metrics.command("import_url", err)
		if err != nil {
			var verr *sceneio.ValidationError
			if !errors.As(err, &verr) && !errors.Is(err, sceneio.ErrTooLarge) {
				c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error()})
				return
			}
			s.fail(c, err)
			return
		}
	}
	s.getScene(c)
}

// --- named boards ---

func (s *Server) listBoards(c *gin.Context) {
	if s.store == nil {
		s.fail(c, errNoStore)
		return
	}
	list, err := s.store.ListBoards(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if list == nil {
		list = []backend.BoardInfo{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getBoard(c *gin.Context) {
	if s.store == nil {
		s.fail(c, errNoStore)
		return
	}
	b, err := s.store.GetBoard(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) saveBoard(c *gin.Context) {
	if s.store == nil {
		s.fail(c, errNoStore)
		return
	}
	s.mu.Lock()
	scene := s.board.Scene()
	s.mu.Unlock()
	b, err := s.store.PutBoard(c.Request.Context(), c.Param("name"), scene)
	s.metrics.command("save_board", err)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "name": b.Name, "version": b.Version})
}

func (s *Server) loadBoard(c *gin.Context) {
	if s.store == nil {
		s.fail(c, errNoStore)
		return
	}
	b, err := s.store.GetBoard(c.Request.Context(), c.Param("name"))
	if err == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		err = s.board.Replace(b.Scene)
	}
	s.metrics.command("load_board", err)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.persist(c.Request.Context())
	s.sceneResponse(c, http.StatusOK, gin.H{"version": b.Version})
}
