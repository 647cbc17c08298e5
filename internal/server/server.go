/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package server exposes one notes board over HTTP.
//
// The board itself is single-threaded; every handler that touches it holds
// Server.mu for the whole command, so requests are applied one at a time in
// arrival order.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"notesboard/internal/backend"
	"notesboard/internal/board"
	"notesboard/internal/debug"
	"notesboard/internal/domain"
	"notesboard/internal/events"
	applog "notesboard/internal/log"
	"notesboard/internal/panel"
	"notesboard/internal/storage"
)

// BoardStore is the named-board repository the server can save to.
type BoardStore interface {
	PutBoard(ctx context.Context, name string, scene domain.Scene) (backend.Board, error)
	GetBoard(ctx context.Context, name string) (backend.Board, error)
	ListBoards(ctx context.Context) ([]backend.BoardInfo, error)
}

// Config wires a Server.
type Config struct {
	Width, Height float64
	Clamp         bool
	HistoryDepth  int
	Initial       domain.Scene

	// Workspace, when set, is saved after every mutating request.
	Workspace *storage.Workspace
	Store     BoardStore

	CORSOrigins    []string
	MaxImportBytes int64
	ImportTimeout  time.Duration
	HTTPClient     *http.Client
	Registry       *prometheus.Registry
	Logger         *slog.Logger
}

// Server owns the board and everything attached to it.
type Server struct {
	mu      sync.Mutex
	board   *board.Board
	bus     *events.Bus
	ambient *events.ManualSource
	overlay *debug.Overlay
	panel   *panel.Panel
	lastExp []byte

	ws      *storage.Workspace
	store   BoardStore
	metrics *Metrics
	log     *slog.Logger
	client  *http.Client
	maxBody int64
	timeout time.Duration

	engine  *gin.Engine
	closers []func()
}

// New builds the board, its overlay and panel, and the HTTP routes.
func New(cfg Config) (*Server, error) {
	s := &Server{
		ws:      cfg.Workspace,
		store:   cfg.Store,
		metrics: NewMetrics(cfg.Registry),
		log:     cfg.Logger,
		client:  cfg.HTTPClient,
		maxBody: cfg.MaxImportBytes,
		timeout: cfg.ImportTimeout,
	}
	if s.log == nil {
		s.log = applog.WithComponent("server")
	}
	if s.client == nil {
		s.client = http.DefaultClient
	}
	if s.maxBody <= 0 {
		s.maxBody = 1 << 20
	}
	if s.timeout <= 0 {
		s.timeout = 5 * time.Second
	}

	initial := cfg.Initial
	if s.ws != nil && initial.Len() == 0 {
		initial = s.ws.Scene
	}
	s.bus = events.NewBus(s.log)
	opts := []board.Option{board.WithBus(s.bus), board.WithClamp(cfg.Clamp), board.WithLogger(s.log)}
	if cfg.Width > 0 && cfg.Height > 0 {
		opts = append(opts, board.WithBounds(cfg.Width, cfg.Height))
	}
	if cfg.HistoryDepth > 0 {
		opts = append(opts, board.WithHistoryDepth(cfg.HistoryDepth))
	}
	b, err := board.New(initial, opts...)
	if err != nil {
		return nil, fmt.Errorf("initial scene: %w", err)
	}
	s.board = b

	s.ambient = events.NewManualSource()
	if cfg.Width > 0 && cfg.Height > 0 {
		s.ambient.Resize(domain.Size{Width: cfg.Width, Height: cfg.Height})
	}
	s.overlay = debug.New()
	s.overlay.Attach(s.bus, s.ambient)
	s.panel = panel.New(b,
		panel.WithLogger(s.log),
		panel.WithAmbient(s.ambient),
		panel.WithSink(panel.SinkFunc(func(_ string, data []byte) error {
			s.lastExp = data
			return nil
		})),
	)
	s.closers = append(s.closers,
		s.bus.Subscribe(s.metrics),
		b.OnChange(func(sc domain.Scene) { s.metrics.SceneItems.Set(float64(sc.Len())) }),
		s.overlay.Close,
		s.panel.Detach,
	)
	s.metrics.SceneItems.Set(float64(initial.Len()))
	s.engine = s.routes(cfg.CORSOrigins)
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Close releases every subscription.
func (s *Server) Close() {
	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()
	for _, c := range closers {
		c()
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", slog.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errc
	return nil
}

func (s *Server) routes(origins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.observe())
	if len(origins) > 0 {
		cc := cors.DefaultConfig()
		if slices.Contains(origins, "*") {
			cc.AllowAllOrigins = true
		} else {
			cc.AllowOrigins = origins
		}
		cc.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}
		r.Use(cors.New(cc))
	}

	r.GET("/healthz", s.health)
	r.GET("/version", s.versionInfo)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))
	r.GET("/embed", s.embedFrame)
	r.GET("/board", s.loadRemote)

	api := r.Group("/api")
	api.GET("/scene", s.getScene)
	api.PUT("/scene", s.putScene)
	api.DELETE("/scene", s.clearScene)
	api.GET("/scene/export", s.exportScene)

	api.POST("/items", s.addItem)
	api.DELETE("/items/:id", s.removeItem)
	api.PATCH("/items/:id", s.patchItem)
	api.POST("/items/:id/copy", s.copyItem)
	api.POST("/paste", s.paste)

	api.POST("/drag/start", s.dragStart)
	api.POST("/drag/move", s.dragMove)
	api.POST("/drag/end", s.dragEnd)
	api.POST("/drag/cancel", s.dragCancel)

	api.POST("/undo", s.undo)
	api.POST("/redo", s.redo)

	api.POST("/pointer", s.pointer)
	api.POST("/resize", s.resize)
	api.GET("/debug", s.debugInfo)

	api.GET("/menu", s.menu)
	api.POST("/menu/open", s.openMenu)
	api.POST("/menu/close", s.closeMenu)
	api.POST("/menu/:action", s.invokeMenu)

	api.GET("/boards", s.listBoards)
	api.GET("/boards/:name", s.getBoard)
	api.PUT("/boards/:name", s.saveBoard)
	api.POST("/boards/:name/load", s.loadBoard)
	return r
}

// observe records request counters and latency, labelled by route pattern.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		s.metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		s.metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// persist saves the workspace after a mutation. Callers hold s.mu.
func (s *Server) persist(ctx context.Context) {
	if s.ws == nil {
		return
	}
	s.ws.Scene = s.board.Scene()
	if err := storage.Save(s.ws); err != nil {
		s.log.ErrorContext(ctx, "save workspace failed", slog.String("root", s.ws.Root), slog.Any("err", err))
	}
}
